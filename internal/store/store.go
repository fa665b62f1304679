package store

import (
	"context"

	"github.com/1kastner/sherpa/pkg/model"
)

// Store defines the persistence layer for sherpa entities. The server
// writes through to it on every state change and replays it at startup to
// rebuild in-memory schedulers.
type Store interface {
	// Study CRUD
	CreateStudy(ctx context.Context, st *model.Study) error
	GetStudy(ctx context.Context, id string) (*model.Study, error)
	ListStudies(ctx context.Context, opts model.ListOptions) ([]*model.Study, int, error)
	UpdateStudy(ctx context.Context, st *model.Study) error

	// Trial operations. Trial ids are per-study integers, so every call
	// is keyed by the owning study.
	CreateTrial(ctx context.Context, studyID string, t *model.Trial) error
	UpdateTrial(ctx context.Context, studyID string, t *model.Trial) error
	GetTrial(ctx context.Context, studyID string, id int) (*model.Trial, error)
	ListTrials(ctx context.Context, studyID string) ([]*model.Trial, error)

	// Observation log, append-only in insertion order.
	AppendObservation(ctx context.Context, studyID string, obs *model.Observation) error
	ListObservations(ctx context.Context, studyID string) ([]*model.Observation, error)

	// Worker registry
	CreateWorker(ctx context.Context, w *model.Worker) error
	GetWorker(ctx context.Context, id string) (*model.Worker, error)
	UpdateWorker(ctx context.Context, w *model.Worker) error
	DeleteWorker(ctx context.Context, id string) error
	ListWorkers(ctx context.Context) ([]*model.Worker, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
