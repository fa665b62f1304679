package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/1kastner/sherpa/pkg/asha"
	"github.com/1kastner/sherpa/pkg/model"
)

// Pool drives a scheduler with N in-process workers until the study
// finishes. Checkpoints live in memory, keyed by trial id, so promoted
// trials resume from their parent without any server round trip. This is
// what `sherpa run` uses for single-machine searches.
type Pool struct {
	sched   *asha.Scheduler
	trainer Trainer
	size    int
	logger  *slog.Logger

	mu          sync.Mutex
	checkpoints map[int][]byte
}

// NewPool creates a pool of size workers over the scheduler.
func NewPool(sched *asha.Scheduler, trainer Trainer, size int, logger *slog.Logger) (*Pool, error) {
	if size < 1 {
		return nil, fmt.Errorf("pool size must be >= 1, got %d", size)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pool{
		sched:       sched,
		trainer:     trainer,
		size:        size,
		logger:      logger.With("component", "pool"),
		checkpoints: make(map[int][]byte),
	}, nil
}

// Run blocks until the study finishes, the context is cancelled, or a
// trainer fails. Trials in flight when an error occurs are abandoned so the
// scheduler's bookkeeping stays consistent.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.size; i++ {
		workerID := fmt.Sprintf("pool-%d", i)
		g.Go(func() error {
			return p.workLoop(ctx, workerID)
		})
	}
	return g.Wait()
}

func (p *Pool) workLoop(ctx context.Context, workerID string) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		desc, err := p.sched.NextTrial(workerID)
		if errors.Is(err, model.ErrStudyFinished) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("next trial: %w", err)
		}

		result, err := p.trainer.Train(ctx, desc, p.loadCheckpoint(desc.ResumeFrom))
		if err != nil {
			if abandonErr := p.sched.Abandon(desc.ID); abandonErr != nil {
				p.logger.Error("abandon after train failure",
					"trial", desc.ID, "error", abandonErr)
			}
			return fmt.Errorf("train trial %d: %w", desc.ID, err)
		}

		p.storeCheckpoint(desc.ID, result.Checkpoint)
		if err := p.sched.Report(desc.ID, result.Objective, result.Context); err != nil {
			return fmt.Errorf("report trial %d: %w", desc.ID, err)
		}
	}
}

func (p *Pool) loadCheckpoint(trialID int) []byte {
	if trialID == 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.checkpoints[trialID]
}

func (p *Pool) storeCheckpoint(trialID int, data []byte) {
	if data == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkpoints[trialID] = data
}
