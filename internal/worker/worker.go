// Package worker implements the remote trial worker: it registers with a
// sherpa server, pulls trials for one study, trains them with a configured
// trainer, and reports objectives back until the study finishes.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/1kastner/sherpa/pkg/model"
	"github.com/1kastner/sherpa/pkg/runner"
)

// Worker is the core work loop that pulls trials from the server, trains
// them, and reports results back.
type Worker struct {
	client      *Client
	trainer     runner.Trainer
	trainerType model.TrainerType
	checkpoints *Checkpoints
	studyID     string
	poll        time.Duration
	logger      *slog.Logger
}

// Config holds worker configuration.
type Config struct {
	ServerURL string
	Name      string
	Hostname  string
	StudyID   string
	WorkerKey string

	// Trainer selection, passed through to runner.New.
	Trainer model.TrainerType
	Script  string
	Command []string
	Seed    int64

	WorkDir string
	Poll    time.Duration
	TLS     TLSConfig
}

// New creates a Worker from configuration.
func New(cfg Config, logger *slog.Logger) (*Worker, error) {
	if cfg.StudyID == "" {
		return nil, errors.New("study id is required")
	}
	if cfg.Trainer == "" {
		cfg.Trainer = model.TrainerSim
	}
	trainer, err := runner.New(cfg.Trainer, runner.Config{
		Script:  cfg.Script,
		Command: cfg.Command,
		Seed:    cfg.Seed,
	})
	if err != nil {
		return nil, err
	}

	if cfg.WorkDir == "" {
		cfg.WorkDir = filepath.Join(os.TempDir(), "sherpa-worker")
	}
	if cfg.Poll == 0 {
		cfg.Poll = 5 * time.Second
	}

	tlsCfg, err := cfg.TLS.BuildTLSConfig()
	if err != nil {
		return nil, err
	}
	client := NewClient(cfg.ServerURL, tlsCfg)
	if cfg.WorkerKey != "" {
		client.SetWorkerKey(cfg.WorkerKey)
	}

	return &Worker{
		client:      client,
		trainer:     trainer,
		trainerType: cfg.Trainer,
		checkpoints: NewCheckpoints(cfg.WorkDir),
		studyID:     cfg.StudyID,
		poll:        cfg.Poll,
		logger:      logger.With("component", "worker"),
	}, nil
}

// Run starts the main work loop. It registers with the server, then pulls
// trials until the study finishes or the context is cancelled. Heartbeat
// runs in a separate goroutine to keep the worker alive during long trials.
func (w *Worker) Run(ctx context.Context, cfg Config) error {
	worker, err := w.client.Register(ctx, cfg.Name, cfg.Hostname, w.trainerType)
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	w.logger.Info("registered with server",
		"worker_id", worker.ID,
		"name", worker.Name,
		"study", w.studyID,
		"trainer", w.trainerType)

	go w.heartbeatLoop(ctx)

	return w.trialLoop(ctx)
}

// heartbeatLoop sends heartbeats at regular intervals until context is cancelled.
func (w *Worker) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.client.Heartbeat(ctx); err != nil {
				w.logger.Warn("heartbeat failed", "error", err)
			}
		}
	}
}

// trialLoop pulls and trains trials until the study finishes or the context
// is cancelled. Because checkout always answers immediately, the loop only
// sleeps between iterations to back off after transient errors.
func (w *Worker) trialLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("shutting down, deregistering...")
			return w.deregister()
		default:
		}

		finished, err := w.pullAndTrain(ctx)
		if err != nil {
			w.logger.Error("trial error", "error", err)
			select {
			case <-ctx.Done():
				return w.deregister()
			case <-time.After(w.poll):
			}
			continue
		}
		if finished {
			w.logger.Info("study finished, deregistering")
			return w.deregister()
		}
	}
}

// deregister removes the worker with a fresh context, so it works during
// shutdown too.
func (w *Worker) deregister() error {
	deregCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.client.Deregister(deregCtx); err != nil {
		w.logger.Error("deregister failed", "error", err)
		return err
	}
	return nil
}

// pullAndTrain checks out one trial, trains it, and reports the result.
// Returns true once the study is finished.
func (w *Worker) pullAndTrain(ctx context.Context) (bool, error) {
	desc, err := w.client.Checkout(ctx, w.studyID)
	if errors.Is(err, model.ErrStudyFinished) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("checkout: %w", err)
	}

	w.logger.Info("trial received",
		"trial", desc.ID,
		"rung", desc.Rung,
		"resource_to", desc.ResourceTo,
		"resume_from", desc.ResumeFrom)

	resume := w.checkpoints.Load(w.studyID, desc.ResumeFrom)
	result, err := w.trainer.Train(ctx, *desc, resume)
	if err != nil {
		// The trial will never report; free its slot.
		if abandonErr := w.client.AbandonTrial(ctx, w.studyID, desc.ID); abandonErr != nil {
			w.logger.Error("abandon failed", "trial", desc.ID, "error", abandonErr)
		}
		return false, fmt.Errorf("train trial %d: %w", desc.ID, err)
	}

	if err := w.checkpoints.Save(w.studyID, desc.ID, result.Checkpoint); err != nil {
		w.logger.Warn("checkpoint save failed", "trial", desc.ID, "error", err)
	}

	finished, err := w.client.Report(ctx, desc.ID, ReportResult{
		StudyID:   w.studyID,
		Objective: result.Objective,
		Context:   result.Context,
	})
	if err != nil {
		return false, fmt.Errorf("report trial %d: %w", desc.ID, err)
	}
	w.logger.Info("trial reported", "trial", desc.ID, "objective", result.Objective)
	return finished, nil
}
