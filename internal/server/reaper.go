package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/1kastner/sherpa/internal/store"
	"github.com/1kastner/sherpa/pkg/model"
)

// ReaperConfig holds reaper configuration.
type ReaperConfig struct {
	// Deadline after which a silent worker counts as lost.
	Deadline time.Duration
	// PollInterval between sweeps.
	PollInterval time.Duration
}

// DefaultReaperConfig returns sensible defaults.
func DefaultReaperConfig() ReaperConfig {
	return ReaperConfig{Deadline: 60 * time.Second, PollInterval: 10 * time.Second}
}

// Reaper implements the liveness policy the scheduler core stays out of: a
// worker that misses its heartbeat deadline goes offline and the trial it
// held is abandoned, so its promotion slot opens up again.
type Reaper struct {
	server *Server
	store  store.Store
	config ReaperConfig
	logger *slog.Logger
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewReaper creates a reaper over the server's study handles.
func NewReaper(srv *Server, cfg ReaperConfig, logger *slog.Logger) *Reaper {
	return &Reaper{
		server: srv,
		store:  srv.store,
		config: cfg,
		logger: logger.With("component", "reaper"),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the sweep loop. Blocks until ctx is cancelled or Stop is called.
func (r *Reaper) Start(ctx context.Context) error {
	r.logger.Info("reaper started",
		"deadline", r.config.Deadline, "poll_interval", r.config.PollInterval)
	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reaper stopping (context cancelled)")
			close(r.doneCh)
			return ctx.Err()
		case <-r.stopCh:
			r.logger.Info("reaper stopping (stop called)")
			close(r.doneCh)
			return nil
		case <-ticker.C:
			if err := r.Tick(ctx); err != nil {
				r.logger.Error("tick error", "error", err)
			}
		}
	}
}

// Stop gracefully shuts down the reaper and waits for the current sweep to finish.
func (r *Reaper) Stop() error {
	close(r.stopCh)
	<-r.doneCh
	return nil
}

// Tick runs a single sweep: every online worker whose last heartbeat is past
// the deadline goes offline, and its checked-out trial is abandoned.
func (r *Reaper) Tick(ctx context.Context) error {
	workers, err := r.store.ListWorkers(ctx)
	if err != nil {
		return err
	}

	cutoff := time.Now().UTC().Add(-r.config.Deadline)
	for _, worker := range workers {
		if worker.State != model.WorkerStateOnline || !worker.LastSeen.Before(cutoff) {
			continue
		}
		if !worker.State.CanTransitionTo(model.WorkerStateOffline) {
			continue
		}

		r.logger.Info("worker lost",
			"worker", worker.ID,
			"last_seen", worker.LastSeen,
			"trial", worker.CurrentTrial,
			"study", worker.CurrentStudy)

		if worker.CurrentTrial != 0 && worker.CurrentStudy != "" {
			if err := r.server.abandonWorkerTrial(ctx, worker); err != nil {
				r.logger.Error("abandon lost trial",
					"worker", worker.ID, "trial", worker.CurrentTrial, "error", err)
			}
		}

		worker.State = model.WorkerStateOffline
		worker.CurrentTrial = 0
		worker.CurrentStudy = ""
		if err := r.store.UpdateWorker(ctx, worker); err != nil {
			r.logger.Error("mark worker offline", "worker", worker.ID, "error", err)
		}
	}

	return nil
}
