// Package asha implements the Asynchronous Successive Halving Algorithm for
// hyperparameter search. Configurations train at geometrically growing
// resource budgets (rungs); after each rung only the top 1/eta fraction is
// promoted to the next. Promotion decisions use the observations available
// so far, so a worker asking for work always gets an answer immediately:
// either a promotion that just became eligible or a freshly sampled
// configuration. There are no synchronization barriers between workers.
package asha

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/1kastner/sherpa/pkg/model"
)

// Sampler produces a fresh configuration on demand. Implementations never
// fail; every sample is a valid point in the search space. The scheduler
// treats the sampled values as opaque.
type Sampler interface {
	Sample() model.ParameterSet
}

// SamplerFunc adapts a function to the Sampler interface.
type SamplerFunc func() model.ParameterSet

// Sample calls f.
func (f SamplerFunc) Sample() model.ParameterSet { return f() }

// Config holds the study-creation inputs for a scheduler.
type Config struct {
	// MinResource is the budget trained at rung 0.
	MinResource int
	// MaxResource is the full budget; the top rung trains to exactly this.
	MaxResource int
	// Eta is the promotion factor: the top 1/eta fraction of each rung
	// advances.
	Eta int
	// MaxFinishedTrials stops the study once this many trials complete the
	// top rung.
	MaxFinishedTrials int
	// LowerIsBetter sets the objective comparison direction.
	LowerIsBetter bool
}

// Validate checks the configuration bounds.
func (c Config) Validate() error {
	if c.MinResource < 1 {
		return fmt.Errorf("min resource must be >= 1, got %d", c.MinResource)
	}
	if c.MaxResource < c.MinResource {
		return fmt.Errorf("max resource must be >= min resource, got %d < %d", c.MaxResource, c.MinResource)
	}
	if c.Eta < 2 {
		return fmt.Errorf("eta must be >= 2, got %d", c.Eta)
	}
	if c.MaxFinishedTrials < 1 {
		return fmt.Errorf("max finished trials must be >= 1, got %d", c.MaxFinishedTrials)
	}
	return nil
}

// Budgets returns the resource ladder derived from the configuration.
func (c Config) Budgets() []int {
	return RungBudgets(c.MinResource, c.MaxResource, c.Eta)
}

// Scheduler orchestrates one ASHA study. All state lives behind a single
// mutex so promotion decisions are always computed against a consistent
// snapshot; two concurrent work requests can never consume the same
// promotion. No method blocks waiting for other trials.
type Scheduler struct {
	mu       sync.Mutex
	cfg      Config
	sampler  Sampler
	registry *RungRegistry
	table    *TrialTable
	results  *ResultStore
	finished bool
	logger   *slog.Logger
}

// New creates a scheduler for a fresh study.
func New(cfg Config, sampler Sampler, logger *slog.Logger) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scheduler config: %w", err)
	}
	if sampler == nil {
		return nil, errors.New("sampler is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	budgets := cfg.Budgets()
	return &Scheduler{
		cfg:      cfg,
		sampler:  sampler,
		registry: NewRungRegistry(budgets, cfg.Eta, cfg.LowerIsBetter),
		table:    NewTrialTable(budgets),
		results:  NewResultStore(),
		logger:   logger.With("component", "asha"),
	}, nil
}

// NextTrial answers a worker's request for work. Rungs are scanned top-down
// for an eligible promotion first, pushing configurations toward completion
// before new ones start; only when no rung can promote is a fresh
// configuration sampled. The returned trial is already marked running.
func (s *Scheduler) NextTrial(workerID string) (model.TrialDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return model.TrialDescriptor{}, model.ErrStudyFinished
	}

	for rung := s.registry.TopRung() - 1; rung >= 0; rung-- {
		candidate, ok, err := s.registry.NextPromotion(rung)
		if err != nil {
			return model.TrialDescriptor{}, err
		}
		if !ok {
			continue
		}
		parent, err := s.table.Get(candidate)
		if err != nil {
			return model.TrialDescriptor{}, err
		}
		trial, err := s.table.CreateFromPromotion(parent, rung+1)
		if err != nil {
			return model.TrialDescriptor{}, err
		}
		if err := s.registry.MarkPromoted(rung, candidate); err != nil {
			return model.TrialDescriptor{}, err
		}
		return s.dispatch(trial, workerID)
	}

	trial := s.table.CreateFromSample(s.sampler.Sample())
	return s.dispatch(trial, workerID)
}

func (s *Scheduler) dispatch(trial *model.Trial, workerID string) (model.TrialDescriptor, error) {
	if err := s.table.MarkRunning(trial.ID); err != nil {
		return model.TrialDescriptor{}, err
	}
	trial.WorkerID = workerID
	s.logger.Debug("trial dispatched",
		"trial", trial.ID,
		"rung", trial.Rung,
		"resource_to", trial.ResourceTo,
		"promoted_from", trial.ParentID,
		"worker", workerID)
	return trial.Descriptor(), nil
}

// Report records the objective a worker measured after training a trial to
// the end of its resource interval. The trial completes, the observation
// joins its rung (possibly unlocking a promotion for a later NextTrial), and
// a top-rung completion may finish the study. Reports stay valid after the
// study finishes; only NextTrial refuses then.
func (s *Scheduler) Report(trialID int, objective float64, ctx model.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	trial, err := s.table.Get(trialID)
	if err != nil {
		return err
	}
	if trial.State != model.TrialStateRunning {
		return model.NewTrialTransitionError(trialID, trial.State, model.TrialStateCompleted)
	}
	if err := s.registry.Record(trial.Rung, trialID, objective); err != nil {
		return err
	}
	if err := s.table.MarkCompleted(trialID); err != nil {
		return err
	}
	s.results.Append(model.Observation{
		TrialID:    trialID,
		Rung:       trial.Rung,
		Objective:  objective,
		Context:    ctx,
		RecordedAt: time.Now().UTC(),
	})
	s.logger.Debug("observation recorded",
		"trial", trialID, "rung", trial.Rung, "objective", objective)

	if trial.Rung == s.table.TopRung() && s.table.CompletedAtTopRung() >= s.cfg.MaxFinishedTrials {
		s.finished = true
		s.logger.Info("study finished",
			"top_rung_completed", s.table.CompletedAtTopRung(),
			"trials", s.table.Len(),
			"observations", s.results.Len())
	}
	return nil
}

// Abandon stops a pending or running trial that will never report (worker
// crash, operator cancel). The core applies no liveness policy of its own;
// callers decide when a trial counts as lost.
func (s *Scheduler) Abandon(trialID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.table.MarkStopped(trialID); err != nil {
		return err
	}
	s.logger.Debug("trial abandoned", "trial", trialID)
	return nil
}

// Finished reports whether the study has met its stopping criterion.
func (s *Scheduler) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// CompletedAtTopRung returns the number of top-rung completions so far.
func (s *Scheduler) CompletedAtTopRung() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.CompletedAtTopRung()
}

// Config returns the study configuration.
func (s *Scheduler) Config() Config {
	return s.cfg
}

// Budgets returns the resource ladder.
func (s *Scheduler) Budgets() []int {
	return s.cfg.Budgets()
}

// Trial returns a copy of the trial with the given id.
func (s *Scheduler) Trial(id int) (model.Trial, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	trial, err := s.table.Get(id)
	if err != nil {
		return model.Trial{}, err
	}
	return *trial, nil
}

// Trials returns copies of every trial in creation order.
func (s *Scheduler) Trials() []model.Trial {
	s.mu.Lock()
	defer s.mu.Unlock()
	live := s.table.Trials()
	out := make([]model.Trial, len(live))
	for i, t := range live {
		out[i] = *t
	}
	return out
}

// Observations returns the append-ordered observation log.
func (s *Scheduler) Observations() []model.Observation {
	return s.results.Observations()
}

// BestResult returns the best observation so far under the study's
// comparison direction. The second return is false while nothing has been
// reported.
func (s *Scheduler) BestResult() (model.Observation, bool) {
	return s.results.Best(s.cfg.LowerIsBetter)
}

// RungSummaries returns per-rung bookkeeping snapshots.
func (s *Scheduler) RungSummaries() []RungSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Summaries()
}

// TrialSummary returns aggregate trial counts.
func (s *Scheduler) TrialSummary() model.TrialSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.ComputeTrialSummary(s.table.Trials(), s.table.TopRung())
}

// Restore rebuilds a scheduler from persisted trials and observations, in
// the state it would have reached had the rows been produced live. Trials
// that were pending or running in the snapshot come back stopped: their
// workers are gone and a half-trained interval cannot be resumed. Promotion
// bookkeeping is rebuilt from trial lineage.
func Restore(cfg Config, sampler Sampler, logger *slog.Logger, trials []model.Trial, observations []model.Observation) (*Scheduler, error) {
	s, err := New(cfg, sampler, logger)
	if err != nil {
		return nil, err
	}

	sorted := make([]model.Trial, len(trials))
	copy(sorted, trials)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for i := range sorted {
		trial := sorted[i]
		if !trial.State.IsTerminal() {
			trial.State = model.TrialStateStopped
		}
		s.table.insertRestored(&trial)
	}

	for _, obs := range observations {
		if _, err := s.table.Get(obs.TrialID); err != nil {
			return nil, fmt.Errorf("restore observation for trial %d: %w", obs.TrialID, err)
		}
		if err := s.registry.Record(obs.Rung, obs.TrialID, obs.Objective); err != nil {
			return nil, fmt.Errorf("restore observation for trial %d: %w", obs.TrialID, err)
		}
		s.results.Append(obs)
	}

	for _, trial := range s.table.Trials() {
		if trial.ParentID == 0 {
			continue
		}
		if err := s.registry.MarkPromoted(trial.Rung-1, trial.ParentID); err != nil {
			return nil, fmt.Errorf("restore promotion for trial %d: %w", trial.ID, err)
		}
	}

	if s.table.CompletedAtTopRung() >= cfg.MaxFinishedTrials {
		s.finished = true
	}
	s.logger.Info("study restored",
		"trials", s.table.Len(),
		"observations", s.results.Len(),
		"finished", s.finished)
	return s, nil
}
