package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/1kastner/sherpa/internal/studyfile"
	"github.com/1kastner/sherpa/pkg/asha"
	"github.com/1kastner/sherpa/pkg/model"
	"github.com/1kastner/sherpa/pkg/param"
)

// studyHandle pairs a study row with its live scheduler. The handle mutex
// serializes checkout and report per study so rows reach the store in the
// same order the scheduler produced them.
type studyHandle struct {
	mu    sync.Mutex
	study *model.Study
	sched *asha.Scheduler
	spec  *studyfile.Spec
}

func studyID() string {
	return "st_" + uuid.New().String()[:8]
}

func (s *Server) handle(id string) *studyHandle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.studies[id]
}

func (s *Server) addHandle(id string, h *studyHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.studies[id] = h
}

// createStudy builds a scheduler from a validated definition, persists the
// study row, and registers the live handle.
func (s *Server) createStudy(ctx context.Context, spec *studyfile.Spec, submittedBy string) (*model.Study, error) {
	seed := spec.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	sampler, err := param.NewSampler(spec.SearchSpace(), seed)
	if err != nil {
		return nil, err
	}
	cfg := spec.SchedulerConfig()
	sched, err := asha.New(cfg, sampler, s.logger)
	if err != nil {
		return nil, err
	}

	definition, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("encode study definition: %w", err)
	}

	study := &model.Study{
		ID:                studyID(),
		Name:              spec.Name,
		State:             model.StudyStateActive,
		LowerIsBetter:     cfg.LowerIsBetter,
		MinResource:       cfg.MinResource,
		MaxResource:       cfg.MaxResource,
		Eta:               cfg.Eta,
		MaxFinishedTrials: cfg.MaxFinishedTrials,
		Seed:              seed,
		Definition:        definition,
		Labels:            spec.Labels,
		SubmittedBy:       submittedBy,
		CreatedAt:         time.Now().UTC(),
	}
	if err := s.store.CreateStudy(ctx, study); err != nil {
		return nil, err
	}

	s.addHandle(study.ID, &studyHandle{study: study, sched: sched, spec: spec})
	s.logger.Info("study created",
		"study", study.ID,
		"name", study.Name,
		"rungs", len(cfg.Budgets()),
		"max_finished_trials", cfg.MaxFinishedTrials)
	return study, nil
}

// RestoreStudies rebuilds a scheduler for every persisted study. Trials that
// were pending or running when the server went down come back stopped; the
// updated rows are written back so the store matches the rebuilt state.
func (s *Server) RestoreStudies(ctx context.Context) error {
	opts := model.ListOptions{Limit: 100}
	for {
		studies, total, err := s.store.ListStudies(ctx, opts)
		if err != nil {
			return fmt.Errorf("list studies: %w", err)
		}
		for _, study := range studies {
			if err := s.restoreStudy(ctx, study); err != nil {
				return fmt.Errorf("restore study %s: %w", study.ID, err)
			}
		}
		opts.Offset += len(studies)
		if opts.Offset >= total || len(studies) == 0 {
			return nil
		}
	}
}

func (s *Server) restoreStudy(ctx context.Context, study *model.Study) error {
	spec, err := studyfile.Parse(study.Definition)
	if err != nil {
		return fmt.Errorf("parse definition: %w", err)
	}
	sampler, err := param.NewSampler(spec.SearchSpace(), study.Seed)
	if err != nil {
		return err
	}

	rows, err := s.store.ListTrials(ctx, study.ID)
	if err != nil {
		return err
	}
	trials := make([]model.Trial, len(rows))
	for i, t := range rows {
		trials[i] = *t
	}
	obsRows, err := s.store.ListObservations(ctx, study.ID)
	if err != nil {
		return err
	}
	observations := make([]model.Observation, len(obsRows))
	for i, o := range obsRows {
		observations[i] = *o
	}

	sched, err := asha.Restore(spec.SchedulerConfig(), sampler, s.logger, trials, observations)
	if err != nil {
		return err
	}

	// Write back trials the restore stopped.
	for _, row := range rows {
		if row.State.IsTerminal() {
			continue
		}
		restored, err := sched.Trial(row.ID)
		if err != nil {
			return err
		}
		if err := s.store.UpdateTrial(ctx, study.ID, &restored); err != nil {
			return err
		}
	}

	if sched.Finished() && study.State == model.StudyStateActive {
		study.State = model.StudyStateFinished
		now := time.Now().UTC()
		study.FinishedAt = &now
		if err := s.store.UpdateStudy(ctx, study); err != nil {
			return err
		}
	}

	s.addHandle(study.ID, &studyHandle{study: study, sched: sched, spec: spec})
	s.logger.Info("study restored", "study", study.ID, "trials", len(trials), "finished", sched.Finished())
	return nil
}

// finishStudy transitions the study row to FINISHED once the scheduler has
// met its stopping criterion. Callers hold the handle mutex.
func (s *Server) finishStudy(ctx context.Context, h *studyHandle) error {
	if !h.sched.Finished() || h.study.State != model.StudyStateActive {
		return nil
	}
	if !h.study.State.CanTransitionTo(model.StudyStateFinished) {
		return nil
	}
	h.study.State = model.StudyStateFinished
	now := time.Now().UTC()
	h.study.FinishedAt = &now
	if err := s.store.UpdateStudy(ctx, h.study); err != nil {
		return err
	}
	s.logger.Info("study finished", "study", h.study.ID,
		"top_rung_completed", h.sched.CompletedAtTopRung())
	return nil
}

// studyView returns the study row with its computed trial summary attached.
// Callers hold the handle mutex.
func (h *studyHandle) studyView() *model.Study {
	view := *h.study
	view.TrialSummary = h.sched.TrialSummary()
	return &view
}
