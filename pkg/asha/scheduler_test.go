package asha

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/1kastner/sherpa/pkg/model"
)

// seqSampler hands out configurations tagged with a running index so tests
// can tell sampled configurations apart.
type seqSampler struct{ n int }

func (s *seqSampler) Sample() model.ParameterSet {
	s.n++
	return model.ParameterSet{"idx": s.n}
}

func newTestScheduler(t *testing.T, cfg Config) (*Scheduler, *seqSampler) {
	t.Helper()
	sampler := &seqSampler{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := New(cfg, sampler, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, sampler
}

func checkout(t *testing.T, s *Scheduler) model.TrialDescriptor {
	t.Helper()
	desc, err := s.NextTrial("w1")
	if err != nil {
		t.Fatalf("NextTrial: %v", err)
	}
	return desc
}

func report(t *testing.T, s *Scheduler, id int, objective float64) {
	t.Helper()
	if err := s.Report(id, objective, nil); err != nil {
		t.Fatalf("Report(%d): %v", id, err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{MinResource: 1, MaxResource: 9, Eta: 3, MaxFinishedTrials: 4}, false},
		{"single rung", Config{MinResource: 5, MaxResource: 5, Eta: 2, MaxFinishedTrials: 1}, false},
		{"zero min resource", Config{MinResource: 0, MaxResource: 9, Eta: 3, MaxFinishedTrials: 4}, true},
		{"max below min", Config{MinResource: 9, MaxResource: 3, Eta: 3, MaxFinishedTrials: 4}, true},
		{"eta one", Config{MinResource: 1, MaxResource: 9, Eta: 1, MaxFinishedTrials: 4}, true},
		{"zero target", Config{MinResource: 1, MaxResource: 9, Eta: 3, MaxFinishedTrials: 0}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNew_RequiresSampler(t *testing.T) {
	cfg := Config{MinResource: 1, MaxResource: 9, Eta: 3, MaxFinishedTrials: 1}
	if _, err := New(cfg, nil, nil); err == nil {
		t.Fatal("New with nil sampler succeeded, want error")
	}
}

// TestScheduler_LadderWalk drives the 1/9/3 ladder through its first
// promotions step by step: three rung-0 results unlock exactly one
// promotion, the fourth result does not unlock a second, the sixth does.
func TestScheduler_LadderWalk(t *testing.T) {
	s, sampler := newTestScheduler(t, Config{
		MinResource: 1, MaxResource: 9, Eta: 3, MaxFinishedTrials: 5,
	})

	t1 := checkout(t, s)
	t2 := checkout(t, s)
	t3 := checkout(t, s)
	for i, desc := range []model.TrialDescriptor{t1, t2, t3} {
		if desc.Rung != 0 || desc.ResourceFrom != 0 || desc.ResourceTo != 1 {
			t.Fatalf("trial %d = rung %d [%d,%d], want rung 0 [0,1]",
				i+1, desc.Rung, desc.ResourceFrom, desc.ResourceTo)
		}
	}

	report(t, s, t1.ID, 0.90)
	report(t, s, t2.ID, 0.92)
	report(t, s, t3.ID, 0.91)

	// Third observation unlocks one promotion: the 0.92 trial.
	t4 := checkout(t, s)
	if t4.Rung != 1 || t4.ResumeFrom != t2.ID {
		t.Fatalf("t4 = rung %d resume %d, want rung 1 resuming trial %d", t4.Rung, t4.ResumeFrom, t2.ID)
	}
	if t4.ResourceFrom != 1 || t4.ResourceTo != 3 {
		t.Errorf("t4 interval = [%d,%d], want [1,3]", t4.ResourceFrom, t4.ResourceTo)
	}

	// No promotion is left, so the next request samples fresh.
	t5 := checkout(t, s)
	if t5.Rung != 0 || t5.ResumeFrom != 0 {
		t.Fatalf("t5 = rung %d resume %d, want fresh rung-0 trial", t5.Rung, t5.ResumeFrom)
	}

	// A fourth rung-0 observation leaves floor(4/3) = 1 promotable.
	report(t, s, t5.ID, 0.95)
	t6 := checkout(t, s)
	if t6.Rung != 0 {
		t.Fatalf("t6 rung = %d, want 0 (no second promotion after 4 observations)", t6.Rung)
	}

	report(t, s, t6.ID, 0.20)
	t7 := checkout(t, s)
	if t7.Rung != 0 {
		t.Fatalf("t7 rung = %d, want 0 (no second promotion after 5 observations)", t7.Rung)
	}

	// Sixth observation: floor(6/3) = 2, so the 0.95 trial goes up.
	report(t, s, t7.ID, 0.30)
	t8 := checkout(t, s)
	if t8.Rung != 1 || t8.ResumeFrom != t5.ID {
		t.Fatalf("t8 = rung %d resume %d, want rung 1 resuming trial %d", t8.Rung, t8.ResumeFrom, t5.ID)
	}

	if sampler.n != 6 {
		t.Errorf("sampler draws = %d, want 6 (one per fresh trial)", sampler.n)
	}
}

// TestScheduler_PromotesHighestRungFirst sets up simultaneous eligibility at
// rung 0 and rung 1 and checks the scan order pushes the rung-1
// configuration toward the top before starting anything new below it.
func TestScheduler_PromotesHighestRungFirst(t *testing.T) {
	s, _ := newTestScheduler(t, Config{
		MinResource: 1, MaxResource: 4, Eta: 2, MaxFinishedTrials: 3,
	})

	var rung0 []model.TrialDescriptor
	for i := 0; i < 6; i++ {
		rung0 = append(rung0, checkout(t, s))
	}

	report(t, s, rung0[0].ID, 0.9)
	report(t, s, rung0[1].ID, 0.8)

	p1 := checkout(t, s)
	if p1.Rung != 1 || p1.ResumeFrom != rung0[0].ID {
		t.Fatalf("p1 = rung %d resume %d, want promotion of trial %d", p1.Rung, p1.ResumeFrom, rung0[0].ID)
	}

	report(t, s, rung0[2].ID, 0.7)
	report(t, s, rung0[3].ID, 0.6)

	p2 := checkout(t, s)
	if p2.Rung != 1 || p2.ResumeFrom != rung0[1].ID {
		t.Fatalf("p2 = rung %d resume %d, want promotion of trial %d", p2.Rung, p2.ResumeFrom, rung0[1].ID)
	}

	report(t, s, rung0[4].ID, 0.5)
	report(t, s, rung0[5].ID, 0.4)
	report(t, s, p1.ID, 0.95)
	report(t, s, p2.ID, 0.96)

	// Rung 0 has 6 observations (3 promotable, 2 promoted) and rung 1 has 2
	// observations (1 promotable, 0 promoted): both rungs can promote.
	top := checkout(t, s)
	if top.Rung != 2 || top.ResumeFrom != p2.ID {
		t.Fatalf("next = rung %d resume %d, want rung-2 promotion of trial %d", top.Rung, top.ResumeFrom, p2.ID)
	}

	next := checkout(t, s)
	if next.Rung != 1 || next.ResumeFrom != rung0[2].ID {
		t.Fatalf("next = rung %d resume %d, want rung-1 promotion of trial %d", next.Rung, next.ResumeFrom, rung0[2].ID)
	}
}

// runStudy drives a scheduler to completion with one synthetic worker and a
// deterministic objective function.
func runStudy(t *testing.T, s *Scheduler, objective func(desc model.TrialDescriptor) float64) {
	t.Helper()
	for i := 0; i < 10000; i++ {
		desc, err := s.NextTrial("w1")
		if errors.Is(err, model.ErrStudyFinished) {
			return
		}
		if err != nil {
			t.Fatalf("NextTrial: %v", err)
		}
		if err := s.Report(desc.ID, objective(desc), nil); err != nil {
			t.Fatalf("Report(%d): %v", desc.ID, err)
		}
	}
	t.Fatal("study did not finish within 10000 iterations")
}

func syntheticObjective(desc model.TrialDescriptor) float64 {
	idx := desc.Parameters["idx"].(int)
	return float64((idx*37+desc.Rung*11)%97) / 97
}

func TestScheduler_LineageInvariants(t *testing.T) {
	s, _ := newTestScheduler(t, Config{
		MinResource: 1, MaxResource: 9, Eta: 3, MaxFinishedTrials: 3,
	})
	runStudy(t, s, syntheticObjective)

	trials := s.Trials()
	byID := make(map[int]model.Trial, len(trials))
	parentsSeen := make(map[int]int)
	configRung := make(map[string]int)

	lastID := 0
	for _, trial := range trials {
		if trial.ID <= lastID {
			t.Errorf("trial ids not strictly increasing: %d after %d", trial.ID, lastID)
		}
		lastID = trial.ID
		byID[trial.ID] = trial

		key := fmt.Sprintf("%v@%d", trial.Parameters["idx"], trial.Rung)
		configRung[key]++
		if configRung[key] > 1 {
			t.Errorf("configuration %v evaluated twice at rung %d", trial.Parameters["idx"], trial.Rung)
		}

		if trial.ParentID == 0 {
			if trial.Rung != 0 {
				t.Errorf("trial %d at rung %d has no parent", trial.ID, trial.Rung)
			}
			continue
		}

		parentsSeen[trial.ParentID]++
		parent, ok := byID[trial.ParentID]
		if !ok {
			t.Fatalf("trial %d has unknown parent %d", trial.ID, trial.ParentID)
		}
		if parent.Rung != trial.Rung-1 {
			t.Errorf("trial %d at rung %d has parent at rung %d", trial.ID, trial.Rung, parent.Rung)
		}
		if parent.State != model.TrialStateCompleted {
			t.Errorf("trial %d promoted from non-completed parent %d (%s)", trial.ID, parent.ID, parent.State)
		}
		if trial.ResourceFrom != parent.ResourceTo {
			t.Errorf("trial %d trains [%d,%d] but parent stopped at %d",
				trial.ID, trial.ResourceFrom, trial.ResourceTo, parent.ResourceTo)
		}
	}

	for parentID, count := range parentsSeen {
		if count > 1 {
			t.Errorf("trial %d promoted %d times, want at most once", parentID, count)
		}
	}

	if got := s.CompletedAtTopRung(); got < 3 {
		t.Errorf("CompletedAtTopRung = %d, want >= 3", got)
	}
}

// Two schedulers fed the identical call sequence make identical decisions.
func TestScheduler_Determinism(t *testing.T) {
	cfg := Config{MinResource: 1, MaxResource: 9, Eta: 3, MaxFinishedTrials: 2}

	run := func() ([]model.Trial, []model.Observation) {
		s, _ := newTestScheduler(t, cfg)
		runStudy(t, s, syntheticObjective)
		return s.Trials(), s.Observations()
	}

	trialsA, obsA := run()
	trialsB, obsB := run()

	if len(trialsA) != len(trialsB) {
		t.Fatalf("trial counts differ: %d vs %d", len(trialsA), len(trialsB))
	}
	for i := range trialsA {
		a, b := trialsA[i], trialsB[i]
		if a.ID != b.ID || a.Rung != b.Rung || a.ParentID != b.ParentID ||
			a.ResourceFrom != b.ResourceFrom || a.ResourceTo != b.ResourceTo {
			t.Errorf("trial %d diverged: %+v vs %+v", i, a, b)
		}
	}
	if len(obsA) != len(obsB) {
		t.Fatalf("observation counts differ: %d vs %d", len(obsA), len(obsB))
	}
	for i := range obsA {
		if obsA[i].TrialID != obsB[i].TrialID || obsA[i].Objective != obsB[i].Objective {
			t.Errorf("observation %d diverged: %+v vs %+v", i, obsA[i], obsB[i])
		}
	}
}

func TestScheduler_StudyFinished(t *testing.T) {
	// A single-rung ladder: every completion counts toward the target.
	s, _ := newTestScheduler(t, Config{
		MinResource: 2, MaxResource: 2, Eta: 3, MaxFinishedTrials: 2,
	})

	t1 := checkout(t, s)
	t2 := checkout(t, s)
	t3 := checkout(t, s)

	report(t, s, t1.ID, 0.1)
	if s.Finished() {
		t.Fatal("study finished after 1 of 2 completions")
	}
	report(t, s, t2.ID, 0.2)
	if !s.Finished() {
		t.Fatal("study not finished after reaching the completion target")
	}

	// In-flight results still land after the study finishes.
	if err := s.Report(t3.ID, 0.3, nil); err != nil {
		t.Errorf("Report after finish: %v", err)
	}

	_, err := s.NextTrial("w1")
	if !errors.Is(err, model.ErrStudyFinished) {
		t.Errorf("NextTrial after finish error = %v, want ErrStudyFinished", err)
	}
}

func TestScheduler_ReportErrors(t *testing.T) {
	s, _ := newTestScheduler(t, Config{
		MinResource: 1, MaxResource: 9, Eta: 3, MaxFinishedTrials: 5,
	})

	err := s.Report(42, 0.5, nil)
	var notFound *model.NotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("Report(unknown) error = %v, want NotFoundError", err)
	}

	desc := checkout(t, s)
	report(t, s, desc.ID, 0.9)

	err = s.Report(desc.ID, 0.9, nil)
	var invalidTransition *model.InvalidTransitionError
	if !errors.As(err, &invalidTransition) {
		t.Errorf("double report error = %v, want InvalidTransitionError", err)
	}
}

func TestScheduler_AbandonExcludesFromPromotion(t *testing.T) {
	s, _ := newTestScheduler(t, Config{
		MinResource: 1, MaxResource: 9, Eta: 3, MaxFinishedTrials: 5,
	})

	t1 := checkout(t, s)
	t2 := checkout(t, s)
	t3 := checkout(t, s)

	report(t, s, t1.ID, 0.99)
	report(t, s, t2.ID, 0.98)
	if err := s.Abandon(t3.ID); err != nil {
		t.Fatalf("Abandon: %v", err)
	}

	// The abandoned trial never reported: rung 0 holds 2 observations, so
	// nothing is promotable yet.
	t4 := checkout(t, s)
	if t4.Rung != 0 || t4.ResumeFrom != 0 {
		t.Fatalf("t4 = rung %d resume %d, want fresh rung-0 trial", t4.Rung, t4.ResumeFrom)
	}

	report(t, s, t4.ID, 0.97)
	t5 := checkout(t, s)
	if t5.Rung != 1 || t5.ResumeFrom != t1.ID {
		t.Fatalf("t5 = rung %d resume %d, want promotion of trial %d", t5.Rung, t5.ResumeFrom, t1.ID)
	}

	// A stopped trial cannot report late.
	if err := s.Report(t3.ID, 1.0, nil); err == nil {
		t.Error("Report on abandoned trial succeeded, want error")
	}
	// Or be abandoned twice.
	if err := s.Abandon(t3.ID); err == nil {
		t.Error("double Abandon succeeded, want error")
	}
}

// TestScheduler_ConcurrentWorkers hammers one scheduler from several
// goroutines и checks the bookkeeping invariants survived: every promotion
// consumed exactly once, no duplicated parents, consistent lineage.
func TestScheduler_ConcurrentWorkers(t *testing.T) {
	s, _ := newTestScheduler(t, Config{
		MinResource: 1, MaxResource: 9, Eta: 3, MaxFinishedTrials: 4,
	})

	const workers = 8
	var wg sync.WaitGroup
	errCh := make(chan error, workers)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			workerID := fmt.Sprintf("w%d", id)
			for {
				desc, err := s.NextTrial(workerID)
				if errors.Is(err, model.ErrStudyFinished) {
					return
				}
				if err != nil {
					errCh <- err
					return
				}
				if err := s.Report(desc.ID, syntheticObjective(desc), nil); err != nil {
					errCh <- err
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Errorf("worker error: %v", err)
	}

	if !s.Finished() {
		t.Error("study not finished after all workers drained")
	}
	if got := s.CompletedAtTopRung(); got < 4 {
		t.Errorf("CompletedAtTopRung = %d, want >= 4", got)
	}

	parents := make(map[int]int)
	for _, trial := range s.Trials() {
		if trial.ParentID != 0 {
			parents[trial.ParentID]++
		}
	}
	for parentID, count := range parents {
		if count > 1 {
			t.Errorf("trial %d promoted %d times, want at most once", parentID, count)
		}
	}
}

func TestScheduler_Restore(t *testing.T) {
	cfg := Config{MinResource: 1, MaxResource: 9, Eta: 3, MaxFinishedTrials: 5}
	s, _ := newTestScheduler(t, cfg)

	t1 := checkout(t, s)
	t2 := checkout(t, s)
	t3 := checkout(t, s)
	report(t, s, t1.ID, 0.90)
	report(t, s, t2.ID, 0.92)
	report(t, s, t3.ID, 0.91)
	t4 := checkout(t, s) // promotion of t2, left running

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	restored, err := Restore(cfg, &seqSampler{n: 100}, logger, s.Trials(), s.Observations())
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}

	// The in-flight promotion came back stopped.
	trial, err := restored.Trial(t4.ID)
	if err != nil {
		t.Fatalf("Trial(%d): %v", t4.ID, err)
	}
	if trial.State != model.TrialStateStopped {
		t.Errorf("restored running trial state = %q, want STOPPED", trial.State)
	}

	if got := len(restored.Observations()); got != 3 {
		t.Errorf("restored observations = %d, want 3", got)
	}

	// t2's observation already yielded its promotion before the snapshot, so
	// the next checkout must not promote it again: rung 0 has 3 observations,
	// 1 promotable, 1 promoted.
	next, err := restored.NextTrial("w1")
	if err != nil {
		t.Fatalf("NextTrial after restore: %v", err)
	}
	if next.Rung != 0 || next.ResumeFrom != 0 {
		t.Errorf("post-restore trial = rung %d resume %d, want fresh rung-0 trial", next.Rung, next.ResumeFrom)
	}
	if next.ID != t4.ID+1 {
		t.Errorf("post-restore id = %d, want %d (ids never reused)", next.ID, t4.ID+1)
	}

	best, ok := restored.BestResult()
	if !ok || best.TrialID != t2.ID {
		t.Errorf("restored best = trial %d, want trial %d", best.TrialID, t2.ID)
	}
}

func TestScheduler_Restore_FinishedStudy(t *testing.T) {
	cfg := Config{MinResource: 2, MaxResource: 2, Eta: 2, MaxFinishedTrials: 1}
	s, _ := newTestScheduler(t, cfg)
	report(t, s, checkout(t, s).ID, 0.5)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	restored, err := Restore(cfg, &seqSampler{}, logger, s.Trials(), s.Observations())
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if !restored.Finished() {
		t.Error("restored study not finished")
	}
	if _, err := restored.NextTrial("w1"); !errors.Is(err, model.ErrStudyFinished) {
		t.Errorf("NextTrial error = %v, want ErrStudyFinished", err)
	}
}

func TestScheduler_BestResult_Empty(t *testing.T) {
	s, _ := newTestScheduler(t, Config{
		MinResource: 1, MaxResource: 9, Eta: 3, MaxFinishedTrials: 1,
	})
	if _, ok := s.BestResult(); ok {
		t.Error("BestResult on fresh study = ok, want not ok")
	}
}
