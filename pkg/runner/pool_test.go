package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/1kastner/sherpa/pkg/asha"
	"github.com/1kastner/sherpa/pkg/model"
)

func newPoolScheduler(t *testing.T, maxFinished int) *asha.Scheduler {
	t.Helper()
	n := 0
	sampler := asha.SamplerFunc(func() model.ParameterSet {
		n++
		return model.ParameterSet{"lr": float64(n) / 100}
	})
	sched, err := asha.New(asha.Config{
		MinResource:       1,
		MaxResource:       9,
		Eta:               3,
		MaxFinishedTrials: maxFinished,
	}, sampler, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("asha.New() error = %v", err)
	}
	return sched
}

func TestPool_RunsStudyToCompletion(t *testing.T) {
	sched := newPoolScheduler(t, 2)
	pool, err := NewPool(sched, NewSimTrainer(1), 4, nil)
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}

	if err := pool.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !sched.Finished() {
		t.Fatal("study not finished after Run")
	}
	if got := sched.CompletedAtTopRung(); got < 2 {
		t.Errorf("top rung completions = %d, want >= 2", got)
	}

	// Every promoted trial's interval continues its parent's.
	trials := sched.Trials()
	byID := make(map[int]model.Trial, len(trials))
	for _, tr := range trials {
		byID[tr.ID] = tr
	}
	promotions := 0
	for _, tr := range trials {
		if tr.ParentID == 0 {
			continue
		}
		promotions++
		parent := byID[tr.ParentID]
		if tr.ResourceFrom != parent.ResourceTo {
			t.Errorf("trial %d resumes at %d, parent %d stopped at %d",
				tr.ID, tr.ResourceFrom, parent.ID, parent.ResourceTo)
		}
	}
	if promotions == 0 {
		t.Error("no promotions happened in a full study")
	}

	if _, ok := sched.BestResult(); !ok {
		t.Error("no best result after a finished study")
	}
}

type failingTrainer struct{}

func (failingTrainer) Train(context.Context, model.TrialDescriptor, []byte) (*Result, error) {
	return nil, errors.New("boom")
}

func TestPool_TrainerFailureAbandonsTrial(t *testing.T) {
	sched := newPoolScheduler(t, 1)
	pool, err := NewPool(sched, failingTrainer{}, 1, nil)
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}

	if err := pool.Run(context.Background()); err == nil {
		t.Fatal("Run() succeeded with a failing trainer")
	}

	trials := sched.Trials()
	if len(trials) != 1 {
		t.Fatalf("len(trials) = %d, want 1", len(trials))
	}
	if trials[0].State != model.TrialStateStopped {
		t.Errorf("trial state = %q, want STOPPED after failure", trials[0].State)
	}
}

func TestPool_InvalidSize(t *testing.T) {
	sched := newPoolScheduler(t, 1)
	if _, err := NewPool(sched, NewSimTrainer(0), 0, nil); err == nil {
		t.Error("pool size 0 accepted")
	}
}
