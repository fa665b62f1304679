package asha

import (
	"errors"
	"testing"

	"github.com/1kastner/sherpa/pkg/model"
)

func newTestTable(t *testing.T) *TrialTable {
	t.Helper()
	return NewTrialTable(RungBudgets(1, 9, 3))
}

// completeTrial walks a trial through running to completed.
func completeTrial(t *testing.T, table *TrialTable, id int) {
	t.Helper()
	if err := table.MarkRunning(id); err != nil {
		t.Fatalf("MarkRunning(%d): %v", id, err)
	}
	if err := table.MarkCompleted(id); err != nil {
		t.Fatalf("MarkCompleted(%d): %v", id, err)
	}
}

func TestTrialTable_CreateFromSample(t *testing.T) {
	table := newTestTable(t)

	first := table.CreateFromSample(model.ParameterSet{"lr": 0.1})
	second := table.CreateFromSample(model.ParameterSet{"lr": 0.2})

	if first.ID != 1 || second.ID != 2 {
		t.Errorf("ids = %d, %d, want 1, 2", first.ID, second.ID)
	}
	if first.Rung != 0 {
		t.Errorf("rung = %d, want 0", first.Rung)
	}
	if first.ResourceFrom != 0 || first.ResourceTo != 1 {
		t.Errorf("interval = [%d,%d], want [0,1]", first.ResourceFrom, first.ResourceTo)
	}
	if first.ParentID != 0 {
		t.Errorf("ParentID = %d, want 0", first.ParentID)
	}
	if first.State != model.TrialStatePending {
		t.Errorf("state = %q, want PENDING", first.State)
	}
}

func TestTrialTable_CreateFromPromotion(t *testing.T) {
	table := newTestTable(t)
	parent := table.CreateFromSample(model.ParameterSet{"lr": 0.1})
	completeTrial(t, table, parent.ID)

	child, err := table.CreateFromPromotion(parent, 1)
	if err != nil {
		t.Fatalf("CreateFromPromotion: %v", err)
	}
	if child.ID != 2 {
		t.Errorf("child id = %d, want 2", child.ID)
	}
	if child.Rung != 1 {
		t.Errorf("child rung = %d, want 1", child.Rung)
	}
	if child.ResourceFrom != parent.ResourceTo || child.ResourceTo != 3 {
		t.Errorf("interval = [%d,%d], want [%d,3]", child.ResourceFrom, child.ResourceTo, parent.ResourceTo)
	}
	if child.ParentID != parent.ID {
		t.Errorf("ParentID = %d, want %d", child.ParentID, parent.ID)
	}
}

func TestTrialTable_CreateFromPromotion_ParentNotCompleted(t *testing.T) {
	table := newTestTable(t)
	parent := table.CreateFromSample(model.ParameterSet{"lr": 0.1})

	_, err := table.CreateFromPromotion(parent, 1)
	var invalidPromotion *model.InvalidPromotionError
	if !errors.As(err, &invalidPromotion) {
		t.Fatalf("error = %v, want InvalidPromotionError", err)
	}
}

func TestTrialTable_CreateFromPromotion_RungSkip(t *testing.T) {
	table := newTestTable(t)
	parent := table.CreateFromSample(model.ParameterSet{"lr": 0.1})
	completeTrial(t, table, parent.ID)

	_, err := table.CreateFromPromotion(parent, 2)
	var invalidPromotion *model.InvalidPromotionError
	if !errors.As(err, &invalidPromotion) {
		t.Fatalf("rung-skipping promotion error = %v, want InvalidPromotionError", err)
	}
}

func TestTrialTable_CreateFromPromotion_AboveTopRung(t *testing.T) {
	table := newTestTable(t)
	parent := table.CreateFromSample(model.ParameterSet{"lr": 0.1})
	completeTrial(t, table, parent.ID)

	mid, err := table.CreateFromPromotion(parent, 1)
	if err != nil {
		t.Fatalf("promote to rung 1: %v", err)
	}
	completeTrial(t, table, mid.ID)

	top, err := table.CreateFromPromotion(mid, 2)
	if err != nil {
		t.Fatalf("promote to rung 2: %v", err)
	}
	completeTrial(t, table, top.ID)

	if _, err := table.CreateFromPromotion(top, 3); err == nil {
		t.Fatal("promotion above the top rung succeeded, want error")
	}
}

func TestTrialTable_InvalidTransitions(t *testing.T) {
	table := newTestTable(t)
	trial := table.CreateFromSample(model.ParameterSet{"lr": 0.1})

	// Completing a pending trial skips RUNNING.
	if err := table.MarkCompleted(trial.ID); err == nil {
		t.Error("MarkCompleted on pending trial succeeded, want error")
	}

	completeTrial(t, table, trial.ID)

	// Double completion is the double-report case.
	err := table.MarkCompleted(trial.ID)
	var invalidTransition *model.InvalidTransitionError
	if !errors.As(err, &invalidTransition) {
		t.Errorf("double MarkCompleted error = %v, want InvalidTransitionError", err)
	}

	if err := table.MarkStopped(trial.ID); err == nil {
		t.Error("MarkStopped on completed trial succeeded, want error")
	}
}

func TestTrialTable_MarkStopped(t *testing.T) {
	table := newTestTable(t)

	pending := table.CreateFromSample(model.ParameterSet{"a": 1})
	if err := table.MarkStopped(pending.ID); err != nil {
		t.Errorf("MarkStopped on pending trial: %v", err)
	}

	running := table.CreateFromSample(model.ParameterSet{"a": 2})
	if err := table.MarkRunning(running.ID); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	if err := table.MarkStopped(running.ID); err != nil {
		t.Errorf("MarkStopped on running trial: %v", err)
	}
}

func TestTrialTable_Get_NotFound(t *testing.T) {
	table := newTestTable(t)
	_, err := table.Get(99)
	var notFound *model.NotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("Get(99) error = %v, want NotFoundError", err)
	}
}

func TestTrialTable_CompletedAtTopRung(t *testing.T) {
	table := newTestTable(t)

	rung0 := table.CreateFromSample(model.ParameterSet{"a": 1})
	completeTrial(t, table, rung0.ID)
	if got := table.CompletedAtTopRung(); got != 0 {
		t.Errorf("CompletedAtTopRung after rung-0 completion = %d, want 0", got)
	}

	mid, err := table.CreateFromPromotion(rung0, 1)
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	completeTrial(t, table, mid.ID)

	top, err := table.CreateFromPromotion(mid, 2)
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	completeTrial(t, table, top.ID)
	if got := table.CompletedAtTopRung(); got != 1 {
		t.Errorf("CompletedAtTopRung after top-rung completion = %d, want 1", got)
	}
}

func TestTrialTable_TrialsOrder(t *testing.T) {
	table := newTestTable(t)
	for i := 0; i < 4; i++ {
		table.CreateFromSample(model.ParameterSet{"i": i})
	}
	trials := table.Trials()
	if len(trials) != 4 {
		t.Fatalf("len(Trials) = %d, want 4", len(trials))
	}
	for i, trial := range trials {
		if trial.ID != i+1 {
			t.Errorf("Trials()[%d].ID = %d, want %d", i, trial.ID, i+1)
		}
	}
}
