package asha

import (
	"time"

	"github.com/1kastner/sherpa/pkg/model"
)

// TrialTable tracks every trial's identity, lineage, rung and state. Ids are
// monotonically increasing from 1 and never reused. Not safe for concurrent
// use on its own; the Scheduler serializes access.
type TrialTable struct {
	budgets []int
	nextID  int
	trials  map[int]*model.Trial
	order   []int
	topDone int
}

// NewTrialTable creates an empty table over the given resource ladder.
func NewTrialTable(budgets []int) *TrialTable {
	return &TrialTable{
		budgets: budgets,
		nextID:  1,
		trials:  make(map[int]*model.Trial),
	}
}

// TopRung returns the index of the highest rung.
func (t *TrialTable) TopRung() int {
	return len(t.budgets) - 1
}

// Len returns the number of trials ever created.
func (t *TrialTable) Len() int {
	return len(t.order)
}

// CreateFromSample allocates a fresh rung-0 trial for a newly sampled
// configuration, training from scratch to the first rung's budget.
func (t *TrialTable) CreateFromSample(params model.ParameterSet) *model.Trial {
	trial := &model.Trial{
		ID:           t.nextID,
		Parameters:   params,
		Rung:         0,
		ResourceFrom: 0,
		ResourceTo:   t.budgets[0],
		State:        model.TrialStatePending,
		CreatedAt:    time.Now().UTC(),
	}
	t.nextID++
	t.trials[trial.ID] = trial
	t.order = append(t.order, trial.ID)
	return trial
}

// CreateFromPromotion allocates a trial continuing a completed parent at the
// next rung, training from the parent's end budget to the new rung's budget.
func (t *TrialTable) CreateFromPromotion(parent *model.Trial, newRung int) (*model.Trial, error) {
	if parent.State != model.TrialStateCompleted {
		return nil, &model.InvalidPromotionError{
			ParentID:   parent.ID,
			ParentRung: parent.Rung,
			TargetRung: newRung,
			Reason:     "parent not completed",
		}
	}
	if newRung != parent.Rung+1 {
		return nil, &model.InvalidPromotionError{
			ParentID:   parent.ID,
			ParentRung: parent.Rung,
			TargetRung: newRung,
			Reason:     "target rung must immediately follow parent rung",
		}
	}
	if newRung > t.TopRung() {
		return nil, &model.InvalidPromotionError{
			ParentID:   parent.ID,
			ParentRung: parent.Rung,
			TargetRung: newRung,
			Reason:     "parent already at top rung",
		}
	}
	trial := &model.Trial{
		ID:           t.nextID,
		Parameters:   parent.Parameters,
		Rung:         newRung,
		ResourceFrom: parent.ResourceTo,
		ResourceTo:   t.budgets[newRung],
		ParentID:     parent.ID,
		State:        model.TrialStatePending,
		CreatedAt:    time.Now().UTC(),
	}
	t.nextID++
	t.trials[trial.ID] = trial
	t.order = append(t.order, trial.ID)
	return trial, nil
}

// Get returns the trial with the given id.
func (t *TrialTable) Get(id int) (*model.Trial, error) {
	trial, ok := t.trials[id]
	if !ok {
		return nil, model.NewTrialNotFound(id)
	}
	return trial, nil
}

func (t *TrialTable) transition(id int, to model.TrialState) (*model.Trial, error) {
	trial, err := t.Get(id)
	if err != nil {
		return nil, err
	}
	if !trial.State.CanTransitionTo(to) {
		return nil, model.NewTrialTransitionError(id, trial.State, to)
	}
	trial.State = to
	return trial, nil
}

// MarkRunning transitions a pending trial to running.
func (t *TrialTable) MarkRunning(id int) error {
	trial, err := t.transition(id, model.TrialStateRunning)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	trial.StartedAt = &now
	return nil
}

// MarkCompleted transitions a running trial to completed and, at the top
// rung, advances the study's finished count.
func (t *TrialTable) MarkCompleted(id int) error {
	trial, err := t.transition(id, model.TrialStateCompleted)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	trial.CompletedAt = &now
	if trial.Rung == t.TopRung() {
		t.topDone++
	}
	return nil
}

// MarkStopped abandons a pending or running trial. A stopped trial never
// reported, so its configuration is out of the promotion race at this rung.
func (t *TrialTable) MarkStopped(id int) error {
	trial, err := t.transition(id, model.TrialStateStopped)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	trial.CompletedAt = &now
	return nil
}

// CompletedAtTopRung returns the number of top-rung completions, the
// scheduler's stopping criterion.
func (t *TrialTable) CompletedAtTopRung() int {
	return t.topDone
}

// Trials returns every trial in creation order.
func (t *TrialTable) Trials() []*model.Trial {
	out := make([]*model.Trial, len(t.order))
	for i, id := range t.order {
		out[i] = t.trials[id]
	}
	return out
}

// insertRestored re-adds a persisted trial during study restoration.
// Callers insert in ascending id order.
func (t *TrialTable) insertRestored(trial *model.Trial) {
	t.trials[trial.ID] = trial
	t.order = append(t.order, trial.ID)
	if trial.ID >= t.nextID {
		t.nextID = trial.ID + 1
	}
	if trial.State == model.TrialStateCompleted && trial.Rung == t.TopRung() {
		t.topDone++
	}
}
