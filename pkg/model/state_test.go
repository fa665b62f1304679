package model

import "testing"

func TestTrialState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    TrialState
		terminal bool
	}{
		{TrialStatePending, false},
		{TrialStateRunning, false},
		{TrialStateCompleted, true},
		{TrialStateStopped, true},
	}
	for _, tt := range tests {
		if got := tt.state.IsTerminal(); got != tt.terminal {
			t.Errorf("TrialState(%q).IsTerminal() = %v, want %v", tt.state, got, tt.terminal)
		}
	}
}

func TestTrialState_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from  TrialState
		to    TrialState
		valid bool
	}{
		// Valid transitions
		{TrialStatePending, TrialStateRunning, true},
		{TrialStatePending, TrialStateStopped, true},
		{TrialStateRunning, TrialStateCompleted, true},
		{TrialStateRunning, TrialStateStopped, true},

		// Invalid transitions
		{TrialStatePending, TrialStateCompleted, false},
		{TrialStateRunning, TrialStatePending, false},
		{TrialStateCompleted, TrialStateRunning, false},
		{TrialStateCompleted, TrialStateCompleted, false},
		{TrialStateStopped, TrialStateRunning, false},
		{TrialStateStopped, TrialStateCompleted, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.valid {
			t.Errorf("TrialState(%q).CanTransitionTo(%q) = %v, want %v", tt.from, tt.to, got, tt.valid)
		}
	}
}

func TestStudyState_IsTerminal(t *testing.T) {
	if StudyStateActive.IsTerminal() {
		t.Error("StudyState(ACTIVE).IsTerminal() = true, want false")
	}
	if !StudyStateFinished.IsTerminal() {
		t.Error("StudyState(FINISHED).IsTerminal() = false, want true")
	}
}

func TestStudyState_CanTransitionTo(t *testing.T) {
	if !StudyStateActive.CanTransitionTo(StudyStateFinished) {
		t.Error("ACTIVE -> FINISHED should be valid")
	}
	if StudyStateFinished.CanTransitionTo(StudyStateActive) {
		t.Error("FINISHED -> ACTIVE should be invalid")
	}
}

func TestWorkerState_CanTransitionTo(t *testing.T) {
	if !WorkerStateOnline.CanTransitionTo(WorkerStateOffline) {
		t.Error("online -> offline should be valid")
	}
	if WorkerStateOffline.CanTransitionTo(WorkerStateOnline) {
		t.Error("offline -> online should be invalid")
	}
}
