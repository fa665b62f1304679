package model

// TrialState represents the lifecycle state of a Trial.
type TrialState string

const (
	TrialStatePending   TrialState = "PENDING"
	TrialStateRunning   TrialState = "RUNNING"
	TrialStateCompleted TrialState = "COMPLETED"
	TrialStateStopped   TrialState = "STOPPED"
)

// String returns the string representation of the trial state.
func (s TrialState) String() string {
	return string(s)
}

// IsTerminal returns true if the trial is in a final state.
func (s TrialState) IsTerminal() bool {
	switch s {
	case TrialStateCompleted, TrialStateStopped:
		return true
	}
	return false
}

// ValidTrialTransitions defines the allowed state transitions for Trials.
// STOPPED is reachable from any non-terminal state (abandonment); COMPLETED
// only from RUNNING, so a result can never land twice.
var ValidTrialTransitions = map[TrialState][]TrialState{
	TrialStatePending: {TrialStateRunning, TrialStateStopped},
	TrialStateRunning: {TrialStateCompleted, TrialStateStopped},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s TrialState) CanTransitionTo(next TrialState) bool {
	for _, allowed := range ValidTrialTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// StudyState represents the lifecycle state of a Study.
type StudyState string

const (
	StudyStateActive   StudyState = "ACTIVE"
	StudyStateFinished StudyState = "FINISHED"
)

// String returns the string representation of the study state.
func (s StudyState) String() string {
	return string(s)
}

// IsTerminal returns true if the study is in a final state.
func (s StudyState) IsTerminal() bool {
	return s == StudyStateFinished
}

// ValidStudyTransitions defines the allowed state transitions for Studies.
var ValidStudyTransitions = map[StudyState][]StudyState{
	StudyStateActive: {StudyStateFinished},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s StudyState) CanTransitionTo(next StudyState) bool {
	for _, allowed := range ValidStudyTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TrainerType identifies which trainer implementation a worker runs.
type TrainerType string

const (
	TrainerSim     TrainerType = "sim"
	TrainerScript  TrainerType = "script"
	TrainerCommand TrainerType = "command"
)
