package model

import "time"

// Worker represents a remote worker process that pulls and trains trials.
type Worker struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Hostname     string            `json:"hostname"`
	State        WorkerState       `json:"state"`
	Trainer      TrainerType       `json:"trainer"`
	Labels       map[string]string `json:"labels,omitempty"`
	LastSeen     time.Time         `json:"last_seen"`
	CurrentTrial int               `json:"current_trial,omitempty"`
	CurrentStudy string            `json:"current_study,omitempty"`
	RegisteredAt time.Time         `json:"registered_at"`
}

// WorkerState represents the lifecycle state of a Worker.
type WorkerState string

const (
	WorkerStateOnline  WorkerState = "online"
	WorkerStateOffline WorkerState = "offline"
)

// ValidWorkerTransitions defines the allowed state transitions for Workers.
// A worker that misses heartbeats goes offline; re-registration brings it
// back as a fresh id, never by reviving the old row.
var ValidWorkerTransitions = map[WorkerState][]WorkerState{
	WorkerStateOnline: {WorkerStateOffline},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s WorkerState) CanTransitionTo(next WorkerState) bool {
	for _, allowed := range ValidWorkerTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
