package model

import (
	"time"
)

// ParameterSet is an immutable hyperparameter configuration produced by a
// sampler. It is never mutated after creation; identity is per-creation.
type ParameterSet map[string]any

// Clone returns a shallow copy of the parameter set.
func (p ParameterSet) Clone() ParameterSet {
	if p == nil {
		return nil
	}
	out := make(ParameterSet, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Context carries auxiliary values reported alongside an objective
// (losses, wall time, anything the trainer wants recorded).
type Context map[string]any

// Trial is one evaluation of a configuration over a resource interval at a
// single rung. A configuration visits each rung at most once, in order, and
// only via promotion from the rung below.
type Trial struct {
	ID           int          `json:"id"`
	Parameters   ParameterSet `json:"parameters"`
	Rung         int          `json:"rung"`
	ResourceFrom int          `json:"resource_from"`
	ResourceTo   int          `json:"resource_to"`

	// ParentID is the trial this one was promoted from, 0 when freshly sampled.
	ParentID int `json:"parent_id,omitempty"`

	State    TrialState `json:"state"`
	WorkerID string     `json:"worker_id,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Promoted returns true if this trial was created by promotion.
func (t *Trial) Promoted() bool {
	return t.ParentID != 0
}

// Descriptor returns the worker-facing view of the trial.
func (t *Trial) Descriptor() TrialDescriptor {
	return TrialDescriptor{
		ID:           t.ID,
		Parameters:   t.Parameters,
		Rung:         t.Rung,
		ResourceFrom: t.ResourceFrom,
		ResourceTo:   t.ResourceTo,
		ResumeFrom:   t.ParentID,
	}
}

// TrialDescriptor is what a worker receives in answer to a work request:
// the configuration, the resource interval to train, and the lineage
// reference for checkpoint resumption. The scheduler never touches
// checkpoint bytes, only propagates ResumeFrom.
type TrialDescriptor struct {
	ID           int          `json:"id"`
	StudyID      string       `json:"study_id,omitempty"`
	Parameters   ParameterSet `json:"parameters"`
	Rung         int          `json:"rung"`
	ResourceFrom int          `json:"resource_from"`
	ResourceTo   int          `json:"resource_to"`

	// ResumeFrom is the parent trial id whose checkpoint seeds this
	// interval, 0 when the trial starts from scratch.
	ResumeFrom int `json:"resume_from,omitempty"`
}

// Observation is one reported result: a trial finished its resource interval
// at a rung with the given objective value. Observations are append-only,
// never removed or overwritten.
type Observation struct {
	TrialID    int       `json:"trial_id"`
	Rung       int       `json:"rung"`
	Objective  float64   `json:"objective"`
	Context    Context   `json:"context,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}
