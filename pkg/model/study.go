package model

import (
	"encoding/json"
	"time"
)

// Study is one hyperparameter search: a resource ladder, a parameter space
// and a stopping criterion. Trials and observations hang off it.
type Study struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	State StudyState `json:"state"`

	// Search settings, echoed from the study definition.
	LowerIsBetter     bool  `json:"lower_is_better"`
	MinResource       int   `json:"min_resource"`
	MaxResource       int   `json:"max_resource"`
	Eta               int   `json:"eta"`
	MaxFinishedTrials int   `json:"max_finished_trials"`
	Seed              int64 `json:"seed,omitempty"`

	// Definition is the full study definition (parameter space included),
	// kept verbatim so a study can be rebuilt after a restart.
	Definition json.RawMessage `json:"definition,omitempty"`

	Labels      map[string]string `json:"labels,omitempty"`
	SubmittedBy string            `json:"submitted_by,omitempty"`

	TrialSummary TrialSummary `json:"trial_summary,omitempty"` // Computed field, not stored

	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// TrialSummary provides an aggregate count of trial states within a Study.
type TrialSummary struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Stopped   int `json:"stopped"`

	// TopRungCompleted counts completions at the highest rung; the study
	// finishes when it reaches MaxFinishedTrials.
	TopRungCompleted int `json:"top_rung_completed"`
}

// ComputeTrialSummary calculates the TrialSummary from a slice of Trials.
func ComputeTrialSummary(trials []*Trial, topRung int) TrialSummary {
	s := TrialSummary{Total: len(trials)}
	for _, t := range trials {
		switch t.State {
		case TrialStatePending:
			s.Pending++
		case TrialStateRunning:
			s.Running++
		case TrialStateCompleted:
			s.Completed++
			if t.Rung == topRung {
				s.TopRungCompleted++
			}
		case TrialStateStopped:
			s.Stopped++
		}
	}
	return s
}
