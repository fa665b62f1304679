package asha

import (
	"sync"

	"github.com/1kastner/sherpa/pkg/model"
)

// ResultStore is the append-only log of reported observations, exposed for
// best-result queries. Safe for concurrent use.
type ResultStore struct {
	mu  sync.RWMutex
	obs []model.Observation
}

// NewResultStore creates an empty result store.
func NewResultStore() *ResultStore {
	return &ResultStore{}
}

// Append records an observation. Observations are never removed or rewritten.
func (s *ResultStore) Append(obs model.Observation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.obs = append(s.obs, obs)
}

// Len returns the number of recorded observations.
func (s *ResultStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.obs)
}

// Observations returns a copy of the log in append order.
func (s *ResultStore) Observations() []model.Observation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Observation, len(s.obs))
	copy(out, s.obs)
	return out
}

// Best returns the extreme observation across all rungs, comparing by
// objective value alone. Exact ties go to the higher rung (prefer results
// validated on larger budgets), then to the lower trial id.
func (s *ResultStore) Best(lowerIsBetter bool) (model.Observation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.obs) == 0 {
		return model.Observation{}, false
	}
	best := s.obs[0]
	for _, o := range s.obs[1:] {
		if beats(o, best, lowerIsBetter) {
			best = o
		}
	}
	return best, true
}

// beats reports whether a should displace b as the best observation.
func beats(a, b model.Observation, lowerIsBetter bool) bool {
	if a.Objective != b.Objective {
		if lowerIsBetter {
			return a.Objective < b.Objective
		}
		return a.Objective > b.Objective
	}
	if a.Rung != b.Rung {
		return a.Rung > b.Rung
	}
	return a.TrialID < b.TrialID
}
