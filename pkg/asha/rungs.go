package asha

import (
	"sort"

	"github.com/1kastner/sherpa/pkg/model"
)

// RungBudgets computes the resource ladder for a study: rung k trains to
// minResource * eta^k, and the top rung is clamped to exactly maxResource so
// the most-promoted configurations always reach the full budget.
func RungBudgets(minResource, maxResource, eta int) []int {
	levels := []int{minResource}
	for next := minResource; next <= maxResource/eta; {
		next *= eta
		levels = append(levels, next)
	}
	levels[len(levels)-1] = maxResource
	return levels
}

// rungObservation is one recorded result at a rung plus its promotion flag.
type rungObservation struct {
	trialID   int
	objective float64
	promoted  bool
}

// rungLevel accumulates observations for a single rung in arrival order.
// Observations are append-only, never removed or overwritten.
type rungLevel struct {
	resource      int
	observations  []rungObservation
	promotedCount int
}

// ranked returns observation indices ordered best-first: by objective in the
// configured direction, ties by lower trial id.
func (l *rungLevel) ranked(lowerIsBetter bool) []int {
	idx := make([]int, len(l.observations))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		oa, ob := l.observations[idx[a]], l.observations[idx[b]]
		if oa.objective != ob.objective {
			if lowerIsBetter {
				return oa.objective < ob.objective
			}
			return oa.objective > ob.objective
		}
		return oa.trialID < ob.trialID
	})
	return idx
}

// RungRegistry holds completed observations per rung and computes promotion
// eligibility. Eligibility uses only the observations recorded so far: with
// eta=3, two rung-0 observations promote nothing, and the instant a third
// arrives exactly one promotion becomes available. Not safe for concurrent
// use on its own; the Scheduler serializes access.
type RungRegistry struct {
	eta           int
	lowerIsBetter bool
	rungs         []*rungLevel
}

// NewRungRegistry creates a registry for the given resource ladder.
func NewRungRegistry(budgets []int, eta int, lowerIsBetter bool) *RungRegistry {
	rungs := make([]*rungLevel, len(budgets))
	for i, res := range budgets {
		rungs[i] = &rungLevel{resource: res}
	}
	return &RungRegistry{eta: eta, lowerIsBetter: lowerIsBetter, rungs: rungs}
}

// TopRung returns the index of the highest rung.
func (g *RungRegistry) TopRung() int {
	return len(g.rungs) - 1
}

func (g *RungRegistry) level(rung int) (*rungLevel, error) {
	if rung < 0 || rung >= len(g.rungs) {
		return nil, &model.InvalidRungError{Rung: rung, Max: g.TopRung()}
	}
	return g.rungs[rung], nil
}

// Record appends an observation to a rung's list.
func (g *RungRegistry) Record(rung, trialID int, objective float64) error {
	l, err := g.level(rung)
	if err != nil {
		return err
	}
	l.observations = append(l.observations, rungObservation{trialID: trialID, objective: objective})
	return nil
}

// Count returns the number of observations recorded at a rung.
func (g *RungRegistry) Count(rung int) (int, error) {
	l, err := g.level(rung)
	if err != nil {
		return 0, err
	}
	return len(l.observations), nil
}

// PromotableCount returns floor(observations/eta): how many configurations
// from this rung are currently eligible for promotion to the next. Recomputed
// from the live count on every call, it only ever grows.
func (g *RungRegistry) PromotableCount(rung int) (int, error) {
	l, err := g.level(rung)
	if err != nil {
		return 0, err
	}
	return len(l.observations) / g.eta, nil
}

// NextPromotion returns the trial id of the best-ranked observation at the
// rung that has not yet yielded a promotion, if the eligible count exceeds
// the number already promoted. It is a pure query; the caller consumes the
// promotion with MarkPromoted once the promoted trial exists.
func (g *RungRegistry) NextPromotion(rung int) (int, bool, error) {
	l, err := g.level(rung)
	if err != nil {
		return 0, false, err
	}
	if len(l.observations)/g.eta <= l.promotedCount {
		return 0, false, nil
	}
	for _, i := range l.ranked(g.lowerIsBetter) {
		if !l.observations[i].promoted {
			return l.observations[i].trialID, true, nil
		}
	}
	return 0, false, nil
}

// MarkPromoted records that a rung observation has yielded its promotion.
// Each observation is the source of at most one promotion, ever.
func (g *RungRegistry) MarkPromoted(rung, trialID int) error {
	l, err := g.level(rung)
	if err != nil {
		return err
	}
	for i := range l.observations {
		o := &l.observations[i]
		if o.trialID != trialID {
			continue
		}
		if o.promoted {
			return &model.InvalidPromotionError{
				ParentID:   trialID,
				ParentRung: rung,
				TargetRung: rung + 1,
				Reason:     "observation already promoted",
			}
		}
		o.promoted = true
		l.promotedCount++
		return nil
	}
	return model.NewTrialNotFound(trialID)
}

// RungSummary is a read-only snapshot of one rung's bookkeeping.
type RungSummary struct {
	Rung         int      `json:"rung"`
	Resource     int      `json:"resource"`
	Observations int      `json:"observations"`
	Promotable   int      `json:"promotable"`
	Promoted     int      `json:"promoted"`
	Best         *float64 `json:"best,omitempty"`
}

// Summaries returns a snapshot of every rung, cheapest first.
func (g *RungRegistry) Summaries() []RungSummary {
	out := make([]RungSummary, len(g.rungs))
	for k, l := range g.rungs {
		s := RungSummary{
			Rung:         k,
			Resource:     l.resource,
			Observations: len(l.observations),
			Promotable:   len(l.observations) / g.eta,
			Promoted:     l.promotedCount,
		}
		if ranked := l.ranked(g.lowerIsBetter); len(ranked) > 0 {
			best := l.observations[ranked[0]].objective
			s.Best = &best
		}
		out[k] = s
	}
	return out
}
