package param

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/1kastner/sherpa/pkg/model"
)

// Sampler draws configurations from a Space. A sample never fails on a
// validated space: every draw is a syntactically valid point. The rng sits
// behind a mutex so concurrent workers can share one sampler; for a fixed
// seed the sequence of samples is deterministic.
type Sampler struct {
	mu    sync.Mutex
	rng   *rand.Rand
	space Space
}

// NewSampler creates a sampler for the space with the given seed.
func NewSampler(space Space, seed int64) (*Sampler, error) {
	if err := space.Validate(); err != nil {
		return nil, fmt.Errorf("invalid search space: %w", err)
	}
	return &Sampler{
		rng:   rand.New(rand.NewSource(seed)),
		space: space,
	}, nil
}

// Space returns the sampler's search space.
func (s *Sampler) Space() Space {
	return s.space
}

// Sample draws a fresh configuration, one value per parameter.
func (s *Sampler) Sample() model.ParameterSet {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(model.ParameterSet, len(s.space))
	for _, p := range s.space {
		out[p.Name] = s.draw(p)
	}
	return out
}

func (s *Sampler) draw(p Parameter) any {
	switch p.Kind {
	case Continuous:
		if p.LogScale {
			lo, hi := math.Log(p.Range.Min), math.Log(p.Range.Max)
			return math.Exp(lo + s.rng.Float64()*(hi-lo))
		}
		return p.Range.Min + s.rng.Float64()*(p.Range.Max-p.Range.Min)
	case Discrete:
		if p.LogScale {
			lo, hi := math.Log(float64(p.IntRange.Min)), math.Log(float64(p.IntRange.Max))
			v := int(math.Round(math.Exp(lo + s.rng.Float64()*(hi-lo))))
			if v < p.IntRange.Min {
				v = p.IntRange.Min
			}
			if v > p.IntRange.Max {
				v = p.IntRange.Max
			}
			return v
		}
		return p.IntRange.Min + s.rng.Intn(p.IntRange.Max-p.IntRange.Min+1)
	case Choice, Ordinal:
		return p.Values[s.rng.Intn(len(p.Values))]
	}
	// Validate rejects unknown kinds before a Sampler exists.
	panic(fmt.Sprintf("param: unknown kind %q", p.Kind))
}
