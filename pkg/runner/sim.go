package runner

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"sort"

	"github.com/1kastner/sherpa/pkg/model"
)

// SimTrainer synthesizes a learning curve per configuration: the objective
// climbs toward a configuration-specific asymptote as resource grows, so
// better configurations keep winning at higher rungs. Fully deterministic
// for a given descriptor, which makes it useful for tests and demos.
type SimTrainer struct {
	seed int64
}

// NewSimTrainer creates a sim trainer. The seed perturbs the curve shapes so
// two studies over the same space do not look identical.
func NewSimTrainer(seed int64) *SimTrainer {
	return &SimTrainer{seed: seed}
}

// simCheckpoint is the resumable state: how far the curve was trained.
type simCheckpoint struct {
	TrialID   int `json:"trial_id"`
	TrainedTo int `json:"trained_to"`
}

// Train evaluates the synthetic curve at the end of the resource interval.
func (s *SimTrainer) Train(ctx context.Context, desc model.TrialDescriptor, resume []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(resume) > 0 {
		var cp simCheckpoint
		if err := json.Unmarshal(resume, &cp); err != nil {
			return nil, fmt.Errorf("decode checkpoint: %w", err)
		}
		if cp.TrainedTo != desc.ResourceFrom {
			return nil, fmt.Errorf("checkpoint trained to %d, interval starts at %d",
				cp.TrainedTo, desc.ResourceFrom)
		}
	}

	asymptote, rate := s.curveShape(desc.Parameters)
	objective := asymptote * (1 - math.Exp(-rate*float64(desc.ResourceTo)))

	checkpoint, err := json.Marshal(simCheckpoint{TrialID: desc.ID, TrainedTo: desc.ResourceTo})
	if err != nil {
		return nil, err
	}
	return &Result{
		Objective: objective,
		Context: model.Context{
			"asymptote": asymptote,
			"resource":  desc.ResourceTo,
		},
		Checkpoint: checkpoint,
	}, nil
}

// curveShape derives a stable (asymptote, rate) pair from the configuration.
func (s *SimTrainer) curveShape(params model.ParameterSet) (float64, float64) {
	h := fnv.New64a()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(s.seed))
	h.Write(buf[:])

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte(k))
		fmt.Fprintf(h, "%v", params[k])
	}

	sum := h.Sum64()
	asymptote := 0.5 + 0.5*float64(sum%10000)/10000.0 // in [0.5, 1)
	rate := 0.2 + 0.8*float64((sum/10000)%1000)/1000.0
	return asymptote, rate
}
