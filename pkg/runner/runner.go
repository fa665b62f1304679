// Package runner contains the trainer implementations workers use to
// evaluate a configuration over a resource interval, plus an in-process pool
// for driving a scheduler without a server.
package runner

import (
	"context"
	"fmt"

	"github.com/1kastner/sherpa/pkg/model"
)

// Result is what a trainer hands back after training a trial to the end of
// its resource interval.
type Result struct {
	// Objective is the scalar the scheduler ranks on.
	Objective float64
	// Context carries auxiliary values to record with the observation.
	Context model.Context
	// Checkpoint is the opaque state to seed a promoted continuation.
	// Trainers that cannot resume may leave it nil.
	Checkpoint []byte
}

// Trainer evaluates one trial over its resource interval. resume holds the
// parent trial's checkpoint for promoted trials, nil for fresh ones.
// Implementations must be deterministic given the same descriptor and resume
// state when they claim to be.
type Trainer interface {
	Train(ctx context.Context, desc model.TrialDescriptor, resume []byte) (*Result, error)
}

// Config bundles the inputs trainer constructors may need.
type Config struct {
	// Script is the program source for the script trainer.
	Script string
	// Command is the argv for the command trainer.
	Command []string
	// Seed makes the sim trainer's noise reproducible.
	Seed int64
}

// New builds a trainer by type.
func New(kind model.TrainerType, cfg Config) (Trainer, error) {
	switch kind {
	case model.TrainerSim:
		return NewSimTrainer(cfg.Seed), nil
	case model.TrainerScript:
		return NewScriptTrainer(cfg.Script)
	case model.TrainerCommand:
		return NewCommandTrainer(cfg.Command)
	default:
		return nil, fmt.Errorf("unknown trainer type %q", kind)
	}
}
