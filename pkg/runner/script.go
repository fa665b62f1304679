package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dop251/goja"

	"github.com/1kastner/sherpa/pkg/model"
)

// ScriptTrainer runs a user-supplied JavaScript training function. The script
// must define:
//
//	function train(params, from, to, state) {
//	    return {objective: 0.9, context: {...}, state: {...}};
//	}
//
// params is the configuration, [from, to] the resource interval, and state
// the value a promoted parent returned, or null for a fresh trial. Whatever
// the function returns under state is carried forward as the checkpoint.
type ScriptTrainer struct {
	source string
}

// NewScriptTrainer compiles the script once to surface syntax errors early.
func NewScriptTrainer(source string) (*ScriptTrainer, error) {
	if source == "" {
		return nil, errors.New("script trainer requires a script")
	}
	vm := goja.New()
	if _, err := vm.RunString(source); err != nil {
		return nil, fmt.Errorf("compile script: %w", err)
	}
	if fn := vm.Get("train"); fn == nil || goja.IsUndefined(fn) {
		return nil, errors.New("script must define a train function")
	}
	return &ScriptTrainer{source: source}, nil
}

type scriptResult struct {
	Objective float64       `json:"objective"`
	Context   model.Context `json:"context"`
	State     any           `json:"state"`
}

// Train evaluates the script's train function for one trial. Each call gets
// a fresh VM, so scripts cannot leak state between trials except through the
// checkpoint they return.
func (s *ScriptTrainer) Train(ctx context.Context, desc model.TrialDescriptor, resume []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vm := goja.New()
	// Interrupt the VM when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	if _, err := vm.RunString(s.source); err != nil {
		return nil, fmt.Errorf("load script: %w", err)
	}
	var train func(params map[string]any, from, to int, state any) (goja.Value, error)
	if err := vm.ExportTo(vm.Get("train"), &train); err != nil {
		return nil, fmt.Errorf("script train function: %w", err)
	}

	var state any
	if len(resume) > 0 {
		if err := json.Unmarshal(resume, &state); err != nil {
			return nil, fmt.Errorf("decode checkpoint: %w", err)
		}
	}

	value, err := train(desc.Parameters, desc.ResourceFrom, desc.ResourceTo, state)
	if err != nil {
		return nil, fmt.Errorf("train(): %w", err)
	}

	// Round-trip through JSON to get plain Go values out of the VM.
	encoded, err := json.Marshal(value.Export())
	if err != nil {
		return nil, fmt.Errorf("encode script result: %w", err)
	}
	var res scriptResult
	if err := json.Unmarshal(encoded, &res); err != nil {
		return nil, fmt.Errorf("train() must return {objective, context, state}: %w", err)
	}

	result := &Result{Objective: res.Objective, Context: res.Context}
	if res.State != nil {
		checkpoint, err := json.Marshal(res.State)
		if err != nil {
			return nil, fmt.Errorf("encode checkpoint: %w", err)
		}
		result.Checkpoint = checkpoint
	}
	return result, nil
}
