package studyfile

import (
	"strings"
	"testing"

	"github.com/1kastner/sherpa/pkg/param"
)

const validYAML = `
name: mnist-tuning
objective: maximize
resource:
  min: 1
  max: 9
  eta: 3
max_finished_trials: 3
seed: 42
trainer: sim
parameters:
  - name: lr
    kind: continuous
    min: 1.0e-5
    max: 0.1
    log_scale: true
  - name: hidden
    kind: discrete
    min: 32
    max: 512
    log_scale: true
  - name: activation
    kind: choice
    values: [relu, tanh, sigmoid]
  - name: depth
    kind: ordinal
    values: [2, 4, 8]
`

func TestParse_Valid(t *testing.T) {
	spec, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if errs := spec.Validate(); len(errs) != 0 {
		t.Fatalf("Validate() = %v, want no errors", errs)
	}

	if spec.Name != "mnist-tuning" {
		t.Errorf("name = %q, want mnist-tuning", spec.Name)
	}
	cfg := spec.SchedulerConfig()
	if cfg.MinResource != 1 || cfg.MaxResource != 9 || cfg.Eta != 3 {
		t.Errorf("scheduler config = %+v, want r=1 R=9 eta=3", cfg)
	}
	if cfg.LowerIsBetter {
		t.Error("LowerIsBetter = true for a maximize objective")
	}

	space := spec.SearchSpace()
	if len(space) != 4 {
		t.Fatalf("len(space) = %d, want 4", len(space))
	}
	if space[0].Kind != param.Continuous || !space[0].LogScale {
		t.Errorf("lr = %+v, want log-scale continuous", space[0])
	}
	if space[1].Kind != param.Discrete || space[1].IntRange.Min != 32 || space[1].IntRange.Max != 512 {
		t.Errorf("hidden = %+v, want discrete [32, 512]", space[1])
	}
}

func TestParse_JSON(t *testing.T) {
	// JSON study specs take the same path as YAML.
	spec, err := Parse([]byte(`{"name":"j","objective":"minimize","resource":{"min":1,"max":4,"eta":2},"max_finished_trials":1,"parameters":[{"name":"x","kind":"continuous","min":0,"max":1}]}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if errs := spec.Validate(); len(errs) != 0 {
		t.Fatalf("Validate() = %v, want no errors", errs)
	}
	if !spec.SchedulerConfig().LowerIsBetter {
		t.Error("LowerIsBetter = false for a minimize objective")
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	spec, err := Parse([]byte(`
objective: upward
resource:
  min: 0
  max: -1
  eta: 1
max_finished_trials: 0
parameters: []
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	errs := spec.Validate()
	wantFields := []string{"name", "objective", "resource.min", "resource.max", "resource.eta", "max_finished_trials", "parameters"}
	for _, field := range wantFields {
		found := false
		for _, e := range errs {
			if e.Field == field {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("no error for field %q in %v", field, errs)
		}
	}
}

func TestValidate_UnknownParameterKind(t *testing.T) {
	spec, _ := Parse([]byte(`
name: x
objective: maximize
resource: {min: 1, max: 2, eta: 2}
max_finished_trials: 1
parameters:
  - name: p
    kind: gaussian
`))
	errs := spec.Validate()
	found := false
	for _, e := range errs {
		if e.Field == "parameters[0].kind" && strings.Contains(e.Message, "gaussian") {
			found = true
		}
	}
	if !found {
		t.Errorf("Validate() = %v, want parameters[0].kind error", errs)
	}
}

func TestParse_Malformed(t *testing.T) {
	if _, err := Parse([]byte("name: [unclosed")); err == nil {
		t.Error("Parse(malformed) = nil error, want error")
	}
}
