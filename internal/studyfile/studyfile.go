// Package studyfile loads and validates study definition files. A study
// definition names the objective direction, the resource ladder, the
// stopping criterion, and the parameter search space; it is the document a
// user submits to start a search.
package studyfile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/1kastner/sherpa/pkg/asha"
	"github.com/1kastner/sherpa/pkg/model"
	"github.com/1kastner/sherpa/pkg/param"
)

// Spec is a parsed study definition.
type Spec struct {
	Name      string `yaml:"name" json:"name"`
	Objective string `yaml:"objective" json:"objective"` // maximize or minimize

	Resource struct {
		Min int `yaml:"min" json:"min"`
		Max int `yaml:"max" json:"max"`
		Eta int `yaml:"eta" json:"eta"`
	} `yaml:"resource" json:"resource"`

	MaxFinishedTrials int   `yaml:"max_finished_trials" json:"max_finished_trials"`
	Seed              int64 `yaml:"seed,omitempty" json:"seed,omitempty"`

	// Trainer hints which trainer workers should run for this study.
	Trainer string `yaml:"trainer,omitempty" json:"trainer,omitempty"`

	Parameters []ParameterSpec `yaml:"parameters" json:"parameters"`

	Labels map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
}

// ParameterSpec is one search-space dimension as written in the file.
// Min/Max apply to continuous and discrete kinds, Values to choice and
// ordinal kinds.
type ParameterSpec struct {
	Name     string  `yaml:"name" json:"name"`
	Kind     string  `yaml:"kind" json:"kind"`
	Min      float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max      float64 `yaml:"max,omitempty" json:"max,omitempty"`
	Values   []any   `yaml:"values,omitempty" json:"values,omitempty"`
	LogScale bool    `yaml:"log_scale,omitempty" json:"log_scale,omitempty"`
}

// Load reads and parses a study definition file.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read study file: %w", err)
	}
	return Parse(data)
}

// Parse parses a study definition document. YAML is a superset of JSON, so
// both serializations land here.
func Parse(data []byte) (*Spec, error) {
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse study file: %w", err)
	}
	return &spec, nil
}

// Validate checks the definition and returns every problem found, one
// FieldError per offending field.
func (s *Spec) Validate() []model.FieldError {
	var errs []model.FieldError
	add := func(field, msg string) {
		errs = append(errs, model.FieldError{Field: field, Message: msg})
	}

	if s.Name == "" {
		add("name", "name is required")
	}
	switch s.Objective {
	case "maximize", "minimize":
	case "":
		add("objective", "objective is required (maximize or minimize)")
	default:
		add("objective", fmt.Sprintf("unknown objective %q (want maximize or minimize)", s.Objective))
	}

	if s.Resource.Min < 1 {
		add("resource.min", "min resource must be >= 1")
	}
	if s.Resource.Max < s.Resource.Min {
		add("resource.max", "max resource must be >= min resource")
	}
	if s.Resource.Eta < 2 {
		add("resource.eta", "eta must be >= 2")
	}
	if s.MaxFinishedTrials < 1 {
		add("max_finished_trials", "max finished trials must be >= 1")
	}

	if len(s.Parameters) == 0 {
		add("parameters", "at least one parameter is required")
	}
	space, convErrs := s.searchSpace()
	errs = append(errs, convErrs...)
	if len(convErrs) == 0 && len(space) > 0 {
		if err := space.Validate(); err != nil {
			add("parameters", err.Error())
		}
	}

	return errs
}

// SchedulerConfig converts the definition into a scheduler configuration.
func (s *Spec) SchedulerConfig() asha.Config {
	return asha.Config{
		MinResource:       s.Resource.Min,
		MaxResource:       s.Resource.Max,
		Eta:               s.Resource.Eta,
		MaxFinishedTrials: s.MaxFinishedTrials,
		LowerIsBetter:     s.Objective == "minimize",
	}
}

// SearchSpace converts the parameter list into a param.Space. Call Validate
// first; conversion problems surface there.
func (s *Spec) SearchSpace() param.Space {
	space, _ := s.searchSpace()
	return space
}

func (s *Spec) searchSpace() (param.Space, []model.FieldError) {
	var errs []model.FieldError
	space := make(param.Space, 0, len(s.Parameters))
	for i, ps := range s.Parameters {
		field := fmt.Sprintf("parameters[%d]", i)
		p := param.Parameter{Name: ps.Name, LogScale: ps.LogScale}
		switch ps.Kind {
		case "continuous":
			p.Kind = param.Continuous
			p.Range = param.Interval[float64]{Min: ps.Min, Max: ps.Max}
		case "discrete":
			p.Kind = param.Discrete
			p.IntRange = param.Interval[int]{Min: int(ps.Min), Max: int(ps.Max)}
		case "choice":
			p.Kind = param.Choice
			p.Values = ps.Values
		case "ordinal":
			p.Kind = param.Ordinal
			p.Values = ps.Values
		default:
			errs = append(errs, model.FieldError{
				Field:   field + ".kind",
				Message: fmt.Sprintf("unknown kind %q (want continuous, discrete, choice, or ordinal)", ps.Kind),
			})
			continue
		}
		space = append(space, p)
	}
	return space, errs
}
