// Package param models the hyperparameter search space and its sampler.
// A Space is a list of named parameters; a Sampler draws one value per
// parameter to produce a configuration. The scheduler treats sampled
// configurations as opaque, so everything search-space-specific lives here.
package param

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

// Kind identifies how a parameter's values are drawn.
type Kind string

const (
	// Continuous draws a float from a closed interval.
	Continuous Kind = "continuous"
	// Discrete draws an integer from a closed interval.
	Discrete Kind = "discrete"
	// Choice draws one of an unordered set of values.
	Choice Kind = "choice"
	// Ordinal draws one of an ordered list of values.
	Ordinal Kind = "ordinal"
)

// Interval is a closed numeric range [Min, Max].
type Interval[T constraints.Integer | constraints.Float] struct {
	Min T
	Max T
}

// Valid reports whether the interval is non-empty.
func (iv Interval[T]) Valid() bool {
	return iv.Min <= iv.Max
}

// Contains reports whether v lies inside the interval.
func (iv Interval[T]) Contains(v T) bool {
	return iv.Min <= v && v <= iv.Max
}

// Parameter describes one dimension of the search space. Range is used by
// Continuous parameters, IntRange by Discrete ones, Values by Choice and
// Ordinal ones. LogScale draws numeric values log-uniformly, which suits
// quantities like learning rates that span orders of magnitude.
type Parameter struct {
	Name     string
	Kind     Kind
	Range    Interval[float64]
	IntRange Interval[int]
	Values   []any
	LogScale bool
}

// Validate checks the parameter definition.
func (p Parameter) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("parameter name is required")
	}
	switch p.Kind {
	case Continuous:
		if !p.Range.Valid() {
			return fmt.Errorf("parameter %s: range [%v, %v] is empty", p.Name, p.Range.Min, p.Range.Max)
		}
		if p.LogScale && p.Range.Min <= 0 {
			return fmt.Errorf("parameter %s: log scale requires min > 0, got %v", p.Name, p.Range.Min)
		}
	case Discrete:
		if !p.IntRange.Valid() {
			return fmt.Errorf("parameter %s: range [%d, %d] is empty", p.Name, p.IntRange.Min, p.IntRange.Max)
		}
		if p.LogScale && p.IntRange.Min <= 0 {
			return fmt.Errorf("parameter %s: log scale requires min > 0, got %d", p.Name, p.IntRange.Min)
		}
	case Choice, Ordinal:
		if len(p.Values) == 0 {
			return fmt.Errorf("parameter %s: %s needs at least one value", p.Name, p.Kind)
		}
		if p.LogScale {
			return fmt.Errorf("parameter %s: log scale does not apply to %s", p.Name, p.Kind)
		}
	default:
		return fmt.Errorf("parameter %s: unknown kind %q", p.Name, p.Kind)
	}
	return nil
}

// Space is the full search space of a study.
type Space []Parameter

// Validate checks every parameter and rejects duplicate names.
func (s Space) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("search space is empty")
	}
	seen := make(map[string]bool, len(s))
	for _, p := range s {
		if err := p.Validate(); err != nil {
			return err
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate parameter %s", p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}
