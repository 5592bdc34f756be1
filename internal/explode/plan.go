package explode

import (
	"fmt"

	"github.com/leapstack-labs/nbexplode/internal/notebook"
	"github.com/leapstack-labs/nbexplode/internal/params"
	"github.com/leapstack-labs/nbexplode/internal/pyrepr"
	"go.starlark.net/starlark"
)

// Assignment is one rendered parameter line.
type Assignment struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Axis lists the candidate values of one parameter.
type Axis struct {
	Name   string   `json:"name" yaml:"name"`
	Values []string `json:"values" yaml:"values"`
}

// Combination is one element of the product as it would be written.
type Combination struct {
	Index       int          `json:"index" yaml:"index"`
	File        string       `json:"file" yaml:"file"`
	Assignments []Assignment `json:"assignments" yaml:"assignments"`
}

// Plan lists what Explode would write for a notebook, without writing it.
type Plan struct {
	Source       string        `json:"source" yaml:"source"`
	Parameters   []string      `json:"parameters" yaml:"parameters"`
	Axes         []Axis        `json:"axes,omitempty" yaml:"axes,omitempty"`
	Save         []string      `json:"save,omitempty" yaml:"save,omitempty"`
	Skipped      bool          `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Combinations []Combination `json:"combinations" yaml:"combinations"`
}

// Plan evaluates the parameters of nb and lists every combination with the
// file it would be written to.
func (e *Exploder) Plan(source string, nb *notebook.Notebook) (*Plan, error) {
	plan := &Plan{Source: source, Parameters: []string{}, Combinations: []Combination{}}

	first, err := nb.FirstCell()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	if !HasParameters(first.Source()) {
		e.logger.Warn("no parameters found in this notebook", "source", source)
		plan.Skipped = true
		return plan, nil
	}

	set, err := params.Parse(source, first.Source(), e.logger)
	if err != nil {
		return nil, err
	}
	plan.Parameters = set.Names()
	plan.Save = set.Save()

	names := plan.Parameters
	for _, name := range names {
		axis := Axis{Name: name, Values: []string{}}
		for _, v := range set.Values(name) {
			repr, err := pyrepr.Repr(v)
			if err != nil {
				return nil, fmt.Errorf("%s: parameter %q: %w", source, name, err)
			}
			axis.Values = append(axis.Values, repr)
		}
		plan.Axes = append(plan.Axes, axis)
	}
	err = set.Product(func(i int, combo []starlark.Value) error {
		c := Combination{
			Index:       i,
			File:        OutputPath(source, e.prefix, i),
			Assignments: make([]Assignment, len(combo)),
		}
		for j, v := range combo {
			repr, err := pyrepr.Repr(v)
			if err != nil {
				return fmt.Errorf("%s: parameter %q: %w", source, names[j], err)
			}
			c.Assignments[j] = Assignment{Name: names[j], Value: repr}
		}
		plan.Combinations = append(plan.Combinations, c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// PlanFile reads the notebook at path and plans it.
func (e *Exploder) PlanFile(path string) (*Plan, error) {
	nb, err := notebook.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return e.Plan(path, nb)
}
