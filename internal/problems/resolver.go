package problems

import (
	appErr "eduoj/pkg/errors"
)

// Resolver flattens the configured test-case groups for a problem into one
// ordered list. The order is load-bearing: later pipeline stages pair
// provider results with test cases positionally, so two resolves of the same
// problem must yield identical sequences.
type Resolver struct {
	registry *Registry
}

// NewResolver creates a resolver over the given configuration registry.
func NewResolver(registry *Registry) *Resolver {
	return &Resolver{registry: registry}
}

// Resolve returns the test cases for a problem: groups in configured order,
// open cases before hidden ones within each group, declared order within
// each subset. An unknown problem id yields an empty slice, not an error.
func (r *Resolver) Resolve(problemID string) ([]TestCase, error) {
	cfg := r.registry.Current()
	if cfg == nil {
		return nil, appErr.New(appErr.ConfigNotLoaded)
	}

	var cases []TestCase
	for _, problem := range cfg.Puzzles {
		if problem.ID != problemID {
			continue
		}
		for _, group := range problem.TestCases {
			cases = append(cases, group.Open...)
			cases = append(cases, group.Hidden...)
		}
	}
	return cases, nil
}
