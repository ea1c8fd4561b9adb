// Package enrich provides feature-triggered enrichment: a registry of rules
// mapping required attribute-type sets to enrichment steps, and the concrete
// steps that upgrade low-confidence attributes into high-confidence
// identifiers via external lookups.
package enrich

import (
	"context"
	"sync"

	"github.com/scrypster/tether/pkg/types"
)

// Step derives new attributes from a feature bag. Implementations must be
// total: any internal failure (missing credential, provider timeout, open
// circuit, empty input values) yields an empty map, never a panic or error.
// Transient provider errors are the step's own concern and never reach the
// registry or the engine. Steps that perform network I/O own their timeout
// policy.
type Step interface {
	// Enrich returns newly derived attributes keyed by attribute type.
	// It must not mutate features.
	Enrich(ctx context.Context, features types.FeatureBag) map[string]string
}

// StepFunc adapts a function to the Step interface.
type StepFunc func(ctx context.Context, features types.FeatureBag) map[string]string

// Enrich calls f.
func (f StepFunc) Enrich(ctx context.Context, features types.FeatureBag) map[string]string {
	return f(ctx, features)
}

// rule pairs a required attribute-type set with its step.
type rule struct {
	required []string
	step     Step
}

// Registry routes feature bags to the enrichment steps whose requirements
// they satisfy. Rules are evaluated in registration order; duplicate rules
// are kept and applied, so callers may intentionally layer enrichers.
// Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	rules []rule
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a rule firing when every type in required is present in
// the feature bag. The step itself is not validated, and rules with
// identical requirement sets are not deduplicated.
func (r *Registry) Register(required []string, step Step) {
	reqs := make([]string, len(required))
	copy(reqs, required)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, rule{required: reqs, step: step})
}

// ApplicableSteps returns, in registration order, every step whose required
// type set is a subset of the bag's keys. Gating looks only at key presence,
// not value content. The result reflects the bag as passed in: steps are not
// re-evaluated after earlier steps mutate the bag in the same pass (single
// pass, not fixed-point iteration). Returns an empty slice, never an error,
// when nothing matches.
func (r *Registry) ApplicableSteps(features types.FeatureBag) []Step {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var steps []Step
	for _, rule := range r.rules {
		if satisfies(features, rule.required) {
			steps = append(steps, rule.step)
		}
	}
	return steps
}

// Len returns the number of registered rules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules)
}

// satisfies reports whether every required type is a key of the bag.
func satisfies(features types.FeatureBag, required []string) bool {
	for _, attrType := range required {
		if !features.Has(attrType) {
			return false
		}
	}
	return true
}
