// Package engine implements the weighted-evidence resolution engine: it
// scores a feature bag against the attribute index and decides whether the
// observation merges into an existing entity or mints a new one.
package engine

import (
	"context"
	"fmt"

	"github.com/scrypster/tether/internal/storage"
	"github.com/scrypster/tether/pkg/types"
)

const (
	// DefaultWeight is the score contribution of an attribute type not
	// present in the weight table. Scoring never fails on novel types.
	DefaultWeight = 0.1

	// DefaultMergeThreshold is the minimum accumulated score required to
	// attach new evidence to an existing entity instead of minting a new
	// one. A score equal to the threshold merges.
	DefaultMergeThreshold = 0.9
)

// Weights maps attribute types to how uniquely identifying they are, in
// (0, 1]. Higher weight = more unique.
type Weights map[string]float64

// DefaultWeights returns the reference weight table. EMAIL and PHONE are
// near-unique; bare names and places are weak evidence on their own.
// MAPS_PLACE_ID is a derived identifier and alone clears the merge
// threshold.
func DefaultWeights() Weights {
	return Weights{
		types.AttrPerson:      0.4,
		types.AttrOrg:         0.5,
		types.AttrGPE:         0.3,
		types.AttrEmail:       0.9,
		types.AttrPhone:       0.8,
		types.AttrMapsPlaceID: 0.95,
	}
}

// Weight returns the weight for an attribute type, falling back to
// DefaultWeight for unrecognized types.
func (w Weights) Weight(attrType string) float64 {
	if weight, ok := w[attrType]; ok {
		return weight
	}
	return DefaultWeight
}

// Resolution is the full outcome of one resolve call, including the
// candidate score map for the activity feed and debugging.
type Resolution struct {
	// EntityID is the resolved identity: an existing entity when Merged,
	// a freshly minted one otherwise.
	EntityID types.EntityID

	// Merged reports whether the bag attached to an existing entity.
	Merged bool

	// Scores holds the accumulated confidence per candidate entity.
	Scores map[types.EntityID]float64

	// BestScore is the winning candidate's score, 0 when no candidates.
	BestScore float64
}

// Resolver scores feature bags against the attribute index. It is stateless
// aside from its weight table and index handle, owns no persistent data, and
// performs no writes: indexing the resolved bag is the caller's concern,
// executed after Resolve returns.
//
// Safe for concurrent use. Two concurrent calls describing the same real
// entity may both see zero prior evidence and mint distinct identifiers;
// serializing resolve+insert per conflicting value is the caller's choice.
type Resolver struct {
	index     storage.AttributeIndex
	weights   Weights
	threshold float64
}

// NewResolver creates a resolver over the given index. A nil weights table
// falls back to DefaultWeights; a non-positive threshold falls back to
// DefaultMergeThreshold.
func NewResolver(index storage.AttributeIndex, weights Weights, threshold float64) *Resolver {
	if weights == nil {
		weights = DefaultWeights()
	}
	if threshold <= 0 {
		threshold = DefaultMergeThreshold
	}
	return &Resolver{
		index:     index,
		weights:   weights,
		threshold: threshold,
	}
}

// Resolve returns the entity identifier for the given feature bag.
func (r *Resolver) Resolve(ctx context.Context, bag types.FeatureBag) (types.EntityID, error) {
	res, err := r.ResolveTrace(ctx, bag)
	if err != nil {
		return "", err
	}
	return res.EntityID, nil
}

// ResolveTrace resolves the bag and returns the decision together with the
// candidate score map.
//
// For every (type, value) pair in the bag, entities previously indexed under
// ANY attribute type with that value accrue weight(type). An entity matched
// via two different bag entries sharing a value accrues both weights; the
// contributions are summed, not capped or averaged. If the best candidate
// reaches the merge threshold (>= merges), it wins; ties between equal top
// scores go to the lexicographically smallest entity identifier, which keeps
// the decision independent of map iteration order. Otherwise a new entity is
// minted — including for an empty bag.
func (r *Resolver) ResolveTrace(ctx context.Context, bag types.FeatureBag) (*Resolution, error) {
	scores := make(map[types.EntityID]float64)

	for _, attr := range bag.Attributes() {
		candidates, err := r.index.LookupEntitiesByValue(ctx, attr.Value)
		if err != nil {
			return nil, fmt.Errorf("resolve: candidate lookup for %s: %w", attr.Type, err)
		}
		weight := r.weights.Weight(attr.Type)
		for _, id := range candidates {
			scores[id] += weight
		}
	}

	res := &Resolution{Scores: scores}

	var best types.EntityID
	for id, score := range scores {
		if score > res.BestScore || (score == res.BestScore && best != "" && id < best) {
			res.BestScore = score
			best = id
		}
	}

	if best != "" && res.BestScore >= r.threshold {
		res.EntityID = best
		res.Merged = true
		return res, nil
	}

	res.EntityID = types.NewEntityID()
	return res, nil
}
