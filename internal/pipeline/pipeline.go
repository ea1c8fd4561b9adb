// Package pipeline orchestrates the extract → enrich → resolve → index flow.
// It owns the feature bag's lifetime: the bag is built per input item,
// sharpened by the applicable enrichment steps, handed to the resolution
// engine, and finally persisted entry by entry into the attribute index.
package pipeline

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log"
	"sync"

	"github.com/scrypster/tether/internal/engine"
	"github.com/scrypster/tether/internal/enrich"
	"github.com/scrypster/tether/internal/extract"
	"github.com/scrypster/tether/internal/storage"
	"github.com/scrypster/tether/pkg/types"
)

// Event describes one completed resolution, published to the optional
// OnResolved callback. A websocket hub running in the same process can
// subscribe here; separate processes watch the index counters instead.
type Event struct {
	EntityID   types.EntityID `json:"entity_id"`
	Merged     bool           `json:"merged"`
	BestScore  float64        `json:"best_score"`
	Attributes int            `json:"attributes"`
}

// Result is the outcome of processing a single input item.
type Result struct {
	// EntityID is the resolved identity.
	EntityID types.EntityID

	// Merged reports whether the item attached to an existing entity.
	Merged bool

	// BestScore is the winning candidate score (0 when none).
	BestScore float64

	// Features is the final, sharpened feature bag that was indexed.
	Features types.FeatureBag

	// Hash is the observation content hash recorded in the audit trail.
	Hash string
}

// BatchItem pairs one batch input with its outcome.
type BatchItem struct {
	RawText string
	Result  *Result
	Err     error
}

// Pipeline wires the extractor, enrichment registry, resolution engine, and
// store together.
//
// For a single item the pipeline is read-then-write consistent: the score is
// computed strictly before that item's own attributes are written. Two
// concurrent items describing the same real entity may still race — both see
// zero prior evidence and mint distinct identifiers. That gap is inherent to
// the batch worker pool and is accepted rather than silently fixed.
type Pipeline struct {
	extractor  extract.Extractor
	registry   *enrich.Registry
	resolver   *engine.Resolver
	store      storage.Store
	onResolved func(Event)
}

// New creates a pipeline over the given collaborators.
func New(extractor extract.Extractor, registry *enrich.Registry, resolver *engine.Resolver, store storage.Store) *Pipeline {
	return &Pipeline{
		extractor: extractor,
		registry:  registry,
		resolver:  resolver,
		store:     store,
	}
}

// SetOnResolved installs a callback invoked after each successful item.
// Must be set before processing starts.
func (p *Pipeline) SetOnResolved(fn func(Event)) {
	p.onResolved = fn
}

// Process runs one raw text item through the full flow and returns the
// resolved entity. sourceID may be empty for ad-hoc input.
func (p *Pipeline) Process(ctx context.Context, sourceID, rawText string) (*Result, error) {
	bag, err := p.extractor.ExtractFeatures(ctx, rawText)
	if err != nil {
		return nil, fmt.Errorf("pipeline: extract features: %w", err)
	}
	if bag == nil {
		bag = types.NewFeatureBag()
	}

	// Applicable steps are selected once, against the pre-enrichment key
	// set; output of one step satisfying a later step's requirement does
	// not trigger re-evaluation in this pass.
	steps := p.registry.ApplicableSteps(bag)
	for _, step := range steps {
		bag.Merge(step.Enrich(ctx, bag))
	}

	resolution, err := p.resolver.ResolveTrace(ctx, bag)
	if err != nil {
		return nil, fmt.Errorf("pipeline: resolve: %w", err)
	}

	// Indexing happens strictly after resolve so that score computation is
	// never influenced by this item's own output.
	attrs := bag.Attributes()
	for _, attr := range attrs {
		if err := p.store.Insert(ctx, attr.Type, attr.Value, resolution.EntityID); err != nil {
			return nil, fmt.Errorf("pipeline: index %s: %w", attr.Type, err)
		}
	}

	// The observation row references the source, so the source must exist
	// before the observation is written. RecordSource is idempotent; when the
	// caller already registered the source with a filename, this is a no-op.
	if sourceID != "" {
		if err := p.store.RecordSource(ctx, types.Source{ID: sourceID}); err != nil {
			return nil, fmt.Errorf("pipeline: record source: %w", err)
		}
	}

	hash := contentHash(rawText)
	obs := types.Observation{
		Hash:     hash,
		SourceID: sourceID,
		EntityID: resolution.EntityID,
		RawData:  rawText,
	}
	if err := p.store.RecordObservation(ctx, obs, attrs); err != nil {
		return nil, fmt.Errorf("pipeline: record observation: %w", err)
	}

	if p.onResolved != nil {
		p.onResolved(Event{
			EntityID:   resolution.EntityID,
			Merged:     resolution.Merged,
			BestScore:  resolution.BestScore,
			Attributes: len(attrs),
		})
	}

	return &Result{
		EntityID:  resolution.EntityID,
		Merged:    resolution.Merged,
		BestScore: resolution.BestScore,
		Features:  bag,
		Hash:      hash,
	}, nil
}

// ProcessBatch processes items with a pool of workers. Per-item failures are
// logged and reported in the returned slice; they do not abort the batch.
// The result slice is index-aligned with items.
func (p *Pipeline) ProcessBatch(ctx context.Context, sourceID string, items []string, workers int) []BatchItem {
	if workers < 1 {
		workers = 1
	}
	if workers > len(items) {
		workers = len(items)
	}

	results := make([]BatchItem, len(items))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for i := range jobs {
				res, err := p.Process(ctx, sourceID, items[i])
				if err != nil {
					log.Printf("pipeline: worker %d: item %d failed: %v", workerID, i, err)
				}
				results[i] = BatchItem{RawText: items[i], Result: res, Err: err}
			}
		}(w)
	}

	for i := range items {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

// Stats returns index diagnostics for the CLI summary and the web surface.
func (p *Pipeline) Stats(ctx context.Context) (storage.IndexStats, error) {
	var stats storage.IndexStats
	var err error

	if stats.Entities, err = p.store.CountEntities(ctx); err != nil {
		return stats, err
	}
	if stats.Entries, err = p.store.CountEntries(ctx); err != nil {
		return stats, err
	}
	if stats.Observations, err = p.store.CountObservations(ctx); err != nil {
		return stats, err
	}
	return stats, nil
}

// contentHash returns the SHA-256 hex digest of the raw item, used as the
// observation dedup key.
func contentHash(raw string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(raw)))
}
