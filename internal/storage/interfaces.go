// Package storage provides composable storage interfaces for the tether
// entity resolution system.
//
// The storage layer is designed with small, focused interfaces that can be
// implemented independently and composed as needed. The attribute index is
// the single source of truth entities are resolved against; provenance
// tracking is an optional audit trail that the resolution algorithm never
// reads.
package storage

import (
	"context"

	"github.com/scrypster/tether/pkg/types"
)

// AttributeIndex is the persistent mapping from observed attributes to the
// entities they have been seen with. It is append-only from the engine's
// perspective: entries are never deleted or reattributed.
type AttributeIndex interface {
	// LookupEntitiesByValue returns every entity identifier previously
	// indexed under ANY attribute type with this exact value. Lookup is by
	// value alone, not by (type, value): the same literal string appearing
	// under different attribute types still ties candidates together.
	// Returns an empty slice, never an error, for unknown values.
	LookupEntitiesByValue(ctx context.Context, value string) ([]types.EntityID, error)

	// Insert records a (type, value, entity) triple. It is idempotent:
	// inserting an already-present triple is a no-op, including under
	// concurrent execution (enforced by a unique constraint, not
	// read-then-write).
	Insert(ctx context.Context, attrType, attrValue string, id types.EntityID) error

	// CountEntities returns the number of distinct entities in the index.
	CountEntities(ctx context.Context) (int, error)

	// CountEntries returns the number of (type, value, entity) index rows.
	CountEntries(ctx context.Context) (int, error)

	// Close releases any resources held by the index.
	Close() error
}

// ProvenanceStore records where observations came from. It is an audit
// trail: nothing in candidate scoring depends on it, and implementations may
// be backed by the same database as the attribute index.
type ProvenanceStore interface {
	// RecordSource registers an input source (e.g. an imported file).
	// Idempotent on source ID.
	RecordSource(ctx context.Context, src types.Source) error

	// RecordObservation stores one processed observation together with the
	// attributes it contributed. Idempotent on the observation hash, so
	// re-importing the same item does not duplicate the audit trail.
	RecordObservation(ctx context.Context, obs types.Observation, attrs []types.Attribute) error

	// CountObservations returns the number of recorded observations.
	CountObservations(ctx context.Context) (int, error)
}

// Store combines the attribute index with provenance tracking. Both SQL
// backends implement it over a single database handle.
type Store interface {
	AttributeIndex
	ProvenanceStore
}
