package types

import "time"

// Source describes where a batch of observations came from, e.g. an
// imported CSV file or a mail archive.
type Source struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	ImportedAt time.Time `json:"imported_at"`
}

// Observation is the audit record for one processed input item. Hash is the
// SHA-256 of the item's canonicalized content and doubles as the dedup key
// for re-imports. EntityID is the identity the item resolved to.
type Observation struct {
	Hash     string   `json:"hash"`
	SourceID string   `json:"source_id"`
	EntityID EntityID `json:"entity_id"`
	RawData  string   `json:"raw_data"`
}
