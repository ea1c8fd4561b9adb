package storage

import "errors"

var (
	// ErrStorage indicates an index read or write failed at the I/O level.
	// It is retryable; the storage layer performs no internal retry — retry
	// policy belongs to the caller.
	ErrStorage = errors.New("storage failure")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// IndexStats is a read-only snapshot of index diagnostics, used by the
// status endpoint and the CLI summary.
type IndexStats struct {
	// Entities is the number of distinct resolved entities.
	Entities int `json:"entities"`

	// Entries is the number of (type, value, entity) index rows.
	Entries int `json:"entries"`

	// Observations is the number of audit-trail observations recorded.
	Observations int `json:"observations"`
}
