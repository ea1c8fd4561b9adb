package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/tether/internal/storage"
	"github.com/scrypster/tether/internal/storage/sqlite"
	"github.com/scrypster/tether/pkg/types"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestGetStatsEmptyIndex(t *testing.T) {
	handler := NewStatsHandler(newTestStore(t))

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()
	handler.GetStats(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var stats storage.IndexStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Zero(t, stats.Entities)
	assert.Zero(t, stats.Entries)
	assert.Zero(t, stats.Observations)
}

func TestGetStatsCounts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id := types.NewEntityID()
	require.NoError(t, store.Insert(ctx, types.AttrEmail, "ada@example.com", id))
	require.NoError(t, store.Insert(ctx, types.AttrPerson, "Ada Lovelace", id))
	require.NoError(t, store.RecordObservation(ctx, types.Observation{
		Hash:     "h1",
		EntityID: id,
		RawData:  "Ada Lovelace <ada@example.com>",
	}, nil))

	handler := NewStatsHandler(store)
	rec := httptest.NewRecorder()
	handler.GetStats(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var stats storage.IndexStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Entities)
	assert.Equal(t, 2, stats.Entries)
	assert.Equal(t, 1, stats.Observations)
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	wrapped := RateLimitMiddleware(next, rl)

	first := httptest.NewRecorder()
	wrapped.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	// Burst exhausted: the immediate second request is rejected.
	second := httptest.NewRecorder()
	wrapped.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
