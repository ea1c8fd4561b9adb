package storage

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/scrypster/tether/pkg/types"
)

// CachedIndex wraps an AttributeIndex with an LRU cache over value lookups.
// Insert invalidates the cached candidate set for the written value, so a
// single-process deployment keeps read-then-write consistency per item.
// Do not use it when another process writes to the same database: the cache
// cannot observe external inserts.
type CachedIndex struct {
	inner AttributeIndex
	cache *lru.Cache[string, []types.EntityID]
}

// NewCachedIndex wraps index with an LRU holding up to size value lookups.
func NewCachedIndex(index AttributeIndex, size int) (*CachedIndex, error) {
	cache, err := lru.New[string, []types.EntityID](size)
	if err != nil {
		return nil, fmt.Errorf("cached index: %w", err)
	}
	return &CachedIndex{inner: index, cache: cache}, nil
}

// LookupEntitiesByValue serves from the cache when possible. Empty results
// are cached too; Insert invalidates them.
func (c *CachedIndex) LookupEntitiesByValue(ctx context.Context, value string) ([]types.EntityID, error) {
	if ids, ok := c.cache.Get(value); ok {
		// Copy so callers cannot mutate the cached slice.
		out := make([]types.EntityID, len(ids))
		copy(out, ids)
		return out, nil
	}

	ids, err := c.inner.LookupEntitiesByValue(ctx, value)
	if err != nil {
		return nil, err
	}
	c.cache.Add(value, ids)

	out := make([]types.EntityID, len(ids))
	copy(out, ids)
	return out, nil
}

// Insert writes through to the inner index and drops the cached candidate
// set for the value.
func (c *CachedIndex) Insert(ctx context.Context, attrType, attrValue string, id types.EntityID) error {
	if err := c.inner.Insert(ctx, attrType, attrValue, id); err != nil {
		return err
	}
	c.cache.Remove(attrValue)
	return nil
}

// CountEntities delegates to the inner index.
func (c *CachedIndex) CountEntities(ctx context.Context) (int, error) {
	return c.inner.CountEntities(ctx)
}

// CountEntries delegates to the inner index.
func (c *CachedIndex) CountEntries(ctx context.Context) (int, error) {
	return c.inner.CountEntries(ctx)
}

// Close delegates to the inner index.
func (c *CachedIndex) Close() error {
	return c.inner.Close()
}
