package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/batchpass-api/internal/models"
	appErrors "github.com/noah-isme/batchpass-api/pkg/errors"
)

type memoryCache struct {
	mu    sync.Mutex
	items map[string][]byte
	sets  int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: map[string][]byte{}}
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = raw
	c.sets++
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.items, key)
	}
	return nil
}

func TestCatalogOutlineServedFromCache(t *testing.T) {
	store := newMemStore()
	seedCatalog(store)
	backend := newMemoryCache()
	catalog := NewCatalogService(store, NewCacheService(backend, nil, time.Minute, nil, true), time.Minute, nil)
	batch, err := catalog.Batch(context.Background(), "batch-1")
	require.NoError(t, err)

	first, err := catalog.Outline(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, first.Subjects, 1)
	require.Len(t, first.Chapters, 2)
	assert.Equal(t, "ch-1", first.Chapters[0].ID)
	assert.Equal(t, 1, backend.sets)

	// Mutations are invisible until the outline is invalidated.
	store.addSubject(models.Subject{ID: "subj-2", BatchID: "batch-1", Name: "Optics", OrderIndex: 2})
	cached, err := catalog.Outline(context.Background(), batch)
	require.NoError(t, err)
	assert.Len(t, cached.Subjects, 1)
	assert.Equal(t, 1, backend.sets)

	require.NoError(t, catalog.InvalidateOutline(context.Background(), "batch-1"))
	fresh, err := catalog.Outline(context.Background(), batch)
	require.NoError(t, err)
	assert.Len(t, fresh.Subjects, 2)
	assert.Equal(t, 2, backend.sets)
}

func TestCatalogOutlineWithoutCache(t *testing.T) {
	store := newMemStore()
	seedCatalog(store)
	catalog := NewCatalogService(store, nil, 0, nil)
	batch, err := catalog.Batch(context.Background(), "batch-1")
	require.NoError(t, err)

	outline, err := catalog.Outline(context.Background(), batch)
	require.NoError(t, err)
	assert.Len(t, outline.Chapters, 2)
	assert.NoError(t, catalog.InvalidateOutline(context.Background(), "batch-1"))
}

func TestCatalogLookupsMapMissingRows(t *testing.T) {
	store := newMemStore()
	seedCatalog(store)
	catalog := NewCatalogService(store, nil, 0, nil)

	_, err := catalog.Batch(context.Background(), "nope")
	assert.True(t, appErrors.Is(err, appErrors.ErrBatchNotFound))

	_, err = catalog.Subject(context.Background(), "batch-1", "nope")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	// A chapter is only found under its own subject.
	_, err = catalog.Chapter(context.Background(), "subj-other", "ch-1")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	chapter, err := catalog.Chapter(context.Background(), "subj-1", "ch-1")
	require.NoError(t, err)
	assert.Equal(t, "Kinematics", chapter.Name)
}
