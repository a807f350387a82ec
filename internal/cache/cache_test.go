package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func TestGetHitWithinTTL(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := NewStore(store.NewMemoryStore(), WithClock(clock.Now))

	products := []models.Product{{ID: "1", Name: "Coca-Cola", Price: 80}}
	require.NoError(t, c.Put(ctx, "products", products, 5*time.Minute))

	clock.now = clock.now.Add(4*time.Minute + 59*time.Second)
	entry, hit, err := c.Get(ctx, "products")
	require.NoError(t, err)
	require.True(t, hit)

	var decoded []models.Product
	require.NoError(t, json.Unmarshal(entry.Payload, &decoded))
	assert.Equal(t, products, decoded)
}

func TestExpiredEntryIsMissButStaleReadable(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := NewStore(store.NewMemoryStore(), WithClock(clock.Now))

	require.NoError(t, c.Put(ctx, "services", []models.Service{{ID: "1", Name: "Gift box", Price: 50}}, 10*time.Minute))

	clock.now = clock.now.Add(10 * time.Minute)
	_, hit, err := c.Get(ctx, "services")
	require.NoError(t, err)
	assert.False(t, hit)

	stale, ok, err := c.GetStale(ctx, "services")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "services", stale.Key)
}

func TestPutOverwrites(t *testing.T) {
	ctx := context.Background()
	c := NewStore(store.NewMemoryStore())

	require.NoError(t, c.Put(ctx, "products", []string{"a"}, time.Minute))
	require.NoError(t, c.Put(ctx, "products", []string{"b"}, time.Minute))

	entry, hit, err := c.Get(ctx, "products")
	require.NoError(t, err)
	require.True(t, hit)
	assert.JSONEq(t, `["b"]`, string(entry.Payload))
}

func TestInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewStore(store.NewMemoryStore())

	require.NoError(t, c.Put(ctx, "products", []string{"a"}, time.Minute))
	require.NoError(t, c.Invalidate(ctx, "products"))

	_, ok, err := c.GetStale(ctx, "products")
	require.NoError(t, err)
	assert.False(t, ok)
}
