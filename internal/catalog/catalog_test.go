package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storefront-service/internal/cache"
	"storefront-service/internal/errs"
	"storefront-service/internal/models"
	"storefront-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	productCalls atomic.Int32
	serviceCalls atomic.Int32
	products     []models.Product
	services     []models.Service
	err          error
	gate         chan struct{}
	entered      chan struct{}
}

func (f *fakeFetcher) GetProducts(ctx context.Context) ([]models.Product, error) {
	f.productCalls.Add(1)
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.products, f.err
}

func (f *fakeFetcher) GetServices(ctx context.Context) ([]models.Service, error) {
	f.serviceCalls.Add(1)
	return f.services, f.err
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestClient(f *fakeFetcher) (*Client, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	c := NewClient(f, cache.NewStore(store.NewMemoryStore(), cache.WithClock(clock.Now)), DefaultProductsTTL, DefaultServicesTTL)
	return c, clock
}

var remoteProducts = []models.Product{
	{ID: "10", Name: "Tarhun", Price: 90, Category: "soft"},
	{ID: "11", Name: "Borjomi", Price: 110, Category: "water"},
}

func TestSyncWithinTTLHitsNetworkOnce(t *testing.T) {
	f := &fakeFetcher{products: remoteProducts}
	c, clock := newTestClient(f)
	ctx := context.Background()

	first := c.SyncProducts(ctx)
	clock.Advance(time.Minute)
	second := c.SyncProducts(ctx)

	assert.Equal(t, int32(1), f.productCalls.Load())
	assert.Equal(t, models.ProvenanceFresh, first.Provenance)
	assert.Equal(t, models.ProvenanceFresh, second.Provenance)
	assert.Equal(t, remoteProducts, second.Items)
}

func TestSyncAfterTTLRefetches(t *testing.T) {
	f := &fakeFetcher{products: remoteProducts}
	c, clock := newTestClient(f)
	ctx := context.Background()

	c.SyncProducts(ctx)
	clock.Advance(DefaultProductsTTL)
	c.SyncProducts(ctx)

	assert.Equal(t, int32(2), f.productCalls.Load())
}

func TestConcurrentSyncCollapses(t *testing.T) {
	f := &fakeFetcher{
		products: remoteProducts,
		gate:     make(chan struct{}),
		entered:  make(chan struct{}, 2),
	}
	c, _ := newTestClient(f)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]Result[models.Product], 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0] = c.SyncProducts(ctx)
	}()
	<-f.entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1] = c.SyncProducts(ctx)
	}()
	time.Sleep(50 * time.Millisecond)
	close(f.gate)
	wg.Wait()

	assert.Equal(t, int32(1), f.productCalls.Load())
	assert.Equal(t, results[0].Items, results[1].Items)
}

func TestCancelledFirstCallerDoesNotSpoilSharedSync(t *testing.T) {
	f := &fakeFetcher{
		products: remoteProducts,
		gate:     make(chan struct{}),
		entered:  make(chan struct{}, 2),
	}
	c, _ := newTestClient(f)

	firstCtx, cancel := context.WithCancel(context.Background())
	firstDone := make(chan Result[models.Product], 1)
	go func() {
		firstDone <- c.SyncProducts(firstCtx)
	}()
	<-f.entered

	secondDone := make(chan Result[models.Product], 1)
	go func() {
		secondDone <- c.SyncProducts(context.Background())
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	first := <-firstDone
	assert.ErrorIs(t, first.Err, context.Canceled)

	_, found := c.Product("10")
	assert.False(t, found, "a cancelled caller must not replace the remembered list")

	close(f.gate)
	second := <-secondDone

	require.NoError(t, second.Err)
	assert.Equal(t, models.ProvenanceFresh, second.Provenance)
	assert.Equal(t, remoteProducts, second.Items)
	assert.Equal(t, int32(1), f.productCalls.Load())

	p, found := c.Product("10")
	require.True(t, found)
	assert.Equal(t, "Tarhun", p.Name)
}

func TestFailureWithoutCacheServesDemo(t *testing.T) {
	f := &fakeFetcher{err: errs.New(errs.CodeNetwork, "offline")}
	c, _ := newTestClient(f)

	res := c.SyncProducts(context.Background())
	assert.Equal(t, models.ProvenanceDemo, res.Provenance)
	assert.Equal(t, DemoProducts(), res.Items)
	assert.Equal(t, errs.CodeNetwork, errs.CodeOf(res.Err))

	p, ok := c.Product("3")
	require.True(t, ok)
	assert.Equal(t, "Coca-Cola", p.Name)
}

func TestFailureWithExpiredCacheServesStale(t *testing.T) {
	f := &fakeFetcher{products: remoteProducts}
	c, clock := newTestClient(f)
	ctx := context.Background()

	c.SyncProducts(ctx)
	clock.Advance(time.Hour)
	f.err = errors.New("connection refused")

	res := c.SyncProducts(ctx)
	assert.Equal(t, models.ProvenanceStale, res.Provenance)
	assert.Equal(t, remoteProducts, res.Items)
	assert.Error(t, res.Err)
}

func TestEmptyProductListIsFailure(t *testing.T) {
	f := &fakeFetcher{products: []models.Product{}}
	c, _ := newTestClient(f)

	res := c.SyncProducts(context.Background())
	assert.Equal(t, models.ProvenanceDemo, res.Provenance)
	assert.Equal(t, errs.CodeDataFormat, errs.CodeOf(res.Err))
}

func TestEmptyServiceListIsAccepted(t *testing.T) {
	f := &fakeFetcher{services: []models.Service{}}
	c, _ := newTestClient(f)

	res := c.SyncServices(context.Background())
	assert.Equal(t, models.ProvenanceFresh, res.Provenance)
	assert.Empty(t, res.Items)
}

func TestLoadDemoDropsCache(t *testing.T) {
	f := &fakeFetcher{products: remoteProducts}
	c, _ := newTestClient(f)
	ctx := context.Background()

	c.SyncProducts(ctx)
	require.NoError(t, c.LoadDemo(ctx))
	_, ok := c.Product("10")
	assert.False(t, ok)

	c.SyncProducts(ctx)
	assert.Equal(t, int32(2), f.productCalls.Load())
}

func TestProductsReturnsCopy(t *testing.T) {
	f := &fakeFetcher{products: remoteProducts}
	c, _ := newTestClient(f)
	c.SyncProducts(context.Background())

	list := c.Products()
	list[0].Name = "changed"
	p, _ := c.Product("10")
	assert.Equal(t, "Tarhun", p.Name)
}
