package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"storefront-service/internal/cache"
	"storefront-service/internal/errs"
	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Default freshness windows for the two catalog lists
const (
	DefaultProductsTTL = 5 * time.Minute
	DefaultServicesTTL = 10 * time.Minute
)

// sharedSyncTimeout bounds a sync that outlives the caller who started it
const sharedSyncTimeout = 30 * time.Second

// Fetcher is the remote side of a sync
type Fetcher interface {
	GetProducts(ctx context.Context) ([]models.Product, error)
	GetServices(ctx context.Context) ([]models.Service, error)
}

// Result is always usable. Err carries the degraded-path cause as a warning
// when Provenance is stale or demo.
type Result[T any] struct {
	Items      []T               `json:"items"`
	Provenance models.Provenance `json:"provenance"`
	Err        error             `json:"-"`
}

// Client syncs products and services through the local cache, collapsing
// concurrent syncs of the same kind onto one request
type Client struct {
	fetcher     Fetcher
	cache       *cache.Store
	productsTTL time.Duration
	servicesTTL time.Duration
	group       singleflight.Group
	logger      *zap.Logger

	mu       sync.RWMutex
	products []models.Product
	services []models.Service
}

// NewClient creates a catalog sync client
func NewClient(fetcher Fetcher, cacheStore *cache.Store, productsTTL, servicesTTL time.Duration) *Client {
	if productsTTL <= 0 {
		productsTTL = DefaultProductsTTL
	}
	if servicesTTL <= 0 {
		servicesTTL = DefaultServicesTTL
	}
	return &Client{
		fetcher:     fetcher,
		cache:       cacheStore,
		productsTTL: productsTTL,
		servicesTTL: servicesTTL,
		logger:      util.GetLogger(),
	}
}

// SyncProducts returns the product list and remembers it for lookups
func (c *Client) SyncProducts(ctx context.Context) Result[models.Product] {
	ctx, span := util.StartSpan(ctx, "CatalogClient.SyncProducts")
	defer span.End()

	res := syncKind(ctx, c, models.KindProducts, c.productsTTL, c.fetcher.GetProducts, validateProducts, DemoProducts)
	if ctx.Err() != nil {
		return res
	}

	c.mu.Lock()
	c.products = res.Items
	c.mu.Unlock()
	return res
}

// SyncServices returns the service list and remembers it for lookups
func (c *Client) SyncServices(ctx context.Context) Result[models.Service] {
	ctx, span := util.StartSpan(ctx, "CatalogClient.SyncServices")
	defer span.End()

	res := syncKind(ctx, c, models.KindServices, c.servicesTTL, c.fetcher.GetServices, validateServices, DemoServices)
	if ctx.Err() != nil {
		return res
	}

	c.mu.Lock()
	c.services = res.Items
	c.mu.Unlock()
	return res
}

// LoadDemo swaps both lists for demo data and drops both cache entries
func (c *Client) LoadDemo(ctx context.Context) error {
	c.mu.Lock()
	c.products = DemoProducts()
	c.services = DemoServices()
	c.mu.Unlock()

	var errList []error
	for _, kind := range []models.EntityKind{models.KindProducts, models.KindServices} {
		if err := c.cache.Invalidate(ctx, string(kind)); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}

// Product looks up a product in the last synced list
func (c *Client) Product(id models.ID) (models.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, p := range c.products {
		if p.ID == id {
			return p, true
		}
	}
	return models.Product{}, false
}

// Service looks up a service in the last synced list
func (c *Client) Service(id models.ID) (models.Service, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, s := range c.services {
		if s.ID == id {
			return s, true
		}
	}
	return models.Service{}, false
}

// Products returns a copy of the last synced product list
func (c *Client) Products() []models.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Product(nil), c.products...)
}

// Services returns a copy of the last synced service list
func (c *Client) Services() []models.Service {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Service(nil), c.services...)
}

func syncKind[T any](
	ctx context.Context,
	c *Client,
	kind models.EntityKind,
	ttl time.Duration,
	fetch func(context.Context) ([]T, error),
	validate func([]T) error,
	demo func() []T,
) Result[T] {
	ch := c.group.DoChan(string(kind), func() (interface{}, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedSyncTimeout)
		defer cancel()
		return resolve(shared, c, kind, ttl, fetch, validate, demo), nil
	})

	select {
	case <-ctx.Done():
		return Result[T]{Items: demo(), Provenance: models.ProvenanceDemo, Err: ctx.Err()}
	case r := <-ch:
		res := r.Val.(Result[T])
		util.CatalogSyncTotal.WithLabelValues(string(kind), string(res.Provenance)).Inc()
		return res
	}
}

func resolve[T any](
	ctx context.Context,
	c *Client,
	kind models.EntityKind,
	ttl time.Duration,
	fetch func(context.Context) ([]T, error),
	validate func([]T) error,
	demo func() []T,
) Result[T] {
	key := string(kind)

	if entry, hit, err := c.cache.Get(ctx, key); err != nil {
		c.logger.Warn("Catalog cache read failed", zap.String("kind", key), zap.Error(err))
	} else if hit {
		if items, err := decodePayload[T](entry); err == nil {
			return Result[T]{Items: items, Provenance: models.ProvenanceFresh}
		}
	}

	start := time.Now()
	items, err := fetch(ctx)
	util.CatalogFetchLatency.WithLabelValues(key).Observe(time.Since(start).Seconds())
	if err == nil {
		err = validate(items)
	}
	if err == nil {
		if putErr := c.cache.Put(ctx, key, items, ttl); putErr != nil {
			c.logger.Warn("Failed to cache catalog", zap.String("kind", key), zap.Error(putErr))
		}
		return Result[T]{Items: items, Provenance: models.ProvenanceFresh}
	}

	c.logger.Warn("Catalog fetch failed, falling back",
		zap.String("kind", key),
		zap.Error(err))

	if entry, ok, staleErr := c.cache.GetStale(ctx, key); staleErr == nil && ok {
		if stale, decodeErr := decodePayload[T](entry); decodeErr == nil {
			return Result[T]{Items: stale, Provenance: models.ProvenanceStale, Err: err}
		}
	}

	return Result[T]{Items: demo(), Provenance: models.ProvenanceDemo, Err: err}
}

func decodePayload[T any](entry *models.CacheEntry) ([]T, error) {
	var items []T
	if err := json.Unmarshal(entry.Payload, &items); err != nil {
		return nil, err
	}
	if items == nil {
		return nil, fmt.Errorf("empty cache payload")
	}
	return items, nil
}

func validateProducts(products []models.Product) error {
	if len(products) == 0 {
		return errs.New(errs.CodeDataFormat, "product list is empty")
	}
	for i, p := range products {
		if p.ID == "" {
			return errs.Newf(errs.CodeDataFormat, "product %d has no id", i)
		}
		if p.Price < 0 {
			return errs.Newf(errs.CodeDataFormat, "product %s has a negative price", p.ID)
		}
		if p.Rating < 0 || p.Rating > 5 {
			return errs.Newf(errs.CodeDataFormat, "product %s rating out of range", p.ID)
		}
	}
	return nil
}

func validateServices(services []models.Service) error {
	for i, s := range services {
		if s.ID == "" {
			return errs.Newf(errs.CodeDataFormat, "service %d has no id", i)
		}
		if s.Price < 0 {
			return errs.Newf(errs.CodeDataFormat, "service %s has a negative price", s.ID)
		}
	}
	return nil
}
