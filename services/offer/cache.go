package offer

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

var (
	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{Name: "taskora_offer_cache_hits_total"})
	cacheMiss = prometheus.NewCounter(prometheus.CounterOpts{Name: "taskora_offer_cache_miss_total"})
)

func init() {
	prometheus.MustRegister(cacheHits, cacheMiss)
}

type listing struct {
	offers    []*Offer
	fetchedAt time.Time
}

// CachedCatalog keeps the active listing in memory for ttl. Get and WithTrx always
// reach the database so payouts read during a review are current.
type CachedCatalog struct {
	Catalog

	mu    sync.RWMutex
	items map[int]listing
	ttl   time.Duration
	group singleflight.Group
	now   func() time.Time
}

func NewCachedCatalog(inner Catalog, ttl time.Duration) *CachedCatalog {
	return &CachedCatalog{
		Catalog: inner,
		items:   make(map[int]listing),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *CachedCatalog) ListActive(ctx context.Context, limit int) ([]*Offer, error) {
	if c.ttl <= 0 {
		return c.Catalog.ListActive(ctx, limit)
	}

	if offers, ok := c.get(limit); ok {
		cacheHits.Inc()
		return offers, nil
	}
	cacheMiss.Inc()

	v, err, _ := c.group.Do(strconv.Itoa(limit), func() (interface{}, error) {
		offers, err := c.Catalog.ListActive(ctx, limit)
		if err != nil {
			return nil, err
		}
		c.set(limit, offers)
		return offers, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*Offer), nil
}

func (c *CachedCatalog) WithTrx(tx *gorm.DB) Catalog {
	return c.Catalog.WithTrx(tx)
}

// Invalidate drops every cached listing.
func (c *CachedCatalog) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[int]listing)
}

func (c *CachedCatalog) get(limit int) ([]*Offer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[limit]
	if !ok || c.now().Sub(v.fetchedAt) > c.ttl {
		return nil, false
	}
	return v.offers, true
}

func (c *CachedCatalog) set(limit int, offers []*Offer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[limit] = listing{offers: offers, fetchedAt: c.now()}
}
