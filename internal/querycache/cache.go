package querycache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/example/ec-admin-console/internal/events"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"
)

// MaxRefetch bounds how often FetchLatest retries a key whose family keeps being invalidated
const MaxRefetch = 3

var ErrInvalidated = errors.New("invalidated while fetching")

// Key identifies one query: a resource family plus its parameters
type Key struct {
	Resource string
	Params   url.Values
}

func NewKey(resource string, params url.Values) Key {
	return Key{Resource: resource, Params: params}
}

// String renders the key canonically, e.g. categories?limit=10&page=1
func (k Key) String() string {
	if len(k.Params) == 0 {
		return k.Resource
	}
	return k.Resource + "?" + k.Params.Encode()
}

type entry struct {
	value     any
	fetchedAt time.Time
	stale     bool
}

// Cache holds query results with a per-fetch stale time.
// Concurrent fetches of the same key share one call.
type Cache struct {
	bus     *events.Bus
	group   singleflight.Group
	metrics *metrics
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	family  map[string]map[string]struct{}
	// generation per family, bumped on invalidation so an in-flight fetch cannot resurrect stale data
	gens map[string]uint64
}

// New subscribes the cache to bus so remote invalidations also drop entries
func New(bus *events.Bus, reg prometheus.Registerer) *Cache {
	c := &Cache{
		bus:     bus,
		metrics: newMetrics(reg),
		now:     time.Now,
		entries: make(map[string]*entry),
		family:  make(map[string]map[string]struct{}),
		gens:    make(map[string]uint64),
	}
	if bus != nil {
		bus.Subscribe("", func(e events.Invalidated) {
			c.drop(e.Resource)
		})
	}
	return c
}

// Fetch returns the cached value for key while younger than staleTime, else calls fn once for all waiters.
// fn runs detached from any single caller's cancellation; each caller stops waiting when its own ctx is done.
func (c *Cache) Fetch(ctx context.Context, key Key, staleTime time.Duration, fn func(ctx context.Context) (any, error)) (any, error) {
	k := key.String()

	c.mu.Lock()
	if e, ok := c.entries[k]; ok && !e.stale && c.now().Sub(e.fetchedAt) < staleTime {
		c.mu.Unlock()
		c.metrics.record(key.Resource, "hit")
		return e.value, nil
	}
	gen := c.gens[key.Resource]
	c.mu.Unlock()

	flight := k + "#" + strconv.FormatUint(gen, 10)
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flight, func() (any, error) {
		value, err := fn(fetchCtx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.gens[key.Resource] == gen {
			c.entries[k] = &entry{value: value, fetchedAt: c.now()}
			if c.family[key.Resource] == nil {
				c.family[key.Resource] = make(map[string]struct{})
			}
			c.family[key.Resource][k] = struct{}{}
		}
		return value, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.metrics.record(key.Resource, "shared")
		} else {
			c.metrics.record(key.Resource, "miss")
		}
		return res.Val, res.Err
	}
}

// FetchLatest is Fetch repeated while the family was invalidated during the call, so a result
// that predates a mutation is never returned. After MaxRefetch tries it gives up with ErrInvalidated.
func (c *Cache) FetchLatest(ctx context.Context, key Key, staleTime time.Duration, fn func(ctx context.Context) (any, error)) (any, error) {
	for attempt := 1; ; attempt++ {
		gen := c.Generation(key.Resource)
		v, err := c.Fetch(ctx, key, staleTime, fn)
		if err != nil || c.Generation(key.Resource) == gen {
			return v, err
		}
		if attempt >= MaxRefetch {
			return nil, fmt.Errorf("%s: %w", key, ErrInvalidated)
		}
		log.Printf("[Cache] %s invalidated while fetching, fetching again", key)
	}
}

// Invalidate marks every entry of resource stale and announces it on the bus
func (c *Cache) Invalidate(resource string) {
	log.Printf("[Cache] Invalidating %s", resource)
	if c.bus == nil {
		c.drop(resource)
		return
	}
	c.bus.Publish(events.Invalidated{Resource: resource})
}

// Generation changes every time resource is invalidated
func (c *Cache) Generation(resource string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[resource]
}

func (c *Cache) drop(resource string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[resource]++
	for k := range c.family[resource] {
		if e, ok := c.entries[k]; ok {
			e.stale = true
		}
	}
}
