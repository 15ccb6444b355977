package views

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/example/ec-admin-console/internal/events"
	"github.com/example/ec-admin-console/internal/querycache"
	"github.com/example/ec-admin-console/internal/readmodel"
)

// ListStaleTime is how long a fetched page is served from the cache
const ListStaleTime = 60 * time.Second

type State int

const (
	Idle State = iota
	Loading
	Ready
	Errored
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Errored:
		return "errored"
	}
	return "unknown"
}

// Snapshot is a consistent copy of a collection's state.
// After an error Items still hold the last good page.
type Snapshot[T any] struct {
	State State
	Page  readmodel.PageState
	Items []T
	Total int
	Pages int
	Err   error
}

// Range is the "Showing A to B of N results" footer
func (s Snapshot[T]) Range() string {
	return s.Page.Range(s.Total)
}

// Fetcher loads one page from the API
type Fetcher[T any] func(ctx context.Context, page readmodel.PageState) (readmodel.ListResult[T], error)

// Collection is a paginated remote list with its own page cursor
type Collection[T any] struct {
	resource  string
	cache     *querycache.Cache
	bus       *events.Bus
	fetch     Fetcher[T]
	staleTime time.Duration

	mu     sync.Mutex
	state  State
	page   readmodel.PageState
	result readmodel.ListResult[T]
	err    error
	seq    uint64
}

func NewCollection[T any](resource string, cache *querycache.Cache, bus *events.Bus, fetch Fetcher[T]) *Collection[T] {
	return &Collection[T]{
		resource:  resource,
		cache:     cache,
		bus:       bus,
		fetch:     fetch,
		staleTime: ListStaleTime,
		page:      readmodel.NewPageState(),
		result:    readmodel.ListResult[T]{Items: []T{}},
	}
}

func keyFor(resource string, p readmodel.PageState) querycache.Key {
	return querycache.NewKey(resource, url.Values{
		"page":  {strconv.Itoa(p.Page)},
		"limit": {strconv.Itoa(p.Limit)},
	})
}

func (c *Collection[T]) Page() readmodel.PageState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page
}

// SetPage moves the cursor, clamped to the known page count
func (c *Collection[T]) SetPage(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pages := 0
	if c.state == Ready || c.state == Errored {
		pages = c.result.Pages
	}
	c.page = c.page.WithPage(n, pages)
}

// SetLimit accepts 10, 20 or 50 and rewinds to page 1
func (c *Collection[T]) SetLimit(limit int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, err := c.page.WithLimit(limit)
	if err != nil {
		return err
	}
	c.page = next
	return nil
}

func (c *Collection[T]) Next() {
	c.SetPage(c.Page().Page + 1)
}

func (c *Collection[T]) Prev() {
	c.SetPage(c.Page().Page - 1)
}

// Load fetches the current page through the cache. A result that arrives after the
// cursor moved or a newer Load started is dropped. A page whose family was invalidated
// while in flight is fetched again and never shown as Ready.
func (c *Collection[T]) Load(ctx context.Context) (Snapshot[T], error) {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	page := c.page
	c.state = Loading
	c.mu.Unlock()

	v, err := c.cache.FetchLatest(ctx, keyFor(c.resource, page), c.staleTime, func(ctx context.Context) (any, error) {
		return c.fetch(ctx, page)
	})

	c.mu.Lock()
	defer c.mu.Unlock()

	if seq != c.seq || page != c.page {
		if seq == c.seq {
			c.state = Idle
		}
		return c.snapshotLocked(), nil
	}

	if err != nil {
		c.state = Errored
		c.err = err
		log.Printf("[Views] Loading %s page %d failed: %v", c.resource, page.Page, err)
		return c.snapshotLocked(), err
	}

	res, ok := v.(readmodel.ListResult[T])
	if !ok {
		c.state = Errored
		c.err = fmt.Errorf("unexpected cached value %T for %s", v, c.resource)
		return c.snapshotLocked(), c.err
	}
	c.result = res
	c.state = Ready
	c.err = nil
	return c.snapshotLocked(), nil
}

func (c *Collection[T]) Snapshot() Snapshot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Collection[T]) snapshotLocked() Snapshot[T] {
	return Snapshot[T]{
		State: c.state,
		Page:  c.page,
		Items: append([]T(nil), c.result.Items...),
		Total: c.result.Total,
		Pages: c.result.Pages,
		Err:   c.err,
	}
}

// Invalidate drops every cached page of this collection's family
func (c *Collection[T]) Invalidate() {
	c.cache.Invalidate(c.resource)
}

// Run reloads the current page whenever the family is invalidated, until ctx is done
func (c *Collection[T]) Run(ctx context.Context) error {
	if c.bus == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	signal := make(chan struct{}, 1)
	unsubscribe := c.bus.Subscribe(c.resource, func(events.Invalidated) {
		select {
		case signal <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-signal:
			_, _ = c.Load(ctx)
		}
	}
}
