// Package dashboard shows the precomputed store counters and the latest orders.
package dashboard

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/example/ec-admin-console/internal/events"
	"github.com/example/ec-admin-console/internal/listing"
	"github.com/example/ec-admin-console/internal/querycache"
	"github.com/example/ec-admin-console/internal/readmodel"
	"github.com/example/ec-admin-console/internal/views"
)

const StaleTime = 60 * time.Second

// Placeholder is shown in a card while the counters load
const Placeholder = "…"

var statsKey = querycache.NewKey(events.Dashboard, nil)

// Card is one counter tile
type Card struct {
	Label string
	Value string
}

// Row is one line of the recent orders table
type Row struct {
	ID       string
	Customer string
	Total    string
	Status   readmodel.OrderStatus
	Placed   string
	Items    int
}

// Dashboard loads the stats through the shared cache and reuses the order detail panel
type Dashboard struct {
	deps   views.Deps
	detail *views.DetailPanel

	mu      sync.Mutex
	loading bool
	loaded  bool
	stats   readmodel.DashboardStats
	err     error
}

func New(d views.Deps) *Dashboard {
	return &Dashboard{
		deps:   d,
		detail: views.NewDetailPanel(views.NewOrderStatusUpdater(d.Client, d.Cache)),
		stats:  readmodel.DashboardStats{RecentOrders: []readmodel.Order{}},
	}
}

// Load fetches the stats unless a fresh copy is cached. On error the previous stats are kept.
func (d *Dashboard) Load(ctx context.Context) (readmodel.DashboardStats, error) {
	d.mu.Lock()
	d.loading = true
	d.mu.Unlock()

	v, err := d.deps.Cache.FetchLatest(ctx, statsKey, StaleTime, func(ctx context.Context) (any, error) {
		resp, err := d.deps.Client.Get(ctx, "/dashboard/stats", nil)
		if err != nil {
			return nil, err
		}
		return listing.Stats(resp.Body)
	})

	d.mu.Lock()
	defer d.mu.Unlock()
	d.loading = false
	if err != nil {
		d.err = err
		log.Printf("[Dashboard] Loading stats failed: %v", err)
		return d.stats, err
	}
	stats, ok := v.(readmodel.DashboardStats)
	if !ok {
		d.err = fmt.Errorf("unexpected cached value %T for dashboard", v)
		return d.stats, d.err
	}
	d.stats = stats
	d.loaded = true
	d.err = nil
	return stats, nil
}

// Stats returns the last loaded stats and the last error
func (d *Dashboard) Stats() (readmodel.DashboardStats, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats, d.err
}

// Cards renders the four counters; every value is Placeholder until the first load succeeds
func (d *Dashboard) Cards() []Card {
	d.mu.Lock()
	defer d.mu.Unlock()

	format := func(n int) string {
		if !d.loaded {
			return Placeholder
		}
		return humanize.Comma(int64(n))
	}
	return []Card{
		{Label: "Total Products", Value: format(d.stats.TotalProducts)},
		{Label: "Visible Products", Value: format(d.stats.VisibleProducts)},
		{Label: "Categories", Value: format(d.stats.CategoriesCount)},
		{Label: "Orders", Value: format(d.stats.OrdersCount)},
	}
}

// Recent renders the recent orders table
func (d *Dashboard) Recent() []Row {
	d.mu.Lock()
	defer d.mu.Unlock()

	rows := make([]Row, 0, len(d.stats.RecentOrders))
	for _, o := range d.stats.RecentOrders {
		r := Row{
			ID:       o.ID,
			Customer: o.Customer(),
			Total:    readmodel.FormatMoney(o.TotalAmount),
			Status:   o.Status,
			Items:    o.ItemCount(),
		}
		if !o.CreatedAt.IsZero() {
			r.Placed = humanize.Time(o.CreatedAt)
		}
		rows = append(rows, r)
	}
	return rows
}

// Loading is true while a fetch is in flight
func (d *Dashboard) Loading() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loading
}

func (d *Dashboard) OpenDetail(o readmodel.Order) {
	d.detail.Open(o)
}

func (d *Dashboard) CloseDetail() {
	d.detail.Close()
}

func (d *Dashboard) Detail() (readmodel.Order, bool) {
	return d.detail.Current()
}

// SetStatus is the orders view's status change; the open detail is patched on success
func (d *Dashboard) SetStatus(ctx context.Context, id, status string) (readmodel.Order, error) {
	return d.detail.SetStatus(ctx, id, status)
}

// Run reloads the stats whenever the dashboard family is invalidated, until ctx is done
func (d *Dashboard) Run(ctx context.Context) error {
	if d.deps.Bus == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	signal := make(chan struct{}, 1)
	unsubscribe := d.deps.Bus.Subscribe(events.Dashboard, func(events.Invalidated) {
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
			_, _ = d.Load(ctx)
		}
	}
}
