package views

import (
	"context"
	"log"
	"net/url"
	"sync"

	"github.com/example/ec-admin-console/internal/apiclient"
	"github.com/example/ec-admin-console/internal/events"
	"github.com/example/ec-admin-console/internal/listing"
	"github.com/example/ec-admin-console/internal/querycache"
	"github.com/example/ec-admin-console/internal/readmodel"
)

// OrderStatusUpdater is the one status-change operation shared by the orders view and the dashboard
type OrderStatusUpdater struct {
	client *apiclient.Client
	cache  *querycache.Cache
}

func NewOrderStatusUpdater(client *apiclient.Client, cache *querycache.Cache) *OrderStatusUpdater {
	return &OrderStatusUpdater{client: client, cache: cache}
}

type statusRequest struct {
	Status readmodel.OrderStatus `json:"status"`
}

// SetStatus PATCHes the order and invalidates the orders and dashboard families.
// Anything other than pending or completed is rejected without a request.
func (u *OrderStatusUpdater) SetStatus(ctx context.Context, id, status string) (readmodel.Order, error) {
	st, err := readmodel.ParseOrderStatus(status)
	if err != nil {
		return readmodel.Order{}, err
	}

	resp, err := u.client.Patch(ctx, "/shop/orders/"+url.PathEscape(id)+"/status", statusRequest{Status: st})
	if err != nil {
		return readmodel.Order{}, err
	}

	u.cache.Invalidate(events.Orders)
	u.cache.Invalidate(events.Dashboard)
	log.Printf("[Views] Order %s set to %s", id, st)

	order := readmodel.Order{ID: id, Status: st, Items: []readmodel.OrderItem{}}
	if o, err := listing.OrderFrom(resp.Body); err == nil && o.ID != "" {
		o.Status = st
		order = o
	}
	return order, nil
}

// DetailPanel is the open order detail. It is the only place a fetched record
// is patched locally instead of being re-fetched.
type DetailPanel struct {
	updater *OrderStatusUpdater

	mu    sync.Mutex
	order *readmodel.Order
}

func NewDetailPanel(updater *OrderStatusUpdater) *DetailPanel {
	return &DetailPanel{updater: updater}
}

func (p *DetailPanel) Open(o readmodel.Order) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.order = &o
}

func (p *DetailPanel) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.order = nil
}

// Current returns the open order, if any
func (p *DetailPanel) Current() (readmodel.Order, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.order == nil {
		return readmodel.Order{}, false
	}
	return *p.order, true
}

// Patch sets the status of the open order when it is order id
func (p *DetailPanel) Patch(id string, status readmodel.OrderStatus) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.order == nil || p.order.ID != id {
		return false
	}
	p.order.Status = status
	return true
}

// SetStatus runs the status change and patches the panel once the API confirmed it
func (p *DetailPanel) SetStatus(ctx context.Context, id, status string) (readmodel.Order, error) {
	o, err := p.updater.SetStatus(ctx, id, status)
	if err != nil {
		return readmodel.Order{}, err
	}
	p.Patch(id, o.Status)
	return o, nil
}

// OrdersView lists orders newest first, with a detail panel
type OrdersView struct {
	*Collection[readmodel.Order]
	detail *DetailPanel
}

func NewOrdersView(d Deps) *OrdersView {
	fetch := func(ctx context.Context, p readmodel.PageState) (readmodel.ListResult[readmodel.Order], error) {
		resp, err := d.Client.Get(ctx, "/shop/orders", pageParams(p))
		if err != nil {
			return readmodel.ListResult[readmodel.Order]{}, err
		}
		return listing.Orders(resp.Body, resp.Header, p.Limit)
	}
	return &OrdersView{
		Collection: NewCollection(events.Orders, d.Cache, d.Bus, fetch),
		detail:     NewDetailPanel(NewOrderStatusUpdater(d.Client, d.Cache)),
	}
}

func (v *OrdersView) OpenDetail(o readmodel.Order) {
	v.detail.Open(o)
}

func (v *OrdersView) CloseDetail() {
	v.detail.Close()
}

func (v *OrdersView) Detail() (readmodel.Order, bool) {
	return v.detail.Current()
}

func (v *OrdersView) SetStatus(ctx context.Context, id, status string) (readmodel.Order, error) {
	return v.detail.SetStatus(ctx, id, status)
}
