package listing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/example/ec-admin-console/internal/readmodel"
)

// Categories adapts a categories page and orders it by sort id
func Categories(body []byte, header http.Header, limit int) (readmodel.ListResult[readmodel.Category], error) {
	p, err := Parse(body, header, CategoryShape, limit)
	if err != nil {
		return readmodel.ListResult[readmodel.Category]{}, err
	}
	items := make([]readmodel.Category, 0, len(p.Items))
	for _, m := range p.Items {
		items = append(items, Category(m))
	}
	SortCategories(items)
	return readmodel.ListResult[readmodel.Category]{Items: items, Total: p.Total, Pages: p.Pages}, nil
}

// AllCategories adapts the unpaginated ?all=true answer used for lookups
func AllCategories(body []byte) ([]readmodel.Category, error) {
	res, err := Categories(body, nil, 0)
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

func Products(body []byte, header http.Header, limit int) (readmodel.ListResult[readmodel.Product], error) {
	p, err := Parse(body, header, ProductShape, limit)
	if err != nil {
		return readmodel.ListResult[readmodel.Product]{}, err
	}
	items := make([]readmodel.Product, 0, len(p.Items))
	for _, m := range p.Items {
		items = append(items, Product(m))
	}
	return readmodel.ListResult[readmodel.Product]{Items: items, Total: p.Total, Pages: p.Pages}, nil
}

func Orders(body []byte, header http.Header, limit int) (readmodel.ListResult[readmodel.Order], error) {
	p, err := Parse(body, header, OrderShape, limit)
	if err != nil {
		return readmodel.ListResult[readmodel.Order]{}, err
	}
	items := make([]readmodel.Order, 0, len(p.Items))
	for _, m := range p.Items {
		items = append(items, Order(m))
	}
	return readmodel.ListResult[readmodel.Order]{Items: items, Total: p.Total, Pages: p.Pages}, nil
}

// OrderFrom adapts a single order object
func OrderFrom(body []byte) (readmodel.Order, error) {
	m, err := object(body)
	if err != nil {
		return readmodel.Order{}, err
	}
	return Order(m), nil
}

// CategoryFrom adapts a single category object
func CategoryFrom(body []byte) (readmodel.Category, error) {
	m, err := object(body)
	if err != nil {
		return readmodel.Category{}, err
	}
	return Category(m), nil
}

// ProductFrom adapts a single product object
func ProductFrom(body []byte) (readmodel.Product, error) {
	m, err := object(body)
	if err != nil {
		return readmodel.Product{}, err
	}
	return Product(m), nil
}

// Stats adapts GET /dashboard/stats; missing counters read as 0
func Stats(body []byte) (readmodel.DashboardStats, error) {
	m, err := object(body)
	if err != nil {
		return readmodel.DashboardStats{}, err
	}
	stats := readmodel.DashboardStats{
		TotalProducts:   intField(m, "totalProducts"),
		VisibleProducts: intField(m, "visibleProducts"),
		CategoriesCount: intField(m, "categoriesCount"),
		OrdersCount:     intField(m, "ordersCount"),
		RecentOrders:    []readmodel.Order{},
	}
	for _, key := range []string{"last10Orders", "recentOrders"} {
		if arr, ok := m[key].([]any); ok {
			for _, it := range arr {
				if om, ok := it.(map[string]any); ok {
					stats.RecentOrders = append(stats.RecentOrders, Order(om))
				}
			}
			break
		}
	}
	return stats, nil
}

func object(body []byte) (map[string]any, error) {
	v, err := decode(body)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a JSON object, got %T", v)
	}
	return m, nil
}

// ============================================
// Entity adapters
// ============================================

func Category(m map[string]any) readmodel.Category {
	c := readmodel.Category{
		ID:       str(m, "id", "_id"),
		Name:     str(m, "name", "title"),
		ImageURL: str(m, "imageUrl"),
		Type:     str(m, "type"),
	}
	if v, ok := boolean(m, "visible", "isVisible"); ok {
		c.Visible = v
	} else {
		c.Visible = str(m, "status") == "Visible"
	}
	if f, ok := num(m, "sortId", "sort"); ok {
		c.SortID = f
	}
	return c
}

func Product(m map[string]any) readmodel.Product {
	p := readmodel.Product{
		ID:           str(m, "id", "_id"),
		Name:         str(m, "name"),
		Description:  str(m, "description"),
		CategoryID:   str(m, "categoryId", "categoryid", "category.id", "category._id"),
		CategoryName: str(m, "category.name", "category.title"),
		ImageURL:     str(m, "imageUrl"),
	}
	p.Price, _ = num(m, "price")
	if f, ok := num(m, "discountedPrice"); ok {
		p.DiscountedPrice = &f
	}
	p.Visible, _ = boolean(m, "visible", "isVisible")
	p.IsInStock, _ = boolean(m, "isInStock", "inStock")
	return p
}

func Order(m map[string]any) readmodel.Order {
	o := readmodel.Order{
		ID:     str(m, "id", "_id"),
		Status: readmodel.OrderStatus(strings.ToLower(str(m, "status"))),
		User: readmodel.OrderUser{
			Name:  str(m, "user.name"),
			Email: str(m, "user.email", "customer.email"),
		},
		UserID:     str(m, "userId", "user_id", "user.id", "customer.id"),
		ItemsCount: intField(m, "itemsCount"),
		Items:      []readmodel.OrderItem{},
	}
	if o.Status == "" {
		o.Status = readmodel.StatusPending
	}
	o.TotalAmount, _ = num(m, "totalAmount", "total")
	o.CreatedAt = timestamp(lookup(m, "createdAt"), lookup(m, "created_at"), lookup(m, "created_on"))

	if arr, ok := m["items"].([]any); ok {
		for _, it := range arr {
			im, ok := it.(map[string]any)
			if !ok {
				continue
			}
			item := readmodel.OrderItem{
				ProductID:   str(im, "product.id", "productId", "product._id"),
				ProductName: str(im, "product.name", "productName"),
			}
			if item.ProductName == "" {
				item.ProductName = "Product"
				if item.ProductID != "" {
					item.ProductName = "Product " + item.ProductID
				}
			}
			q, _ := num(im, "quantity")
			item.Quantity = int(q)
			item.UnitPrice, _ = num(im, "unitPrice")
			o.Items = append(o.Items, item)
		}
	}
	return o
}

// SortCategories orders ascending by SortID, keeping server order for ties
func SortCategories(cs []readmodel.Category) {
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].SortID < cs[j].SortID })
}

// CategoryNames builds the id to name lookup products are displayed with
func CategoryNames(cs []readmodel.Category) map[string]string {
	names := make(map[string]string, len(cs))
	for _, c := range cs {
		if c.ID != "" {
			names[c.ID] = c.Name
		}
	}
	return names
}

// ============================================
// Field helpers
// ============================================

// lookup follows a dotted path through nested objects
func lookup(m map[string]any, path string) any {
	var cur any = m
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = obj[part]
	}
	return cur
}

// str returns the first key holding a non-empty string or a number, stringified
func str(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := lookup(m, k).(type) {
		case string:
			if v != "" {
				return v
			}
		case json.Number:
			return v.String()
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func num(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if f, ok := number(lookup(m, k)); ok {
			return f, true
		}
	}
	return 0, false
}

func intField(m map[string]any, key string) int {
	f, _ := num(m, key)
	return int(f)
}

func boolean(m map[string]any, keys ...string) (bool, bool) {
	for _, k := range keys {
		switch v := lookup(m, k).(type) {
		case bool:
			return v, true
		case string:
			if b, err := strconv.ParseBool(v); err == nil {
				return b, true
			}
		}
	}
	return false, false
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}

// timestamp parses the first usable value: RFC3339-ish strings or unix milliseconds
func timestamp(values ...any) time.Time {
	for _, v := range values {
		switch t := v.(type) {
		case string:
			for _, layout := range timeLayouts {
				if parsed, err := time.Parse(layout, t); err == nil {
					return parsed
				}
			}
		case json.Number:
			if ms, err := t.Int64(); err == nil {
				return time.UnixMilli(ms).UTC()
			}
		}
	}
	return time.Time{}
}
