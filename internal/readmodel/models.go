package readmodel

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// User is the signed-in administrator as known to the client
type User struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	IsAdmin bool   `json:"isAdmin"`
}

// Category is the client projection of a product category
type Category struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Visible  bool    `json:"visible"`
	SortID   float64 `json:"sortId"`
	ImageURL string  `json:"imageUrl,omitempty"`
	Type     string  `json:"type,omitempty"` // "main" or "sub"
}

// IsSub reports whether the category is a sub category
func (c Category) IsSub() bool {
	return strings.EqualFold(strings.TrimSpace(c.Type), "sub")
}

// Product is the client projection of a product
type Product struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Price           float64  `json:"price"`
	DiscountedPrice *float64 `json:"discountedPrice,omitempty"`
	Description     string   `json:"description,omitempty"`
	CategoryID      string   `json:"categoryId,omitempty"`
	CategoryName    string   `json:"categoryName,omitempty"`
	Visible         bool     `json:"visible"`
	IsInStock       bool     `json:"isInStock"`
	ImageURL        string   `json:"imageUrl,omitempty"`
}

// OrderStatus is the admin-facing order state
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusCompleted OrderStatus = "completed"
)

var ErrInvalidStatus = errors.New("invalid order status")

// ParseOrderStatus accepts exactly pending or completed (case-insensitive)
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch OrderStatus(strings.ToLower(strings.TrimSpace(s))) {
	case StatusPending:
		return StatusPending, nil
	case StatusCompleted:
		return StatusCompleted, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// OrderUser is the customer snapshot embedded in an order
type OrderUser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// OrderItem is a line item snapshot
type OrderItem struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
}

// LineTotal returns quantity * unit price
func (i OrderItem) LineTotal() float64 {
	return float64(i.Quantity) * i.UnitPrice
}

// Order is the client projection of an order
type Order struct {
	ID          string      `json:"id"`
	CreatedAt   time.Time   `json:"createdAt"`
	TotalAmount float64     `json:"totalAmount"`
	Status      OrderStatus `json:"status"`
	User        OrderUser   `json:"user"`
	UserID      string      `json:"userId,omitempty"`
	Items       []OrderItem `json:"items"`
	ItemsCount  int         `json:"itemsCount,omitempty"`
}

// Customer is the name, else the email, else "#<user id>"
func (o Order) Customer() string {
	switch {
	case o.User.Name != "":
		return o.User.Name
	case o.User.Email != "":
		return o.User.Email
	case o.UserID != "":
		return "#" + o.UserID
	}
	return "—"
}

// ItemCount prefers the embedded items over the server's counter
func (o Order) ItemCount() int {
	if len(o.Items) > 0 {
		return len(o.Items)
	}
	return o.ItemsCount
}

// DashboardStats are the precomputed counters shown on the dashboard
type DashboardStats struct {
	TotalProducts   int     `json:"totalProducts"`
	VisibleProducts int     `json:"visibleProducts"`
	CategoriesCount int     `json:"categoriesCount"`
	OrdersCount     int     `json:"ordersCount"`
	RecentOrders    []Order `json:"last10Orders"`
}

// UploadTicket is the one-time capability returned by POST /uploads/sign
type UploadTicket struct {
	Token      string `json:"token"`
	ObjectPath string `json:"objectPath"`
	PublicURL  string `json:"publicUrl,omitempty"`
	Bucket     string `json:"bucket,omitempty"`
}

// ListResult is one fetched page of a collection
type ListResult[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// FormatMoney renders an amount the way the dashboard tables do
func FormatMoney(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}
