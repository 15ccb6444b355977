package apitest

import (
	"fmt"
	"time"

	"github.com/example/ec-admin-console/internal/readmodel"
)

// SeedCategories adds n categories named "Category 1".."Category n" with descending sort ids
func (s *Server) SeedCategories(n int) []readmodel.Category {
	out := make([]readmodel.Category, 0, n)
	for i := 1; i <= n; i++ {
		c := readmodel.Category{
			ID:      fmt.Sprintf("c%d", i),
			Name:    fmt.Sprintf("Category %d", i),
			Visible: i%2 == 1,
			SortID:  float64(n - i + 1),
			Type:    "main",
		}
		s.Store.PutCategory(c)
		out = append(out, c)
	}
	return out
}

// SeedProducts adds n products spread over the given category ids
func (s *Server) SeedProducts(n int, categoryIDs ...string) []readmodel.Product {
	out := make([]readmodel.Product, 0, n)
	for i := 1; i <= n; i++ {
		p := readmodel.Product{
			ID:        fmt.Sprintf("p%d", i),
			Name:      fmt.Sprintf("Product %d", i),
			Price:     float64(i) * 10,
			Visible:   i%3 != 0,
			IsInStock: true,
		}
		if len(categoryIDs) > 0 {
			p.CategoryID = categoryIDs[(i-1)%len(categoryIDs)]
		}
		s.Store.PutProduct(p)
		out = append(out, p)
	}
	return out
}

// SeedOrders adds n pending orders, one minute apart, the last one newest
func (s *Server) SeedOrders(n int) []readmodel.Order {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	out := make([]readmodel.Order, 0, n)
	for i := 1; i <= n; i++ {
		o := readmodel.Order{
			ID:          fmt.Sprintf("o%d", i),
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
			TotalAmount: float64(i) * 25,
			Status:      readmodel.StatusPending,
			User:        readmodel.OrderUser{Name: fmt.Sprintf("Customer %d", i), Email: fmt.Sprintf("c%d@example.com", i)},
			Items: []readmodel.OrderItem{
				{ProductID: "p1", ProductName: "Product 1", Quantity: i, UnitPrice: 25},
			},
		}
		s.Store.PutOrder(o)
		out = append(out, o)
	}
	return out
}
