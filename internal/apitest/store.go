package apitest

import (
	"sort"
	"sync"

	"github.com/example/ec-admin-console/internal/readmodel"
)

type account struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
}

// Store is the fake backend's in-memory data, kept in insertion order per collection
type Store struct {
	mu         sync.RWMutex
	accounts   map[string]account
	categories []readmodel.Category
	products   []readmodel.Product
	orders     []readmodel.Order
}

func newStore() *Store {
	return &Store{accounts: make(map[string]account)}
}

func (s *Store) account(email string) (account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[email]
	return a, ok
}

func (s *Store) putAccount(a account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.Email] = a
}

func (s *Store) Categories() []readmodel.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]readmodel.Category{}, s.categories...)
}

func (s *Store) Category(id string) (readmodel.Category, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.categories {
		if c.ID == id {
			return c, true
		}
	}
	return readmodel.Category{}, false
}

func (s *Store) PutCategory(c readmodel.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.categories {
		if s.categories[i].ID == c.ID {
			s.categories[i] = c
			return
		}
	}
	s.categories = append(s.categories, c)
}

func (s *Store) DeleteCategory(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.categories {
		if s.categories[i].ID == id {
			s.categories = append(s.categories[:i], s.categories[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Store) Products() []readmodel.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]readmodel.Product{}, s.products...)
}

func (s *Store) Product(id string) (readmodel.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if p.ID == id {
			return p, true
		}
	}
	return readmodel.Product{}, false
}

func (s *Store) PutProduct(p readmodel.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.products {
		if s.products[i].ID == p.ID {
			s.products[i] = p
			return
		}
	}
	s.products = append(s.products, p)
}

func (s *Store) DeleteProduct(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.products {
		if s.products[i].ID == id {
			s.products = append(s.products[:i], s.products[i+1:]...)
			return true
		}
	}
	return false
}

// Orders returns every order, newest first
func (s *Store) Orders() []readmodel.Order {
	s.mu.RLock()
	out := append([]readmodel.Order{}, s.orders...)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *Store) Order(id string) (readmodel.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orders {
		if o.ID == id {
			return o, true
		}
	}
	return readmodel.Order{}, false
}

func (s *Store) PutOrder(o readmodel.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.orders {
		if s.orders[i].ID == o.ID {
			s.orders[i] = o
			return
		}
	}
	s.orders = append(s.orders, o)
}

// Update modifies an order in place using updateFn
func (s *Store) UpdateOrder(id string, updateFn func(*readmodel.Order)) (readmodel.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.orders {
		if s.orders[i].ID == id {
			updateFn(&s.orders[i])
			return s.orders[i], true
		}
	}
	return readmodel.Order{}, false
}

// Stats computes the dashboard counters the way the backend does
func (s *Store) Stats() readmodel.DashboardStats {
	products := s.Products()
	visible := 0
	for _, p := range products {
		if p.Visible {
			visible++
		}
	}
	orders := s.Orders()
	recent := orders
	if len(recent) > 10 {
		recent = recent[:10]
	}
	return readmodel.DashboardStats{
		TotalProducts:   len(products),
		VisibleProducts: visible,
		CategoriesCount: len(s.Categories()),
		OrdersCount:     len(orders),
		RecentOrders:    recent,
	}
}
