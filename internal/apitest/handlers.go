package apitest

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/ec-admin-console/internal/auth"
	"github.com/example/ec-admin-console/internal/readmodel"
	"github.com/google/uuid"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/signin", s.signIn)

	mux.HandleFunc("GET /api/shop/categories", s.requireAuth(s.listCategories))
	mux.HandleFunc("POST /api/shop/categories", s.requireAuth(s.saveCategory))
	mux.HandleFunc("PUT /api/shop/categories/{id}", s.requireAuth(s.saveCategory))
	mux.HandleFunc("DELETE /api/shop/categories/{id}", s.requireAuth(s.deleteCategory))

	mux.HandleFunc("GET /api/shop/products", s.requireAuth(s.listProducts))
	mux.HandleFunc("POST /api/shop/products", s.requireAuth(s.saveProduct))
	mux.HandleFunc("PUT /api/shop/products/{id}", s.requireAuth(s.saveProduct))
	mux.HandleFunc("DELETE /api/shop/products/{id}", s.requireAuth(s.deleteProduct))

	mux.HandleFunc("GET /api/shop/orders", s.requireAuth(s.listOrders))
	mux.HandleFunc("GET /api/shop/orders/{id}", s.requireAuth(s.getOrder))
	mux.HandleFunc("PATCH /api/shop/orders/{id}/status", s.requireAuth(s.updateOrderStatus))

	mux.HandleFunc("GET /api/dashboard/stats", s.requireAuth(s.dashboardStats))
	mux.HandleFunc("POST /api/uploads/sign", s.requireAuth(s.signUpload))

	mux.HandleFunc("PUT /storage/v1/object/upload/sign/{bucket}/{path...}", s.storeObject)
	mux.HandleFunc("GET /storage/v1/object/public/{bucket}/{path...}", s.publicObject)

	return mux
}

// Auth

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	acc, exists := s.Store.account(req.Email)
	if !exists {
		respondJSON(w, http.StatusOK, map[string]any{"userRegistered": false})
		return
	}
	if !auth.CheckPassword(req.Password, acc.PasswordHash) {
		respondJSONError(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, _, err := s.jwt.GenerateAccessToken(acc.ID, acc.Email, acc.Name, "admin")
	if err != nil {
		respondJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  map[string]string{"name": acc.Name, "email": acc.Email},
	})
}

// Categories

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	all := s.Store.Categories()
	if r.URL.Query().Get("all") == "true" {
		respondJSON(w, http.StatusOK, all)
		return
	}
	start, end, _ := paginate(r, len(all))
	respondJSON(w, http.StatusOK, map[string]any{
		"items": all[start:end],
		"total": len(all),
	})
}

// saveCategory creates on POST; PUT decodes onto the stored record so omitted fields survive
func (s *Server) saveCategory(w http.ResponseWriter, r *http.Request) {
	var c readmodel.Category
	status := http.StatusCreated
	id := r.PathValue("id")
	if id != "" {
		existing, ok := s.Store.Category(id)
		if !ok {
			respondJSONError(w, "Category not found", http.StatusNotFound)
			return
		}
		c = existing
		status = http.StatusOK
	}
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(c.Name) == "" {
		respondJSONError(w, "name is required", http.StatusBadRequest)
		return
	}
	if id == "" {
		id = uuid.New().String()
	}
	c.ID = id

	s.Store.PutCategory(c)
	respondJSON(w, status, c)
}

func (s *Server) deleteCategory(w http.ResponseWriter, r *http.Request) {
	if !s.Store.DeleteCategory(r.PathValue("id")) {
		respondJSONError(w, "Category not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Category deleted"})
}

// Products

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	all := s.Store.Products()
	start, end, pages := paginate(r, len(all))
	respondJSON(w, http.StatusOK, map[string]any{
		"data":  all[start:end],
		"total": len(all),
		"pages": pages,
	})
}

func (s *Server) saveProduct(w http.ResponseWriter, r *http.Request) {
	var p readmodel.Product
	status := http.StatusCreated
	id := r.PathValue("id")
	if id != "" {
		existing, ok := s.Store.Product(id)
		if !ok {
			respondJSONError(w, "Product not found", http.StatusNotFound)
			return
		}
		p = existing
		status = http.StatusOK
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(p.Name) == "" {
		respondJSONError(w, "name is required", http.StatusBadRequest)
		return
	}
	if id == "" {
		id = uuid.New().String()
	}
	p.ID = id

	s.Store.PutProduct(p)
	respondJSON(w, status, p)
}

func (s *Server) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if !s.Store.DeleteProduct(r.PathValue("id")) {
		respondJSONError(w, "Product not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Product deleted"})
}

// Orders

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	all := s.Store.Orders()
	start, end, pages := paginate(r, len(all))
	respondJSON(w, http.StatusOK, map[string]any{
		"data":  all[start:end],
		"total": len(all),
		"pages": pages,
	})
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	order, ok := s.Store.Order(r.PathValue("id"))
	if !ok {
		respondJSONError(w, "Order not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (s *Server) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	status, err := readmodel.ParseOrderStatus(req.Status)
	if err != nil {
		respondJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	order, ok := s.Store.UpdateOrder(r.PathValue("id"), func(o *readmodel.Order) {
		o.Status = status
	})
	if !ok {
		respondJSONError(w, "Order not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (s *Server) dashboardStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.Store.Stats())
}

// Uploads

func (s *Server) signUpload(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FileName    string `json:"fileName"`
		ContentType string `json:"contentType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FileName == "" {
		respondJSONError(w, "fileName is required", http.StatusBadRequest)
		return
	}

	token := uuid.New().String()
	objectPath := "uploads/" + strconv.FormatInt(time.Now().UnixNano(), 36) + "-" + req.FileName

	s.mu.Lock()
	s.tickets[token] = objectPath
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, map[string]string{
		"token":      token,
		"objectPath": objectPath,
		"bucket":     Bucket,
	})
}

func (s *Server) storeObject(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("apikey") != AnonKey {
		respondJSONError(w, "Invalid API key", http.StatusUnauthorized)
		return
	}
	bucket, path := r.PathValue("bucket"), r.PathValue("path")
	token := r.URL.Query().Get("token")

	s.mu.Lock()
	expected, ok := s.tickets[token]
	if ok && expected == path {
		delete(s.tickets, token)
	}
	s.mu.Unlock()

	if !ok || expected != path {
		respondJSONError(w, "invalid signature", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		respondJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.objects[bucket+"/"+path] = Object{
		Bucket:      bucket,
		Path:        path,
		ContentType: r.Header.Get("Content-Type"),
		Data:        data,
	}
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, map[string]string{"Key": bucket + "/" + path})
}

func (s *Server) publicObject(w http.ResponseWriter, r *http.Request) {
	obj, ok := s.Object(r.PathValue("bucket"), r.PathValue("path"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", obj.ContentType)
	_, _ = w.Write(obj.Data)
}

// paginate reads page and limit (defaults 1 and 10) and returns the slice bounds and page count
func paginate(r *http.Request, total int) (start, end, pages int) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 1 {
		limit = 10
	}

	pages = (total + limit - 1) / limit
	if pages < 1 {
		pages = 1
	}
	start = (page - 1) * limit
	if start > total {
		start = total
	}
	end = start + limit
	if end > total {
		end = total
	}
	return start, end, pages
}
