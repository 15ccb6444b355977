// Package server is the local admin console: a small HTTP surface over the
// session, the collection views and the dashboard, behind the session guard.
package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ec-admin-console/internal/apiclient"
	"github.com/example/ec-admin-console/internal/dashboard"
	"github.com/example/ec-admin-console/internal/forms"
	"github.com/example/ec-admin-console/internal/guard"
	"github.com/example/ec-admin-console/internal/readmodel"
	"github.com/example/ec-admin-console/internal/session"
	"github.com/example/ec-admin-console/internal/views"
)

type Options struct {
	Session *session.Store
	Deps    views.Deps
	// Gatherer backs /metrics; nil means the default registry
	Gatherer prometheus.Gatherer
}

type Server struct {
	session   *session.Store
	deps      views.Deps
	dashboard *dashboard.Dashboard
	gatherer  prometheus.Gatherer
}

func New(opts Options) *Server {
	g := opts.Gatherer
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return &Server{
		session:   opts.Session,
		deps:      opts.Deps,
		dashboard: dashboard.New(opts.Deps),
		gatherer:  g,
	}
}

// Dashboard is shared so Run can keep it fresh in the background
func (s *Server) Dashboard() *dashboard.Dashboard {
	return s.dashboard
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(withLogging)
	r.NotFound(toAdmin)

	r.Get("/", toAdmin)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Get("/login", s.handleLoginPage)
	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)

	r.Route(guard.AdminPath, func(r chi.Router) {
		r.Use(s.requireSession)
		r.Get("/", s.handleDashboard)
		r.Get("/categories", s.handleCategories)
		r.Get("/products", s.handleProducts)
		r.Get("/orders", s.handleOrders)
		r.Patch("/orders/{id}/status", s.handleOrderStatus)
	})

	return r
}

// requireSession applies the guard decision: wait while rehydrating, otherwise redirect to login
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := guard.Decide(s.session.State(), guard.Route{Location: r.URL.RequestURI(), RequireAdmin: true})
		switch d.Action {
		case guard.Wait:
			w.Header().Set("Retry-After", "1")
			respondError(w, "session is loading", http.StatusServiceUnavailable)
		case guard.Redirect:
			http.Redirect(w, r, d.LoginURL(), http.StatusFound)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// ============================================
// Session
// ============================================

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	if s.session.IsAuthenticated() {
		http.Redirect(w, r, guard.Destination(from), http.StatusSeeOther)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"authenticated": false,
		"from":          from,
		"message":       "POST email and password to /login",
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	From     string `json:"from"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			respondError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		req = loginRequest{Email: r.PostForm.Get("email"), Password: r.PostForm.Get("password"), From: r.PostForm.Get("from")}
	}
	if req.From == "" {
		req.From = r.URL.Query().Get("from")
	}

	form := session.LoginForm{Email: req.Email, Password: req.Password}
	if err := form.Validate(); err != nil {
		respondError(w, session.LoginMessage(session.SignInResult{}, err), http.StatusBadRequest)
		return
	}

	res, err := s.session.SignIn(r.Context(), form.Email, form.Password)
	if msg := session.LoginMessage(res, err); msg != "" {
		if err != nil {
			log.Printf("[Console] Sign-in failed: %v", err)
		}
		respondError(w, msg, http.StatusUnauthorized)
		return
	}
	http.Redirect(w, r, guard.Destination(req.From), http.StatusSeeOther)
}

// toAdmin sends the root and unknown paths to the dashboard; the guard takes it from there
func toAdmin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, guard.AdminPath, http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.session.SignOut(r.Context()); err != nil {
		log.Printf("[Console] Sign-out failed: %v", err)
		respondError(w, "sign-out failed, session kept", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, guard.LoginPath, http.StatusSeeOther)
}

// ============================================
// Admin
// ============================================

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := s.dashboard.Load(r.Context())
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"cards":        s.dashboard.Cards(),
		"recentOrders": s.dashboard.Recent(),
		"stats":        stats,
	})
}

type listResponse[T any] struct {
	Items []T    `json:"items"`
	Total int    `json:"total"`
	Pages int    `json:"pages"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Range string `json:"range,omitempty"`
}

func listBody[T any](snap views.Snapshot[T]) listResponse[T] {
	items := snap.Items
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{
		Items: items,
		Total: snap.Total,
		Pages: snap.Pages,
		Page:  snap.Page.Page,
		Limit: snap.Page.Limit,
		Range: snap.Range(),
	}
}

// position applies ?page and ?limit to a collection; the page is not clamped before the first load
func position[T any](c *views.Collection[T], r *http.Request) error {
	q := r.URL.Query()
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return errors.New("limit must be a number")
		}
		if err := c.SetLimit(limit); err != nil {
			return err
		}
	}
	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return errors.New("page must be a number")
		}
		c.SetPage(page)
	}
	return nil
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	v := views.NewCategoriesView(s.deps)
	if err := position(v.Collection, r); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	snap, err := v.Load(r.Context())
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, listBody(snap))
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	v := views.NewProductsView(s.deps)
	if err := position(v.Collection, r); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	snap, err := v.Load(r.Context())
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	for i, p := range snap.Items {
		snap.Items[i].CategoryName = v.CategoryName(r.Context(), p)
	}
	respondJSON(w, http.StatusOK, listBody(snap))
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	v := views.NewOrdersView(s.deps)
	if err := position(v.Collection, r); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	snap, err := v.Load(r.Context())
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, listBody(snap))
}

func (s *Server) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	order, err := s.dashboard.SetStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if errors.Is(err, readmodel.ErrInvalidStatus) {
		respondError(w, "status must be pending or completed", http.StatusBadRequest)
		return
	}
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// ============================================
// Helpers
// ============================================

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondUpstreamError passes 4xx answers of the admin API through and reports the rest as 502
func respondUpstreamError(w http.ResponseWriter, err error) {
	if fe, ok := forms.Field(err); ok {
		respondError(w, fe.Message, http.StatusBadRequest)
		return
	}
	status := apiclient.StatusCode(err)
	if status < 400 || status >= 500 {
		status = http.StatusBadGateway
	}
	respondError(w, err.Error(), status)
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Printf("[Console] %s %s %d %s", r.Method, r.URL.Path, ww.Status(), time.Since(start).Round(time.Millisecond))
	})
}
