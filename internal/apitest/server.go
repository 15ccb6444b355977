// Package apitest runs an in-memory admin API and object storage for tests.
package apitest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/example/ec-admin-console/internal/auth"
	"golang.org/x/crypto/bcrypt"
)

const (
	AdminEmail    = "admin@example.com"
	AdminPassword = "admin123"
	AdminName     = "Admin"

	AnonKey = "anon-test-key"
	Bucket  = "interview"

	jwtSecret = "apitest-secret"
)

// Call records one request that reached the fake
type Call struct {
	Method string
	Path   string
	Query  url.Values
	Auth   string
	Body   []byte
}

// Object is a file accepted by the fake storage
type Object struct {
	Bucket      string
	Path        string
	ContentType string
	Data        []byte
}

// Server is a fake admin API at URL()+"/api" and a fake storage at URL()
type Server struct {
	*httptest.Server
	Store *Store

	jwt *auth.JWTService

	mu        sync.Mutex
	calls     []Call
	overrides map[string]http.HandlerFunc
	tickets   map[string]string // upload token -> object path
	objects   map[string]Object
}

func New() *Server {
	s := &Server{
		Store:     newStore(),
		jwt:       auth.NewJWTService(jwtSecret, time.Hour),
		overrides: make(map[string]http.HandlerFunc),
		tickets:   make(map[string]string),
		objects:   make(map[string]Object),
	}
	if err := s.AddAdmin(AdminEmail, AdminPassword, AdminName); err != nil {
		panic(err)
	}
	s.Server = httptest.NewServer(s.record(s.routes()))
	return s
}

// APIURL is the base URL the client should be configured with
func (s *Server) APIURL() string {
	return s.URL + "/api"
}

// AddAdmin registers an account that can sign in
func (s *Server) AddAdmin(email, password, name string) error {
	hash, err := auth.HashPasswordCost(password, bcrypt.MinCost)
	if err != nil {
		return err
	}
	s.Store.putAccount(account{ID: "u-" + email, Name: name, Email: email, PasswordHash: hash})
	return nil
}

// Token issues a valid bearer token for the default admin
func (s *Server) Token() string {
	token, _, err := s.jwt.GenerateAccessToken("u-"+AdminEmail, AdminEmail, AdminName, "admin")
	if err != nil {
		panic(err)
	}
	return token
}

// Override replaces the handler for an exact "METHOD /path" until cleared with nil
func (s *Server) Override(method, path string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := method + " " + path
	if h == nil {
		delete(s.overrides, key)
		return
	}
	s.overrides[key] = h
}

// Fail makes method+path answer status with a JSON message
func (s *Server) Fail(method, path string, status int, message string) {
	s.Override(method, path, func(w http.ResponseWriter, r *http.Request) {
		respondJSONError(w, message, status)
	})
}

// Calls returns recorded requests, filtered by method and path when given
func (s *Server) Calls(method, path string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Call
	for _, c := range s.calls {
		if (method == "" || c.Method == method) && (path == "" || c.Path == path) {
			out = append(out, c)
		}
	}
	return out
}

// Count is len(Calls(method, path))
func (s *Server) Count(method, path string) int {
	return len(s.Calls(method, path))
}

func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// Object returns what the fake storage holds at bucket/path
func (s *Server) Object(bucket, path string) (Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[bucket+"/"+path]
	return o, ok
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(body))
		}

		s.mu.Lock()
		s.calls = append(s.calls, Call{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Auth:   r.Header.Get("Authorization"),
			Body:   body,
		})
		override := s.overrides[r.Method+" "+r.URL.Path]
		s.mu.Unlock()

		if override != nil {
			override(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAuth is the bearer check in front of every admin route
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			respondJSONError(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if _, err := s.jwt.ValidateAccessToken(strings.TrimPrefix(header, "Bearer ")); err != nil {
			respondJSONError(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondJSONError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, status, map[string]string{"message": message})
}
