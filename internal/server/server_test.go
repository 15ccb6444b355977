package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ec-admin-console/internal/apiclient"
	"github.com/example/ec-admin-console/internal/apitest"
	"github.com/example/ec-admin-console/internal/events"
	"github.com/example/ec-admin-console/internal/querycache"
	"github.com/example/ec-admin-console/internal/session"
	"github.com/example/ec-admin-console/internal/views"
)

type consoleFixture struct {
	api     *apitest.Server
	session *session.Store
	console *httptest.Server
	http    *http.Client
}

func newFixture(t *testing.T, rehydrate bool) *consoleFixture {
	t.Helper()
	return newFixtureWithTokens(t, rehydrate, session.NewMemoryTokenStore())
}

func newFixtureWithTokens(t *testing.T, rehydrate bool, tokens session.TokenStore) *consoleFixture {
	t.Helper()
	api := apitest.New()
	t.Cleanup(api.Close)

	reg := prometheus.NewRegistry()
	client := apiclient.New(apiclient.Options{BaseURL: api.APIURL(), Registerer: reg})
	store := session.NewStore(tokens, client)
	if rehydrate {
		require.NoError(t, store.Rehydrate(context.Background()))
	}
	bus := events.NewBus()
	deps := views.Deps{Client: client, Cache: querycache.New(bus, reg), Bus: bus}

	console := httptest.NewServer(New(Options{Session: store, Deps: deps, Gatherer: reg}).Router())
	t.Cleanup(console.Close)

	return &consoleFixture{
		api:     api,
		session: store,
		console: console,
		http: &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}},
	}
}

func (f *consoleFixture) do(t *testing.T, method, path, contentType, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.console.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := f.http.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (f *consoleFixture) login(t *testing.T) {
	t.Helper()
	resp := f.do(t, http.MethodPost, "/login", "application/json",
		`{"email":"`+apitest.AdminEmail+`","password":"`+apitest.AdminPassword+`"}`)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func errorMessage(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body map[string]string
	decode(t, resp, &body)
	return body["error"]
}

// ============================================
// Ambient routes
// ============================================

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, true)

	resp := f.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	f.login(t)
	resp = f.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "ec_admin_api_requests_total")
}

// ============================================
// Guard
// ============================================

func TestGuard_WaitsWhileLoading(t *testing.T) {
	f := newFixture(t, false)

	resp := f.do(t, http.MethodGet, "/admin", "", "")

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))
}

func TestGuard_RedirectsWithOrigin(t *testing.T) {
	f := newFixture(t, true)

	resp := f.do(t, http.MethodGet, "/admin/orders?page=2", "", "")

	require.Equal(t, http.StatusFound, resp.StatusCode)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/login", loc.Path)
	assert.Equal(t, "/admin/orders?page=2", loc.Query().Get("from"))
	assert.Equal(t, 0, f.api.Count("", ""))
}

func TestLogin_ReturnsToOrigin(t *testing.T) {
	f := newFixture(t, true)

	resp := f.do(t, http.MethodPost, "/login", "application/x-www-form-urlencoded", url.Values{
		"email":    {apitest.AdminEmail},
		"password": {apitest.AdminPassword},
		"from":     {"/admin/orders?page=2"},
	}.Encode())

	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/admin/orders?page=2", resp.Header.Get("Location"))
	assert.True(t, f.session.IsAuthenticated())

	resp = f.do(t, http.MethodGet, "/login?from=/admin/products", "", "")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/admin/products", resp.Header.Get("Location"))
}

func TestLogin_ForeignOriginFallsBackToAdmin(t *testing.T) {
	f := newFixture(t, true)

	resp := f.do(t, http.MethodPost, "/login?from=https://evil.example/admin", "application/json",
		`{"email":"`+apitest.AdminEmail+`","password":"`+apitest.AdminPassword+`"}`)

	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/admin", resp.Header.Get("Location"))
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{"wrong password", `{"email":"admin@example.com","password":"wrong-pass"}`, http.StatusUnauthorized, "Invalid credentials"},
		{"unregistered", `{"email":"nobody@example.com","password":"secret1"}`, http.StatusUnauthorized, "Account not found. Please register first."},
		{"bad email", `{"email":"not-an-email","password":"secret1"}`, http.StatusBadRequest, "Enter a valid email"},
		{"short password", `{"email":"admin@example.com","password":"123"}`, http.StatusBadRequest, "Password must be at least 6 characters"},
		{"malformed", `{`, http.StatusBadRequest, "Invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, true)

			resp := f.do(t, http.MethodPost, "/login", "application/json", tt.body)

			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.message, errorMessage(t, resp))
			assert.False(t, f.session.IsAuthenticated())
		})
	}
}

func TestLogout(t *testing.T) {
	f := newFixture(t, true)
	f.login(t)

	resp := f.do(t, http.MethodPost, "/logout", "", "")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp = f.do(t, http.MethodGet, "/admin", "", "")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}

// stickyTokenStore cannot forget its token
type stickyTokenStore struct {
	*session.MemoryTokenStore
}

func (stickyTokenStore) Clear(context.Context) error { return errors.New("read-only volume") }

func TestLogout_FailedClearKeepsSession(t *testing.T) {
	f := newFixtureWithTokens(t, true, stickyTokenStore{session.NewMemoryTokenStore()})
	f.login(t)

	resp := f.do(t, http.MethodPost, "/logout", "", "")
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.True(t, f.session.IsAuthenticated())

	resp = f.do(t, http.MethodGet, "/admin", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRootAndUnknownPathsGoToAdmin(t *testing.T) {
	f := newFixture(t, true)

	for _, path := range []string{"/", "/nowhere", "/shop/old-link"} {
		resp := f.do(t, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusFound, resp.StatusCode, path)
		assert.Equal(t, "/admin", resp.Header.Get("Location"), path)
	}
}

// ============================================
// Admin views
// ============================================

func TestAdmin_Dashboard(t *testing.T) {
	f := newFixture(t, true)
	f.api.SeedOrders(3)
	f.login(t)

	resp := f.do(t, http.MethodGet, "/admin", "", "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Cards []struct {
			Label string
			Value string
		} `json:"cards"`
		RecentOrders []struct{ ID string } `json:"recentOrders"`
	}
	decode(t, resp, &body)
	require.Len(t, body.Cards, 4)
	assert.Equal(t, "Orders", body.Cards[3].Label)
	assert.Equal(t, "3", body.Cards[3].Value)
	assert.Len(t, body.RecentOrders, 3)
}

func TestAdmin_ListsWithPaging(t *testing.T) {
	f := newFixture(t, true)
	f.api.SeedCategories(2)
	f.api.SeedProducts(25, "c1")
	f.login(t)

	resp := f.do(t, http.MethodGet, "/admin/products?page=3&limit=10", "", "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Items []struct {
			ID           string `json:"id"`
			CategoryName string `json:"categoryName"`
		} `json:"items"`
		Total int    `json:"total"`
		Pages int    `json:"pages"`
		Page  int    `json:"page"`
		Range string `json:"range"`
	}
	decode(t, resp, &body)
	assert.Len(t, body.Items, 5)
	assert.Equal(t, "Category 1", body.Items[0].CategoryName)
	assert.Equal(t, 25, body.Total)
	assert.Equal(t, 3, body.Pages)
	assert.Equal(t, 3, body.Page)
	assert.Equal(t, "Showing 21 to 25 of 25 results", body.Range)

	resp = f.do(t, http.MethodGet, "/admin/categories?limit=15", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/admin/orders", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdmin_UpstreamErrors(t *testing.T) {
	f := newFixture(t, true)
	f.login(t)

	f.api.Fail(http.MethodGet, "/api/shop/categories", http.StatusInternalServerError, "db down")
	resp := f.do(t, http.MethodGet, "/admin/categories", "", "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	f.api.Fail(http.MethodGet, "/api/shop/orders", http.StatusForbidden, "forbidden")
	resp = f.do(t, http.MethodGet, "/admin/orders", "", "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAdmin_OrderStatus(t *testing.T) {
	f := newFixture(t, true)
	f.api.SeedOrders(1)
	f.login(t)

	resp := f.do(t, http.MethodPatch, "/admin/orders/o1/status", "application/json", `{"status":"completed"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var order struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	decode(t, resp, &order)
	assert.Equal(t, "o1", order.ID)
	assert.Equal(t, "completed", order.Status)

	stored, _ := f.api.Store.Order("o1")
	assert.Equal(t, "completed", string(stored.Status))

	resp = f.do(t, http.MethodPatch, "/admin/orders/o1/status", "application/json", `{"status":"shipped"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 1, f.api.Count(http.MethodPatch, "/api/shop/orders/o1/status"))
}
