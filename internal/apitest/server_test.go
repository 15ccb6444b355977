package apitest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func do(t *testing.T, method, url, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestServer_SignIn(t *testing.T) {
	srv := New()
	defer srv.Close()

	resp, body := do(t, http.MethodPost, srv.APIURL()+"/auth/signin", "", map[string]string{"email": AdminEmail, "password": AdminPassword})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["token"])

	resp, body = do(t, http.MethodPost, srv.APIURL()+"/auth/signin", "", map[string]string{"email": "nobody@example.com", "password": "whatever"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["userRegistered"])

	resp, body = do(t, http.MethodPost, srv.APIURL()+"/auth/signin", "", map[string]string{"email": AdminEmail, "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid credentials", body["message"])
}

func TestServer_RequiresBearer(t *testing.T) {
	srv := New()
	defer srv.Close()

	resp, _ := do(t, http.MethodGet, srv.APIURL()+"/shop/categories", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, srv.APIURL()+"/shop/categories", srv.Token(), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_ProductsPagination(t *testing.T) {
	srv := New()
	defer srv.Close()
	srv.SeedProducts(25)

	resp, body := do(t, http.MethodGet, srv.APIURL()+"/shop/products?page=3&limit=10", srv.Token(), nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["data"], 5)
	assert.Equal(t, 25.0, body["total"])
	assert.Equal(t, 3.0, body["pages"])
	assert.Equal(t, 1, srv.Count(http.MethodGet, "/api/shop/products"))
}

func TestServer_Override(t *testing.T) {
	srv := New()
	defer srv.Close()
	srv.Fail(http.MethodGet, "/api/dashboard/stats", http.StatusInternalServerError, "down")

	resp, body := do(t, http.MethodGet, srv.APIURL()+"/dashboard/stats", srv.Token(), nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "down", body["message"])

	srv.Override(http.MethodGet, "/api/dashboard/stats", nil)
	resp, _ = do(t, http.MethodGet, srv.APIURL()+"/dashboard/stats", srv.Token(), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_OrderStatus(t *testing.T) {
	srv := New()
	defer srv.Close()
	srv.SeedOrders(1)

	resp, body := do(t, http.MethodPatch, srv.APIURL()+"/shop/orders/o1/status", srv.Token(), map[string]string{"status": "completed"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "completed", body["status"])

	resp, _ = do(t, http.MethodPatch, srv.APIURL()+"/shop/orders/o1/status", srv.Token(), map[string]string{"status": "shipped"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
