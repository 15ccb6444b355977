package cmd

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ec-admin-console/internal/apitest"
	"github.com/example/ec-admin-console/internal/readmodel"
	"github.com/example/ec-admin-console/internal/views"
)

type cli struct {
	api       *apitest.Server
	tokenFile string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	api := apitest.New()
	t.Cleanup(api.Close)

	dir := t.TempDir()
	tokenFile := filepath.Join(dir, "token")
	t.Setenv("HOME", dir)
	t.Setenv("API_URL", api.APIURL())
	t.Setenv("TOKEN_STORE", "file://"+tokenFile)
	for _, key := range []string{
		"REACT_PUBLIC_API_URL", "VITE_PUBLIC_API_URL",
		"SUPABASE_URL", "VITE_PUBLIC_SUPABASE_URL",
		"SUPABASE_ANON_KEY", "VITE_PUBLIC_SUPABASE_ANON_KEY",
		"KAFKA_BROKERS", "HTTP_TIMEOUT",
	} {
		t.Setenv(key, "")
	}
	return &cli{api: api, tokenFile: tokenFile}
}

// run executes one command line with stdin and returns stdout
func (c *cli) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (c *cli) login(t *testing.T) {
	t.Helper()
	out, err := c.run(t, "", "login", "--email", apitest.AdminEmail, "--password", apitest.AdminPassword)
	require.NoError(t, err)
	require.Contains(t, out, "Signed in as Admin")
}

// ============================================
// Session
// ============================================

func TestCLI_CommandsRequireLogin(t *testing.T) {
	c := newCLI(t)

	for _, args := range [][]string{
		{"categories", "list"},
		{"products", "list"},
		{"orders", "list"},
		{"dashboard"},
	} {
		_, err := c.run(t, "", args...)
		assert.ErrorIs(t, err, ErrNotSignedIn, strings.Join(args, " "))
	}
	assert.Equal(t, 0, c.api.Count("", ""))
}

func TestCLI_LoginPersistsTokenAcrossInvocations(t *testing.T) {
	c := newCLI(t)
	c.login(t)

	data, err := os.ReadFile(c.tokenFile)
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(string(data)))

	out, err := c.run(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, `"authenticated": true`)
	assert.Contains(t, out, apitest.AdminEmail)
	assert.NotContains(t, out, strings.TrimSpace(string(data)))

	out, err = c.run(t, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed out")

	_, err = c.run(t, "", "orders", "list")
	assert.ErrorIs(t, err, ErrNotSignedIn)
}

func TestCLI_LoginPromptsForPassword(t *testing.T) {
	c := newCLI(t)

	out, err := c.run(t, apitest.AdminPassword+"\n", "login", "--email", apitest.AdminEmail)

	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as Admin")
}

func TestCLI_LoginFailures(t *testing.T) {
	c := newCLI(t)

	_, err := c.run(t, "", "login", "--email", apitest.AdminEmail, "--password", "wrong-pass")
	assert.EqualError(t, err, "Invalid credentials")

	_, err = c.run(t, "", "login", "--email", "new@example.com", "--password", "secret1")
	assert.EqualError(t, err, "Account not found. Please register first.")

	_, err = c.run(t, "", "login", "--email", "nope", "--password", "secret1")
	assert.EqualError(t, err, "Enter a valid email")
	assert.Equal(t, 2, c.api.Count(http.MethodPost, "/api/auth/signin"))
}

// ============================================
// Categories and products
// ============================================

func TestCLI_CategoriesListAndPaging(t *testing.T) {
	c := newCLI(t)
	c.api.SeedCategories(12)
	c.login(t)

	out, err := c.run(t, "", "categories", "list", "--page", "2")

	require.NoError(t, err)
	assert.Contains(t, out, "Category 11")
	assert.Contains(t, out, "Showing 11 to 12 of 12 results (page 2 of 2)")

	_, err = c.run(t, "", "categories", "list", "--limit", "15")
	assert.Error(t, err)
}

func TestCLI_CategoriesSaveEditDelete(t *testing.T) {
	c := newCLI(t)
	c.api.Store.PutCategory(readmodel.Category{ID: "c1", Name: "Old", Visible: true, SortID: 3, ImageURL: "https://cdn/old.png"})
	c.login(t)

	out, err := c.run(t, "", "categories", "save", "--name", "Shoes", "--sort", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved category")
	assert.Len(t, c.api.Store.Categories(), 2)

	_, err = c.run(t, "", "categories", "save", "--id", "c1", "--name", "Renamed")
	require.NoError(t, err)
	stored, _ := c.api.Store.Category("c1")
	assert.Equal(t, "Renamed", stored.Name)
	assert.Equal(t, float64(3), stored.SortID)
	assert.Equal(t, "https://cdn/old.png", stored.ImageURL)

	_, err = c.run(t, "", "categories", "save", "--name", " ")
	assert.EqualError(t, err, "Name is required")

	_, err = c.run(t, "n\n", "categories", "delete", "c1")
	assert.ErrorIs(t, err, views.ErrNotConfirmed)
	_, ok := c.api.Store.Category("c1")
	assert.True(t, ok)

	_, err = c.run(t, "y\n", "categories", "delete", "c1")
	require.NoError(t, err)
	_, ok = c.api.Store.Category("c1")
	assert.False(t, ok)
}

func TestCLI_CategoryImageNeedsStorage(t *testing.T) {
	c := newCLI(t)
	c.login(t)
	img := filepath.Join(t.TempDir(), "logo.png")
	require.NoError(t, os.WriteFile(img, []byte("png"), 0o600))

	_, err := c.run(t, "", "categories", "save", "--name", "Bags", "--image", img)

	assert.ErrorIs(t, err, views.ErrUploadFailed)
	assert.EqualError(t, err, "Failed to upload image. Please try a smaller file.")
	assert.Equal(t, 0, c.api.Count(http.MethodPost, "/api/shop/categories"))
}

func TestCLI_ProductsListSaveDelete(t *testing.T) {
	c := newCLI(t)
	c.api.SeedCategories(1)
	c.api.SeedProducts(2, "c1")
	c.login(t)

	out, err := c.run(t, "", "products", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Product 2")
	assert.Contains(t, out, "Category 1")
	assert.Contains(t, out, "$20.00")

	_, err = c.run(t, "", "products", "save", "--name", "Mug", "--price", "cheap")
	assert.EqualError(t, err, "Price must be a number")

	_, err = c.run(t, "", "products", "save", "--id", "p1", "--price", "99.5")
	require.NoError(t, err)
	p1, _ := c.api.Store.Product("p1")
	assert.Equal(t, 99.5, p1.Price)
	assert.Equal(t, "Product 1", p1.Name)
	assert.Equal(t, "c1", p1.CategoryID)

	_, err = c.run(t, "", "products", "delete", "p2", "--yes")
	require.NoError(t, err)
	assert.Len(t, c.api.Store.Products(), 1)
}

// ============================================
// Orders and dashboard
// ============================================

func TestCLI_Orders(t *testing.T) {
	c := newCLI(t)
	c.api.SeedOrders(2)
	c.login(t)

	out, err := c.run(t, "", "orders", "list")
	require.NoError(t, err)
	assert.Less(t, strings.Index(out, "o2"), strings.Index(out, "o1"))
	assert.Contains(t, out, "Customer 1")

	out, err = c.run(t, "", "orders", "show", "o2")
	require.NoError(t, err)
	assert.Contains(t, out, "Order o2")
	assert.Contains(t, out, "Product 1")
	assert.Contains(t, out, "$50.00")

	out, err = c.run(t, "", "orders", "status", "o1", "completed")
	require.NoError(t, err)
	assert.Contains(t, out, "Status:   completed")
	o1, _ := c.api.Store.Order("o1")
	assert.Equal(t, readmodel.StatusCompleted, o1.Status)

	_, err = c.run(t, "", "orders", "status", "o1", "shipped")
	assert.ErrorIs(t, err, readmodel.ErrInvalidStatus)
}

func TestCLI_Dashboard(t *testing.T) {
	c := newCLI(t)
	c.api.SeedProducts(1500)
	c.api.SeedOrders(1)
	c.login(t)

	out, err := c.run(t, "", "dashboard")

	require.NoError(t, err)
	assert.Contains(t, out, "Total Products")
	assert.Contains(t, out, "1,500")
	assert.Contains(t, out, "Recent orders (1)")
	assert.Contains(t, out, "Customer 1")
}
