package session

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/example/ec-admin-console/internal/apiclient"
	"github.com/example/ec-admin-console/internal/apitest"
	"github.com/example/ec-admin-console/internal/auth"
	"github.com/example/ec-admin-console/internal/guard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *MemoryTokenStore, *apiclient.Client, *apitest.Server) {
	t.Helper()
	srv := apitest.New()
	t.Cleanup(srv.Close)
	tokens := NewMemoryTokenStore()
	client := apiclient.New(apiclient.Options{BaseURL: srv.APIURL(), Timeout: 5 * time.Second})
	return NewStore(tokens, client), tokens, client, srv
}

// failingTokenStore refuses every operation
type failingTokenStore struct{}

func (failingTokenStore) Load(context.Context) (string, error) { return "", errors.New("disk gone") }
func (failingTokenStore) Save(context.Context, string) error   { return errors.New("disk gone") }
func (failingTokenStore) Clear(context.Context) error          { return errors.New("disk gone") }

func TestStore_StartsLoading(t *testing.T) {
	s, _, _, _ := newTestStore(t)

	assert.True(t, s.Loading())
	assert.Equal(t, guard.SessionState{Loading: true}, s.State())
}

func TestStore_Rehydrate_Empty(t *testing.T) {
	s, _, _, _ := newTestStore(t)

	require.NoError(t, s.Rehydrate(context.Background()))

	assert.False(t, s.Loading())
	assert.False(t, s.IsAuthenticated())
	assert.Nil(t, s.User())
}

func TestStore_Rehydrate_WithPersistedToken(t *testing.T) {
	s, tokens, client, _ := newTestStore(t)
	token, _, err := auth.NewJWTService("other", time.Hour).GenerateAccessToken("u1", "ops@example.com", "Ops", "admin")
	require.NoError(t, err)
	require.NoError(t, tokens.Save(context.Background(), token))

	require.NoError(t, s.Rehydrate(context.Background()))

	assert.False(t, s.Loading())
	assert.True(t, s.IsAuthenticated())
	assert.True(t, s.IsAdmin())
	assert.Equal(t, token, client.DefaultToken())
	require.NotNil(t, s.User())
	assert.Equal(t, "ops@example.com", s.User().Email)
	assert.True(t, s.User().IsAdmin)
}

func TestStore_Rehydrate_OpaqueToken(t *testing.T) {
	s, tokens, _, _ := newTestStore(t)
	require.NoError(t, tokens.Save(context.Background(), "opaque"))

	require.NoError(t, s.Rehydrate(context.Background()))

	require.NotNil(t, s.User())
	assert.True(t, s.User().IsAdmin)
	assert.Empty(t, s.User().Email)
}

func TestStore_Rehydrate_StoreFailureEndsLoading(t *testing.T) {
	client := apiclient.New(apiclient.Options{BaseURL: "http://127.0.0.1:1"})
	s := NewStore(failingTokenStore{}, client)

	err := s.Rehydrate(context.Background())

	assert.ErrorContains(t, err, "disk gone")
	assert.False(t, s.Loading())
	assert.False(t, s.IsAuthenticated())
}

// ============================================
// SignIn
// ============================================

func TestStore_SignIn_Success(t *testing.T) {
	s, tokens, client, srv := newTestStore(t)
	require.NoError(t, s.Rehydrate(context.Background()))

	res, err := s.SignIn(context.Background(), apitest.AdminEmail, apitest.AdminPassword)

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.UserRegistered)
	require.NotNil(t, res.User)
	assert.Equal(t, apitest.AdminName, res.User.Name)
	assert.True(t, res.User.IsAdmin)

	persisted, err := tokens.Load(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, persisted)
	assert.Equal(t, persisted, s.Token())
	assert.Equal(t, persisted, client.DefaultToken())
	assert.Equal(t, guard.SessionState{Authenticated: true, Admin: true}, s.State())

	// the next request carries the persisted token
	_, err = client.Get(context.Background(), "/shop/categories", nil)
	require.NoError(t, err)
	calls := srv.Calls(http.MethodGet, "/api/shop/categories")
	require.Len(t, calls, 1)
	assert.Equal(t, "Bearer "+persisted, calls[0].Auth)
}

func TestStore_SignIn_UnregisteredAccount(t *testing.T) {
	s, tokens, _, _ := newTestStore(t)
	require.NoError(t, s.Rehydrate(context.Background()))

	res, err := s.SignIn(context.Background(), "nobody@example.com", "secret1")

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.False(t, res.UserRegistered)
	assert.ErrorIs(t, res.Err(), ErrAccountNotFound)
	assert.Equal(t, "Account not found. Please register first.", LoginMessage(res, err))
	assert.False(t, s.IsAuthenticated())
	persisted, _ := tokens.Load(context.Background())
	assert.Empty(t, persisted)
}

func TestStore_SignIn_WrongPassword(t *testing.T) {
	s, _, _, _ := newTestStore(t)
	require.NoError(t, s.Rehydrate(context.Background()))

	res, err := s.SignIn(context.Background(), apitest.AdminEmail, "not-it")

	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, 401, apiclient.StatusCode(err))
	assert.Equal(t, "Invalid credentials", LoginMessage(res, err))
	assert.False(t, s.IsAuthenticated())
}

func TestStore_SignIn_NoTokenInBody(t *testing.T) {
	s, tokens, _, srv := newTestStore(t)
	require.NoError(t, s.Rehydrate(context.Background()))
	srv.Override(http.MethodPost, "/api/auth/signin", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	})

	res, err := s.SignIn(context.Background(), apitest.AdminEmail, apitest.AdminPassword)

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, s.IsAuthenticated())
	persisted, _ := tokens.Load(context.Background())
	assert.Empty(t, persisted)
}

func TestStore_SignIn_PersistFailureKeepsStateUnchanged(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	client := apiclient.New(apiclient.Options{BaseURL: srv.APIURL()})
	s := NewStore(failingTokenStore{}, client)

	_, err := s.SignIn(context.Background(), apitest.AdminEmail, apitest.AdminPassword)

	assert.ErrorContains(t, err, "persisting token")
	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, client.DefaultToken())
}

// ============================================
// SignOut
// ============================================

func TestStore_SignOut_ClearsEverythingAndIsIdempotent(t *testing.T) {
	s, tokens, client, srv := newTestStore(t)
	require.NoError(t, s.Rehydrate(context.Background()))
	_, err := s.SignIn(context.Background(), apitest.AdminEmail, apitest.AdminPassword)
	require.NoError(t, err)

	require.NoError(t, s.SignOut(context.Background()))
	require.NoError(t, s.SignOut(context.Background()))

	assert.False(t, s.IsAuthenticated())
	assert.False(t, s.IsAdmin())
	assert.Nil(t, s.User())
	assert.Empty(t, client.DefaultToken())
	persisted, _ := tokens.Load(context.Background())
	assert.Empty(t, persisted)

	// no bearer on the next request
	srv.ResetCalls()
	_, err = client.Get(context.Background(), "/shop/categories", nil)
	assert.Equal(t, 401, apiclient.StatusCode(err))
	calls := srv.Calls(http.MethodGet, "/api/shop/categories")
	require.Len(t, calls, 1)
	assert.Empty(t, calls[0].Auth)
}

// stickyTokenStore saves and loads but cannot forget
type stickyTokenStore struct {
	*MemoryTokenStore
}

func (stickyTokenStore) Clear(context.Context) error { return errors.New("read-only volume") }

func TestStore_SignOut_FailedClearKeepsSession(t *testing.T) {
	srv := apitest.New()
	t.Cleanup(srv.Close)
	tokens := stickyTokenStore{NewMemoryTokenStore()}
	client := apiclient.New(apiclient.Options{BaseURL: srv.APIURL(), Timeout: 5 * time.Second})
	s := NewStore(tokens, client)
	require.NoError(t, s.Rehydrate(context.Background()))
	_, err := s.SignIn(context.Background(), apitest.AdminEmail, apitest.AdminPassword)
	require.NoError(t, err)
	token := s.Token()

	err = s.SignOut(context.Background())

	require.ErrorContains(t, err, "read-only volume")
	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, token, s.Token())
	assert.Equal(t, token, client.DefaultToken())
	persisted, _ := tokens.Load(context.Background())
	assert.Equal(t, token, persisted)
}

func TestStore_MarshalJSON_OmitsToken(t *testing.T) {
	s, _, _, _ := newTestStore(t)
	require.NoError(t, s.Rehydrate(context.Background()))
	_, err := s.SignIn(context.Background(), apitest.AdminEmail, apitest.AdminPassword)
	require.NoError(t, err)

	data, err := s.MarshalJSON()

	require.NoError(t, err)
	assert.Contains(t, string(data), `"authenticated":true`)
	assert.NotContains(t, string(data), s.Token())
}

// ============================================
// LoginForm
// ============================================

func TestLoginForm_Validate(t *testing.T) {
	tests := []struct {
		name string
		form LoginForm
		want string
	}{
		{"valid", LoginForm{Email: " admin@example.com ", Password: "admin123"}, ""},
		{"bad email", LoginForm{Email: "admin", Password: "admin123"}, "Enter a valid email"},
		{"empty email", LoginForm{Password: "admin123"}, "Enter a valid email"},
		{"short password", LoginForm{Email: "admin@example.com", Password: "12345"}, "Password must be at least 6 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.form.Validate()
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.want, LoginMessage(SignInResult{}, err))
		})
	}
}

func TestLoginMessage_Success(t *testing.T) {
	assert.Empty(t, LoginMessage(SignInResult{Success: true, UserRegistered: true}, nil))
}
