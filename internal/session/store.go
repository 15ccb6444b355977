package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/example/ec-admin-console/internal/apiclient"
	"github.com/example/ec-admin-console/internal/auth"
	"github.com/example/ec-admin-console/internal/guard"
	"github.com/example/ec-admin-console/internal/readmodel"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountNotFound    = errors.New("account not registered")
)

const tokenSourceTimeout = 2 * time.Second

// SignInResult mirrors what the sign-in endpoint told us
type SignInResult struct {
	Success        bool
	UserRegistered bool
	User           *readmodel.User
}

// Err turns an unregistered account into ErrAccountNotFound
func (r SignInResult) Err() error {
	if !r.UserRegistered {
		return ErrAccountNotFound
	}
	return nil
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInResponse struct {
	Token          string          `json:"token"`
	User           *readmodel.User `json:"user"`
	UserRegistered *bool           `json:"userRegistered"`
}

// Store is the single authority on who is signed in.
// State starts as loading until Rehydrate has read the persisted token.
type Store struct {
	tokens TokenStore
	client *apiclient.Client

	mu      sync.RWMutex
	token   string
	user    *readmodel.User
	loading bool
}

// NewStore wires the client to read the persisted token on every request
func NewStore(tokens TokenStore, client *apiclient.Client) *Store {
	s := &Store{tokens: tokens, client: client, loading: true}
	client.SetTokenSource(s.persistedToken)
	return s
}

func (s *Store) persistedToken() string {
	ctx, cancel := context.WithTimeout(context.Background(), tokenSourceTimeout)
	defer cancel()

	token, err := s.tokens.Load(ctx)
	if err != nil {
		log.Printf("[Session] Falling back to in-memory token: %v", err)
		return s.Token()
	}
	return token
}

// Rehydrate restores the session from the TokenStore
func (s *Store) Rehydrate(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	token, err := s.tokens.Load(ctx)
	if err != nil {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
		return fmt.Errorf("rehydrating session: %w", err)
	}

	var user *readmodel.User
	if token != "" {
		user = &readmodel.User{IsAdmin: true}
		if claims, err := auth.ParseUnverified(token); err == nil {
			user.Email = claims.Email
			user.Name = claims.Name
			if claims.Expired(time.Now()) {
				log.Printf("[Session] Persisted token expired at %s; the API will decide", claims.ExpiresAt.Time.Format(time.RFC3339))
			}
		}
	}

	s.mu.Lock()
	s.token = token
	s.user = user
	s.loading = false
	s.mu.Unlock()

	s.client.SetDefaultToken(token)
	log.Printf("[Session] Rehydrated (token present: %t)", token != "")
	return nil
}

// SignIn posts the credentials and, when a token comes back, persists it before updating state
func (s *Store) SignIn(ctx context.Context, email, password string) (SignInResult, error) {
	resp, err := s.client.Post(ctx, "/auth/signin", signInRequest{Email: email, Password: password})
	if err != nil {
		return SignInResult{}, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}

	var body signInResponse
	if len(resp.Body) > 0 {
		if err := resp.Decode(&body); err != nil {
			return SignInResult{}, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		}
	}

	if body.UserRegistered != nil && !*body.UserRegistered {
		log.Printf("[Session] Sign-in for unregistered account")
		return SignInResult{UserRegistered: false}, nil
	}

	if body.Token == "" {
		return SignInResult{Success: true, UserRegistered: true}, nil
	}

	if err := s.tokens.Save(ctx, body.Token); err != nil {
		return SignInResult{}, fmt.Errorf("persisting token: %w", err)
	}

	user := readmodel.User{}
	if body.User != nil {
		user = *body.User
	}
	user.IsAdmin = true

	s.mu.Lock()
	s.token = body.Token
	s.user = &user
	s.loading = false
	s.mu.Unlock()

	s.client.SetDefaultToken(body.Token)
	log.Printf("[Session] Signed in as %s", user.Email)

	u := user
	return SignInResult{Success: true, UserRegistered: true, User: &u}, nil
}

// SignOut clears the persisted token, then memory and the client default.
// When the store cannot be cleared the session stays signed in. Calling it twice is harmless.
func (s *Store) SignOut(ctx context.Context) error {
	if err := s.tokens.Clear(ctx); err != nil {
		return fmt.Errorf("clearing persisted token: %w", err)
	}

	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.loading = false
	s.mu.Unlock()

	s.client.SetDefaultToken("")
	log.Printf("[Session] Signed out")
	return nil
}

func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns a copy of the signed-in user, or nil
func (s *Store) User() *readmodel.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

// IsAdmin equals IsAuthenticated: holding a token is the only admin signal the API gives
func (s *Store) IsAdmin() bool {
	return s.IsAuthenticated()
}

func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// State snapshots the session for guard decisions
func (s *Store) State() guard.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	authed := s.token != ""
	return guard.SessionState{Authenticated: authed, Admin: authed, Loading: s.loading}
}

// MarshalJSON renders the public session view; the token itself is never included
func (s *Store) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Authenticated bool            `json:"authenticated"`
		Loading       bool            `json:"loading"`
		User          *readmodel.User `json:"user,omitempty"`
	}{s.IsAuthenticated(), s.Loading(), s.User()})
}
