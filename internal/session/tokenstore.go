package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"
)

// TokenStore persists the single session token. Writes return only once durable.
type TokenStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// OpenTokenStore picks a backend from a URL:
// file:///path (or a bare path), sqlite://path, postgres://..., redis://..., memory://
func OpenTokenStore(ctx context.Context, raw string) (TokenStore, error) {
	raw = os.ExpandEnv(strings.TrimSpace(raw))
	scheme, rest, found := strings.Cut(raw, "://")
	if !found {
		if raw == "" {
			return nil, errors.New("token store location is empty")
		}
		return NewFileTokenStore(raw), nil
	}

	switch scheme {
	case "file":
		return NewFileTokenStore(rest), nil
	case "memory":
		return NewMemoryTokenStore(), nil
	case "sqlite":
		if dir := filepath.Dir(rest); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("creating token store directory: %w", err)
			}
		}
		db, err := sql.Open("sqlite", rest)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite token store: %w", err)
		}
		return openSQL(ctx, db, DialectSQLite)
	case "postgres", "postgresql":
		db, err := sql.Open("postgres", raw)
		if err != nil {
			return nil, fmt.Errorf("opening postgres token store: %w", err)
		}
		return openSQL(ctx, db, DialectPostgres)
	case "redis", "rediss":
		opts, err := redis.ParseURL(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing redis token store url: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("connecting to redis token store: %w", err)
		}
		return NewRedisTokenStore(client), nil
	}
	return nil, fmt.Errorf("unsupported token store scheme %q", scheme)
}

func openSQL(ctx context.Context, db *sql.DB, d Dialect) (TokenStore, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to token store: %w", err)
	}
	s := NewSQLTokenStore(db, d)
	if err := s.InitSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// CloseTokenStore releases the backend's connections when it holds any
func CloseTokenStore(ts TokenStore) error {
	if c, ok := ts.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// ============================================
// File
// ============================================

// FileTokenStore keeps the token in a 0600 file written via rename
type FileTokenStore struct {
	path string
	mu   sync.Mutex
}

func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

func (s *FileTokenStore) Path() string {
	return s.path
}

func (s *FileTokenStore) Load(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *FileTokenStore) Save(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".token-*")
	if err != nil {
		return fmt.Errorf("creating token file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(token); err != nil {
		tmp.Close()
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing token file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("securing token file: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *FileTokenStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing token file: %w", err)
	}
	return nil
}

// ============================================
// SQL
// ============================================

type Dialect int

const (
	DialectPostgres Dialect = iota
	DialectSQLite
)

const tokenKey = "token"

const createSessionTable = `CREATE TABLE IF NOT EXISTS admin_session (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`

// SQLTokenStore keeps the token as one row of admin_session
type SQLTokenStore struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLTokenStore(db *sql.DB, d Dialect) *SQLTokenStore {
	return &SQLTokenStore{db: db, dialect: d}
}

// bind rewrites $n placeholders for drivers that want ?
func (s *SQLTokenStore) bind(query string) string {
	if s.dialect != DialectSQLite {
		return query
	}
	for i := 3; i >= 1; i-- {
		query = strings.ReplaceAll(query, fmt.Sprintf("$%d", i), "?")
	}
	return query
}

func (s *SQLTokenStore) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createSessionTable); err != nil {
		return fmt.Errorf("creating admin_session table: %w", err)
	}
	return nil
}

func (s *SQLTokenStore) Load(ctx context.Context) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx,
		s.bind("SELECT value FROM admin_session WHERE key = $1"),
		tokenKey,
	).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("loading token: %w", err)
	}
	return token, nil
}

func (s *SQLTokenStore) Save(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx,
		s.bind(`INSERT INTO admin_session (key, value, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`),
		tokenKey, token, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	return nil
}

func (s *SQLTokenStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.bind("DELETE FROM admin_session WHERE key = $1"), tokenKey); err != nil {
		return fmt.Errorf("clearing token: %w", err)
	}
	return nil
}

func (s *SQLTokenStore) Close() error {
	return s.db.Close()
}

// ============================================
// Redis
// ============================================

const RedisTokenKey = "ec-admin:token"

// RedisTokenStore shares one token between console hosts
type RedisTokenStore struct {
	client redis.Cmdable
	closer io.Closer
}

func NewRedisTokenStore(client redis.Cmdable) *RedisTokenStore {
	s := &RedisTokenStore{client: client}
	if c, ok := client.(io.Closer); ok {
		s.closer = c
	}
	return s
}

func (s *RedisTokenStore) Load(ctx context.Context) (string, error) {
	token, err := s.client.Get(ctx, RedisTokenKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("loading token: %w", err)
	}
	return token, nil
}

func (s *RedisTokenStore) Save(ctx context.Context, token string) error {
	if err := s.client.Set(ctx, RedisTokenKey, token, 0).Err(); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	return nil
}

func (s *RedisTokenStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, RedisTokenKey).Err(); err != nil {
		return fmt.Errorf("clearing token: %w", err)
	}
	return nil
}

func (s *RedisTokenStore) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// ============================================
// Memory
// ============================================

// MemoryTokenStore is a process-local store for tests and one-shot runs
type MemoryTokenStore struct {
	mu    sync.Mutex
	token string
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) Load(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

func (s *MemoryTokenStore) Save(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryTokenStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}
