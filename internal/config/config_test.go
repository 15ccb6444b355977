package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME at an empty dir and clears every recognised variable
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, envs := range keys {
		for _, e := range envs {
			t.Setenv(e, "")
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, DefaultAPIURL, cfg.APIURL)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, DefaultBucket, cfg.Storage.Bucket)
	assert.False(t, cfg.Storage.Enabled())
	assert.Equal(t, DefaultTokenStore, cfg.TokenStore)
	assert.False(t, cfg.Kafka.Enabled())
	assert.Equal(t, DefaultKafkaTopic, cfg.Kafka.Topic)
	assert.Equal(t, DefaultConsoleAddr, cfg.ConsoleAddr)
	assert.Empty(t, cfg.File)
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("API_URL", "https://api.example.com/api/")
	t.Setenv("SUPABASE_URL", "https://x.supabase.co")
	t.Setenv("SUPABASE_ANON_KEY", "anon")
	t.Setenv("SUPABASE_BUCKET", "media")
	t.Setenv("HTTP_TIMEOUT", "5s")
	t.Setenv("TOKEN_STORE", "redis://localhost:6379/0")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("KAFKA_TOPIC", "inv")
	t.Setenv("CONSOLE_ADDR", "127.0.0.1:9000")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/api", cfg.APIURL)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, StorageConfig{URL: "https://x.supabase.co", AnonKey: "anon", Bucket: "media"}, cfg.Storage)
	assert.True(t, cfg.Storage.Enabled())
	assert.Equal(t, "redis://localhost:6379/0", cfg.TokenStore)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "inv", cfg.Kafka.Topic)
	assert.Equal(t, "127.0.0.1:9000", cfg.ConsoleAddr)
}

func TestLoad_LegacyEnvNames(t *testing.T) {
	isolate(t)
	t.Setenv("VITE_PUBLIC_API_URL", "https://vite.example.com/api")
	t.Setenv("VITE_PUBLIC_SUPABASE_URL", "https://v.supabase.co")
	t.Setenv("VITE_PUBLIC_SUPABASE_ANON_KEY", "k")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, "https://vite.example.com/api", cfg.APIURL)
	assert.True(t, cfg.Storage.Enabled())

	t.Setenv("REACT_PUBLIC_API_URL", "https://react.example.com/api")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://react.example.com/api", cfg.APIURL)

	t.Setenv("API_URL", "https://primary.example.com/api")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://primary.example.com/api", cfg.APIURL)
}

func TestLoad_ConfigFileThenEnv(t *testing.T) {
	isolate(t)
	file := filepath.Join(t.TempDir(), "admin.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
api_url: https://file.example.com/api
supabase_bucket: from-file
kafka_brokers:
  - b1:9092
  - b2:9092
`), 0o600))
	t.Setenv("SUPABASE_BUCKET", "from-env")

	cfg, err := Load(file)

	require.NoError(t, err)
	assert.Equal(t, "https://file.example.com/api", cfg.APIURL)
	assert.Equal(t, "from-env", cfg.Storage.Bucket)
	assert.Equal(t, []string{"b1:9092", "b2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, file, cfg.File)
}

func TestLoad_Errors(t *testing.T) {
	isolate(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	t.Setenv("HTTP_TIMEOUT", "soon")
	_, err = Load("")
	assert.ErrorContains(t, err, "invalid http_timeout")

	t.Setenv("HTTP_TIMEOUT", "0s")
	_, err = Load("")
	assert.ErrorContains(t, err, "must be positive")
}
