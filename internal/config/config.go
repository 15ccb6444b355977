package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultAPIURL      = "http://localhost:4000/api"
	DefaultBucket      = "interview"
	DefaultTimeout     = 30 * time.Second
	DefaultTokenStore  = "file://$HOME/.ec-admin/token"
	DefaultKafkaTopic  = "admin-invalidations"
	DefaultConsoleAddr = ":8090"
)

type Config struct {
	APIURL  string
	Timeout time.Duration
	Storage StorageConfig
	// TokenStore is a URL understood by session.OpenTokenStore
	TokenStore  string
	Kafka       KafkaConfig
	ConsoleAddr string
	// File is the config file that was read, if any
	File string
}

type StorageConfig struct {
	URL     string
	AnonKey string
	Bucket  string
}

// Enabled reports whether uploads can run
func (s StorageConfig) Enabled() bool {
	return s.URL != "" && s.AnonKey != ""
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// keys maps each setting to its environment names, first non-empty wins
var keys = map[string][]string{
	"api_url":           {"API_URL", "REACT_PUBLIC_API_URL", "VITE_PUBLIC_API_URL"},
	"supabase_url":      {"SUPABASE_URL", "VITE_PUBLIC_SUPABASE_URL"},
	"supabase_anon_key": {"SUPABASE_ANON_KEY", "VITE_PUBLIC_SUPABASE_ANON_KEY"},
	"supabase_bucket":   {"SUPABASE_BUCKET", "VITE_PUBLIC_SUPABASE_BUCKET"},
	"http_timeout":      {"HTTP_TIMEOUT"},
	"token_store":       {"TOKEN_STORE"},
	"kafka_brokers":     {"KAFKA_BROKERS"},
	"kafka_topic":       {"KAFKA_TOPIC"},
	"console_addr":      {"CONSOLE_ADDR"},
}

// Load reads defaults, then admin.yaml, then the environment. With file empty,
// admin.yaml is looked up in ./ and $HOME/.ec-admin/ and may be absent.
func Load(file string) (*Config, error) {
	v := viper.New()

	v.SetDefault("api_url", DefaultAPIURL)
	v.SetDefault("supabase_bucket", DefaultBucket)
	v.SetDefault("http_timeout", DefaultTimeout.String())
	v.SetDefault("token_store", DefaultTokenStore)
	v.SetDefault("kafka_topic", DefaultKafkaTopic)
	v.SetDefault("console_addr", DefaultConsoleAddr)

	for key, envs := range keys {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("admin")
		v.SetConfigType("yaml")
		v.AddConfigPath("./")
		v.AddConfigPath("$HOME/.ec-admin/")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	timeout, err := time.ParseDuration(strings.TrimSpace(v.GetString("http_timeout")))
	if err != nil {
		return nil, fmt.Errorf("invalid http_timeout %q: %w", v.GetString("http_timeout"), err)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("http_timeout must be positive, got %s", timeout)
	}

	cfg := &Config{
		APIURL:  strings.TrimRight(strings.TrimSpace(v.GetString("api_url")), "/"),
		Timeout: timeout,
		Storage: StorageConfig{
			URL:     strings.TrimRight(strings.TrimSpace(v.GetString("supabase_url")), "/"),
			AnonKey: strings.TrimSpace(v.GetString("supabase_anon_key")),
			Bucket:  strings.TrimSpace(v.GetString("supabase_bucket")),
		},
		TokenStore: v.GetString("token_store"),
		Kafka: KafkaConfig{
			Brokers: brokers(v.Get("kafka_brokers")),
			Topic:   v.GetString("kafka_topic"),
		},
		ConsoleAddr: v.GetString("console_addr"),
		File:        v.ConfigFileUsed(),
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = DefaultBucket
	}
	return cfg, nil
}

// brokers accepts a comma separated string (env) or a YAML list
func brokers(raw any) []string {
	switch b := raw.(type) {
	case string:
		return splitList(b)
	case []any:
		var out []string
		for _, item := range b {
			out = append(out, splitList(fmt.Sprint(item))...)
		}
		return out
	case []string:
		return splitList(strings.Join(b, ","))
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
