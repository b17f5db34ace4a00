package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Session store backends.
const (
	SessionStoreSQLite = "sqlite"
	SessionStoreRedis  = "redis"
)

// Event fan-out backends.
const (
	EventsBackendLocal = "local"
	EventsBackendRedis = "redis"
)

// Config is built once at startup and passed to every component that needs it.
type Config struct {
	HTTPAddr      string        `koanf:"http_addr"`
	DatabasePath  string        `koanf:"database_path"`
	SecretKey     string        `koanf:"secret_key"`
	SessionTTL    time.Duration `koanf:"session_ttl"`
	StoreTimeout  time.Duration `koanf:"store_timeout"`
	PublicBaseURL string        `koanf:"public_base_url"`
	SessionStore  string        `koanf:"session_store"`
	RedisAddr     string        `koanf:"redis_addr"`
	EventsBackend string        `koanf:"events_backend"`
	OtelEndpoint  string        `koanf:"otel_endpoint"`
	ServiceName   string        `koanf:"service_name"`
	LogLevel      string        `koanf:"log_level"`
}

// Default returns the configuration used when neither a file nor flags override a key.
func Default() Config {
	return Config{
		HTTPAddr:      ":8080",
		DatabasePath:  "./registry.db",
		SessionTTL:    30 * time.Minute,
		StoreTimeout:  2 * time.Second,
		PublicBaseURL: "http://localhost:8080",
		SessionStore:  SessionStoreSQLite,
		RedisAddr:     "localhost:6379",
		EventsBackend: EventsBackendLocal,
		ServiceName:   "item-registry",
		LogLevel:      "info",
	}
}

// RegisterFlags declares one flag per configuration key on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("http_addr", d.HTTPAddr, "HTTP listen address")
	fs.String("database_path", d.DatabasePath, "SQLite database file (\":memory:\" for an ephemeral store)")
	fs.String("secret_key", "", "HMAC key shared by session and transfer tokens")
	fs.Duration("session_ttl", d.SessionTTL, "lifetime of a session token")
	fs.Duration("store_timeout", d.StoreTimeout, "deadline applied to every store call")
	fs.String("public_base_url", d.PublicBaseURL, "base URL used when building transfer links")
	fs.String("session_store", d.SessionStore, "session slot backend: sqlite or redis")
	fs.String("redis_addr", d.RedisAddr, "Redis address for the redis session store and event backend")
	fs.String("events_backend", d.EventsBackend, "ownership event fan-out: local or redis")
	fs.String("otel_endpoint", "", "OTLP gRPC collector endpoint, empty disables export")
	fs.String("service_name", d.ServiceName, "service name reported to OpenTelemetry")
	fs.String("log_level", d.LogLevel, "log level: debug, info, warn or error")
}

// Load layers the YAML file at path (optional) and the changed flags in fs
// over the defaults, then validates the result.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	cfg, err := Read(path, fs)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Read is Load without validation, for commands that only need a subset of
// the keys.
func Read(path string, fs *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if fs != nil {
		if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
			return Config{}, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Validate reports every invalid key at once.
func (c Config) Validate() error {
	var errs []error
	if c.SecretKey == "" {
		errs = append(errs, errors.New("secret_key must be set"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("session_ttl must be positive, got %s", c.SessionTTL))
	}
	if c.StoreTimeout <= 0 {
		errs = append(errs, fmt.Errorf("store_timeout must be positive, got %s", c.StoreTimeout))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database_path must be set"))
	}
	if c.PublicBaseURL == "" {
		errs = append(errs, errors.New("public_base_url must be set"))
	}
	switch c.SessionStore {
	case SessionStoreSQLite, SessionStoreRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown session_store %q", c.SessionStore))
	}
	switch c.EventsBackend {
	case EventsBackendLocal, EventsBackendRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown events_backend %q", c.EventsBackend))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log_level %q", c.LogLevel))
	}
	return errors.Join(errs...)
}

// NeedsRedis reports whether any configured backend talks to Redis.
func (c Config) NeedsRedis() bool {
	return c.SessionStore == SessionStoreRedis || c.EventsBackend == EventsBackendRedis
}
