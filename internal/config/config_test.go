package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagSet(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FlagsOverDefaults(t *testing.T) {
	fs := newFlagSet(t, "--secret_key=s3cret", "--session_ttl=45m")

	cfg, err := Load("", fs)
	require.NoError(t, err)

	want := Default()
	want.SecretKey = "s3cret"
	want.SessionTTL = 45 * time.Minute
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_FileThenFlags(t *testing.T) {
	path := writeConfigFile(t, `
secret_key: from-file
http_addr: ":9090"
store_timeout: 500ms
session_store: redis
public_base_url: https://registry.example.com
`)
	fs := newFlagSet(t, "--http_addr=:7070")

	cfg, err := Load(path, fs)
	require.NoError(t, err)

	want := Default()
	want.SecretKey = "from-file"
	want.HTTPAddr = ":7070"
	want.StoreTimeout = 500 * time.Millisecond
	want.SessionStore = SessionStoreRedis
	want.PublicBaseURL = "https://registry.example.com"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, cfg.NeedsRedis())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.SecretKey = "k"

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing secret", mutate: func(c *Config) { c.SecretKey = "" }, wantErr: "secret_key"},
		{name: "zero ttl", mutate: func(c *Config) { c.SessionTTL = 0 }, wantErr: "session_ttl"},
		{name: "negative store timeout", mutate: func(c *Config) { c.StoreTimeout = -time.Second }, wantErr: "store_timeout"},
		{name: "unknown session store", mutate: func(c *Config) { c.SessionStore = "memcached" }, wantErr: "session_store"},
		{name: "unknown events backend", mutate: func(c *Config) { c.EventsBackend = "kafka" }, wantErr: "events_backend"},
		{name: "unknown log level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRead_SkipsValidation(t *testing.T) {
	fs := newFlagSet(t, "--database_path=/tmp/other.db")

	cfg, err := Read("", fs)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/other.db", cfg.DatabasePath)

	_, err = Load("", newFlagSet(t))
	assert.ErrorContains(t, err, "secret_key must be set")
}
