package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ordersync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "csv", cfg.Table.Backend)
	assert.Equal(t, ":8080", cfg.Web.Addr)
	assert.Equal(t, 5*time.Minute, cfg.Source.Interval)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
source:
  bucket_url: file:///var/mail/orders
  prefix: inbox/
  interval: 30s
table:
  backend: postgres
  postgres_dsn: postgres://localhost/orders
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "file:///var/mail/orders", cfg.Source.BucketURL)
	assert.Equal(t, "inbox/", cfg.Source.Prefix)
	assert.Equal(t, 30*time.Second, cfg.Source.Interval)
	assert.Equal(t, "postgres", cfg.Table.Backend)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Untouched sections keep their defaults.
	assert.Equal(t, ":8080", cfg.Web.Addr)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
source:
  bucket_url: file:///from-file
table:
  backend: memory
`)
	t.Setenv("ORDERSYNC_SOURCE_URL", "gs://from-env")
	t.Setenv("ORDERSYNC_WEB_ADDR", ":9999")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gs://from-env", cfg.Source.BucketURL)
	assert.Equal(t, ":9999", cfg.Web.Addr)
}

func TestValidation(t *testing.T) {
	_, err := Load(writeConfig(t, "table:\n  backend: oracle\n"))
	assert.ErrorContains(t, err, "unknown table backend")

	_, err = Load(writeConfig(t, "table:\n  backend: postgres\n"))
	assert.ErrorContains(t, err, "postgres_dsn")
}

func TestMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
