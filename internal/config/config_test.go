package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load("", dir)
	require.NoError(t, err)

	assert.Equal(t, DefaultServerURL, cfg.Server.URL)
	assert.Equal(t, time.Duration(0), cfg.Server.Timeout)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, "chatbot_sessions", cfg.Store.Key)
	assert.Equal(t, filepath.Join(dir, "sessions.json"), cfg.Store.Path)
	assert.Equal(t, filepath.Join(dir, "logs", "datachat.log"), cfg.Log.File)
	assert.Equal(t, 10, cfg.UI.RowsPerPage)
	assert.True(t, cfg.UI.Color)
	assert.True(t, cfg.UI.ConfirmModeReset)
	assert.Equal(t, ":8001", cfg.Stub.Addr)
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `server:
  url: http://analytics.internal:9000
  timeout: 45s
store:
  backend: sql
  sql_driver: mysql
ui:
  rows_per_page: 25
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("DATACHAT_STORE_BACKEND", "redis")
	t.Setenv("DATACHAT_REDIS_ADDR", "cache:6380")

	cfg, err := Load(path, dir)
	require.NoError(t, err)

	assert.Equal(t, "http://analytics.internal:9000", cfg.Server.URL)
	assert.Equal(t, 45*time.Second, cfg.Server.Timeout)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "mysql", cfg.Store.SQLDriver)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
	assert.Equal(t, 25, cfg.UI.RowsPerPage)
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "absent.yaml"), dir)
	require.NoError(t, err)
	assert.Equal(t, DefaultServerURL, cfg.Server.URL)
}

func TestInit_WritesDefaultFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	path := filepath.Join(dir, "custom.yaml")

	require.NoError(t, Init(path))
	assert.FileExists(t, path)
	assert.Equal(t, path, Path())

	SetServerURL("http://example.test:8001/")
	assert.Equal(t, "http://example.test:8001", GetServerURL())
}
