package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "index.html", cfg.Page.File)
	assert.True(t, cfg.Page.Watch)
	assert.Equal(t, "/uploads/editor/", cfg.Uploads.BaseURL)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "liveedit.yaml")
	content := `
title: Marketing Site Editor
server:
  port: 9000
  debug: true
page:
  file: landing.html
  watch: false
store:
  backend: postgres
  dsn: "host=db user=editor dbname=pages"
editor:
  snapshot_timeout: 3s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Marketing Site Editor", cfg.Title)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.True(t, cfg.Server.Debug)
	assert.Equal(t, "landing.html", cfg.Page.File)
	assert.False(t, cfg.Page.Watch)
	assert.Equal(t, "postgres", cfg.Store.Backend)
	assert.Equal(t, 3*time.Second, cfg.Editor.GetSnapshotTimeout())

	// Fields the file does not set keep their defaults.
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, "uploads/editor", cfg.Uploads.Dir)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadFromDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "liveedit.yaml"),
		[]byte("title: From Dir\n"), 0o644))

	cfg, err := LoadFromDir(dir)
	require.NoError(t, err)
	assert.Equal(t, "From Dir", cfg.Title)
}

func TestAPIKeyEnvExpansion(t *testing.T) {
	t.Setenv("LIVEEDIT_TEST_KEY", "sekret")
	auth := &AuthConfig{APIKey: "${LIVEEDIT_TEST_KEY}"}
	assert.Equal(t, "sekret", auth.GetAPIKey())
	assert.Equal(t, "X-API-Key", auth.GetHeaderName())

	api := &APIConfig{Auth: auth}
	assert.True(t, api.IsAuthEnabled())
}

func TestGetterDefaults(t *testing.T) {
	var api *APIConfig
	assert.EqualValues(t, 10, api.GetRateLimitRPS())
	assert.Equal(t, 20, api.GetRateLimitBurst())
	assert.False(t, api.IsAuthEnabled())

	var uploads UploadsConfig
	assert.EqualValues(t, 8<<20, uploads.GetMaxSizeBytes())
	assert.Equal(t, []string{"png", "jpg", "jpeg", "gif", "webp"}, uploads.GetExtensions())

	uploads.Extensions = "png, .jpeg"
	assert.Equal(t, []string{"png", "jpeg"}, uploads.GetExtensions())

	var editor EditorConfig
	assert.Equal(t, 10*time.Second, editor.GetSnapshotTimeout())
	editor.SnapshotTimeout = "garbage"
	assert.Equal(t, 10*time.Second, editor.GetSnapshotTimeout())
}

func TestRuntimeReadOnly(t *testing.T) {
	SetReadOnly(true)
	assert.True(t, IsReadOnly())
	SetReadOnly(false)
	assert.False(t, IsReadOnly())
}
