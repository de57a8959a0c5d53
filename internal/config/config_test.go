package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.Listen)
	assert.Equal(t, "Europe/Paris", cfg.Timezone)
	assert.Equal(t, 15, cfg.SlotToleranceMin)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadExistingConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
listen: "0.0.0.0:9000"
timetable_url: "https://example.com/timetable.json"
postgres:
  dsn: "postgres://app@db/audio"
  table: "enregistrements"
slot_tolerance_min: 20
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Listen)
	assert.Equal(t, "https://example.com/timetable.json", cfg.TimetableURL)
	require.NotNil(t, cfg.Postgres)
	assert.Equal(t, "enregistrements", cfg.Postgres.Table)
	assert.Equal(t, 20, cfg.SlotToleranceMin)

	// Unset fields are normalized, not left zero.
	assert.Equal(t, "Europe/Paris", cfg.Timezone)
	assert.Equal(t, 10, cfg.SpanToleranceMin)
	assert.Equal(t, "*/15 * * * *", cfg.RefreshCron)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unterminated"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.Listen = "127.0.0.1:7777"
	cfg.Capture.Enabled = true
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7777", loaded.Listen)
	assert.True(t, loaded.Capture.Enabled)
}

func TestLoadEmptyPath(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)
}
