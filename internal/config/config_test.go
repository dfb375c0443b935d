package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Database.Path = "/tmp/ledger.db"
	cfg.Balance.HighThreshold = 0.1

	path := filepath.Join(t.TempDir(), "pfinance.yaml")
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/ledger.db", got.Database.Path)
	assert.Equal(t, cfg.Server.Port, got.Server.Port)
	assert.Equal(t, cfg.Ingest.MinPDFBytes, got.Ingest.MinPDFBytes)
	assert.InDelta(t, 0.1, got.Balance.HighThreshold, 0.0001)
	assert.Equal(t, len(cfg.Categories.Seed), len(got.Categories.Seed))
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "pfinance.db", cfg.Database.Path)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 1024, cfg.Ingest.MinPDFBytes)
	assert.InDelta(t, 50.0, cfg.Ingest.ColumnGap, 0.001)
	assert.InDelta(t, 0.01, cfg.Balance.MediumThreshold, 0.0001)
	assert.InDelta(t, 0.05, cfg.Balance.HighThreshold, 0.0001)
	assert.Equal(t, "Other", cfg.Categories.Fallback)
	assert.NotEmpty(t, cfg.Categories.Seed)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pfinance.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: \"9000\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "pfinance.db", cfg.Database.Path)
	assert.Equal(t, 1024, cfg.Ingest.MinPDFBytes)
	assert.NotEmpty(t, cfg.Categories.Seed)
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)

	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "pfinance.db", cfg.Database.Path)
}

func TestApplyEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("PFINANCE_LOG_LEVEL=debug\n"), 0o644))
	t.Setenv(EnvDBPath, "/data/other.db")
	t.Setenv(EnvPort, "")
	// godotenv.Load sets variables in the process; clean up after the test.
	t.Cleanup(func() { os.Unsetenv(EnvLogLevel) })

	cfg := Default()
	require.NoError(t, ApplyEnv(cfg, envFile))

	assert.Equal(t, "/data/other.db", cfg.Database.Path)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestApplyEnv_MissingFileIsFine(t *testing.T) {
	cfg := Default()
	require.NoError(t, ApplyEnv(cfg, filepath.Join(t.TempDir(), ".env")))
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestYAMLFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pfinance.yaml")
	require.NoError(t, Save(path, Default()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	contents := string(data)

	assert.Contains(t, contents, "path: pfinance.db")
	assert.Contains(t, contents, "min_pdf_bytes: 1024")
	assert.Contains(t, contents, "fallback: Other")
	assert.Contains(t, contents, "match_type: contains")
}
