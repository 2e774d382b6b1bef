package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWithoutAFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, 1000, cfg.Pool.MaxConnections)
	assert.Equal(t, 10000, cfg.Broadcaster.MaxQueueSize)
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "etlmonitor.toml")
	contents := `
[server]
listen_addr = ":9090"

[pool]
max_connections = 50

[broadcaster]
batch_size = 5
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.ListenAddr)
	assert.Equal(t, 50, cfg.Pool.MaxConnections)
	assert.Equal(t, 5, cfg.Broadcaster.BatchSize)
	// Untouched fields keep their package defaults.
	assert.Equal(t, 10000, cfg.Cache.MaxEntries)
}

func TestLoadAppliesWarmupDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Cache.WarmupMaxKeys)
	assert.Equal(t, 10, cfg.Cache.WarmupBatchSize)
}

func TestLoadFromFileOverridesWarmupTunables(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "etlmonitor.toml")
	contents := `
[cache]
warmup_max_keys = 25
warmup_batch_size = 4
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Cache.WarmupMaxKeys)
	assert.Equal(t, 4, cfg.Cache.WarmupBatchSize)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestValidateRejectsNegativeCapacity(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Pool.MaxConnections = -1
	assert.Error(t, Validate(cfg))
}

func TestSafeFieldsExtractsReloadableSubset(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	safe := Safe(cfg)
	assert.Equal(t, cfg.Pool.ConnectionTimeout, safe.ConnectionTimeout)
	assert.Equal(t, cfg.Cache.DefaultTTL, safe.DefaultTTL)
}
