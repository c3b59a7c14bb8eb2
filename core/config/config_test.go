package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xunhq/xun/core/config"
	"github.com/xunhq/xun/core/store"
)

func TestParseStoreSpecRejectsUnknownKind(t *testing.T) {
	_, err := config.ParseStoreSpec([]byte(`{"kind": "quantum"}`))
	assert.Error(t, err)
}

func TestParseStoreSpecRejectsDiskWithoutRoot(t *testing.T) {
	_, err := config.ParseStoreSpec([]byte(`{"kind": "disk"}`))
	assert.Error(t, err)
}

func TestParseStoreSpecAcceptsValidMemorySpec(t *testing.T) {
	spec, err := config.ParseStoreSpec([]byte(`{"kind": "memory"}`))
	require.NoError(t, err)
	assert.Equal(t, "memory", spec.Kind)
}

func TestBuildStoreConstructsLayeredFromNestedSpecs(t *testing.T) {
	root := filepath.Join(t.TempDir(), "disk")
	spec := config.StoreSpec{
		Kind: "layered",
		Layers: []config.StoreSpec{
			{Kind: "lru", Size: 4},
			{Kind: "disk", Root: root},
		},
	}
	st, err := config.BuildStore(spec)
	require.NoError(t, err)
	_, ok := st.(*store.Layered)
	assert.True(t, ok)
}

func TestLoadCLIConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := config.LoadCLIConfig(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultCLIConfig(), cfg)
}

func TestLoadCLIConfigDecodesStoreBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".xun.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 8\nlog_level: debug\nstore:\n  kind: memory\n"), 0o644))

	cfg, err := config.LoadCLIConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "debug", cfg.LogLevel)
	require.NotNil(t, cfg.Store)
	assert.Equal(t, "memory", cfg.Store.Kind)
}

func TestLoadCLIConfigRejectsInvalidStoreBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".xun.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  kind: disk\n"), 0o644))

	_, err := config.LoadCLIConfig(path)
	assert.Error(t, err)
}

func TestResolveDefaultStorePrefersEnvOverYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".xun.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  kind: memory\n"), 0o644))

	root := filepath.Join(t.TempDir(), "disk")
	t.Setenv(config.EnvStoreVar, `{"kind": "disk", "root": "`+root+`"}`)

	st, ok, err := config.ResolveDefaultStore(path)
	require.NoError(t, err)
	require.True(t, ok)
	_, isDisk := st.(*store.Disk)
	assert.True(t, isDisk)
}

func TestResolveDefaultStoreFallsBackToYAMLWhenEnvUnset(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".xun.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  kind: memory\n"), 0o644))

	st, ok, err := config.ResolveDefaultStore(path)
	require.NoError(t, err)
	require.True(t, ok)
	_, isMemory := st.(*store.Memory)
	assert.True(t, isMemory)
}

func TestResolveDefaultStoreReportsNotOkWhenNeitherSet(t *testing.T) {
	_, ok, err := config.ResolveDefaultStore(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.False(t, ok)
}
