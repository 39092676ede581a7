package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/blockorder/pkg/cache"
	"github.com/matzehuels/blockorder/pkg/errors"
	"github.com/matzehuels/blockorder/pkg/layout"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, layout.DefaultParams(), cfg.Layout)
	assert.Equal(t, CacheFile, cfg.Cache.Backend)
	assert.Equal(t, StoreFile, cfg.Store.Backend)
}

func TestLoadFromPriority(t *testing.T) {
	dir := t.TempDir()
	global := writeFile(t, dir, "global.toml", `
workers = 2

[layout]
forward_jump_distance = 2048
chain_split_threshold = 64

[cache]
backend = "none"
`)
	project := writeFile(t, dir, "project.toml", `
[layout]
chain_split_threshold = 32

[server]
addr = ":9000"
timeout = "30s"
`)

	cfg, err := LoadFrom(global, project, filepath.Join(dir, "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, uint64(2048), cfg.Layout.ForwardJumpDistance)
	assert.Equal(t, 32, cfg.Layout.ChainSplitThreshold, "project file wins")
	assert.Equal(t, uint64(layout.DefaultFallthroughWeight), cfg.Layout.FallthroughWeight, "unset keys keep defaults")
	assert.Equal(t, CacheNone, cfg.Cache.Backend)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Server.Timeout.Duration)
	assert.Equal(t, []string{global, project}, cfg.Sources)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("BLOCKORDER_WORKERS", "7")
	t.Setenv("BLOCKORDER_CHAIN_SPLIT", "false")
	t.Setenv("BLOCKORDER_CACHE", "redis")
	t.Setenv("BLOCKORDER_REDIS_ADDR", "redis://cache:6379/1")

	cfg, err := LoadFrom()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Workers)
	assert.False(t, cfg.Layout.ChainSplit)
	assert.Equal(t, CacheRedis, cfg.Cache.Backend)
	assert.Equal(t, "redis://cache:6379/1", cfg.Cache.Redis.Addr)

	t.Setenv("BLOCKORDER_WORKERS", "many")
	_, err = LoadFrom()
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidConfig))
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	bad := writeFile(t, dir, "bad.toml", "workers = [")
	_, err := LoadFrom(bad)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidConfig))

	zero := writeFile(t, dir, "zero.toml", "[layout]\nfallthrough_weight = 0\n")
	_, err = LoadFrom(zero)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidParams))

	mongo := writeFile(t, dir, "mongo.toml", "[store]\nbackend = \"mongo\"\n")
	_, err = LoadFrom(mongo)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidConfig))

	_, err = LoadFile(filepath.Join(dir, "missing.toml"))
	assert.True(t, errors.Is(err, errors.ErrCodeFileNotFound))
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Workers = 3
	cfg.Layout.ChainSplit = false
	cfg.Store.TTL = Duration{48 * time.Hour}

	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	require.NoError(t, cfg.Save(path))

	got, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Workers)
	assert.False(t, got.Layout.ChainSplit)
	assert.Equal(t, 48*time.Hour, got.Store.TTL.Duration)
	assert.Equal(t, cfg.Server, got.Server)
}

func TestGlobalPathXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	assert.Equal(t, filepath.Join("/tmp/xdg", "blockorder", "config.toml"), GlobalPath())
}

func TestCacheOpen(t *testing.T) {
	dir := t.TempDir()

	c, err := CacheConfig{Backend: CacheNone}.Open(t.Context())
	require.NoError(t, err)
	assert.IsType(t, &cache.NullCache{}, c)

	c, err = CacheConfig{Backend: CacheFile, Dir: dir}.Open(t.Context())
	require.NoError(t, err)
	fc, ok := c.(*cache.FileCache)
	require.True(t, ok)
	assert.Equal(t, dir, fc.Dir())
}

func TestStoreOpen(t *testing.T) {
	s, err := StoreConfig{Backend: StoreFile, Dir: t.TempDir()}.Open(t.Context())
	require.NoError(t, err)
	defer s.Close()
	assert.NotNil(t, s)
}
