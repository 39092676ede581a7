// Package config loads blockorder settings from TOML files and the
// environment.
//
// Settings are merged in this order, later sources winning:
//
//  1. Defaults
//  2. Global file: $XDG_CONFIG_HOME/blockorder/config.toml (~/.config/blockorder/config.toml)
//  3. Project file: ./blockorder.toml
//  4. Environment variables (BLOCKORDER_*)
//
// Command-line flags override the result.
package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/blockorder/pkg/cache"
	"github.com/matzehuels/blockorder/pkg/errors"
	"github.com/matzehuels/blockorder/pkg/layout"
	"github.com/matzehuels/blockorder/pkg/store"
)

const (
	appName = "blockorder"

	// ProjectFile is the project-level config file name.
	ProjectFile = "blockorder.toml"
)

// Cache backends.
const (
	CacheNone  = "none"
	CacheFile  = "file"
	CacheRedis = "redis"
)

// Store backends.
const (
	StoreFile  = "file"
	StoreMongo = "mongo"
)

// Config holds all settings.
type Config struct {
	Layout  layout.Params `toml:"layout"`
	Workers int           `toml:"workers"`
	Cache   CacheConfig   `toml:"cache"`
	Store   StoreConfig   `toml:"store"`
	Server  ServerConfig  `toml:"server"`

	// Sources lists the files that were merged, in order.
	Sources []string `toml:"-"`
}

// CacheConfig selects the layout cache backend.
type CacheConfig struct {
	Backend string            `toml:"backend"`
	Dir     string            `toml:"dir,omitempty"`
	Redis   cache.RedisConfig `toml:"redis"`
}

// StoreConfig selects the run store backend.
type StoreConfig struct {
	Backend string            `toml:"backend"`
	Dir     string            `toml:"dir,omitempty"`
	TTL     Duration          `toml:"ttl"`
	Mongo   store.MongoConfig `toml:"mongo"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr         string   `toml:"addr"`
	MaxBodyBytes int64    `toml:"max_body_bytes"`
	Timeout      Duration `toml:"timeout"`
}

// Duration is a time.Duration written as a string such as "15m".
type Duration struct{ time.Duration }

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Layout: layout.DefaultParams(),
		Cache:  CacheConfig{Backend: CacheFile},
		Store:  StoreConfig{Backend: StoreFile, TTL: Duration{store.DefaultTTL}},
		Server: ServerConfig{
			Addr:         "localhost:8080",
			MaxBodyBytes: 32 << 20,
			Timeout:      Duration{2 * time.Minute},
		},
	}
}

// GlobalPath returns the global config file path.
func GlobalPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName, "config.toml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName, "config.toml")
}

// Load merges defaults, the global file, the project file and the
// environment.
func Load() (*Config, error) {
	return LoadFrom(GlobalPath(), ProjectFile)
}

// LoadFrom is Load with explicit file paths. Missing files are skipped.
func LoadFrom(paths ...string) (*Config, error) {
	cfg := Default()
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := cfg.mergeFile(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads one file on top of the defaults and the environment.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.mergeFile(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "config %s", path)
		}
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if _, err := toml.Decode(string(data), c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s", path)
	}
	c.Sources = append(c.Sources, path)
	return nil
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	str("BLOCKORDER_CACHE", &c.Cache.Backend)
	str("BLOCKORDER_CACHE_DIR", &c.Cache.Dir)
	str("BLOCKORDER_REDIS_ADDR", &c.Cache.Redis.Addr)
	str("BLOCKORDER_REDIS_PASSWORD", &c.Cache.Redis.Password)
	str("BLOCKORDER_STORE", &c.Store.Backend)
	str("BLOCKORDER_STORE_DIR", &c.Store.Dir)
	str("BLOCKORDER_MONGO_URI", &c.Store.Mongo.URI)
	str("BLOCKORDER_ADDR", &c.Server.Addr)

	if v := os.Getenv("BLOCKORDER_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "BLOCKORDER_WORKERS")
		}
		c.Workers = n
	}
	if v := os.Getenv("BLOCKORDER_CHAIN_SPLIT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "BLOCKORDER_CHAIN_SPLIT")
		}
		c.Layout.ChainSplit = b
	}
	return nil
}

// Validate checks the settings.
func (c *Config) Validate() error {
	if err := layout.CheckParams(c.Layout); err != nil {
		return err
	}
	if c.Workers < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "workers must not be negative")
	}
	if !slices.Contains([]string{CacheNone, CacheFile, CacheRedis}, c.Cache.Backend) {
		return errors.New(errors.ErrCodeInvalidConfig, "unknown cache backend %q", c.Cache.Backend)
	}
	switch c.Store.Backend {
	case StoreFile:
	case StoreMongo:
		if err := errors.ValidateURI(c.Store.Mongo.URI, "mongodb", "mongodb+srv"); err != nil {
			return err
		}
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "unknown store backend %q", c.Store.Backend)
	}
	if c.Store.TTL.Duration <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "store ttl must be positive")
	}
	if c.Server.Addr == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "server address is required")
	}
	return nil
}

// Encode returns c as TOML.
func (c *Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes c to path, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := c.Encode()
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// =============================================================================
// Backends
// =============================================================================

// CacheDir returns the directory of the file cache, honouring
// XDG_CACHE_HOME.
func (c CacheConfig) CacheDir() (string, error) {
	if c.Dir != "" {
		return c.Dir, nil
	}
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// Open creates the configured cache.
func (c CacheConfig) Open(ctx context.Context) (cache.Cache, error) {
	switch c.Backend {
	case CacheNone:
		return cache.NewNullCache(), nil
	case CacheRedis:
		rc, err := cache.NewRedisCache(ctx, c.Redis)
		if err != nil {
			return nil, err
		}
		return rc, nil
	default:
		dir, err := c.CacheDir()
		if err != nil {
			return cache.NewNullCache(), nil
		}
		fc, err := cache.NewFileCache(dir)
		if err != nil {
			return nil, err
		}
		return fc, nil
	}
}

// Open creates the configured run store.
func (s StoreConfig) Open(ctx context.Context) (store.Store, error) {
	if s.Backend == StoreMongo {
		ms, err := store.NewMongoStore(ctx, s.Mongo)
		if err != nil {
			return nil, err
		}
		return ms, nil
	}
	fs, err := store.NewFileStore(s.Dir)
	if err != nil {
		return nil, err
	}
	return fs, nil
}
