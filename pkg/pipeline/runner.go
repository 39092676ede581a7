package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/matzehuels/blockorder/pkg/cache"
	"github.com/matzehuels/blockorder/pkg/cfg"
	"github.com/matzehuels/blockorder/pkg/layout"
	"github.com/matzehuels/blockorder/pkg/observability"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and API use it to share caching logic.
//
// The Runner holds no per-run state, so multiple goroutines can use the same
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Cache: c, Keyer: keyer, Logger: logger}
}

// Execute runs the complete load → layout → render pipeline with caching.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	hooks := observability.Pipeline()
	result := &Result{}

	// Stage 1: Load
	hooks.OnLoadStart(ctx, opts.Source())
	start := time.Now()
	p, err := Load(ctx, opts)
	result.Stats.LoadTime = time.Since(start)
	functions := 0
	if p != nil {
		functions = len(p.Graphs)
	}
	hooks.OnLoadComplete(ctx, opts.Source(), functions, result.Stats.LoadTime, err)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	result.Program = p
	if result.ProfileHash, err = ProgramHash(p); err != nil {
		return nil, fmt.Errorf("hash profile: %w", err)
	}
	ps := p.Stats()
	result.Stats.Functions = ps.Functions
	result.Stats.HotFunctions = ps.HotFunctions
	result.Stats.Blocks = ps.Nodes
	result.Stats.HotBlocks = ps.HotNodes

	r.Logger.Info("loaded profile",
		"functions", ps.Functions,
		"hot_functions", ps.HotFunctions,
		"blocks", ps.Nodes,
		"duration", result.Stats.LoadTime)

	// Stage 2: Layout
	hooks.OnLayoutStart(ctx, ps.HotFunctions)
	start = time.Now()
	l, hit, err := r.layoutWithCacheInfo(ctx, p, result.ProfileHash, opts)
	result.Stats.LayoutTime = time.Since(start)
	hooks.OnLayoutComplete(ctx, ps.HotFunctions, result.Stats.LayoutTime, err)
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	result.Layout = l
	result.CacheInfo.LayoutHit = hit

	totals := l.Totals()
	r.Logger.Info("computed layout",
		"hot_functions", totals.HotFunctions,
		"hot_blocks", totals.HotBlocks,
		"improvement", fmt.Sprintf("%.3f", totals.Improvement()),
		"cached", hit,
		"duration", result.Stats.LayoutTime)

	// Stage 3: Render
	hooks.OnRenderStart(ctx, opts.Formats)
	start = time.Now()
	artifacts, layoutHash, hit, err := r.renderWithCacheInfo(ctx, p, l, opts)
	result.Stats.RenderTime = time.Since(start)
	hooks.OnRenderComplete(ctx, opts.Formats, result.Stats.RenderTime, err)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	result.Artifacts = artifacts
	result.LayoutHash = layoutHash
	result.CacheInfo.RenderHit = hit

	r.Logger.Info("rendered outputs",
		"formats", opts.Formats,
		"cached", hit,
		"duration", result.Stats.RenderTime)

	return result, nil
}

// ComputeLayoutWithCacheInfo orders p with caching and reports whether the
// layout came from the cache. The returned layout has p's CFGs attached.
func (r *Runner) ComputeLayoutWithCacheInfo(ctx context.Context, p *cfg.Program, opts Options) (*layout.Layout, bool, error) {
	r.applyLogger(&opts)
	hash, err := ProgramHash(p)
	if err != nil {
		return nil, false, err
	}
	return r.layoutWithCacheInfo(ctx, p, hash, opts)
}

func (r *Runner) layoutWithCacheInfo(ctx context.Context, p *cfg.Program, profileHash string, opts Options) (*layout.Layout, bool, error) {
	if err := opts.ValidateForLayout(); err != nil {
		return nil, false, err
	}
	hooks := observability.Cache()
	key := r.Keyer.LayoutKey(profileHash, opts.LayoutKeyOpts())

	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			var l layout.Layout
			if err := msgpack.Unmarshal(data, &l); err == nil {
				l.Attach(p)
				hooks.OnCacheHit(ctx, "layout")
				return &l, true, nil
			}
			r.Logger.Warn("discarding undecodable cached layout", "key", key)
		} else if err != nil {
			r.Logger.Warn("cache read failed", "key", key, "error", err)
		}
	}
	hooks.OnCacheMiss(ctx, "layout")

	l, err := ComputeLayout(ctx, p, opts)
	if err != nil {
		return nil, false, err
	}

	if data, err := msgpack.Marshal(l); err == nil {
		if err := r.Cache.Set(ctx, key, data, cache.TTLLayout); err != nil {
			r.Logger.Warn("cache write failed", "key", key, "error", err)
		} else {
			hooks.OnCacheSet(ctx, "layout", len(data))
		}
	}
	return l, false, nil
}

// ComputeLayout is ComputeLayoutWithCacheInfo without the cache hit info.
func (r *Runner) ComputeLayout(ctx context.Context, p *cfg.Program, opts Options) (*layout.Layout, error) {
	l, _, err := r.ComputeLayoutWithCacheInfo(ctx, p, opts)
	return l, err
}

// RenderWithCacheInfo generates artifacts with caching and reports whether
// all of them came from the cache.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, p *cfg.Program, l *layout.Layout, opts Options) (map[string][]byte, bool, error) {
	r.applyLogger(&opts)
	artifacts, _, hit, err := r.renderWithCacheInfo(ctx, p, l, opts)
	return artifacts, hit, err
}

func (r *Runner) renderWithCacheInfo(ctx context.Context, p *cfg.Program, l *layout.Layout, opts Options) (map[string][]byte, string, bool, error) {
	if err := opts.ValidateForRender(); err != nil {
		return nil, "", false, err
	}
	hooks := observability.Cache()

	data, err := msgpack.Marshal(l)
	if err != nil {
		return nil, "", false, fmt.Errorf("serialize layout for cache key: %w", err)
	}
	layoutHash := cache.Hash(data)

	if !opts.Refresh {
		artifacts := make(map[string][]byte, len(opts.Formats))
		for _, format := range opts.Formats {
			key := r.Keyer.ArtifactKey(layoutHash, opts.ArtifactKeyOpts(format))
			data, hit, err := r.Cache.Get(ctx, key)
			if err != nil || !hit {
				break
			}
			artifacts[format] = data
		}
		if len(artifacts) == len(uniq(opts.Formats)) {
			hooks.OnCacheHit(ctx, "artifact")
			return artifacts, layoutHash, true, nil
		}
	}
	hooks.OnCacheMiss(ctx, "artifact")

	rendered, err := Render(ctx, p, l, opts)
	if err != nil {
		return nil, "", false, err
	}
	for format, data := range rendered {
		key := r.Keyer.ArtifactKey(layoutHash, opts.ArtifactKeyOpts(format))
		if err := r.Cache.Set(ctx, key, data, cache.TTLArtifact); err != nil {
			r.Logger.Warn("cache write failed", "key", key, "error", err)
			continue
		}
		hooks.OnCacheSet(ctx, "artifact", len(data))
	}
	return rendered, layoutHash, false, nil
}

// Render is RenderWithCacheInfo without the cache hit info.
func (r *Runner) Render(ctx context.Context, p *cfg.Program, l *layout.Layout, opts Options) (map[string][]byte, error) {
	artifacts, _, err := r.RenderWithCacheInfo(ctx, p, l, opts)
	return artifacts, err
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

func uniq(formats []string) map[string]bool {
	m := make(map[string]bool, len(formats))
	for _, f := range formats {
		m[f] = true
	}
	return m
}
