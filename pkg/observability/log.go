package observability

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// LogHooks implements every hook interface by writing debug records to a
// logger and keeping counters.
type LogHooks struct {
	logger *log.Logger

	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
	requests    atomic.Int64
	errors      atomic.Int64
}

// NewLogHooks creates LogHooks writing to logger.
func NewLogHooks(logger *log.Logger) *LogHooks {
	return &LogHooks{logger: logger}
}

// Counters is a snapshot of the LogHooks counters.
type Counters struct {
	CacheHits   int64 `json:"cache_hits"`
	CacheMisses int64 `json:"cache_misses"`
	Requests    int64 `json:"requests"`
	Errors      int64 `json:"errors"`
}

// Counters returns the current counter values.
func (h *LogHooks) Counters() Counters {
	return Counters{
		CacheHits:   h.cacheHits.Load(),
		CacheMisses: h.cacheMisses.Load(),
		Requests:    h.requests.Load(),
		Errors:      h.errors.Load(),
	}
}

func (h *LogHooks) OnLoadStart(_ context.Context, source string) {
	h.logger.Debug("loading profile", "source", source)
}

func (h *LogHooks) OnLoadComplete(_ context.Context, source string, functions int, d time.Duration, err error) {
	if err != nil {
		h.errors.Add(1)
		h.logger.Debug("load failed", "source", source, "err", err)
		return
	}
	h.logger.Debug("loaded profile", "source", source, "functions", functions, "duration", d)
}

func (h *LogHooks) OnLayoutStart(_ context.Context, functions int) {
	h.logger.Debug("ordering blocks", "functions", functions)
}

func (h *LogHooks) OnLayoutComplete(_ context.Context, hot int, d time.Duration, err error) {
	if err != nil {
		h.errors.Add(1)
		h.logger.Debug("layout failed", "err", err)
		return
	}
	h.logger.Debug("ordered blocks", "hot_functions", hot, "duration", d)
}

func (h *LogHooks) OnRenderStart(_ context.Context, formats []string) {
	h.logger.Debug("rendering", "formats", formats)
}

func (h *LogHooks) OnRenderComplete(_ context.Context, formats []string, d time.Duration, err error) {
	if err != nil {
		h.errors.Add(1)
		h.logger.Debug("render failed", "formats", formats, "err", err)
		return
	}
	h.logger.Debug("rendered", "formats", formats, "duration", d)
}

func (h *LogHooks) OnCacheHit(_ context.Context, keyType string) {
	h.cacheHits.Add(1)
	h.logger.Debug("cache hit", "type", keyType)
}

func (h *LogHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.cacheMisses.Add(1)
	h.logger.Debug("cache miss", "type", keyType)
}

func (h *LogHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.logger.Debug("cache set", "type", keyType, "bytes", size)
}

func (h *LogHooks) OnRequest(_ context.Context, method, route string) {
	h.requests.Add(1)
}

func (h *LogHooks) OnResponse(_ context.Context, method, route string, status int, d time.Duration) {
	h.logger.Info("request", "method", method, "route", route, "status", status, "duration", d)
}

func (h *LogHooks) OnError(_ context.Context, method, route string, err error) {
	h.errors.Add(1)
	h.logger.Error("request failed", "method", method, "route", route, "err", err)
}

var (
	_ PipelineHooks = (*LogHooks)(nil)
	_ CacheHooks    = (*LogHooks)(nil)
	_ HTTPHooks     = (*LogHooks)(nil)
)
