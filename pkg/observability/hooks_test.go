package observability

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	// Pipeline hooks
	p := NoopPipelineHooks{}
	p.OnLoadStart(ctx, "profile.json")
	p.OnLoadComplete(ctx, "profile.json", 100, time.Second, nil)
	p.OnLayoutStart(ctx, 100)
	p.OnLayoutComplete(ctx, 80, time.Second, nil)
	p.OnRenderStart(ctx, []string{"svg"})
	p.OnRenderComplete(ctx, []string{"svg"}, time.Second, nil)

	// Cache hooks
	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "layout")
	c.OnCacheMiss(ctx, "layout")
	c.OnCacheSet(ctx, "artifact", 1024)

	// HTTP hooks
	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "GET", "/v1/layouts/{id}")
	h.OnResponse(ctx, "GET", "/v1/layouts/{id}", 200, time.Second)
	h.OnError(ctx, "GET", "/v1/layouts/{id}", nil)
}

func TestGlobalHooksRegistry(t *testing.T) {
	// Reset to known state
	Reset()

	// Verify defaults are noop
	if _, ok := Pipeline().(NoopPipelineHooks); !ok {
		t.Error("Pipeline() should return NoopPipelineHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("HTTP() should return NoopHTTPHooks by default")
	}

	// Set custom hooks
	customPipeline := &testPipelineHooks{}
	SetPipelineHooks(customPipeline)
	if Pipeline() != customPipeline {
		t.Error("SetPipelineHooks should set custom hooks")
	}

	customCache := &testCacheHooks{}
	SetCacheHooks(customCache)
	if Cache() != customCache {
		t.Error("SetCacheHooks should set custom hooks")
	}

	customHTTP := &testHTTPHooks{}
	SetHTTPHooks(customHTTP)
	if HTTP() != customHTTP {
		t.Error("SetHTTPHooks should set custom hooks")
	}

	// Reset and verify
	Reset()
	if _, ok := Pipeline().(NoopPipelineHooks); !ok {
		t.Error("Reset() should restore NoopPipelineHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()

	custom := &testPipelineHooks{}
	SetPipelineHooks(custom)

	// Setting nil should be ignored
	SetPipelineHooks(nil)

	if Pipeline() != custom {
		t.Error("SetPipelineHooks(nil) should be ignored")
	}

	Reset()
}

// Test implementations
type testPipelineHooks struct{ NoopPipelineHooks }
type testCacheHooks struct{ NoopCacheHooks }
type testHTTPHooks struct{ NoopHTTPHooks }

func TestLogHooks(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	h := NewLogHooks(log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel}))

	h.OnCacheHit(ctx, "layout")
	h.OnCacheMiss(ctx, "artifact")
	h.OnCacheMiss(ctx, "artifact")
	h.OnRequest(ctx, "POST", "/v1/layouts")
	h.OnLayoutComplete(ctx, 0, time.Millisecond, errors.New("boom"))
	h.OnLoadComplete(ctx, "p.yaml", 3, time.Millisecond, nil)

	got := h.Counters()
	want := Counters{CacheHits: 1, CacheMisses: 2, Requests: 1, Errors: 1}
	if got != want {
		t.Errorf("Counters() = %+v, want %+v", got, want)
	}
	for _, s := range []string{"cache hit", "layout failed", "loaded profile"} {
		if !strings.Contains(buf.String(), s) {
			t.Errorf("log output missing %q:\n%s", s, buf.String())
		}
	}
}
