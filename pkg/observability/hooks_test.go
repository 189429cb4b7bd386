package observability

import (
	"context"
	"testing"
	"time"
)

type recordingScanHooks struct {
	NoopScanHooks
	starts    int
	completes int
	errors    int
}

func (h *recordingScanHooks) OnResolveStart(context.Context, string, string)            { h.starts++ }
func (h *recordingScanHooks) OnResolveComplete(context.Context, string, string, string) { h.completes++ }
func (h *recordingScanHooks) OnResolveError(context.Context, string, string, error)     { h.errors++ }

type recordingCacheHooks struct {
	NoopCacheHooks
	hits   int
	misses int
}

func (h *recordingCacheHooks) OnHit(context.Context, string)  { h.hits++ }
func (h *recordingCacheHooks) OnMiss(context.Context, string) { h.misses++ }

func TestDefaultsAreNoop(t *testing.T) {
	Reset()
	ctx := context.Background()

	// Must not panic.
	Scan().OnScanStart(ctx, 1)
	Scan().OnResolveComplete(ctx, "lodash", "4.17.21", "MIT")
	Cache().OnHit(ctx, "key")
	Cache().OnError(ctx, "get", nil)
	HTTP().OnResponse(ctx, "GET", "registry.npmjs.org", "/lodash", 200, time.Millisecond)
}

func TestSetScanHooks(t *testing.T) {
	t.Cleanup(Reset)

	h := &recordingScanHooks{}
	SetScanHooks(h)

	ctx := context.Background()
	Scan().OnResolveStart(ctx, "lodash", "4.17.21")
	Scan().OnResolveComplete(ctx, "lodash", "4.17.21", "MIT")
	Scan().OnResolveError(ctx, "ghost", "1.0.0", context.Canceled)

	if h.starts != 1 || h.completes != 1 || h.errors != 1 {
		t.Errorf("counts = %d/%d/%d, want 1/1/1", h.starts, h.completes, h.errors)
	}
}

func TestSetCacheHooks(t *testing.T) {
	t.Cleanup(Reset)

	h := &recordingCacheHooks{}
	SetCacheHooks(h)

	ctx := context.Background()
	Cache().OnHit(ctx, "a")
	Cache().OnMiss(ctx, "b")
	Cache().OnMiss(ctx, "c")

	if h.hits != 1 || h.misses != 2 {
		t.Errorf("hits/misses = %d/%d, want 1/2", h.hits, h.misses)
	}
}

func TestSetNilKeepsCurrent(t *testing.T) {
	t.Cleanup(Reset)

	h := &recordingScanHooks{}
	SetScanHooks(h)
	SetScanHooks(nil)

	Scan().OnResolveStart(context.Background(), "a", "1")
	if h.starts != 1 {
		t.Error("nil registration replaced the active hooks")
	}
}

func TestReset(t *testing.T) {
	h := &recordingScanHooks{}
	SetScanHooks(h)
	Reset()

	Scan().OnResolveStart(context.Background(), "a", "1")
	if h.starts != 0 {
		t.Error("Reset did not restore the no-op hooks")
	}
}
