package observability

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	p := NoopCompositeHooks{}
	p.OnPassStart(ctx, "pass-1", 3)
	p.OnPassComplete(ctx, "pass-1", 2, 1, time.Second, nil)
	p.OnExport(ctx, "1:1", "png", 1024, time.Second, nil)

	a := NoopAcquireHooks{}
	a.OnImageLoaded(ctx, "https://cdn.example.com/a.png", true, time.Millisecond)
	a.OnImageFailed(ctx, "https://cdn.example.com/b.png", errors.New("boom"))

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "image")
	c.OnCacheMiss(ctx, "artifact")
	c.OnCacheSet(ctx, "image", 1024)

	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "GET", "cdn.example.com", "/a.png")
	h.OnResponse(ctx, "GET", "cdn.example.com", "/a.png", 200, time.Second)
	h.OnError(ctx, "GET", "cdn.example.com", "/a.png", nil)
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()

	if _, ok := Composite().(NoopCompositeHooks); !ok {
		t.Error("Composite() should return NoopCompositeHooks by default")
	}
	if _, ok := Acquire().(NoopAcquireHooks); !ok {
		t.Error("Acquire() should return NoopAcquireHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("HTTP() should return NoopHTTPHooks by default")
	}

	customComposite := &testCompositeHooks{}
	SetCompositeHooks(customComposite)
	if Composite() != customComposite {
		t.Error("SetCompositeHooks should set custom hooks")
	}

	customAcquire := &testAcquireHooks{}
	SetAcquireHooks(customAcquire)
	if Acquire() != customAcquire {
		t.Error("SetAcquireHooks should set custom hooks")
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

	Reset()
	if _, ok := Composite().(NoopCompositeHooks); !ok {
		t.Error("Reset() should restore NoopCompositeHooks")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("Reset() should restore NoopHTTPHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()

	custom := &testCompositeHooks{}
	SetCompositeHooks(custom)

	SetCompositeHooks(nil)
	SetAcquireHooks(nil)

	if Composite() != custom {
		t.Error("SetCompositeHooks(nil) should be ignored")
	}
	if _, ok := Acquire().(NoopAcquireHooks); !ok {
		t.Error("SetAcquireHooks(nil) should be ignored")
	}

	Reset()
}

// Test implementations
type testCompositeHooks struct{ NoopCompositeHooks }
type testAcquireHooks struct{ NoopAcquireHooks }
type testCacheHooks struct{ NoopCacheHooks }
type testHTTPHooks struct{ NoopHTTPHooks }
