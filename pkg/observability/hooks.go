// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers register hooks at startup
// to receive events about render passes, image acquisition, cache operations,
// and HTTP traffic.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetCompositeHooks(&myCompositeHooks{})
//	    observability.SetCacheHooks(&myCacheHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Composite().OnPassStart(ctx, passID, layerCount)
//	// ... compose ...
//	observability.Composite().OnPassComplete(ctx, passID, drawn, skipped, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Composite Hooks
// =============================================================================

// CompositeHooks receives events from compositor passes and exports.
type CompositeHooks interface {
	OnPassStart(ctx context.Context, passID string, layers int)
	OnPassComplete(ctx context.Context, passID string, drawn, skipped int, duration time.Duration, err error)

	// OnExport records a finished export raster.
	OnExport(ctx context.Context, preset, format string, size int, duration time.Duration, err error)
}

// =============================================================================
// Acquire Hooks
// =============================================================================

// AcquireHooks receives events from image acquisition.
type AcquireHooks interface {
	// OnImageLoaded records a decoded image. proxied is true when the bytes
	// came through the image proxy.
	OnImageLoaded(ctx context.Context, url string, proxied bool, duration time.Duration)

	// OnImageFailed records an image that could not be fetched or decoded.
	OnImageFailed(ctx context.Context, url string, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from HTTP client and proxy operations.
type HTTPHooks interface {
	// OnRequest records an outgoing HTTP request.
	OnRequest(ctx context.Context, method, host, path string)

	// OnResponse records an HTTP response.
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)

	// OnError records an HTTP error (network failure, timeout).
	OnError(ctx context.Context, method, host, path string, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopCompositeHooks is a no-op implementation of CompositeHooks.
type NoopCompositeHooks struct{}

func (NoopCompositeHooks) OnPassStart(context.Context, string, int) {}
func (NoopCompositeHooks) OnPassComplete(context.Context, string, int, int, time.Duration, error) {
}
func (NoopCompositeHooks) OnExport(context.Context, string, string, int, time.Duration, error) {}

// NoopAcquireHooks is a no-op implementation of AcquireHooks.
type NoopAcquireHooks struct{}

func (NoopAcquireHooks) OnImageLoaded(context.Context, string, bool, time.Duration) {}
func (NoopAcquireHooks) OnImageFailed(context.Context, string, error)              {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	compositeHooks CompositeHooks = NoopCompositeHooks{}
	acquireHooks   AcquireHooks   = NoopAcquireHooks{}
	cacheHooks     CacheHooks     = NoopCacheHooks{}
	httpHooks      HTTPHooks      = NoopHTTPHooks{}
	hooksMu        sync.RWMutex
)

// SetCompositeHooks registers custom compositor hooks.
// This should be called once at application startup before any render pass.
func SetCompositeHooks(h CompositeHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		compositeHooks = h
	}
}

// SetAcquireHooks registers custom acquisition hooks.
func SetAcquireHooks(h AcquireHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		acquireHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks.
// This should be called once at application startup before any HTTP operations.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Composite returns the registered compositor hooks.
func Composite() CompositeHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return compositeHooks
}

// Acquire returns the registered acquisition hooks.
func Acquire() AcquireHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return acquireHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	compositeHooks = NoopCompositeHooks{}
	acquireHooks = NoopAcquireHooks{}
	cacheHooks = NoopCacheHooks{}
	httpHooks = NoopHTTPHooks{}
}
