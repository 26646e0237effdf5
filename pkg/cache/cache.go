// Package cache provides byte-oriented caching backends for image data and
// rendered artifacts.
//
// # Backends
//
//   - [FileCache]: one file per key under a directory (CLI default).
//   - [RedisCache]: shared cache for multi-instance proxy deployments.
//   - [MongoCache]: durable cache for exported artifacts.
//   - [MemoryCache]: in-process cache, mainly for tests and short sessions.
//   - [NullCache]: caching disabled.
//
// All backends implement [Cache] and are safe for concurrent use.
//
// # Keys
//
// Keys are produced by a [Keyer] so that image bytes and artifacts never
// collide. [NewScopedKeyer] prefixes every key for per-tenant isolation.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Default TTLs per entry kind.
const (
	// TTLImage is how long fetched image bytes stay cached.
	TTLImage = 24 * time.Hour

	// TTLArtifact is how long exported raster artifacts stay cached.
	TTLArtifact = 7 * 24 * time.Hour
)

// Cache is a byte cache with per-entry expiration.
type Cache interface {
	// Get returns the cached bytes for key. A miss is (nil, false, nil);
	// expired entries are reported as misses.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of 0 means the entry never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Clearer is implemented by backends that can drop every entry at once.
type Clearer interface {
	Clear(ctx context.Context) error
}

// ErrClearUnsupported is returned by [Clear] for backends without bulk removal.
var ErrClearUnsupported = errors.New("cache: backend does not support clear")

// Clear drops every entry in c.
func Clear(ctx context.Context, c Cache) error {
	if cl, ok := c.(Clearer); ok {
		return cl.Clear(ctx)
	}
	if _, ok := c.(*NullCache); ok {
		return nil
	}
	return ErrClearUnsupported
}

// Keyer generates cache keys for the different entry kinds.
type Keyer interface {
	// ImageKey returns the key for the bytes behind an image URL.
	ImageKey(url string) string

	// ArtifactKey returns the key for an exported artifact.
	ArtifactKey(sceneHash string, opts ArtifactKeyOpts) string
}

// ArtifactKeyOpts holds the export options that change the artifact bytes.
type ArtifactKeyOpts struct {
	Preset     string `json:"preset"`
	Format     string `json:"format"`
	Quality    int    `json:"quality,omitempty"`
	Background string `json:"background,omitempty"`
	// Origin and ProxyBase decide where relative and cross-origin URLs are
	// fetched from, so the same scene can render differently under each.
	Origin    string `json:"origin,omitempty"`
	ProxyBase string `json:"proxy_base,omitempty"`
}

// DefaultKeyer is the standard [Keyer].
type DefaultKeyer struct{}

// NewDefaultKeyer returns a [DefaultKeyer].
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// ImageKey returns "image:<sha256(url)>".
func (DefaultKeyer) ImageKey(url string) string {
	return hashKey("image", url)
}

// ArtifactKey returns "artifact:<sha256(sceneHash, opts)>".
func (DefaultKeyer) ArtifactKey(sceneHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", sceneHash, opts)
}

// ScopedKeyer wraps a Keyer with a prefix for multi-tenant isolation.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// ImageKey generates a prefixed image key.
func (k *ScopedKeyer) ImageKey(url string) string {
	return k.prefix + k.inner.ImageKey(url)
}

// ArtifactKey generates a prefixed artifact key.
func (k *ScopedKeyer) ArtifactKey(sceneHash string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(sceneHash, opts)
}

// entry wraps cached data with metadata for backends that store envelopes.
type entry struct {
	Data      []byte    `json:"data"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (e entry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

func newEntry(data []byte, ttl time.Duration) entry {
	e := entry{Data: data}
	if ttl > 0 {
		e.ExpiresAt = time.Now().Add(ttl)
	}
	return e
}

func encodeEntry(e entry) ([]byte, error) { return json.Marshal(e) }
