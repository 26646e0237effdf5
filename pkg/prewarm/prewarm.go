// Package prewarm fetches scene images ahead of a render pass and stores
// their bytes in a [cache.Cache], so later passes read them locally.
//
// A [Warmer] is the image cache collaborator of the acquisition pipeline:
// it implements [acquire.URLCache]. CachedURL hands out "cache:" references
// for URLs whose bytes are present; everything else falls back to the
// network. The compositor only ever reads through it.
package prewarm

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/layerstack/pkg/acquire"
	"github.com/matzehuels/layerstack/pkg/cache"
	"github.com/matzehuels/layerstack/pkg/httputil"
	"github.com/matzehuels/layerstack/pkg/observability"
)

// RefScheme prefixes references returned by [Warmer.CachedURL].
const RefScheme = "cache:"

const keyType = "image"

// Priority selects how aggressively [Warmer.Prewarm] fetches.
type Priority int

const (
	// PriorityLow fetches a couple of images at a time, for background
	// warming of likely-next candidates.
	PriorityLow Priority = iota
	// PriorityHigh fetches with full concurrency, for images the next pass
	// is about to draw.
	PriorityHigh
)

func (p Priority) String() string {
	if p == PriorityHigh {
		return "high"
	}
	return "low"
}

// ParsePriority parses "high" or "low" (case-insensitive). Anything else is
// low.
func ParsePriority(s string) Priority {
	if strings.EqualFold(strings.TrimSpace(s), "high") {
		return PriorityHigh
	}
	return PriorityLow
}

// Concurrency defaults per priority.
const (
	DefaultHighConcurrency = 8
	DefaultLowConcurrency  = 2
)

// Stats summarizes cache activity since the warmer was created or cleared.
type Stats struct {
	Entries  int   `json:"entries"`
	Bytes    int64 `json:"bytes"`
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Failures int64 `json:"failures"`
}

// Report is the outcome of one Prewarm call.
type Report struct {
	Warmed  []string
	Skipped []string
	Failed  map[string]error
}

// Options configures a [Warmer].
type Options struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Client *http.Client
	Logger *log.Logger
	// TTL for stored entries. 0 means [cache.TTLImage].
	TTL time.Duration

	HighConcurrency int
	LowConcurrency  int
	MaxBytes        int64
}

// Warmer stores image bytes in a cache and resolves cached references.
// It is safe for concurrent use.
type Warmer struct {
	cache  cache.Cache
	keyer  cache.Keyer
	client *http.Client
	logger *log.Logger
	ttl    time.Duration

	high, low int
	maxBytes  int64

	mu      sync.Mutex
	entries map[string]int64

	hits, misses, failures atomic.Int64
}

// New creates a Warmer. A nil cache disables storage: every URL misses.
func New(opts Options) *Warmer {
	w := &Warmer{
		cache:    opts.Cache,
		keyer:    opts.Keyer,
		client:   opts.Client,
		logger:   opts.Logger,
		ttl:      opts.TTL,
		high:     opts.HighConcurrency,
		low:      opts.LowConcurrency,
		maxBytes: opts.MaxBytes,
		entries:  make(map[string]int64),
	}
	if w.cache == nil {
		w.cache = cache.NewNullCache()
	}
	if w.keyer == nil {
		w.keyer = cache.NewDefaultKeyer()
	}
	if w.client == nil {
		w.client = httputil.NewClient(0)
	}
	if w.logger == nil {
		w.logger = log.New(io.Discard)
	}
	if w.ttl <= 0 {
		w.ttl = cache.TTLImage
	}
	if w.high <= 0 {
		w.high = DefaultHighConcurrency
	}
	if w.low <= 0 {
		w.low = DefaultLowConcurrency
	}
	return w
}

var _ acquire.CacheLookup = (*Warmer)(nil)

// Lookup returns the reference and bytes cached for url with a single
// cache read.
func (w *Warmer) Lookup(ctx context.Context, url string) (string, []byte, bool) {
	key := w.keyer.ImageKey(url)
	data, ok, err := w.cache.Get(ctx, key)
	if err != nil {
		w.logger.Debug("cache lookup failed", "url", url, "err", err)
	}
	if !ok {
		w.misses.Add(1)
		observability.Cache().OnCacheMiss(ctx, keyType)
		return "", nil, false
	}
	w.hits.Add(1)
	observability.Cache().OnCacheHit(ctx, keyType)
	return RefScheme + key, data, true
}

// CachedURL returns a cache reference for url when its bytes are cached,
// and url unchanged otherwise. Callers that go on to read the bytes should
// use [Warmer.Lookup].
func (w *Warmer) CachedURL(ctx context.Context, url string) string {
	if ref, _, ok := w.Lookup(ctx, url); ok {
		return ref
	}
	return url
}

// Read returns the bytes behind a reference produced by CachedURL.
func (w *Warmer) Read(ctx context.Context, ref string) ([]byte, bool) {
	key, ok := strings.CutPrefix(ref, RefScheme)
	if !ok {
		return nil, false
	}
	data, ok, err := w.cache.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	return data, true
}

// Prewarm fetches every URL that is not cached yet and stores its bytes.
// URLs must be absolute; use [Warmer.PrewarmRequests] with requests from
// [acquire.Loader.Resolve] to warm relative or proxied scene URLs.
func (w *Warmer) Prewarm(ctx context.Context, urls []string, priority Priority) (Report, error) {
	reqs := make([]acquire.Request, 0, len(urls))
	for _, u := range urls {
		reqs = append(reqs, acquire.Request{URL: u, Fetch: u, Kind: acquire.SourceDirect})
	}
	return w.PrewarmRequests(ctx, reqs, priority)
}

// PrewarmRequests warms resolved requests. Bytes are read from Fetch and
// stored under URL, the key the loader looks up. data: and cache: requests
// are already local and are skipped. Bytes that do not decode as an image
// are not stored. Failures are collected in the report, keyed by URL;
// PrewarmRequests only returns an error when ctx ends.
func (w *Warmer) PrewarmRequests(ctx context.Context, reqs []acquire.Request, priority Priority) (Report, error) {
	report := Report{Failed: make(map[string]error)}
	var mu sync.Mutex

	limit := w.low
	if priority == PriorityHigh {
		limit = w.high
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	seen := make(map[string]bool, len(reqs))
	for _, req := range reqs {
		if seen[req.URL] || req.URL == "" {
			continue
		}
		seen[req.URL] = true
		g.Go(func() error {
			warmed, err := w.warm(gctx, req)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				report.Failed[req.URL] = err
			case warmed:
				report.Warmed = append(report.Warmed, req.URL)
			default:
				report.Skipped = append(report.Skipped, req.URL)
			}
			return nil
		})
	}
	_ = g.Wait()

	w.logger.Debug("prewarm done", "priority", priority, "warmed", len(report.Warmed),
		"skipped", len(report.Skipped), "failed", len(report.Failed), "elapsed", time.Since(start).Round(time.Millisecond))
	return report, ctx.Err()
}

func (w *Warmer) warm(ctx context.Context, req acquire.Request) (bool, error) {
	if req.Kind == acquire.SourceData || req.Kind == acquire.SourceCache {
		return false, nil
	}
	key := w.keyer.ImageKey(req.URL)
	if _, ok, _ := w.cache.Get(ctx, key); ok {
		return false, nil
	}

	var resp *httputil.Response
	err := httputil.Retry(ctx, 2, 250*time.Millisecond, func() error {
		var err error
		resp, err = httputil.Fetch(ctx, w.client, req.Fetch, nil, w.maxBytes)
		return err
	})
	if err != nil {
		w.failures.Add(1)
		return false, err
	}
	if _, _, err := acquire.DecodeConfig(resp.Body); err != nil {
		w.failures.Add(1)
		return false, err
	}
	if err := w.cache.Set(ctx, key, resp.Body, w.ttl); err != nil {
		w.failures.Add(1)
		return false, err
	}
	observability.Cache().OnCacheSet(ctx, keyType, len(resp.Body))

	w.mu.Lock()
	w.entries[key] = int64(len(resp.Body))
	w.mu.Unlock()
	return true, nil
}

// Clear drops every cached entry and resets the statistics.
func (w *Warmer) Clear(ctx context.Context) error {
	if err := cache.Clear(ctx, w.cache); err != nil {
		if err != cache.ErrClearUnsupported {
			return err
		}
		w.mu.Lock()
		keys := make([]string, 0, len(w.entries))
		for k := range w.entries {
			keys = append(keys, k)
		}
		w.mu.Unlock()
		for _, k := range keys {
			if err := w.cache.Delete(ctx, k); err != nil {
				return err
			}
		}
	}
	w.mu.Lock()
	w.entries = make(map[string]int64)
	w.mu.Unlock()
	w.hits.Store(0)
	w.misses.Store(0)
	w.failures.Store(0)
	return nil
}

// Stats returns a snapshot of the warmer's counters. Entries and Bytes
// count what this warmer stored.
func (w *Warmer) Stats() Stats {
	w.mu.Lock()
	var total int64
	for _, n := range w.entries {
		total += n
	}
	n := len(w.entries)
	w.mu.Unlock()
	return Stats{
		Entries:  n,
		Bytes:    total,
		Hits:     w.hits.Load(),
		Misses:   w.misses.Load(),
		Failures: w.failures.Load(),
	}
}

var _ acquire.URLCache = (*Warmer)(nil)
