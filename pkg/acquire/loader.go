package acquire

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	errs "github.com/matzehuels/layerstack/pkg/errors"
	"github.com/matzehuels/layerstack/pkg/geometry"
	"github.com/matzehuels/layerstack/pkg/httputil"
	"github.com/matzehuels/layerstack/pkg/observability"
)

// Loader defaults.
const (
	DefaultConcurrency = 8
	DefaultAttempts    = 2
	DefaultRetryDelay  = 250 * time.Millisecond
)

// URLCache is the optional image cache collaborator. CachedURL returns a
// location holding the same bytes as url, or url itself when nothing is
// cached. Read resolves locations CachedURL handed out.
type URLCache interface {
	CachedURL(ctx context.Context, url string) string
	Read(ctx context.Context, ref string) ([]byte, bool)
}

// CacheLookup is implemented by URL caches that can resolve and read an
// entry in one round trip. The loader prefers it over CachedURL plus Read.
type CacheLookup interface {
	Lookup(ctx context.Context, url string) (ref string, data []byte, ok bool)
}

// Options configures a [Loader].
type Options struct {
	// Origin is the base for relative URLs and the reference for deciding
	// whether a URL is cross-origin. Empty treats every absolute URL as
	// cross-origin.
	Origin string
	// ProxyBase is the base URL of the image proxy. Empty disables proxying.
	ProxyBase string
	// Cache is consulted before any network request. Optional.
	Cache  URLCache
	Client *http.Client
	Logger *log.Logger

	Concurrency int
	Attempts    int
	MaxBytes    int64
}

// Image is a decoded image together with where it came from.
type Image struct {
	URL    string
	Source string
	Kind   string
	Format string
	Size   geometry.Size
	Image  image.Image
}

// Result is the outcome of loading one URL. Exactly one of Image and Err is
// set.
type Result struct {
	URL   string
	Image *Image
	Err   error
}

// OK reports whether the image loaded.
func (r Result) OK() bool { return r.Err == nil && r.Image != nil }

// Results maps requested URLs to their outcome.
type Results map[string]Result

// Loader fetches and decodes images. It is safe for concurrent use.
type Loader struct {
	origin    *url.URL
	proxyBase string
	cache     URLCache
	client    *http.Client
	logger    *log.Logger

	concurrency int
	attempts    int
	maxBytes    int64
}

// New creates a Loader. An unparsable origin is an error.
func New(opts Options) (*Loader, error) {
	l := &Loader{
		proxyBase:   strings.TrimSpace(opts.ProxyBase),
		cache:       opts.Cache,
		client:      opts.Client,
		logger:      opts.Logger,
		concurrency: opts.Concurrency,
		attempts:    opts.Attempts,
		maxBytes:    opts.MaxBytes,
	}
	if opts.Origin != "" {
		u, err := url.Parse(opts.Origin)
		if err != nil || !u.IsAbs() {
			return nil, errs.New(errs.ErrCodeInvalidURL, "origin must be an absolute URL: %q", opts.Origin)
		}
		l.origin = u
	}
	if l.client == nil {
		l.client = httputil.NewClient(0)
	}
	if l.logger == nil {
		l.logger = log.New(io.Discard)
	}
	if l.concurrency <= 0 {
		l.concurrency = DefaultConcurrency
	}
	if l.attempts <= 0 {
		l.attempts = DefaultAttempts
	}
	return l, nil
}

// Origin returns the configured origin, or "" when there is none.
func (l *Loader) Origin() string {
	if l.origin == nil {
		return ""
	}
	return l.origin.String()
}

// ProxyBase returns the configured proxy base URL.
func (l *Loader) ProxyBase() string { return l.proxyBase }

// Load fetches and decodes a single image. Every failure is returned as an
// [*ImageLoadError].
func (l *Loader) Load(ctx context.Context, rawURL string) (*Image, error) {
	start := time.Now()
	img, err := l.load(ctx, rawURL)
	if err != nil {
		observability.Acquire().OnImageFailed(ctx, rawURL, err)
		l.logger.Debug("image failed", "url", rawURL, "err", err)
		return nil, err
	}
	observability.Acquire().OnImageLoaded(ctx, rawURL, img.Kind == SourceProxy, time.Since(start))
	l.logger.Debug("image loaded", "url", rawURL, "source", img.Kind, "format", img.Format,
		"size", fmt.Sprintf("%gx%g", img.Size.W, img.Size.H), "elapsed", time.Since(start).Round(time.Millisecond))
	return img, nil
}

func (l *Loader) load(ctx context.Context, rawURL string) (*Image, error) {
	req, err := l.Resolve(rawURL)
	if err != nil {
		return nil, &ImageLoadError{URL: rawURL, Err: err}
	}

	if l.cache != nil && req.Kind != SourceData && req.Kind != SourceCache {
		if ref, data, ok := l.cached(ctx, req.URL); ok {
			img, err := decode(data)
			if err == nil {
				img.URL, img.Source, img.Kind = rawURL, ref, SourceCache
				return img, nil
			}
			l.logger.Debug("cached image undecodable, refetching", "url", rawURL, "err", err)
		}
	}

	data, err := l.fetch(ctx, req)
	if err != nil {
		return nil, &ImageLoadError{URL: rawURL, Err: err}
	}
	img, err := decode(data)
	if err != nil {
		return nil, &ImageLoadError{URL: rawURL, Err: errs.Wrap(errs.ErrCodeImageLoad, err, "decode %s", rawURL)}
	}
	img.URL, img.Source, img.Kind = rawURL, req.Fetch, req.Kind
	return img, nil
}

// cached returns the cached bytes for an absolute URL.
func (l *Loader) cached(ctx context.Context, u string) (string, []byte, bool) {
	if lk, ok := l.cache.(CacheLookup); ok {
		return lk.Lookup(ctx, u)
	}
	ref := l.cache.CachedURL(ctx, u)
	if ref == "" || ref == u {
		return "", nil, false
	}
	data, ok := l.cache.Read(ctx, ref)
	return ref, data, ok
}

func (l *Loader) fetch(ctx context.Context, req Request) ([]byte, error) {
	switch req.Kind {
	case SourceData:
		data, err := decodeDataURL(req.Fetch)
		if err != nil {
			return nil, errs.Wrap(errs.ErrCodeImageLoad, err, "data URL")
		}
		return data, nil
	case SourceCache:
		if l.cache != nil {
			if data, ok := l.cache.Read(ctx, req.Fetch); ok {
				return data, nil
			}
		}
		return nil, errs.New(errs.ErrCodeImageLoad, "cache entry %s not available", req.Fetch)
	}

	var resp *httputil.Response
	err := httputil.Retry(ctx, l.attempts, DefaultRetryDelay, func() error {
		var err error
		resp, err = httputil.Fetch(ctx, l.client, req.Fetch, nil, l.maxBytes)
		return err
	})
	if err == nil {
		return resp.Body, nil
	}
	if req.Proxied() {
		return nil, &ProxyFetchError{
			URL:        req.URL,
			ProxyURL:   req.Fetch,
			StatusCode: httputil.StatusCode(err),
			Err:        errs.Wrap(errs.ErrCodeProxyFetch, err, "proxy could not fetch %s", req.URL),
		}
	}
	return nil, errs.Wrap(errs.ErrCodeImageLoad, err, "fetch %s", req.URL)
}

// LoadAll loads every distinct URL concurrently and waits for all of them to
// settle. onSettled, when non-nil, is called once per URL as soon as its
// result is known; calls are serialized. A cancelled context turns the
// remaining loads into failures rather than aborting the batch.
func (l *Loader) LoadAll(ctx context.Context, urls []string, onSettled func(Result)) Results {
	seen := make(map[string]bool, len(urls))
	distinct := make([]string, 0, len(urls))
	for _, u := range urls {
		if !seen[u] {
			seen[u] = true
			distinct = append(distinct, u)
		}
	}

	results := make(Results, len(distinct))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for _, u := range distinct {
		g.Go(func() error {
			img, err := l.Load(gctx, u)
			r := Result{URL: u, Image: img, Err: err}

			mu.Lock()
			defer mu.Unlock()
			results[u] = r
			if onSettled != nil {
				onSettled(r)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// DecodeConfig reports the format and pixel size of encoded image bytes
// without decoding the pixels.
func DecodeConfig(data []byte) (string, geometry.Size, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", geometry.Size{}, err
	}
	return format, geometry.Size{W: float64(cfg.Width), H: float64(cfg.Height)}, nil
}

// Decode decodes raw image bytes with every registered decoder.
func Decode(data []byte) (*Image, error) {
	return decode(data)
}

func decode(data []byte) (*Image, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	return &Image{
		Format: format,
		Size:   geometry.SizeOf(img),
		Image:  img,
	}, nil
}

// decodeDataURL extracts the payload of a data: URL (RFC 2397).
func decodeDataURL(raw string) ([]byte, error) {
	rest, ok := strings.CutPrefix(raw, "data:")
	if !ok {
		return nil, fmt.Errorf("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("data URL has no payload")
	}
	if strings.HasSuffix(meta, ";base64") {
		return base64.StdEncoding.DecodeString(payload)
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}
