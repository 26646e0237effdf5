// Package proxy implements the image proxy: GET /proxy-image?url=... fetches
// an upstream image server-side and re-serves it with a permissive
// cross-origin header, so that clients can read its pixels.
//
// Responses mirror the upstream Content-Type. A missing url parameter is a
// 400, a failed upstream fetch answers with the upstream status (502 when
// no response was received) and anything else that goes wrong is a 500.
//
// The host [Policy] is advisory by default: hosts outside the allow-list are
// logged and still served. With Enforce set they are refused with 403.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/layerstack/pkg/acquire"
	"github.com/matzehuels/layerstack/pkg/cache"
	errs "github.com/matzehuels/layerstack/pkg/errors"
	"github.com/matzehuels/layerstack/pkg/httputil"
	"github.com/matzehuels/layerstack/pkg/observability"
)

// Defaults.
const (
	DefaultAddr         = ":8080"
	DefaultCacheControl = "public, max-age=86400"
)

// KeyPrefix scopes the proxy's cache keys.
const KeyPrefix = "proxy:"

// Options configures a [Server].
type Options struct {
	Policy Policy
	// Enforce refuses hosts the policy does not allow.
	Enforce bool
	// Cache stores upstream responses. Optional.
	Cache  cache.Cache
	// Keyer names cache entries. The default scopes keys under "proxy:" so
	// entries do not collide with the raw image bytes prewarm stores.
	Keyer  cache.Keyer
	TTL    time.Duration
	Client *http.Client
	Logger *log.Logger

	MaxBytes int64
	Attempts int
}

// Server is the proxy's HTTP handler.
type Server struct {
	opts   Options
	router chi.Router
}

type cachedResponse struct {
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// New builds the proxy router.
func New(opts Options) *Server {
	if opts.Policy == nil {
		opts.Policy = AllowList(nil)
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewNullCache()
	}
	if opts.Keyer == nil {
		opts.Keyer = cache.NewScopedKeyer(nil, KeyPrefix)
	}
	if opts.TTL <= 0 {
		opts.TTL = cache.TTLImage
	}
	if opts.Client == nil {
		opts.Client = httputil.NewClient(0)
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 2
	}

	s := &Server{opts: opts}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(echoRequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get(acquire.ProxyPath, s.handleProxy)
	r.Options(acquire.ProxyPath, s.handlePreflight)
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.opts.Logger.Info("proxy listening", "addr", addr, "enforce", s.opts.Enforce)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	logger := s.opts.Logger.With("request_id", RequestID(r.Context()))

	raw := r.URL.Query().Get("url")
	if raw == "" {
		writeError(w, http.StatusBadRequest, errs.New(errs.ErrCodeInvalidInput, "missing url parameter"))
		return
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		writeError(w, http.StatusBadRequest, errs.New(errs.ErrCodeInvalidURL, "url must be an absolute http(s) URL"))
		return
	}
	if err := errs.ValidateURL(raw); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if !s.opts.Policy.Allowed(u.Host) {
		if s.opts.Enforce {
			logger.Warn("host refused", "host", u.Host)
			writeError(w, http.StatusForbidden, errs.New(errs.ErrCodeHostNotAllowed, "host %s is not allowed", u.Host))
			return
		}
		logger.Warn("host not in allow-list, proxying anyway", "host", u.Host)
	}

	ctx := r.Context()
	key := s.opts.Keyer.ImageKey(u.String())
	if data, ok, err := s.opts.Cache.Get(ctx, key); err == nil && ok {
		var cr cachedResponse
		if json.Unmarshal(data, &cr) == nil {
			observability.Cache().OnCacheHit(ctx, "proxy")
			w.Header().Set("X-Cache", "HIT")
			writeImage(w, cr.ContentType, cr.Body)
			return
		}
	} else if err != nil {
		logger.Debug("cache lookup failed", "err", err)
	}
	observability.Cache().OnCacheMiss(ctx, "proxy")

	var resp *httputil.Response
	err = httputil.Retry(ctx, s.opts.Attempts, 200*time.Millisecond, func() error {
		var err error
		resp, err = httputil.Fetch(ctx, s.opts.Client, u.String(), nil, s.opts.MaxBytes)
		return err
	})
	if err != nil {
		status := httputil.StatusCode(err)
		switch {
		case status != 0:
		case ctx.Err() != nil:
			return
		case isNetworkError(err):
			status = http.StatusBadGateway
		default:
			status = http.StatusInternalServerError
		}
		logger.Warn("upstream fetch failed", "url", u.String(), "status", status, "err", err)
		writeError(w, status, errs.Wrap(errs.ErrCodeProxyFetch, err, "fetch %s", u.String()))
		return
	}

	contentType := resp.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(resp.Body)
	}
	if data, err := json.Marshal(cachedResponse{ContentType: contentType, Body: resp.Body}); err == nil {
		if err := s.opts.Cache.Set(ctx, key, data, s.opts.TTL); err != nil {
			logger.Debug("cache store failed", "err", err)
		} else {
			observability.Cache().OnCacheSet(ctx, "proxy", len(resp.Body))
		}
	}
	w.Header().Set("X-Cache", "MISS")
	writeImage(w, contentType, resp.Body)
}

func isNetworkError(err error) bool {
	var re *httputil.RetryableError
	return errors.As(err, &re)
}

func setCORS(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	h.Set("Access-Control-Expose-Headers", "Content-Type, X-Cache, X-Request-ID")
}

func writeImage(w http.ResponseWriter, contentType string, body []byte) {
	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.Itoa(len(body)))
	h.Set("Cache-Control", DefaultCacheControl)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Code: string(errs.GetCode(err)), Message: errs.UserMessage(err)})
}
