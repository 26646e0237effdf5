package proxy

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/layerstack/pkg/observability"
)

// RequestIDHeader carries the request ID on requests and responses. It is
// the header chi's RequestID middleware reads.
const RequestIDHeader = "X-Request-ID"

// RequestID returns the request ID chi's RequestID middleware stored in ctx.
func RequestID(ctx context.Context) string {
	return middleware.GetReqID(ctx)
}

// echoRequestID returns the request ID to the client.
func echoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := RequestID(r.Context()); id != "" {
			w.Header().Set(RequestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start)

		observability.HTTP().OnResponse(r.Context(), r.Method, r.Host, r.URL.Path, ww.Status(), elapsed)
		s.opts.Logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed", elapsed.Round(time.Millisecond),
			"remote", r.RemoteAddr,
			"request_id", RequestID(r.Context()),
		)
	})
}
