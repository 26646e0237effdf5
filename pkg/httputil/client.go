package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/matzehuels/layerstack/pkg/observability"
)

// Client defaults.
const (
	DefaultTimeout = 15 * time.Second
	DefaultMaxBody = 32 << 20
	UserAgent      = "layerstack"
)

// ErrBodyTooLarge is returned by [Fetch] when a response exceeds the limit.
var ErrBodyTooLarge = errors.New("response body too large")

// StatusError reports a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// NewClient creates an HTTP client with the given timeout (0 means
// [DefaultTimeout]) whose requests are reported to [observability.HTTP].
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &hookedTransport{base: http.DefaultTransport},
	}
}

type hookedTransport struct {
	base http.RoundTripper
}

func (t *hookedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	hooks := observability.HTTP()
	ctx := req.Context()
	host, path := req.URL.Host, req.URL.Path
	hooks.OnRequest(ctx, req.Method, host, path)

	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, host, path, err)
		return nil, err
	}
	hooks.OnResponse(ctx, req.Method, host, path, resp.StatusCode, time.Since(start))
	return resp, nil
}

// Response is a fully read HTTP response body.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Fetch performs a GET and reads the body into memory, up to maxBody bytes
// (0 means [DefaultMaxBody]). Network errors and 5xx responses are wrapped
// in [RetryableError]; every non-2xx status is reported as [*StatusError].
func Fetch(ctx context.Context, client *http.Client, url string, headers map[string]string, maxBody int64) (*Response, error) {
	if client == nil {
		client = NewClient(0)
	}
	if maxBody <= 0 {
		maxBody = DefaultMaxBody
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", UserAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &RetryableError{Err: err}
	}
	defer resp.Body.Close()

	if err := checkStatus(url, resp.StatusCode); err != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody+1))
	if err != nil {
		return nil, &RetryableError{Err: err}
	}
	if int64(len(body)) > maxBody {
		return nil, fmt.Errorf("GET %s: %w (limit %d bytes)", url, ErrBodyTooLarge, maxBody)
	}
	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

func checkStatus(url string, code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code >= 500:
		return &RetryableError{Err: &StatusError{URL: url, StatusCode: code}}
	default:
		return &StatusError{URL: url, StatusCode: code}
	}
}
