package acquire

import (
	"net/url"
	"strings"

	errs "github.com/matzehuels/layerstack/pkg/errors"
)

// ProxyPath is the image proxy endpoint path.
const ProxyPath = "/proxy-image"

// Source kinds returned by [Loader.Resolve].
const (
	SourceDirect = "direct"
	SourceProxy  = "proxy"
	SourceData   = "data"
	SourceCache  = "cache"
)

// Request describes where the bytes for an image URL will be read from.
type Request struct {
	// URL is the absolute image URL.
	URL string
	// Fetch is the location actually requested: URL itself, a proxy URL,
	// a data: URL or a cache reference.
	Fetch string
	Kind  string
}

// Proxied reports whether the request goes through the image proxy.
func (r Request) Proxied() bool { return r.Kind == SourceProxy }

// ProxyURL builds the proxy location for an absolute upstream URL.
func ProxyURL(proxyBase, upstream string) string {
	return strings.TrimRight(proxyBase, "/") + ProxyPath + "?url=" + url.QueryEscape(upstream)
}

// Resolve turns a scene URL into a [Request] without touching the network
// or the cache.
func (l *Loader) Resolve(raw string) (Request, error) {
	if err := errs.ValidateURL(raw); err != nil {
		return Request{}, err
	}
	raw = strings.TrimSpace(raw)

	u, err := url.Parse(raw)
	if err != nil {
		return Request{}, errs.Wrap(errs.ErrCodeInvalidURL, err, "invalid image URL")
	}
	switch u.Scheme {
	case "data":
		return Request{URL: raw, Fetch: raw, Kind: SourceData}, nil
	case "cache":
		return Request{URL: raw, Fetch: raw, Kind: SourceCache}, nil
	}

	if !u.IsAbs() {
		if l.origin == nil {
			return Request{}, errs.New(errs.ErrCodeInvalidURL, "relative URL %q without an origin", raw)
		}
		u = l.origin.ResolveReference(u)
	}
	abs := u.String()

	if l.proxyBase != "" && l.crossOrigin(u) {
		return Request{URL: abs, Fetch: ProxyURL(l.proxyBase, abs), Kind: SourceProxy}, nil
	}
	return Request{URL: abs, Fetch: abs, Kind: SourceDirect}, nil
}

func (l *Loader) crossOrigin(u *url.URL) bool {
	if l.origin == nil {
		return true
	}
	return !strings.EqualFold(u.Scheme, l.origin.Scheme) || !strings.EqualFold(u.Host, l.origin.Host)
}
