package proxy

import (
	"strings"
)

// Policy decides which upstream hosts the proxy serves.
type Policy interface {
	Allowed(host string) bool
}

// AllowList matches hosts against a list of patterns. A pattern is either an
// exact host ("cdn.example.com") or a suffix wildcard ("*.example.com",
// which also matches "example.com"). Ports are ignored.
type AllowList []string

// Allowed implements [Policy]. An empty list allows every host.
func (a AllowList) Allowed(host string) bool {
	if len(a) == 0 {
		return true
	}
	host = strings.ToLower(stripPort(host))
	for _, p := range a {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if suffix, ok := strings.CutPrefix(p, "*."); ok {
			if host == suffix || strings.HasSuffix(host, "."+suffix) {
				return true
			}
			continue
		}
		if host == p {
			return true
		}
	}
	return false
}

// PolicyFunc adapts a function to [Policy].
type PolicyFunc func(host string) bool

// Allowed implements [Policy].
func (f PolicyFunc) Allowed(host string) bool { return f(host) }

func stripPort(host string) string {
	if strings.HasPrefix(host, "[") {
		if i := strings.Index(host, "]"); i >= 0 {
			return host[1:i]
		}
		return host
	}
	if i := strings.LastIndexByte(host, ':'); i >= 0 && !strings.Contains(host[:i], ":") {
		return host[:i]
	}
	return host
}
