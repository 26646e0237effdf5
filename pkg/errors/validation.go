package errors

import (
	"net/url"
	"strings"
	"unicode"
)

// maxURLLength bounds image references accepted from scenes and the proxy.
const maxURLLength = 8192

// ValidateURL validates an image reference for safety and correctness.
//
// Accepted references are absolute http(s) URLs, "data:" URLs, "cache:"
// references handed out by the prewarm cache, and relative paths. The
// validation rules are intentionally conservative:
//   - No empty references
//   - No control characters or null bytes
//   - Maximum length of 8192 characters
//   - Absolute URLs must use http, https, data or cache and carry a host
//     when the scheme is http(s)
func ValidateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return New(ErrCodeInvalidURL, "image url cannot be empty")
	}
	if len(raw) > maxURLLength {
		return New(ErrCodeInvalidURL, "image url too long (max %d characters)", maxURLLength)
	}
	for _, r := range raw {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidURL, "image url contains invalid control characters")
		}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Wrap(ErrCodeInvalidURL, err, "malformed image url")
	}
	switch u.Scheme {
	case "":
		return nil
	case "http", "https":
		if u.Host == "" {
			return New(ErrCodeInvalidURL, "image url %q has no host", raw)
		}
		return nil
	case "data", "cache":
		return nil
	default:
		return New(ErrCodeInvalidURL, "unsupported url scheme %q", u.Scheme)
	}
}

// ValidateID validates a layer or image identifier.
// Identifiers must be non-empty, at most 256 characters and free of
// control characters.
func ValidateID(kind, id string) error {
	if id == "" {
		return New(ErrCodeInvalidScene, "%s id cannot be empty", kind)
	}
	if len(id) > 256 {
		return New(ErrCodeInvalidScene, "%s id too long (max 256 characters)", kind)
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidScene, "%s id contains invalid control characters", kind)
		}
	}
	return nil
}
