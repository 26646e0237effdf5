package acquire

import (
	"fmt"
)

// ImageLoadError reports an image that could not be fetched or decoded.
// It is recoverable: the layer using the image is skipped.
type ImageLoadError struct {
	URL string
	Err error
}

func (e *ImageLoadError) Error() string {
	return fmt.Sprintf("load image %s: %v", e.URL, e.Err)
}

func (e *ImageLoadError) Unwrap() error { return e.Err }

// ProxyFetchError reports a proxied request that failed. StatusCode is the
// status the proxy answered with, or 0 when no response was received.
type ProxyFetchError struct {
	URL        string
	ProxyURL   string
	StatusCode int
	Err        error
}

func (e *ProxyFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("proxy fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("proxy fetch %s: %v", e.URL, e.Err)
}

func (e *ProxyFetchError) Unwrap() error { return e.Err }
