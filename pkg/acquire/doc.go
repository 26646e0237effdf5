// Package acquire fetches and decodes the images referenced by a scene.
//
// A [Loader] resolves each URL against the configured origin. Cross-origin
// URLs are routed through the image proxy (GET /proxy-image?url=...) when a
// proxy base is configured, so that pixels can be read back without
// cross-origin restrictions. Before any request the optional [URLCache]
// collaborator is asked for a cached location of the same bytes.
//
// Failures are per image: [Loader.LoadAll] always returns one [Result] per
// URL and never aborts because a single image failed. A failed result
// carries an [*ImageLoadError], which wraps a [*ProxyFetchError] when the
// proxy could not fetch the upstream image.
//
// Decoding goes through imaging with the JPEG, PNG and GIF decoders from the
// standard library plus WebP, BMP and TIFF from golang.org/x/image.
package acquire
