// Package pkg provides the libraries behind layerstack, a layer composition
// and export engine.
//
// # Overview
//
// A scene is a background image plus an ordered list of layers. Each layer
// holds candidate images and a transform given in percentages of the
// background's fitted box. The same geometry drives an interactive preview
// at any container size and a raster export at fixed resolutions.
//
//	scene.json
//	    ↓
//	[acquire]     fetch and decode images (direct, via proxy, data: or cache)
//	    ↓
//	[compositor]  fit box, clamped transforms, stable z-order
//	    ↓                     ↓
//	[preview]              [export]
//	element boxes          PNG/JPEG at square, portrait, landscape
//
// # Packages
//
//   - [geometry]: fit box, contain math and percentage transforms
//   - [scene]: scene document, presets, validation and file I/O
//   - [acquire]: image loading with proxy routing and per-image failures
//   - [compositor]: render planning, pass composition and supersession
//   - [preview]: live preview state machine and element diffs
//   - [export]: offscreen rasterizer and encoders
//   - [pipeline]: export runs with artifact caching
//   - [prewarm]: image byte cache and prewarming
//   - [proxy]: the image proxy HTTP server
//   - [cache]: file, memory, Redis and MongoDB byte caches
//   - [httputil]: HTTP fetch and retry helpers
//   - [observability]: hooks for metrics and tracing
//   - [errors]: error codes and validation helpers
//
// # Quick Start
//
//	loader, _ := acquire.New(acquire.Options{Origin: "https://app.example.com"})
//	comp := compositor.New(compositor.Options{Loader: loader})
//	res, err := export.New(comp, nil).Export(ctx, s, export.Options{
//	    Preset: scene.PresetPortrait,
//	})
//
// [geometry]: https://pkg.go.dev/github.com/matzehuels/layerstack/pkg/geometry
// [scene]: https://pkg.go.dev/github.com/matzehuels/layerstack/pkg/scene
// [acquire]: https://pkg.go.dev/github.com/matzehuels/layerstack/pkg/acquire
// [compositor]: https://pkg.go.dev/github.com/matzehuels/layerstack/pkg/compositor
// [preview]: https://pkg.go.dev/github.com/matzehuels/layerstack/pkg/preview
// [export]: https://pkg.go.dev/github.com/matzehuels/layerstack/pkg/export
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/layerstack/pkg/pipeline
// [prewarm]: https://pkg.go.dev/github.com/matzehuels/layerstack/pkg/prewarm
// [proxy]: https://pkg.go.dev/github.com/matzehuels/layerstack/pkg/proxy
// [cache]: https://pkg.go.dev/github.com/matzehuels/layerstack/pkg/cache
// [httputil]: https://pkg.go.dev/github.com/matzehuels/layerstack/pkg/httputil
// [observability]: https://pkg.go.dev/github.com/matzehuels/layerstack/pkg/observability
// [errors]: https://pkg.go.dev/github.com/matzehuels/layerstack/pkg/errors
package pkg
