// Package pipeline runs scene exports with artifact caching.
//
// It is the single place where the CLI and the proxy-backed tools turn an
// export request (scene, preset, format, fill, quality) into encoded bytes,
// so defaults and validation live here.
//
// # Usage
//
//	runner := pipeline.NewRunner(rasterizer, cache, nil, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{
//	    Scene:  s,
//	    Preset: "portrait",
//	    Format: "jpeg",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile("out"+result.Format.Ext(), result.Artifact, 0o644)
//
// Artifacts are cached under a key derived from the scene's canonical JSON,
// the output options and the origin and proxy the images resolve against. A render that skipped layers or lost its
// background is returned but not cached, so a later run can retry the
// failed images.
package pipeline

import (
	"fmt"
	"image/color"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/layerstack/pkg/cache"
	errs "github.com/matzehuels/layerstack/pkg/errors"
	"github.com/matzehuels/layerstack/pkg/export"
	"github.com/matzehuels/layerstack/pkg/geometry"
	"github.com/matzehuels/layerstack/pkg/scene"
)

// Default values shared by every entry point.
const (
	DefaultPreset     = scene.DefaultPreset
	DefaultFormat     = export.DefaultFormat
	DefaultQuality    = export.DefaultJPEGQuality
	DefaultBackground = "#ffffff"
)

// Options contains the configuration of one export run.
type Options struct {
	Scene *scene.Scene `json:"-"`

	Preset     string `json:"preset,omitempty"`
	Format     string `json:"format,omitempty"`
	Quality    int    `json:"quality,omitempty"`
	Background string `json:"background,omitempty"` // letterbox fill, hex
	Refresh    bool   `json:"refresh,omitempty"`

	// Origin and ProxyBase must match the loader behind the rasterizer.
	// They are part of the artifact key.
	Origin    string `json:"origin,omitempty"`
	ProxyBase string `json:"proxy_base,omitempty"`

	Logger *log.Logger `json:"-"`

	preset    scene.Preset
	format    export.Format
	fill      color.NRGBA
	validated bool
}

// Result is the output of a pipeline run.
type Result struct {
	Artifact  []byte
	Format    export.Format
	Preset    scene.Preset
	Size      geometry.Size
	SceneHash string

	// Export carries skipped layers and warnings. It is nil on a cache hit.
	Export *export.Result

	Stats     Stats
	CacheInfo CacheInfo
}

// Stats contains run statistics.
type Stats struct {
	Layers     int
	Skipped    int
	Bytes      int
	RenderTime time.Duration
}

// CacheInfo reports cache behavior for a run.
type CacheInfo struct {
	ArtifactHit bool
	Stored      bool
}

// ValidateAndSetDefaults checks the options and fills in defaults.
// Calling it more than once has no further effect.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Scene == nil {
		return errs.New(errs.ErrCodeInvalidInput, "scene is required")
	}
	if err := o.Scene.Validate(); err != nil {
		return err
	}

	p, err := scene.ParsePreset(o.Preset)
	if err != nil {
		return err
	}
	o.preset, o.Preset = p, string(p)

	f, err := export.ParseFormat(o.Format)
	if err != nil {
		return err
	}
	o.format, o.Format = f, string(f)

	if o.Quality == 0 && f == export.FormatJPEG {
		o.Quality = DefaultQuality
	}
	if o.Quality < 0 || o.Quality > 100 {
		return errs.New(errs.ErrCodeInvalidInput, "quality must be between 1 and 100, got %d", o.Quality)
	}
	if f == export.FormatPNG {
		o.Quality = 0
	}

	if o.Background == "" {
		o.Background = DefaultBackground
	}
	fill, err := export.ParseColor(o.Background)
	if err != nil {
		return err
	}
	o.fill = fill

	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// ExportOptions returns the rasterizer options. Options must be validated.
func (o *Options) ExportOptions() export.Options {
	return export.Options{
		Preset:  o.preset,
		Format:  o.format,
		Quality: o.Quality,
		Fill:    o.fill,
	}
}

// ArtifactKeyOpts returns the cache key options for the artifact.
func (o *Options) ArtifactKeyOpts() cache.ArtifactKeyOpts {
	return cache.ArtifactKeyOpts{
		Preset:     o.Preset,
		Format:     o.Format,
		Quality:    o.Quality,
		Background: fmt.Sprintf("#%02x%02x%02x%02x", o.fill.R, o.fill.G, o.fill.B, o.fill.A),
		Origin:     o.Origin,
		ProxyBase:  o.ProxyBase,
	}
}
