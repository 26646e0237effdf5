package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/layerstack/pkg/cache"
	"github.com/matzehuels/layerstack/pkg/export"
	"github.com/matzehuels/layerstack/pkg/observability"
	"github.com/matzehuels/layerstack/pkg/scene"
)

// Runner executes exports with caching.
//
// The Runner holds no per-run state. Multiple goroutines can share one
// Runner with different options.
type Runner struct {
	Rasterizer *export.Rasterizer
	Cache      cache.Cache
	Keyer      cache.Keyer
	Logger     *log.Logger
}

// NewRunner creates a runner. A nil cache disables caching and a nil keyer
// uses [cache.DefaultKeyer].
func NewRunner(r *export.Rasterizer, c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Rasterizer: r, Cache: c, Keyer: keyer, Logger: logger}
}

// Execute exports the scene, serving the artifact from cache when possible.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	sceneHash, err := SceneHash(opts.Scene)
	if err != nil {
		return nil, err
	}
	key := r.Keyer.ArtifactKey(sceneHash, opts.ArtifactKeyOpts())

	result := &Result{
		Format:    export.Format(opts.Format),
		Preset:    scene.Preset(opts.Preset),
		SceneHash: sceneHash,
	}
	result.Size, _ = result.Preset.Size()
	result.Stats.Layers = len(opts.Scene.Layers)

	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			observability.Cache().OnCacheHit(ctx, "artifact")
			result.Artifact = data
			result.Stats.Bytes = len(data)
			result.CacheInfo.ArtifactHit = true
			r.Logger.Debug("artifact cache hit", "preset", opts.Preset, "format", opts.Format)
			return result, nil
		} else if err != nil {
			r.Logger.Debug("artifact cache lookup failed", "err", err)
		}
		observability.Cache().OnCacheMiss(ctx, "artifact")
	}

	start := time.Now()
	res, err := r.Rasterizer.Export(ctx, opts.Scene, opts.ExportOptions())
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	result.Stats.RenderTime = time.Since(start)
	result.Export = res
	result.Artifact = res.Image
	result.Size = res.Size
	result.Stats.Bytes = len(res.Image)
	result.Stats.Skipped = len(res.Skipped)

	r.Logger.Info("rendered scene",
		"preset", opts.Preset,
		"format", opts.Format,
		"bytes", len(res.Image),
		"skipped", len(res.Skipped),
		"duration", result.Stats.RenderTime)

	if len(res.Skipped) == 0 && res.BackgroundErr == nil {
		if err := r.Cache.Set(ctx, key, res.Image, cache.TTLArtifact); err != nil {
			r.Logger.Debug("artifact cache store failed", "err", err)
		} else {
			observability.Cache().OnCacheSet(ctx, "artifact", len(res.Image))
			result.CacheInfo.Stored = true
		}
	}
	return result, nil
}

// ExecuteAll exports the scene once per preset, stopping at the first error.
func (r *Runner) ExecuteAll(ctx context.Context, opts Options, presets []scene.Preset) ([]*Result, error) {
	results := make([]*Result, 0, len(presets))
	for _, p := range presets {
		o := opts
		o.Preset = string(p)
		o.validated = false
		res, err := r.Execute(ctx, o)
		if err != nil {
			return results, fmt.Errorf("%s: %w", p, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// SceneHash returns the content hash of the scene's canonical JSON.
func SceneHash(s *scene.Scene) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("serialize scene for cache key: %w", err)
	}
	return cache.Hash(data), nil
}

// Close releases the cache.
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}
