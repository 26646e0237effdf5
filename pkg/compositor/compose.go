package compositor

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/layerstack/pkg/acquire"
	errs "github.com/matzehuels/layerstack/pkg/errors"
	"github.com/matzehuels/layerstack/pkg/geometry"
	"github.com/matzehuels/layerstack/pkg/observability"
	"github.com/matzehuels/layerstack/pkg/scene"
)

// Loader acquires images for a pass. *acquire.Loader implements it.
type Loader interface {
	LoadAll(ctx context.Context, urls []string, onSettled func(acquire.Result)) acquire.Results
}

// Pass is the outcome of one composition.
type Pass struct {
	ID       string
	Viewport geometry.Size
	Plan

	// Background is nil when the scene has none or it failed to load;
	// BackgroundErr tells the two apart.
	Background    *acquire.Image
	BackgroundErr error

	Skipped  []SkippedLayer
	Duration time.Duration
}

// Options configures a [Compositor].
type Options struct {
	Loader Loader
	Logger *log.Logger
}

// Compositor composes scenes. It holds no per-pass state and is safe for
// concurrent use.
type Compositor struct {
	loader Loader
	logger *log.Logger
}

// New creates a Compositor.
func New(opts Options) *Compositor {
	c := &Compositor{loader: opts.Loader, logger: opts.Logger}
	if c.logger == nil {
		c.logger = log.New(io.Discard)
	}
	return c
}

type passIDKey struct{}

// WithPassID returns a context whose passes use id instead of a fresh one.
func WithPassID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, passIDKey{}, id)
}

// PassID returns the pass ID carried by ctx, if any.
func PassID(ctx context.Context) string {
	id, _ := ctx.Value(passIDKey{}).(string)
	return id
}

// Compose loads every image s needs for viewport, waits for all loads to
// settle and returns the placed instructions. Layers whose image failed are
// reported in Pass.Skipped and omitted from the instructions. onSettled,
// when non-nil, observes each image as it arrives.
//
// A viewport without area returns an empty pass without loading anything.
// The only error Compose returns is ctx's.
func (c *Compositor) Compose(ctx context.Context, s *scene.Scene, viewport geometry.Size, onSettled func(acquire.Result)) (*Pass, error) {
	start := time.Now()
	pass := &Pass{ID: PassID(ctx), Viewport: viewport}
	if pass.ID == "" {
		pass.ID = uuid.NewString()
	}
	if !viewport.Known() || s == nil {
		return pass, nil
	}

	hooks := observability.Composite()
	hooks.OnPassStart(ctx, pass.ID, len(s.Layers))

	var results acquire.Results
	if c.loader != nil {
		results = c.loader.LoadAll(ctx, s.URLs(), onSettled)
	}
	if err := ctx.Err(); err != nil {
		hooks.OnPassComplete(ctx, pass.ID, 0, 0, time.Since(start), err)
		return nil, err
	}

	var bgSize geometry.Size
	if u := s.BackgroundURL(); u != "" {
		r := results[u]
		switch {
		case r.OK():
			pass.Background = r.Image
			bgSize = r.Image.Size
		case r.Err != nil:
			pass.BackgroundErr = r.Err
		default:
			pass.BackgroundErr = errNotLoaded(u)
		}
		if pass.BackgroundErr != nil {
			c.logger.Warn("background unavailable, fitting to full viewport", "url", u, "err", pass.BackgroundErr)
		}
	}

	pass.Plan = PlanScene(s, viewport, bgSize)
	for _, w := range pass.Warnings {
		c.logger.Warn("transform clamped", "layer", w.LayerID, "fields", w.Fields)
	}

	kept := pass.Instructions[:0]
	for _, in := range pass.Instructions {
		r := results[in.URL]
		if !r.OK() {
			err := r.Err
			if err == nil {
				err = errNotLoaded(in.URL)
			}
			layer := s.Layers[in.Index]
			pass.Skipped = append(pass.Skipped, SkippedLayer{LayerID: in.LayerID, Name: layer.Name, URL: in.URL, Err: err})
			c.logger.Warn("layer skipped", "layer", in.LayerID, "url", in.URL, "err", err)
			continue
		}
		in.Image = r.Image.Image
		in.Natural = r.Image.Size
		kept = append(kept, in)
	}
	pass.Instructions = kept
	pass.Duration = time.Since(start)

	hooks.OnPassComplete(ctx, pass.ID, len(pass.Instructions), len(pass.Skipped), pass.Duration, nil)
	c.logger.Debug("pass composed", "pass", pass.ID, "drawn", len(pass.Instructions),
		"skipped", len(pass.Skipped), "elapsed", pass.Duration.Round(time.Millisecond))
	return pass, nil
}

var errNoLoader = errs.New(errs.ErrCodeImageLoad, "image was not loaded")

func errNotLoaded(u string) error {
	return &acquire.ImageLoadError{URL: u, Err: errNoLoader}
}
