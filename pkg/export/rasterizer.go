package export

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"time"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/matzehuels/layerstack/pkg/compositor"
	errs "github.com/matzehuels/layerstack/pkg/errors"
	"github.com/matzehuels/layerstack/pkg/geometry"
	"github.com/matzehuels/layerstack/pkg/observability"
	"github.com/matzehuels/layerstack/pkg/scene"
)

// MaxSurfacePixels bounds the offscreen surface.
const MaxSurfacePixels = 8192 * 8192

// ExportError reports a fatal export failure.
type ExportError struct {
	Op  string
	Err error
}

func (e *ExportError) Error() string { return fmt.Sprintf("export %s: %v", e.Op, e.Err) }

func (e *ExportError) Unwrap() error { return e.Err }

// Options selects the output of one export.
type Options struct {
	Preset  scene.Preset
	Format  Format
	Quality int
	// Fill paints the letterbox area outside the background. Nil means
	// opaque white.
	Fill color.Color
}

// Result is an encoded composite.
type Result struct {
	Image  []byte
	Format Format
	Size   geometry.Size
	// Skipped lists layers left out because their image failed to load.
	Skipped  []compositor.SkippedLayer
	Warnings []*compositor.InvalidTransformError
	// BackgroundErr is set when the scene's background could not be drawn.
	BackgroundErr error
	PassID        string
}

// Rasterizer renders scenes to raster images. It is safe for concurrent
// use; every call owns its own surface.
type Rasterizer struct {
	compositor *compositor.Compositor
	logger     *log.Logger
	kernel     draw.Interpolator
}

// New creates a Rasterizer drawing the passes produced by c.
func New(c *compositor.Compositor, logger *log.Logger) *Rasterizer {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Rasterizer{compositor: c, logger: logger, kernel: draw.CatmullRom}
}

// Export composes s at the preset's resolution and encodes the result.
func (r *Rasterizer) Export(ctx context.Context, s *scene.Scene, opts Options) (*Result, error) {
	start := time.Now()
	res, err := r.export(ctx, s, opts)
	size := 0
	if res != nil {
		size = len(res.Image)
	}
	observability.Composite().OnExport(ctx, string(opts.Preset), string(opts.Format), size, time.Since(start), err)
	return res, err
}

func (r *Rasterizer) export(ctx context.Context, s *scene.Scene, opts Options) (*Result, error) {
	if opts.Preset == "" {
		opts.Preset = scene.DefaultPreset
	}
	if opts.Format == "" {
		opts.Format = DefaultFormat
	}
	target, err := opts.Preset.Size()
	if err != nil {
		return nil, err
	}

	surface, err := NewSurface(target, opts.Fill)
	if err != nil {
		return nil, err
	}

	pass, err := r.compositor.Compose(ctx, s, target, nil)
	if err != nil {
		return nil, err
	}
	Draw(surface, pass, r.kernel)

	for _, sk := range pass.Skipped {
		r.logger.Warn("layer skipped in export", "layer", sk.LayerID, "url", sk.URL, "err", sk.Err)
	}

	var buf bytes.Buffer
	if err := encode(&buf, surface, opts.Format, opts.Quality); err != nil {
		return nil, &ExportError{Op: "encode", Err: errs.Wrap(errs.ErrCodeEncode, err, "encode %s", opts.Format)}
	}
	return &Result{
		Image:         buf.Bytes(),
		Format:        opts.Format,
		Size:          target,
		Skipped:       pass.Skipped,
		Warnings:      pass.Warnings,
		BackgroundErr: pass.BackgroundErr,
		PassID:        pass.ID,
	}, nil
}

// NewSurface allocates an offscreen surface of the given size filled with
// fill (nil means opaque white).
func NewSurface(size geometry.Size, fill color.Color) (*image.NRGBA, error) {
	w, h := int(math.Round(size.W)), int(math.Round(size.H))
	if w <= 0 || h <= 0 {
		return nil, &ExportError{Op: "surface", Err: errs.New(errs.ErrCodeSurfaceCreation, "invalid surface size %dx%d", w, h)}
	}
	if w*h > MaxSurfacePixels {
		return nil, &ExportError{Op: "surface", Err: errs.New(errs.ErrCodeSurfaceCreation, "surface %dx%d exceeds %d pixels", w, h, MaxSurfacePixels)}
	}
	if fill == nil {
		fill = color.White
	}
	return imaging.New(w, h, fill), nil
}

// Draw paints a composed pass onto dst: the background contained in the fit
// box, then every instruction in order.
func Draw(dst draw.Image, pass *compositor.Pass, kernel draw.Interpolator) {
	if kernel == nil {
		kernel = draw.CatmullRom
	}
	if pass.Background != nil && pass.Background.Image != nil {
		dest := geometry.DrawContain(pass.Fit.Rect(), pass.Background.Size)
		drawRotated(dst, pass.Background.Image, pass.Background.Size, dest, 0, kernel)
	}
	for _, in := range pass.Instructions {
		if in.Image == nil {
			continue
		}
		drawRotated(dst, in.Image, in.Natural, in.Dest, in.Rotation, kernel)
	}
}

// drawRotated draws src contained in dest, rotated by rot radians about the
// center of dest. The source-to-destination matrix is
//
//	translate(center) · rotate(rot) · [contain rect relative to center] · scale
func drawRotated(dst draw.Image, src image.Image, natural geometry.Size, dest geometry.Rect, rot float64, kernel draw.Interpolator) {
	if dest.Empty() {
		return
	}
	b := src.Bounds()
	if b.Empty() {
		return
	}
	if !natural.Known() {
		natural = geometry.SizeOf(src)
	}

	local := geometry.DrawContain(geometry.Rect{X: -dest.W / 2, Y: -dest.H / 2, W: dest.W, H: dest.H}, natural)
	sx := local.W / float64(b.Dx())
	sy := local.H / float64(b.Dy())
	cos, sin := math.Cos(rot), math.Sin(rot)
	cx, cy := dest.CenterX(), dest.CenterY()

	a, bb := cos*sx, -sin*sy
	d, e := sin*sx, cos*sy
	c := cx + cos*local.X - sin*local.Y - a*float64(b.Min.X) - bb*float64(b.Min.Y)
	f := cy + sin*local.X + cos*local.Y - d*float64(b.Min.X) - e*float64(b.Min.Y)

	kernel.Transform(dst, f64.Aff3{a, bb, c, d, e, f}, src, b, draw.Over, nil)
}
