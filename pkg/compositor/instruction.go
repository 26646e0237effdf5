package compositor

import (
	"fmt"
	"image"
	"strings"

	errs "github.com/matzehuels/layerstack/pkg/errors"
	"github.com/matzehuels/layerstack/pkg/geometry"
)

// Instruction places one layer image for a render pass.
type Instruction struct {
	LayerID string
	ImageID string
	URL     string
	Z       int
	// Index is the layer's position in the scene's layer list.
	Index int

	// Dest is the layer's footprint in absolute pixels. Rotation is in
	// radians about the center of Dest.
	Dest     geometry.Rect
	Rotation float64

	// Image and Natural are set once the image has been acquired.
	Image   image.Image
	Natural geometry.Size
}

// SkippedLayer reports a visible layer that produced no instruction because
// its image could not be loaded.
type SkippedLayer struct {
	LayerID string
	Name    string
	URL     string
	Err     error
}

func (s SkippedLayer) Error() string {
	return fmt.Sprintf("layer %q skipped: %v", s.LayerID, s.Err)
}

func (s SkippedLayer) Unwrap() error { return s.Err }

// InvalidTransformError records a transform that was clamped into range.
// It is a warning: the layer is still drawn with the clamped transform.
type InvalidTransformError struct {
	LayerID  string
	ImageID  string
	Fields   []string
	Original geometry.Transform
	Clamped  geometry.Transform
}

func (e *InvalidTransformError) Error() string {
	return fmt.Sprintf("layer %q: transform clamped (%s)", e.LayerID, strings.Join(e.Fields, ", "))
}

// Unwrap exposes the INVALID_TRANSFORM code to errs.Is and errs.Recoverable.
func (e *InvalidTransformError) Unwrap() error {
	return errs.New(errs.ErrCodeInvalidTransform, "transform out of range")
}
