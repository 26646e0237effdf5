package geometry

import "math"

// Transform positions a layer image in percentage space relative to a
// [FitBox]. X and Y are the top-left offset, Width and Height the footprint,
// all in the range 0–100. Rotation is in degrees about the footprint center.
type Transform struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation,omitempty"`
}

// FullCover is the transform used when neither the image nor its layer
// declares one: the whole fit box, unrotated.
var FullCover = Transform{X: 0, Y: 0, Width: 100, Height: 100}

// Field names reported by [Transform.Clamp].
const (
	FieldX        = "x"
	FieldY        = "y"
	FieldWidth    = "width"
	FieldHeight   = "height"
	FieldRotation = "rotation"
)

// Clamp returns a copy of t that satisfies the placement invariants:
//
//   - Width and Height are in (0, 100]. A zero value is treated as absent
//     and becomes 100.
//   - X is in [0, 100-Width] and Y is in [0, 100-Height], so the footprint
//     can never leave the fit box.
//   - Rotation is finite.
//
// The second return value lists the fields whose out-of-range value was
// adjusted. Defaulting an absent (zero) size is not reported.
func (t Transform) Clamp() (Transform, []string) {
	var adjusted []string

	t.Width, adjusted = clampSize(t.Width, FieldWidth, adjusted)
	t.Height, adjusted = clampSize(t.Height, FieldHeight, adjusted)
	t.X, adjusted = clampOffset(t.X, 100-t.Width, FieldX, adjusted)
	t.Y, adjusted = clampOffset(t.Y, 100-t.Height, FieldY, adjusted)

	if math.IsNaN(t.Rotation) || math.IsInf(t.Rotation, 0) {
		t.Rotation = 0
		adjusted = append(adjusted, FieldRotation)
	}
	return t, adjusted
}

func clampSize(v float64, field string, adjusted []string) (float64, []string) {
	switch {
	case v == 0:
		return 100, adjusted
	case math.IsNaN(v) || v < 0:
		return 100, append(adjusted, field)
	case v > 100:
		return 100, append(adjusted, field)
	}
	return v, adjusted
}

func clampOffset(v, limit float64, field string, adjusted []string) (float64, []string) {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0, append(adjusted, field)
	case v > limit:
		return limit, append(adjusted, field)
	}
	return v, adjusted
}

// PlaceTransform resolves t against fit and returns the absolute destination
// rectangle and the rotation in radians. The rotation is always about the
// rectangle's center.
//
//	w = t.Width/100 * fit.Width
//	h = t.Height/100 * fit.Height
//	x = fit.Left + t.X/100 * fit.Width
//	y = fit.Top + t.Y/100 * fit.Height
//
// PlaceTransform reads nothing but its arguments. Callers are expected to
// pass a clamped transform; it does not clamp on its own.
func PlaceTransform(t Transform, fit FitBox) (Rect, float64) {
	r := Rect{
		X: fit.Left + t.X/100*fit.Width,
		Y: fit.Top + t.Y/100*fit.Height,
		W: t.Width / 100 * fit.Width,
		H: t.Height / 100 * fit.Height,
	}
	return r, Radians(t.Rotation)
}
