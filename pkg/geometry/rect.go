package geometry

import (
	"image"
	"math"
)

// Size is a width/height pair in pixels. A zero or negative dimension means
// the size is unknown (for example, an image that has not been decoded yet).
type Size struct {
	W, H float64
}

// Known reports whether both dimensions are positive.
func (s Size) Known() bool { return s.W > 0 && s.H > 0 }

// SizeOf returns the pixel size of img's bounds.
func SizeOf(img image.Image) Size {
	if img == nil {
		return Size{}
	}
	b := img.Bounds()
	return Size{W: float64(b.Dx()), H: float64(b.Dy())}
}

// Rect is an axis-aligned rectangle in absolute pixels with its origin at
// the top-left corner.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// CenterX returns the horizontal center of the rectangle.
func (r Rect) CenterX() float64 { return r.X + r.W/2 }

// CenterY returns the vertical center of the rectangle.
func (r Rect) CenterY() float64 { return r.Y + r.H/2 }

// Right returns the x coordinate of the right edge.
func (r Rect) Right() float64 { return r.X + r.W }

// Bottom returns the y coordinate of the bottom edge.
func (r Rect) Bottom() float64 { return r.Y + r.H }

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

// ContainsRect reports whether o lies inside r, allowing eps of slack on
// every edge to absorb floating-point error.
func (r Rect) ContainsRect(o Rect, eps float64) bool {
	return o.X >= r.X-eps && o.Y >= r.Y-eps &&
		o.Right() <= r.Right()+eps && o.Bottom() <= r.Bottom()+eps
}

// Image converts the rectangle to integer pixel bounds, rounding each edge
// to the nearest pixel.
func (r Rect) Image() image.Rectangle {
	return image.Rect(
		int(math.Round(r.X)), int(math.Round(r.Y)),
		int(math.Round(r.Right())), int(math.Round(r.Bottom())),
	)
}

// FitBox is the letterboxed area of a viewport that the background occupies.
// It is derived per render pass and never stored.
type FitBox struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect returns the fit box as a [Rect].
func (f FitBox) Rect() Rect {
	return Rect{X: f.Left, Y: f.Top, W: f.Width, H: f.Height}
}

// Empty reports whether the fit box has no area. Nothing can be placed in
// an empty fit box.
func (f FitBox) Empty() bool { return f.Width <= 0 || f.Height <= 0 }

// Radians converts degrees to radians.
func Radians(deg float64) float64 { return deg * math.Pi / 180 }
