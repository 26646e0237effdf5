package preview

import (
	"fmt"
	"math"

	"github.com/matzehuels/layerstack/pkg/geometry"
)

// Style is the absolute placement of one element inside the container.
type Style struct {
	Left, Top     float64
	Width, Height float64
	// Rotation in radians about the element's center.
	Rotation float64
	Z        int
	Visible  bool
}

// Rect returns the element box.
func (s Style) Rect() geometry.Rect {
	return geometry.Rect{X: s.Left, Y: s.Top, W: s.Width, H: s.Height}
}

// CSS renders the style as inline CSS. The image inside the element is
// expected to use object-fit: contain, which matches drawContain.
func (s Style) CSS() string {
	css := fmt.Sprintf("position:absolute;left:%.2fpx;top:%.2fpx;width:%.2fpx;height:%.2fpx;z-index:%d",
		s.Left, s.Top, s.Width, s.Height, s.Z)
	if s.Rotation != 0 {
		css += fmt.Sprintf(";transform:rotate(%.4frad);transform-origin:center", s.Rotation)
	}
	if !s.Visible {
		css += ";visibility:hidden"
	}
	return css
}

// Element is one layer's host element.
type Element struct {
	LayerID string
	ImageID string
	URL     string
	Style   Style
	// Loaded reports whether the image has arrived. Elements stay hidden
	// until then; elements whose image failed are removed.
	Loaded bool
}

// ChangeKind tells the host what to do with an element.
type ChangeKind int

const (
	ChangeAdd ChangeKind = iota
	ChangeUpdate
	ChangeRemove
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdd:
		return "add"
	case ChangeUpdate:
		return "update"
	case ChangeRemove:
		return "remove"
	}
	return "unknown"
}

// Change is one element update emitted by the renderer.
type Change struct {
	Kind    ChangeKind
	Element Element
}

// styleEqual compares styles with a sub-pixel tolerance so float noise does
// not cause spurious updates.
func styleEqual(a, b Style) bool {
	const eps = 1e-6
	near := func(x, y float64) bool { return math.Abs(x-y) <= eps }
	return near(a.Left, b.Left) && near(a.Top, b.Top) &&
		near(a.Width, b.Width) && near(a.Height, b.Height) &&
		near(a.Rotation, b.Rotation) && a.Z == b.Z && a.Visible == b.Visible
}
