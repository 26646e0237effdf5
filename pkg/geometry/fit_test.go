package geometry

import (
	"math"
	"math/rand"
	"testing"
)

const eps = 1e-9

func TestComputeFitBox(t *testing.T) {
	tests := []struct {
		name     string
		viewport Size
		img      Size
		want     FitBox
	}{
		{
			name:     "landscape image in square viewport",
			viewport: Size{W: 600, H: 600},
			img:      Size{W: 1200, H: 800},
			want:     FitBox{Left: 0, Top: 100, Width: 600, Height: 400},
		},
		{
			name:     "6:5 image in square viewport",
			viewport: Size{W: 600, H: 600},
			img:      Size{W: 1200, H: 1000},
			want:     FitBox{Left: 0, Top: 50, Width: 600, Height: 500},
		},
		{
			name:     "portrait image in landscape viewport",
			viewport: Size{W: 1920, H: 1080},
			img:      Size{W: 1080, H: 1920},
			want:     FitBox{Left: (1920 - 607.5) / 2, Top: 0, Width: 607.5, Height: 1080},
		},
		{
			name:     "same aspect fills viewport",
			viewport: Size{W: 800, H: 400},
			img:      Size{W: 400, H: 200},
			want:     FitBox{Left: 0, Top: 0, Width: 800, Height: 400},
		},
		{
			name:     "unknown image size is full viewport",
			viewport: Size{W: 640, H: 480},
			want:     FitBox{Width: 640, Height: 480},
		},
		{
			name:     "unknown height is full viewport",
			viewport: Size{W: 640, H: 480},
			img:      Size{W: 100, H: -1},
			want:     FitBox{Width: 640, Height: 480},
		},
		{
			name:     "zero viewport",
			viewport: Size{},
			img:      Size{W: 1200, H: 800},
			want:     FitBox{},
		},
		{
			name:     "NaN viewport",
			viewport: Size{W: math.NaN(), H: 100},
			img:      Size{W: 10, H: 10},
			want:     FitBox{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FitViewport(tt.viewport, tt.img)
			if !fitNear(got, tt.want) {
				t.Errorf("FitViewport() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestComputeFitBoxContainProperties(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		vw := 1 + r.Float64()*4000
		vh := 1 + r.Float64()*4000
		iw := 1 + r.Float64()*8000
		ih := 1 + r.Float64()*8000

		fit := ComputeFitBox(vw, vh, iw, ih)
		viewport := Rect{W: vw, H: vh}

		if !viewport.ContainsRect(fit.Rect(), 1e-6) {
			t.Fatalf("fit %+v escapes viewport %vx%v", fit, vw, vh)
		}

		touchesX := math.Abs(fit.Left) < 1e-6 && math.Abs(fit.Left+fit.Width-vw) < 1e-6
		touchesY := math.Abs(fit.Top) < 1e-6 && math.Abs(fit.Top+fit.Height-vh) < 1e-6
		if !touchesX && !touchesY {
			t.Fatalf("fit %+v touches no pair of edges in %vx%v", fit, vw, vh)
		}

		if got, want := fit.Width/fit.Height, iw/ih; math.Abs(got-want)/want > 1e-9 {
			t.Fatalf("aspect ratio = %v, want %v", got, want)
		}

		if math.Abs(fit.Left-(vw-fit.Width-fit.Left)) > 1e-6 ||
			math.Abs(fit.Top-(vh-fit.Height-fit.Top)) > 1e-6 {
			t.Fatalf("fit %+v is not centered in %vx%v", fit, vw, vh)
		}
	}
}

func TestDrawContain(t *testing.T) {
	tests := []struct {
		name    string
		target  Rect
		natural Size
		want    Rect
	}{
		{
			name:    "wide image in square footprint",
			target:  Rect{X: 100, Y: 100, W: 200, H: 200},
			natural: Size{W: 400, H: 200},
			want:    Rect{X: 100, Y: 150, W: 200, H: 100},
		},
		{
			name:    "tall image in wide footprint",
			target:  Rect{X: 0, Y: 0, W: 300, H: 100},
			natural: Size{W: 50, H: 100},
			want:    Rect{X: 125, Y: 0, W: 50, H: 100},
		},
		{
			name:    "unknown size fills target",
			target:  Rect{X: 10, Y: 20, W: 30, H: 40},
			natural: Size{},
			want:    Rect{X: 10, Y: 20, W: 30, H: 40},
		},
		{
			name:    "empty target",
			target:  Rect{X: 10, Y: 20},
			natural: Size{W: 10, H: 10},
			want:    Rect{X: 10, Y: 20},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DrawContain(tt.target, tt.natural); !rectNear(got, tt.want) {
				t.Errorf("DrawContain() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSizeOfNil(t *testing.T) {
	if s := SizeOf(nil); s.Known() {
		t.Errorf("SizeOf(nil) = %+v, want unknown", s)
	}
}

func fitNear(a, b FitBox) bool {
	return math.Abs(a.Left-b.Left) < eps && math.Abs(a.Top-b.Top) < eps &&
		math.Abs(a.Width-b.Width) < eps && math.Abs(a.Height-b.Height) < eps
}

func rectNear(a, b Rect) bool {
	return math.Abs(a.X-b.X) < eps && math.Abs(a.Y-b.Y) < eps &&
		math.Abs(a.W-b.W) < eps && math.Abs(a.H-b.H) < eps
}
