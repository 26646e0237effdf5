package geometry

import "math"

// ComputeFitBox returns the largest rectangle centered in the viewport that
// keeps the image's aspect ratio and fits entirely inside the viewport.
//
//	scale  = min(viewportW/imgW, viewportH/imgH)
//	width  = imgW*scale, height = imgH*scale
//	left   = (viewportW-width)/2, top = (viewportH-height)/2
//
// A viewport without area yields a zero fit box. An unknown image size
// (either dimension ≤ 0) yields the full viewport, so layers stay visible
// while the background is still loading or when there is no background.
func ComputeFitBox(viewportW, viewportH, imgW, imgH float64) FitBox {
	if !finitePositive(viewportW) || !finitePositive(viewportH) {
		return FitBox{}
	}
	if !finitePositive(imgW) || !finitePositive(imgH) {
		return FitBox{Width: viewportW, Height: viewportH}
	}

	scale := math.Min(viewportW/imgW, viewportH/imgH)
	w := imgW * scale
	h := imgH * scale
	return FitBox{
		Left:   (viewportW - w) / 2,
		Top:    (viewportH - h) / 2,
		Width:  w,
		Height: h,
	}
}

// FitViewport is [ComputeFitBox] with the image size given as a [Size].
func FitViewport(viewport, img Size) FitBox {
	return ComputeFitBox(viewport.W, viewport.H, img.W, img.H)
}

// DrawContain returns the sub-rectangle of target that an image of the given
// natural size actually covers when drawn with contain scaling, centered in
// target. The image is never stretched. An unknown natural size fills target.
func DrawContain(target Rect, natural Size) Rect {
	if target.Empty() {
		return Rect{X: target.X, Y: target.Y}
	}
	fit := ComputeFitBox(target.W, target.H, natural.W, natural.H)
	return Rect{
		X: target.X + fit.Left,
		Y: target.Y + fit.Top,
		W: fit.Width,
		H: fit.Height,
	}
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}
