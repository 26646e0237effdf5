// Package geometry holds the pure placement math shared by every renderer.
//
// # Overview
//
// A composition is described in percentages of the background's fit box.
// Turning that description into pixels happens in two steps:
//
//  1. [ComputeFitBox] letterboxes the background inside a viewport using
//     "contain" scaling.
//  2. [PlaceTransform] resolves a [Transform] against that box, giving an
//     absolute destination [Rect] and a rotation in radians.
//
// [DrawContain] applies the same contain rule at layer granularity, so a
// layer image whose aspect ratio differs from its footprint is letterboxed
// inside the footprint instead of being stretched.
//
// # Parity
//
// The live preview and the export rasterizer both call into this package
// and nothing else for placement. Transform percentages always resolve
// against the [FitBox], never against the raw viewport, so two renderers
// given the same viewport size agree on every rectangle.
//
//	fit := geometry.ComputeFitBox(600, 600, 1200, 1000)
//	// fit == FitBox{Left: 0, Top: 50, Width: 600, Height: 500}
//
//	r, rot := geometry.PlaceTransform(geometry.Transform{X: 10, Y: 10, Width: 50, Height: 50}, fit)
//	// r == Rect{X: 60, Y: 100, W: 300, H: 250}, rot == 0
//
// All functions are side-effect free and safe for concurrent use.
package geometry
