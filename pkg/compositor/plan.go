package compositor

import (
	"cmp"
	"slices"

	"github.com/matzehuels/layerstack/pkg/geometry"
	"github.com/matzehuels/layerstack/pkg/scene"
)

// Plan is the pure result of placing a scene's layers in a viewport.
type Plan struct {
	Fit          geometry.FitBox
	Instructions []Instruction
	Warnings     []*InvalidTransformError
}

// PlanScene computes the draw instructions for s inside viewport. background
// is the background's natural size; a zero size (no background, or not
// decoded yet) makes the fit box cover the whole viewport.
//
// A viewport without area yields an empty plan. Layers that are hidden or
// have no candidate images are left out. The returned instructions carry no
// image handles.
func PlanScene(s *scene.Scene, viewport, background geometry.Size) Plan {
	var p Plan
	if !viewport.Known() {
		return p
	}
	p.Fit = geometry.FitViewport(viewport, background)
	if p.Fit.Empty() || s == nil {
		return p
	}

	for i, layer := range s.Layers {
		if !layer.Visible {
			continue
		}
		img, ok := layer.Selected(s.Selection)
		if !ok {
			continue
		}
		raw := layer.EffectiveTransform(img)
		t, fields := raw.Clamp()
		if len(fields) > 0 {
			p.Warnings = append(p.Warnings, &InvalidTransformError{
				LayerID:  layer.ID,
				ImageID:  img.ID,
				Fields:   fields,
				Original: raw,
				Clamped:  t,
			})
		}
		dest, rot := geometry.PlaceTransform(t, p.Fit)
		p.Instructions = append(p.Instructions, Instruction{
			LayerID:  layer.ID,
			ImageID:  img.ID,
			URL:      img.URL,
			Z:        layer.Z,
			Index:    i,
			Dest:     dest,
			Rotation: rot,
		})
	}

	slices.SortStableFunc(p.Instructions, func(a, b Instruction) int {
		return cmp.Compare(a.Z, b.Z)
	})
	return p
}
