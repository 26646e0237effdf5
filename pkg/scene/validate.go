package scene

import (
	"fmt"

	"github.com/matzehuels/layerstack/pkg/errors"
)

// Validate checks structural invariants of the scene:
//   - every layer has a valid, unique ID
//   - candidate image IDs are unique within their layer
//   - every image URL (and the background URL) is a valid reference
//   - every selection entry names an existing layer and candidate
//
// Out-of-range transforms are not validation errors; they are clamped at
// render time.
func (s *Scene) Validate() error {
	if s == nil {
		return errors.New(errors.ErrCodeInvalidScene, "scene is nil")
	}
	if s.Background != nil {
		if err := errors.ValidateURL(s.Background.URL); err != nil {
			return fmt.Errorf("background: %w", err)
		}
	}

	layers := make(map[string]Layer, len(s.Layers))
	for i, l := range s.Layers {
		if err := errors.ValidateID("layer", l.ID); err != nil {
			return fmt.Errorf("layer %d: %w", i, err)
		}
		if _, dup := layers[l.ID]; dup {
			return errors.New(errors.ErrCodeInvalidScene, "duplicate layer id %q", l.ID)
		}
		layers[l.ID] = l

		images := make(map[string]bool, len(l.Images))
		for j, img := range l.Images {
			if err := errors.ValidateURL(img.URL); err != nil {
				return fmt.Errorf("layer %s image %d: %w", l.ID, j, err)
			}
			if img.ID == "" {
				continue
			}
			if images[img.ID] {
				return errors.New(errors.ErrCodeInvalidScene, "layer %q: duplicate image id %q", l.ID, img.ID)
			}
			images[img.ID] = true
		}
	}

	for layerID, imageID := range s.Selection {
		l, ok := layers[layerID]
		if !ok {
			return errors.New(errors.ErrCodeInvalidScene, "selection references unknown layer %q", layerID)
		}
		found := false
		for _, img := range l.Images {
			if img.ID == imageID {
				found = true
				break
			}
		}
		if !found {
			return errors.New(errors.ErrCodeInvalidScene, "selection for layer %q references unknown image %q", layerID, imageID)
		}
	}
	return nil
}
