package scene

import (
	"encoding/json"

	"github.com/matzehuels/layerstack/pkg/geometry"
)

// Background is the optional image that anchors the whole composition.
type Background struct {
	URL string `json:"url"`
}

// LayerImage is one candidate image of a layer.
type LayerImage struct {
	ID  string `json:"id,omitempty"`
	URL string `json:"url"`

	// Transform overrides the layer-level transform when set.
	Transform *geometry.Transform `json:"transform,omitempty"`

	// Rotation overrides the effective transform's rotation when set.
	Rotation *float64 `json:"rotation,omitempty"`
}

// Layer is an ordered compositing unit.
type Layer struct {
	ID        string              `json:"id"`
	Name      string              `json:"name,omitempty"`
	Z         int                 `json:"z"`
	Visible   bool                `json:"visible"`
	Images    []LayerImage        `json:"images"`
	Transform *geometry.Transform `json:"transform,omitempty"`
}

// UnmarshalJSON decodes a layer, defaulting Visible to true when absent.
func (l *Layer) UnmarshalJSON(data []byte) error {
	type plain Layer
	aux := struct {
		*plain
		Visible *bool `json:"visible"`
	}{plain: (*plain)(l)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	l.Visible = aux.Visible == nil || *aux.Visible
	return nil
}

// Selection maps a layer ID to the ID of its selected candidate image.
type Selection map[string]string

// Scene is the complete input of a render pass.
type Scene struct {
	Background *Background `json:"background,omitempty"`
	Layers     []Layer     `json:"layers"`
	Selection  Selection   `json:"selection,omitempty"`
}

// BackgroundURL returns the background image URL, or "" when the scene has
// no background.
func (s *Scene) BackgroundURL() string {
	if s == nil || s.Background == nil {
		return ""
	}
	return s.Background.URL
}

// Selected returns the candidate image the layer renders under sel.
//
// An explicit selection naming one of the layer's candidates wins. Otherwise
// the first candidate is the default. The boolean is false when the layer
// has no candidates at all.
func (l Layer) Selected(sel Selection) (LayerImage, bool) {
	if len(l.Images) == 0 {
		return LayerImage{}, false
	}
	if id, ok := sel[l.ID]; ok && id != "" {
		for _, img := range l.Images {
			if img.ID == id {
				return img, true
			}
		}
	}
	return l.Images[0], true
}

// EffectiveTransform resolves the transform for img within layer l:
// the image-level transform, else the layer-level transform, else
// [geometry.FullCover]. A per-image rotation replaces the resolved rotation.
// The result is not clamped.
func (l Layer) EffectiveTransform(img LayerImage) geometry.Transform {
	t := geometry.FullCover
	switch {
	case img.Transform != nil:
		t = *img.Transform
	case l.Transform != nil:
		t = *l.Transform
	}
	if img.Rotation != nil {
		t.Rotation = *img.Rotation
	}
	return t
}

// URLs returns the background URL followed by the selected image URL of
// every visible layer, in layer order, without duplicates.
func (s *Scene) URLs() []string {
	seen := make(map[string]bool)
	var urls []string
	add := func(u string) {
		if u != "" && !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}
	add(s.BackgroundURL())
	for _, l := range s.Layers {
		if !l.Visible {
			continue
		}
		if img, ok := l.Selected(s.Selection); ok {
			add(img.URL)
		}
	}
	return urls
}

// Layer returns the layer with the given ID.
func (s *Scene) Layer(id string) (Layer, bool) {
	for _, l := range s.Layers {
		if l.ID == id {
			return l, true
		}
	}
	return Layer{}, false
}

// WithSelection returns a shallow copy of s whose selection map is a copy of
// the original with layerID pointing at imageID. The receiver is unchanged.
func (s *Scene) WithSelection(layerID, imageID string) *Scene {
	out := *s
	out.Selection = make(Selection, len(s.Selection)+1)
	for k, v := range s.Selection {
		out.Selection[k] = v
	}
	out.Selection[layerID] = imageID
	return &out
}
