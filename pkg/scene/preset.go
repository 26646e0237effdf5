package scene

import (
	"strings"

	"github.com/matzehuels/layerstack/pkg/errors"
	"github.com/matzehuels/layerstack/pkg/geometry"
)

// Preset names a fixed export resolution by aspect ratio.
type Preset string

// Supported presets.
const (
	PresetSquare    Preset = "square"    // 1080×1080
	PresetPortrait  Preset = "portrait"  // 1080×1920
	PresetLandscape Preset = "landscape" // 1920×1080
)

// DefaultPreset is used when no preset is requested.
const DefaultPreset = PresetSquare

var presetSizes = map[Preset]geometry.Size{
	PresetSquare:    {W: 1080, H: 1080},
	PresetPortrait:  {W: 1080, H: 1920},
	PresetLandscape: {W: 1920, H: 1080},
}

// Presets lists every supported preset in a stable order.
func Presets() []Preset {
	return []Preset{PresetSquare, PresetPortrait, PresetLandscape}
}

// ParsePreset parses a preset name. Aspect-ratio aliases ("1:1", "9:16",
// "16:9") are accepted. An empty string yields [DefaultPreset].
func ParsePreset(s string) (Preset, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DefaultPreset, nil
	case "square", "1:1":
		return PresetSquare, nil
	case "portrait", "9:16":
		return PresetPortrait, nil
	case "landscape", "16:9":
		return PresetLandscape, nil
	}
	return "", errors.New(errors.ErrCodeInvalidPreset, "invalid preset: %q (must be one of: square, portrait, landscape)", s)
}

// Size returns the pixel size of the preset's render target.
func (p Preset) Size() (geometry.Size, error) {
	sz, ok := presetSizes[p]
	if !ok {
		return geometry.Size{}, errors.New(errors.ErrCodeInvalidPreset, "invalid preset: %q", string(p))
	}
	return sz, nil
}
