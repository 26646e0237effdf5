package export

import (
	"image"
	"image/color"
	"io"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	errs "github.com/matzehuels/layerstack/pkg/errors"
)

// Format is an output encoding.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// DefaultFormat is used when none is given.
const DefaultFormat = FormatPNG

// DefaultJPEGQuality is used for JPEG output when no quality is set.
const DefaultJPEGQuality = 92

// ParseFormat parses an output format name. The empty string is PNG.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	}
	return "", errs.New(errs.ErrCodeInvalidFormat, "unsupported output format %q (use png or jpeg)", s)
}

// Ext returns the file extension for f, including the dot.
func (f Format) Ext() string {
	if f == FormatJPEG {
		return ".jpg"
	}
	return ".png"
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatJPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// FormatFromPath picks the format from a file extension, defaulting to PNG.
func FormatFromPath(path string) Format {
	p := strings.ToLower(path)
	if strings.HasSuffix(p, ".jpg") || strings.HasSuffix(p, ".jpeg") {
		return FormatJPEG
	}
	return FormatPNG
}

func encode(w io.Writer, img image.Image, f Format, quality int) error {
	switch f {
	case FormatJPEG:
		if quality <= 0 || quality > 100 {
			quality = DefaultJPEGQuality
		}
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
	default:
		return imaging.Encode(w, img, imaging.PNG)
	}
}

// ParseColor parses "#rgb", "#rrggbb" or "#rrggbbaa" (the # is optional).
// "transparent" and "none" give a fully transparent color.
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "transparent", "none":
		return color.NRGBA{}, nil
	case "", "white":
		return color.NRGBA{R: 255, G: 255, B: 255, A: 255}, nil
	case "black":
		return color.NRGBA{A: 255}, nil
	}
	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return color.NRGBA{}, errs.New(errs.ErrCodeInvalidInput, "invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, errs.Wrap(errs.ErrCodeInvalidInput, err, "invalid color %q", s)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}
