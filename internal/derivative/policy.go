package derivative

import (
	"image"

	"github.com/disintegration/imaging"
)

type ColorMode int

const (
	ModeOther ColorMode = iota
	ModeRGB
	ModeRGBA
	ModeCMYK
	ModeGray
	ModePalette
)

func (m ColorMode) String() string {
	switch m {
	case ModeRGB:
		return "RGB"
	case ModeRGBA:
		return "RGBA"
	case ModeCMYK:
		return "CMYK"
	case ModeGray:
		return "L"
	case ModePalette:
		return "P"
	}
	return "other"
}

// IsRGB reports whether pixel data is stored in an RGB space.
func (m ColorMode) IsRGB() bool {
	return m == ModeRGB || m == ModeRGBA
}

// Classify reports the colour mode of a decoded bitmap.
func Classify(img image.Image) ColorMode {
	switch img.(type) {
	case *image.YCbCr:
		return ModeRGB
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64, *image.NYCbCrA:
		return ModeRGBA
	case *image.CMYK:
		return ModeCMYK
	case *image.Gray, *image.Gray16:
		return ModeGray
	case *image.Paletted:
		return ModePalette
	}
	return ModeOther
}

// ICCPolicy decides whether a captured profile is carried into the
// derivative.
type ICCPolicy interface {
	Retain(mode ColorMode, profile []byte) []byte
}

// RGBOnlyPolicy keeps the profile for RGB/RGBA sources only. A profile
// written for another colour space would mis-colour the converted pixels.
type RGBOnlyPolicy struct{}

func (RGBOnlyPolicy) Retain(mode ColorMode, profile []byte) []byte {
	if !mode.IsRGB() {
		return nil
	}
	return profile
}

// DropICCPolicy strips every profile.
type DropICCPolicy struct{}

func (DropICCPolicy) Retain(ColorMode, []byte) []byte { return nil }

// toRGB converts any bitmap to opaque RGB, dropping alpha the way a
// mode conversion does rather than compositing.
func toRGB(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}

func isOpaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return true
}
