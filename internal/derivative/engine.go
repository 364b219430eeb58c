// Package derivative renders resized, recompressed copies of original
// photographs and keeps them on disk.
package derivative

import (
	"bytes"
	"fmt"
	"image"
	"math"
	"os"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"photopipe/internal/iccprofile"
)

// Generator renders one derivative from source bytes.
type Generator interface {
	Generate(src []byte, width int, format Format) ([]byte, error)
}

type Engine struct {
	filter  imaging.ResampleFilter
	icc     ICCPolicy
	quality QualityFunc
}

type Option func(*Engine)

func WithFilter(f imaging.ResampleFilter) Option {
	return func(e *Engine) { e.filter = f }
}

func WithICCPolicy(p ICCPolicy) Option {
	return func(e *Engine) { e.icc = p }
}

func WithQuality(q QualityFunc) Option {
	return func(e *Engine) { e.quality = q }
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		filter:  imaging.Lanczos,
		icc:     RGBOnlyPolicy{},
		quality: QualityForWidth,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Generate decodes src, scales it down to at most width pixels wide and
// encodes it as format. Errors wrap ErrInvalidRequest, ErrDecode or
// ErrEncode.
func (e *Engine) Generate(src []byte, width int, format Format) ([]byte, error) {
	const op = "derivative.Generate"

	if width <= 0 {
		return nil, fmt.Errorf("%s: %w: width must be positive, got %d", op, ErrInvalidRequest, width)
	}
	encode, ok := encoders[format]
	if !ok {
		return nil, fmt.Errorf("%s: %w: unknown format %v", op, ErrInvalidRequest, format)
	}

	profile := iccprofile.Extract(src)

	decoded, err := imaging.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrDecode, err)
	}

	img, profile := e.prepare(decoded, profile)
	img = e.resize(img, width)

	if format == JPEG && !isOpaque(img) {
		img = flattenOnWhite(img)
	}

	var buf bytes.Buffer
	if err := encode(&buf, img, e.quality(width)); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrEncode, err)
	}

	out, err := iccprofile.Embed(buf.Bytes(), profile)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrEncode, err)
	}
	return out, nil
}

// GenerateFile renders the image stored at srcPath into outPath. The output
// only appears once it is complete.
func (e *Engine) GenerateFile(srcPath string, width int, format Format, outPath string) error {
	const op = "derivative.GenerateFile"

	src, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrDecode, err)
	}
	out, err := e.Generate(src, width, format)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := writeAtomic(outPath, out); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// prepare applies the colour-mode policy: non-RGB bitmaps are converted to
// RGB and the ICC policy decides what happens to the captured profile.
func (e *Engine) prepare(img image.Image, profile []byte) (image.Image, []byte) {
	mode := Classify(img)
	profile = e.icc.Retain(mode, profile)
	if !mode.IsRGB() {
		return toRGB(img), profile
	}
	return img, profile
}

func (e *Engine) resize(img image.Image, width int) image.Image {
	w, h, ok := targetSize(img.Bounds(), width)
	if !ok {
		return img
	}
	return imaging.Resize(img, w, h, e.filter)
}

// targetSize computes the scaled dimensions for a maximum width. ok is false
// when the source is already narrow enough; sources are never upscaled.
func targetSize(bounds image.Rectangle, width int) (w, h int, ok bool) {
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW <= 0 || width >= srcW {
		return srcW, srcH, false
	}
	h = int(math.Round(float64(srcH) * float64(width) / float64(srcW)))
	if h < 1 {
		h = 1
	}
	return width, h, true
}
