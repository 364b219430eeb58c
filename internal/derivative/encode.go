package derivative

import (
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/jpegli"
	"github.com/gen2brain/webp"
)

const (
	webpMethod      = 6 // slowest, smallest
	jpegProgressive = 2
	pngCompression  = png.BestCompression
)

type encodeFunc func(w io.Writer, img image.Image, quality int) error

var encoders = map[Format]encodeFunc{
	WEBP: encodeWebP,
	JPEG: encodeJPEG,
	PNG:  encodePNG,
}

func encodeWebP(w io.Writer, img image.Image, quality int) error {
	return webp.Encode(w, img, webp.Options{Quality: quality, Method: webpMethod})
}

func encodeJPEG(w io.Writer, img image.Image, quality int) error {
	return jpegli.Encode(w, img, &jpegli.EncodingOptions{
		Quality:              quality,
		ProgressiveLevel:     jpegProgressive,
		ChromaSubsampling:    image.YCbCrSubsampleRatio420,
		OptimizeCoding:       true,
		AdaptiveQuantization: true,
	})
}

// PNG is lossless, quality does not apply.
func encodePNG(w io.Writer, img image.Image, _ int) error {
	return imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(pngCompression))
}

// flattenOnWhite composites img over an opaque white canvas.
func flattenOnWhite(img image.Image) *image.NRGBA {
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}
