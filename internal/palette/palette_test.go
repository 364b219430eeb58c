package palette

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bands fills the image left to right: 70% blue, 20% red, 10% green.
func bands() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 200, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 200; x++ {
			c := color.NRGBA{R: 0x20, G: 0x60, B: 0xc0, A: 0xff}
			switch {
			case x >= 180:
				c = color.NRGBA{G: 0xb0, A: 0xff}
			case x >= 140:
				c = color.NRGBA{R: 0xc8, A: 0xff}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestDominantPicksLargestCluster(t *testing.T) {
	got, err := Dominant(bands())
	require.NoError(t, err)
	assert.Regexp(t, `^#[0-9a-f]{6}$`, got)
	assert.Equal(t, "#2060c0", got)
}
