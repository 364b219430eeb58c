package iccprofile

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	gowebp "github.com/gen2brain/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/webp"
)

func testImage(alpha uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 16, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 16; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 16), G: uint8(y * 32), B: 128, A: alpha})
		}
	}
	return img
}

func fakeProfile(size int) []byte {
	p := make([]byte, size)
	for i := range p {
		p[i] = byte(i * 7)
	}
	return p
}

func TestDetect(t *testing.T) {
	assert.Equal(t, JPEG, Detect([]byte{0xFF, 0xD8, 0xFF, 0xE0}))
	assert.Equal(t, PNG, Detect(append([]byte(nil), pngSignature...)))
	assert.Equal(t, WEBP, Detect([]byte("RIFF\x00\x00\x00\x00WEBPVP8 ")))
	assert.Equal(t, Unknown, Detect([]byte("GIF89a")))
	assert.Equal(t, Unknown, Detect(nil))
}

func TestJPEGRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testImage(255), nil))
	assert.Nil(t, Extract(buf.Bytes()))

	for _, size := range []int{128, maxJPEGChunk, maxJPEGChunk*2 + 17} {
		profile := fakeProfile(size)

		out, err := Embed(buf.Bytes(), profile)
		require.NoError(t, err)
		assert.Equal(t, profile, Extract(out))

		_, err = jpeg.Decode(bytes.NewReader(out))
		assert.NoError(t, err)
	}
}

func TestPNGRoundTripReplacesExisting(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage(200)))
	assert.Nil(t, Extract(buf.Bytes()))

	first, err := Embed(buf.Bytes(), fakeProfile(300))
	require.NoError(t, err)
	second, err := Embed(first, fakeProfile(40))
	require.NoError(t, err)

	assert.Equal(t, fakeProfile(40), Extract(second))
	assert.Equal(t, 1, bytes.Count(second, []byte(chunkICCP)))

	img, err := png.Decode(bytes.NewReader(second))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 16, 8), img.Bounds())
}

func TestWebPRoundTrip(t *testing.T) {
	cases := map[string]gowebp.Options{
		"lossy":    {Quality: 70, Method: 6},
		"lossless": {Lossless: true},
	}
	for name, opts := range cases {
		t.Run(name, func(t *testing.T) {
			for _, alpha := range []uint8{255, 128} {
				var buf bytes.Buffer
				require.NoError(t, gowebp.Encode(&buf, testImage(alpha), opts))
				assert.Nil(t, Extract(buf.Bytes()))

				profile := fakeProfile(513)
				out, err := Embed(buf.Bytes(), profile)
				require.NoError(t, err)
				assert.Equal(t, profile, Extract(out))

				img, err := webp.Decode(bytes.NewReader(out))
				require.NoError(t, err)
				assert.Equal(t, image.Rect(0, 0, 16, 8), img.Bounds())
			}
		})
	}
}

func TestEmbedEdgeCases(t *testing.T) {
	data := []byte("GIF89a....")

	out, err := Embed(data, nil)
	require.NoError(t, err)
	assert.Equal(t, data, out)

	_, err = Embed(data, fakeProfile(10))
	assert.ErrorIs(t, err, ErrUnsupportedContainer)

	_, err = Embed([]byte{0xFF, 0xD8, 0xFF}, fakeProfile(10))
	assert.Error(t, err)
}
