// Package iccprofile reads and writes embedded ICC colour profiles in JPEG,
// PNG and WebP containers.
package iccprofile

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	riimage "github.com/dsoprea/go-utility/image"
)

type Container int

const (
	Unknown Container = iota
	JPEG
	PNG
	WEBP
)

func (c Container) String() string {
	switch c {
	case JPEG:
		return "jpeg"
	case PNG:
		return "png"
	case WEBP:
		return "webp"
	}
	return "unknown"
}

var ErrUnsupportedContainer = errors.New("unsupported image container")

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// Detect sniffs the container format from the leading bytes of data.
func Detect(data []byte) Container {
	switch {
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return JPEG
	case bytes.HasPrefix(data, pngSignature):
		return PNG
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return WEBP
	}
	return Unknown
}

// mediaParser is the structure parser shape shared by the dsoprea
// jpeg/png structure packages.
type mediaParser interface {
	Parse(rs io.ReadSeeker, size int) (riimage.MediaContext, error)
}

// Extract returns the ICC profile embedded in data, or nil when there is
// none or the container cannot be parsed.
func Extract(data []byte) []byte {
	switch Detect(data) {
	case JPEG:
		return extractJPEG(data)
	case PNG:
		return extractPNG(data)
	case WEBP:
		return extractWebP(data)
	}
	return nil
}

// Embed returns a copy of data with profile embedded. An empty profile
// returns data unchanged.
func Embed(data, profile []byte) ([]byte, error) {
	if len(profile) == 0 {
		return data, nil
	}
	var (
		out []byte
		err error
	)
	switch c := Detect(data); c {
	case JPEG:
		out, err = embedJPEG(data, profile)
	case PNG:
		out, err = embedPNG(data, profile)
	case WEBP:
		out, err = embedWebP(data, profile)
	default:
		err = ErrUnsupportedContainer
	}
	if err != nil {
		return nil, fmt.Errorf("iccprofile.Embed: %w", err)
	}
	return out, nil
}
