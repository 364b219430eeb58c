// Package palette finds the dominant colour of a photograph, used as the
// placeholder background while a derivative loads.
package palette

import (
	"errors"
	"fmt"
	"image"

	"github.com/EdlinOrg/prominentcolor"
)

var ErrNoColor = errors.New("no dominant colour found")

// Dominant returns the most prominent colour of img as a #rrggbb string.
func Dominant(img image.Image) (string, error) {
	const op = "palette.Dominant"

	colors, err := prominentcolor.KmeansWithArgs(prominentcolor.ArgumentNoCropping, img)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if len(colors) == 0 {
		return "", fmt.Errorf("%s: %w", op, ErrNoColor)
	}
	c := colors[0].Color
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B), nil
}
