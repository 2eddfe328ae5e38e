package fractal

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGradientColorWrapsCyclically(t *testing.T) {
	colors := []color.RGBA{
		{R: 255, A: 255},
		{G: 255, A: 255},
		{B: 255, A: 255},
	}
	// speedFactor=1, offsetTerm=0: position == iterationCount, so index 3
	// should land back on colors[0] the same way index 0 does.
	atZero := gradientColor(colors, 0, 1, 0)
	atWrap := gradientColor(colors, 3, 1, 0)
	assert.Equal(t, atZero, atWrap, "gradient should be cyclic with period len(colors)")
}

func TestGradientColorSingleEntry(t *testing.T) {
	colors := []color.RGBA{{R: 10, G: 20, B: 30, A: 255}}
	got := gradientColor(colors, 42, 1, 0)
	assert.Equal(t, colors[0], got, "a single-color gradient should always return that color")
}

func TestTransferFunctionNeutralPoint(t *testing.T) {
	assert.Equal(t, 1.0, transferFunction(1), "transferFunction(1) should be the documented neutral point")
}
