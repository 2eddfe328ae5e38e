package fractal

import (
	"image/color"
	"math"
)

// DefaultGradient is the palette FractalParameters.initialize hardcodes
// in the original program: white, teal, black, orange.
func DefaultGradient() []color.RGBA {
	return []color.RGBA{
		{R: 255, G: 255, B: 255, A: 255},
		{R: 52, G: 140, B: 167, A: 255},
		{R: 0, G: 0, B: 0, A: 255},
		{R: 229, G: 140, B: 45, A: 255},
	}
}

// transferFunction stretches or compresses the gradient around the
// neutral point s=1.
func transferFunction(s float64) float64 {
	return math.Pow(1.1, s-1)
}

// lerpChannel linearly interpolates a single byte channel.
func lerpChannel(a, b uint8, t float64) uint8 {
	return uint8(float64(a)*(1-t) + float64(b)*t)
}

func lerpColor(a, b color.RGBA, t float64) color.RGBA {
	return color.RGBA{
		R: lerpChannel(a.R, b.R, t),
		G: lerpChannel(a.G, b.G, t),
		B: lerpChannel(a.B, b.B, t),
		A: 255,
	}
}

// gradientColor samples the cyclic gradient at an iteration count, using
// the precomputed speed/offset factors carried on Parameters.
func gradientColor(colors []color.RGBA, iterationCount int, speedFactor, offsetTerm float64) color.RGBA {
	n := len(colors)
	if n == 0 {
		return color.RGBA{A: 255}
	}
	if n == 1 {
		return colors[0]
	}
	position := (float64(iterationCount) + offsetTerm) * speedFactor
	k := int(position)
	t := position - float64(k)
	if t < 0 {
		// Negative positions (from negative gradientSpeed/offset combinations)
		// still need a fractional part in [0,1).
		t += 1
		k--
	}
	i0 := ((k % n) + n) % n
	i1 := ((k+1)%n + n) % n
	return lerpColor(colors[i0], colors[i1], t)
}
