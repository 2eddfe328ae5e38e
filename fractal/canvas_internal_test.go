package fractal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestIterIndexBijection covers spec.md section 8 invariant 4: iterIndex
// must be a bijection onto [0, W*H) for every oversampled sample.
func TestIterIndexBijection(t *testing.T) {
	p := NewParameters()
	_, err := p.Resize(2, 5, 4)
	require.NoError(t, err)
	c := &Canvas{params: p}

	width, height := p.Width(), p.Height()
	seen := make(map[int]bool, width*height)
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			idx := c.iterIndex(x, y)
			if !assert.GreaterOrEqual(t, idx, 0) || !assert.Less(t, idx, width*height) {
				continue
			}
			assert.Falsef(t, seen[idx], "iterIndex(%d,%d) = %d collides with an earlier sample", x, y, idx)
			seen[idx] = true
		}
	}
	assert.Len(t, seen, width*height)
}

// TestIterIndexGrouping covers spec.md section 8 invariant 6: the s^2
// samples of one bitmap pixel occupy a contiguous run of the iteration
// buffer starting at (px*targetHeight+py)*s^2.
func TestIterIndexGrouping(t *testing.T) {
	p := NewParameters()
	_, err := p.Resize(3, 4, 5)
	require.NoError(t, err)
	c := &Canvas{params: p}

	s := p.Oversampling()
	for px := 0; px < p.TargetWidth(); px++ {
		for py := 0; py < p.TargetHeight(); py++ {
			base := (px*p.TargetHeight() + py) * s * s
			want := make(map[int]bool, s*s)
			for k := 0; k < s*s; k++ {
				want[base+k] = true
			}
			for dx := 0; dx < s; dx++ {
				for dy := 0; dy < s; dy++ {
					idx := c.iterIndex(px*s+dx, py*s+dy)
					assert.Truef(t, want[idx], "sample (%d,%d) of pixel (%d,%d): iterIndex=%d not in expected group starting at %d", dx, dy, px, py, idx, base)
				}
			}
		}
	}
}

// TestBitmapIndexBottomUp covers the bottom-up row addressing rule from
// spec.md section 4.3.
func TestBitmapIndexBottomUp(t *testing.T) {
	p := NewParameters()
	_, err := p.Resize(1, 10, 6)
	require.NoError(t, err)
	c := &Canvas{params: p}

	assert.Equal(t, p.TargetWidth()*(p.TargetHeight()-1), c.bitmapIndex(0, 0),
		"top row (py=0) should map to the last row of the buffer")
	assert.Equal(t, 0, c.bitmapIndex(0, p.TargetHeight()-1),
		"bottom row (py=height-1) should map to the start of the buffer")
}

// TestSetPixelInMinibrot covers spec.md section 8 invariant 5:
// in_minibrot must hold exactly when iterationCount == maxIters.
func TestSetPixelInMinibrot(t *testing.T) {
	p := NewParameters()
	p.SetMaxIters(100)
	_, err := p.Resize(1, 2, 2)
	require.NoError(t, err)
	c := &Canvas{params: p, iters: make([]IterData, p.Width()*p.Height())}

	c.SetPixel(0, 0, 100, false)
	c.SetPixel(1, 0, 99, false)

	assert.True(t, c.GetIterData(0, 0).InMinibrot, "iteration count == maxIters should set InMinibrot")
	assert.False(t, c.GetIterData(1, 0).InMinibrot, "iteration count < maxIters should not set InMinibrot")
}
