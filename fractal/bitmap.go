package fractal

import (
	"image/color"
	"math"

	"golang.org/x/sync/errgroup"
)

var (
	minibrotColorInMinibrotGuessed    = color.RGBA{R: 0, G: 0, B: 255, A: 255}
	minibrotColorInMinibrotCalculated = color.RGBA{R: 255, A: 255}
	minibrotColorGuessed              = color.RGBA{G: 255, A: 255}
	minibrotColorPlain                = color.RGBA{A: 255}
)

// renderBitmapRect colorizes the screen-space rectangle [xfrom,xto) x
// [yfrom,yto) by box-filtering each output pixel's oversampling x
// oversampling group of samples through the active gradient.
// highlightGuessed tints minibrot and guessed samples (red/blue/green)
// for the "view guessed pixels" debugging overlay instead of coloring
// them normally.
func renderBitmapRect(c *Canvas, highlightGuessed bool, xfrom, xto, yfrom, yto int, bitmapRenderID int64) {
	c.mu.RLock()
	screenWidth := c.params.TargetWidth()
	screenHeight := c.params.TargetHeight()
	oversampling := c.params.Oversampling()
	gradientColors := c.params.gradientColors
	speedFactor := c.params.gradientSpeedFactor
	offsetTerm := c.params.gradientOffsetTerm
	c.mu.RUnlock()

	samples := oversampling * oversampling

	for px := xfrom; px < xto; px++ {
		for py := yfrom; py < yto; py++ {
			itersStart := (px*screenHeight + py) * samples

			var sumR, sumG, sumB int
			for i := 0; i < samples; i++ {
				it := c.iters[itersStart+i]
				var col color.RGBA
				switch {
				case highlightGuessed && it.InMinibrot && !it.Guessed:
					col = minibrotColorInMinibrotCalculated
				case highlightGuessed && it.InMinibrot:
					col = minibrotColorInMinibrotGuessed
				case highlightGuessed && it.Guessed:
					col = minibrotColorGuessed
				case !highlightGuessed && it.InMinibrot:
					col = minibrotColorPlain
				default:
					col = gradientColor(gradientColors, it.IterationCount, speedFactor, offsetTerm)
				}
				sumR += int(col.R)
				sumG += int(col.G)
				sumB += int(col.B)
			}

			c.bitmap[bitmapIndexFor(screenWidth, screenHeight, px, py)] = color.RGBA{
				R: uint8(sumR / samples),
				G: uint8(sumG / samples),
				B: uint8(sumB / samples),
				A: 255,
			}
		}
		if c.lastBitmapRenderID.Load() != bitmapRenderID {
			return
		}
	}
}

// renderBitmapTiled splits the screen into roughly sqrt(threads) x
// sqrt(threads) tiles and colorizes them concurrently, used when no
// iteration render is in flight to recolor a whole frame quickly after a
// pure gradient/palette change.
func renderBitmapTiled(c *Canvas, highlightGuessed bool, bitmapRenderID int64, numberOfThreads int) {
	c.mu.RLock()
	screenWidth := c.params.TargetWidth()
	screenHeight := c.params.TargetHeight()
	c.mu.RUnlock()

	tiles := int(math.Sqrt(float64(numberOfThreads)))
	if tiles < 1 {
		tiles = 1
	}
	widthStep := screenWidth / tiles
	heightStep := screenHeight / tiles

	g := &errgroup.Group{}
	g.SetLimit(numberOfThreads)
	for i := 0; i < tiles; i++ {
		xfrom := i * widthStep
		xto := (i + 1) * widthStep
		if i == tiles-1 {
			xto = screenWidth
		}
		for j := 0; j < tiles; j++ {
			yfrom := j * heightStep
			yto := (j + 1) * heightStep
			if j == tiles-1 {
				yto = screenHeight
			}
			xfrom, xto, yfrom, yto := xfrom, xto, yfrom, yto
			g.Go(func() error {
				renderBitmapRect(c, highlightGuessed, xfrom, xto, yfrom, yto, bitmapRenderID)
				return nil
			})
		}
	}
	g.Wait()
}
