package fractal

import "math"

// FrameSink receives one rendered frame at a time from Animate. Frame
// numbers start at 1 and are zero-padded by callers that turn them into
// filenames, matching the original's "frame000001.bmp" convention.
type FrameSink interface {
	WriteFrame(frameNumber int, c *Canvas) error
}

// AnimationOptions controls pacing of an inflection-morphing animation.
type AnimationOptions struct {
	FPS                  float64
	SecondsPerInflection float64
	SecondsPerZoom       float64
}

// Animate renders a fly-through of every inflection currently on the
// canvas's parameters: it resets to zero inflections, then for each one
// in turn pans to its location, zooms to the inflection zoom level, and
// morphs the Julia-inflection power from 1 to the formula's
// InflectionPower using TransformPartialInflection, finally holding the
// last frame for one more inflection-duration. It always leaves the
// canvas with its original inflection stack restored afterward.
//
// Ported from ExploreFractals.cpp's animation(); ground truth for the
// framesPerInflection/framesPerZoom stepping and the partial-inflection
// power ramp.
func Animate(c *Canvas, opts AnimationOptions, sink FrameSink) error {
	framesPerInflection := int(opts.FPS * opts.SecondsPerInflection)
	framesPerZoom := int(opts.FPS * opts.SecondsPerZoom)
	if framesPerInflection < 2 {
		framesPerInflection = 2
	}
	if framesPerZoom < 1 {
		framesPerZoom = 1
	}

	p := c.Params()
	originalInflections := p.Inflections()
	originalPreType := p.PreTransformationType

	defer func() {
		p.PreTransformationType = originalPreType
		for p.RemoveInflection() {
		}
		for _, inflection := range originalInflections {
			p.AddInflection(inflection)
		}
	}()

	p.PreTransformationType = TransformPartialInflection
	for p.RemoveInflection() {
	}
	p.SetCenterAndZoomAbsolute(0, 0)
	p.PartialInflectionCoord = 0

	inflectionPowerStep := (float64(p.FormulaValue().InflectionPower) - 1) / float64(framesPerInflection-1)
	frame := 1

	makeFrame := func() error {
		c.EnqueueRender(true)
		err := sink.WriteFrame(frame, c)
		frame++
		return err
	}

	if err := makeFrame(); err != nil {
		return err
	}

	for _, thisInflectionCoord := range originalInflections {
		p.PartialInflectionPower = 1
		p.PartialInflectionCoord = 0

		currentCenter := p.Center()
		diff := thisInflectionCoord - currentCenter

		if thisInflectionCoord != 0 {
			for i := 1; i <= framesPerInflection; i++ {
				p.SetCenterAndZoomAbsolute(currentCenter+diff*complex(float64(i)/float64(framesPerInflection), 0), p.ZoomLevel())
				if err := makeFrame(); err != nil {
					return err
				}
			}
		}

		currentZoom := p.ZoomLevel()
		targetZoom := p.InflectionZoomLevel() * (1 / math.Pow(2, float64(p.InflectionCount())))
		zoomDiff := targetZoom - currentZoom
		zoomStep := 1.0 / float64(framesPerZoom)

		if zoomStep > 0.001 {
			steps := int(float64(framesPerZoom) * zoomDiff)
			for i := 1; i <= steps; i++ {
				p.SetCenterAndZoomAbsolute(p.Center(), currentZoom+zoomStep*float64(i))
				if err := makeFrame(); err != nil {
					return err
				}
			}
		}

		p.PartialInflectionCoord = thisInflectionCoord

		for i := 0; i < framesPerInflection; i++ {
			p.SetCenterAndZoomAbsolute(0, p.InflectionZoomLevel()*(1/math.Pow(2, float64(p.InflectionCount())))*(1/p.PartialInflectionPower))
			if err := makeFrame(); err != nil {
				return err
			}
			p.PartialInflectionPower += inflectionPowerStep
		}
		p.AddInflection(p.PartialInflectionCoord)
	}

	for i := 0; i < framesPerInflection; i++ {
		if err := makeFrame(); err != nil {
			return err
		}
	}

	return nil
}
