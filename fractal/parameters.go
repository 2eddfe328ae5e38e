package fractal

import (
	"fmt"
	"image/color"
	"math"
	"math/cmplx"
)

// Transformation type identifiers, indexing the fixed table of analytic
// maps used by PreTransformation/PostTransformation.
const (
	TransformIdentity = iota
	TransformFivefoldNest
	TransformCos
	TransformOffset
	TransformSqrt
	TransformFourthRoot
	TransformLog
	TransformPartialInflection
	numberOfTransformations
)

// Parameters is an immutable-per-render snapshot of everything needed to
// map pixels to the complex plane, iterate a formula, and colorize the
// result. Fields are unexported because many of them are derived from
// each other (x_range from zoom level, pixel size from x_range, gradient
// factors from speed/offset) and mutating one without the others breaks
// invariants documented in spec.md section 3.2; every mutation goes
// through a setter that keeps the derived fields consistent.
type Parameters struct {
	targetWidth  int
	targetHeight int
	oversampling int
	bitmapZoom   int

	center        complex128
	topLeftCorner complex128
	xRange        float64
	yRange        float64
	pixelWidth    float64
	pixelHeight   float64

	maxIters int

	julia     bool
	juliaSeed complex128

	formula         Formula
	formulaID       int

	inflections         []complex128
	inflectionZoomLevel float64

	gradientColors       []color.RGBA
	gradientSpeed        float64
	gradientOffset       float64
	gradientSpeedFactor  float64
	gradientOffsetTerm   float64

	rotationAngle    float64
	centerOfRotation complex128
	rotationFactor   complex128

	// PreTransformationType/PostTransformationType select an entry in the
	// fixed transformation table. PartialInflectionPower/Coord are the
	// state used by transformation 7 (partial inflection), driven by the
	// animator while morphing an inflection's power from 1 to the
	// formula's InflectionPower.
	PreTransformationType   int
	PostTransformationType  int
	PartialInflectionPower  float64
	PartialInflectionCoord  complex128
}

// NewParameters returns a Parameters in the same default state the
// original program's FractalParameters::initialize establishes: 1200x800
// canvas, oversampling 1, Mandelbrot power 2, max iterations 4600, the
// four-stop default gradient, centered at the origin at zoom 0.
func NewParameters() *Parameters {
	p := &Parameters{}
	p.oversampling = 1
	p.targetWidth = 1200
	p.targetHeight = 800
	p.bitmapZoom = 1
	formula, _ := GetFormula(ProcedureM2)
	p.formula = formula
	p.formulaID = formula.ID
	p.julia = false
	p.juliaSeed = complex(-0.75, 0.1)
	p.inflections = nil
	p.inflectionZoomLevel = 0
	p.rotationAngle = 0
	p.rotationFactor = 1
	p.centerOfRotation = 0
	p.setCenterAndZoomPrivate(0, 0)
	p.gradientColors = DefaultGradient()
	p.gradientSpeed = 1
	p.gradientOffset = 0.5
	p.SetGradientSpeed(38.0)
	p.SetGradientOffset(0)
	p.PreTransformationType = TransformIdentity
	p.PostTransformationType = TransformIdentity
	p.PartialInflectionPower = 1
	p.SetMaxIters(4600)
	return p
}

// Reset restores program defaults without touching screen dimensions,
// mirroring FractalParameters::reset.
func (p *Parameters) Reset() {
	p.SetGradientSpeed(38.0)
	p.SetGradientOffset(0)
	p.SetMaxIters(4600)
	for p.RemoveInflection() {
	}
	p.SetCenterAndZoomAbsolute(0, 0)
	p.SetInflectionZoomLevel()
}

// --- accessors -------------------------------------------------------

func (p *Parameters) TargetWidth() int  { return p.targetWidth }
func (p *Parameters) TargetHeight() int { return p.targetHeight }
func (p *Parameters) Oversampling() int { return p.oversampling }
func (p *Parameters) BitmapZoom() int   { return p.bitmapZoom }

// Width and Height are the oversampled iteration-buffer dimensions.
func (p *Parameters) Width() int  { return p.targetWidth * p.oversampling }
func (p *Parameters) Height() int { return p.targetHeight * p.oversampling }

func (p *Parameters) Center() complex128        { return p.center }
func (p *Parameters) TopLeftCorner() complex128 { return p.topLeftCorner }
func (p *Parameters) XRange() float64           { return p.xRange }
func (p *Parameters) YRange() float64           { return p.yRange }
func (p *Parameters) PixelWidth() float64       { return p.pixelWidth }
func (p *Parameters) PixelHeight() float64      { return p.pixelHeight }
func (p *Parameters) MaxIters() int             { return p.maxIters }
func (p *Parameters) Julia() bool               { return p.julia }
func (p *Parameters) JuliaSeed() complex128      { return p.juliaSeed }
func (p *Parameters) FormulaValue() Formula      { return p.formula }
func (p *Parameters) FormulaID() int             { return p.formulaID }

// Inflections returns a copy of the inflection stack, newest last.
func (p *Parameters) Inflections() []complex128 {
	out := make([]complex128, len(p.inflections))
	copy(out, p.inflections)
	return out
}

func (p *Parameters) InflectionCount() int          { return len(p.inflections) }
func (p *Parameters) InflectionZoomLevel() float64  { return p.inflectionZoomLevel }
func (p *Parameters) GradientColors() []color.RGBA {
	out := make([]color.RGBA, len(p.gradientColors))
	copy(out, p.gradientColors)
	return out
}
func (p *Parameters) GradientSpeed() float64       { return p.gradientSpeed }
func (p *Parameters) GradientOffset() float64      { return p.gradientOffset }
func (p *Parameters) GradientSpeedFactor() float64 { return p.gradientSpeedFactor }
func (p *Parameters) GradientOffsetTerm() float64  { return p.gradientOffsetTerm }
func (p *Parameters) RotationAngle() float64       { return p.rotationAngle }
func (p *Parameters) CenterOfRotation() complex128 { return p.centerOfRotation }
func (p *Parameters) RotationFactor() complex128   { return p.rotationFactor }

// ZoomLevel is derived from the current horizontal range.
func (p *Parameters) ZoomLevel() float64 {
	return -math.Log2(p.xRange) + 2
}

// --- mutation ----------------------------------------------------------

// SetMaxIters rejects non-positive values, matching the original's
// newMaxIters < 1 check.
func (p *Parameters) SetMaxIters(n int) bool {
	if n < 1 || n == p.maxIters {
		return false
	}
	p.maxIters = n
	return true
}

// setCenterAndZoomPrivate is the workhorse both SetCenterAndZoomAbsolute
// and SetCenterAndZoomRelative call; it does not touch rotation. Calling
// it directly from SetRotation (as the original does) would recurse
// infinitely if the public wrappers called it back, so it stays private.
func (p *Parameters) setCenterAndZoomPrivate(newCenter complex128, zoom float64) bool {
	width := p.Width()
	height := p.Height()

	recalcRequired := false

	xRangeNew := 4 / math.Pow(2, zoom)
	yRangeNew := xRangeNew * (float64(height) / float64(width))
	if xRangeNew != p.xRange || yRangeNew != p.yRange {
		p.xRange = xRangeNew
		p.yRange = yRangeNew
		recalcRequired = true
	}

	if p.center != newCenter {
		recalcRequired = true
	}
	p.center = newCenter
	p.topLeftCorner = p.center - complex(p.xRange/2, 0) + complex(0, p.yRange/2)

	newPixelWidth := p.xRange / float64(width)
	newPixelHeight := p.yRange / float64(height)
	if newPixelHeight != p.pixelHeight || newPixelWidth != p.pixelWidth {
		p.pixelWidth = newPixelWidth
		p.pixelHeight = newPixelHeight
		recalcRequired = true
	}

	return recalcRequired
}

// SetCenterAndZoomAbsolute undoes any existing rotation, applies the new
// center/zoom, then restores the rotation angle (now pivoting on the new
// center). SetCenter, SetZoomLevel and the inflection methods funnel
// through it; SetCenterAndZoomRelative does not.
func (p *Parameters) SetCenterAndZoomAbsolute(newCenter complex128, zoom float64) bool {
	oldAngle := p.rotationAngle
	p.SetRotation(0)
	changed := p.setCenterAndZoomPrivate(newCenter, zoom)
	p.SetRotation(oldAngle)
	return changed
}

// SetCenterAndZoomRelative applies the new center/zoom and recenters the
// existing rotation on the new center without changing the angle.
func (p *Parameters) SetCenterAndZoomRelative(newCenter complex128, zoom float64) bool {
	changed := p.setCenterAndZoomPrivate(newCenter, zoom)
	p.SetRotation(p.rotationAngle)
	return changed
}

func (p *Parameters) SetCenter(newCenter complex128) bool {
	return p.SetCenterAndZoomAbsolute(newCenter, p.ZoomLevel())
}

func (p *Parameters) SetZoomLevel(zoomLevel float64) bool {
	return p.SetCenterAndZoomAbsolute(p.center, zoomLevel)
}

// SetRotation first undoes any existing rotation by re-centering on the
// current viewport center, then pivots future rotation on that center.
// This guarantees changing the angle rotates about the current viewport
// center rather than a stale pivot (spec.md section 4.1).
func (p *Parameters) SetRotation(angle float64) {
	currentCenter := p.Rotation(p.center)
	p.setCenterAndZoomPrivate(currentCenter, p.ZoomLevel())
	p.centerOfRotation = p.center
	p.rotationAngle = angle
	p.rotationFactor = cmplx.Exp(complex(0, angle*2*math.Pi))
}

// Map converts a sample coordinate to a point in the untransformed
// complex plane.
func (p *Parameters) Map(x, y int) complex128 {
	return p.topLeftCorner + complex(float64(x)*p.pixelWidth, 0) - complex(0, float64(y)*p.pixelHeight)
}

func (p *Parameters) Rotation(c complex128) complex128 {
	return (c-p.centerOfRotation)*p.rotationFactor + p.centerOfRotation
}

// PreTransformation and PostTransformation dispatch the same fixed
// eight-entry table of analytic maps (identity through partial inflection).
func (p *Parameters) PreTransformation(c complex128) complex128 {
	return applyTransformation(p.PreTransformationType, c, p.PartialInflectionPower, p.PartialInflectionCoord)
}

func (p *Parameters) PostTransformation(c complex128) complex128 {
	return applyTransformation(p.PostTransformationType, c, p.PartialInflectionPower, p.PartialInflectionCoord)
}

func applyTransformation(kind int, c complex128, partialPower float64, partialCoord complex128) complex128 {
	switch kind {
	case TransformIdentity:
		return c
	case TransformFivefoldNest:
		z := complex128(0)
		for i := 0; i < 5; i++ {
			z = z*z + c
		}
		return z
	case TransformCos:
		return cmplx.Cos(c)
	case TransformOffset:
		return c + complex(2, 2)
	case TransformSqrt:
		return cmplx.Sqrt(c)
	case TransformFourthRoot:
		return cmplx.Sqrt(cmplx.Sqrt(c))
	case TransformLog:
		return cmplx.Log(c)
	case TransformPartialInflection:
		return cmplx.Pow(c, complex(partialPower, 0)) + partialCoord
	}
	return 0
}

// ApplyInflections folds z := z^k + p_i over the stack from newest to oldest,
// where k is the active formula's inflection power.
func (p *Parameters) ApplyInflections(z complex128) complex128 {
	k := p.formula.InflectionPower
	for i := len(p.inflections) - 1; i >= 0; i-- {
		z = cmplx.Pow(z, complex(float64(k), 0)) + p.inflections[i]
	}
	return z
}

// MapWithTransformations composes the full pixel-to-plane pipeline:
// map, rotate, pre-transform, inflect, post-transform.
func (p *Parameters) MapWithTransformations(x, y int) complex128 {
	return p.MapWithTransformationsC(p.Map(x, y))
}

func (p *Parameters) MapWithTransformationsC(c complex128) complex128 {
	return p.PostTransformation(p.ApplyInflections(p.PreTransformation(p.Rotation(c))))
}

// Resize changes canvas dimensions and recomputes the plane mapping to
// match. A no-dimension-change call is a cheap no-op.
func (p *Parameters) Resize(newOversampling, newScreenWidth, newScreenHeight int) (bool, error) {
	if newOversampling <= 0 {
		return false, newError(OutOfRange, "oversampling must be positive, got %d", newOversampling)
	}
	if newScreenWidth < 0 || newScreenHeight < 0 {
		return false, newError(OutOfRange, "screen dimensions must be non-negative")
	}
	if newOversampling > 1 && p.bitmapZoom > 1 {
		return false, newError(OutOfRange, "oversampling and bitmapZoom are mutually exclusive")
	}
	if p.oversampling != newOversampling || p.targetWidth != newScreenWidth || p.targetHeight != newScreenHeight {
		p.oversampling = newOversampling
		p.targetWidth = newScreenWidth
		p.targetHeight = newScreenHeight
		return p.SetCenterAndZoomRelative(p.center, p.ZoomLevel()), nil
	}
	return false, nil
}

// ToggleJulia flips between Mandelbrot and Julia mode. Enabling Julia
// samples the seed from the current fully-transformed center; disabling
// jumps the view to that seed.
func (p *Parameters) ToggleJulia() {
	p.julia = !p.julia
	if p.julia {
		p.juliaSeed = p.MapWithTransformationsC(p.center)
		p.SetCenterAndZoomAbsolute(0, 0)
	} else {
		p.SetCenterAndZoomAbsolute(p.juliaSeed, 0)
	}
}

// ChangeFormula switches the active procedure. It returns false for an
// unrecognized identifier or a no-op switch to the current formula.
func (p *Parameters) ChangeFormula(identifier int) bool {
	newFormula, ok := GetFormula(identifier)
	if !ok {
		return false
	}
	if p.formula.ID != newFormula.ID {
		p.formulaID = newFormula.ID
		p.formula = newFormula
		return true
	}
	return false
}

// ChangeTransformation cycles the post-transformation to the next entry
// in the fixed table.
func (p *Parameters) ChangeTransformation() {
	p.PostTransformationType = (p.PostTransformationType + 1) % numberOfTransformations
}

// SetInflectionZoomLevel captures the current zoom, uncorrected, as the
// level future inflections reset to. The 2^n factor undoes the
// per-inflection halving AddInflection applies so that features keep
// their apparent size as inflections stack.
func (p *Parameters) SetInflectionZoomLevel() {
	power := math.Pow(2, float64(len(p.inflections)))
	p.inflectionZoomLevel = p.ZoomLevel() * power
}

// AddInflection pushes a new Julia-morphing point, then resets the view
// to the origin at the inflection zoom level corrected for stack depth.
func (p *Parameters) AddInflection(c complex128) bool {
	p.inflections = append(p.inflections, c)
	n := len(p.inflections)
	oldAngle := p.rotationAngle
	p.SetRotation(0)
	p.SetCenterAndZoomAbsolute(0, p.inflectionZoomLevel*(1/math.Pow(2, float64(n))))
	p.SetRotation(oldAngle)
	return true
}

// AddInflectionAt pushes an inflection at the plane point a pixel maps
// to, after rotation and pre-transformation but before any existing
// inflection, matching the original's addInflection(xPos, yPos).
func (p *Parameters) AddInflectionAt(x, y int) bool {
	if x < 0 || x > p.Width() || y < 0 || y > p.Height() {
		return false
	}
	c := p.PreTransformation(p.Rotation(p.Map(x, y)))
	return p.AddInflection(c)
}

// RemoveInflection pops the most recent inflection. If the stack becomes
// empty, the view recenters on the point that was removed.
func (p *Parameters) RemoveInflection() bool {
	n := len(p.inflections)
	if n == 0 {
		return false
	}
	removed := p.inflections[n-1]
	p.inflections = p.inflections[:n-1]
	n--
	newCenter := complex128(0)
	if n == 0 {
		newCenter = removed
	}
	oldAngle := p.rotationAngle
	p.SetRotation(0)
	p.SetCenterAndZoomAbsolute(newCenter, p.inflectionZoomLevel*(1/math.Pow(2, float64(n))))
	p.SetRotation(oldAngle)
	return true
}

// SetGradientColors replaces the palette. It reports whether the palette
// actually changed.
func (p *Parameters) SetGradientColors(colors []color.RGBA) bool {
	changed := len(p.gradientColors) != len(colors)
	if !changed {
		for i := range colors {
			if p.gradientColors[i] != colors[i] {
				changed = true
				break
			}
		}
	}
	p.gradientColors = append([]color.RGBA(nil), colors...)
	return changed
}

// SetGradientSpeed updates the derived gradientSpeedFactor and
// gradientOffsetTerm used by the colorizer's gradient lookup.
func (p *Parameters) SetGradientSpeed(newSpeed float64) bool {
	changed := newSpeed != p.gradientSpeed
	p.gradientSpeed = newSpeed
	computed := transferFunction(p.gradientSpeed)
	p.gradientSpeedFactor = 1.0 / computed
	p.gradientOffsetTerm = float64(len(p.gradientColors)) * computed * p.gradientOffset
	return changed
}

// SetGradientOffset normalizes the offset into [0,1) before storing it,
// per spec.md section 9's "gradient offset" open question.
func (p *Parameters) SetGradientOffset(newOffset float64) bool {
	normalized := newOffset - math.Floor(newOffset)
	changed := normalized != p.gradientOffset
	p.gradientOffset = normalized
	interpolatedLength := float64(len(p.gradientColors)) * transferFunction(p.gradientSpeed)
	p.gradientOffsetTerm = interpolatedLength * p.gradientOffset
	return changed
}

func (p *Parameters) String() string {
	return fmt.Sprintf("Parameters{formula=%s center=%v zoom=%.4f maxIters=%d}", p.formula.Name, p.center, p.ZoomLevel(), p.maxIters)
}
