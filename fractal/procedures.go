package fractal

import "math"

// checkersIterationCount renders an infinite checkerboard tiled over the
// plane, with a log-spiral julia-detail simulation layered on top so the
// tiles don't look perfectly flat under deep zoom. Ported from the
// PROCEDURE_CHECKERS branch of calcPoint.
func checkersIterationCount(c complex128) int {
	const resolution = math.Pi

	re, im := real(c), imag(c)
	vertical := int(im/resolution)%2 == 0
	horizontal := int(re/resolution)%2 == 0
	result := horizontal != vertical
	if (im < 0) != (re < 0) {
		result = !result
	}

	transRe := re - float64(int(re/resolution))*resolution
	transIm := im - float64(int(im/resolution))*resolution
	if transRe < 0 {
		transRe += resolution
	}
	if transIm < 0 {
		transIm += resolution
	}

	underInc := transIm < transRe
	underDec := transIm < resolution-transRe

	var ref complex128
	switch {
	case underInc && underDec:
		ref = complex(0.5*resolution, 0)
	case underInc && !underDec:
		ref = complex(resolution, 0.5*resolution)
	case !underInc && underDec:
		ref = complex(0, 0.5*resolution)
	default:
		ref = complex(0.5*resolution, resolution)
	}

	dr := transRe - real(ref)
	di := transIm - imag(ref)
	transRefDist := math.Sqrt(dr*dr + di*di)
	distLog := math.Log(transRefDist)
	resFactors := int(distLog/resolution - 0.5)
	if resFactors%2 != 0 {
		result = !result
	}

	if result {
		return 503
	}
	return 53
}

// testControlIterationCount runs a fixed, shallow 100-iteration M2 loop
// irrespective of the canvas's real maxIters, a debugging aid ported
// from PROCEDURE_TEST_CONTROL.
func testControlIterationCount(c complex128) int {
	const thisMaxIters = 100
	cr, ci := real(c), imag(c)
	var zr, zi, zrsqr, zisqr float64
	iterationCount := 0
	for zrsqr+zisqr <= 4.0 && iterationCount < thisMaxIters {
		zi = zr*zi*2 + ci
		zr = zrsqr - zisqr + cr
		zrsqr, zisqr = zr*zr, zi*zi
		iterationCount++
	}
	return iterationCount
}

type biBox struct{ xFrom, xTo, yFrom, yTo float64 }

func (b biBox) contains(c complex128) bool {
	re, im := real(c), imag(c)
	return re >= b.xFrom && re <= b.xTo && im >= b.yFrom && im <= b.yTo
}

// businessIntelligenceIterationCount draws four bar-chart bars and an
// x/y axis over the plane, an easter egg ported verbatim in spirit from
// PROCEDURE_BI. It hardcodes the "IT department" bar heights; the
// original's menu lets a user pick between four departments, which is
// out of scope for a headless render engine and left as a constant set.
func businessIntelligenceIterationCount(c complex128) int {
	const axisThickness = 0.005
	yAxis := biBox{xFrom: 0, xTo: axisThickness, yFrom: 0, yTo: 1}
	xAxis := biBox{xFrom: 0, xTo: 1, yFrom: 0, yTo: axisThickness}

	const spacing = 0.02
	const thickness = 0.2
	barHeights := [4]float64{0.6, 0.7, 0.2, 0.9}
	bars := make([]biBox, 4)
	prevTo := yAxis.xTo
	for i := range bars {
		from := prevTo + spacing
		bars[i] = biBox{xFrom: from, xTo: from + thickness, yFrom: 0, yTo: barHeights[i]}
		prevTo = bars[i].xTo
	}

	if yAxis.contains(c) || xAxis.contains(c) {
		return 1
	}
	for _, bar := range bars {
		if bar.contains(c) {
			return 2
		}
	}
	return 3
}
