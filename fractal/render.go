package fractal

import (
	"math"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	calculated = false
	guessed    = true
)

// maximumTileSize is the Mariani-Silver tile area below which a tile is
// iterated directly instead of subdivided further.
const maximumTileSize = 50

// newTileThreadMinPixels is the smallest tile width/height, in screen
// pixels, for which a subdivision is still allowed to spawn a new
// goroutine. Below it, split lines are no longer snapped to whole output
// pixels, so two tiles can share an output pixel and would race when
// finishTile colorizes it; subdivision continues on the calling
// goroutine instead.
const newTileThreadMinPixels = 3

// NumberOfWorkerThreads mirrors ExploreFractals.cpp's
// thread::hardware_concurrency()+4 heuristic, with a fallback of 12 for
// environments hardware_concurrency can't read (there it returns 0; here
// that's numCPU<1, which cannot actually happen, but the fallback is kept
// for parity).
func NumberOfWorkerThreads(numCPU int) int {
	if numCPU < 1 {
		return 12
	}
	return numCPU + 4
}

// Render is one Mariani-Silver rasterization pass over a Canvas's
// iteration buffer, keyed to a monotonically increasing render ID so
// in-flight goroutines can tell when the canvas has moved on and stop
// cheaply instead of being forcibly killed.
type Render struct {
	canvas   *Canvas
	renderID int64

	width, height             int
	screenWidth, screenHeight int
	oversampling              int

	formula         Formula
	julia           bool
	juliaSeed       complex128
	maxIters        int
	escapeRadius    float64
	inflections     []complex128
	inflectionPower int

	sem   *semaphore.Weighted
	group *errgroup.Group

	guessedPixelCount    atomic.Int64
	calculatedPixelCount atomic.Int64
	pixelGroupings       atomic.Int64
	computedIterations   atomic.Int64

	startTime time.Time
	endTime   time.Time
	finished  atomic.Bool
}

func newRender(c *Canvas, p *Parameters, renderID int64) *Render {
	threads := c.NumberOfThreads
	if threads < 1 {
		threads = 1
	}
	g := &errgroup.Group{}
	g.SetLimit(threads)
	return &Render{
		canvas:          c,
		renderID:        renderID,
		width:           p.Width(),
		height:          p.Height(),
		screenWidth:     p.TargetWidth(),
		screenHeight:    p.TargetHeight(),
		oversampling:    p.Oversampling(),
		formula:         p.FormulaValue(),
		julia:           p.Julia(),
		juliaSeed:       p.JuliaSeed(),
		maxIters:        p.MaxIters(),
		escapeRadius:    p.FormulaValue().EscapeRadius,
		inflections:     p.Inflections(),
		inflectionPower: p.FormulaValue().InflectionPower,
		sem:             semaphore.NewWeighted(int64(threads)),
		group:           g,
	}
}

func (r *Render) RenderID() int64 { return r.renderID }
func (r *Render) Finished() bool  { return r.finished.Load() }
func (r *Render) Width() int      { return r.width }
func (r *Render) Height() int     { return r.height }
func (r *Render) GuessedPixelCount() int64    { return r.guessedPixelCount.Load() }
func (r *Render) CalculatedPixelCount() int64 { return r.calculatedPixelCount.Load() }
func (r *Render) ComputedIterations() int64   { return r.computedIterations.Load() }

// Elapsed returns the wall-clock duration of the render, live while it's
// still running.
func (r *Render) Elapsed() time.Duration {
	if !r.finished.Load() {
		return time.Since(r.startTime)
	}
	return r.endTime.Sub(r.startTime)
}

// live reports whether this render is still the canvas's active one.
// Every recursive step checks this so a cancelled render unwinds quickly
// instead of continuing to burn CPU on a view nobody will see.
func (r *Render) live() bool {
	return r.canvas.lastRenderID.Load() == r.renderID
}

// iterIndex addresses the iteration buffer using this render's own
// captured oversampling/screenHeight snapshot rather than the canvas's
// live parameters, so a resize that reallocates iters to new dimensions
// after this render started can never make it compute a stale address.
// Canvas.activity's read lock, held for this render's whole lifetime,
// guarantees the resize that would invalidate those dimensions can't
// run concurrently with these writes in the first place; this is the
// second, independent half of that guarantee.
func (r *Render) iterIndex(x, y int) int {
	return iterIndexFor(r.oversampling, r.screenHeight, x, y)
}

// setPixel writes one sample's result directly into the canvas's
// iteration buffer at this render's own address. No synchronization
// guards the write: correctness depends on the invariant (spec.md
// section 5) that no two workers of the same render ever target the
// same sample.
func (r *Render) setPixel(x, y, iterationCount int, guessed bool) {
	r.canvas.iters[r.iterIndex(x, y)] = IterData{
		IterationCount: iterationCount,
		Guessed:        guessed,
		InMinibrot:     iterationCount == r.maxIters,
	}
}

// getIterationCount reads back a sample this render (or an earlier
// coarse pass of it) already wrote, addressed the same way setPixel
// wrote it.
func (r *Render) getIterationCount(x, y int) int {
	return r.canvas.iters[r.iterIndex(x, y)].IterationCount
}

// mapWithTransformations runs the full pixel-to-plane pipeline for
// procedures other than power-2 Mandelbrot, which has its own inlined
// inflection step for speed (inflectionsM2).
func (r *Render) mapWithTransformations(p *Parameters, x, y int) complex128 {
	return p.PostTransformation(p.ApplyInflections(p.PreTransformation(p.Rotation(p.Map(x, y)))))
}

// inflectionsM2 is the doubling-formula specialization of
// Parameters.ApplyInflections for inflection power 2, avoiding a
// cmplx.Pow call per inflection per pixel in the hottest path.
func inflectionsM2(c complex128, inflections []complex128) complex128 {
	zr, zi := real(c), imag(c)
	for i := len(inflections) - 1; i >= 0; i-- {
		cr, ci := real(inflections[i]), imag(inflections[i])
		zrsqr := zr * zr
		zisqr := zi * zi
		zi = zr*zi*2 + ci
		zr = zrsqr - zisqr + cr
	}
	return complex(zr, zi)
}

// calcPoint iterates a single sample and writes its result to the
// canvas, returning the iteration count so callers (calcPixelVector) can
// detect a monochromatic block without a second buffer read.
func (r *Render) calcPoint(params *Parameters, i, j int) int {
	iterationCount := 0

	switch {
	case r.formula.ID == ProcedureM2:
		c := params.PostTransformation(inflectionsM2(params.PreTransformation(params.Rotation(params.Map(i, j))), r.inflections))

		var cr, ci, zr, zi, zrsqr, zisqr float64
		if r.julia {
			cr, ci = real(r.juliaSeed), imag(r.juliaSeed)
			zr, zi = real(c), imag(c)
			zrsqr, zisqr = zr*zr, zi*zi
		} else {
			zx, zy := real(c), imag(c)

			cardioidX, cardioidY := zx-0.25, zy*zy
			q := cardioidX*cardioidX + cardioidY
			if 4*q*(q+cardioidX) < cardioidY {
				r.setPixel(i, j, r.maxIters, calculated)
				r.calculatedPixelCount.Add(1)
				return r.maxIters
			}
			bulbX := zx + 1
			if bulbX*bulbX+zy*zy < 0.0625 {
				r.setPixel(i, j, r.maxIters, calculated)
				r.calculatedPixelCount.Add(1)
				return r.maxIters
			}

			cr, ci = zx, zy
		}
		for zrsqr+zisqr <= 4.0 && iterationCount < r.maxIters {
			zi = zr*zi*2 + ci
			zr = zrsqr - zisqr + cr
			zrsqr, zisqr = zr*zr, zi*zi
			iterationCount++
		}

	case r.formula.ID == ProcedureM3 || r.formula.ID == ProcedureM4 || r.formula.ID == ProcedureM5 ||
		r.formula.ID == ProcedureHighPower || r.formula.ID == ProcedureBurningShip:
		var c, z complex128
		if r.julia {
			c = r.juliaSeed
			z = r.mapWithTransformations(params, i, j)
		} else {
			c = r.mapWithTransformations(params, i, j)
		}
		for real(z)*real(z)+imag(z)*imag(z) < r.escapeRadius && iterationCount < r.maxIters {
			z = escapeTimeFormula(r.formula.ID, z, c)
			iterationCount++
		}

	case r.formula.ID == ProcedureCheckers:
		iterationCount = checkersIterationCount(params.PostTransformation(inflectionsM2(params.PreTransformation(params.Rotation(params.Map(i, j))), r.inflections)))

	case r.formula.ID == ProcedureTestControl:
		iterationCount = testControlIterationCount(r.mapWithTransformations(params, i, j))

	case r.formula.ID == ProcedureTripleMatchmaker:
		var c, z complex128
		if r.julia {
			c = r.juliaSeed
			z = r.mapWithTransformations(params, i, j)
		} else {
			c = r.mapWithTransformations(params, i, j)
		}
		sum := 0.0
		for k := 2; k < r.maxIters; k++ {
			z = escapeTimeFormula(ProcedureTripleMatchmaker, z, c)
			sum += cmplxAbs(z)
		}
		iterationCount = int(sum)

	case r.formula.ID == ProcedureBI:
		iterationCount = businessIntelligenceIterationCount(r.mapWithTransformations(params, i, j))
	}

	r.setPixel(i, j, iterationCount, calculated)
	r.calculatedPixelCount.Add(1)
	r.computedIterations.Add(int64(iterationCount))
	return iterationCount
}

func cmplxAbs(z complex128) float64 {
	return math.Hypot(real(z), imag(z))
}

// pixel is one (x,y) sample coordinate, the Go analogue of the
// original's flattened (i0,j0,i1,j1,...) int vector.
type pixel struct{ x, y int }

// calcPixelVector iterates every pixel in pixels and reports whether
// they all produced the same iteration count, which lets a caller treat
// an entire boundary line as monochromatic. It bails out immediately,
// without iterating the remainder, if the render has been superseded.
func (r *Render) calcPixelVector(params *Parameters, pixels []pixel) bool {
	if !r.live() {
		return true
	}
	if len(pixels) == 0 {
		return true
	}

	useBatched := hasBatchedKernel && r.formula.ID == ProcedureM2 && len(pixels) >= 4

	same := true
	thisIter := 0
	first := true
	k := 0
	if useBatched {
		for ; k+4 <= len(pixels); k += 4 {
			var batch [4]pixel
			copy(batch[:], pixels[k:k+4])
			counts := r.calcPointBatch4(params, batch)
			for _, n := range counts {
				if first {
					thisIter = n
					first = false
				} else if n != thisIter {
					same = false
				}
			}
		}
	}
	for ; k < len(pixels); k++ {
		n := r.calcPoint(params, pixels[k].x, pixels[k].y)
		if first {
			thisIter = n
			first = false
		} else if n != thisIter {
			same = false
		}
	}
	return same
}

func (r *Render) calcHorizontalLine(params *Parameters, iFrom, iTo, j int) bool {
	pixels := make([]pixel, 0, iTo-iFrom)
	for i := iFrom; i < iTo; i++ {
		pixels = append(pixels, pixel{i, j})
	}
	return r.calcPixelVector(params, pixels)
}

func (r *Render) calcVerticalLine(params *Parameters, jFrom, jTo, i int) bool {
	pixels := make([]pixel, 0, jTo-jFrom)
	for j := jFrom; j < jTo; j++ {
		pixels = append(pixels, pixel{i, j})
	}
	return r.calcPixelVector(params, pixels)
}

func (r *Render) isSameHorizontalLine(iFrom, iTo, j int) bool {
	thisIter := r.getIterationCount(iFrom, j)
	for i := iFrom + 1; i < iTo; i++ {
		if r.getIterationCount(i, j) != thisIter {
			return false
		}
	}
	return true
}

func (r *Render) isSameVerticalLine(jFrom, jTo, i int) bool {
	thisIter := r.getIterationCount(i, jFrom)
	for j := jFrom + 1; j < jTo; j++ {
		if r.getIterationCount(i, j) != thisIter {
			return false
		}
	}
	return true
}

// tileBorders bundles the eight booleans+iteration-counts a
// renderSilverRect call carries about its boundary, the same shape the
// original's long parameter list encodes.
type tileBorders struct {
	sameTop, sameBottom, sameLeft, sameRight             bool
	iterTop, iterBottom, iterLeft, iterRight              int
}

// renderSilverRect recursively subdivides the tile [imin,imax]x[jmin,jmax]
// (inclusive boundary, already computed) using the Mariani-Silver
// guessing rule: a tile whose entire boundary shares one non-zero,
// non-one iteration count is filled with that value without visiting its
// interior. bitmapResponsibility marks that this call (or whichever
// descendant it delegates to) must colorize the tile once its iteration
// counts are final.
func (r *Render) renderSilverRect(params *Parameters, bitmapResponsibility bool, imin, imax, jmin, jmax int, b tileBorders) {
	if !r.live() {
		return
	}

	stopCreatingThreads := (imax-imin)/r.oversampling < newTileThreadMinPixels || (jmax-jmin)/r.oversampling < newTileThreadMinPixels
	passOnBitmapResponsibility := bitmapResponsibility && !stopCreatingThreads

	size := (imax - imin - 1) * (jmax - jmin - 1)

	if b.sameRight && b.sameLeft && b.sameTop && b.sameBottom &&
		b.iterRight == b.iterTop && b.iterTop == b.iterLeft && b.iterLeft == b.iterBottom &&
		b.iterRight != 1 && b.iterRight != 0 {
		for i := imin + 1; i < imax; i++ {
			for j := jmin + 1; j < jmax; j++ {
				r.setPixel(i, j, b.iterLeft, guessed)
			}
		}
		r.guessedPixelCount.Add(int64(size))
		r.finishTile(params, false, imin, imax, jmin, jmax)
		return
	}

	if size < maximumTileSize {
		pixels := make([]pixel, 0, size)
		for i := imin + 1; i < imax; i++ {
			for j := jmin + 1; j < jmax; j++ {
				pixels = append(pixels, pixel{i, j})
			}
		}
		r.calcPixelVector(params, pixels)
		r.finishTile(params, false, imin, imax, jmin, jmax)
		return
	}

	if imax-imin < jmax-jmin {
		r.splitHorizontally(params, passOnBitmapResponsibility, stopCreatingThreads, imin, imax, jmin, jmax, b)
	} else {
		r.splitVertically(params, passOnBitmapResponsibility, stopCreatingThreads, imin, imax, jmin, jmax, b)
	}

	r.finishTile(params, passOnBitmapResponsibility, imin, imax, jmin, jmax)
}

func (r *Render) splitHorizontally(params *Parameters, passOn, stopCreatingThreads bool, imin, imax, jmin, jmax int, b tileBorders) {
	j := jmin + (jmax-jmin)/2
	if !stopCreatingThreads {
		j -= j % r.oversampling
	}

	sameNewLine := r.calcHorizontalLine(params, imin+1, imax, j)
	iterNewLine := r.getIterationCount(imin+1, j)

	sameRightTop, sameRightBottom := true, true
	sameLeftTop, sameLeftBottom := true, true
	iterRightTop := r.getIterationCount(imax, jmin)
	iterRightBottom := r.getIterationCount(imax, j)
	iterLeftTop := r.getIterationCount(imin, jmin)
	iterLeftBottom := r.getIterationCount(imin, j)

	if !b.sameRight {
		sameRightTop = r.isSameVerticalLine(jmin, j, imax)
		sameRightBottom = r.isSameVerticalLine(j, jmax, imax)
	}
	if !b.sameLeft {
		sameLeftTop = r.isSameVerticalLine(jmin, j, imin)
		sameLeftBottom = r.isSameVerticalLine(j, jmax, imin)
	}

	top := tileBorders{b.sameTop, sameNewLine, sameLeftTop, sameRightTop, b.iterTop, iterNewLine, iterLeftTop, iterRightTop}
	bottom := tileBorders{sameNewLine, b.sameBottom, sameLeftBottom, sameRightBottom, iterNewLine, b.iterBottom, iterLeftBottom, iterRightBottom}

	r.forkOrInline(params, !stopCreatingThreads, passOn,
		func() { r.renderSilverRect(params, passOn, imin, imax, jmin, j, top) },
		func() { r.renderSilverRect(params, passOn, imin, imax, j, jmax, bottom) },
	)
}

func (r *Render) splitVertically(params *Parameters, passOn, stopCreatingThreads bool, imin, imax, jmin, jmax int, b tileBorders) {
	i := imin + (imax-imin)/2
	if !stopCreatingThreads {
		i -= i % r.oversampling
	}

	sameNewLine := r.calcVerticalLine(params, jmin+1, jmax, i)
	iterNewLine := r.getIterationCount(i, jmin+1)

	sameLeftTop, sameRightTop := true, true
	sameLeftBottom, sameRightBottom := true, true
	iterRightTop := r.getIterationCount(i, jmin)
	iterLeftTop := r.getIterationCount(imin, jmin)
	iterRightBottom := r.getIterationCount(i, jmax)
	iterLeftBottom := r.getIterationCount(imin, jmax)

	if !b.sameTop {
		sameLeftTop = r.isSameHorizontalLine(imin, i, jmin)
		sameRightTop = r.isSameHorizontalLine(i, imax, jmin)
	}
	if !b.sameBottom {
		sameLeftBottom = r.isSameHorizontalLine(imin, i, jmax)
		sameRightBottom = r.isSameHorizontalLine(i, imax, jmax)
	}

	left := tileBorders{sameLeftTop, sameLeftBottom, b.sameLeft, sameNewLine, iterLeftTop, iterLeftBottom, b.iterLeft, iterNewLine}
	right := tileBorders{sameRightTop, sameRightBottom, sameNewLine, b.sameRight, iterRightTop, iterRightBottom, iterNewLine, b.iterRight}

	r.forkOrInline(params, !stopCreatingThreads, passOn,
		func() { r.renderSilverRect(params, passOn, imin, i, jmin, jmax, left) },
		func() { r.renderSilverRect(params, passOn, i, imax, jmin, jmax, right) },
	)
}

// forkOrInline runs "first" on a new goroutine bounded by the render's
// worker semaphore and "second" inline, the Go equivalent of the
// original spawning std::thread for one half and recursing directly into
// the other. When the semaphore has no capacity left it falls back to
// running both sequentially rather than blocking the caller.
func (r *Render) forkOrInline(params *Parameters, allowFork bool, passOn bool, first, second func()) {
	if allowFork && r.sem.TryAcquire(1) {
		r.group.Go(func() error {
			defer r.sem.Release(1)
			first()
			return nil
		})
		second()
		return
	}
	first()
	second()
}

// finishTile colorizes the tile's samples into the canvas bitmap once
// its iteration counts are known, unless a descendant already took that
// responsibility.
func (r *Render) finishTile(params *Parameters, passedOn bool, imin, imax, jmin, jmax int) {
	if passedOn {
		return
	}
	r.pixelGroupings.Add(2)

	xBorderCorrection := 0
	if imax != r.width-1 {
		xBorderCorrection = 1
	}
	yBorderCorrection := 0
	if jmax != r.height-1 {
		yBorderCorrection = 1
	}

	xFrom := imin / r.oversampling
	xTo := (imax-xBorderCorrection)/r.oversampling + 1
	yFrom := jmin / r.oversampling
	yTo := (jmax-yBorderCorrection)/r.oversampling + 1

	renderBitmapRect(r.canvas, false, xFrom, xTo, yFrom, yTo, r.canvas.lastBitmapRenderID.Load())
}

// execute runs one full Mariani-Silver pass: a coarse raster of
// sqrt(threads) x sqrt(threads) tiles is iterated first so that tile
// boundaries are known, then each tile is recursively subdivided
// concurrently.
func (r *Render) execute() {
	if !r.live() {
		return
	}
	r.startTime = time.Now()
	defer func() {
		r.endTime = time.Now()
		r.finished.Store(true)
	}()

	params := r.canvas.Params()

	imin, imax := 0, r.width-1
	jmin, jmax := 0, r.height-1

	tiles := int(math.Sqrt(float64(r.canvas.NumberOfThreads)))
	if tiles < 1 {
		tiles = 1
	}

	widths := make([]int, tiles+1)
	heights := make([]int, tiles+1)
	widthStep := r.width / tiles
	heightStep := r.height / tiles
	for k := 0; k < tiles; k++ {
		widths[k] = k * widthStep
		heights[k] = k * heightStep
	}
	widths[tiles] = imax
	heights[tiles] = jmax

	// Compute the coarse raster of tile boundary lines concurrently.
	raster := &errgroup.Group{}
	raster.SetLimit(r.canvas.NumberOfThreads)
	for lineH := 0; lineH < tiles; lineH++ {
		for lineV := 0; lineV < tiles; lineV++ {
			lineH, lineV := lineH, lineV
			raster.Go(func() error {
				if !r.live() {
					return nil
				}
				r.calcHorizontalLine(params, widths[lineH]+1, widths[lineH+1], heights[lineV])
				r.calcVerticalLine(params, heights[lineV], heights[lineV+1], widths[lineH])
				return nil
			})
		}
	}
	for lineH := 0; lineH < tiles; lineH++ {
		lineH := lineH
		raster.Go(func() error {
			r.calcHorizontalLine(params, widths[lineH], widths[lineH+1], jmax)
			return nil
		})
	}
	for lineV := 0; lineV < tiles; lineV++ {
		lineV := lineV
		raster.Go(func() error {
			r.calcVerticalLine(params, heights[lineV], heights[lineV+1], imax)
			return nil
		})
	}
	raster.Wait()
	r.calcPoint(params, imax, jmax)

	type lineEq struct{ horiz, vert bool }
	isSame := make([][]lineEq, tiles+1)
	for i := range isSame {
		isSame[i] = make([]lineEq, tiles+1)
	}
	for lineH := 0; lineH < tiles; lineH++ {
		for lineV := 0; lineV < tiles; lineV++ {
			isSame[lineH][lineV] = lineEq{
				horiz: r.isSameHorizontalLine(widths[lineH], widths[lineH+1], heights[lineV]),
				vert:  r.isSameVerticalLine(heights[lineV], heights[lineV+1], widths[lineH]),
			}
		}
	}
	for lineH := 0; lineH < tiles; lineH++ {
		isSame[lineH][tiles] = lineEq{horiz: r.isSameHorizontalLine(widths[lineH], widths[lineH+1], jmax)}
	}
	for lineV := 0; lineV < tiles; lineV++ {
		isSame[tiles][lineV] = lineEq{vert: r.isSameVerticalLine(heights[lineV], heights[lineV+1], imax)}
	}

	tileGroup := &errgroup.Group{}
	tileGroup.SetLimit(r.canvas.NumberOfThreads)
	for lineH := 0; lineH < tiles; lineH++ {
		for lineV := 0; lineV < tiles; lineV++ {
			lineH, lineV := lineH, lineV
			tileGroup.Go(func() error {
				thisImin, thisImax := widths[lineH], widths[lineH+1]
				thisJmin, thisJmax := heights[lineV], heights[lineV+1]

				b := tileBorders{
					sameTop:    isSame[lineH][lineV].horiz,
					sameBottom: isSame[lineH][lineV+1].horiz,
					sameLeft:   isSame[lineH][lineV].vert,
					sameRight:  isSame[lineH+1][lineV].vert,
					iterTop:    r.getIterationCount(thisImax, thisJmin),
					iterBottom: r.getIterationCount(thisImax, thisJmax),
					iterLeft:   r.getIterationCount(thisImin, thisJmax),
					iterRight:  r.getIterationCount(thisImax, thisJmax),
				}
				r.renderSilverRect(params, true, thisImin, thisImax, thisJmin, thisJmax, b)
				return nil
			})
		}
	}
	tileGroup.Wait()
	r.group.Wait()
}
