package fractal

import (
	"image/color"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// IterData is the per-sample result the render engine produces: an
// iteration count, whether it was inferred by Mariani-Silver guessing
// rather than computed, and whether it's inside the set (iteration
// count hit maxIters).
type IterData struct {
	IterationCount int
	Guessed        bool
	InMinibrot     bool
}

// maximumBitmapSize is 2^31, the largest screenWidth*screenHeight this
// package will allocate for.
const maximumBitmapSize = 1 << 31

// ChangeResult reports the outcome of Canvas.ChangeParameters.
type ChangeResult int

const (
	ChangeSuccess ChangeResult = iota
	ChangeOutOfRange
	ChangeOutOfMemory
)

// Canvas owns the iteration and bitmap double buffer for one fractal
// view: FractalCanvas in spec.md section 4.3. It tracks monotonic render
// and bitmap-render IDs so in-flight workers can detect cancellation,
// and it serializes resize/parameter changes against any in-flight
// renders.
type Canvas struct {
	mu     sync.RWMutex // guards params, iters, bitmap during resize/changeParameters
	params *Parameters
	iters  []IterData
	bitmap []color.RGBA

	// activity is held for read by EnqueueRender/EnqueueBitmapRender for
	// their entire duration, and for write by resize before it touches
	// iters/bitmap/params. This is the Go analogue of FractalCanvas.cpp's
	// "renders" mutex, which every render thread holds for its whole
	// lifetime (FractalCanvas.cpp:130-132) so a resize genuinely blocks
	// until every in-flight render has finished, rather than racing it.
	activity sync.RWMutex

	lastRenderID        atomic.Int64
	activeRenders       atomic.Int32
	lastBitmapRenderID  atomic.Int64
	activeBitmapRenders atomic.Int32

	// NumberOfThreads bounds how many goroutines a single render may
	// have concurrently live at once (spec.md section 5's N = hardware
	// threads + 4).
	NumberOfThreads int

	// drawMu serializes bitmap presentation the way the original's
	// global drawingBitmap mutex does, but scoped per-canvas per
	// spec.md section 9's note that there's no reason two canvases
	// must serialize draws globally.
	drawMu sync.Mutex

	Observer Observer
	Logger   *log.Logger
}

// NewCanvas allocates a canvas for the given parameters. numberOfThreads
// should usually be runtime.NumCPU()+4; see NumberOfWorkerThreads.
func NewCanvas(params *Parameters, numberOfThreads int, observer Observer) (*Canvas, error) {
	c := &Canvas{
		NumberOfThreads: numberOfThreads,
		Observer:        observer,
		Logger:          log.Default(),
	}
	c.params = NewParameters()
	if _, err := c.params.Resize(1, 0, 0); err != nil {
		return nil, err
	}
	if _, err := c.ChangeParameters(params, "init"); err != nil {
		return nil, err
	}
	return c, nil
}

// Params returns the live parameters snapshot. Callers must not mutate
// the fields of the returned value directly; use the Set* methods or
// ChangeParameters.
func (c *Canvas) Params() *Parameters {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.params
}

// ChangeParameters resizes if necessary and then swaps in newParams. If
// the resize fails, the canvas keeps its previous parameters and buffers.
func (c *Canvas) ChangeParameters(newParams *Parameters, sourceTag string) (ChangeResult, error) {
	changed, err := c.resize(newParams.Oversampling(), newParams.TargetWidth(), newParams.TargetHeight())
	if err != nil {
		if ferr, ok := err.(*Error); ok {
			switch ferr.Kind {
			case OutOfRange, BitmapTooLarge:
				return ChangeOutOfRange, err
			case OutOfMemory:
				return ChangeOutOfMemory, err
			}
		}
		return ChangeOutOfMemory, err
	}
	c.mu.Lock()
	c.params = newParams
	c.mu.Unlock()
	if changed && c.Observer != nil {
		c.Observer.CanvasSizeChanged(c)
	}
	if c.Observer != nil {
		c.Observer.ParametersChanged(c, sourceTag)
	}
	return ChangeSuccess, nil
}

// Resize reallocates the iteration and bitmap buffers for new
// dimensions. It cancels and waits for any in-flight renders first.
func (c *Canvas) Resize(newOversampling, newScreenWidth, newScreenHeight int) error {
	_, err := c.resize(newOversampling, newScreenWidth, newScreenHeight)
	if err != nil && c.Observer != nil {
		c.Observer.CanvasResizeFailed(c, err)
	}
	return err
}

func (c *Canvas) resize(newOversampling, newScreenWidth, newScreenHeight int) (bool, error) {
	c.mu.RLock()
	oldWidth, oldHeight := 0, 0
	if c.params != nil {
		oldWidth, oldHeight = c.params.Width(), c.params.Height()
	}
	oldScreenW, oldScreenH := 0, 0
	if c.params != nil {
		oldScreenW, oldScreenH = c.params.TargetWidth(), c.params.TargetHeight()
	}
	c.mu.RUnlock()

	newWidth := newScreenWidth * newOversampling
	newHeight := newScreenHeight * newOversampling
	bitmapSize := int64(newScreenWidth) * int64(newScreenHeight)

	reallocBitmap := newScreenWidth != oldScreenW || newScreenHeight != oldScreenH
	reallocIters := newWidth != oldWidth || newHeight != oldHeight

	if !reallocBitmap && !reallocIters {
		return false, nil
	}

	if newWidth <= 0 || newHeight <= 0 {
		return false, newError(OutOfRange, "width=%d height=%d must be positive", newWidth, newHeight)
	}
	if bitmapSize > maximumBitmapSize {
		return false, newError(BitmapTooLarge, "screen size %dx%d exceeds the maximum bitmap size", newScreenWidth, newScreenHeight)
	}

	// Cancelling is cooperative and non-blocking: in-flight workers only
	// notice the new render id at their next r.live() check, so it alone
	// doesn't guarantee they've stopped touching iters/bitmap. activity
	// does: EnqueueRender/EnqueueBitmapRender hold it for read for their
	// whole duration, so Lock here blocks until every render and bitmap
	// render live at the time of the call has actually returned.
	c.CancelRender()
	c.activity.Lock()
	defer c.activity.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.params != nil {
		if _, err := c.params.Resize(newOversampling, newScreenWidth, newScreenHeight); err != nil {
			return false, err
		}
	}

	if reallocIters {
		c.iters = make([]IterData, newWidth*newHeight)
	}
	if reallocBitmap {
		c.bitmap = make([]color.RGBA, newScreenWidth*newScreenHeight)
	}
	return true, nil
}

// CancelRender bumps the live render id so in-flight workers observe a
// mismatch and stop. It never blocks.
func (c *Canvas) CancelRender() int64 {
	return c.lastRenderID.Add(1)
}

func (c *Canvas) cancelBitmapRender() int64 {
	return c.lastBitmapRenderID.Add(1)
}

// LastRenderID returns the currently-live render id.
func (c *Canvas) LastRenderID() int64 { return c.lastRenderID.Load() }

// bitmapIndexFor implements the bottom-up row addressing rule from
// spec.md section 4.3: bitmap_index(px,py) = targetWidth*(targetHeight-py-1)+px,
// taking the target dimensions explicitly so callers can use a snapshot
// that can't be invalidated by a concurrent resize.
func bitmapIndexFor(targetWidth, targetHeight, px, py int) int {
	return targetWidth*(targetHeight-py-1) + px
}

// iterIndexFor implements the sample-grouping addressing rule from
// spec.md section 4.3, keeping the oversampling*oversampling samples of
// one bitmap pixel contiguous. Like bitmapIndexFor, it takes its
// dimensions explicitly rather than reading them live.
func iterIndexFor(oversampling, targetHeight, x, y int) int {
	s := oversampling
	dx := x % s
	dy := y % s
	ix := x / s
	iy := y / s
	return (ix*targetHeight+iy)*s*s + dy*s + dx
}

// bitmapIndex and iterIndex below read the canvas's live parameters:
// they back GetIterData/GetIterationCount/SetPixel, which are meant for
// callers outside of an in-flight render (tests, and any inspection
// done between renders) where there's nothing else to race against. A
// Render addresses through its own iterIndex/setPixel (render.go)
// instead, using the dimensions it captured at render start, so a
// concurrent resize reallocating iters/bitmap to new dimensions can
// never make it compute an address into the old, now wrong-sized shape.

func (c *Canvas) bitmapIndex(px, py int) int {
	return bitmapIndexFor(c.params.TargetWidth(), c.params.TargetHeight(), px, py)
}

func (c *Canvas) iterIndex(x, y int) int {
	return iterIndexFor(c.params.Oversampling(), c.params.TargetHeight(), x, y)
}

// GetIterData reads the sample at (x,y) in the oversampled iteration
// buffer.
func (c *Canvas) GetIterData(x, y int) IterData {
	return c.iters[c.iterIndex(x, y)]
}

// GetIterationCount is a convenience accessor for just the iteration
// count at (x,y).
func (c *Canvas) GetIterationCount(x, y int) int {
	return c.iters[c.iterIndex(x, y)].IterationCount
}

// SetPixel writes one sample's result. No synchronization guards this
// write: correctness depends on the invariant (spec.md section 5) that
// no two workers of the same render ever target the same sample.
func (c *Canvas) SetPixel(x, y, iterationCount int, guessed bool) {
	idx := c.iterIndex(x, y)
	c.iters[idx] = IterData{
		IterationCount: iterationCount,
		Guessed:        guessed,
		InMinibrot:     iterationCount == c.params.MaxIters(),
	}
}

// Map delegates to the parameters' plane mapping.
func (c *Canvas) Map(x, y int) complex128 {
	return c.params.Map(x, y)
}

// Gradient samples the active palette at an iteration count.
func (c *Canvas) Gradient(iterationCount int) color.RGBA {
	return gradientColor(c.params.gradientColors, iterationCount, c.params.gradientSpeedFactor, c.params.gradientOffsetTerm)
}

// Bitmap returns the current bitmap buffer. The slice is shared with the
// canvas; callers must not retain it across a resize.
func (c *Canvas) Bitmap() []color.RGBA {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bitmap
}

// EnqueueRender dispatches a new Render and runs it. headless skips the
// live-refresh goroutine the interactive presentation layer would
// otherwise want (spec.md section 4.3, "create_new_render").
func (c *Canvas) EnqueueRender(headless bool) *Render {
	renderID := c.CancelRender()

	// Held for read for the entire render, including every goroutine it
	// spawns: resize's c.activity.Lock() can't proceed, and so can't
	// reallocate iters/bitmap/params, until this returns.
	c.activity.RLock()
	defer c.activity.RUnlock()

	c.activeRenders.Add(1)
	defer c.activeRenders.Add(-1)

	c.mu.RLock()
	params := c.params
	c.mu.RUnlock()

	r := newRender(c, params, renderID)

	if c.Observer != nil {
		c.Observer.RenderStarted(r)
	}

	var refreshDone chan struct{}
	var refreshWG sync.WaitGroup
	if !headless {
		refreshDone = make(chan struct{})
		refreshWG.Add(1)
		go func() {
			defer refreshWG.Done()
			c.liveRefresh(r, refreshDone)
		}()
	}

	r.execute()

	if refreshDone != nil {
		close(refreshDone)
		refreshWG.Wait()
	}

	if c.Observer != nil {
		c.Observer.RenderFinished(r)
	}
	return r
}

// EnqueueBitmapRender runs only the colorizer over the existing
// iteration buffer, used for gradient-only changes that don't need
// re-iterating any sample.
func (c *Canvas) EnqueueBitmapRender(multithreaded, highlightGuessed bool) {
	c.activity.RLock()
	defer c.activity.RUnlock()

	bitmapRenderID := c.lastBitmapRenderID.Add(1)
	c.activeBitmapRenders.Add(1)
	defer c.activeBitmapRenders.Add(-1)
	if c.Observer != nil {
		c.Observer.BitmapRenderStarted(c, bitmapRenderID)
	}

	c.mu.RLock()
	screenWidth := c.params.TargetWidth()
	screenHeight := c.params.TargetHeight()
	c.mu.RUnlock()

	if multithreaded {
		renderBitmapTiled(c, highlightGuessed, bitmapRenderID, c.NumberOfThreads)
	} else {
		renderBitmapRect(c, highlightGuessed, 0, screenWidth, 0, screenHeight, bitmapRenderID)
	}

	if c.Observer != nil {
		c.Observer.BitmapRenderFinished(c, bitmapRenderID)
		c.Observer.DrawBitmap(c)
	}
}

// liveRefresh periodically asks the observer to blit the bitmap while a
// render is in flight, the Go analogue of refreshDuringBitmapRender's
// ~100ms sleep loop (spec.md section 5).
func (c *Canvas) liveRefresh(r *Render, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}
		if c.lastRenderID.Load() != r.renderID {
			return
		}
		c.drawMu.Lock()
		if c.lastRenderID.Load() == r.renderID && c.Observer != nil {
			c.Observer.DrawBitmap(c)
			total := r.Width() * r.Height()
			if total > 0 {
				c.Observer.ShowProgress(c, float64(r.GuessedPixelCount()+r.CalculatedPixelCount())/float64(total))
			}
		}
		c.drawMu.Unlock()
		select {
		case <-done:
			return
		case <-time.After(100 * time.Millisecond):
		}
	}
}
