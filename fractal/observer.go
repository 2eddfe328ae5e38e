package fractal

// Observer receives lifecycle notifications from a Canvas, mirroring the
// callback surface ExploreFractals.cpp wires up between FractalCanvas and
// the Win32 window (render_started/render_finished/parameters_changed/
// etc in spec.md section 6.4). Every method may be called from whatever
// goroutine drives the canvas; implementations that touch shared UI
// state must synchronize internally.
//
// A nil Observer is never called: canvas methods check before invoking
// it, so callers that don't need progress reporting (batch image export,
// tests) can simply omit one.
type Observer interface {
	RenderStarted(r *Render)
	RenderFinished(r *Render)
	BitmapRenderStarted(c *Canvas, bitmapRenderID int64)
	BitmapRenderFinished(c *Canvas, bitmapRenderID int64)
	ParametersChanged(c *Canvas, sourceTag string)
	CanvasSizeChanged(c *Canvas)
	CanvasResizeFailed(c *Canvas, err error)
	DrawBitmap(c *Canvas)
	ShowProgress(c *Canvas, guessedFraction float64)
}

// NopObserver implements Observer with no-op methods. Embedding it lets
// callers override only the notifications they care about.
type NopObserver struct{}

func (NopObserver) RenderStarted(r *Render)                            {}
func (NopObserver) RenderFinished(r *Render)                           {}
func (NopObserver) BitmapRenderStarted(c *Canvas, bitmapRenderID int64)  {}
func (NopObserver) BitmapRenderFinished(c *Canvas, bitmapRenderID int64) {}
func (NopObserver) ParametersChanged(c *Canvas, sourceTag string)       {}
func (NopObserver) CanvasSizeChanged(c *Canvas)                        {}
func (NopObserver) CanvasResizeFailed(c *Canvas, err error)             {}
func (NopObserver) DrawBitmap(c *Canvas)                               {}
func (NopObserver) ShowProgress(c *Canvas, guessedFraction float64)     {}
