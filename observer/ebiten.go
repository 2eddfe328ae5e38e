package observer

import (
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"golang.org/x/image/font/basicfont"

	"github.com/dinkydauset/explorefractals/fractal"
)

// doubleClickWindow is the maximum gap between two left-clicks that
// still counts as a double-click for adding an inflection.
const doubleClickWindow = 350 * time.Millisecond

// Viewer is an ebiten.Game that drives a fractal.Canvas interactively:
// mouse wheel zooms, left-click and drag pans, "J" toggles Julia mode, a
// double-click drops an inflection, and "G" toggles the guessed-pixel
// highlight overlay. It implements fractal.Observer so the canvas can
// tell it when to blit a fresh bitmap.
type Viewer struct {
	canvas *fractal.Canvas
	image  *ebiten.Image

	mu               sync.Mutex
	bitmapDirty      bool
	highlightGuessed bool
	statusLine       string

	dragging      bool
	dragStartX    int
	dragStartY    int
	dragStartCenter complex128

	lastClickAt time.Time
	lastClickX  int
	lastClickY  int
}

// NewViewer creates an interactive viewer bound to canvas. Register it
// as the canvas's Observer before calling ebiten.RunGame(viewer).
func NewViewer(canvas *fractal.Canvas) *Viewer {
	return &Viewer{canvas: canvas}
}

func (v *Viewer) RenderStarted(r *fractal.Render) {
	v.mu.Lock()
	v.statusLine = fmt.Sprintf("rendering (id %d)...", r.RenderID())
	v.mu.Unlock()
}

func (v *Viewer) RenderFinished(r *fractal.Render) {
	v.mu.Lock()
	v.statusLine = fmt.Sprintf("render %d done in %s", r.RenderID(), r.Elapsed())
	v.mu.Unlock()
	v.markDirty()
}

func (v *Viewer) BitmapRenderStarted(c *fractal.Canvas, id int64)  {}
func (v *Viewer) BitmapRenderFinished(c *fractal.Canvas, id int64) { v.markDirty() }
func (v *Viewer) ParametersChanged(c *fractal.Canvas, sourceTag string) {}
func (v *Viewer) CanvasSizeChanged(c *fractal.Canvas)                  {}

func (v *Viewer) CanvasResizeFailed(c *fractal.Canvas, err error) {
	v.mu.Lock()
	v.statusLine = "resize failed: " + err.Error()
	v.mu.Unlock()
}

func (v *Viewer) DrawBitmap(c *fractal.Canvas) { v.markDirty() }

func (v *Viewer) ShowProgress(c *fractal.Canvas, guessedFraction float64) {
	v.mu.Lock()
	v.statusLine = fmt.Sprintf("progress %.0f%%", guessedFraction*100)
	v.mu.Unlock()
}

func (v *Viewer) markDirty() {
	v.mu.Lock()
	v.bitmapDirty = true
	v.mu.Unlock()
}

func (v *Viewer) Update() error {
	params := v.canvas.Params()

	if _, dy := ebiten.Wheel(); dy != 0 {
		x, y := ebiten.CursorPosition()
		center := params.Map(x, y)
		params.SetCenterAndZoomAbsolute(center, params.ZoomLevel()+dy*0.3)
		v.canvas.EnqueueRender(false)
	}

	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		x, y := ebiten.CursorPosition()
		now := time.Now()
		if now.Sub(v.lastClickAt) <= doubleClickWindow && x == v.lastClickX && y == v.lastClickY {
			params.AddInflectionAt(x, y)
			v.canvas.EnqueueRender(false)
			v.lastClickAt = time.Time{}
		} else {
			v.lastClickAt = now
			v.lastClickX, v.lastClickY = x, y
		}
		v.dragStartX, v.dragStartY = x, y
		v.dragStartCenter = params.Center()
		v.dragging = true
	}
	if v.dragging && ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
		x, y := ebiten.CursorPosition()
		dx := (x - v.dragStartX)
		dy := (y - v.dragStartY)
		offset := complex(-float64(dx)*params.PixelWidth(), float64(dy)*params.PixelHeight())
		params.SetCenter(v.dragStartCenter + offset)
		v.canvas.EnqueueRender(false)
	}
	if inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft) {
		v.dragging = false
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyJ) {
		params.ToggleJulia()
		v.canvas.EnqueueRender(false)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyG) {
		v.mu.Lock()
		v.highlightGuessed = !v.highlightGuessed
		v.mu.Unlock()
		v.canvas.EnqueueBitmapRender(true, v.highlightGuessed)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		params.Reset()
		v.canvas.EnqueueRender(false)
	}

	return nil
}

func (v *Viewer) Draw(screen *ebiten.Image) {
	bitmap := v.canvas.Bitmap()
	params := v.canvas.Params()
	width, height := params.TargetWidth(), params.TargetHeight()

	if v.image == nil || v.image.Bounds().Dx() != width || v.image.Bounds().Dy() != height {
		v.image = ebiten.NewImage(width, height)
	}

	v.mu.Lock()
	dirty := v.bitmapDirty
	v.bitmapDirty = false
	status := v.statusLine
	v.mu.Unlock()

	if dirty && len(bitmap) == width*height {
		rgba := image.NewRGBA(image.Rect(0, 0, width, height))
		for py := 0; py < height; py++ {
			for px := 0; px < width; px++ {
				c := bitmap[width*(height-py-1)+px]
				rgba.SetRGBA(px, py, color.RGBA(c))
			}
		}
		v.image.WritePixels(rgba.Pix)
	}

	screen.DrawImage(v.image, nil)
	text.Draw(screen, status, basicfont.Face7x13, 8, 16, color.White)
	text.Draw(screen, fmt.Sprintf("zoom %.4f", params.ZoomLevel()), basicfont.Face7x13, 8, 32, color.White)
}

func (v *Viewer) Layout(outsideWidth, outsideHeight int) (int, int) {
	params := v.canvas.Params()
	return params.TargetWidth(), params.TargetHeight()
}
