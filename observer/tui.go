// Package observer provides fractal.Observer implementations for the
// terminal progress display and the interactive viewer.
package observer

import (
	"fmt"
	"image/color"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dinkydauset/explorefractals/fractal"
)

// tickInterval drives the periodic redraw of the terminal preview,
// independent of how often the canvas actually calls DrawBitmap.
const tickInterval = time.Second / 15

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#663399")).
			Padding(0, 1)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B388FF"))
	helpStyle   = lipgloss.NewStyle().Faint(true)
)

// TUI is a fractal.Observer that renders a live, coarsely downsampled
// block-character preview of the canvas bitmap in the terminal using bubbletea,
// along with a status line of render progress. It's meant for headless
// sessions (over SSH, in a CI log) where the ebiten viewer isn't an
// option.
type TUI struct {
	canvas *fractal.Canvas

	mu       sync.Mutex
	progress float64
	rendering bool
	message  string

	program *tea.Program
}

// NewTUI creates a terminal observer bound to canvas. Call Run to start
// the bubbletea event loop; it blocks until the user quits.
func NewTUI(canvas *fractal.Canvas) *TUI {
	return &TUI{canvas: canvas}
}

// Run starts the bubbletea program and blocks until the user exits.
func (t *TUI) Run() error {
	t.program = tea.NewProgram(tuiModel{t: t}, tea.WithAltScreen())
	_, err := t.program.Run()
	return err
}

func (t *TUI) RenderStarted(r *fractal.Render) {
	t.mu.Lock()
	t.rendering = true
	t.progress = 0
	t.message = fmt.Sprintf("render %d started", r.RenderID())
	t.mu.Unlock()
}

func (t *TUI) RenderFinished(r *fractal.Render) {
	t.mu.Lock()
	t.rendering = false
	t.progress = 1
	t.message = fmt.Sprintf("render %d finished in %s", r.RenderID(), r.Elapsed().Round(time.Millisecond))
	t.mu.Unlock()
}

func (t *TUI) BitmapRenderStarted(c *fractal.Canvas, id int64)  {}
func (t *TUI) BitmapRenderFinished(c *fractal.Canvas, id int64) {}

func (t *TUI) ParametersChanged(c *fractal.Canvas, sourceTag string) {
	t.mu.Lock()
	t.message = "parameters changed: " + sourceTag
	t.mu.Unlock()
}

func (t *TUI) CanvasSizeChanged(c *fractal.Canvas) {}

func (t *TUI) CanvasResizeFailed(c *fractal.Canvas, err error) {
	t.mu.Lock()
	t.message = "resize failed: " + err.Error()
	t.mu.Unlock()
}

func (t *TUI) DrawBitmap(c *fractal.Canvas) {}

func (t *TUI) ShowProgress(c *fractal.Canvas, guessedFraction float64) {
	t.mu.Lock()
	t.progress = guessedFraction
	t.mu.Unlock()
}

func (t *TUI) snapshot() (progress float64, rendering bool, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress, t.rendering, t.message
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(ts time.Time) tea.Msg { return tickMsg(ts) })
}

type tuiModel struct {
	t              *TUI
	width, height  int
}

func (m tuiModel) Init() tea.Cmd { return tick() }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height - 4
		return m, nil
	case tickMsg:
		return m, tick()
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m tuiModel) View() string {
	title := titleStyle.Render("explorefractals")
	progress, rendering, message := m.t.snapshot()

	state := "idle"
	if rendering {
		state = "rendering"
	}
	status := statusStyle.Render(fmt.Sprintf("%s | progress %.1f%% | %s", state, progress*100, message))

	preview := m.renderPreview()

	help := helpStyle.Render("[q]uit")
	return fmt.Sprintf("%s\n%s\n\n%s\n%s", title, status, preview, help)
}

// renderPreview downsamples the canvas bitmap to one full-block
// character per terminal cell, colored (foreground only) with the single
// bitmap pixel nearest the cell's top-left corner; pixels between sample
// points are skipped, not averaged. Similar in spirit to the pack's
// bubbletea Mandelbrot demo's per-cell coloring.
func (m tuiModel) renderPreview() string {
	width, height := m.width, m.height
	if width <= 0 || height <= 0 {
		width, height = 80, 24
	}

	bitmap := m.t.canvas.Bitmap()
	params := m.t.canvas.Params()
	screenWidth := params.TargetWidth()
	screenHeight := params.TargetHeight()
	if len(bitmap) == 0 || screenWidth == 0 || screenHeight == 0 {
		return strings.Repeat("\n", height)
	}

	var b strings.Builder
	for row := 0; row < height; row++ {
		py := row * screenHeight / height
		for col := 0; col < width; col++ {
			px := col * screenWidth / width
			idx := screenWidth*(screenHeight-py-1) + px
			if idx < 0 || idx >= len(bitmap) {
				b.WriteByte(' ')
				continue
			}
			c := bitmap[idx]
			style := lipgloss.NewStyle().Foreground(toLipglossColor(c))
			b.WriteString(style.Render("█"))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func toLipglossColor(c color.RGBA) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B))
}
