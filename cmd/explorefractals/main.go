// Command explorefractals renders and explores escape-time fractals: as
// a one-shot image or animation export, or as an interactive viewer.
package main

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"runtime"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/spf13/cobra"

	"github.com/dinkydauset/explorefractals/fractal"
	"github.com/dinkydauset/explorefractals/observer"
)

var (
	parameterFile        string
	outputDirectory      string
	overrideWidth        int
	overrideHeight       int
	overrideOversampling int
	renderImage          bool
	renderAnimation      bool
	forceInteractive     bool
	fps                  int
	secondsPerInflection float64
	secondsPerZoom       float64
	useTUI               bool
)

func main() {
	root := &cobra.Command{
		Use:   "explorefractals",
		Short: "Render and explore escape-time fractals",
		RunE:  run,
	}

	flags := root.Flags()
	flags.StringVarP(&parameterFile, "parameters", "p", "default.efp", "use the named JSON file as initial parameters")
	flags.StringVarP(&outputDirectory, "output", "o", "", "output directory for rendered images/animation frames")
	flags.IntVar(&overrideWidth, "width", -1, "override the screen width parameter")
	flags.IntVar(&overrideHeight, "height", -1, "override the screen height parameter")
	flags.IntVar(&overrideOversampling, "oversampling", -1, "override the oversampling parameter")
	flags.BoolVar(&renderImage, "image", false, "render the initial parameters to a PNG image")
	flags.BoolVar(&renderAnimation, "animation", false, "render an animation of the initial parameters' inflections")
	flags.IntVar(&fps, "fps", 30, "frames per second for --animation")
	flags.Float64Var(&secondsPerInflection, "spi", 3.0, "seconds per inflection for --animation")
	flags.Float64Var(&secondsPerZoom, "spz", 0.6666, "seconds per zoom step for --animation")
	flags.BoolVarP(&forceInteractive, "interactive", "i", false, "stay interactive after rendering an image or animation")
	flags.BoolVar(&useTUI, "tui", false, "use the terminal viewer instead of the graphical one")

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func run(cmd *cobra.Command, args []string) error {
	params := fractal.NewParameters()
	usedParameterFile := false
	if parameterFile != "" {
		loaded, err := fractal.LoadParameters(parameterFile)
		if err != nil {
			var ferr *fractal.Error
			isMissingDefault := parameterFile == "default.efp" && errors.As(err, &ferr) && ferr.Kind == fractal.FileError
			if !isMissingDefault {
				return fmt.Errorf("loading parameter file: %w", err)
			}
		} else {
			params = loaded
			usedParameterFile = true
		}
	}

	if overrideOversampling != -1 || overrideWidth != -1 || overrideHeight != -1 {
		oversampling := params.Oversampling()
		width := params.TargetWidth()
		height := params.TargetHeight()
		if overrideOversampling != -1 {
			oversampling = overrideOversampling
		}
		if overrideWidth != -1 {
			width = overrideWidth
		}
		if overrideHeight != -1 {
			height = overrideHeight
		}
		if _, err := params.Resize(oversampling, width, height); err != nil {
			return fmt.Errorf("applying size overrides: %w", err)
		}
	}

	threads := fractal.NumberOfWorkerThreads(runtime.NumCPU())
	log.Printf("number of worker threads: %d", threads)

	canvas, err := fractal.NewCanvas(params, threads, nil)
	if err != nil {
		return fmt.Errorf("creating canvas: %w", err)
	}

	interactive := !renderImage && !renderAnimation || forceInteractive

	if renderImage {
		log.Print("rendering image")
		canvas.EnqueueRender(true)
		name := "explorefractals"
		if usedParameterFile {
			name = parameterFile
		}
		path := filepath.Join(outputDirectory, filepath.Base(name)+".png")
		if err := writePNG(path, canvas); err != nil {
			return fmt.Errorf("writing image: %w", err)
		}
		log.Printf("wrote %s", path)
	}

	if renderAnimation {
		log.Print("rendering animation")
		sink := &pngFrameSink{directory: outputDirectory}
		opts := fractal.AnimationOptions{
			FPS:                  float64(fps),
			SecondsPerInflection: secondsPerInflection,
			SecondsPerZoom:       secondsPerZoom,
		}
		if err := fractal.Animate(canvas, opts, sink); err != nil {
			return fmt.Errorf("rendering animation: %w", err)
		}
	}

	if !interactive {
		return nil
	}

	if useTUI {
		tui := observer.NewTUI(canvas)
		canvas.Observer = tui
		canvas.EnqueueRender(false)
		return tui.Run()
	}

	viewer := observer.NewViewer(canvas)
	canvas.Observer = viewer
	canvas.EnqueueRender(false)

	ebiten.SetWindowSize(params.TargetWidth(), params.TargetHeight())
	ebiten.SetWindowTitle("explorefractals")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	return ebiten.RunGame(viewer)
}

// writePNG encodes the canvas's current bitmap as a PNG file, creating
// the parent directory if necessary.
func writePNG(path string, c *fractal.Canvas) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	params := c.Params()
	width, height := params.TargetWidth(), params.TargetHeight()
	bitmap := c.Bitmap()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for py := 0; py < height; py++ {
		for px := 0; px < width; px++ {
			idx := width*(height-py-1) + px
			img.SetRGBA(px, py, color.RGBA(bitmap[idx]))
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

// pngFrameSink implements fractal.FrameSink by writing each animation
// frame as a zero-padded "frameNNNNNN.png" file, the PNG analogue of the
// original's "frameNNNNNN.bmp" animation output.
type pngFrameSink struct {
	directory string
}

func (s *pngFrameSink) WriteFrame(frameNumber int, c *fractal.Canvas) error {
	name := fmt.Sprintf("frame%06d.png", frameNumber)
	return writePNG(filepath.Join(s.directory, name), c)
}
