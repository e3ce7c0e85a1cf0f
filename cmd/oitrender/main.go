// Command oitrender renders a scene offscreen and writes the result as an
// image file.
//
// Usage:
//
//	oitrender [-scene scene.yaml] [-o oit.png] [-backend software|wgpu]
//	oitrender -frames 36 -o turn.png    # turn_000.png ... turn_035.png
//	oitrender -dump demo.toml           # write the built-in scene and exit
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/png"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/gogpu/oit"
	"github.com/gogpu/oit/backend"
	_ "github.com/gogpu/oit/backend/software"
	_ "github.com/gogpu/oit/backend/wgpu"
	"github.com/gogpu/oit/scenefile"
)

var (
	scenePath   = flag.String("scene", "", "Scene file (.yaml or .toml); the built-in demo when empty")
	output      = flag.String("o", "oit.png", "Output image (.png, .bmp or .tiff)")
	backendName = flag.String("backend", "", "Backend name (wgpu, software); the best available when empty")
	width       = flag.Int("width", 0, "Override the scene viewport width")
	height      = flag.Int("height", 0, "Override the scene viewport height")
	frames      = flag.Int("frames", 1, "Number of turntable frames to render")
	workers     = flag.Int("workers", 0, "Software backend worker count (0 = GOMAXPROCS)")
	timeout     = flag.Duration("timeout", 10*time.Second, "Per-frame timeout")
	dump        = flag.String("dump", "", "Write the built-in demo scene to this file and exit")
	verbose     = flag.Bool("v", false, "Verbose logging")
)

func main() {
	flag.Parse()

	if *verbose {
		oit.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	if *dump != "" {
		if err := dumpDemo(*dump); err != nil {
			log.Fatalf("Failed to write scene: %v", err)
		}
		return
	}

	scene, err := loadScene(*scenePath)
	if err != nil {
		log.Fatalf("Failed to load scene: %v", err)
	}
	if *width > 0 {
		scene.Width = *width
	}
	if *height > 0 {
		scene.Height = *height
	}

	if err := run(scene); err != nil {
		log.Fatalf("Render failed: %v", err)
	}
}

func loadScene(path string) (*scenefile.Scene, error) {
	if path == "" {
		return scenefile.Demo(), nil
	}
	return scenefile.Load(path)
}

func dumpDemo(path string) error {
	format, err := scenefile.FormatOf(path)
	if err != nil {
		return err
	}
	data, err := scenefile.Demo().Encode(format)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func run(scene *scenefile.Scene) error {
	opts := scene.Options()
	if *workers > 0 {
		opts = append(opts, oit.WithWorkers(*workers))
	}
	c, err := oit.OpenContext(*backendName, opts...)
	if err != nil {
		return err
	}
	defer c.Close()

	r, err := oit.NewRenderer(c)
	if err != nil {
		return err
	}
	defer r.Close()

	surface, err := c.NewSurface(scene.Width, scene.Height)
	if err != nil {
		return err
	}
	defer surface.Close()

	instances := scene.BuildInstances()
	cam := scene.BuildCamera()
	n := max(*frames, 1)

	var bar *progressbar.ProgressBar
	if n > 1 {
		bar = progressbar.Default(int64(n), "rendering")
	}

	start := time.Now()
	dropped, err := renderFrames(n, func(i int) error {
		path := framePath(*output, i, n)
		if err := renderOne(r, surface, instances, scenefile.Turntable(cam, i, n), path); err != nil {
			return err
		}
		if bar != nil {
			_ = bar.Add(1)
		} else {
			log.Printf("Saved to %s", path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	stats := r.Stats()
	log.Printf("Rendered %d frame(s), dropped %d, on %s in %v (%d draws, %d triangles per frame)",
		n-dropped, dropped, c.Device().Name(), time.Since(start).Round(time.Millisecond),
		stats.LastDrawCount, stats.LastTriangleCount)
	return nil
}

// renderFrames calls render for frames 0..n-1. A frame failing with a
// recoverable error is logged and skipped; any other error stops the run.
func renderFrames(n int, render func(i int) error) (dropped int, err error) {
	for i := range n {
		err := render(i)
		switch {
		case err == nil:
		case oit.IsFrameRecoverable(err):
			log.Printf("Frame %d dropped: %v", i, err)
			dropped++
		default:
			return dropped, fmt.Errorf("frame %d: %w", i, err)
		}
	}
	return dropped, nil
}

func renderOne(r *oit.Renderer, surface *backend.OffscreenSurface, instances []oit.Instance, cam oit.Camera, path string) error {
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := r.RenderFrame(ctx, surface, instances, cam); err != nil {
		return err
	}
	img, err := oit.ReadImage(ctx, surface.Front())
	if err != nil {
		return err
	}
	return saveImage(path, img)
}

// framePath numbers path when more than one frame is rendered.
func framePath(path string, i, n int) string {
	if n <= 1 {
		return path
	}
	ext := filepath.Ext(path)
	digits := len(fmt.Sprint(n - 1))
	return fmt.Sprintf("%s_%0*d%s", strings.TrimSuffix(path, ext), max(digits, 3), i, ext)
}

func saveImage(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encodeImage(f, path, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func encodeImage(w io.Writer, path string, img image.Image) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return png.Encode(w, img)
	case ".bmp":
		return bmp.Encode(w, img)
	case ".tif", ".tiff":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	}
	return fmt.Errorf("unsupported image extension %q", filepath.Ext(path))
}
