// Command oitview shows a scene in a window, orbiting the camera around it.
//
// Frames are rendered offscreen by the oit renderer and uploaded to the
// window every tick. Space pauses the orbit, the arrow keys step it and
// Escape quits.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"golang.org/x/image/draw"

	"github.com/gogpu/oit"
	"github.com/gogpu/oit/backend"
	_ "github.com/gogpu/oit/backend/software"
	_ "github.com/gogpu/oit/backend/wgpu"
	"github.com/gogpu/oit/scenefile"
)

var (
	scenePath   = flag.String("scene", "", "Scene file (.yaml or .toml); the built-in demo when empty")
	backendName = flag.String("backend", "", "Backend name (wgpu, software); the best available when empty")
	period      = flag.Int("period", 240, "Ticks per full orbit")
	scale       = flag.Int("scale", 1, "Window scale factor")
	verbose     = flag.Bool("v", false, "Verbose logging")
)

func main() {
	flag.Parse()

	if *verbose {
		oit.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	scene := scenefile.Demo()
	if *scenePath != "" {
		var err error
		if scene, err = scenefile.Load(*scenePath); err != nil {
			log.Fatalf("Failed to load scene: %v", err)
		}
	}

	v, err := newViewer(scene)
	if err != nil {
		log.Fatalf("Failed to start renderer: %v", err)
	}
	defer v.close()

	ebiten.SetWindowTitle(fmt.Sprintf("oitview (%s)", v.ctx.Device().Name()))
	ebiten.SetWindowSize(scene.Width*(*scale), scene.Height*(*scale))
	ebiten.SetTPS(60)
	if err := ebiten.RunGame(v); err != nil && !errors.Is(err, ebiten.Termination) {
		log.Fatalf("Viewer: %v", err)
	}
}

type viewer struct {
	ctx      *oit.Context
	renderer *oit.Renderer
	surface  *backend.OffscreenSurface

	instances []oit.Instance
	camera    oit.Camera
	width     int
	height    int

	tick   int
	paused bool
	frame  time.Duration

	rgba   *image.RGBA
	screen *ebiten.Image
}

func newViewer(scene *scenefile.Scene) (*viewer, error) {
	c, err := oit.OpenContext(*backendName, scene.Options()...)
	if err != nil {
		return nil, err
	}
	r, err := oit.NewRenderer(c)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	s, err := c.NewSurface(scene.Width, scene.Height)
	if err != nil {
		r.Close()
		_ = c.Close()
		return nil, err
	}
	return &viewer{
		ctx:       c,
		renderer:  r,
		surface:   s,
		instances: scene.BuildInstances(),
		camera:    scene.BuildCamera(),
		width:     scene.Width,
		height:    scene.Height,
		rgba:      image.NewRGBA(image.Rect(0, 0, scene.Width, scene.Height)),
	}, nil
}

func (v *viewer) close() {
	if v.screen != nil {
		v.screen.Deallocate()
	}
	v.surface.Close()
	v.renderer.Close()
	_ = v.ctx.Close()
}

func (v *viewer) Update() error {
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyEscape):
		return ebiten.Termination
	case inpututil.IsKeyJustPressed(ebiten.KeySpace):
		v.paused = !v.paused
	case ebiten.IsKeyPressed(ebiten.KeyArrowLeft):
		v.tick--
	case ebiten.IsKeyPressed(ebiten.KeyArrowRight):
		v.tick++
	}
	if !v.paused {
		v.tick++
	}
	return v.render()
}

func (v *viewer) render() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	cam := scenefile.Turntable(v.camera, v.tick, *period)
	if err := v.renderer.RenderFrame(ctx, v.surface, v.instances, cam); err != nil {
		if oit.IsFrameRecoverable(err) {
			oit.Logger().Debug("oitview: frame dropped", "err", err)
			return nil
		}
		return err
	}
	img, err := oit.ReadImage(ctx, v.surface.Front())
	if err != nil {
		return err
	}
	v.frame = time.Since(start)

	// ebiten wants premultiplied pixels.
	draw.Draw(v.rgba, v.rgba.Bounds(), img, image.Point{}, draw.Src)
	if v.screen == nil {
		v.screen = ebiten.NewImage(v.width, v.height)
	}
	v.screen.WritePixels(v.rgba.Pix)
	return nil
}

func (v *viewer) Draw(screen *ebiten.Image) {
	if v.screen != nil {
		screen.DrawImage(v.screen, nil)
	}
	stats := v.renderer.Stats()
	ebitenutil.DebugPrint(screen, fmt.Sprintf("%s  %v/frame  dropped %d",
		v.ctx.Device().Name(), v.frame.Round(time.Microsecond), stats.FramesDropped))
}

func (v *viewer) Layout(int, int) (int, int) {
	return v.width, v.height
}
