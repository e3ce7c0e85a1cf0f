package main

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/gogpu/oit"
	"github.com/gogpu/oit/backend"
	"github.com/gogpu/oit/scenefile"
)

func TestFramePath(t *testing.T) {
	tests := []struct {
		path string
		i, n int
		want string
	}{
		{"oit.png", 0, 1, "oit.png"},
		{"oit.png", 3, 36, "oit_003.png"},
		{"out/turn.bmp", 12, 2000, "out/turn_0012.bmp"},
	}
	for _, tt := range tests {
		if got := framePath(tt.path, tt.i, tt.n); got != tt.want {
			t.Errorf("framePath(%q, %d, %d) = %q, want %q", tt.path, tt.i, tt.n, got, tt.want)
		}
	}
}

func TestEncodeImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	decoders := map[string]func(*bytes.Reader) (image.Image, error){
		"a.png":  func(r *bytes.Reader) (image.Image, error) { return png.Decode(r) },
		"a.BMP":  func(r *bytes.Reader) (image.Image, error) { return bmp.Decode(r) },
		"a.tiff": func(r *bytes.Reader) (image.Image, error) { return tiff.Decode(r) },
	}
	for path, decode := range decoders {
		var buf bytes.Buffer
		require.NoError(t, encodeImage(&buf, path, img), path)
		got, err := decode(bytes.NewReader(buf.Bytes()))
		require.NoError(t, err, path)
		assert.Equal(t, img.Bounds(), got.Bounds(), path)
	}

	assert.Error(t, encodeImage(&bytes.Buffer{}, "a.gif", img))
}

func TestRenderFrames_SkipsRecoverable(t *testing.T) {
	var rendered []int
	dropped, err := renderFrames(4, func(i int) error {
		if i == 1 {
			return fmt.Errorf("frame: %w", oit.ErrNoDrawable)
		}
		rendered = append(rendered, i)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, []int{0, 2, 3}, rendered)

	calls := 0
	_, err = renderFrames(4, func(i int) error {
		calls++
		if i == 2 {
			return oit.ErrInvalidProjection
		}
		return nil
	})
	assert.ErrorIs(t, err, oit.ErrInvalidProjection)
	assert.Equal(t, 3, calls)
}

func TestRun_Software(t *testing.T) {
	if !backend.IsRegistered(backend.NameSoftware) {
		t.Skip("software backend not registered")
	}
	dir := t.TempDir()
	*backendName = backend.NameSoftware
	*output = filepath.Join(dir, "demo.png")
	*frames = 2
	t.Cleanup(func() {
		*backendName, *output, *frames = "", "oit.png", 1
	})

	scene := scenefile.Demo()
	scene.Width, scene.Height = 64, 32
	require.NoError(t, run(scene))

	for _, name := range []string{"demo_000.png", "demo_001.png"} {
		f, err := os.Open(filepath.Join(dir, name))
		require.NoError(t, err)
		cfg, err := png.DecodeConfig(f)
		_ = f.Close()
		require.NoError(t, err, name)
		assert.Equal(t, 64, cfg.Width)
		assert.Equal(t, 32, cfg.Height)
	}
}

func TestDumpDemo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.yaml")
	require.NoError(t, dumpDemo(path))

	s, err := scenefile.Load(path)
	require.NoError(t, err)
	assert.Len(t, s.Instances, 2)

	assert.ErrorIs(t, dumpDemo(filepath.Join(t.TempDir(), "demo.json")), scenefile.ErrUnknownFormat)
}
