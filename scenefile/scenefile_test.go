package scenefile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/math/f32"

	"github.com/gogpu/oit"
)

const yamlScene = `
width: 320
height: 200
clear_color: [0, 0, 0, 1]
camera:
  fov_degrees: 90
  position: [0, 0, 500]
instances:
  - label: one
    positions: [[-1, -1, 0], [1, -1, 0], [0, 1, 0]]
    color: [1, 0, 0, 0.5]
    translation: [10, 0, 0]
  - label: two
    positions: [[-1, -1, 0], [1, -1, 0], [0, 1, 0]]
    colors: [[1, 0, 0, 1], [0, 1, 0, 1], [0, 0, 1, 1]]
    scale: [2, 2, 2]
`

const tomlScene = `
width = 320
height = 200
clear_color = [0.0, 0.0, 0.0, 1.0]

[camera]
fov_degrees = 90.0
position = [0.0, 0.0, 500.0]

[[instances]]
label = "one"
positions = [[-1.0, -1.0, 0.0], [1.0, -1.0, 0.0], [0.0, 1.0, 0.0]]
color = [1.0, 0.0, 0.0, 0.5]
translation = [10.0, 0.0, 0.0]

[[instances]]
label = "two"
positions = [[-1.0, -1.0, 0.0], [1.0, -1.0, 0.0], [0.0, 1.0, 0.0]]
colors = [[1.0, 0.0, 0.0, 1.0], [0.0, 1.0, 0.0, 1.0], [0.0, 0.0, 1.0, 1.0]]
scale = [2.0, 2.0, 2.0]
`

// =============================================================================
// Decoding
// =============================================================================

func TestDecode_Formats(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
	}{
		{"yaml", yamlScene, FormatYAML},
		{"toml", tomlScene, FormatTOML},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Decode([]byte(tt.data), tt.format)
			require.NoError(t, err)

			assert.Equal(t, 320, s.Width)
			assert.Equal(t, 200, s.Height)
			assert.Equal(t, oit.DefaultTileWidth, s.TileWidth)
			require.Len(t, s.Instances, 2)

			ins := s.BuildInstances()
			one, two := ins[0], ins[1]
			assert.Equal(t, "one", one.Label)
			assert.Equal(t, f32.Vec4{1, 0, 0, 0.5}, one.Colors[2])
			assert.Equal(t, f32.Vec3{10, 0, 0}, one.Translations[1])
			assert.Equal(t, f32.Vec3{1, 1, 1}, one.Scales[0])
			assert.Equal(t, f32.Vec4{0, 1, 0, 1}, two.Colors[1])
			assert.Equal(t, f32.Vec3{2, 2, 2}, two.Scales[2])

			cam := s.BuildCamera()
			assert.InDelta(t, math32.Pi/2, cam.FovY, 1e-6)
			assert.InDelta(t, 1.6, cam.Aspect, 1e-6)
			assert.Equal(t, f32.Vec3{0, 0, 500}, cam.Position)
			assert.Equal(t, float32(oit.DefaultFar), cam.Far)
		})
	}
}

func TestDecode_Empty(t *testing.T) {
	for _, format := range []Format{FormatYAML, FormatTOML} {
		s, err := Decode(nil, format)
		require.NoError(t, err)
		if s.Width != DefaultWidth || s.Height != DefaultHeight {
			t.Errorf("Decode(%s) viewport = %dx%d, want %dx%d", format, s.Width, s.Height, DefaultWidth, DefaultHeight)
		}
		assert.Empty(t, s.Instances)
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
		want   error
	}{
		{"stream mismatch", "instances:\n  - positions: [[0, 0, 0], [1, 0, 0], [0, 1, 0]]\n    colors: [[1, 1, 1, 1]]\n", FormatYAML, oit.ErrStreamMismatch},
		{"partial triangle", "instances:\n  - positions: [[0, 0, 0]]\n", FormatYAML, ErrInvalidScene},
		{"negative viewport", "width = -4\n", FormatTOML, ErrInvalidScene},
		{"infinite far", "camera:\n  far: .inf\n", FormatYAML, oit.ErrInvalidProjection},
		{"near beyond far", "[camera]\nnear = 10.0\nfar = 5.0\n", FormatTOML, ErrInvalidScene},
		{"unknown format", "", Format("json"), ErrUnknownFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data), tt.format)
			if !errors.Is(err, tt.want) {
				t.Errorf("Decode() error = %v, want %v", err, tt.want)
			}
		})
	}

	_, err := Decode([]byte("widht: 3\n"), FormatYAML)
	assert.Error(t, err, "unknown yaml field")
	_, err = Decode([]byte("widht = 3\n"), FormatTOML)
	assert.Error(t, err, "unknown toml field")
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		path string
		want Format
		err  bool
	}{
		{"scene.yaml", FormatYAML, false},
		{"scene.YML", FormatYAML, false},
		{"dir/scene.toml", FormatTOML, false},
		{"scene.json", "", true},
	}
	for _, tt := range tests {
		got, err := FormatOf(tt.path)
		if got != tt.want || (err != nil) != tt.err {
			t.Errorf("FormatOf(%q) = %q, %v", tt.path, got, err)
		}
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.toml")
	require.NoError(t, os.WriteFile(path, []byte(tomlScene), 0o600))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, s.Instances, 2)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// =============================================================================
// Demo and turntable
// =============================================================================

func TestDemo(t *testing.T) {
	s := Demo()
	require.NoError(t, s.Validate())

	ins := s.BuildInstances()
	require.Len(t, ins, 2)
	for _, in := range ins {
		assert.Equal(t, 1, in.TriangleCount())
		assert.Equal(t, f32.Vec3{100, 100, 100}, in.Scales[0])
	}
	assert.Equal(t, f32.Vec3{0, 0, 0}, ins[0].Rotations[1])
	assert.Equal(t, f32.Vec3{0, 1, 0}, ins[1].Rotations[1])
	assert.Equal(t, f32.Vec4{1, 1, 1, 0.5}, ins[1].Colors[2])

	cam := s.BuildCamera()
	assert.InDelta(t, oit.DefaultAspect, cam.Aspect, 1e-6)
}

func TestDemo_EncodeRoundTrip(t *testing.T) {
	for _, format := range []Format{FormatYAML, FormatTOML} {
		data, err := Demo().Encode(format)
		require.NoError(t, err)
		s, err := Decode(data, format)
		require.NoError(t, err, string(data))
		assert.Equal(t, Demo().BuildInstances(), s.BuildInstances())
	}
}

func TestTurntable(t *testing.T) {
	cam := oit.DefaultCamera()

	tests := []struct {
		i, n int
		want float32
	}{
		{0, 4, 0},
		{1, 4, math32.Pi / 2},
		{2, 4, math32.Pi},
		{3, 0, 0},
	}
	for _, tt := range tests {
		got := Turntable(cam, tt.i, tt.n).Yaw
		if math32.Abs(got-tt.want) > 1e-6 {
			t.Errorf("Turntable(%d, %d).Yaw = %v, want %v", tt.i, tt.n, got, tt.want)
		}
	}
}
