// Package scenefile decodes OIT scene descriptions from YAML or TOML.
//
// A scene names the viewport, the camera and a list of instances. Per-vertex
// streams may be given in full or as one value shared by every vertex:
//
//	width: 1050
//	height: 500
//	camera:
//	  fov_degrees: 65
//	  position: [0, 0, 1000]
//	instances:
//	  - label: magenta
//	    positions: [[-1, -1, 0], [1, -1, 0], [0, 1, 0]]
//	    color: [1, 0, 1, 0.5]
//	    scale: [100, 100, 100]
package scenefile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chewxy/math32"
	"github.com/gogpu/gputypes"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/image/math/f32"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/oit"
)

// Errors returned while loading a scene.
var (
	ErrUnknownFormat = errors.New("scenefile: unknown format")
	ErrInvalidScene  = errors.New("scenefile: invalid scene")
)

// Format is a scene file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatOf returns the format implied by a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, filepath.Ext(path))
}

// Default viewport, matching the default camera's 2.1 aspect.
const (
	DefaultWidth  = 1050
	DefaultHeight = 500
)

// Scene is a decoded scene file.
type Scene struct {
	Width      int        `yaml:"width" toml:"width"`
	Height     int        `yaml:"height" toml:"height"`
	ClearColor [4]float64 `yaml:"clear_color" toml:"clear_color"`
	TileWidth  int        `yaml:"tile_width" toml:"tile_width"`
	TileHeight int        `yaml:"tile_height" toml:"tile_height"`

	Camera    Camera     `yaml:"camera" toml:"camera"`
	Instances []Instance `yaml:"instances" toml:"instances"`
}

// Camera overrides the default camera. Zero fields keep the default; a zero
// aspect follows the viewport.
type Camera struct {
	FovDegrees float32     `yaml:"fov_degrees" toml:"fov_degrees"`
	Aspect     float32     `yaml:"aspect" toml:"aspect"`
	Near       float32     `yaml:"near" toml:"near"`
	Far        float32     `yaml:"far" toml:"far"`
	Position   *[3]float32 `yaml:"position,omitempty" toml:"position,omitempty"`
	YawDegrees float32     `yaml:"yaw_degrees" toml:"yaw_degrees"`
}

// Instance is one draw. Each of the plural streams, when present, must hold
// one value per position; otherwise the singular value applies to every
// vertex. Scale defaults to 1.
type Instance struct {
	Label     string       `yaml:"label" toml:"label"`
	Positions [][3]float32 `yaml:"positions" toml:"positions"`

	Color       [4]float32  `yaml:"color" toml:"color"`
	Translation [3]float32  `yaml:"translation" toml:"translation"`
	Rotation    [3]float32  `yaml:"rotation" toml:"rotation"`
	Scale       *[3]float32 `yaml:"scale,omitempty" toml:"scale,omitempty"`

	Colors       [][4]float32 `yaml:"colors" toml:"colors"`
	Translations [][3]float32 `yaml:"translations" toml:"translations"`
	Rotations    [][3]float32 `yaml:"rotations" toml:"rotations"`
	Scales       [][3]float32 `yaml:"scales" toml:"scales"`
}

// Load reads and decodes the scene at path. The format follows the file
// extension.
func Load(path string) (*Scene, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scene file: %w", err)
	}
	s, err := Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Decode parses data in the given format and applies defaults.
func Decode(data []byte, format Format) (*Scene, error) {
	var s Scene
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing yaml scene: %w", err)
		}
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&s); err != nil {
			return nil, fmt.Errorf("parsing toml scene: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	s.applyDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Scene) applyDefaults() {
	if s.Width == 0 {
		s.Width = DefaultWidth
	}
	if s.Height == 0 {
		s.Height = DefaultHeight
	}
	if s.TileWidth == 0 {
		s.TileWidth = oit.DefaultTileWidth
	}
	if s.TileHeight == 0 {
		s.TileHeight = oit.DefaultTileHeight
	}
}

// Validate checks the viewport, the camera projection and every instance's
// streams.
func (s *Scene) Validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("%w: viewport %dx%d", ErrInvalidScene, s.Width, s.Height)
	}
	if s.TileWidth <= 0 || s.TileHeight <= 0 {
		return fmt.Errorf("%w: tile %dx%d", ErrInvalidScene, s.TileWidth, s.TileHeight)
	}
	if _, err := s.BuildCamera().Projection(); err != nil {
		return fmt.Errorf("%w: camera: %w", ErrInvalidScene, err)
	}
	for i := range s.Instances {
		in := s.Instances[i].Build()
		if err := in.Validate(); err != nil {
			return fmt.Errorf("%w: instance %d: %w", ErrInvalidScene, i, err)
		}
	}
	return nil
}

// Options returns the context options the scene asks for.
func (s *Scene) Options() []oit.Option {
	c := s.ClearColor
	return []oit.Option{
		oit.WithTileSize(s.TileWidth, s.TileHeight),
		oit.WithClearColor(gputypes.Color{R: c[0], G: c[1], B: c[2], A: c[3]}),
	}
}

// BuildCamera returns the default camera with the scene's overrides.
func (s *Scene) BuildCamera() oit.Camera {
	cam := oit.DefaultCamera()
	c := s.Camera
	if c.FovDegrees != 0 {
		cam.FovY = c.FovDegrees * math32.Pi / 180
	}
	if c.Near != 0 {
		cam.Near = c.Near
	}
	if c.Far != 0 {
		cam.Far = c.Far
	}
	if c.Position != nil {
		cam.Position = f32.Vec3(*c.Position)
	}
	cam.Yaw = c.YawDegrees * math32.Pi / 180
	if c.Aspect != 0 {
		cam.Aspect = c.Aspect
	} else {
		cam.Aspect = float32(s.Width) / float32(s.Height)
	}
	return cam
}

// BuildInstances converts every instance.
func (s *Scene) BuildInstances() []oit.Instance {
	out := make([]oit.Instance, len(s.Instances))
	for i := range s.Instances {
		out[i] = s.Instances[i].Build()
	}
	return out
}

// Build expands the instance into five per-vertex streams. Streams given
// with the wrong length are kept as is so Validate reports them.
func (in *Instance) Build() oit.Instance {
	n := len(in.Positions)
	scale := [3]float32{1, 1, 1}
	if in.Scale != nil {
		scale = *in.Scale
	}
	out := oit.Instance{
		Label:        in.Label,
		Positions:    vec3s(in.Positions),
		Colors:       make([]f32.Vec4, 0, n),
		Translations: expand3(in.Translations, in.Translation, n),
		Rotations:    expand3(in.Rotations, in.Rotation, n),
		Scales:       expand3(in.Scales, scale, n),
	}
	if len(in.Colors) > 0 {
		for _, c := range in.Colors {
			out.Colors = append(out.Colors, f32.Vec4(c))
		}
	} else {
		for range n {
			out.Colors = append(out.Colors, f32.Vec4(in.Color))
		}
	}
	return out
}

func vec3s(vs [][3]float32) []f32.Vec3 {
	out := make([]f32.Vec3, len(vs))
	for i, v := range vs {
		out[i] = f32.Vec3(v)
	}
	return out
}

func expand3(per [][3]float32, shared [3]float32, n int) []f32.Vec3 {
	if len(per) > 0 {
		return vec3s(per)
	}
	out := make([]f32.Vec3, n)
	for i := range out {
		out[i] = f32.Vec3(shared)
	}
	return out
}

// Encode writes the scene in the given format.
func (s *Scene) Encode(format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		return yaml.Marshal(s)
	case FormatTOML:
		return toml.Marshal(s)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}
