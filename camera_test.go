package oit

import (
	"errors"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/math/f32"
)

// =============================================================================
// Perspective
// =============================================================================

func TestPerspective_Invalid(t *testing.T) {
	tests := []struct {
		name                     string
		fovY, aspect, near, far float32
	}{
		{"zero fov", 0, 1, 1, 10},
		{"fov of pi", math32.Pi, 1, 1, 10},
		{"negative fov", -1, 1, 1, 10},
		{"zero aspect", 1, 0, 1, 10},
		{"zero near", 1, 1, 0, 10},
		{"negative near", 1, 1, -1, 10},
		{"far equals near", 1, 1, 5, 5},
		{"far before near", 1, 1, 10, 5},
		{"NaN aspect", 1, math32.NaN(), 1, 10},
		{"infinite aspect", 1, math32.Inf(1), 1, 10},
		{"infinite near", 1, 1, math32.Inf(1), 10},
		{"infinite far", 1, 1, 1, math32.Inf(1)},
		{"NaN far", 1, 1, 1, math32.NaN()},
		{"NaN fov", math32.NaN(), 1, 1, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Perspective(tt.fovY, tt.aspect, tt.near, tt.far)
			if !errors.Is(err, ErrInvalidProjection) {
				t.Errorf("Perspective() error = %v, want ErrInvalidProjection", err)
			}
		})
	}
}

func TestPerspective_DepthRange(t *testing.T) {
	p, err := Perspective(math32.Pi/2, 1, 1, 100)
	require.NoError(t, err)

	near := Transform(p, f32.Vec3{0, 0, -1})
	far := Transform(p, f32.Vec3{0, 0, -100})
	mid := Transform(p, f32.Vec3{0, 0, -10})

	assert.InDelta(t, 0, near[2], 1e-6)
	assert.InDelta(t, 1, far[2], 1e-6)
	assert.Greater(t, mid[2], near[2])
	assert.Less(t, mid[2], far[2])
}

func TestPerspective_FieldOfView(t *testing.T) {
	// With a 90° fov the frustum edge at distance d is at height d.
	p, err := Perspective(math32.Pi/2, 2, 1, 100)
	require.NoError(t, err)

	top := Transform(p, f32.Vec3{0, 10, -10})
	assert.InDelta(t, 1, top[1], 1e-5)
	right := Transform(p, f32.Vec3{20, 0, -10})
	assert.InDelta(t, 1, right[0], 1e-5)
}

// =============================================================================
// Transforms
// =============================================================================

func TestMul_AppliesRightFirst(t *testing.T) {
	m := Mul(Translation(f32.Vec3{10, 0, 0}), Scaling(f32.Vec3{2, 2, 2}))
	got := Transform(m, f32.Vec3{1, 1, 1})
	want := f32.Vec3{12, 2, 2}
	if got != want {
		t.Errorf("Transform(T·S, (1,1,1)) = %v, want %v", got, want)
	}
}

func TestRotationXYZ_ZAxis(t *testing.T) {
	got := Transform(RotationXYZ(f32.Vec3{0, 0, math32.Pi / 2}), f32.Vec3{1, 0, 0})
	assert.InDelta(t, 0, got[0], 1e-6)
	assert.InDelta(t, 1, got[1], 1e-6)
	assert.InDelta(t, 0, got[2], 1e-6)
}

func TestIdentity(t *testing.T) {
	v := f32.Vec3{3, -4, 5}
	if got := Transform(Identity(), v); got != v {
		t.Errorf("Transform(Identity(), %v) = %v", v, got)
	}
}

// =============================================================================
// Camera
// =============================================================================

func TestDefaultCamera(t *testing.T) {
	c := DefaultCamera()
	assert.InDelta(t, 65*math32.Pi/180, c.FovY, 1e-6)
	if c.Aspect != 2.1 || c.Near != 1 || c.Far != 5000 {
		t.Errorf("DefaultCamera() = %+v, want aspect 2.1 near 1 far 5000", c)
	}
	if c.Position != (f32.Vec3{0, 0, 1000}) {
		t.Errorf("Position = %v, want (0, 0, 1000)", c.Position)
	}
}

func TestCamera_ViewLooksDownNegativeZ(t *testing.T) {
	c := DefaultCamera()
	v := c.View()

	origin := Transform(v, f32.Vec3{})
	if origin != (f32.Vec3{0, 0, -1000}) {
		t.Errorf("View·origin = %v, want (0, 0, -1000)", origin)
	}
}

func TestCamera_UniformsProjectOrigin(t *testing.T) {
	u, err := DefaultCamera().Uniforms()
	require.NoError(t, err)

	clip := Transform(Mul(u.Projection, u.View), f32.Vec3{0, 100, 0})
	assert.InDelta(t, 0, clip[0], 1e-6)
	// 100 / (1000 * tan(32.5°))
	assert.InDelta(t, 0.15697, clip[1], 1e-4)
	assert.Greater(t, clip[2], float32(0))
	assert.Less(t, clip[2], float32(1))
}

func TestCamera_YawOrbits(t *testing.T) {
	c := DefaultCamera()
	c.Yaw = math32.Pi / 2

	// A quarter turn swings the point on +x onto the camera axis, 100
	// units nearer than the origin.
	got := Transform(c.View(), f32.Vec3{100, 0, 0})
	assert.InDelta(t, 0, got[0], 1e-3)
	assert.InDelta(t, -900, got[2], 1e-2)
}

func TestCamera_InvalidProjection(t *testing.T) {
	c := DefaultCamera()
	c.Near = 0
	if _, err := c.Uniforms(); !errors.Is(err, ErrInvalidProjection) {
		t.Errorf("Uniforms() error = %v, want ErrInvalidProjection", err)
	}
}

func TestCamera_WithAspectOf(t *testing.T) {
	c := DefaultCamera().WithAspectOf(800, 400)
	if c.Aspect != 2 {
		t.Errorf("Aspect = %v, want 2", c.Aspect)
	}
	if got := DefaultCamera().WithAspectOf(0, 400).Aspect; got != DefaultAspect {
		t.Errorf("WithAspectOf(0, 400).Aspect = %v, want unchanged %v", got, DefaultAspect)
	}
}
