package scenefile

import (
	"github.com/chewxy/math32"

	"github.com/gogpu/oit"
)

// Demo returns the two overlapping half-transparent triangles of the
// classic OIT sample: a flat magenta triangle and a copy whose vertices
// are each rotated about a different axis, fading from magenta to white.
func Demo() *Scene {
	tri := [][3]float32{{-1, -1, 0}, {1, -1, 0}, {0, 1, 0}}
	scale := [3]float32{100, 100, 100}
	s := &Scene{
		ClearColor: [4]float64{0, 0, 0, 1},
		Instances: []Instance{
			{
				Label:     "flat",
				Positions: tri,
				Color:     [4]float32{1, 0, 1, 0.5},
				Scale:     &scale,
			},
			{
				Label:     "rotated",
				Positions: tri,
				Colors:    [][4]float32{{1, 0, 1, 0.5}, {1, 1, 1, 0.5}, {1, 1, 1, 0.5}},
				Rotations: [][3]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
				Scale:     &scale,
			},
		},
	}
	s.applyDefaults()
	return s
}

// Turntable returns cam orbited about the y axis to frame i of n, one full
// turn over n frames starting from cam's own yaw.
func Turntable(cam oit.Camera, i, n int) oit.Camera {
	if n <= 0 {
		return cam
	}
	cam.Yaw += 2 * math32.Pi * float32(i) / float32(n)
	return cam
}
