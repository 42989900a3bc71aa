package character

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// MaxPitch keeps the view from flipping over the poles.
const MaxPitch = 89.0

// Euler is a view orientation in degrees. Roll is carried but unused by the camera.
type Euler struct {
	Pitch float32
	Yaw   float32
	Roll  float32
}

// Normalize clamps pitch to ±MaxPitch and wraps yaw into [-180, 180].
// A NaN pitch or a non-finite yaw resets that angle to zero.
func (e *Euler) Normalize() {
	if isNaN(e.Pitch) {
		e.Pitch = 0
	}
	if e.Pitch > MaxPitch {
		e.Pitch = MaxPitch
	}
	if e.Pitch < -MaxPitch {
		e.Pitch = -MaxPitch
	}

	yaw := float64(e.Yaw)
	if math.IsNaN(yaw) || math.IsInf(yaw, 0) {
		e.Yaw = 0
		return
	}
	e.Yaw = float32(math.Remainder(yaw, 360))
}

func isNaN(f float32) bool { return f != f }

// Forward returns the unit view direction. Z is up.
func (e Euler) Forward() mgl32.Vec3 {
	pitch := float64(mgl32.DegToRad(e.Pitch))
	yaw := float64(mgl32.DegToRad(e.Yaw))

	pitchCos := math.Cos(pitch)
	return mgl32.Vec3{
		float32(math.Cos(yaw) * pitchCos),
		float32(math.Sin(yaw) * pitchCos),
		float32(math.Sin(pitch)),
	}
}
