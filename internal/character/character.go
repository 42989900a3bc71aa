// Package character holds the player-controlled state the renderer follows:
// position, smoothed velocity and the Euler view angle the camera orbits with.
package character

import (
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// Acceleration is how quickly velocity approaches its goal, in units per second squared.
	Acceleration = 80.0
	// MoveSpeed is the velocity goal magnitude while a movement key is held.
	MoveSpeed = 10.0
	// MouseSensitivity converts cursor motion in pixels to degrees of rotation.
	MouseSensitivity = 0.25
)

// Key identifies the movement keys the character reacts to.
type Key int

const (
	KeyNone Key = iota
	KeyLeft
	KeyRight
	KeyUp
	KeyDown
)

// Character is mutated by input handlers between frames and read by the renderer.
type Character struct {
	Position     mgl32.Vec3
	Velocity     mgl32.Vec3
	VelocityGoal mgl32.Vec3
	ViewAngle    Euler

	lastCursor   mgl32.Vec2
	cursorSeeded bool
}

// Approach moves current toward goal by at most delta.
func Approach(goal, current, delta float32) float32 {
	difference := goal - current

	if difference > delta {
		return current + delta
	}
	if difference < -delta {
		return current - delta
	}

	return goal
}

// Update integrates one tick of dt seconds.
func (c *Character) Update(dt float32) {
	speed := dt * Acceleration
	c.Velocity[0] = Approach(c.VelocityGoal[0], c.Velocity[0], speed)
	c.Velocity[1] = Approach(c.VelocityGoal[1], c.Velocity[1], speed)

	c.Position = c.Position.Add(c.Velocity.Mul(dt))
}

// HandleKey sets or clears the velocity goal for a movement key.
func (c *Character) HandleKey(key Key, pressed bool) {
	goal := float32(0)
	if pressed {
		goal = MoveSpeed
	}

	switch key {
	case KeyLeft:
		c.VelocityGoal[0] = -goal
	case KeyRight:
		c.VelocityGoal[0] = goal
	case KeyUp:
		c.VelocityGoal[1] = goal
	case KeyDown:
		c.VelocityGoal[1] = -goal
	}
}

// HandleCursor turns the view by the cursor's motion since the previous call.
// The first call only records the position.
func (c *Character) HandleCursor(x, y float32) {
	cursor := mgl32.Vec2{x, y}
	if !c.cursorSeeded {
		c.lastCursor = cursor
		c.cursorSeeded = true
		return
	}

	delta := cursor.Sub(c.lastCursor)
	c.HandleMouseMotion(delta[0], delta[1])
	c.lastCursor = cursor
}

// HandleMouseMotion turns the view by a relative cursor motion in pixels.
func (c *Character) HandleMouseMotion(dx, dy float32) {
	c.ViewAngle.Pitch += dy * MouseSensitivity
	c.ViewAngle.Yaw += dx * MouseSensitivity
	c.ViewAngle.Normalize()
}
