// pkg/core/agent.go
package core

import "github.com/hlynr/interceptor/pkg/mathx"

// AgentStatus tags the lifecycle state of a recorded agent.
type AgentStatus string

const (
	StatusActive    AgentStatus = "active"
	StatusDestroyed AgentStatus = "destroyed"
	StatusFinished  AgentStatus = "finished"
)

// Pose is a position plus orientation. Poses are always passed by
// value; the orientation is unit-normalized at every boundary.
type Pose struct {
	Position    mathx.Vec3
	Orientation mathx.Quat
}

// Sanitized returns the pose with a guaranteed unit orientation.
func (p Pose) Sanitized() Pose {
	p.Orientation = p.Orientation.Sanitized()
	return p
}

// Action is a raw recorded action vector: pitch rate, yaw rate, roll
// rate (rad/s), throttle in [0,1], and two reserved slots.
type Action [6]float64

// Rates returns the body-frame angular rate portion of the action.
func (a Action) Rates() mathx.Vec3 {
	return mathx.Vec3{X: a[0], Y: a[1], Z: a[2]}
}

// Throttle returns the commanded throttle clamped to [0,1].
func (a Action) Throttle() float64 {
	return mathx.Clamp01(a[3])
}

// AgentState is one agent's state in one recorded frame. Position,
// velocity and orientation use the ENU convention of the recording.
type AgentState struct {
	Position        mathx.Vec3
	Velocity        mathx.Vec3
	Orientation     mathx.Quat
	AngularVelocity mathx.Vec3
	Status          AgentStatus
	Action          *Action  // raw policy action, when recorded
	Fuel            *float64 // remaining fuel fraction, when recorded
}
