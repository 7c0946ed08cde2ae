// internal/sim/body.go
package sim

import (
	"github.com/hlynr/interceptor/pkg/core"
	"github.com/hlynr/interceptor/pkg/mathx"
)

// Stepper is implemented by bodies the engine integrates itself. A
// body driven by an external physics runtime does not implement it.
type Stepper interface {
	Step(dt float64)
}

// Body is a minimal six-degree-of-freedom rigid body with
// semi-implicit Euler integration. Forces and torques accumulate over
// a tick and are cleared by Step.
type Body struct {
	pose    core.Pose
	vel     mathx.Vec3
	angVel  mathx.Vec3
	mass    float64
	inertia float64 // scalar approximation, kg·m²

	force     mathx.Vec3
	torque    mathx.Vec3
	kinematic bool
}

// NewBody creates a body at rest with identity orientation.
func NewBody(massKg, inertia float64) *Body {
	if massKg <= 0 {
		massKg = 1
	}
	if inertia <= 0 {
		inertia = 1
	}
	return &Body{
		pose:    core.Pose{Orientation: mathx.QuatIdentity()},
		mass:    massKg,
		inertia: inertia,
	}
}

func (b *Body) Pose() core.Pose             { return b.pose }
func (b *Body) Velocity() mathx.Vec3        { return b.vel }
func (b *Body) AngularVelocity() mathx.Vec3 { return b.angVel }
func (b *Body) Mass() float64               { return b.mass }

func (b *Body) SetMass(kg float64) {
	if kg > 0 {
		b.mass = kg
	}
}

// ApplyForce accumulates a body-frame force for the current tick.
func (b *Body) ApplyForce(f mathx.Vec3) {
	if b.kinematic {
		return
	}
	b.force = b.force.Add(f)
}

// ApplyTorque accumulates a body-frame torque for the current tick.
func (b *Body) ApplyTorque(tq mathx.Vec3) {
	if b.kinematic {
		return
	}
	b.torque = b.torque.Add(tq)
}

// SetPose teleports the body, clearing accumulated dynamics so stale
// forces cannot act across the discontinuity.
func (b *Body) SetPose(p core.Pose) {
	b.pose = p.Sanitized()
	b.force = mathx.Vec3{}
	b.torque = mathx.Vec3{}
}

// SetVelocity overrides the linear velocity, for spawn setup.
func (b *Body) SetVelocity(v mathx.Vec3) { b.vel = v }

// SetKinematic locks or unlocks the body. A locked body ignores forces
// and holds whatever pose it is given.
func (b *Body) SetKinematic(locked bool) {
	b.kinematic = locked
	if locked {
		b.vel = mathx.Vec3{}
		b.angVel = mathx.Vec3{}
		b.force = mathx.Vec3{}
		b.torque = mathx.Vec3{}
	}
}

// Step advances the body by dt with semi-implicit Euler: velocities
// first, then positions, then the accumulators clear. Forces are
// expressed in the body frame and rotated to world before integrating.
func (b *Body) Step(dt float64) {
	if b.kinematic || dt <= 0 {
		b.force = mathx.Vec3{}
		b.torque = mathx.Vec3{}
		return
	}

	worldForce := b.pose.Orientation.Rotate(b.force)
	b.vel = b.vel.Add(worldForce.Scale(dt / b.mass))
	b.pose.Position = b.pose.Position.Add(b.vel.Scale(dt))

	b.angVel = b.angVel.Add(b.torque.Scale(dt / b.inertia))
	if w := b.angVel.Norm(); w > 1e-12 {
		axis := b.angVel.Scale(1 / w)
		dq := mathx.QuatFromAxisAngle(axis, w*dt)
		b.pose.Orientation = dq.Mul(b.pose.Orientation).Normalized()
	}

	b.force = mathx.Vec3{}
	b.torque = mathx.Vec3{}
}
