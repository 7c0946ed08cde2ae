// internal/sim/rigidbody.go
package sim

import (
	"github.com/hlynr/interceptor/pkg/core"
	"github.com/hlynr/interceptor/pkg/mathx"
)

// RigidBody is the external integrator's handle for one vehicle. The
// control pipeline only produces forces and torques; integration of
// forces into motion happens on the other side of this interface.
type RigidBody interface {
	// Pose returns the current sim-frame pose.
	Pose() core.Pose
	// Velocity returns the sim-frame linear velocity in m/s.
	Velocity() mathx.Vec3
	// AngularVelocity returns the body-frame angular rate in rad/s.
	AngularVelocity() mathx.Vec3

	Mass() float64
	SetMass(kg float64)

	// ApplyForce applies a body-frame force in Newtons for this tick.
	ApplyForce(f mathx.Vec3)
	// ApplyTorque applies a body-frame torque in Newton-meters for this tick.
	ApplyTorque(tq mathx.Vec3)

	// SetPose writes the pose directly. This is the explicit resync
	// entry point used by kinematic replay and teleports; any derived
	// orientation caches behind the integrator must be refreshed here.
	SetPose(p core.Pose)
	// SetKinematic locks or unlocks the body: a kinematic body holds
	// its pose and receives no simulated forces.
	SetKinematic(locked bool)
}
