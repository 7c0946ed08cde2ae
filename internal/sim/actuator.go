// internal/sim/actuator.go
package sim

import (
	"github.com/hlynr/interceptor/pkg/mathx"
)

// Actuator maps a normalized per-axis torque demand in [-1,1] to
// physical torque on the rigid body. Out-of-range demand is silently
// clamped, never rejected.
type Actuator struct {
	maxTorque mathx.Vec3 // N*m per body axis
	body      RigidBody
}

func NewActuator(maxTorque mathx.Vec3, body RigidBody) *Actuator {
	return &Actuator{maxTorque: maxTorque, body: body}
}

// MaxTorque returns the configured per-axis torque limits.
func (a *Actuator) MaxTorque() mathx.Vec3 {
	return a.maxTorque
}

// Apply clamps the demand and applies the scaled body-frame torque.
func (a *Actuator) Apply(demand mathx.Vec3) {
	clamped := mathx.Vec3{
		X: mathx.Clamp(demand.X, -1, 1),
		Y: mathx.Clamp(demand.Y, -1, 1),
		Z: mathx.Clamp(demand.Z, -1, 1),
	}
	a.body.ApplyTorque(mathx.Vec3{
		X: clamped.X * a.maxTorque.X,
		Y: clamped.Y * a.maxTorque.Y,
		Z: clamped.Z * a.maxTorque.Z,
	})
}
