// internal/sim/attitude.go
package sim

import (
	"github.com/hlynr/interceptor/pkg/mathx"
)

// PIDGains are per-axis gains for the rate loop.
type PIDGains struct {
	Kp mathx.Vec3
	Ki mathx.Vec3
	Kd mathx.Vec3
}

// AttitudeController closes the body-rate loop: desired rate in,
// normalized torque demand out. Integral and previous-error state
// persist across ticks until Reset.
type AttitudeController struct {
	gains    PIDGains
	body     RigidBody
	actuator *Actuator

	integral mathx.Vec3
	prevErr  mathx.Vec3
	hasPrev  bool
}

func NewAttitudeController(gains PIDGains, body RigidBody, actuator *Actuator) *AttitudeController {
	return &AttitudeController{gains: gains, body: body, actuator: actuator}
}

// Reset clears integral and derivative history, for episode restarts.
func (c *AttitudeController) Reset() {
	c.integral = mathx.Vec3{}
	c.prevErr = mathx.Vec3{}
	c.hasPrev = false
}

// ApplyRateCommand runs one PID step against the body's current
// angular rate and forwards the normalized demand to the actuator.
// The output never leaves [-1,1] per axis; dt <= 0 skips the integral
// and derivative terms rather than dividing by zero.
func (c *AttitudeController) ApplyRateCommand(desired mathx.Vec3, dt float64) {
	err := desired.Sub(c.body.AngularVelocity())

	var deriv mathx.Vec3
	if dt > 0 {
		c.integral = c.integral.Add(err.Scale(dt))
		if c.hasPrev {
			deriv = err.Sub(c.prevErr).Scale(1 / dt)
		}
	}
	c.prevErr = err
	c.hasPrev = true

	raw := mathx.Vec3{
		X: c.gains.Kp.X*err.X + c.gains.Ki.X*c.integral.X + c.gains.Kd.X*deriv.X,
		Y: c.gains.Kp.Y*err.Y + c.gains.Ki.Y*c.integral.Y + c.gains.Kd.Y*deriv.Y,
		Z: c.gains.Kp.Z*err.Z + c.gains.Ki.Z*c.integral.Z + c.gains.Kd.Z*deriv.Z,
	}

	max := c.actuator.MaxTorque()
	demand := mathx.Vec3{
		X: normalizeDemand(raw.X, max.X),
		Y: normalizeDemand(raw.Y, max.Y),
		Z: normalizeDemand(raw.Z, max.Z),
	}
	c.actuator.Apply(demand)
}

func normalizeDemand(raw, maxTorque float64) float64 {
	if maxTorque <= 0 {
		return 0
	}
	return mathx.Clamp(raw/maxTorque, -1, 1)
}
