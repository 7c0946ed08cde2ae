// internal/sim/thrust.go
package sim

import (
	"github.com/hlynr/interceptor/internal/frame"
)

// ThrustPoint is one breakpoint of a thrust-vs-burn-time curve.
type ThrustPoint struct {
	T       float64 // seconds from ignition
	Newtons float64
}

// ThrustModel evaluates a time-indexed thrust curve scaled by the
// commanded throttle and gated by fuel availability. The force is
// applied along the body forward axis; consumed fuel mass is deducted
// from the rigid body every tick.
type ThrustModel struct {
	curve    []ThrustPoint
	fuel     *FuelModel
	body     RigidBody
	burnTime float64
}

// NewThrustModel creates a thrust model. The curve must be ordered by
// ascending burn time; an empty curve produces no thrust.
func NewThrustModel(curve []ThrustPoint, fuel *FuelModel, body RigidBody) *ThrustModel {
	return &ThrustModel{curve: curve, fuel: fuel, body: body}
}

// evalCurve linearly interpolates the curve at burn time t. Before the
// first point it holds the first value; past the last it holds the last.
func (m *ThrustModel) evalCurve(t float64) float64 {
	if len(m.curve) == 0 {
		return 0
	}
	if t <= m.curve[0].T {
		return m.curve[0].Newtons
	}
	last := m.curve[len(m.curve)-1]
	if t >= last.T {
		return last.Newtons
	}
	for i := 1; i < len(m.curve); i++ {
		a, b := m.curve[i-1], m.curve[i]
		if t <= b.T {
			span := b.T - a.T
			if span <= 0 {
				return b.Newtons
			}
			alpha := (t - a.T) / span
			return a.Newtons + (b.Newtons-a.Newtons)*alpha
		}
	}
	return last.Newtons
}

// Update applies this tick's thrust for the given throttle in [0,1].
// Empty fuel or a missing curve produces no force and no burn-time
// advance.
func (m *ThrustModel) Update(throttle, dt float64) {
	if dt <= 0 || len(m.curve) == 0 || m.fuel.Empty() {
		return
	}
	if throttle < 0 {
		throttle = 0
	} else if throttle > 1 {
		throttle = 1
	}

	newtons := m.evalCurve(m.burnTime) * throttle
	if newtons > 0 {
		m.body.ApplyForce(frame.BodyForward.Scale(newtons))
	}

	consumed := m.fuel.Consume(dt)
	if consumed > 0 {
		mass := m.body.Mass() - consumed
		if mass < 0 {
			mass = 0
		}
		m.body.SetMass(mass)
	}

	m.burnTime += dt
}

// BurnTime returns the accumulated burn time in seconds.
func (m *ThrustModel) BurnTime() float64 {
	return m.burnTime
}

// Reset zeroes the burn clock for an episode restart.
func (m *ThrustModel) Reset() {
	m.burnTime = 0
}
