// internal/sim/arbiter.go
package sim

import (
	"github.com/hlynr/interceptor/pkg/mathx"
)

// CommandSource identifies which source drives the attitude controller.
type CommandSource int

const (
	// SourceAutonomous runs the onboard guidance law.
	SourceAutonomous CommandSource = iota
	// SourceExternal applies an externally supplied command.
	SourceExternal
)

func (s CommandSource) String() string {
	if s == SourceExternal {
		return "external"
	}
	return "autonomous"
}

// ArbiterConfig limits externally supplied commands.
type ArbiterConfig struct {
	MaxRateRad  float64 // magnitude cap for external rate commands
	ThrustFloor float64 // lower bound for external throttle, in [0,1]
}

// Arbiter selects the single active command source. Exactly one of
// {autonomous guidance, external command} drives the controller at any
// time; transitions are explicit and immediate.
type Arbiter struct {
	cfg ArbiterConfig

	source   CommandSource
	throttle float64
	extRate  mathx.Vec3
}

func NewArbiter(cfg ArbiterConfig) *Arbiter {
	return &Arbiter{cfg: cfg, source: SourceAutonomous, throttle: 1}
}

// ActivateExternal switches to the external source. Thrust is clamped
// to [floor, 1]; the rate command magnitude is rescaled to the
// configured maximum while preserving direction.
func (a *Arbiter) ActivateExternal(thrust01 float64, rate mathx.Vec3) {
	a.source = SourceExternal
	a.throttle = mathx.Clamp(thrust01, mathx.Clamp01(a.cfg.ThrustFloor), 1)
	if a.cfg.MaxRateRad > 0 {
		rate = rate.ClampMagnitude(a.cfg.MaxRateRad)
	}
	a.extRate = rate
}

// DeactivateExternal returns control to the guidance law and restores
// full throttle.
func (a *Arbiter) DeactivateExternal() {
	a.source = SourceAutonomous
	a.throttle = 1
	a.extRate = mathx.Vec3{}
}

func (a *Arbiter) Source() CommandSource {
	return a.source
}

// Throttle returns the current commanded throttle in [0,1].
func (a *Arbiter) Throttle() float64 {
	return a.throttle
}

// ExternalRate returns the clamped external rate command. Meaningful
// only while the source is external; the value is held between
// updates (zero-order hold).
func (a *Arbiter) ExternalRate() mathx.Vec3 {
	return a.extRate
}
