// internal/sim/seeker.go
package sim

import (
	"math"

	"github.com/hlynr/interceptor/internal/frame"
	"github.com/hlynr/interceptor/pkg/core"
	"github.com/hlynr/interceptor/pkg/mathx"
)

// SeekerConfig gates target visibility.
type SeekerConfig struct {
	HalfFOVDeg    float64 // half field of view around the forward axis
	MaxRangeM     float64
	MaxLOSRateRad float64 // max tolerated line-of-sight slew, rad/s
}

// Seeker tracks whether the target is currently locked. Lock is denied
// by range, field of view, or excessive line-of-sight rate; every
// failure is silent (lock goes false, nothing errors).
type Seeker struct {
	cfg SeekerConfig

	hasLock bool
	prevLOS mathx.Vec3
	hasPrev bool
}

func NewSeeker(cfg SeekerConfig) *Seeker {
	return &Seeker{cfg: cfg}
}

// Update evaluates lock for this tick. target is the target position in
// the sim frame, or nil when no target exists; a nil target clears lock
// unconditionally.
func (s *Seeker) Update(own core.Pose, target *mathx.Vec3, dt float64) bool {
	if target == nil {
		s.hasLock = false
		s.hasPrev = false
		return false
	}

	los := target.Sub(own.Position)
	rangeM := los.Norm()
	losUnit := los.Normalized()

	lock := true
	if rangeM > s.cfg.MaxRangeM || losUnit == (mathx.Vec3{}) {
		lock = false
	}

	if lock {
		fwd := own.Orientation.Rotate(frame.BodyForward)
		cosAngle := mathx.Clamp(fwd.Dot(losUnit), -1, 1)
		offAxis := math.Acos(cosAngle)
		if offAxis > s.cfg.HalfFOVDeg*math.Pi/180 {
			lock = false
		}
	}

	// Angular rate of the line of sight since the previous tick stands
	// in for the seeker head's slew limit.
	if lock && s.hasPrev && dt > 0 {
		cosDelta := mathx.Clamp(s.prevLOS.Dot(losUnit), -1, 1)
		losRate := math.Acos(cosDelta) / dt
		if losRate > s.cfg.MaxLOSRateRad {
			lock = false
		}
	}

	s.prevLOS = losUnit
	s.hasPrev = losUnit != (mathx.Vec3{})
	s.hasLock = lock
	return lock
}

// HasLock returns the lock state from the last Update.
func (s *Seeker) HasLock() bool {
	return s.hasLock
}

// Reset clears lock and line-of-sight history for an episode restart.
func (s *Seeker) Reset() {
	s.hasLock = false
	s.hasPrev = false
	s.prevLOS = mathx.Vec3{}
}
