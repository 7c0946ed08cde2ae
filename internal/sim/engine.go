// internal/sim/engine.go
package sim

import (
	"log/slog"
	"time"

	"github.com/hlynr/interceptor/internal/cache"
	"github.com/hlynr/interceptor/internal/frame"
	"github.com/hlynr/interceptor/pkg/core"
	"github.com/hlynr/interceptor/pkg/mathx"
)

// Vehicle bundles one agent's control pipeline. All collaborators are
// injected at construction; nothing is discovered at runtime.
type Vehicle struct {
	ID       string
	TargetID string // empty when the vehicle pursues nothing

	Body     RigidBody
	Seeker   *Seeker
	Guidance *ProNav
	Attitude *AttitudeController
	Actuator *Actuator
	Arbiter  *Arbiter
	Fuel     *FuelModel
	Thrust   *ThrustModel
}

// Reset clears all per-episode controller state.
func (v *Vehicle) Reset() {
	if v.Seeker != nil {
		v.Seeker.Reset()
	}
	if v.Attitude != nil {
		v.Attitude.Reset()
	}
	if v.Arbiter != nil {
		v.Arbiter.DeactivateExternal()
	}
	if v.Fuel != nil {
		v.Fuel.Refill()
	}
	if v.Thrust != nil {
		v.Thrust.Reset()
	}
}

// TickStats summarizes one engine tick for the monitor.
type TickStats struct {
	Tick     uint64
	Duration time.Duration
	Vehicles int
	Locked   int
}

// Engine runs the closed-loop control pipeline at a fixed timestep.
// One Tick executes the whole pipeline synchronously; all pipeline
// state is owned by the tick caller, so no locks are needed inside.
type Engine struct {
	dt       float64
	vehicles []*Vehicle
	registry *cache.AgentCache
	logger   *slog.Logger

	tick uint64
}

// NewEngine creates a control engine. dt must be positive.
func NewEngine(dt float64, registry *cache.AgentCache, logger *slog.Logger) *Engine {
	if dt <= 0 {
		dt = 0.02
	}
	return &Engine{dt: dt, registry: registry, logger: logger}
}

func (e *Engine) Dt() float64 {
	return e.dt
}

// AddVehicle registers a vehicle with the engine and publishes its
// initial state to the registry.
func (e *Engine) AddVehicle(v *Vehicle) {
	e.vehicles = append(e.vehicles, v)
	e.publish(v)
}

// Vehicle returns a registered vehicle by ID.
func (e *Engine) Vehicle(id string) (*Vehicle, bool) {
	for _, v := range e.vehicles {
		if v.ID == id {
			return v, true
		}
	}
	return nil, false
}

func (e *Engine) publish(v *Vehicle) {
	e.registry.Set(v.ID, cache.AgentEntry{
		Pose:     v.Body.Pose().Sanitized(),
		Velocity: v.Body.Velocity(),
		Status:   core.StatusActive,
	})
}

// Tick runs one fixed-timestep pass: sensing, guidance or external
// command, rate loop, thrust, then registry publication. Forces and
// torques land on the rigid bodies; the external integrator advances
// them before the next tick.
func (e *Engine) Tick() TickStats {
	start := time.Now()
	locked := 0

	for _, v := range e.vehicles {
		own := v.Body.Pose().Sanitized()

		var target *mathx.Vec3
		if v.TargetID != "" {
			if pos, ok := e.registry.Position(v.TargetID); ok {
				target = &pos
			}
		}

		hasLock := false
		if v.Seeker != nil {
			hasLock = v.Seeker.Update(own, target, e.dt)
		}
		if hasLock {
			locked++
		}

		switch v.Arbiter.Source() {
		case SourceExternal:
			// Zero-order hold on the latest external command.
			v.Attitude.ApplyRateCommand(v.Arbiter.ExternalRate(), e.dt)
		default:
			if rate, ok := v.Guidance.RateCommand(own, target, hasLock); ok {
				v.Attitude.ApplyRateCommand(rate, e.dt)
			}
		}

		if v.Thrust != nil {
			v.Thrust.Update(v.Arbiter.Throttle(), e.dt)
		}

		e.publish(v)
	}

	e.tick++
	return TickStats{
		Tick:     e.tick,
		Duration: time.Since(start),
		Vehicles: len(e.vehicles),
		Locked:   locked,
	}
}

// Snapshot returns the current recorded-form state of every vehicle,
// in the ENU convention, for the recording path.
func (e *Engine) Snapshot(t float64) core.EpisodeFrame {
	agents := make(map[string]core.AgentState, len(e.vehicles))
	for _, v := range e.vehicles {
		p := v.Body.Pose().Sanitized()
		st := core.AgentState{
			Position:        frame.ToENU(p.Position),
			Velocity:        frame.ToENU(v.Body.Velocity()),
			Orientation:     p.Orientation,
			AngularVelocity: v.Body.AngularVelocity(),
			Status:          core.StatusActive,
		}
		if v.Fuel != nil {
			fr := v.Fuel.Fraction()
			st.Fuel = &fr
		}
		agents[v.ID] = st
	}
	return core.EpisodeFrame{T: t, Agents: agents}
}
