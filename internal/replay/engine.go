// Package replay advances simulated time over a recorded episode,
// interpolating recorded state for kinematic agents and replaying
// recorded actions through the control pipeline for command-driven
// ones.
package replay

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/hlynr/interceptor/internal/cache"
	"github.com/hlynr/interceptor/internal/frame"
	"github.com/hlynr/interceptor/internal/sim"
	"github.com/hlynr/interceptor/pkg/core"
	"github.com/hlynr/interceptor/pkg/mathx"
)

// AgentMode selects how one agent is driven during replay.
type AgentMode int

const (
	// ModeKinematic writes the recorded pose directly each tick; the
	// body is pose-locked and receives no simulated forces.
	ModeKinematic AgentMode = iota
	// ModeCommandDriven decodes the recorded action vector and pushes
	// it through arbiter, attitude controller and actuator each tick.
	ModeCommandDriven
)

func (m AgentMode) String() string {
	if m == ModeCommandDriven {
		return "command-driven"
	}
	return "kinematic"
}

// CruiseInConfig describes the optional pre-roll phase: one agent is
// flown kinematically from a back-extrapolated point to its true first
// recorded pose before normal replay begins.
type CruiseInConfig struct {
	Enabled    bool
	AgentID    string
	Duration   float64 // seconds of cruise-in flight
	Multiplier float64 // extrapolation distance = speed*Duration*Multiplier
	MinSpeed   float64 // below this sampled speed the phase is skipped
}

// Config tunes the replay engine.
type Config struct {
	Speed       float64 // playback speed multiplier, default 1
	FreezeTicks int     // spawn freeze window, in ticks
	CruiseIn    CruiseInConfig

	// AnchorENU is subtracted from recorded positions in the external
	// frame before mapping; OffsetSim is added after, re-centering the
	// episode around a scene-specific reference point.
	AnchorENU *mathx.Vec3
	OffsetSim mathx.Vec3
}

type phase int

const (
	phaseCruiseIn phase = iota
	phaseFreeze
	phaseReplay
)

type agent struct {
	id      string
	mode    AgentMode
	vehicle *sim.Vehicle
	spawned bool

	// Zero-order hold over recorded actions.
	lastAction core.Action
	hasAction  bool
}

type cruiseState struct {
	agent   *agent
	from    mathx.Vec3 // sim frame
	to      mathx.Vec3 // sim frame
	orient  mathx.Quat
	elapsed float64
}

// Engine replays one loaded episode. All state is owned by the tick
// caller; ticks never block and are never abandoned mid-computation.
type Engine struct {
	ep       *core.Episode
	cfg      Config
	dt       float64
	registry *cache.AgentCache
	logger   *slog.Logger

	agents map[string]*agent

	t            float64
	cursor       int
	actionCursor int // last frame index whose actions were consumed
	paused       bool
	started      bool
	phase        phase
	freezeLeft   int
	cruise       *cruiseState
}

// New creates a replay engine over a fully parsed episode. dt is the
// fixed simulation timestep; non-positive values fall back to the
// episode's nominal timestep.
func New(ep *core.Episode, cfg Config, dt float64, registry *cache.AgentCache, logger *slog.Logger) (*Engine, error) {
	if ep == nil || len(ep.Frames) == 0 {
		return nil, fmt.Errorf("replay: empty episode")
	}
	if cfg.Speed <= 0 {
		cfg.Speed = 1
	}
	if dt <= 0 {
		dt = ep.Dt()
	}
	if dt <= 0 {
		dt = 0.02
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		ep:       ep,
		cfg:      cfg,
		dt:       dt,
		registry: registry,
		logger:   logger,
		agents:   make(map[string]*agent),
	}, nil
}

// AddAgent registers an agent for replay. A kinematic agent's vehicle
// needs only its Body; a command-driven one needs the full pipeline.
func (e *Engine) AddAgent(id string, mode AgentMode, v *sim.Vehicle) {
	e.agents[id] = &agent{id: id, mode: mode, vehicle: v}
}

// Start spawns agents and enters the pre-roll or freeze phase. It must
// be called once before Tick, after every recorded agent has been
// registered with AddAgent.
func (e *Engine) Start() error {
	if len(e.agents) == 0 {
		return fmt.Errorf("replay has no registered agents")
	}
	e.t = 0
	e.cursor = 0
	e.actionCursor = -1
	e.paused = false
	e.started = true
	e.freezeLeft = e.cfg.FreezeTicks

	e.cruise = e.prepareCruiseIn()
	if e.cruise != nil {
		e.phase = phaseCruiseIn
		a := e.cruise.agent
		a.spawned = true
		a.vehicle.Body.SetKinematic(true)
		a.vehicle.Body.SetPose(core.Pose{Position: e.cruise.from, Orientation: e.cruise.orient})
		e.logger.Info("cruise-in started",
			"agent", a.id,
			"duration", e.cfg.CruiseIn.Duration)
		return nil
	}
	e.spawnAll()
	e.phase = phaseFreeze
	return nil
}

// prepareCruiseIn samples the cruise agent's initial velocity over the
// first few frames and back-extrapolates the start point. Returns nil
// when the phase is disabled or the sampled speed is beneath the
// sanity threshold.
func (e *Engine) prepareCruiseIn() *cruiseState {
	ci := e.cfg.CruiseIn
	if !ci.Enabled || ci.Duration <= 0 {
		return nil
	}
	a, ok := e.agents[ci.AgentID]
	if !ok {
		return nil
	}
	first, firstIdx, ok := e.ep.First(ci.AgentID)
	if !ok {
		return nil
	}

	vel, ok := e.sampleInitialVelocity(ci.AgentID, firstIdx)
	if !ok {
		return nil
	}
	speed := vel.Norm()
	if speed < ci.MinSpeed {
		e.logger.Warn("cruise-in disabled: initial speed below threshold",
			"agent", ci.AgentID, "speed", speed, "minSpeed", ci.MinSpeed)
		return nil
	}

	mult := ci.Multiplier
	if mult <= 0 {
		mult = 1
	}
	back := vel.Normalized().Scale(-speed * ci.Duration * mult)
	fromENU := first.Position.Add(back)

	to := e.mapPosition(first.Position)
	fromSim := e.mapPosition(fromENU)
	return &cruiseState{
		agent:  a,
		from:   fromSim,
		to:     to,
		orient: frame.LookRotation(to.Sub(fromSim)),
	}
}

// sampleInitialVelocity averages position deltas over the first ~10
// frames the agent appears in.
func (e *Engine) sampleInitialVelocity(id string, firstIdx int) (mathx.Vec3, bool) {
	const sampleFrames = 10
	var prev *core.AgentState
	var prevT float64
	sum := mathx.Vec3{}
	n := 0
	for i := firstIdx; i < len(e.ep.Frames) && n < sampleFrames; i++ {
		fr := e.ep.Frames[i]
		st, ok := fr.Agents[id]
		if !ok {
			continue
		}
		if prev != nil {
			dt := fr.T - prevT
			if dt > 0 {
				sum = sum.Add(st.Position.Sub(prev.Position).Scale(1 / dt))
				n++
			}
		}
		s := st
		prev = &s
		prevT = fr.T
	}
	if n == 0 {
		return mathx.Vec3{}, false
	}
	return sum.Scale(1 / float64(n)), true
}

// spawnAll places every registered agent at its first recorded pose,
// locked in a non-physical state for the freeze window.
func (e *Engine) spawnAll() {
	for id, a := range e.agents {
		if a.spawned {
			continue
		}
		st, _, ok := e.ep.First(id)
		if !ok {
			e.logger.Warn("agent not present in episode", "agent", id)
			continue
		}
		a.spawned = true
		a.vehicle.Body.SetKinematic(true)
		a.vehicle.Body.SetPose(e.mapState(st, st, 0))
	}
}

// mapPosition applies anchoring and the ENU-to-sim permutation.
func (e *Engine) mapPosition(enu mathx.Vec3) mathx.Vec3 {
	if e.cfg.AnchorENU != nil {
		enu = enu.Sub(*e.cfg.AnchorENU)
	}
	return frame.ToSim(enu).Add(e.cfg.OffsetSim)
}

// mapState interpolates two recorded states at alpha and expresses the
// result in the sim frame. Orientation comes from slerp of the
// recorded quaternions; when both are identity (absent or substituted
// during parsing) it is synthesized from the direction of travel.
func (e *Engine) mapState(a, b core.AgentState, alpha float64) core.Pose {
	pos := e.mapPosition(mathx.Lerp(a.Position, b.Position, alpha))

	identity := mathx.QuatIdentity()
	var orient mathx.Quat
	if a.Orientation == identity && b.Orientation == identity {
		travel := e.mapPosition(b.Position).Sub(e.mapPosition(a.Position))
		orient = frame.LookRotation(travel)
	} else {
		orient = frame.SimOrientation(mathx.Slerp(a.Orientation, b.Orientation, alpha))
	}
	return core.Pose{Position: pos, Orientation: orient}
}

// Bracket locates the frame pair surrounding t by binary search:
// frames[i].T <= t < frames[i+1].T, plus the interpolation factor in
// [0,1]. Query times outside the recorded range clamp to the ends.
func Bracket(frames []core.EpisodeFrame, t float64) (int, float64) {
	n := len(frames)
	if n == 0 {
		return 0, 0
	}
	if t <= frames[0].T {
		return 0, 0
	}
	if t >= frames[n-1].T {
		return n - 1, 0
	}

	lo, hi := 0, n-1
	for lo+1 < hi {
		mid := (lo + hi) / 2
		if frames[mid].T <= t {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo, alphaBetween(frames[lo].T, frames[lo+1].T, t)
}

func alphaBetween(ta, tb, t float64) float64 {
	return mathx.Clamp01((t - ta) / math.Max(1e-9, tb-ta))
}

// Tick advances the replay by one fixed timestep. Pausing stops the
// clock but the call still refreshes poses.
func (e *Engine) Tick() {
	if !e.started {
		return
	}

	switch e.phase {
	case phaseCruiseIn:
		e.tickCruiseIn()
	case phaseFreeze:
		e.tickFreeze()
	case phaseReplay:
		e.tickReplay()
	}
}

func (e *Engine) tickCruiseIn() {
	c := e.cruise
	if !e.paused {
		c.elapsed += e.dt * e.cfg.Speed
	}
	alpha := mathx.Clamp01(c.elapsed / e.cfg.CruiseIn.Duration)
	pose := core.Pose{
		Position:    mathx.Lerp(c.from, c.to, alpha),
		Orientation: c.orient,
	}
	c.agent.vehicle.Body.SetPose(pose)
	e.publish(c.agent, pose, core.StatusActive)

	if alpha >= 1 {
		// Pre-roll complete: the remaining agents spawn now.
		e.spawnAll()
		e.phase = phaseFreeze
		e.logger.Info("cruise-in complete, spawning remaining agents")
	}
}

func (e *Engine) tickFreeze() {
	for id, a := range e.agents {
		if !a.spawned {
			continue
		}
		st, _, ok := e.ep.First(id)
		if !ok {
			continue
		}
		pose := e.mapState(st, st, 0)
		a.vehicle.Body.SetPose(pose)
		e.publish(a, pose, st.Status)
	}
	if e.freezeLeft > 0 {
		e.freezeLeft--
		return
	}
	// Freeze over: command-driven agents go physical.
	for _, a := range e.agents {
		if a.spawned && a.mode == ModeCommandDriven {
			a.vehicle.Body.SetKinematic(false)
		}
	}
	e.phase = phaseReplay
}

func (e *Engine) tickReplay() {
	if !e.paused {
		e.t += e.dt * e.cfg.Speed
		if last := e.ep.Duration(); e.t > last {
			e.t = last
		}
	}

	// Amortized O(1) cursor advance; Seek relocates by binary search.
	for e.cursor+1 < len(e.ep.Frames) && e.ep.Frames[e.cursor+1].T <= e.t {
		e.cursor++
	}
	e.consumeActions()

	fa := e.ep.Frames[e.cursor]
	fb := fa
	alpha := 0.0
	if e.cursor+1 < len(e.ep.Frames) {
		fb = e.ep.Frames[e.cursor+1]
		alpha = alphaBetween(fa.T, fb.T, e.t)
	}

	for id, a := range e.agents {
		if !a.spawned {
			continue
		}
		sa, okA := fa.Agents[id]
		sb, okB := fb.Agents[id]
		if !okA && !okB {
			continue
		}
		if !okA {
			sa = sb
		}
		if !okB {
			sb = sa
		}

		switch a.mode {
		case ModeKinematic:
			pose := e.mapState(sa, sb, alpha)
			a.vehicle.Body.SetPose(pose)
			e.publish(a, pose, sa.Status)
		case ModeCommandDriven:
			e.driveFromAction(a, sa)
		}
	}
}

// consumeActions picks up recorded actions from every frame the cursor
// has reached since the last tick, so fast playback or a cold start
// cannot skip one.
func (e *Engine) consumeActions() {
	for i := e.actionCursor + 1; i <= e.cursor; i++ {
		for id, a := range e.agents {
			if a.mode != ModeCommandDriven {
				continue
			}
			if st, ok := e.ep.Frames[i].Agents[id]; ok && st.Action != nil {
				a.lastAction = *st.Action
				a.hasAction = true
			}
		}
	}
	e.actionCursor = e.cursor
}

// driveFromAction replays the held action through the control pipeline
// with zero-order hold: the latest recorded action stays in force
// until a newer one appears.
func (e *Engine) driveFromAction(a *agent, st core.AgentState) {
	if !a.hasAction {
		return
	}

	v := a.vehicle
	v.Arbiter.ActivateExternal(a.lastAction.Throttle(), a.lastAction.Rates())
	v.Attitude.ApplyRateCommand(v.Arbiter.ExternalRate(), e.dt)
	if v.Thrust != nil {
		v.Thrust.Update(v.Arbiter.Throttle(), e.dt)
	}
	e.publish(a, v.Body.Pose().Sanitized(), st.Status)
}

func (e *Engine) publish(a *agent, pose core.Pose, status core.AgentStatus) {
	if e.registry == nil {
		return
	}
	if status == "" {
		status = core.StatusActive
	}
	e.registry.Set(a.id, cache.AgentEntry{
		Pose:     pose,
		Velocity: a.vehicle.Body.Velocity(),
		Status:   status,
	})
}

// Seek relocates the replay clock, using binary search to move the
// frame cursor in O(log n).
func (e *Engine) Seek(t float64) {
	if t < 0 {
		t = 0
	}
	if last := e.ep.Duration(); t > last {
		t = last
	}
	e.t = t
	e.cursor, _ = Bracket(e.ep.Frames, t)
	// The landing frame's action is consumed on the next tick.
	e.actionCursor = e.cursor - 1
}

// StateAt returns an agent's interpolated sim-frame pose at the given
// time without advancing the engine.
func (e *Engine) StateAt(id string, t float64) (core.Pose, bool) {
	i, alpha := Bracket(e.ep.Frames, t)
	fa := e.ep.Frames[i]
	fb := fa
	if i+1 < len(e.ep.Frames) {
		fb = e.ep.Frames[i+1]
	}
	sa, okA := fa.Agents[id]
	sb, okB := fb.Agents[id]
	if !okA && !okB {
		return core.Pose{}, false
	}
	if !okA {
		sa = sb
	}
	if !okB {
		sb = sa
	}
	return e.mapState(sa, sb, alpha), true
}

// Pause stops the replay clock; ticks keep refreshing poses.
func (e *Engine) Pause() { e.paused = true }

// Resume restarts the clock.
func (e *Engine) Resume() { e.paused = false }

// Paused reports whether the clock is stopped.
func (e *Engine) Paused() bool { return e.paused }

// Time returns the current replay clock in episode seconds.
func (e *Engine) Time() float64 { return e.t }

// Done reports whether the clock has reached the last frame.
func (e *Engine) Done() bool {
	return e.phase == phaseReplay && e.t >= e.ep.Duration()
}

// Restart resets all per-episode state and runs the spawn sequence
// again, including pre-roll and freeze.
func (e *Engine) Restart() error {
	for _, a := range e.agents {
		a.spawned = false
		a.hasAction = false
		a.lastAction = core.Action{}
		a.vehicle.Reset()
	}
	if e.registry != nil {
		e.registry.Reset()
	}
	return e.Start()
}
