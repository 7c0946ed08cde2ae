// Package policy bridges the simulation loop to an external guidance
// policy served over WebSocket. Observations go out once per tick;
// commands come back asynchronously and are applied with zero-order
// hold. When the link goes quiet the bridge decays thrust to zero over
// a bounded number of ticks while holding the last rate command.
package policy

import (
	"encoding/json"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/hlynr/interceptor/pkg/core"
	"github.com/hlynr/interceptor/pkg/mathx"
	"github.com/hlynr/interceptor/pkg/streaming"
)

// Config tunes the bridge.
type Config struct {
	URL   string
	Token string

	// StaleTicks is how many ticks the last command stays trusted
	// after it arrives. Beyond that the link counts as unhealthy.
	StaleTicks int
	// DecayTicks is how many further ticks thrust takes to ramp from
	// the held value to zero once the link is unhealthy.
	DecayTicks int
	// AckTimeout bounds the wait for the hello acknowledgement.
	AckTimeout time.Duration
}

// Command is the bridge's output for one tick.
type Command struct {
	Thrust float64
	Rate   mathx.Vec3
}

// Bridge owns the policy connection and the latest-command slot. Poll
// and Observe are called from the tick goroutine; the command slot is
// written from the read goroutine.
type Bridge struct {
	cfg    Config
	conn   *connection
	logger *slog.Logger

	// Single-slot mailbox: the read goroutine overwrites, the tick
	// goroutine swaps out. Only the newest command ever matters.
	latest  atomic.Pointer[streaming.CommandPayload]
	obsTick atomic.Uint64

	ackCh chan streaming.AckMessage

	// Tick-goroutine state.
	held         Command
	hasHeld      bool
	lastCmdTick  uint64
	sinceCommand int

	// LOS memory for the derived observation features.
	prevLOS    mathx.Vec3
	hasPrevLOS bool
}

// NewBridge creates an unconnected bridge.
func NewBridge(cfg Config, logger *slog.Logger) *Bridge {
	if cfg.StaleTicks <= 0 {
		cfg.StaleTicks = 10
	}
	if cfg.DecayTicks <= 0 {
		cfg.DecayTicks = 25
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bridge{
		cfg:    cfg,
		logger: logger,
		ackCh:  make(chan streaming.AckMessage, 4),
	}
	b.conn = newConnection(b.handleEnvelope, logger)
	return b
}

// Connect dials the policy server and announces the session. It blocks
// until the server acknowledges the hello or the timeout expires; an
// unacknowledged session still proceeds, degraded, since the sim can
// fly autonomously.
func (b *Bridge) Connect(hello streaming.HelloPayload) error {
	if err := b.conn.dial(b.cfg.URL, b.cfg.Token); err != nil {
		return err
	}

	data, err := streaming.Wrap(streaming.TypeHello, hello)
	if err != nil {
		return err
	}
	b.conn.setHello(data)
	b.conn.send(data)

	timer := time.NewTimer(b.cfg.AckTimeout)
	defer timer.Stop()
	for {
		select {
		case ack := <-b.ackCh:
			if ack.For == streaming.TypeHello {
				b.logger.Info("Policy session established",
					"episode", hello.EpisodeID, "agent", hello.AgentID)
				return nil
			}
		case <-timer.C:
			b.logger.Warn("Policy hello not acknowledged, continuing without confirmation")
			return nil
		}
	}
}

// Close ends the session and tears the connection down.
func (b *Bridge) Close(end streaming.EpisodeEndPayload) error {
	if data, err := streaming.Wrap(streaming.TypeEpisodeEnd, end); err == nil {
		b.conn.send(data)
	}
	return b.conn.close()
}

// handleEnvelope runs on the read goroutine.
func (b *Bridge) handleEnvelope(env streaming.Envelope) {
	switch env.Type {
	case streaming.TypeAck:
		var ack streaming.AckMessage
		if err := json.Unmarshal(env.Payload, &ack); err == nil {
			select {
			case b.ackCh <- ack:
			default:
			}
		}
	case streaming.TypeCommand:
		var cmd streaming.CommandPayload
		if err := json.Unmarshal(env.Payload, &cmd); err != nil {
			b.logger.Warn("Malformed command payload dropped", "error", err)
			return
		}
		if !validCommand(cmd) {
			b.logger.Warn("Non-finite command dropped", "tick", cmd.Tick)
			return
		}
		// Reject replies to observations the sim has long moved past.
		if obs := b.obsTick.Load(); obs > uint64(b.cfg.StaleTicks) && cmd.Tick < obs-uint64(b.cfg.StaleTicks) {
			b.logger.Warn("Stale command dropped", "commandTick", cmd.Tick, "observationTick", obs)
			return
		}
		b.latest.Store(&cmd)
	default:
		b.logger.Debug("Unhandled policy message", "type", env.Type)
	}
}

func validCommand(cmd streaming.CommandPayload) bool {
	return !math.IsNaN(cmd.ThrustCmd) && !math.IsInf(cmd.ThrustCmd, 0) && cmd.RateCmd.IsFinite()
}

// Observe derives engagement features, publishes the observation and
// returns it. Must be called from the tick goroutine.
func (b *Bridge) Observe(tick uint64, t float64, agentID string, dt float64, own core.AgentState, fuel float64, target *core.AgentState) streaming.ObservationPayload {
	obs := streaming.ObservationPayload{
		Tick:            tick,
		T:               t,
		AgentID:         agentID,
		Position:        own.Position,
		Velocity:        own.Velocity,
		Orientation:     own.Orientation,
		AngularVelocity: own.AngularVelocity,
		FuelFraction:    fuel,
	}

	if target != nil {
		obs.HasTarget = true
		obs.TargetPosition = target.Position
		obs.TargetVelocity = target.Velocity

		rel := target.Position.Sub(own.Position)
		obs.RangeM = rel.Norm()
		obs.LOSUnit = rel.Normalized()

		relVel := target.Velocity.Sub(own.Velocity)
		obs.ClosingSpeed = -relVel.Dot(obs.LOSUnit)

		if b.hasPrevLOS && dt > 0 {
			d := mathx.Clamp(b.prevLOS.Dot(obs.LOSUnit), -1, 1)
			obs.LOSRateRad = math.Acos(d) / dt
		}
		b.prevLOS = obs.LOSUnit
		b.hasPrevLOS = true
	} else {
		b.hasPrevLOS = false
	}

	b.obsTick.Store(tick)
	if data, err := streaming.Wrap(streaming.TypeObservation, obs); err == nil {
		b.conn.send(data)
	}
	return obs
}

// Poll returns the command to apply this tick. The second return is
// false only before any command has ever arrived. A fresh command
// resets the hold; a quiet link holds the last command for StaleTicks,
// then ramps thrust to zero over DecayTicks while keeping the rate.
func (b *Bridge) Poll() (Command, bool) {
	if cmd := b.latest.Swap(nil); cmd != nil {
		b.held = Command{Thrust: cmd.ThrustCmd, Rate: cmd.RateCmd}
		b.hasHeld = true
		b.lastCmdTick = cmd.Tick
		b.sinceCommand = 0
		return b.held, true
	}

	if !b.hasHeld {
		return Command{}, false
	}

	b.sinceCommand++
	if b.sinceCommand <= b.cfg.StaleTicks {
		return b.held, true
	}

	over := b.sinceCommand - b.cfg.StaleTicks
	scale := 1 - float64(over)/float64(b.cfg.DecayTicks)
	if scale < 0 {
		scale = 0
	}
	return Command{Thrust: b.held.Thrust * scale, Rate: b.held.Rate}, true
}

// Healthy reports whether the last command is still inside the trust
// window.
func (b *Bridge) Healthy() bool {
	return b.hasHeld && b.sinceCommand <= b.cfg.StaleTicks
}
