package main

import (
	"flag"
	"fmt"

	"github.com/spf13/viper"

	"github.com/hlynr/interceptor/internal/config"
	"github.com/hlynr/interceptor/internal/policy"
	"github.com/hlynr/interceptor/internal/sim"
	"github.com/hlynr/interceptor/pkg/core"
	"github.com/hlynr/interceptor/pkg/mathx"
	"github.com/hlynr/interceptor/pkg/streaming"
)

const gravityMS2 = 9.80665

// runDemo flies a live intercept against a ballistic target and records
// the episode through the normal recording path. When the policy link
// is enabled in config, external commands override onboard guidance.
func runDemo(args []string) error {
	fs := flag.NewFlagSet("demo", flag.ContinueOnError)
	scene := fs.String("scene", "head_on", "scene name written to the episode header")
	duration := fs.Float64("duration", 30, "maximum episode length in seconds")
	hitRadius := fs.Float64("hit-radius", 5, "intercept distance in meters")
	if err := fs.Parse(args); err != nil {
		return err
	}

	dt := viper.GetFloat64("sim.dt")
	engine := sim.NewEngine(dt, Registry, Logger)

	interceptor, interceptorBody := buildInterceptor()
	target, targetBody := buildTarget()
	engine.AddVehicle(interceptor)
	engine.AddVehicle(target)
	bodies := []*sim.Body{interceptorBody, targetBody}

	result, err := dispatchCommand(":RECORD:START:", *scene)
	if err != nil {
		return err
	}
	episodeID, _ := result.(string)
	Logger.Info("Episode recording", "id", episodeID, "scene", *scene)

	var bridge *policy.Bridge
	pcfg := config.GetPolicyConfig()
	if pcfg.Enabled {
		bridge = policy.NewBridge(policy.Config{
			URL:        pcfg.URL,
			Token:      pcfg.Token,
			StaleTicks: pcfg.StaleTicks,
			DecayTicks: pcfg.DecayTicks,
		}, Logger)
		if err := bridge.Connect(streaming.HelloPayload{
			EpisodeID: episodeID,
			AgentID:   interceptor.ID,
			Dt:        dt,
		}); err != nil {
			Logger.Warn("Policy link unavailable, flying autonomous", "error", err)
			bridge = nil
		}
	}

	if err := MonitorSvc.Start(); err != nil {
		Logger.Warn("Monitor endpoint unavailable", "error", err)
	}

	steps := int(*duration / dt)
	outcome := "miss"
	var t float64
	for i := 0; i < steps; i++ {
		stats := engine.Tick()
		applyGravity(bodies)
		for _, b := range bodies {
			b.Step(dt)
		}
		t = float64(i+1) * dt

		snap := engine.Snapshot(t)
		snap.Radar = radarFrame(interceptor, interceptorBody, targetBody)
		RecorderSvc.Enqueue(snap)
		MonitorSvc.Observe(episodeID, stats)

		if bridge != nil {
			driveFromPolicy(bridge, stats.Tick, t, dt, interceptor, snap)
		}

		sep := targetBody.Pose().Position.Sub(interceptorBody.Pose().Position)
		if sep.Norm() <= *hitRadius {
			outcome = "hit"
			break
		}
		if targetBody.Pose().Position.Y <= 0 {
			break
		}
	}

	if bridge != nil {
		if err := bridge.Close(streaming.EpisodeEndPayload{
			EpisodeID: episodeID,
			Outcome:   outcome,
			T:         t,
		}); err != nil {
			Logger.Warn("Error closing policy link", "error", err)
		}
	}
	if _, err := dispatchCommand(":RECORD:STOP:", outcome); err != nil {
		return err
	}

	fmt.Printf("episode %s finished: outcome=%s t=%.2fs\n", episodeID, outcome, t)
	return nil
}

// buildInterceptor assembles the full control stack from the sim.*
// config keys: seeker, proportional navigation, rate PID into torque
// actuators, and a fuel-limited boost-sustain thrust curve.
func buildInterceptor() (*sim.Vehicle, *sim.Body) {
	body := sim.NewBody(100, 50)
	body.SetPose(core.Pose{
		Position:    mathx.Vec3{},
		Orientation: mathx.Quat{W: 1},
	})

	seeker := sim.NewSeeker(sim.SeekerConfig{
		HalfFOVDeg:    viper.GetFloat64("sim.seeker.halfFovDeg"),
		MaxRangeM:     viper.GetFloat64("sim.seeker.maxRange"),
		MaxLOSRateRad: viper.GetFloat64("sim.seeker.maxLosRate"),
	})
	actuator := sim.NewActuator(mathx.Vec3{X: 40, Y: 40, Z: 10}, body)
	attitude := sim.NewAttitudeController(sim.PIDGains{
		Kp: mathx.Vec3{X: 2, Y: 2, Z: 1},
		Kd: mathx.Vec3{X: 0.4, Y: 0.4, Z: 0.2},
	}, body, actuator)
	fuel := sim.NewFuelModel(8, 0.8)
	thrust := sim.NewThrustModel([]sim.ThrustPoint{
		{T: 0, Newtons: 2400},
		{T: 2, Newtons: 3000},
		{T: 6, Newtons: 1200},
		{T: 10, Newtons: 0},
	}, fuel, body)

	return &sim.Vehicle{
		ID:       "interceptor_0",
		TargetID: "target_0",
		Body:     body,
		Seeker:   seeker,
		Guidance: sim.NewProNav(viper.GetFloat64("sim.guidance.timeToAlign")),
		Attitude: attitude,
		Actuator: actuator,
		Arbiter: sim.NewArbiter(sim.ArbiterConfig{
			MaxRateRad:  viper.GetFloat64("sim.maxRateRad"),
			ThrustFloor: viper.GetFloat64("sim.thrustFloor"),
		}),
		Fuel:   fuel,
		Thrust: thrust,
	}, body
}

// buildTarget assembles a ballistic target: no seeker and no thrust,
// just a body on an inbound descent. The controller stack is present
// but idle since the vehicle pursues nothing.
func buildTarget() (*sim.Vehicle, *sim.Body) {
	body := sim.NewBody(500, 200)
	body.SetPose(core.Pose{
		Position:    mathx.Vec3{X: 200, Y: 1500, Z: 6000},
		Orientation: mathx.Quat{W: 1},
	})
	body.SetVelocity(mathx.Vec3{X: -5, Y: -40, Z: -180})

	actuator := sim.NewActuator(mathx.Vec3{}, body)
	return &sim.Vehicle{
		ID:       "target_0",
		Body:     body,
		Guidance: sim.NewProNav(1),
		Attitude: sim.NewAttitudeController(sim.PIDGains{}, body, actuator),
		Actuator: actuator,
		Arbiter:  sim.NewArbiter(sim.ArbiterConfig{}),
	}, body
}

// applyGravity adds weight to each body. Force accumulators are in the
// body frame, so the world-frame gravity vector is rotated back through
// the current attitude.
func applyGravity(bodies []*sim.Body) {
	for _, b := range bodies {
		world := mathx.Vec3{Y: -gravityMS2 * b.Mass()}
		b.ApplyForce(b.Pose().Orientation.RotateInverse(world))
	}
}

// radarFrame fuses the onboard seeker return with an idealized ground
// radar track of the target.
func radarFrame(v *sim.Vehicle, own, target *sim.Body) *core.RadarFrame {
	sep := target.Pose().Position.Sub(own.Pose().Position)
	rangeM := sep.Norm()
	locked := v.Seeker != nil && v.Seeker.HasLock()

	rf := &core.RadarFrame{
		Ground: core.RadarReturn{
			Detected: true,
			Position: target.Pose().Position,
			RangeM:   target.Pose().Position.Norm(),
		},
		Confidence: 0.5,
	}
	if locked {
		rf.Onboard = core.RadarReturn{
			Detected: true,
			Position: target.Pose().Position,
			RangeM:   rangeM,
		}
		rf.Confidence = 1
	}
	return rf
}

// driveFromPolicy forwards the latest observation and applies any
// pending external command through the arbiter.
func driveFromPolicy(bridge *policy.Bridge, tick uint64, t, dt float64, v *sim.Vehicle, snap core.EpisodeFrame) {
	own, ok := snap.Agents[v.ID]
	if !ok {
		return
	}
	var tgt *core.AgentState
	if st, ok := snap.Agents[v.TargetID]; ok {
		tgt = &st
	}

	fuel := 0.0
	if v.Fuel != nil {
		fuel = v.Fuel.Fraction()
	}
	bridge.Observe(tick, t, v.ID, dt, own, fuel, tgt)

	if cmd, ok := bridge.Poll(); ok {
		v.Arbiter.ActivateExternal(cmd.Thrust, cmd.Rate)
	} else if !bridge.Healthy() {
		v.Arbiter.DeactivateExternal()
	}
}
