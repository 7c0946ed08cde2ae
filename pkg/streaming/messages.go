// Package streaming defines the wire protocol spoken with an external
// guidance policy server over WebSocket. All messages are JSON text
// frames wrapped in an Envelope.
package streaming

import (
	"encoding/json"

	"github.com/hlynr/interceptor/pkg/mathx"
)

// Message type constants matching the policy protocol.
const (
	TypeHello       = "hello"
	TypeObservation = "observation"
	TypeCommand     = "command"
	TypeEpisodeEnd  = "episode_end"
	TypeAck         = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// HelloPayload announces a new control session. The policy server
// acknowledges it before observations start flowing.
type HelloPayload struct {
	EpisodeID string  `json:"episode_id"`
	AgentID   string  `json:"agent_id"`
	Dt        float64 `json:"dt"`
}

// ObservationPayload carries one tick of vehicle and target kinematics
// in the external frame, plus derived engagement features so the
// policy does not have to recompute them.
type ObservationPayload struct {
	Tick      uint64  `json:"tick"`
	T         float64 `json:"t"`
	AgentID   string  `json:"agent_id"`
	HasTarget bool    `json:"has_target"`

	Position        mathx.Vec3 `json:"position"`
	Velocity        mathx.Vec3 `json:"velocity"`
	Orientation     mathx.Quat `json:"orientation"`
	AngularVelocity mathx.Vec3 `json:"angular_velocity"`
	FuelFraction    float64    `json:"fuel_fraction"`

	TargetPosition mathx.Vec3 `json:"target_position"`
	TargetVelocity mathx.Vec3 `json:"target_velocity"`

	LOSUnit      mathx.Vec3 `json:"los_unit"`
	LOSRateRad   float64    `json:"los_rate_rad"`
	RangeM       float64    `json:"range_m"`
	ClosingSpeed float64    `json:"closing_speed"`
}

// CommandPayload is the policy's reply: a normalized throttle and a
// body-frame angular rate demand. Tick echoes the observation the
// command answers, so stale replies can be rejected.
type CommandPayload struct {
	Tick      uint64     `json:"tick"`
	ThrustCmd float64    `json:"thrust_cmd"`
	RateCmd   mathx.Vec3 `json:"rate_cmd"`
}

// EpisodeEndPayload closes a control session.
type EpisodeEndPayload struct {
	EpisodeID string  `json:"episode_id"`
	Outcome   string  `json:"outcome"`
	T         float64 `json:"t"`
}

// Wrap marshals a payload into an Envelope frame.
func Wrap(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}
