// internal/episode/record.go
package episode

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/hlynr/interceptor/pkg/core"
	"github.com/hlynr/interceptor/pkg/mathx"
)

// Record type discriminants of the canonical (v2) schema.
const (
	TypeHeader = "header"
	TypeState  = "state"
	TypeRadar  = "radar"
	TypeFooter = "footer"
)

var errUnknownRecord = errors.New("unknown record shape")

// rawRecord is the superset of all line shapes across schema versions.
// Classification happens on the discriminant when present, otherwise on
// field presence (legacy v1 files carry no "type").
type rawRecord struct {
	Type string `json:"type,omitempty"`

	// header fields
	EpisodeID string  `json:"episode_id,omitempty"`
	StartTime string  `json:"start_time,omitempty"`
	DtNominal float64 `json:"dt_nominal,omitempty"`
	SceneName string  `json:"scene,omitempty"`
	OriginLat float64 `json:"origin_lat,omitempty"`
	OriginLon float64 `json:"origin_lon,omitempty"`

	// state fields
	Timestamp *float64  `json:"timestamp,omitempty"`
	EntityID  string    `json:"entity_id,omitempty"`
	State     *rawState `json:"state,omitempty"`

	// radar sub-frame fields
	Onboard    *rawReturn `json:"onboard,omitempty"`
	Ground     *rawReturn `json:"ground,omitempty"`
	Confidence float64    `json:"confidence,omitempty"`

	// footer fields
	EndTime  string             `json:"end_time,omitempty"`
	Duration float64            `json:"duration,omitempty"`
	Outcome  string             `json:"outcome,omitempty"`
	Metrics  map[string]float64 `json:"metrics,omitempty"`
}

type rawState struct {
	Position        []float64 `json:"position"`
	Velocity        []float64 `json:"velocity,omitempty"`
	Orientation     []float64 `json:"orientation,omitempty"` // [w,x,y,z]
	AngularVelocity []float64 `json:"angular_velocity,omitempty"`
	Fuel            *float64  `json:"fuel,omitempty"`
	Action          []float64 `json:"action,omitempty"`
	Status          string    `json:"status,omitempty"`
}

type rawReturn struct {
	Detected bool      `json:"detected"`
	Position []float64 `json:"position,omitempty"`
	RangeM   float64   `json:"range,omitempty"`
}

// classify decides the record kind. Files written by newer recorders
// carry an explicit discriminant; older ones are classified by which
// fields are present.
func (r *rawRecord) classify() (string, error) {
	switch r.Type {
	case TypeHeader, TypeState, TypeRadar, TypeFooter:
		return r.Type, nil
	case "":
	default:
		return "", errUnknownRecord
	}
	switch {
	case r.EntityID != "" && r.State != nil:
		return TypeState, nil
	case r.Outcome != "" || r.EndTime != "":
		return TypeFooter, nil
	case r.EpisodeID != "":
		return TypeHeader, nil
	case r.Onboard != nil || r.Ground != nil:
		return TypeRadar, nil
	}
	return "", errUnknownRecord
}

func parseLine(line []byte) (*rawRecord, string, error) {
	var r rawRecord
	if err := json.Unmarshal(line, &r); err != nil {
		return nil, "", err
	}
	kind, err := r.classify()
	if err != nil {
		return nil, "", err
	}
	return &r, kind, nil
}

func vec3From(s []float64) mathx.Vec3 {
	if len(s) < 3 {
		return mathx.Vec3{}
	}
	return mathx.Vec3{X: s[0], Y: s[1], Z: s[2]}
}

func quatFrom(s []float64) mathx.Quat {
	if len(s) < 4 {
		return mathx.QuatIdentity()
	}
	return mathx.Quat{W: s[0], X: s[1], Y: s[2], Z: s[3]}
}

// agentState converts a raw state block into the canonical model.
// The orientation is sanitized here so a degenerate recorded quaternion
// never crosses this boundary; sanitized reports whether a substitution
// happened so the caller can log a data-quality warning.
func (r *rawState) agentState() (core.AgentState, bool) {
	q := quatFrom(r.Orientation)
	substituted := len(r.Orientation) >= 4 && !q.IsValid()

	st := core.AgentState{
		Position:        vec3From(r.Position),
		Velocity:        vec3From(r.Velocity),
		Orientation:     q.Sanitized(),
		AngularVelocity: vec3From(r.AngularVelocity),
		Status:          core.StatusActive,
		Fuel:            r.Fuel,
	}
	if r.Status != "" {
		st.Status = core.AgentStatus(r.Status)
	}
	if len(r.Action) >= 6 {
		var a core.Action
		copy(a[:], r.Action[:6])
		st.Action = &a
	}
	return st, substituted
}

func (r *rawRecord) header() core.EpisodeHeader {
	h := core.EpisodeHeader{
		EpisodeID: r.EpisodeID,
		DtNominal: r.DtNominal,
		SceneName: r.SceneName,
		OriginLat: r.OriginLat,
		OriginLon: r.OriginLon,
	}
	if t, err := time.Parse(time.RFC3339, r.StartTime); err == nil {
		h.StartTime = t
	}
	return h
}

func (r *rawRecord) footer() *core.EpisodeFooter {
	f := &core.EpisodeFooter{
		EpisodeID: r.EpisodeID,
		Duration:  r.Duration,
		Outcome:   r.Outcome,
	}
	if t, err := time.Parse(time.RFC3339, r.EndTime); err == nil {
		f.EndTime = t
	}
	if r.Metrics != nil {
		f.Metrics = core.SummaryMetrics{
			TotalReward:   r.Metrics["total_reward"],
			Steps:         int(r.Metrics["steps"]),
			FinalDistance: r.Metrics["final_distance"],
			FuelUsed:      r.Metrics["fuel_used"],
		}
	}
	return f
}

func (r *rawRecord) radar() *core.RadarFrame {
	rf := &core.RadarFrame{Confidence: mathx.Clamp01(r.Confidence)}
	if r.Onboard != nil {
		rf.Onboard = core.RadarReturn{
			Detected: r.Onboard.Detected,
			Position: vec3From(r.Onboard.Position),
			RangeM:   r.Onboard.RangeM,
		}
	}
	if r.Ground != nil {
		rf.Ground = core.RadarReturn{
			Detected: r.Ground.Detected,
			Position: vec3From(r.Ground.Position),
			RangeM:   r.Ground.RangeM,
		}
	}
	return rf
}
