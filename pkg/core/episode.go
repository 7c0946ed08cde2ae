// pkg/core/episode.go
package core

import (
	"time"

	"github.com/hlynr/interceptor/pkg/mathx"
)

// RadarReturn is one sensor's view of the target in a radar sub-frame.
type RadarReturn struct {
	Detected bool
	Position mathx.Vec3
	RangeM   float64
}

// RadarFrame is the optional sensor sub-frame attached to an
// EpisodeFrame: the onboard seeker return, the ground radar return,
// and the fusion confidence in [0,1].
type RadarFrame struct {
	Onboard    RadarReturn
	Ground     RadarReturn
	Confidence float64
}

// EpisodeFrame is one time slice of a recorded episode. T is seconds
// from episode start and strictly increases across the sequence.
type EpisodeFrame struct {
	T      float64
	Agents map[string]AgentState
	Radar  *RadarFrame
}

// EpisodeHeader carries episode identity and scene configuration.
type EpisodeHeader struct {
	EpisodeID string
	StartTime time.Time
	DtNominal float64 // 0 when the recording did not supply one
	SceneName string

	// Geodetic anchor of the ENU origin, when the scene is georeferenced.
	OriginLat float64
	OriginLon float64
}

// SummaryMetrics are the footer roll-up metrics of an episode.
type SummaryMetrics struct {
	TotalReward   float64
	Steps         int
	FinalDistance float64
	FuelUsed      float64
}

// EpisodeFooter closes an episode with its outcome and summary.
type EpisodeFooter struct {
	EpisodeID string
	EndTime   time.Time
	Duration  float64
	Outcome   string
	Metrics   SummaryMetrics
}

// Episode is an immutable, fully parsed recording: ordered frames plus
// header and optional footer metadata.
type Episode struct {
	Header   EpisodeHeader
	Frames   []EpisodeFrame
	Footer   *EpisodeFooter
	AgentIDs []string // sorted, every agent seen in any frame
}

// Duration returns the timestamp of the last frame, or zero for an
// empty episode.
func (e *Episode) Duration() float64 {
	if len(e.Frames) == 0 {
		return 0
	}
	return e.Frames[len(e.Frames)-1].T
}

// Dt returns the nominal timestep: the header value when present,
// otherwise the estimate stored during parsing.
func (e *Episode) Dt() float64 {
	return e.Header.DtNominal
}

// First returns the first recorded state of the given agent and the
// frame index it appears in.
func (e *Episode) First(agentID string) (AgentState, int, bool) {
	for i, f := range e.Frames {
		if st, ok := f.Agents[agentID]; ok {
			return st, i, true
		}
	}
	return AgentState{}, 0, false
}
