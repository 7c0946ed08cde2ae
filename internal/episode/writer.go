// internal/episode/writer.go
package episode

import (
	"bufio"
	"encoding/json"
	"io"
	"time"

	"github.com/hlynr/interceptor/pkg/core"
	"github.com/hlynr/interceptor/pkg/mathx"
)

// Writer emits episode records in the canonical line format, one JSON
// document per line with an explicit type discriminant. Output written
// through it parses back with Store.Parse.
type Writer struct {
	bw *bufio.Writer
}

// NewWriter wraps w for record output.
func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriter(w)}
}

func (w *Writer) emit(r rawRecord) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	if _, err := w.bw.Write(data); err != nil {
		return err
	}
	return w.bw.WriteByte('\n')
}

// Header writes the opening record.
func (w *Writer) Header(h core.EpisodeHeader) error {
	return w.emit(rawRecord{
		Type:      TypeHeader,
		EpisodeID: h.EpisodeID,
		StartTime: h.StartTime.Format(time.RFC3339),
		DtNominal: h.DtNominal,
		SceneName: h.SceneName,
		OriginLat: h.OriginLat,
		OriginLon: h.OriginLon,
	})
}

// State writes one agent's state at time t.
func (w *Writer) State(t float64, agentID string, st core.AgentState) error {
	ts := t
	raw := &rawState{
		Position:        sliceFromVec3(st.Position),
		Velocity:        sliceFromVec3(st.Velocity),
		Orientation:     sliceFromQuat(st.Orientation),
		AngularVelocity: sliceFromVec3(st.AngularVelocity),
		Fuel:            st.Fuel,
		Status:          string(st.Status),
	}
	if st.Action != nil {
		raw.Action = append([]float64(nil), st.Action[:]...)
	}
	return w.emit(rawRecord{
		Type:      TypeState,
		Timestamp: &ts,
		EntityID:  agentID,
		State:     raw,
	})
}

// Radar writes the sensor sub-frame at time t.
func (w *Writer) Radar(t float64, rf core.RadarFrame) error {
	ts := t
	return w.emit(rawRecord{
		Type:       TypeRadar,
		Timestamp:  &ts,
		Onboard:    rawReturnFrom(rf.Onboard),
		Ground:     rawReturnFrom(rf.Ground),
		Confidence: rf.Confidence,
	})
}

// Footer writes the closing record.
func (w *Writer) Footer(f core.EpisodeFooter) error {
	return w.emit(rawRecord{
		Type:      TypeFooter,
		EpisodeID: f.EpisodeID,
		EndTime:   f.EndTime.Format(time.RFC3339),
		Duration:  f.Duration,
		Outcome:   f.Outcome,
		Metrics: map[string]float64{
			"total_reward":   f.Metrics.TotalReward,
			"steps":          float64(f.Metrics.Steps),
			"final_distance": f.Metrics.FinalDistance,
			"fuel_used":      f.Metrics.FuelUsed,
		},
	})
}

// Flush drains buffered output to the underlying writer.
func (w *Writer) Flush() error {
	return w.bw.Flush()
}

func sliceFromVec3(v mathx.Vec3) []float64 {
	return []float64{v.X, v.Y, v.Z}
}

func sliceFromQuat(q mathx.Quat) []float64 {
	return []float64{q.W, q.X, q.Y, q.Z}
}

func rawReturnFrom(r core.RadarReturn) *rawReturn {
	return &rawReturn{
		Detected: r.Detected,
		Position: sliceFromVec3(r.Position),
		RangeM:   r.RangeM,
	}
}
