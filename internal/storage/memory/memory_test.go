package memory_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hlynr/interceptor/internal/episode"
	"github.com/hlynr/interceptor/internal/storage"
	"github.com/hlynr/interceptor/internal/storage/memory"
	"github.com/hlynr/interceptor/pkg/core"
	"github.com/hlynr/interceptor/pkg/mathx"
)

// Compile-time interface checks.
var (
	_ storage.Backend    = (*memory.Backend)(nil)
	_ storage.Exportable = (*memory.Backend)(nil)
)

func testHeader() *core.EpisodeHeader {
	return &core.EpisodeHeader{
		EpisodeID: "ep-mem",
		StartTime: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		DtNominal: 0.1,
		SceneName: "range-east",
	}
}

func recordedFrame(t float64, x float64) *core.EpisodeFrame {
	fuel := 0.8
	act := core.Action{0, 0.5, 0, 1, 0, 0}
	return &core.EpisodeFrame{
		T: t,
		Agents: map[string]core.AgentState{
			"missile": {
				Position:    mathx.Vec3{X: x},
				Velocity:    mathx.Vec3{X: 100},
				Orientation: mathx.QuatIdentity(),
				Status:      core.StatusActive,
				Fuel:        &fuel,
				Action:      &act,
			},
			"target": {
				Position: mathx.Vec3{X: x + 500},
				Status:   core.StatusActive,
			},
		},
		Radar: &core.RadarFrame{
			Onboard:    core.RadarReturn{Detected: true, RangeM: 500 - x},
			Confidence: 0.9,
		},
	}
}

func TestRecordRequiresEpisode(t *testing.T) {
	b := memory.New(memory.Config{})
	require.NoError(t, b.Init())
	assert.Error(t, b.RecordFrame(recordedFrame(0, 0)))
	assert.Error(t, b.EndEpisode(&core.EpisodeFooter{}))
}

func TestBufferAndFrameCount(t *testing.T) {
	b := memory.New(memory.Config{})
	require.NoError(t, b.Init())
	require.NoError(t, b.StartEpisode(testHeader()))
	require.NoError(t, b.RecordFrame(recordedFrame(0, 0)))
	require.NoError(t, b.RecordFrame(recordedFrame(0.1, 10)))
	assert.Equal(t, 2, b.FrameCount())

	// A new episode drops the previous buffer.
	require.NoError(t, b.StartEpisode(testHeader()))
	assert.Equal(t, 0, b.FrameCount())
}

func TestExportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	b := memory.New(memory.Config{ExportDir: dir})
	require.NoError(t, b.Init())

	require.NoError(t, b.StartEpisode(testHeader()))
	for i := 0; i < 5; i++ {
		require.NoError(t, b.RecordFrame(recordedFrame(float64(i)*0.1, float64(i)*10)))
	}
	require.NoError(t, b.EndEpisode(&core.EpisodeFooter{
		EpisodeID: "ep-mem",
		EndTime:   time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC),
		Duration:  0.4,
		Outcome:   "hit",
		Metrics:   core.SummaryMetrics{TotalReward: 12.5, Steps: 5, FinalDistance: 1.2, FuelUsed: 0.2},
	}))

	path := b.ExportedFilePath()
	require.NotEmpty(t, path)

	store := episode.NewStore(nil)
	ep, err := store.Parse(path)
	require.NoError(t, err)

	assert.Equal(t, "ep-mem", ep.Header.EpisodeID)
	assert.Equal(t, "range-east", ep.Header.SceneName)
	assert.InDelta(t, 0.1, ep.Header.DtNominal, 1e-9)
	require.Len(t, ep.Frames, 5)
	assert.Equal(t, []string{"missile", "target"}, ep.AgentIDs)

	fr := ep.Frames[2]
	assert.InDelta(t, 0.2, fr.T, 1e-9)
	missile := fr.Agents["missile"]
	assert.InDelta(t, 20, missile.Position.X, 1e-9)
	require.NotNil(t, missile.Fuel)
	assert.InDelta(t, 0.8, *missile.Fuel, 1e-9)
	require.NotNil(t, missile.Action)
	assert.InDelta(t, 0.5, missile.Action[1], 1e-9)
	require.NotNil(t, fr.Radar)
	assert.True(t, fr.Radar.Onboard.Detected)
	assert.InDelta(t, 0.9, fr.Radar.Confidence, 1e-9)

	require.NotNil(t, ep.Footer)
	assert.Equal(t, "hit", ep.Footer.Outcome)
	assert.InDelta(t, 12.5, ep.Footer.Metrics.TotalReward, 1e-9)
	assert.Equal(t, 5, ep.Footer.Metrics.Steps)
}

func TestNoExportWithoutDir(t *testing.T) {
	b := memory.New(memory.Config{})
	require.NoError(t, b.Init())
	require.NoError(t, b.StartEpisode(testHeader()))
	require.NoError(t, b.RecordFrame(recordedFrame(0, 0)))
	require.NoError(t, b.EndEpisode(&core.EpisodeFooter{EpisodeID: "ep-mem"}))
	assert.Empty(t, b.ExportedFilePath())
}
