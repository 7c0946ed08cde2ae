package monitor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hlynr/interceptor/internal/logging"
	"github.com/hlynr/interceptor/internal/sim"
)

func newTestService(statusDir string) *Service {
	return NewService(Dependencies{
		LogManager: logging.NewSlogManager(),
		StatusDir:  statusDir,
	})
}

func TestSnapshotBeforeAnySample(t *testing.T) {
	s := newTestService("")
	_, ok := s.Snapshot()
	assert.False(t, ok)
}

func TestObserveAndSnapshot(t *testing.T) {
	s := newTestService("")
	s.Observe("ep-1", sim.TickStats{
		Tick:     7,
		Duration: 1500 * time.Microsecond,
		Vehicles: 2,
		Locked:   1,
	})

	status, ok := s.Snapshot()
	require.True(t, ok)
	assert.Equal(t, "ep-1", status.EpisodeID)
	assert.EqualValues(t, 7, status.Tick)
	assert.InDelta(t, 1.5, status.TickMs, 1e-9)
	assert.Equal(t, 2, status.Vehicles)
	assert.Equal(t, 1, status.SeekerLocks)
	assert.False(t, status.Recording, "no recorder wired")
}

func TestPublishWritesStatusFile(t *testing.T) {
	dir := t.TempDir()
	s := newTestService(dir)
	s.Observe("ep-file", sim.TickStats{Tick: 3, Vehicles: 1})

	status, ok := s.Snapshot()
	require.True(t, ok)
	s.publish(status)

	data, err := os.ReadFile(filepath.Join(dir, "status.json"))
	require.NoError(t, err)

	var got Status
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "ep-file", got.EpisodeID)
	assert.EqualValues(t, 3, got.Tick)
}

func TestStartStopIdempotent(t *testing.T) {
	s := newTestService("")
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	require.NoError(t, s.Start(), "second start is a no-op")

	s.Stop()
	assert.False(t, s.IsRunning())
	s.Stop()
}
