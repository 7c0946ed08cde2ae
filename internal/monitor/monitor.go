// Package monitor samples control loop health and fans it out to a
// status file, InfluxDB, and the relational store.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hlynr/interceptor/internal/influx"
	"github.com/hlynr/interceptor/internal/logging"
	"github.com/hlynr/interceptor/internal/model"
	"github.com/hlynr/interceptor/internal/recorder"
	"github.com/hlynr/interceptor/internal/sim"
	"github.com/hlynr/interceptor/internal/storage/gormdb"
)

const sampleInterval = time.Second

// Dependencies holds all collaborators for the monitor service. Influx
// and Perf are optional; nil disables that sink.
type Dependencies struct {
	LogManager *logging.SlogManager
	Influx     *influx.Manager
	Perf       *gormdb.Backend
	Recorder   *recorder.Recorder
	StatusDir  string
}

// Status is the snapshot written to status.json once per second.
type Status struct {
	Time        time.Time `json:"time"`
	EpisodeID   string    `json:"episode_id,omitempty"`
	Tick        uint64    `json:"tick"`
	TickMs      float64   `json:"tick_ms"`
	Vehicles    int       `json:"vehicles"`
	SeekerLocks int       `json:"seeker_locks"`
	QueueDepth  int       `json:"queue_depth"`
	FlushMs     float64   `json:"flush_ms"`
	Recording   bool      `json:"recording"`
}

// Service manages the status monitor goroutine.
type Service struct {
	deps Dependencies

	mu        sync.RWMutex
	isRunning bool
	stopChan  chan struct{}
	episodeID string
	latest    sim.TickStats
	hasSample bool
}

// NewService creates a new monitor service.
func NewService(deps Dependencies) *Service {
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running.
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Observe records the latest tick sample. Called from the tick loop,
// so it only stores; all I/O happens on the monitor goroutine.
func (s *Service) Observe(episodeID string, stats sim.TickStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.episodeID = episodeID
	s.latest = stats
	s.hasSample = true
}

// Snapshot builds the current status from the last observed tick.
func (s *Service) Snapshot() (Status, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasSample {
		return Status{}, false
	}

	st := Status{
		Time:        time.Now().UTC(),
		EpisodeID:   s.episodeID,
		Tick:        s.latest.Tick,
		TickMs:      float64(s.latest.Duration.Microseconds()) / 1000.0,
		Vehicles:    s.latest.Vehicles,
		SeekerLocks: s.latest.Locked,
	}
	if s.deps.Recorder != nil {
		st.QueueDepth = s.deps.Recorder.QueueLen()
		st.FlushMs = float64(s.deps.Recorder.LastFlushDuration().Microseconds()) / 1000.0
		st.Recording = s.deps.Recorder.Running()
	}
	return st, true
}

// Start starts the status monitor goroutine.
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	stop := s.stopChan
	s.mu.Unlock()

	go s.run(stop)
	return nil
}

// Stop stops the status monitor.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		close(s.stopChan)
		s.isRunning = false
	}
}

func (s *Service) run(stop chan struct{}) {
	logger := s.deps.LogManager.Logger()
	logger.Debug("Starting status monitor goroutine")

	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			status, ok := s.Snapshot()
			if !ok {
				continue
			}
			s.publish(status)
		}
	}
}

func (s *Service) publish(status Status) {
	logger := s.deps.LogManager.Logger()

	if s.deps.StatusDir != "" {
		if err := s.writeStatusFile(status); err != nil {
			logger.Error("Error writing status file", "error", err)
		}
	}

	if s.deps.Influx != nil {
		s.mu.RLock()
		stats := s.latest
		s.mu.RUnlock()
		point := influx.TickPoint(status.EpisodeID, stats, status.QueueDepth)
		if err := s.deps.Influx.WritePoint(context.Background(), "sim_perf", point); err != nil {
			logger.Error("Error writing tick point to InfluxDB", "error", err)
		}
	}

	if s.deps.Perf != nil && status.Recording {
		err := s.deps.Perf.RecordTickPerformance(model.TickPerformance{
			Time:            status.Time,
			Tick:            status.Tick,
			TickDurationMs:  float32(status.TickMs),
			VehiclesTracked: uint16(status.Vehicles),
			SeekerLocks:     uint16(status.SeekerLocks),
			QueueDepth:      uint16(status.QueueDepth),
		})
		if err != nil {
			logger.Error("Error writing tick performance row", "error", err)
		}
	}
}

func (s *Service) writeStatusFile(status Status) error {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	path := filepath.Join(s.deps.StatusDir, "status.json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
