// Package handlers is the command surface of the extension: it maps
// dispatcher commands onto the replay engine, the episode store, and
// the frame recorder.
package handlers

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hlynr/interceptor/internal/cache"
	"github.com/hlynr/interceptor/internal/dispatcher"
	"github.com/hlynr/interceptor/internal/episode"
	"github.com/hlynr/interceptor/internal/logging"
	"github.com/hlynr/interceptor/internal/recorder"
	"github.com/hlynr/interceptor/internal/replay"
	"github.com/hlynr/interceptor/internal/sim"
	"github.com/hlynr/interceptor/pkg/core"
)

// Dependencies holds all collaborators needed by handlers.
type Dependencies struct {
	LogManager *logging.SlogManager
	Store      *episode.Store
	Registry   *cache.AgentCache
	Recorder   *recorder.Recorder
}

// Service processes replay and recording commands.
type Service struct {
	deps      Dependencies
	replayCfg replay.Config
	dt        float64

	mu          sync.Mutex
	engine      *replay.Engine
	loaded      *core.Episode
	loadedPath  string
	recordStart time.Time
	recordID    string
}

// NewService creates the command service. dt is the nominal control
// timestep used when a loaded episode does not carry its own.
func NewService(deps Dependencies, replayCfg replay.Config, dt float64) *Service {
	return &Service{
		deps:      deps,
		replayCfg: replayCfg,
		dt:        dt,
	}
}

// Engine returns the currently loaded replay engine, or nil.
func (s *Service) Engine() *replay.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine
}

// RegisterHandlers registers all command handlers with the dispatcher.
func (s *Service) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Replay control - sync, the caller needs the result before ticking
	d.Register(":REPLAY:LOAD:", s.handleReplayLoad, dispatcher.Logged())
	d.Register(":REPLAY:SEEK:", s.handleReplaySeek, dispatcher.Logged())
	d.Register(":REPLAY:PAUSE:", s.handleReplayPause, dispatcher.Logged())
	d.Register(":REPLAY:RESUME:", s.handleReplayResume, dispatcher.Logged())
	d.Register(":REPLAY:RESTART:", s.handleReplayRestart, dispatcher.Logged())
	d.Register(":REPLAY:STATUS:", s.handleReplayStatus)

	// Catalog queries - sync
	d.Register(":EPISODE:SCAN:", s.handleEpisodeScan, dispatcher.Logged())

	// Recording lifecycle - sync
	d.Register(":RECORD:START:", s.handleRecordStart, dispatcher.Logged())
	d.Register(":RECORD:STOP:", s.handleRecordStop, dispatcher.Logged())
}

func (s *Service) logger() *slog.Logger {
	if s.deps.LogManager != nil {
		return s.deps.LogManager.Logger()
	}
	return slog.Default()
}

// handleReplayLoad parses an episode file and builds a replay engine
// with one kinematic agent per recorded agent.
// Args: [path]
func (s *Service) handleReplayLoad(e dispatcher.Event) (any, error) {
	if len(e.Args) < 1 || strings.TrimSpace(e.Args[0]) == "" {
		return nil, fmt.Errorf("replay load requires a file path")
	}
	path := strings.TrimSpace(e.Args[0])

	ep, err := s.deps.Store.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse episode %s: %w", path, err)
	}

	eng, err := replay.New(ep, s.replayCfg, s.dt, s.deps.Registry, s.logger())
	if err != nil {
		return nil, fmt.Errorf("failed to build replay engine: %w", err)
	}
	for _, id := range ep.AgentIDs {
		eng.AddAgent(id, replay.ModeKinematic, &sim.Vehicle{
			ID:   id,
			Body: sim.NewBody(100, 50),
		})
	}
	if err := eng.Start(); err != nil {
		return nil, fmt.Errorf("failed to start replay: %w", err)
	}

	s.mu.Lock()
	s.engine = eng
	s.loaded = ep
	s.loadedPath = path
	s.mu.Unlock()

	s.logger().Info("Episode loaded",
		"path", path,
		"episodeID", ep.Header.EpisodeID,
		"frames", len(ep.Frames),
		"agents", len(ep.AgentIDs),
		"duration", ep.Duration())
	return ep.Header.EpisodeID, nil
}

// handleReplaySeek jumps the loaded replay to a timestamp in seconds.
// Args: [seconds]
func (s *Service) handleReplaySeek(e dispatcher.Event) (any, error) {
	if len(e.Args) < 1 {
		return nil, fmt.Errorf("seek requires a timestamp")
	}
	t, err := strconv.ParseFloat(strings.TrimSpace(e.Args[0]), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid seek timestamp %q: %w", e.Args[0], err)
	}

	eng, err := s.currentEngine()
	if err != nil {
		return nil, err
	}
	eng.Seek(t)
	return eng.Time(), nil
}

func (s *Service) handleReplayPause(dispatcher.Event) (any, error) {
	eng, err := s.currentEngine()
	if err != nil {
		return nil, err
	}
	eng.Pause()
	return "PAUSED", nil
}

func (s *Service) handleReplayResume(dispatcher.Event) (any, error) {
	eng, err := s.currentEngine()
	if err != nil {
		return nil, err
	}
	eng.Resume()
	return "RESUMED", nil
}

func (s *Service) handleReplayRestart(dispatcher.Event) (any, error) {
	eng, err := s.currentEngine()
	if err != nil {
		return nil, err
	}
	if err := eng.Restart(); err != nil {
		return nil, fmt.Errorf("failed to restart replay: %w", err)
	}
	return "RESTARTED", nil
}

// ReplayStatus is the payload returned by the status command.
type ReplayStatus struct {
	Loaded    bool    `json:"loaded"`
	Path      string  `json:"path,omitempty"`
	EpisodeID string  `json:"episode_id,omitempty"`
	Time      float64 `json:"time"`
	Duration  float64 `json:"duration"`
	Paused    bool    `json:"paused"`
	Done      bool    `json:"done"`
	Recording bool    `json:"recording"`
}

func (s *Service) handleReplayStatus(dispatcher.Event) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := ReplayStatus{}
	if s.deps.Recorder != nil {
		st.Recording = s.deps.Recorder.Running()
	}
	if s.engine == nil {
		return st, nil
	}
	st.Loaded = true
	st.Path = s.loadedPath
	st.EpisodeID = s.loaded.Header.EpisodeID
	st.Time = s.engine.Time()
	st.Duration = s.loaded.Duration()
	st.Paused = s.engine.Paused()
	st.Done = s.engine.Done()
	return st, nil
}

// handleEpisodeScan previews every episode file in a directory.
// Args: [dir]
func (s *Service) handleEpisodeScan(e dispatcher.Event) (any, error) {
	if len(e.Args) < 1 || strings.TrimSpace(e.Args[0]) == "" {
		return nil, fmt.Errorf("scan requires a directory")
	}
	dir := strings.TrimSpace(e.Args[0])

	previews, err := s.deps.Store.ScanDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	s.logger().Info("Episode scan complete", "dir", dir, "found", len(previews))
	return previews, nil
}

// handleRecordStart opens a recording episode on the backend.
// Args: [sceneName] or [sceneName, episodeID]
func (s *Service) handleRecordStart(e dispatcher.Event) (any, error) {
	if s.deps.Recorder == nil {
		return nil, fmt.Errorf("no recorder configured")
	}

	scene := "unnamed"
	if len(e.Args) > 0 && strings.TrimSpace(e.Args[0]) != "" {
		scene = strings.TrimSpace(e.Args[0])
	}
	id := uuid.NewString()
	if len(e.Args) > 1 && strings.TrimSpace(e.Args[1]) != "" {
		id = strings.TrimSpace(e.Args[1])
	}

	header := &core.EpisodeHeader{
		EpisodeID: id,
		StartTime: time.Now().UTC(),
		DtNominal: s.dt,
		SceneName: scene,
	}
	if err := s.deps.Recorder.Start(header); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.recordStart = header.StartTime
	s.recordID = id
	s.mu.Unlock()
	if s.deps.LogManager != nil {
		s.deps.LogManager.SetEpisodeID(id)
	}
	return id, nil
}

// handleRecordStop closes the active recording.
// Args: [outcome] (defaults to "aborted")
func (s *Service) handleRecordStop(e dispatcher.Event) (any, error) {
	if s.deps.Recorder == nil {
		return nil, fmt.Errorf("no recorder configured")
	}

	outcome := "aborted"
	if len(e.Args) > 0 && strings.TrimSpace(e.Args[0]) != "" {
		outcome = strings.TrimSpace(e.Args[0])
	}

	s.mu.Lock()
	id := s.recordID
	started := s.recordStart
	s.recordID = ""
	s.mu.Unlock()

	footer := &core.EpisodeFooter{
		EpisodeID: id,
		EndTime:   time.Now().UTC(),
		Outcome:   outcome,
	}
	if !started.IsZero() {
		footer.Duration = time.Since(started).Seconds()
	}
	if err := s.deps.Recorder.Stop(footer); err != nil {
		return nil, err
	}
	if s.deps.LogManager != nil {
		s.deps.LogManager.SetEpisodeID("")
	}
	return outcome, nil
}

func (s *Service) currentEngine() (*replay.Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		return nil, fmt.Errorf("no episode loaded")
	}
	return s.engine, nil
}
