// Package gormdb persists episodes through the shared database
// manager, so recordings land in Postgres when it is reachable and in
// local SQLite otherwise.
package gormdb

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"gorm.io/datatypes"

	"github.com/hlynr/interceptor/internal/database"
	"github.com/hlynr/interceptor/internal/geo"
	"github.com/hlynr/interceptor/internal/model"
	"github.com/hlynr/interceptor/pkg/core"
	"github.com/hlynr/interceptor/pkg/mathx"
)

// Backend writes episode data through a database.Manager.
type Backend struct {
	mgr *database.Manager

	episodeID uint   // row ID of the open episode
	header    *core.EpisodeHeader
	agents    map[string]bool
	tracks    map[string][]mathx.Vec3
	mu        sync.Mutex
}

// New creates a gorm-backed episode sink over an already connected
// manager.
func New(mgr *database.Manager) *Backend {
	return &Backend{mgr: mgr}
}

// Init migrates the schema.
func (b *Backend) Init() error {
	if b.mgr == nil || !b.mgr.IsValid {
		return fmt.Errorf("database manager not connected")
	}
	return b.mgr.Setup()
}

// Close flushes the database.
func (b *Backend) Close() error {
	return b.mgr.Close()
}

// StartEpisode inserts the episode row and resets per-episode state.
func (b *Backend) StartEpisode(h *core.EpisodeHeader) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	row := model.Episode{
		EpisodeID: h.EpisodeID,
		SceneName: h.SceneName,
		StartTime: h.StartTime,
		DtNominal: h.DtNominal,
		OriginLat: h.OriginLat,
		OriginLon: h.OriginLon,
	}
	if err := b.mgr.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("create episode row: %w", err)
	}

	hc := *h
	b.header = &hc
	b.episodeID = row.ID
	b.agents = make(map[string]bool)
	b.tracks = make(map[string][]mathx.Vec3)
	return nil
}

// RecordFrame stores one tick. Agent kinematics go into a JSON column;
// radar sub-frames get their own rows.
func (b *Backend) RecordFrame(fr *core.EpisodeFrame) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.header == nil {
		return fmt.Errorf("no episode in progress")
	}

	for id, st := range fr.Agents {
		b.tracks[id] = append(b.tracks[id], st.Position)
		if !b.agents[id] {
			b.agents[id] = true
			row := model.Agent{EpisodeID: b.episodeID, AgentID: id}
			if err := b.mgr.DB.Create(&row).Error; err != nil {
				return fmt.Errorf("create agent row: %w", err)
			}
		}
	}

	doc, err := json.Marshal(fr.Agents)
	if err != nil {
		return fmt.Errorf("encode frame agents: %w", err)
	}
	frame := model.Frame{
		EpisodeID: b.episodeID,
		T:         fr.T,
		Agents:    datatypes.JSON(doc),
	}
	if err := b.mgr.DB.Create(&frame).Error; err != nil {
		return fmt.Errorf("create frame row: %w", err)
	}

	if fr.Radar != nil {
		returns, err := json.Marshal(fr.Radar)
		if err != nil {
			return fmt.Errorf("encode radar frame: %w", err)
		}
		contact := model.RadarContact{
			EpisodeID:       b.episodeID,
			T:               fr.T,
			OnboardDetected: fr.Radar.Onboard.Detected,
			GroundDetected:  fr.Radar.Ground.Detected,
			Confidence:      fr.Radar.Confidence,
			Returns:         datatypes.JSON(returns),
		}
		if err := b.mgr.DB.Create(&contact).Error; err != nil {
			return fmt.Errorf("create radar row: %w", err)
		}
	}
	return nil
}

// EndEpisode closes the episode row with its outcome, metrics and the
// ground track of the longest trace.
func (b *Backend) EndEpisode(f *core.EpisodeFooter) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.header == nil {
		return fmt.Errorf("no episode in progress")
	}

	metrics, err := json.Marshal(map[string]float64{
		"total_reward":   f.Metrics.TotalReward,
		"steps":          float64(f.Metrics.Steps),
		"final_distance": f.Metrics.FinalDistance,
		"fuel_used":      f.Metrics.FuelUsed,
	})
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}

	updates := map[string]any{
		"end_time": f.EndTime,
		"outcome":  f.Outcome,
		"metrics":  datatypes.JSON(metrics),
	}
	if wkb := b.groundTrackWKB(); wkb != nil {
		updates["ground_track"] = wkb
	}
	if f.EndTime.IsZero() {
		updates["end_time"] = time.Now()
	}

	err = b.mgr.DB.Model(&model.Episode{}).
		Where("id = ?", b.episodeID).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("close episode row: %w", err)
	}

	b.header = nil
	b.episodeID = 0
	return nil
}

// groundTrackWKB projects the longest agent trace onto the scene
// anchor. Returns nil when no usable track exists.
func (b *Backend) groundTrackWKB() []byte {
	var best []mathx.Vec3
	for _, track := range b.tracks {
		if len(track) > len(best) {
			best = track
		}
	}
	if len(best) < 2 {
		return nil
	}

	anchor, err := geo.AnchorMercator(b.header.OriginLat, b.header.OriginLon)
	if err != nil {
		return nil
	}
	ls, err := geo.GroundTrackAt(best, anchor)
	if err != nil {
		return nil
	}
	return geo.TrackWKB(ls)
}

// RecordTickPerformance stores one loop health sample for the open
// episode.
func (b *Backend) RecordTickPerformance(p model.TickPerformance) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.header == nil {
		return fmt.Errorf("no episode in progress")
	}
	p.EpisodeID = b.episodeID
	if p.Time.IsZero() {
		p.Time = time.Now()
	}
	return b.mgr.DB.Create(&p).Error
}
