// Package model defines the database schema for persisted episodes.
package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DatabaseModels lists every struct representing a table in the
// schema.
var DatabaseModels = []interface{}{
	&InstanceInfo{},
	&Episode{},
	&Agent{},
	&Frame{},
	&RadarContact{},
	&TickPerformance{},
}

// InstanceInfo holds identifying information about this recorder
// instance.
type InstanceInfo struct {
	gorm.Model
	Name        string `json:"name" gorm:"size:127"`
	Description string `json:"description" gorm:"size:255"`
}

func (*InstanceInfo) TableName() string {
	return "instance_infos"
}

// Episode is one recorded engagement from spawn to outcome.
type Episode struct {
	gorm.Model
	EpisodeID string    `json:"episodeId" gorm:"size:127;uniqueIndex"`
	SceneName string    `json:"sceneName" gorm:"size:127"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	DtNominal float64   `json:"dtNominal"`
	OriginLat float64   `json:"originLat"`
	OriginLon float64   `json:"originLon"`

	Outcome string         `json:"outcome" gorm:"size:63"`
	Metrics datatypes.JSON `json:"metrics"`

	// 2D ground track of the pursuing agent in EPSG:3857, WKB encoded.
	GroundTrack []byte `json:"-"`

	Agents []Agent `json:"agents" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Frames []Frame `json:"frames" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (*Episode) TableName() string {
	return "episodes"
}

// Agent is one participant in an episode.
type Agent struct {
	gorm.Model
	EpisodeID uint   `json:"episodeId" gorm:"index:idx_agent_episode_id"`
	AgentID   string `json:"agentId" gorm:"size:127;index:idx_agent_agent_id"`
	Role      string `json:"role" gorm:"size:63"` // pursuer, target, observer
}

func (*Agent) TableName() string {
	return "agents"
}

// Frame is one simulation tick. Agent kinematics are stored as a JSON
// document keyed by agent ID rather than one row per agent, keeping
// insert volume proportional to tick rate.
type Frame struct {
	ID        uint    `json:"id" gorm:"primarykey"`
	EpisodeID uint    `json:"episodeId" gorm:"index:idx_frame_episode_id"`
	T         float64 `json:"t" gorm:"index:idx_frame_t"`

	Agents datatypes.JSON `json:"agents"`
}

func (*Frame) TableName() string {
	return "frames"
}

// RadarContact is one tick's radar picture.
type RadarContact struct {
	ID        uint    `json:"id" gorm:"primarykey"`
	EpisodeID uint    `json:"episodeId" gorm:"index:idx_radarcontact_episode_id"`
	T         float64 `json:"t"`

	OnboardDetected bool           `json:"onboardDetected"`
	GroundDetected  bool           `json:"groundDetected"`
	Confidence      float64        `json:"confidence"`
	Returns         datatypes.JSON `json:"returns"`
}

func (*RadarContact) TableName() string {
	return "radar_contacts"
}

// TickPerformance records per-interval loop health for an episode.
type TickPerformance struct {
	Time      time.Time `json:"time" gorm:"index:idx_tickperf_time"`
	EpisodeID uint      `json:"episodeId" gorm:"index:idx_tickperf_episode_id"`
	Episode   Episode   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:EpisodeID;"`

	Tick            uint64  `json:"tick"`
	TickDurationMs  float32 `json:"tickDurationMs"`
	VehiclesTracked uint16  `json:"vehiclesTracked"`
	SeekerLocks     uint16  `json:"seekerLocks"`
	QueueDepth      uint16  `json:"queueDepth"`
}

func (*TickPerformance) TableName() string {
	return "tick_performances"
}
