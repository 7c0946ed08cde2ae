// internal/storage/storage.go
package storage

import "github.com/hlynr/interceptor/pkg/core"

// Backend is the interface all episode sinks must satisfy.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Episode management
	StartEpisode(h *core.EpisodeHeader) error
	EndEpisode(f *core.EpisodeFooter) error

	// Frame recording
	RecordFrame(fr *core.EpisodeFrame) error
}

// Exportable is an optional interface for backends that produce a
// replayable episode file on EndEpisode.
type Exportable interface {
	ExportedFilePath() string
}
