// internal/storage/memory/memory.go
package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/hlynr/interceptor/internal/episode"
	"github.com/hlynr/interceptor/pkg/core"
)

// Config tunes the memory backend.
type Config struct {
	// ExportDir receives one episode file per recording. Empty
	// disables export; frames are then only held for inspection.
	ExportDir string
}

// Backend buffers episode data in memory and exports it as a line
// record file on EndEpisode. The exported file parses back with the
// episode store.
type Backend struct {
	cfg Config

	header *core.EpisodeHeader
	frames []core.EpisodeFrame
	footer *core.EpisodeFooter

	exportedPath string
	mu           sync.RWMutex
}

// New creates a new memory backend.
func New(cfg Config) *Backend {
	return &Backend{cfg: cfg}
}

// Init initializes the backend.
func (b *Backend) Init() error {
	if b.cfg.ExportDir != "" {
		if err := os.MkdirAll(b.cfg.ExportDir, 0o755); err != nil {
			return fmt.Errorf("create export dir: %w", err)
		}
	}
	return nil
}

// Close cleans up resources.
func (b *Backend) Close() error {
	return nil
}

// StartEpisode begins buffering a new episode.
func (b *Backend) StartEpisode(h *core.EpisodeHeader) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	hc := *h
	b.header = &hc
	b.frames = nil
	b.footer = nil
	b.exportedPath = ""
	return nil
}

// RecordFrame appends one tick of agent state.
func (b *Backend) RecordFrame(fr *core.EpisodeFrame) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.header == nil {
		return fmt.Errorf("no episode in progress")
	}
	cp := core.EpisodeFrame{T: fr.T, Agents: make(map[string]core.AgentState, len(fr.Agents))}
	for id, st := range fr.Agents {
		cp.Agents[id] = st
	}
	if fr.Radar != nil {
		r := *fr.Radar
		cp.Radar = &r
	}
	b.frames = append(b.frames, cp)
	return nil
}

// EndEpisode finalizes the buffered episode and exports it.
func (b *Backend) EndEpisode(f *core.EpisodeFooter) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.header == nil {
		return fmt.Errorf("no episode in progress")
	}
	fc := *f
	b.footer = &fc

	if b.cfg.ExportDir == "" {
		return nil
	}
	return b.export()
}

// export writes the buffered episode to <dir>/<episode_id>.jsonl.
func (b *Backend) export() error {
	path := filepath.Join(b.cfg.ExportDir, b.header.EpisodeID+".jsonl")
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer file.Close()

	w := episode.NewWriter(file)
	if err := w.Header(*b.header); err != nil {
		return err
	}
	for _, fr := range b.frames {
		ids := make([]string, 0, len(fr.Agents))
		for id := range fr.Agents {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			if err := w.State(fr.T, id, fr.Agents[id]); err != nil {
				return err
			}
		}
		if fr.Radar != nil {
			if err := w.Radar(fr.T, *fr.Radar); err != nil {
				return err
			}
		}
	}
	if b.footer != nil {
		if err := w.Footer(*b.footer); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	b.exportedPath = path
	return nil
}

// ExportedFilePath returns the path of the last exported episode, or
// empty when nothing was exported yet.
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.exportedPath
}

// FrameCount reports how many frames the current episode holds.
func (b *Backend) FrameCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.frames)
}
