// Package recorder drains simulation frames into a storage backend on
// a background flush loop, keeping the tick path free of backend
// latency.
package recorder

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hlynr/interceptor/internal/queue"
	"github.com/hlynr/interceptor/internal/storage"
	"github.com/hlynr/interceptor/pkg/core"
)

const defaultFlushInterval = 250 * time.Millisecond

// Recorder buffers frames from the tick loop and writes them to the
// backend in batches. Enqueue never blocks on storage.
type Recorder struct {
	backend storage.Backend
	frames  *queue.Queue[core.EpisodeFrame]
	logger  *slog.Logger

	flushEvery time.Duration

	mu        sync.Mutex
	running   bool
	stop      chan struct{}
	done      chan struct{}
	lastFlush time.Duration
}

// Option customizes a Recorder.
type Option func(*Recorder)

// FlushEvery overrides the background flush interval.
func FlushEvery(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.flushEvery = d
		}
	}
}

func New(backend storage.Backend, logger *slog.Logger, opts ...Option) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		backend:    backend,
		frames:     queue.New[core.EpisodeFrame](),
		logger:     logger,
		flushEvery: defaultFlushInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start opens the episode on the backend and launches the flush loop.
func (r *Recorder) Start(header *core.EpisodeHeader) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("recorder already running")
	}
	if err := r.backend.StartEpisode(header); err != nil {
		return fmt.Errorf("failed to start episode: %w", err)
	}

	r.frames.Clear()
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	r.running = true
	go r.run(r.stop, r.done)

	r.logger.Info("Recording started",
		"episodeID", header.EpisodeID,
		"scene", header.SceneName)
	return nil
}

// Enqueue queues one frame for the next flush. Frames enqueued while
// no episode is running are dropped.
func (r *Recorder) Enqueue(frame core.EpisodeFrame) {
	r.mu.Lock()
	running := r.running
	r.mu.Unlock()
	if !running {
		return
	}
	r.frames.Push(frame)
}

// Stop drains outstanding frames, closes the episode, and shuts down
// the flush loop.
func (r *Recorder) Stop(footer *core.EpisodeFooter) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return fmt.Errorf("recorder not running")
	}
	r.running = false
	stop, done := r.stop, r.done
	r.mu.Unlock()

	close(stop)
	<-done

	r.flush()
	if err := r.backend.EndEpisode(footer); err != nil {
		return fmt.Errorf("failed to end episode: %w", err)
	}
	r.logger.Info("Recording stopped",
		"episodeID", footer.EpisodeID,
		"outcome", footer.Outcome,
		"duration", footer.Duration)
	return nil
}

// Running reports whether an episode is currently open.
func (r *Recorder) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// QueueLen returns the number of frames waiting for the next flush.
func (r *Recorder) QueueLen() int {
	return r.frames.Len()
}

// LastFlushDuration returns how long the previous backend flush took.
func (r *Recorder) LastFlushDuration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastFlush
}

func (r *Recorder) run(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.flushEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.flush()
		case <-stop:
			return
		}
	}
}

func (r *Recorder) flush() {
	batch := r.frames.GetAndEmpty()
	if len(batch) == 0 {
		return
	}
	start := time.Now()
	for i := range batch {
		if err := r.backend.RecordFrame(&batch[i]); err != nil {
			r.logger.Error("Failed to record frame",
				"t", batch[i].T,
				"error", err)
		}
	}
	elapsed := time.Since(start)
	r.mu.Lock()
	r.lastFlush = elapsed
	r.mu.Unlock()
}
