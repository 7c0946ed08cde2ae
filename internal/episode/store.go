// Package episode loads recorded trajectory files: newline-delimited
// JSON, one record per line, classified into header, per-agent state
// and footer records. State records sharing a timestamp (rounded to
// millisecond precision to absorb float jitter) are merged into one
// frame.
package episode

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"

	"github.com/hlynr/interceptor/pkg/core"
)

var (
	// ErrNotFound reports a missing episode file. Replay is disabled
	// when this is returned, never silently degraded.
	ErrNotFound = errors.New("episode file not found")
	// ErrEmptyEpisode reports a file with no usable frames.
	ErrEmptyEpisode = errors.New("episode contains no frames")
)

// dtEstimateFrames is how many leading frame deltas feed the nominal
// timestep estimate when the header does not supply one.
const dtEstimateFrames = 10

// maxLineBytes bounds a single NDJSON record.
const maxLineBytes = 4 * 1024 * 1024

// Store parses episode files into the canonical model.
type Store struct {
	logger *slog.Logger
}

func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{logger: logger}
}

// roundMillis buckets a recorded timestamp to millisecond precision.
func roundMillis(t float64) float64 {
	return math.Round(t*1000) / 1000
}

// Parse fully loads an episode. Malformed lines are skipped with a
// warning; a missing file or a file without frames fails explicitly.
func (s *Store) Parse(path string) (*core.Episode, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("opening episode %s: %w", path, err)
	}
	defer f.Close()

	ep := &core.Episode{}
	frames := make(map[float64]*core.EpisodeFrame)
	agentSet := make(map[string]struct{})
	badLines := 0
	substituted := 0

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}

		r, kind, err := parseLine(line)
		if err != nil {
			badLines++
			s.logger.Warn("skipping malformed episode line",
				"path", path, "line", lineNo, "error", err)
			continue
		}

		switch kind {
		case TypeHeader:
			ep.Header = r.header()
		case TypeFooter:
			ep.Footer = r.footer()
		case TypeState:
			if r.Timestamp == nil {
				badLines++
				continue
			}
			ts := roundMillis(*r.Timestamp)
			fr, ok := frames[ts]
			if !ok {
				fr = &core.EpisodeFrame{T: ts, Agents: make(map[string]core.AgentState)}
				frames[ts] = fr
			}
			st, wasDegenerate := r.State.agentState()
			if wasDegenerate {
				substituted++
				s.logger.Warn("degenerate orientation replaced with identity",
					"path", path, "line", lineNo, "entity", r.EntityID)
			}
			fr.Agents[r.EntityID] = st
			agentSet[r.EntityID] = struct{}{}
		case TypeRadar:
			if r.Timestamp == nil {
				continue
			}
			ts := roundMillis(*r.Timestamp)
			fr, ok := frames[ts]
			if !ok {
				fr = &core.EpisodeFrame{T: ts, Agents: make(map[string]core.AgentState)}
				frames[ts] = fr
			}
			fr.Radar = r.radar()
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading episode %s: %w", path, err)
	}

	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyEpisode, path)
	}

	ep.Frames = make([]core.EpisodeFrame, 0, len(frames))
	for _, fr := range frames {
		ep.Frames = append(ep.Frames, *fr)
	}
	sort.Slice(ep.Frames, func(i, j int) bool { return ep.Frames[i].T < ep.Frames[j].T })

	ep.AgentIDs = make([]string, 0, len(agentSet))
	for id := range agentSet {
		ep.AgentIDs = append(ep.AgentIDs, id)
	}
	sort.Strings(ep.AgentIDs)

	if ep.Header.DtNominal <= 0 {
		ep.Header.DtNominal = estimateDt(ep.Frames)
	}

	s.logger.Info("episode loaded",
		"path", path,
		"episodeID", ep.Header.EpisodeID,
		"frames", len(ep.Frames),
		"agents", len(ep.AgentIDs),
		"dt", ep.Header.DtNominal,
		"skippedLines", badLines,
		"sanitizedQuats", substituted)

	return ep, nil
}

// estimateDt returns the mean timestamp delta across the first few
// frames, or zero when the episode is too short to estimate.
func estimateDt(frames []core.EpisodeFrame) float64 {
	n := len(frames)
	if n > dtEstimateFrames+1 {
		n = dtEstimateFrames + 1
	}
	if n < 2 {
		return 0
	}
	sum := 0.0
	for i := 1; i < n; i++ {
		sum += frames[i].T - frames[i-1].T
	}
	return sum / float64(n-1)
}
