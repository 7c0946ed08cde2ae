// internal/episode/scan.go
package episode

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hlynr/interceptor/pkg/core"
)

// Metadata is a lightweight episode preview: header and footer only,
// no frame bodies. Used for fast directory listings.
type Metadata struct {
	Path     string
	Header   core.EpisodeHeader
	Footer   *core.EpisodeFooter
	HasRadar bool
}

var (
	probeHeader = [][]byte{[]byte(`"type":"header"`), []byte(`"type": "header"`)}
	probeFooter = [][]byte{[]byte(`"type":"footer"`), []byte(`"type": "footer"`), []byte(`"outcome"`)}
	probeRadar  = [][]byte{[]byte(`"type":"radar"`), []byte(`"type": "radar"`), []byte(`"onboard"`)}
)

func matchesAny(line []byte, probes [][]byte) bool {
	for _, p := range probes {
		if bytes.Contains(line, p) {
			return true
		}
	}
	return false
}

// ParseMetadata reads an episode's header and last footer without
// decoding any frame bodies, and notes whether sensor sub-records are
// present. Line classification happens on cheap byte probes; only the
// matched header/footer lines are fully decoded.
func (s *Store) ParseMetadata(path string) (Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Metadata{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return Metadata{}, fmt.Errorf("opening episode %s: %w", path, err)
	}
	defer f.Close()

	md := Metadata{Path: path}
	var lastFooter []byte
	haveHeader := false

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	for sc.Scan() {
		line := sc.Bytes()
		switch {
		case !haveHeader && matchesAny(line, probeHeader):
			if r, kind, err := parseLine(line); err == nil && kind == TypeHeader {
				md.Header = r.header()
				haveHeader = true
			}
		case matchesAny(line, probeFooter):
			lastFooter = append(lastFooter[:0], line...)
		case !md.HasRadar && matchesAny(line, probeRadar):
			md.HasRadar = true
		}
	}
	if err := sc.Err(); err != nil {
		return Metadata{}, fmt.Errorf("scanning episode %s: %w", path, err)
	}

	if lastFooter != nil {
		if r, kind, err := parseLine(lastFooter); err == nil && kind == TypeFooter {
			md.Footer = r.footer()
		}
	}
	if !haveHeader && md.Footer == nil {
		return Metadata{}, fmt.Errorf("%w: %s", ErrEmptyEpisode, path)
	}
	return md, nil
}

// ScanDir returns previews for every episode file in dir, sorted by
// episode ID. Unreadable files are skipped with a warning so one bad
// recording cannot hide the rest of the catalog.
func (s *Store) ScanDir(dir string) ([]Metadata, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning episode directory %s: %w", dir, err)
	}

	var out []Metadata
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".jsonl") && !strings.HasSuffix(name, ".ndjson") {
			continue
		}
		md, err := s.ParseMetadata(filepath.Join(dir, name))
		if err != nil {
			s.logger.Warn("skipping unreadable episode", "file", name, "error", err)
			continue
		}
		out = append(out, md)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Header.EpisodeID < out[j].Header.EpisodeID
	})
	return out, nil
}
