// Package geo builds ground-track geometries from recorded
// trajectories. Tracks are kept in EPSG:3857 so they can be stored as
// WKB and rendered on web maps without further reprojection.
package geo

import (
	"errors"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"

	"github.com/hlynr/interceptor/pkg/core"
	"github.com/hlynr/interceptor/pkg/mathx"
)

// ErrTooFewPoints is returned when a track has fewer than two usable
// positions.
var ErrTooFewPoints = errors.New("ground track needs at least 2 points")

// ErrInvalidOrigin is returned for origin coordinates outside the
// valid latitude/longitude ranges.
var ErrInvalidOrigin = errors.New("invalid origin coordinates")

// AnchorMercator projects the episode origin from 4326 to 3857.
func AnchorMercator(lat, lon float64) (geom.Point, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return geom.Point{}, ErrInvalidOrigin
	}
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ := f(lon, lat, 0)
	pt, err := geom.NewPoint(geom.Coordinates{
		XY: geom.XY{X: x, Y: y},
	})
	if err != nil {
		return geom.Point{}, err
	}
	return pt, nil
}

// GroundTrack flattens a sequence of local east/north/up positions
// into a 2D LineString, dropping the vertical component. Non-finite
// positions are skipped.
func GroundTrack(positions []mathx.Vec3) (geom.LineString, error) {
	flat := make([]float64, 0, 2*len(positions))
	for _, p := range positions {
		if !p.IsFinite() {
			continue
		}
		flat = append(flat, p.X, p.Y)
	}
	if len(flat) < 4 {
		return geom.LineString{}, ErrTooFewPoints
	}
	seq := geom.NewSequence(flat, geom.DimXY)
	ls, err := geom.NewLineString(seq)
	if err != nil {
		return geom.LineString{}, err
	}
	return ls, nil
}

// GroundTrackAt shifts a local track onto the anchor point, placing
// the episode on the map. The shift is a tangent-plane approximation,
// good for engagement-scale distances near the origin.
func GroundTrackAt(positions []mathx.Vec3, anchor geom.Point) (geom.LineString, error) {
	xy, ok := anchor.XY()
	if !ok {
		return GroundTrack(positions)
	}
	shifted := make([]mathx.Vec3, len(positions))
	for i, p := range positions {
		shifted[i] = mathx.Vec3{X: p.X + xy.X, Y: p.Y + xy.Y, Z: p.Z}
	}
	return GroundTrack(shifted)
}

// AgentTrack collects one agent's positions across an episode in
// recorded order.
func AgentTrack(ep *core.Episode, agentID string) []mathx.Vec3 {
	var out []mathx.Vec3
	for _, fr := range ep.Frames {
		if st, ok := fr.Agents[agentID]; ok {
			out = append(out, st.Position)
		}
	}
	return out
}

// TrackLength returns the 2D length of a track in its projection
// units.
func TrackLength(ls geom.LineString) float64 {
	return ls.Length()
}

// TrackWKB serializes a track for storage.
func TrackWKB(ls geom.LineString) []byte {
	return ls.AsBinary()
}
