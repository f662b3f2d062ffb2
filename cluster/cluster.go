// Package cluster models the ground-plane geometry of a detector
// network: scintillator detectors grouped into stations, stations
// grouped into a cluster with a movable global pose. Absolute
// coordinates compose one level at a time, detector offset through
// station pose through cluster pose.
package cluster

import (
	"errors"
	"fmt"
	"math"
)

// Orientation fixes which axis carries the long side of a detector.
type Orientation string

const (
	// OrientationUD places the long side along the y axis.
	OrientationUD Orientation = "UD"
	// OrientationLR places the long side along the x axis.
	OrientationLR Orientation = "LR"
)

// Detector dimensions in meters. Every scintillator has the same
// 0.5 x 1.0 m footprint.
const (
	DetectorWidth  = 0.5
	DetectorLength = 1.0
)

var (
	ErrUnknownOrientation = errors.New("unknown detector orientation")
	ErrNoDetectors        = errors.New("station has no detectors")
	ErrStationID          = errors.New("station IDs must be dense and 1-based")
	ErrDetectorIndex      = errors.New("detector index out of range")
)

// ---------- Detector ----------

// DetectorSpec describes one detector when building a station.
type DetectorSpec struct {
	Offset      Point
	Orientation Orientation
}

// Detector is a single scintillator pad. It stores its offset from the
// station center; absolute coordinates are derived through the
// station's pose on every call, so re-posing the cluster immediately
// moves every detector.
type Detector struct {
	station     *Station
	offset      Point
	orientation Orientation
}

func (d *Detector) Offset() Point            { return d.offset }
func (d *Detector) Orientation() Orientation { return d.orientation }

// Area returns the detector footprint in m2.
func (d *Detector) Area() float64 { return DetectorWidth * DetectorLength }

// XY returns the absolute center of the detector.
func (d *Detector) XY() Point {
	pos, alpha := d.station.XYAlpha()
	return pos.Add(d.offset.Rotate(alpha))
}

// Corners returns the four corners of the detector rectangle in the
// absolute frame, counter-clockwise starting at the bottom-left corner
// of the unrotated rectangle. Edge adjacency of the returned order is
// relied on by the polygon containment test.
func (d *Detector) Corners() [4]Point {
	pos, alpha := d.station.XYAlpha()

	var dx, dy float64
	switch d.orientation {
	case OrientationUD:
		dx = DetectorWidth / 2
		dy = DetectorLength / 2
	case OrientationLR:
		dx = DetectorLength / 2
		dy = DetectorWidth / 2
	}

	local := [4]Point{
		{d.offset.X - dx, d.offset.Y - dy},
		{d.offset.X + dx, d.offset.Y - dy},
		{d.offset.X + dx, d.offset.Y + dy},
		{d.offset.X - dx, d.offset.Y + dy},
	}

	var corners [4]Point
	for i, c := range local {
		corners[i] = pos.Add(c.Rotate(alpha))
	}
	return corners
}

// ---------- Station ----------

// StationSpec describes one station when building a cluster.
type StationSpec struct {
	ID        int // 0 selects the next free ID
	Position  Point
	Angle     float64 // radians
	Detectors []DetectorSpec
}

// Station is one detector installation inside a cluster.
type Station struct {
	cluster   *Cluster
	id        int
	position  Point
	angle     float64
	detectors []*Detector

	// Per-run timing constants, drawn once by the simulation when a run
	// starts. They model fixed hardware clock skew and are not part of
	// the geometric cluster definition.
	GPSOffset       float64
	DetectorOffsets []float64
}

func (s *Station) ID() int                { return s.id }
func (s *Station) Position() Point        { return s.position }
func (s *Station) Angle() float64         { return s.angle }
func (s *Station) Detectors() []*Detector { return s.detectors }

// XYAlpha returns the absolute position and rotation of the station.
func (s *Station) XYAlpha() (Point, float64) {
	cpos, calpha := s.cluster.Pose()
	return cpos.Add(s.position.Rotate(calpha)), calpha + s.angle
}

// RPhiAlpha returns the absolute station pose in polar form.
func (s *Station) RPhiAlpha() (r, phi, alpha float64) {
	pos, a := s.XYAlpha()
	r, phi = pos.Polar()
	return r, phi, a
}

// DetectorSeparation returns the distance between detectors i and j and
// the bearing from i to j, using the same 1-based numbering as the
// station observables.
func (s *Station) DetectorSeparation(i, j int) (r, phi float64, err error) {
	if i < 1 || i > len(s.detectors) || j < 1 || j > len(s.detectors) {
		return 0, 0, fmt.Errorf("%w: %d, %d (station %d has %d detectors)",
			ErrDetectorIndex, i, j, s.id, len(s.detectors))
	}
	pi := s.detectors[i-1].XY()
	pj := s.detectors[j-1].XY()
	return pi.DistanceTo(pj), math.Atan2(pj.Y-pi.Y, pj.X-pi.X), nil
}

// ---------- Cluster ----------

// Cluster is the root of the geometry tree. Its pose places the whole
// station layout in the global frame; the simulation rewrites the pose
// per shower to express the layout in shower-centered coordinates.
type Cluster struct {
	pos      Point
	alpha    float64
	stations []*Station
}

// New returns an empty cluster at the origin.
func New() *Cluster { return &Cluster{} }

// AddStation appends a station built from spec. Station IDs are dense
// and 1-based in insertion order; 0 is reserved for metadata records.
// A zero spec ID takes the next free ID; an explicit ID must match it.
func (c *Cluster) AddStation(spec StationSpec) (*Station, error) {
	next := len(c.stations) + 1
	id := spec.ID
	if id == 0 {
		id = next
	}
	if id != next {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrStationID, id, next)
	}
	if len(spec.Detectors) == 0 {
		return nil, fmt.Errorf("station %d: %w", id, ErrNoDetectors)
	}

	st := &Station{
		cluster:  c,
		id:       id,
		position: spec.Position,
		angle:    spec.Angle,
	}
	for _, ds := range spec.Detectors {
		switch ds.Orientation {
		case OrientationUD, OrientationLR:
		default:
			return nil, fmt.Errorf("station %d: %w: %q", id, ErrUnknownOrientation, ds.Orientation)
		}
		st.detectors = append(st.detectors, &Detector{
			station:     st,
			offset:      ds.Offset,
			orientation: ds.Orientation,
		})
	}

	c.stations = append(c.stations, st)
	return st, nil
}

// Stations returns the stations in insertion order.
func (c *Cluster) Stations() []*Station { return c.stations }

// Station looks a station up by its 1-based ID.
func (c *Cluster) Station(id int) (*Station, bool) {
	if id < 1 || id > len(c.stations) {
		return nil, false
	}
	return c.stations[id-1], true
}

// NumDetectors returns the total detector count across all stations.
func (c *Cluster) NumDetectors() int {
	n := 0
	for _, s := range c.stations {
		n += len(s.detectors)
	}
	return n
}

// Pose returns the cluster's absolute position and rotation.
func (c *Cluster) Pose() (Point, float64) { return c.pos, c.alpha }

// SetPose overwrites the cluster's absolute pose. Stored station and
// detector offsets are untouched; only the frame moves.
func (c *Cluster) SetPose(pos Point, alpha float64) {
	c.pos = pos
	c.alpha = alpha
}

// PolarPose returns the cluster pose in polar form.
func (c *Cluster) PolarPose() (r, phi, alpha float64) {
	r, phi = c.pos.Polar()
	return r, phi, c.alpha
}

// SetPolarPose overwrites the cluster pose from polar coordinates.
func (c *Cluster) SetPolarPose(r, phi, alpha float64) {
	c.pos = Point{X: r * math.Cos(phi), Y: r * math.Sin(phi)}
	c.alpha = alpha
}
