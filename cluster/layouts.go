package cluster

import "math"

// stationDetectors returns the diamond arrangement of a standard
// four-detector station: two UD detectors on the vertical axis, two LR
// detectors below on either side. The numbers follow from an
// equilateral triangle with side stationSize whose center sits on
// detector 2.
func stationDetectors(stationSize float64) []DetectorSpec {
	a := stationSize / 2
	b := a / 3 * math.Sqrt(3)
	return []DetectorSpec{
		{Offset: Point{0, 2 * b}, Orientation: OrientationUD},
		{Offset: Point{0, 0}, Orientation: OrientationUD},
		{Offset: Point{-a, -b}, Orientation: OrientationLR},
		{Offset: Point{a, -b}, Orientation: OrientationLR},
	}
}

// NewSimpleCluster builds four standard stations arranged like one
// four-detector station scaled up to the given size in meters: one
// station at the center, three on the surrounding triangle, the outer
// two rotated to face inward.
func NewSimpleCluster(size float64) (*Cluster, error) {
	c := New()
	detectors := stationDetectors(10)

	a := size / 2
	b := a / 3 * math.Sqrt(3)
	for _, spec := range []StationSpec{
		{Position: Point{0, 2 * b}},
		{Position: Point{0, 0}},
		{Position: Point{-a, -b}, Angle: 2 * math.Pi / 3},
		{Position: Point{a, -b}, Angle: -2 * math.Pi / 3},
	} {
		spec.Detectors = detectors
		if _, err := c.AddStation(spec); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// NewSingleStation builds a cluster holding one standard station at the
// origin.
func NewSingleStation(stationSize float64) (*Cluster, error) {
	c := New()
	if _, err := c.AddStation(StationSpec{
		Detectors: stationDetectors(stationSize),
	}); err != nil {
		return nil, err
	}
	return c, nil
}
