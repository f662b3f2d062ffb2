package cluster

import (
	"math"
	"testing"
)

func TestNewSimpleCluster_StationPlacement(t *testing.T) {
	c, err := NewSimpleCluster(250)
	if err != nil {
		t.Fatalf("NewSimpleCluster: %v", err)
	}

	if got := len(c.Stations()); got != 4 {
		t.Fatalf("station count = %d, want 4", got)
	}
	if got := c.NumDetectors(); got != 16 {
		t.Fatalf("detector count = %d, want 16", got)
	}

	a := 125.0
	b := a / 3 * math.Sqrt(3)
	wantPos := []Point{
		{0, 2 * b},
		{0, 0},
		{-a, -b},
		{a, -b},
	}
	wantAngle := []float64{0, 0, 2 * math.Pi / 3, -2 * math.Pi / 3}

	for i, s := range c.Stations() {
		if !pointsAlmostEqual(s.Position(), wantPos[i]) {
			t.Errorf("station %d position = %+v, want %+v", s.ID(), s.Position(), wantPos[i])
		}
		if !almostEqual(s.Angle(), wantAngle[i]) {
			t.Errorf("station %d angle = %v, want %v", s.ID(), s.Angle(), wantAngle[i])
		}
		if got := len(s.Detectors()); got != 4 {
			t.Errorf("station %d detector count = %d, want 4", s.ID(), got)
		}
	}
}

func TestNewSimpleCluster_DetectorDiamond(t *testing.T) {
	c, err := NewSimpleCluster(250)
	if err != nil {
		t.Fatalf("NewSimpleCluster: %v", err)
	}

	// Central station: detector offsets form the standard diamond.
	b := 5.0 / 3 * math.Sqrt(3)
	st := c.Stations()[1]
	wantOffsets := []Point{
		{0, 2 * b},
		{0, 0},
		{-5, -b},
		{5, -b},
	}
	wantOrient := []Orientation{OrientationUD, OrientationUD, OrientationLR, OrientationLR}
	for i, d := range st.Detectors() {
		if !pointsAlmostEqual(d.Offset(), wantOffsets[i]) {
			t.Errorf("detector %d offset = %+v, want %+v", i+1, d.Offset(), wantOffsets[i])
		}
		if d.Orientation() != wantOrient[i] {
			t.Errorf("detector %d orientation = %q, want %q", i+1, d.Orientation(), wantOrient[i])
		}
	}
}

func TestNewSingleStation_CenterDetectorAtOrigin(t *testing.T) {
	c, err := NewSingleStation(10)
	if err != nil {
		t.Fatalf("NewSingleStation: %v", err)
	}
	if got := len(c.Stations()); got != 1 {
		t.Fatalf("station count = %d, want 1", got)
	}

	// Detector 2 sits on the station center, which sits on the origin.
	d2 := c.Stations()[0].Detectors()[1]
	if !pointsAlmostEqual(d2.XY(), Point{}) {
		t.Errorf("detector 2 center = %+v, want origin", d2.XY())
	}
	if got := d2.Area(); !almostEqual(got, 0.5) {
		t.Errorf("detector area = %v, want 0.5", got)
	}
}
