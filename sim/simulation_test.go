package sim

import (
	"context"
	"testing"

	"github.com/RaoOfPhysics/sapphire/cluster"
	"github.com/RaoOfPhysics/sapphire/corsika"
)

// memSink records everything the simulation writes.
type memSink struct {
	meta     []RunMetadata
	showers  []ShowerParameters
	stations [][]StationObservables
}

func (s *memSink) WriteRunMetadata(meta RunMetadata) error {
	s.meta = append(s.meta, meta)
	return nil
}

func (s *memSink) WriteShower(params ShowerParameters, stations []StationObservables) error {
	s.showers = append(s.showers, params)
	s.stations = append(s.stations, stations)
	return nil
}

// closingSource wraps a fakeSource and counts Close calls.
type closingSource struct {
	fakeSource
	closed int
}

func (c *closingSource) Close() error {
	c.closed++
	return nil
}

// trackingSource places particles at the live centers of detectors 1
// and 3, evaluated per query. Wherever the shower re-poses the cluster,
// those two detectors see hits and the others do not.
func trackingSource(st *cluster.Station) *closingSource {
	src := &closingSource{}
	src.particles = func() []corsika.Particle {
		d1 := st.Detectors()[0].XY()
		d3 := st.Detectors()[2].XY()
		return []corsika.Particle{
			{ID: 2, X: d1.X, Y: d1.Y, T: 10, PZ: 1},
			{ID: 3, X: d1.X, Y: d1.Y, T: 15, PZ: 1},
			{ID: 6, X: d1.X, Y: d1.Y, T: 12, PZ: 1},
			{ID: 2, X: d3.X, Y: d3.Y, T: 8, PZ: 1},
			{ID: 5, X: d3.X, Y: d3.Y, T: 9, PZ: 1},
		}
	}
	return src
}

func TestRun_TriggersAndTimestampsEveryShower(t *testing.T) {
	c, err := cluster.NewSingleStation(10)
	if err != nil {
		t.Fatalf("NewSingleStation: %v", err)
	}
	src := trackingSource(c.Stations()[0])
	sink := &memSink{}

	s, err := New(c, src, sink, Options{
		Showers:         3,
		MaxCoreDistance: 50,
		Model:           ModelSquare,
		Seed:            1234,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(sink.meta) != 1 {
		t.Fatalf("run metadata written %d times, want once", len(sink.meta))
	}
	meta := sink.meta[0]
	if meta.Seed != 1234 || meta.NShowers != 3 || meta.Model != ModelSquare {
		t.Errorf("unexpected run metadata: %+v", meta)
	}

	if len(sink.showers) != 3 {
		t.Fatalf("sink received %d showers, want 3", len(sink.showers))
	}
	var prevExt uint64
	for i, stations := range sink.stations {
		if len(stations) != 1 {
			t.Fatalf("shower %d: %d station records, want 1", i, len(stations))
		}
		st := stations[0]
		if !st.Triggered {
			t.Errorf("shower %d: station did not trigger", i)
		}
		if !st.HasTimestamp {
			t.Errorf("shower %d: station has no timestamp", i)
		}
		if st.Detectors[0].N != 3 || st.Detectors[2].N != 2 {
			t.Errorf("shower %d: n1 = %v, n3 = %v, want 3 and 2",
				i, st.Detectors[0].N, st.Detectors[2].N)
		}
		if st.Detectors[1].N != 0 || st.Detectors[3].N != 0 {
			t.Errorf("shower %d: detectors 2/4 saw particles: %+v", i, st.Detectors)
		}
		if sink.showers[i].ExtTimestamp <= prevExt {
			t.Errorf("shower %d: ext timestamp %d not increasing", i, sink.showers[i].ExtTimestamp)
		}
		prevExt = sink.showers[i].ExtTimestamp
	}

	if src.closed != 1 {
		t.Errorf("source closed %d times, want exactly once", src.closed)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if src.closed != 1 {
		t.Errorf("source closed %d times after second Close, want 1", src.closed)
	}
}

func TestRun_DeterministicForSeed(t *testing.T) {
	run := func() []ShowerParameters {
		c, err := cluster.NewSingleStation(10)
		if err != nil {
			t.Fatalf("NewSingleStation: %v", err)
		}
		sink := &memSink{}
		s, err := New(c, trackingSource(c.Stations()[0]), sink, Options{
			Showers:         5,
			MaxCoreDistance: 100,
			Model:           ModelPolygon,
			Seed:            77,
		})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if err := s.Run(context.Background()); err != nil {
			t.Fatalf("Run: %v", err)
		}
		return sink.showers
	}

	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("runs produced %d and %d showers", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("shower %d differs between equally seeded runs:\n%+v\n%+v", i, a[i], b[i])
		}
	}
}

func TestRun_CancelledContextStopsBetweenShowers(t *testing.T) {
	c, err := cluster.NewSingleStation(10)
	if err != nil {
		t.Fatalf("NewSingleStation: %v", err)
	}
	src := trackingSource(c.Stations()[0])
	sink := &memSink{}
	s, err := New(c, src, sink, Options{Showers: 100, MaxCoreDistance: 50, Seed: 3})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Run(ctx); err != context.Canceled {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}
	if len(sink.showers) != 0 {
		t.Errorf("cancelled run still wrote %d showers", len(sink.showers))
	}
	if src.closed != 1 {
		t.Errorf("source closed %d times after cancelled run, want 1", src.closed)
	}
}

func TestNew_DrawsPerRunStationConstants(t *testing.T) {
	c, err := cluster.NewSimpleCluster(100)
	if err != nil {
		t.Fatalf("NewSimpleCluster: %v", err)
	}
	if _, err := New(c, trackingSource(c.Stations()[0]), &memSink{}, Options{Showers: 1, Seed: 5}); err != nil {
		t.Fatalf("New: %v", err)
	}

	for _, st := range c.Stations() {
		if len(st.DetectorOffsets) != len(st.Detectors()) {
			t.Errorf("station %d: %d detector offsets, want %d",
				st.ID(), len(st.DetectorOffsets), len(st.Detectors()))
		}
	}
	// Gaussian draws: all four stations sharing one offset would mean
	// the draw did not happen per station.
	same := true
	for _, st := range c.Stations()[1:] {
		if st.GPSOffset != c.Stations()[0].GPSOffset {
			same = false
		}
	}
	if same {
		t.Error("all stations share one GPS offset")
	}
}

func TestNew_RejectsUnknownModel(t *testing.T) {
	c, err := cluster.NewSingleStation(10)
	if err != nil {
		t.Fatalf("NewSingleStation: %v", err)
	}
	if _, err := New(c, staticSource(), &memSink{}, Options{Model: "hexagon"}); err == nil {
		t.Fatal("New accepted an unknown detection model")
	}
}
