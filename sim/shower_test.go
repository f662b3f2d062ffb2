package sim

import (
	"math"
	"math/rand"
	"testing"

	"github.com/RaoOfPhysics/sapphire/cluster"
	"github.com/RaoOfPhysics/sapphire/corsika"
)

func metadataSource(header corsika.EventHeader, size float64) *fakeSource {
	return &fakeSource{
		header:    header,
		end:       corsika.EventEnd{NElectrons: size},
		particles: func() []corsika.Particle { return nil },
	}
}

func TestShowerGenerator_ExtTimestampsStrictlyIncreasing(t *testing.T) {
	gen := NewShowerGenerator(metadataSource(corsika.EventHeader{}, 0), 100, 3, rand.New(rand.NewSource(1)))

	want := []uint64{
		1_000_000_000 * 1_000_000_000,
		1_000_000_001 * 1_000_000_000,
		1_000_000_002 * 1_000_000_000,
	}
	var got []uint64
	for {
		params, ok := gen.Next()
		if !ok {
			break
		}
		got = append(got, params.ExtTimestamp)
	}

	if len(got) != 3 {
		t.Fatalf("generated %d showers, want 3", len(got))
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("shower %d: ext timestamp = %d, want %d", i, got[i], want[i])
		}
		if i > 0 && got[i] <= got[i-1] {
			t.Errorf("ext timestamps not strictly increasing at %d", i)
		}
	}
}

func TestShowerGenerator_ExhaustsAfterConfiguredCount(t *testing.T) {
	gen := NewShowerGenerator(metadataSource(corsika.EventHeader{}, 0), 10, 2, rand.New(rand.NewSource(7)))
	if gen.Remaining() != 2 {
		t.Errorf("Remaining = %d, want 2", gen.Remaining())
	}
	for i := 0; i < 2; i++ {
		if _, ok := gen.Next(); !ok {
			t.Fatalf("generator exhausted after %d showers", i)
		}
	}
	if _, ok := gen.Next(); ok {
		t.Error("generator produced more than the configured count")
	}
	if gen.Remaining() != 0 {
		t.Errorf("Remaining = %d, want 0", gen.Remaining())
	}
}

func TestShowerGenerator_CopiesDatasetMetadata(t *testing.T) {
	header := corsika.EventHeader{Zenith: 0.4, Azimuth: 1.1, Energy: 1e16, Particle: 14}
	gen := NewShowerGenerator(metadataSource(header, 5e4), 10, 1, rand.New(rand.NewSource(3)))

	params, ok := gen.Next()
	if !ok {
		t.Fatal("no shower generated")
	}
	if params.Zenith != 0.4 || params.Energy != 1e16 || params.Particle != 14 || params.Size != 5e4 {
		t.Errorf("dataset metadata not copied: %+v", params)
	}
}

func TestShowerGenerator_AzimuthAlwaysNormalized(t *testing.T) {
	// A source azimuth of pi pushes half the draws over the wrap
	// boundary.
	for _, sourceAzimuth := range []float64{math.Pi, -math.Pi, 0, 2.5} {
		gen := NewShowerGenerator(
			metadataSource(corsika.EventHeader{Azimuth: sourceAzimuth}, 0),
			10, 1000, rand.New(rand.NewSource(42)))
		for {
			params, ok := gen.Next()
			if !ok {
				break
			}
			if params.Azimuth <= -math.Pi || params.Azimuth > math.Pi {
				t.Fatalf("azimuth %v outside (-pi, pi] for source azimuth %v",
					params.Azimuth, sourceAzimuth)
			}
		}
	}
}

func TestNormalizeAzimuth_BoundaryWraps(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{math.Pi, math.Pi},
		{-math.Pi, math.Pi},
		{2 * math.Pi, 0},
		{-2 * math.Pi, 0},
		{math.Pi + 0.5, -math.Pi + 0.5},
		{-math.Pi - 0.5, math.Pi - 0.5},
	}
	for _, tc := range cases {
		if got := normalizeAzimuth(tc.in); math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("normalizeAzimuth(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestShowerGenerator_CorePositionsAreaUniform(t *testing.T) {
	// Area-uniform sampling over a disk of radius R puts a fraction
	// (r/R)^2 of cores inside radius r. A uniform(0, R) radius draw
	// would put half the cores inside R/2 instead of a quarter.
	const (
		R = 400.0
		N = 100000
	)
	gen := NewShowerGenerator(metadataSource(corsika.EventHeader{}, 0), R, N, rand.New(rand.NewSource(99)))

	inside := 0
	for {
		params, ok := gen.Next()
		if !ok {
			break
		}
		if math.Hypot(params.CorePos.X, params.CorePos.Y) < R/2 {
			inside++
		}
	}

	frac := float64(inside) / N
	if math.Abs(frac-0.25) > 0.01 {
		t.Errorf("fraction inside R/2 = %v, want 0.25 within 0.01", frac)
	}
}

func TestClusterPose_PutsShowerCoreAtOrigin(t *testing.T) {
	// A probe station placed exactly at the core offset must land on the
	// origin after the re-pose, for any drawn rotation.
	gen := NewShowerGenerator(metadataSource(corsika.EventHeader{}, 0), 250, 50, rand.New(rand.NewSource(5)))
	for {
		params, ok := gen.Next()
		if !ok {
			break
		}

		c := cluster.New()
		if _, err := c.AddStation(cluster.StationSpec{
			Position:  params.CorePos,
			Detectors: []cluster.DetectorSpec{{Orientation: cluster.OrientationUD}},
		}); err != nil {
			t.Fatalf("AddStation: %v", err)
		}

		pos, alpha := params.ClusterPose()
		c.SetPose(pos, alpha)

		got, _ := c.Stations()[0].XYAlpha()
		if math.Hypot(got.X, got.Y) > 1e-9 {
			t.Fatalf("shower %d: probe at core ended at %+v, want origin", params.ID, got)
		}
	}
}
