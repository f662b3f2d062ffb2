package corsika

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
)

// buildDataset writes a small dataset with headers and the given
// particles and returns its path.
func buildDataset(t *testing.T, particles []Particle) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corsika.sqlite")

	b, err := CreateDataset(path)
	if err != nil {
		t.Fatalf("CreateDataset: %v", err)
	}
	defer b.Close()

	if err := b.SetEventHeader(EventHeader{
		Zenith:   0.35,
		Azimuth:  math.Pi / 2,
		Energy:   1e15,
		Particle: 14,
	}); err != nil {
		t.Fatalf("SetEventHeader: %v", err)
	}
	if err := b.SetEventEnd(EventEnd{NElectrons: 1.2e5}); err != nil {
		t.Fatalf("SetEventEnd: %v", err)
	}
	if err := b.AddParticles(particles); err != nil {
		t.Fatalf("AddParticles: %v", err)
	}
	return path
}

func TestOpenDataset_ReadsHeaders(t *testing.T) {
	path := buildDataset(t, nil)

	d, err := OpenDataset(path)
	if err != nil {
		t.Fatalf("OpenDataset: %v", err)
	}
	defer d.Close()

	header := d.EventHeader()
	if header.Zenith != 0.35 || header.Azimuth != math.Pi/2 || header.Energy != 1e15 || header.Particle != 14 {
		t.Errorf("unexpected header: %+v", header)
	}
	if end := d.EventEnd(); end.NElectrons != 1.2e5 {
		t.Errorf("unexpected event end: %+v", end)
	}
}

func TestOpenDataset_MissingFileFails(t *testing.T) {
	if _, err := OpenDataset(filepath.Join(t.TempDir(), "nope.sqlite")); err == nil {
		t.Fatal("OpenDataset succeeded on a missing file")
	}
}

func TestOpenDataset_MissingHeaderIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.sqlite")
	b, err := CreateDataset(path)
	if err != nil {
		t.Fatalf("CreateDataset: %v", err)
	}
	b.Close()

	_, err = OpenDataset(path)
	if !errors.Is(err, ErrNoEventHeader) {
		t.Fatalf("OpenDataset error = %v, want ErrNoEventHeader", err)
	}
}

func TestOpenDataset_MissingEventEndIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "headonly.sqlite")
	b, err := CreateDataset(path)
	if err != nil {
		t.Fatalf("CreateDataset: %v", err)
	}
	if err := b.SetEventHeader(EventHeader{}); err != nil {
		t.Fatalf("SetEventHeader: %v", err)
	}
	b.Close()

	_, err = OpenDataset(path)
	if !errors.Is(err, ErrNoEventEnd) {
		t.Fatalf("OpenDataset error = %v, want ErrNoEventEnd", err)
	}
}

func TestSelectParticles_BoundingBoxAndLeptons(t *testing.T) {
	path := buildDataset(t, []Particle{
		{ID: 3, X: 0.1, Y: 0.1, T: 12},   // inside
		{ID: 6, X: -0.2, Y: 0.3, T: 15},  // inside
		{ID: 4, X: 0.0, Y: 0.0, T: 1},    // neutrino code, excluded
		{ID: 1, X: 0.0, Y: 0.0, T: 2},    // gamma, excluded
		{ID: 2, X: 5.0, Y: 0.0, T: 3},    // outside box
		{ID: 5, X: 0.0, Y: -5.0, T: 4},   // outside box
	})

	d, err := OpenDataset(path)
	if err != nil {
		t.Fatalf("OpenDataset: %v", err)
	}
	defer d.Close()

	got, err := d.SelectParticles(Query{HalfWidth: 0.5, ParticleIDs: LeptonIDs})
	if err != nil {
		t.Fatalf("SelectParticles: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d particles, want 2: %+v", len(got), got)
	}
	for _, p := range got {
		if p.ID == 4 {
			t.Errorf("particle id 4 must never match, got %+v", p)
		}
	}
}

func TestSelectParticles_LineBands(t *testing.T) {
	path := buildDataset(t, []Particle{
		{ID: 2, X: 0.0, Y: 0.0, T: 1},  // between both bands
		{ID: 2, X: 0.0, Y: 0.9, T: 2},  // above horizontal band
		{ID: 2, X: 0.9, Y: 0.0, T: 3},  // right of vertical band
	})

	d, err := OpenDataset(path)
	if err != nil {
		t.Fatalf("OpenDataset: %v", err)
	}
	defer d.Close()

	// Unrotated rectangle |x| < 0.5, |y| < 0.5 expressed as one
	// horizontal and one vertical band.
	got, err := d.SelectParticles(Query{
		HalfWidth: 1.0,
		Bands: []LineBand{
			{Slope: 0, Lo: -0.5, Hi: 0.5},
			{Vertical: true, Lo: -0.5, Hi: 0.5},
		},
		ParticleIDs: LeptonIDs,
	})
	if err != nil {
		t.Fatalf("SelectParticles: %v", err)
	}
	if len(got) != 1 || got[0].T != 1 {
		t.Fatalf("got %+v, want only the particle at the origin", got)
	}
}

func TestSelectParticles_MomentumColumns(t *testing.T) {
	path := buildDataset(t, []Particle{
		{ID: 5, X: 0, Y: 0, T: 7, PX: 1, PY: 2, PZ: 3},
	})

	d, err := OpenDataset(path)
	if err != nil {
		t.Fatalf("OpenDataset: %v", err)
	}
	defer d.Close()

	got, err := d.SelectParticles(Query{HalfWidth: 1, ParticleIDs: LeptonIDs, Momentum: true})
	if err != nil {
		t.Fatalf("SelectParticles: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d particles, want 1", len(got))
	}
	if got[0].PX != 1 || got[0].PY != 2 || got[0].PZ != 3 {
		t.Errorf("momentum = (%v, %v, %v), want (1, 2, 3)", got[0].PX, got[0].PY, got[0].PZ)
	}

	// Without Momentum the columns stay zero.
	got, err = d.SelectParticles(Query{HalfWidth: 1, ParticleIDs: LeptonIDs})
	if err != nil {
		t.Fatalf("SelectParticles: %v", err)
	}
	if got[0].PX != 0 || got[0].PY != 0 || got[0].PZ != 0 {
		t.Errorf("momentum populated without Momentum flag: %+v", got[0])
	}
}
