package sim

import (
	"math"
	"math/rand"
)

// Default statistical models for the HiSPARC detector hardware. Each
// model owns the *rand.Rand it draws from so a run seeded through
// Options replays deterministically.

// ScintillatorTransport draws transport-time delays for the
// scintillator, light guide and PMT chain. The piecewise-linear draw is
// a fit to the measured transport-time distribution: a narrow fast
// component and a broader tail.
type ScintillatorTransport struct {
	rng *rand.Rand
}

// NewScintillatorTransport returns a transport model drawing from rng,
// falling back to a fixed-seed source when rng is nil.
func NewScintillatorTransport(rng *rand.Rand) *ScintillatorTransport {
	if rng == nil {
		rng = rand.New(rand.NewSource(0))
	}
	return &ScintillatorTransport{rng: rng}
}

// TransportTimes returns k independent delay draws in ns.
func (m *ScintillatorTransport) TransportTimes(k int) []float64 {
	dt := make([]float64, k)
	for i := range dt {
		u := m.rng.Float64()
		if u < 0.39377 {
			dt[i] = 2.5507 + 2.5812*u
		} else {
			dt[i] = 1.56764 + 5.16232*u
		}
	}
	return dt
}

// GPSClock models the station timing hardware: Gaussian per-run station
// and detector offsets emulating fixed clock skew, and Gaussian
// per-event GPS jitter. Widths are in ns.
type GPSClock struct {
	rng *rand.Rand
}

const (
	stationOffsetSigma  = 16.0
	detectorOffsetSigma = 2.77
	gpsUncertaintySigma = 4.5
)

// NewGPSClock returns a GPS model drawing from rng, falling back to a
// fixed-seed source when rng is nil.
func NewGPSClock(rng *rand.Rand) *GPSClock {
	if rng == nil {
		rng = rand.New(rand.NewSource(0))
	}
	return &GPSClock{rng: rng}
}

// StationOffset draws the fixed clock skew of one station for a run.
func (g *GPSClock) StationOffset() float64 {
	return g.rng.NormFloat64() * stationOffsetSigma
}

// DetectorOffsets draws the fixed per-detector timing offsets of one
// station for a run.
func (g *GPSClock) DetectorOffsets(n int) []float64 {
	offsets := make([]float64, n)
	for i := range offsets {
		offsets[i] = g.rng.NormFloat64() * detectorOffsetSigma
	}
	return offsets
}

// Uncertainty draws the GPS jitter for one trigger timestamp.
func (g *GPSClock) Uncertainty() float64 {
	return g.rng.NormFloat64() * gpsUncertaintySigma
}

// MIPResponse converts matched particle momenta into a summed signal
// strength in units of the most probable single-MIP signal. The
// piecewise curve inverts the measured muon energy-loss spectrum of the
// scintillator; each particle's contribution is scaled by 1/cos(theta)
// for its path length through the pad.
type MIPResponse struct {
	rng *rand.Rand
}

// NewMIPResponse returns a response model drawing from rng, falling
// back to a fixed-seed source when rng is nil.
func NewMIPResponse(rng *rand.Rand) *MIPResponse {
	if rng == nil {
		rng = rand.New(rand.NewSource(0))
	}
	return &MIPResponse{rng: rng}
}

// SignalStrength returns the summed MIP-equivalent signal of the given
// particles.
func (m *MIPResponse) SignalStrength(momenta [][3]float64) float64 {
	var mips float64
	for _, p := range momenta {
		norm := math.Sqrt(p[0]*p[0] + p[1]*p[1] + p[2]*p[2])
		costheta := 1.0
		if norm > 0 {
			costheta = math.Abs(p[2]) / norm
		}
		// A near-horizontal track cannot cross more scintillator than
		// the pad holds; cap the path-length correction.
		if costheta < 0.5 {
			costheta = 0.5
		}

		u := m.rng.Float64()
		var mip float64
		switch {
		case u < 0.3394:
			mip = 0.48 + 0.8583*math.Sqrt(u)
		case u < 0.4344:
			mip = 0.73 + 0.7366*u
		case u < 0.9041:
			mip = 1.7752 - 1.0336*math.Sqrt(0.9267-u)
		default:
			mip = 2.28 - 2.1316*math.Sqrt(1-u)
		}
		mips += mip / costheta
	}
	return mips
}
