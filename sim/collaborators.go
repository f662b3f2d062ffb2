package sim

import (
	"github.com/google/uuid"

	"github.com/RaoOfPhysics/sapphire/cluster"
	"github.com/RaoOfPhysics/sapphire/corsika"
)

// ParticleSource answers detector-area queries against a ground-particle
// dataset. Implemented by corsika.Dataset; tests use in-memory fakes.
// A source must be safe for read-only sharing, the simulation never
// writes through it.
type ParticleSource interface {
	EventHeader() corsika.EventHeader
	EventEnd() corsika.EventEnd
	SelectParticles(q corsika.Query) ([]corsika.Particle, error)
}

// TransportModel draws signal transport-time delays, one per matched
// particle, to add to the raw arrival times.
type TransportModel interface {
	TransportTimes(k int) []float64
}

// GPSModel covers the station clock abstractions: fixed per-run offsets
// drawn once at simulation construction, and the per-event jitter added
// to every trigger timestamp.
type GPSModel interface {
	StationOffset() float64
	DetectorOffsets(n int) []float64
	Uncertainty() float64
}

// ResponseModel converts the momenta of matched particles into a scalar
// detected signal strength. Only the momentum-weighted detection model
// consults it.
type ResponseModel interface {
	SignalStrength(momenta [][3]float64) float64
}

// RunMetadata describes one simulation run. It is handed to the result
// sink once, before the first shower.
type RunMetadata struct {
	RunID    uuid.UUID
	Seed     int64
	NShowers int
	Model    string
	Cluster  *cluster.Cluster
	Header   corsika.EventHeader
}

// ResultSink receives the simulation output for durable storage. The
// simulation retains no ownership of the values after handing them off.
type ResultSink interface {
	WriteRunMetadata(meta RunMetadata) error
	WriteShower(params ShowerParameters, stations []StationObservables) error
}

// ProgressFunc reports completed showers out of the requested total.
// Purely observational; it must not influence the simulation.
type ProgressFunc func(done, total int)
