package sim

import (
	"math"
	"math/rand"

	"github.com/RaoOfPhysics/sapphire/cluster"
)

// ShowerParameters describes one randomized shower instance thrown on
// the cluster. Core position and angles are expressed in the dataset's
// nominal frame; ClusterPose converts them into the pose that puts the
// shower core at the global origin.
type ShowerParameters struct {
	ID       int
	CorePos  cluster.Point
	Azimuth  float64 // shower azimuth, normalized to (-pi, pi]
	Alpha    float64 // drawn rotation between shower and dataset frame
	Zenith   float64
	Size     float64 // electron count at observation level
	Energy   float64
	Particle int

	// ExtTimestamp is synthetic: (1e9 + ID) * 1e9 ns, strictly
	// increasing and collision-free across a run without touching the
	// wall clock.
	ExtTimestamp uint64
}

// ClusterPose returns the cluster pose that places the shower core at
// the origin with the shower direction along the fixed reference axis.
// All downstream detector queries then run in shower-centered
// coordinates without per-detector trigonometry.
func (p ShowerParameters) ClusterPose() (cluster.Point, float64) {
	rotated := p.CorePos.Rotate(-p.Alpha)
	return cluster.Point{X: -rotated.X, Y: -rotated.Y}, -p.Alpha
}

// ShowerGenerator produces a finite sequence of shower parameter
// records. Next is pure sampling; applying the pose to the geometry is
// the caller's explicit step. A generator is not restartable: iterating
// the same run twice means constructing a fresh generator.
type ShowerGenerator struct {
	rng             *rand.Rand
	maxCoreDistance float64

	zenith   float64
	azimuth  float64
	energy   float64
	particle int
	size     float64

	next, total int
}

// NewShowerGenerator reads the dataset metadata once and prepares a
// generator for total showers with cores uniform over a disk of radius
// maxCoreDistance.
func NewShowerGenerator(src ParticleSource, maxCoreDistance float64, total int, rng *rand.Rand) *ShowerGenerator {
	if rng == nil {
		rng = rand.New(rand.NewSource(0))
	}
	header := src.EventHeader()
	return &ShowerGenerator{
		rng:             rng,
		maxCoreDistance: maxCoreDistance,
		zenith:          header.Zenith,
		azimuth:         header.Azimuth,
		energy:          header.Energy,
		particle:        header.Particle,
		size:            src.EventEnd().NElectrons,
		total:           total,
	}
}

// Remaining returns the number of showers the generator will still
// produce.
func (g *ShowerGenerator) Remaining() int { return g.total - g.next }

// Next samples the next shower. The second return value is false once
// the configured count is exhausted.
func (g *ShowerGenerator) Next() (ShowerParameters, bool) {
	if g.next >= g.total {
		return ShowerParameters{}, false
	}
	i := g.next
	g.next++

	// Area-uniform core position: drawing r from uniform(0, R^2) under
	// a square root avoids the central bias of uniform(0, R).
	r := math.Sqrt(g.rng.Float64() * g.maxCoreDistance * g.maxCoreDistance)
	phi := g.uniformAngle()
	alpha := g.uniformAngle()

	return ShowerParameters{
		ID:           i,
		CorePos:      cluster.Point{X: r * math.Cos(phi), Y: r * math.Sin(phi)},
		Azimuth:      normalizeAzimuth(alpha + g.azimuth),
		Alpha:        alpha,
		Zenith:       g.zenith,
		Size:         g.size,
		Energy:       g.energy,
		Particle:     g.particle,
		ExtTimestamp: (1_000_000_000 + uint64(i)) * 1_000_000_000,
	}, true
}

func (g *ShowerGenerator) uniformAngle() float64 {
	return g.rng.Float64()*2*math.Pi - math.Pi
}

// normalizeAzimuth wraps a into (-pi, pi]. Both inputs are in
// (-pi, pi], so a single correction step suffices.
func normalizeAzimuth(a float64) float64 {
	if a > math.Pi {
		return a - 2*math.Pi
	}
	if a <= -math.Pi {
		return a + 2*math.Pi
	}
	return a
}
