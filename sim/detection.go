package sim

import (
	"errors"
	"fmt"
	"math"

	"github.com/RaoOfPhysics/sapphire/cluster"
	"github.com/RaoOfPhysics/sapphire/corsika"
)

// Detection model names accepted by NewDetectionModel.
const (
	ModelSquare   = "square"
	ModelPolygon  = "polygon"
	ModelMomentum = "momentum"
)

// ErrUnknownDetectionModel is returned for a model name outside the
// closed set.
var ErrUnknownDetectionModel = errors.New("unknown detection model")

const (
	// squareBoundary is the half-width of the axis-aligned box used by
	// the square approximation: half the diagonal of a square with the
	// 0.5 m2 detector footprint. The box is symmetric in x and y.
	squareBoundary = 0.3535534
	// polygonBoundary is the half-width of the axis-aligned prefilter
	// applied before the exact corner test, wide enough to contain the
	// detector rectangle at any rotation.
	polygonBoundary = 0.6
)

// DetectionModel decides which dataset rows lie inside a detector and
// converts the matched rows into detector observables. The three
// implementations trade precision against query cost and form a closed
// set selected by name.
type DetectionModel interface {
	Name() string
	DetectorResponse(det *cluster.Detector, src ParticleSource) (DetectorObservables, error)
}

// NewDetectionModel selects a detection model by name. The momentum
// model needs a response collaborator; the others ignore it.
func NewDetectionModel(name string, transport TransportModel, response ResponseModel) (DetectionModel, error) {
	switch name {
	case ModelSquare, "":
		return &SquareApproximation{transport: transport}, nil
	case ModelPolygon:
		return &RotatedPolygon{transport: transport}, nil
	case ModelMomentum:
		return &MomentumWeighted{transport: transport, response: response}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDetectionModel, name)
	}
}

// SquareApproximation treats the detector as an axis-aligned box
// centered on the detector, ignoring rotation. Fastest of the three;
// the box area equals the true footprint.
type SquareApproximation struct {
	transport TransportModel
}

func (m *SquareApproximation) Name() string { return ModelSquare }

func (m *SquareApproximation) DetectorResponse(det *cluster.Detector, src ParticleSource) (DetectorObservables, error) {
	center := det.XY()
	detected, err := src.SelectParticles(corsika.Query{
		X:           center.X,
		Y:           center.Y,
		HalfWidth:   squareBoundary,
		ParticleIDs: corsika.LeptonIDs,
	})
	if err != nil {
		return DetectorObservables{}, fmt.Errorf("square response: %w", err)
	}
	return observe(detected, m.transport), nil
}

// RotatedPolygon tests containment in the exact detector rectangle: a
// point is inside iff its line value lies strictly between the
// intercepts of both pairs of parallel edges. An axis-aligned prefilter
// keeps the candidate set small so the dataset's column indexes stay
// useful.
type RotatedPolygon struct {
	transport TransportModel
}

func (m *RotatedPolygon) Name() string { return ModelPolygon }

func (m *RotatedPolygon) DetectorResponse(det *cluster.Detector, src ParticleSource) (DetectorObservables, error) {
	detected, err := src.SelectParticles(polygonQuery(det, false))
	if err != nil {
		return DetectorObservables{}, fmt.Errorf("polygon response: %w", err)
	}
	return observe(detected, m.transport), nil
}

// MomentumWeighted selects particles exactly like RotatedPolygon but
// reports an intensity-weighted signal strength instead of a bare
// count, derived from each particle's momentum through the response
// collaborator. Arrival-time handling is unchanged.
type MomentumWeighted struct {
	transport TransportModel
	response  ResponseModel
}

func (m *MomentumWeighted) Name() string { return ModelMomentum }

func (m *MomentumWeighted) DetectorResponse(det *cluster.Detector, src ParticleSource) (DetectorObservables, error) {
	detected, err := src.SelectParticles(polygonQuery(det, true))
	if err != nil {
		return DetectorObservables{}, fmt.Errorf("momentum response: %w", err)
	}
	if len(detected) == 0 {
		return DetectorObservables{N: 0, T: NoParticle}, nil
	}

	momenta := make([][3]float64, len(detected))
	for i, p := range detected {
		momenta[i] = [3]float64{p.PX, p.PY, p.PZ}
	}
	obs := observe(detected, m.transport)
	obs.N = m.response.SignalStrength(momenta)
	return obs, nil
}

// polygonQuery builds the exact-rectangle query for a detector: the
// prefilter box plus one line band per pair of parallel edges. The
// counter-clockwise corner order guarantees (c0, c1) and (c1, c2) are
// adjacent edges, so the two bands are perpendicular.
func polygonQuery(det *cluster.Detector, momentum bool) corsika.Query {
	center := det.XY()
	c := det.Corners()
	return corsika.Query{
		X:         center.X,
		Y:         center.Y,
		HalfWidth: polygonBoundary,
		Bands: []corsika.LineBand{
			lineBand(c[0], c[1], c[2]),
			lineBand(c[1], c[2], c[3]),
		},
		ParticleIDs: corsika.LeptonIDs,
		Momentum:    momentum,
	}
}

// lineBand derives the band between two parallel rectangle edges from
// three corners: p0 and p1 lie on one edge, p2 on the opposite one.
func lineBand(p0, p1, p2 cluster.Point) corsika.LineBand {
	if p0.X == p1.X {
		lo, hi := p0.X, p2.X
		if lo > hi {
			lo, hi = hi, lo
		}
		return corsika.LineBand{Vertical: true, Lo: lo, Hi: hi}
	}

	slope := (p1.Y - p0.Y) / (p1.X - p0.X)
	lo := p0.Y - slope*p0.X
	hi := p2.Y - slope*p2.X
	if lo > hi {
		lo, hi = hi, lo
	}
	return corsika.LineBand{Slope: slope, Lo: lo, Hi: hi}
}

// observe applies the shared post-selection step: one transport-time
// draw per particle added to its raw arrival time, first corrected
// arrival wins.
func observe(detected []corsika.Particle, transport TransportModel) DetectorObservables {
	if len(detected) == 0 {
		return DetectorObservables{N: 0, T: NoParticle}
	}

	delays := transport.TransportTimes(len(detected))
	first := math.Inf(1)
	for i, p := range detected {
		if t := p.T + delays[i]; t < first {
			first = t
		}
	}
	return DetectorObservables{N: float64(len(detected)), T: first}
}
