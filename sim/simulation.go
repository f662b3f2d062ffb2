package sim

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/RaoOfPhysics/sapphire/cluster"
	"github.com/RaoOfPhysics/sapphire/corsika"
	"github.com/RaoOfPhysics/sapphire/internal/logging"
	"github.com/RaoOfPhysics/sapphire/internal/observability"
)

// Options configures a simulation run. The zero value gives a small
// square-model run seeded from the wall clock.
type Options struct {
	Showers         int
	MaxCoreDistance float64 // meters
	Model           string  // square, polygon, or momentum
	Seed            int64   // 0 seeds from the wall clock

	Progress ProgressFunc
	Logger   logging.Logger
	Metrics  *observability.SimCollector
}

// GroundParticlesSimulation throws showers from one ground-particle
// dataset onto a cluster. All randomness flows from a single seeded
// source, so a run replays deterministically for a fixed seed.
//
// A simulation mutates the cluster pose per shower; it must not share
// its cluster with concurrent users while Run is in flight.
type GroundParticlesSimulation struct {
	runID   uuid.UUID
	cluster *cluster.Cluster
	source  ParticleSource
	sink    ResultSink

	opts      Options
	seed      int64
	rng       *rand.Rand
	model     DetectionModel
	gps       GPSModel
	log       logging.Logger
	metrics   *observability.SimCollector
	closeOnce sync.Once
	closeErr  error
}

// New prepares a simulation run. Per-run station GPS offsets and
// detector offsets are drawn here, once, so repeated Run calls on fresh
// simulations with the same seed see identical hardware skew.
func New(clu *cluster.Cluster, src ParticleSource, sink ResultSink, opts Options) (*GroundParticlesSimulation, error) {
	if opts.Logger == nil {
		opts.Logger = logging.Noop()
	}
	if opts.Showers <= 0 {
		opts.Showers = 1
	}

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	gps := NewGPSClock(rng)
	transport := NewScintillatorTransport(rng)
	response := NewMIPResponse(rng)
	model, err := NewDetectionModel(opts.Model, transport, response)
	if err != nil {
		return nil, err
	}

	s := &GroundParticlesSimulation{
		runID:   uuid.New(),
		cluster: clu,
		source:  src,
		sink:    sink,
		opts:    opts,
		seed:    seed,
		rng:     rng,
		model:   model,
		gps:     gps,
		metrics: opts.Metrics,
	}
	s.log = opts.Logger.With(logging.String("run_id", s.runID.String()))

	for _, st := range clu.Stations() {
		st.GPSOffset = gps.StationOffset()
		st.DetectorOffsets = gps.DetectorOffsets(len(st.Detectors()))
	}

	s.metrics.SetClusterCounts(len(clu.Stations()), clu.NumDetectors())
	return s, nil
}

// RunID identifies this simulation instance in the sink and logs.
func (s *GroundParticlesSimulation) RunID() uuid.UUID { return s.runID }

// Seed returns the seed the run's random source was built from.
func (s *GroundParticlesSimulation) Seed() int64 { return s.seed }

// Run executes the shower loop. The loop is strictly sequential: each
// shower re-poses the shared cluster before its detector queries, so
// showers must not overlap. Cancellation is checked between showers;
// results of completed showers stay in the sink. The particle source is
// closed when Run returns, however it returns.
func (s *GroundParticlesSimulation) Run(ctx context.Context) error {
	defer s.Close()

	tracer := otel.Tracer("sapphire/sim")
	ctx, span := tracer.Start(ctx, "simulation.run", trace.WithAttributes(
		attribute.String("run_id", s.runID.String()),
		attribute.Int("showers", s.opts.Showers),
		attribute.String("model", s.model.Name()),
	))
	defer span.End()

	if err := s.sink.WriteRunMetadata(RunMetadata{
		RunID:    s.runID,
		Seed:     s.seed,
		NShowers: s.opts.Showers,
		Model:    s.model.Name(),
		Cluster:  s.cluster,
		Header:   s.source.EventHeader(),
	}); err != nil {
		return fmt.Errorf("write run metadata: %w", err)
	}

	s.log.Info(ctx, "simulation started",
		logging.Int("showers", s.opts.Showers),
		logging.Float64("max_core_distance", s.opts.MaxCoreDistance),
		logging.String("model", s.model.Name()),
		logging.Int("stations", len(s.cluster.Stations())),
	)

	src := s.instrumentedSource()
	gen := NewShowerGenerator(src, s.opts.MaxCoreDistance, s.opts.Showers, s.rng)
	done := 0
	for {
		select {
		case <-ctx.Done():
			s.log.Warn(ctx, "simulation cancelled", logging.Int("completed", done))
			return ctx.Err()
		default:
		}

		params, ok := gen.Next()
		if !ok {
			break
		}
		if err := s.simulateShower(ctx, src, params); err != nil {
			return fmt.Errorf("shower %d: %w", params.ID, err)
		}

		done++
		s.metrics.ShowerSimulated()
		if s.opts.Progress != nil {
			s.opts.Progress(done, s.opts.Showers)
		}
	}

	s.log.Info(ctx, "simulation finished", logging.Int("showers", done))
	return nil
}

func (s *GroundParticlesSimulation) simulateShower(ctx context.Context, src ParticleSource, params ShowerParameters) error {
	pos, alpha := params.ClusterPose()
	s.cluster.SetPose(pos, alpha)

	stations := make([]StationObservables, 0, len(s.cluster.Stations()))
	for _, st := range s.cluster.Stations() {
		obs, err := stationResponse(st, params, s.model, src, s.gps)
		if err != nil {
			return fmt.Errorf("station %d: %w", st.ID(), err)
		}
		if obs.Triggered {
			s.metrics.StationTriggered(st.ID())
		}
		stations = append(stations, obs)
	}

	if err := s.sink.WriteShower(params, stations); err != nil {
		return fmt.Errorf("write shower: %w", err)
	}
	s.metrics.EventStored(len(stations))

	s.log.Debug(ctx, "shower simulated",
		logging.Int("shower", params.ID),
		logging.Float64("core_x", params.CorePos.X),
		logging.Float64("core_y", params.CorePos.Y),
		logging.Float64("azimuth", params.Azimuth),
	)
	return nil
}

// Close releases the particle source exactly once, whether the shower
// loop completed or was aborted partway.
func (s *GroundParticlesSimulation) Close() error {
	s.closeOnce.Do(func() {
		if c, ok := s.source.(io.Closer); ok {
			s.closeErr = c.Close()
		}
	})
	return s.closeErr
}

// instrumentedSource wraps the particle source so dataset query latency
// and matched-row counts land in the collector.
func (s *GroundParticlesSimulation) instrumentedSource() ParticleSource {
	if s.metrics == nil {
		return s.source
	}
	return &measuredSource{inner: s.source, metrics: s.metrics, model: s.model.Name()}
}

type measuredSource struct {
	inner   ParticleSource
	metrics *observability.SimCollector
	model   string
}

func (m *measuredSource) EventHeader() corsika.EventHeader { return m.inner.EventHeader() }
func (m *measuredSource) EventEnd() corsika.EventEnd       { return m.inner.EventEnd() }

func (m *measuredSource) SelectParticles(q corsika.Query) ([]corsika.Particle, error) {
	start := time.Now()
	particles, err := m.inner.SelectParticles(q)
	m.metrics.QueryObserved(m.model, time.Since(start))
	if err == nil {
		m.metrics.ParticlesMatched(m.model, len(particles))
	}
	return particles, err
}
