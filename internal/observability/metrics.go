package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SimCollector bundles Prometheus metrics for the shower simulation and the
// archive download path and provides a ready-to-serve /metrics handler.
type SimCollector struct {
	gatherer prometheus.Gatherer

	ShowersSimulated  prometheus.Counter
	StationTriggers   *prometheus.CounterVec
	ParticlesDetected *prometheus.CounterVec
	QueryDurations    *prometheus.HistogramVec
	EventsStored      prometheus.Counter
	ArchiveRows       *prometheus.CounterVec

	ClusterStations  prometheus.Gauge
	ClusterDetectors prometheus.Gauge
}

// NewSimCollector registers simulation Prometheus metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	showers, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "showers_simulated_total",
		Help: "Total number of shower instances thrown on the cluster.",
	}), "showers_simulated_total")
	if err != nil {
		return nil, err
	}

	triggers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "station_triggers_total",
		Help: "Total number of station triggers, labeled by station ID.",
	}, []string{"station"})
	triggers, err = registerCounterVec(reg, triggers, "station_triggers_total")
	if err != nil {
		return nil, err
	}

	particles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "particles_detected_total",
		Help: "Total number of ground particles matched to a detector, labeled by detection model.",
	}, []string{"model"})
	particles, err = registerCounterVec(reg, particles, "particles_detected_total")
	if err != nil {
		return nil, err
	}

	queries := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dataset_query_duration_seconds",
		Help:    "Ground-particle dataset query latency in seconds, labeled by detection model.",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"model"})
	queries, err = registerHistogramVec(reg, queries, "dataset_query_duration_seconds")
	if err != nil {
		return nil, err
	}

	stored, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "events_stored_total",
		Help: "Total number of station events handed to the result sink.",
	}), "events_stored_total")
	if err != nil {
		return nil, err
	}

	archive := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "archive_rows_total",
		Help: "Total number of event rows downloaded from the public archive, labeled by station ID.",
	}, []string{"station"})
	archive, err = registerCounterVec(reg, archive, "archive_rows_total")
	if err != nil {
		return nil, err
	}

	stations, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cluster_stations",
		Help: "Number of stations in the active cluster.",
	}), "cluster_stations")
	if err != nil {
		return nil, err
	}
	detectors, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cluster_detectors",
		Help: "Number of detectors in the active cluster.",
	}), "cluster_detectors")
	if err != nil {
		return nil, err
	}

	return &SimCollector{
		gatherer:          gatherer,
		ShowersSimulated:  showers,
		StationTriggers:   triggers,
		ParticlesDetected: particles,
		QueryDurations:    queries,
		EventsStored:      stored,
		ArchiveRows:       archive,
		ClusterStations:   stations,
		ClusterDetectors:  detectors,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetClusterCounts records the station and detector population of the active
// cluster. Safe on a nil collector so callers can skip wiring metrics.
func (c *SimCollector) SetClusterCounts(stations, detectors int) {
	if c == nil {
		return
	}
	if c.ClusterStations != nil {
		c.ClusterStations.Set(float64(stations))
	}
	if c.ClusterDetectors != nil {
		c.ClusterDetectors.Set(float64(detectors))
	}
}

// ShowerSimulated counts one completed shower iteration.
func (c *SimCollector) ShowerSimulated() {
	if c == nil || c.ShowersSimulated == nil {
		return
	}
	c.ShowersSimulated.Inc()
}

// StationTriggered counts a trigger for the given station.
func (c *SimCollector) StationTriggered(stationID int) {
	if c == nil || c.StationTriggers == nil {
		return
	}
	c.StationTriggers.WithLabelValues(strconv.Itoa(stationID)).Inc()
}

// ParticlesMatched counts dataset rows matched to a detector by a model.
func (c *SimCollector) ParticlesMatched(model string, n int) {
	if c == nil || c.ParticlesDetected == nil || n <= 0 {
		return
	}
	c.ParticlesDetected.WithLabelValues(model).Add(float64(n))
}

// QueryObserved records the latency of one dataset query.
func (c *SimCollector) QueryObserved(model string, d time.Duration) {
	if c == nil || c.QueryDurations == nil {
		return
	}
	c.QueryDurations.WithLabelValues(model).Observe(d.Seconds())
}

// EventStored counts station events handed to the result sink.
func (c *SimCollector) EventStored(n int) {
	if c == nil || c.EventsStored == nil || n <= 0 {
		return
	}
	c.EventsStored.Add(float64(n))
}

// ArchiveRowsDownloaded counts rows fetched from the public archive.
func (c *SimCollector) ArchiveRowsDownloaded(stationID, n int) {
	if c == nil || c.ArchiveRows == nil || n <= 0 {
		return
	}
	c.ArchiveRows.WithLabelValues(strconv.Itoa(stationID)).Add(float64(n))
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
