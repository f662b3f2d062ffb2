package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestCollectorRecordsShowerCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}

	collector.ShowerSimulated()
	collector.ShowerSimulated()
	collector.StationTriggered(501)
	collector.ParticlesMatched("polygon", 7)
	collector.QueryObserved("polygon", 3*time.Millisecond)
	collector.EventStored(4)

	if got := testutil.ToFloat64(collector.ShowersSimulated); got != 2 {
		t.Fatalf("showers_simulated_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.StationTriggers.WithLabelValues("501")); got != 1 {
		t.Fatalf("station_triggers_total{station=501} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.ParticlesDetected.WithLabelValues("polygon")); got != 7 {
		t.Fatalf("particles_detected_total{model=polygon} = %v, want 7", got)
	}
	if got := testutil.ToFloat64(collector.EventsStored); got != 4 {
		t.Fatalf("events_stored_total = %v, want 4", got)
	}

	if count := histogramSampleCount(t, reg, "dataset_query_duration_seconds", map[string]string{
		"model": "polygon",
	}); count != 1 {
		t.Fatalf("dataset_query_duration_seconds sample_count = %d, want 1", count)
	}
}

func TestNilCollectorHelpersAreSafe(t *testing.T) {
	var collector *SimCollector
	collector.ShowerSimulated()
	collector.StationTriggered(1)
	collector.ParticlesMatched("square", 3)
	collector.QueryObserved("square", time.Millisecond)
	collector.EventStored(1)
	collector.ArchiveRowsDownloaded(501, 10)
	collector.SetClusterCounts(4, 16)
}

func TestReregisteringCollectorReusesInstruments(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector (first): %v", err)
	}
	second, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector (second): %v", err)
	}

	first.ShowerSimulated()
	second.ShowerSimulated()
	if got := testutil.ToFloat64(second.ShowersSimulated); got != 2 {
		t.Fatalf("shared counter after re-registration = %v, want 2", got)
	}
}

func TestMetricsHandlerExposesClusterGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}
	collector.SetClusterCounts(4, 16)
	collector.ShowerSimulated()
	collector.ArchiveRowsDownloaded(501, 25)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"showers_simulated_total",
		"archive_rows_total",
		"cluster_stations",
		"cluster_detectors",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
	if !strings.Contains(body, "cluster_stations 4") || !strings.Contains(body, "cluster_detectors 16") {
		t.Fatalf("/metrics output missing cluster gauge values: %s", body)
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
