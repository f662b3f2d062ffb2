// Package esd fetches event summary data from the public detector
// archive: per-station event exports served as tab-separated text, one
// reconstructed event per line.
package esd

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/RaoOfPhysics/sapphire/internal/logging"
	"github.com/RaoOfPhysics/sapphire/internal/observability"
)

// DefaultBaseURL is the public archive endpoint.
const DefaultBaseURL = "https://data.hisparc.nl"

const timeLayout = "2006-01-02T15:04:05"

var (
	// ErrStartRequired is returned when an end time is given without a
	// start time.
	ErrStartRequired = errors.New("end time set without start time")
	// ErrBadStatus is returned for non-200 archive responses.
	ErrBadStatus = errors.New("unexpected archive response status")
)

// Event is one reconstructed station event from the archive export.
type Event struct {
	Timestamp    uint64 // whole seconds
	Nanoseconds  uint64
	ExtTimestamp uint64 // Timestamp*1e9 + Nanoseconds
	Pulseheights [4]int
	Integrals    [4]int
	N            [4]float64
	T            [4]float64
	TTrigger     float64
}

// EventWriter receives downloaded events for storage.
type EventWriter interface {
	WriteEvent(stationID int, ev Event) error
}

// Config carries the optional knobs of a Client. The zero value talks
// to the public archive with default timeouts and no observability.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  logging.Logger
	Metrics *observability.SimCollector

	// Progress receives the fraction of the requested time range
	// covered by the last event seen. Purely observational.
	Progress func(fraction float64)
}

// Client downloads event summary data.
type Client struct {
	baseURL  string
	http     *http.Client
	log      logging.Logger
	metrics  *observability.SimCollector
	progress func(float64)
}

// NewClient builds an archive client. The underlying HTTP transport is
// trace-instrumented.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Noop()
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log:      cfg.Logger,
		metrics:  cfg.Metrics,
		progress: cfg.Progress,
	}
}

// DownloadData streams the station's events in [start, end) into w.
// Both times zero means yesterday 00:00 through today 00:00; end
// without start is an error; start without end means one day from
// start.
func (c *Client) DownloadData(ctx context.Context, w EventWriter, stationID int, start, end time.Time) error {
	if start.IsZero() {
		if !end.IsZero() {
			return ErrStartRequired
		}
		today := time.Now().UTC().Truncate(24 * time.Hour)
		start = today.AddDate(0, 0, -1)
	}
	if end.IsZero() {
		end = start.AddDate(0, 0, 1)
	}

	u := fmt.Sprintf("%s/data/%d/events?%s", c.baseURL, stationID, url.Values{
		"start": {start.Format(timeLayout)},
		"end":   {end.Format(timeLayout)},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build archive request: %w", err)
	}

	c.log.Info(ctx, "downloading events",
		logging.Int("station", stationID),
		logging.String("start", start.Format(timeLayout)),
		logging.String("end", end.Format(timeLayout)),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("archive request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s", ErrBadStatus, resp.Status)
	}

	rows, err := c.readEvents(resp.Body, w, stationID, start, end)
	if err != nil {
		return err
	}

	c.metrics.ArchiveRowsDownloaded(stationID, rows)
	c.log.Info(ctx, "download finished",
		logging.Int("station", stationID),
		logging.Int("events", rows),
	)
	return nil
}

// QuickDownload fetches yesterday's events for a station. No frills.
func (c *Client) QuickDownload(ctx context.Context, w EventWriter, stationID int) error {
	return c.DownloadData(ctx, w, stationID, time.Time{}, time.Time{})
}

func (c *Client) readEvents(r io.Reader, w EventWriter, stationID int, start, end time.Time) (int, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.Comment = '#'
	reader.FieldsPerRecord = -1

	tStart := float64(start.Unix())
	tDelta := float64(end.Unix()) - tStart

	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return rows, fmt.Errorf("read archive row: %w", err)
		}

		ev, err := parseEvent(record)
		if err != nil {
			return rows, fmt.Errorf("archive row %d: %w", rows+1, err)
		}
		if err := w.WriteEvent(stationID, ev); err != nil {
			return rows, fmt.Errorf("store event: %w", err)
		}
		rows++

		if c.progress != nil && tDelta > 0 {
			c.progress((float64(ev.Timestamp) - tStart) / tDelta)
		}
	}
	return rows, nil
}

// parseEvent converts one export line. Columns: date, time, timestamp,
// nanoseconds, 4 pulseheights, 4 integrals, n1-n4, t1-t4, t_trigger.
func parseEvent(record []string) (Event, error) {
	const columns = 21
	if len(record) != columns {
		return Event{}, fmt.Errorf("got %d columns, want %d", len(record), columns)
	}

	var ev Event
	var err error

	if ev.Timestamp, err = strconv.ParseUint(record[2], 10, 64); err != nil {
		return Event{}, fmt.Errorf("timestamp: %w", err)
	}
	if ev.Nanoseconds, err = strconv.ParseUint(record[3], 10, 64); err != nil {
		return Event{}, fmt.Errorf("nanoseconds: %w", err)
	}
	ev.ExtTimestamp = ev.Timestamp*1_000_000_000 + ev.Nanoseconds

	for i := 0; i < 4; i++ {
		if ev.Pulseheights[i], err = strconv.Atoi(record[4+i]); err != nil {
			return Event{}, fmt.Errorf("pulseheight %d: %w", i+1, err)
		}
		if ev.Integrals[i], err = strconv.Atoi(record[8+i]); err != nil {
			return Event{}, fmt.Errorf("integral %d: %w", i+1, err)
		}
		if ev.N[i], err = strconv.ParseFloat(record[12+i], 64); err != nil {
			return Event{}, fmt.Errorf("n%d: %w", i+1, err)
		}
		if ev.T[i], err = strconv.ParseFloat(record[16+i], 64); err != nil {
			return Event{}, fmt.Errorf("t%d: %w", i+1, err)
		}
	}
	if ev.TTrigger, err = strconv.ParseFloat(record[20], 64); err != nil {
		return Event{}, fmt.Errorf("t_trigger: %w", err)
	}
	return ev, nil
}
