// Package storage persists simulation output and downloaded archive
// events in a SQL database. SQLite is the default, single-file backend;
// Postgres is available for shared deployments.
package storage

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"           // postgres driver registration
	_ "github.com/mattn/go-sqlite3" // sqlite driver registration

	"github.com/RaoOfPhysics/sapphire/cluster"
	"github.com/RaoOfPhysics/sapphire/esd"
	"github.com/RaoOfPhysics/sapphire/sim"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	created      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	seed         BIGINT    NOT NULL,
	n_showers    INTEGER   NOT NULL,
	model        TEXT      NOT NULL,
	cluster_json TEXT      NOT NULL
);

CREATE TABLE IF NOT EXISTS showers (
	run_id        TEXT    NOT NULL,
	shower_id     INTEGER NOT NULL,
	core_x        REAL    NOT NULL,
	core_y        REAL    NOT NULL,
	azimuth       REAL    NOT NULL,
	zenith        REAL    NOT NULL,
	size          REAL    NOT NULL,
	energy        REAL    NOT NULL,
	particle      INTEGER NOT NULL,
	ext_timestamp BIGINT  NOT NULL,
	PRIMARY KEY (run_id, shower_id)
);

CREATE TABLE IF NOT EXISTS sim_events (
	run_id        TEXT    NOT NULL,
	shower_id     INTEGER NOT NULL,
	station_id    INTEGER NOT NULL,
	triggered     BOOLEAN NOT NULL,
	ext_timestamp BIGINT,
	timestamp     BIGINT,
	nanoseconds   BIGINT,
	t_trigger     REAL,
	n1 REAL, n2 REAL, n3 REAL, n4 REAL,
	t1 REAL, t2 REAL, t3 REAL, t4 REAL,
	PRIMARY KEY (run_id, shower_id, station_id)
);

CREATE TABLE IF NOT EXISTS events (
	station_id    INTEGER NOT NULL,
	timestamp     BIGINT  NOT NULL,
	nanoseconds   BIGINT  NOT NULL,
	ext_timestamp BIGINT  NOT NULL,
	ph1 INTEGER, ph2 INTEGER, ph3 INTEGER, ph4 INTEGER,
	int1 INTEGER, int2 INTEGER, int3 INTEGER, int4 INTEGER,
	n1 REAL, n2 REAL, n3 REAL, n4 REAL,
	t1 REAL, t2 REAL, t3 REAL, t4 REAL,
	t_trigger REAL
);

CREATE INDEX IF NOT EXISTS idx_events_station_ts ON events(station_id, ext_timestamp);
`

// Store is a SQL-backed event store for simulation runs and downloaded
// archive events.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the database, verifies the connection, and applies
// the schema. Driver is sqlite3 or postgres.
func Open(driver, dsn string) (*Store, error) {
	if driver != "sqlite3" && driver != "postgres" {
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s store: %w", driver, err)
	}
	if driver == "postgres" {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}

	s := &Store{db: db, driver: driver}
	if _, err := db.Exec(s.rebind(schema)); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying handle for ad-hoc queries.
func (s *Store) DB() *sql.DB { return s.db }

// rebind converts ? placeholders to the $n form when running on
// postgres. The schema and queries are written in ? form.
func (s *Store) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// InsertRun stores a run's metadata, including the serialized cluster
// geometry with its per-run timing constants.
func (s *Store) InsertRun(meta sim.RunMetadata) error {
	clusterJSON, err := cluster.MarshalDefinition(meta.Cluster)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	_, err = s.db.Exec(s.rebind(
		"INSERT INTO runs (id, seed, n_showers, model, cluster_json) VALUES (?, ?, ?, ?, ?)"),
		meta.RunID.String(), meta.Seed, meta.NShowers, meta.Model, string(clusterJSON))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// InsertShower stores one shower's parameters and its per-station
// observables in a single transaction.
func (s *Store) InsertShower(runID string, params sim.ShowerParameters, stations []sim.StationObservables) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("insert shower: %w", err)
	}

	_, err = tx.Exec(s.rebind(
		`INSERT INTO showers
			(run_id, shower_id, core_x, core_y, azimuth, zenith, size, energy, particle, ext_timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		runID, params.ID, params.CorePos.X, params.CorePos.Y, params.Azimuth,
		params.Zenith, params.Size, params.Energy, params.Particle, int64(params.ExtTimestamp))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("insert shower %d: %w", params.ID, err)
	}

	for _, st := range stations {
		if err := insertStationEvent(tx, s, runID, params.ID, st); err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert shower %d: %w", params.ID, err)
	}
	return nil
}

func insertStationEvent(tx *sql.Tx, s *Store, runID string, showerID int, st sim.StationObservables) error {
	var ext, ts, ns sql.NullInt64
	var trig sql.NullFloat64
	if st.HasTimestamp {
		ext = sql.NullInt64{Int64: int64(st.ExtTimestamp), Valid: true}
		ts = sql.NullInt64{Int64: int64(st.Timestamp), Valid: true}
		ns = sql.NullInt64{Int64: int64(st.Nanoseconds), Valid: true}
		trig = sql.NullFloat64{Float64: st.TriggerTime, Valid: true}
	}

	// Stations carry up to four detectors; absent ones stay NULL.
	var n, t [4]sql.NullFloat64
	for i, d := range st.Detectors {
		if i >= 4 {
			break
		}
		n[i] = sql.NullFloat64{Float64: d.N, Valid: true}
		t[i] = sql.NullFloat64{Float64: d.T, Valid: true}
	}

	_, err := tx.Exec(s.rebind(
		`INSERT INTO sim_events
			(run_id, shower_id, station_id, triggered,
			 ext_timestamp, timestamp, nanoseconds, t_trigger,
			 n1, n2, n3, n4, t1, t2, t3, t4)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		runID, showerID, st.StationID, st.Triggered,
		ext, ts, ns, trig,
		n[0], n[1], n[2], n[3], t[0], t[1], t[2], t[3])
	if err != nil {
		return fmt.Errorf("insert station %d event: %w", st.StationID, err)
	}
	return nil
}

// WriteEvent stores one downloaded archive event. Implements
// esd.EventWriter.
func (s *Store) WriteEvent(stationID int, ev esd.Event) error {
	_, err := s.db.Exec(s.rebind(
		`INSERT INTO events
			(station_id, timestamp, nanoseconds, ext_timestamp,
			 ph1, ph2, ph3, ph4, int1, int2, int3, int4,
			 n1, n2, n3, n4, t1, t2, t3, t4, t_trigger)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		stationID, int64(ev.Timestamp), int64(ev.Nanoseconds), int64(ev.ExtTimestamp),
		ev.Pulseheights[0], ev.Pulseheights[1], ev.Pulseheights[2], ev.Pulseheights[3],
		ev.Integrals[0], ev.Integrals[1], ev.Integrals[2], ev.Integrals[3],
		ev.N[0], ev.N[1], ev.N[2], ev.N[3],
		ev.T[0], ev.T[1], ev.T[2], ev.T[3], ev.TTrigger)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// CountRuns returns the number of stored runs.
func (s *Store) CountRuns() (int, error) {
	return s.count("SELECT COUNT(*) FROM runs")
}

// CountShowers returns the number of stored showers for a run.
func (s *Store) CountShowers(runID string) (int, error) {
	return s.count("SELECT COUNT(*) FROM showers WHERE run_id = ?", runID)
}

// CountTriggers returns the number of triggered station events for a
// run.
func (s *Store) CountTriggers(runID string) (int, error) {
	return s.count("SELECT COUNT(*) FROM sim_events WHERE run_id = ? AND triggered", runID)
}

// CountEvents returns the number of downloaded events for a station.
func (s *Store) CountEvents(stationID int) (int, error) {
	return s.count("SELECT COUNT(*) FROM events WHERE station_id = ?", stationID)
}

func (s *Store) count(query string, args ...any) (int, error) {
	var n int
	if err := s.db.QueryRow(s.rebind(query), args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}
