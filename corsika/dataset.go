// Package corsika reads and writes precomputed ground-particle
// datasets. A dataset is a single SQLite file holding the shower
// header records of one simulated air shower plus one row per ground
// particle at the observation level, expressed in the shower frame.
package corsika

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3" // SQLite driver registration
)

var (
	ErrNoEventHeader = errors.New("dataset has no event header record")
	ErrNoEventEnd    = errors.New("dataset has no event end record")
)

// EventHeader carries the per-shower metadata stored with a dataset.
type EventHeader struct {
	Zenith   float64 // radians
	Azimuth  float64 // radians
	Energy   float64 // primary energy
	Particle int     // primary particle code
}

// EventEnd carries the end-of-shower summary record.
type EventEnd struct {
	NElectrons float64 // electron count at observation level
}

// Particle is one ground-particle row. Momentum components are only
// populated when the query asked for them.
type Particle struct {
	ID int     // particle code
	X  float64 // m
	Y  float64 // m
	T  float64 // ns
	PX float64
	PY float64
	PZ float64
}

// Dataset is a read-only handle on a ground-particle file. The header
// records are read once at open time; a file without them is unusable
// and fails the open.
type Dataset struct {
	db     *sql.DB
	path   string
	header EventHeader
	end    EventEnd
}

// OpenDataset opens an existing ground-particle file and reads its
// header records.
func OpenDataset(path string) (*Dataset, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}

	db, err := sql.Open("sqlite3", withBusyTimeout(path))
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", path, err)
	}

	d := &Dataset{db: db, path: path}
	if err := d.readHeaders(); err != nil {
		db.Close()
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}
	return d, nil
}

func (d *Dataset) readHeaders() error {
	err := d.db.QueryRow(
		"SELECT zenith, azimuth, energy, particle FROM event_header",
	).Scan(&d.header.Zenith, &d.header.Azimuth, &d.header.Energy, &d.header.Particle)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNoEventHeader
	}
	if err != nil {
		return fmt.Errorf("read event header: %w", err)
	}

	err = d.db.QueryRow("SELECT n_electrons FROM event_end").Scan(&d.end.NElectrons)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNoEventEnd
	}
	if err != nil {
		return fmt.Errorf("read event end: %w", err)
	}
	return nil
}

// EventHeader returns the shower header read at open time.
func (d *Dataset) EventHeader() EventHeader { return d.header }

// EventEnd returns the end-of-shower record read at open time.
func (d *Dataset) EventEnd() EventEnd { return d.end }

// Path returns the dataset file path.
func (d *Dataset) Path() string { return d.path }

// SelectParticles returns the ground particles matching q, in file
// order.
func (d *Dataset) SelectParticles(q Query) ([]Particle, error) {
	columns := "particle_id, x, y, t"
	if q.Momentum {
		columns += ", p_x, p_y, p_z"
	}
	where, args := q.whereClause()

	rows, err := d.db.Query("SELECT "+columns+" FROM groundparticles WHERE "+where, args...)
	if err != nil {
		return nil, fmt.Errorf("select particles: %w", err)
	}
	defer rows.Close()

	var particles []Particle
	for rows.Next() {
		var p Particle
		if q.Momentum {
			err = rows.Scan(&p.ID, &p.X, &p.Y, &p.T, &p.PX, &p.PY, &p.PZ)
		} else {
			err = rows.Scan(&p.ID, &p.X, &p.Y, &p.T)
		}
		if err != nil {
			return nil, fmt.Errorf("scan particle row: %w", err)
		}
		particles = append(particles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read particle rows: %w", err)
	}
	return particles, nil
}

// Close releases the underlying database handle.
func (d *Dataset) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

// withBusyTimeout appends a busy timeout to the DSN so concurrent
// readers back off instead of failing immediately.
func withBusyTimeout(dsn string) string {
	if strings.Contains(dsn, "_busy_timeout") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&_busy_timeout=5000"
	}
	return dsn + "?_busy_timeout=5000"
}
