package corsika

import (
	"database/sql"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS event_header (
	zenith   REAL    NOT NULL,
	azimuth  REAL    NOT NULL,
	energy   REAL    NOT NULL,
	particle INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS event_end (
	n_electrons REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS groundparticles (
	particle_id INTEGER NOT NULL,
	x           REAL    NOT NULL,
	y           REAL    NOT NULL,
	t           REAL    NOT NULL,
	p_x         REAL    NOT NULL DEFAULT 0,
	p_y         REAL    NOT NULL DEFAULT 0,
	p_z         REAL    NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_groundparticles_x ON groundparticles(x);
CREATE INDEX IF NOT EXISTS idx_groundparticles_y ON groundparticles(y);
`

// Builder writes a new ground-particle dataset file. Used by tooling
// that converts generator output and by tests that need synthetic
// datasets.
type Builder struct {
	db   *sql.DB
	path string
}

// CreateDataset creates a dataset file with an empty schema, ready for
// the header records and particle rows.
func CreateDataset(path string) (*Builder, error) {
	db, err := sql.Open("sqlite3", withBusyTimeout(path))
	if err != nil {
		return nil, fmt.Errorf("create dataset %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create dataset schema: %w", err)
	}
	return &Builder{db: db, path: path}, nil
}

// SetEventHeader stores the shower header record, replacing any
// previous one.
func (b *Builder) SetEventHeader(h EventHeader) error {
	if _, err := b.db.Exec("DELETE FROM event_header"); err != nil {
		return fmt.Errorf("set event header: %w", err)
	}
	_, err := b.db.Exec(
		"INSERT INTO event_header (zenith, azimuth, energy, particle) VALUES (?, ?, ?, ?)",
		h.Zenith, h.Azimuth, h.Energy, h.Particle)
	if err != nil {
		return fmt.Errorf("set event header: %w", err)
	}
	return nil
}

// SetEventEnd stores the end-of-shower record, replacing any previous
// one.
func (b *Builder) SetEventEnd(e EventEnd) error {
	if _, err := b.db.Exec("DELETE FROM event_end"); err != nil {
		return fmt.Errorf("set event end: %w", err)
	}
	if _, err := b.db.Exec("INSERT INTO event_end (n_electrons) VALUES (?)", e.NElectrons); err != nil {
		return fmt.Errorf("set event end: %w", err)
	}
	return nil
}

// AddParticles appends ground-particle rows in one transaction.
func (b *Builder) AddParticles(particles []Particle) error {
	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("add particles: %w", err)
	}

	stmt, err := tx.Prepare(
		"INSERT INTO groundparticles (particle_id, x, y, t, p_x, p_y, p_z) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("add particles: %w", err)
	}
	defer stmt.Close()

	for _, p := range particles {
		if _, err := stmt.Exec(p.ID, p.X, p.Y, p.T, p.PX, p.PY, p.PZ); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert particle: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("add particles: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (b *Builder) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}
