package storage

import "github.com/RaoOfPhysics/sapphire/sim"

// Sink adapts a Store to the simulation's result sink interface,
// remembering the run ID from the metadata record so shower writes can
// reference it.
type Sink struct {
	store *Store
	runID string
}

// NewSink wraps a store as a simulation result sink.
func NewSink(store *Store) *Sink { return &Sink{store: store} }

// WriteRunMetadata stores the run record and pins the run ID for the
// shower writes that follow.
func (s *Sink) WriteRunMetadata(meta sim.RunMetadata) error {
	if err := s.store.InsertRun(meta); err != nil {
		return err
	}
	s.runID = meta.RunID.String()
	return nil
}

// WriteShower stores one shower with its station observables.
func (s *Sink) WriteShower(params sim.ShowerParameters, stations []sim.StationObservables) error {
	return s.store.InsertShower(s.runID, params, stations)
}

var _ sim.ResultSink = (*Sink)(nil)
