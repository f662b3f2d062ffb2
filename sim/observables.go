// Package sim throws randomized air-shower instances onto a detector
// cluster and computes per-station observables from a precomputed
// ground-particle dataset. The shower loop is strictly sequential: each
// shower rewrites the shared cluster pose that the detector queries for
// that shower depend on.
package sim

// NoParticle is the sentinel arrival time reported when a detector saw
// no particles. It is distinguishable from any real arrival time, which
// is non-negative before transport delays are added.
const NoParticle = -999

// DetectorObservables is the response of a single detector to one
// shower. N is the matched particle count, or the intensity-weighted
// signal strength under the momentum-weighted model.
type DetectorObservables struct {
	N float64
	T float64 // earliest corrected arrival time in ns, NoParticle when N == 0
}

// StationObservables is the response of one station to one shower:
// the per-detector observables in detector index order, the trigger
// decision, and the GPS timestamp when the trigger fired.
type StationObservables struct {
	StationID int
	Detectors []DetectorObservables
	Triggered bool

	// Timestamp fields are only valid when HasTimestamp is set. Fewer
	// than two hit detectors leave the station unstamped; that is a
	// quiet no-op, not an error.
	HasTimestamp bool
	TriggerTime  float64
	ExtTimestamp uint64
	Timestamp    uint64
	Nanoseconds  uint64
}
