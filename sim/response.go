package sim

import (
	"fmt"
	"math"
	"sort"

	"github.com/RaoOfPhysics/sapphire/cluster"
)

// stationResponse runs the detection model over every detector of a
// station, applies the trigger rule, and stamps the station with a GPS
// timestamp when the trigger fired.
func stationResponse(st *cluster.Station, params ShowerParameters, model DetectionModel, src ParticleSource, gps GPSModel) (StationObservables, error) {
	obs := StationObservables{
		StationID: st.ID(),
		Detectors: make([]DetectorObservables, 0, len(st.Detectors())),
	}
	for i, det := range st.Detectors() {
		d, err := model.DetectorResponse(det, src)
		if err != nil {
			return StationObservables{}, fmt.Errorf("detector %d: %w", i+1, err)
		}
		obs.Detectors = append(obs.Detectors, d)
	}

	obs.Triggered = triggered(obs.Detectors)
	applyGPS(&obs, params, st.GPSOffset, gps)
	return obs, nil
}

// triggered reports the 2-fold coincidence decision: at least two
// detectors saw a particle. Which detectors is irrelevant.
func triggered(detectors []DetectorObservables) bool {
	hit := 0
	for _, d := range detectors {
		if d.N > 0 {
			hit++
		}
	}
	return hit >= 2
}

// applyGPS stamps the station with an absolute trigger time. The
// trigger fires on the second pulse, so the second-smallest arrival
// time among hit detectors is the station trigger time. With fewer
// than two hit detectors the observables pass through unstamped.
func applyGPS(obs *StationObservables, params ShowerParameters, gpsOffset float64, gps GPSModel) {
	var arrivals []float64
	for _, d := range obs.Detectors {
		if d.N > 0 {
			arrivals = append(arrivals, d.T)
		}
	}
	if len(arrivals) < 2 {
		return
	}
	sort.Float64s(arrivals)
	trigger := arrivals[1]

	ext := int64(params.ExtTimestamp) + int64(math.Round(trigger+gpsOffset+gps.Uncertainty()))
	obs.HasTimestamp = true
	obs.TriggerTime = trigger
	obs.ExtTimestamp = uint64(ext)
	obs.Timestamp = uint64(ext / 1_000_000_000)
	obs.Nanoseconds = uint64(ext % 1_000_000_000)
}
