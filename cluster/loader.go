package cluster

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// internal JSON shapes - kept unexported so the file format can evolve
// independently of the domain types.
type clusterDefinitionJSON struct {
	Name     string        `json:"name"`
	Position *positionJSON `json:"position"`
	Angle    float64       `json:"angle"`
	Stations []stationJSON `json:"stations"`
}

type stationJSON struct {
	StationID int            `json:"station_id"`
	Position  positionJSON   `json:"position"`
	Angle     float64        `json:"angle"`
	Detectors []detectorJSON `json:"detectors"`

	// Per-run timing constants, present only in serialized run
	// metadata, never in hand-written layout files.
	GPSOffset       float64   `json:"gps_offset,omitempty"`
	DetectorOffsets []float64 `json:"detector_offsets,omitempty"`
}

type detectorJSON struct {
	Offset      positionJSON `json:"offset"`
	Orientation string       `json:"orientation"`
}

type positionJSON struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// LoadClusterDefinition reads a JSON cluster layout from r and builds a
// validated cluster from it. Structural errors and invalid station or
// detector definitions (unknown orientation, non-dense station IDs)
// fail the load.
func LoadClusterDefinition(r io.Reader) (*Cluster, error) {
	var payload clusterDefinitionJSON
	dec := json.NewDecoder(r)
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("LoadClusterDefinition: decode failed: %w", err)
	}
	if len(payload.Stations) == 0 {
		return nil, fmt.Errorf("LoadClusterDefinition: definition %q has no stations", payload.Name)
	}

	c := New()
	if payload.Position != nil {
		c.SetPose(Point{X: payload.Position.X, Y: payload.Position.Y}, payload.Angle)
	}

	for i, js := range payload.Stations {
		spec := StationSpec{
			ID:       js.StationID,
			Position: Point{X: js.Position.X, Y: js.Position.Y},
			Angle:    js.Angle,
		}
		for _, jd := range js.Detectors {
			orientation, err := orientationFromString(jd.Orientation)
			if err != nil {
				return nil, fmt.Errorf("LoadClusterDefinition: station %d: %w", i+1, err)
			}
			spec.Detectors = append(spec.Detectors, DetectorSpec{
				Offset:      Point{X: jd.Offset.X, Y: jd.Offset.Y},
				Orientation: orientation,
			})
		}
		st, err := c.AddStation(spec)
		if err != nil {
			return nil, fmt.Errorf("LoadClusterDefinition: %w", err)
		}
		st.GPSOffset = js.GPSOffset
		st.DetectorOffsets = js.DetectorOffsets
	}

	return c, nil
}

// MarshalDefinition serializes a cluster, including its pose and any
// per-run timing constants, in the same JSON shape the loader reads.
// Used to attach the geometry to run metadata.
func MarshalDefinition(c *Cluster) ([]byte, error) {
	pos, alpha := c.Pose()
	payload := clusterDefinitionJSON{
		Position: &positionJSON{X: pos.X, Y: pos.Y},
		Angle:    alpha,
	}
	for _, st := range c.Stations() {
		js := stationJSON{
			StationID:       st.ID(),
			Position:        positionJSON{X: st.Position().X, Y: st.Position().Y},
			Angle:           st.Angle(),
			GPSOffset:       st.GPSOffset,
			DetectorOffsets: st.DetectorOffsets,
		}
		for _, det := range st.Detectors() {
			js.Detectors = append(js.Detectors, detectorJSON{
				Offset:      positionJSON{X: det.Offset().X, Y: det.Offset().Y},
				Orientation: string(det.Orientation()),
			})
		}
		payload.Stations = append(payload.Stations, js)
	}

	out, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("MarshalDefinition: %w", err)
	}
	return out, nil
}

// orientationFromString maps the JSON "orientation" string to an
// Orientation constant. Unknown values are an error, never a default:
// a misspelled orientation is a broken layout, not a preference.
func orientationFromString(s string) (Orientation, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "UD":
		return OrientationUD, nil
	case "LR":
		return OrientationLR, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownOrientation, s)
	}
}
