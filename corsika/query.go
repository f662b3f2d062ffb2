package corsika

import "strings"

// LeptonIDs is the particle-code membership set used for detector
// queries: 2, 3, 5 and 6 are electrons and muons. Code 4 is the
// retired neutrino code and never matches.
var LeptonIDs = []int{2, 3, 5, 6}

// LineBand constrains rows to lie strictly between two parallel lines.
// For a non-vertical band the line value is y - Slope*x; for a vertical
// band it is x itself. Lo must not exceed Hi.
type LineBand struct {
	Vertical bool
	Slope    float64
	Lo, Hi   float64
}

// Query is a conjunction of constraints on the groundparticles table:
// a symmetric bounding box around (X, Y), optional line bands, and a
// membership set on particle_id. Momentum selects the p_x, p_y, p_z
// columns in addition to the defaults.
type Query struct {
	X, Y      float64
	HalfWidth float64

	Bands       []LineBand
	ParticleIDs []int
	Momentum    bool
}

// whereClause renders the query into a SQL condition and its arguments.
func (q Query) whereClause() (string, []any) {
	var conds []string
	var args []any

	conds = append(conds, "x >= ?", "x <= ?", "y >= ?", "y <= ?")
	args = append(args,
		q.X-q.HalfWidth, q.X+q.HalfWidth,
		q.Y-q.HalfWidth, q.Y+q.HalfWidth)

	for _, band := range q.Bands {
		if band.Vertical {
			conds = append(conds, "x > ?", "x < ?")
			args = append(args, band.Lo, band.Hi)
		} else {
			conds = append(conds, "(y - ? * x) > ?", "(y - ? * x) < ?")
			args = append(args, band.Slope, band.Lo, band.Slope, band.Hi)
		}
	}

	if len(q.ParticleIDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(q.ParticleIDs)), ", ")
		conds = append(conds, "particle_id IN ("+placeholders+")")
		for _, id := range q.ParticleIDs {
			args = append(args, id)
		}
	}

	return strings.Join(conds, " AND "), args
}
