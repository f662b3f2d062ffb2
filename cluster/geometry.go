package cluster

import "math"

// Point is a position in the ground plane, in meters.
type Point struct {
	X, Y float64
}

// Add returns p + o.
func (p Point) Add(o Point) Point {
	return Point{X: p.X + o.X, Y: p.Y + o.Y}
}

// Rotate returns p rotated by angle radians about the origin.
func (p Point) Rotate(angle float64) Point {
	sina, cosa := math.Sincos(angle)
	return Point{
		X: p.X*cosa - p.Y*sina,
		Y: p.X*sina + p.Y*cosa,
	}
}

// DistanceTo returns the straight-line distance between two points.
func (p Point) DistanceTo(o Point) float64 {
	return math.Hypot(o.X-p.X, o.Y-p.Y)
}

// Polar returns the polar representation (r, phi) of p.
func (p Point) Polar() (r, phi float64) {
	return math.Hypot(p.X, p.Y), math.Atan2(p.Y, p.X)
}
