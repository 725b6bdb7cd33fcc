// Package controlpoint holds validated correspondences between source and
// target coordinates.
package controlpoint

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"

	"vector-georef/pkg/geometry"
)

// ErrInvalidControlPoint is returned for non-finite coordinates, duplicate
// sources and features that cannot yield a correspondence.
var ErrInvalidControlPoint = errors.New("invalid control point")

// ControlPoint links one location in the source frame to its target.
type ControlPoint struct {
	source geometry.Point2D
	target geometry.Point2D
}

// New creates a control point, rejecting non-finite coordinates.
func New(source, target geometry.Point2D) (ControlPoint, error) {
	if !source.Finite() {
		return ControlPoint{}, fmt.Errorf("source (%v, %v) not finite: %w", source.X, source.Y, ErrInvalidControlPoint)
	}
	if !target.Finite() {
		return ControlPoint{}, fmt.Errorf("target (%v, %v) not finite: %w", target.X, target.Y, ErrInvalidControlPoint)
	}
	return ControlPoint{source: source, target: target}, nil
}

// Source returns the coordinate in the unreferenced frame.
func (c ControlPoint) Source() geometry.Point2D { return c.source }

// Target returns the known coordinate in the destination frame.
func (c ControlPoint) Target() geometry.Point2D { return c.target }

// Displacement returns target minus source.
func (c ControlPoint) Displacement() geometry.Point2D { return c.target.Sub(c.source) }

// Set is an ordered collection of control points with unique sources.
type Set struct {
	points []ControlPoint
}

// NewSet validates and copies the given points.
func NewSet(points []ControlPoint) (*Set, error) {
	seen := make(map[geometry.Point2D]int, len(points))
	out := make([]ControlPoint, len(points))
	for i, p := range points {
		if !p.source.Finite() || !p.target.Finite() {
			return nil, fmt.Errorf("control point %d: non-finite coordinate: %w", i, ErrInvalidControlPoint)
		}
		// -0 and +0 compare equal but hash differently.
		key := geometry.Point2D{X: p.source.X + 0, Y: p.source.Y + 0}
		if j, ok := seen[key]; ok {
			return nil, fmt.Errorf("control points %d and %d share source (%g, %g): %w",
				j, i, p.source.X, p.source.Y, ErrInvalidControlPoint)
		}
		seen[key] = i
		out[i] = p
	}
	return &Set{points: out}, nil
}

// FromPairs builds a set from parallel source and target slices.
func FromPairs(sources, targets []geometry.Point2D) (*Set, error) {
	if len(sources) != len(targets) {
		return nil, fmt.Errorf("point count mismatch: %d vs %d: %w", len(sources), len(targets), ErrInvalidControlPoint)
	}
	points := make([]ControlPoint, len(sources))
	for i := range sources {
		cp, err := New(sources[i], targets[i])
		if err != nil {
			return nil, fmt.Errorf("control point %d: %w", i, err)
		}
		points[i] = cp
	}
	return NewSet(points)
}

// Len returns the number of control points.
func (s *Set) Len() int { return len(s.points) }

// At returns the i-th control point.
func (s *Set) At(i int) ControlPoint { return s.points[i] }

// Points returns a copy of the control points in insertion order.
func (s *Set) Points() []ControlPoint {
	out := make([]ControlPoint, len(s.points))
	copy(out, s.points)
	return out
}

// Sources returns the source coordinates in insertion order.
func (s *Set) Sources() []geometry.Point2D {
	out := make([]geometry.Point2D, len(s.points))
	for i, p := range s.points {
		out[i] = p.source
	}
	return out
}

// Targets returns the target coordinates in insertion order.
func (s *Set) Targets() []geometry.Point2D {
	out := make([]geometry.Point2D, len(s.points))
	for i, p := range s.points {
		out[i] = p.target
	}
	return out
}

// Coverage returns the convex hull of the source points as a closed ring,
// nil when the sources are collinear. Geometries outside it are
// extrapolated by the fitted model.
func (s *Set) Coverage() orb.Ring {
	return geometry.HullRing(s.Sources())
}
