package controlpoint

import (
	"fmt"

	"github.com/paulmach/orb"

	"vector-georef/pkg/geometry"
)

// Extractor turns reference geometries into control points.
type Extractor interface {
	Extract(geoms []orb.Geometry) (*Set, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(geoms []orb.Geometry) (*Set, error)

// Extract calls f.
func (f ExtractorFunc) Extract(geoms []orb.Geometry) (*Set, error) { return f(geoms) }

// LineEndpoints reads one control point per line feature. The first vertex
// is the source and the last vertex is the target. A MultiLineString
// contributes its first part only.
type LineEndpoints struct{}

// Extract implements Extractor.
func (LineEndpoints) Extract(geoms []orb.Geometry) (*Set, error) {
	points := make([]ControlPoint, 0, len(geoms))
	for i, g := range geoms {
		line, err := referenceLine(g)
		if err != nil {
			return nil, fmt.Errorf("reference feature %d: %w", i, err)
		}
		cp, err := New(geometry.FromOrb(line[0]), geometry.FromOrb(line[len(line)-1]))
		if err != nil {
			return nil, fmt.Errorf("reference feature %d: %w", i, err)
		}
		points = append(points, cp)
	}
	return NewSet(points)
}

func referenceLine(g orb.Geometry) (orb.LineString, error) {
	var line orb.LineString
	switch v := g.(type) {
	case orb.LineString:
		line = v
	case orb.MultiLineString:
		if len(v) == 0 {
			return nil, fmt.Errorf("empty multilinestring: %w", ErrInvalidControlPoint)
		}
		line = v[0]
	case nil:
		return nil, fmt.Errorf("missing geometry: %w", ErrInvalidControlPoint)
	default:
		return nil, fmt.Errorf("geometry type %s is not a line: %w", g.GeoJSONType(), ErrInvalidControlPoint)
	}
	if len(line) < 2 {
		return nil, fmt.Errorf("line has %d vertices, need 2: %w", len(line), ErrInvalidControlPoint)
	}
	return line, nil
}
