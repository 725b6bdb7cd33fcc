// Package warp applies fitted transformation models to vector geometries.
package warp

import (
	"context"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"

	"vector-georef/internal/transform"
	"vector-georef/pkg/geometry"
)

var (
	// ErrUnsupportedGeometryType is returned for shapes other than points,
	// lines, rings, polygons, their multi-part forms and homogeneous collections.
	ErrUnsupportedGeometryType = errors.New("unsupported geometry type")
	// ErrNonFiniteResult means the model produced NaN or Inf for a vertex.
	ErrNonFiniteResult = errors.New("transformed vertex is not finite")
)

// vertexFunc maps one vertex into the target frame.
type vertexFunc func(orb.Point) (orb.Point, error)

func mapper(m transform.Model) (vertexFunc, error) {
	var apply func(geometry.Point2D) geometry.Point2D
	switch v := m.(type) {
	case transform.HelmertModel:
		if err := v.Validate(); err != nil {
			return nil, err
		}
		apply = v.Affine().Apply
	case *transform.HelmertModel:
		return mapper(*v)
	case transform.PolynomialModel:
		if err := v.Validate(); err != nil {
			return nil, err
		}
		apply = v.Apply
	case *transform.PolynomialModel:
		return mapper(*v)
	default:
		return nil, fmt.Errorf("model %T: %w", m, transform.ErrUnknownModel)
	}

	return func(p orb.Point) (orb.Point, error) {
		out := apply(geometry.FromOrb(p))
		if !out.Finite() {
			return orb.Point{}, fmt.Errorf("vertex (%g, %g): %w", p[0], p[1], ErrNonFiniteResult)
		}
		return out.Orb(), nil
	}, nil
}

// Transform returns a copy of g with every vertex mapped by m. Part count,
// ring count and vertex order are preserved. g is never modified.
func Transform(g orb.Geometry, m transform.Model) (orb.Geometry, error) {
	fn, err := mapper(m)
	if err != nil {
		return nil, err
	}
	return transformGeometry(g, fn)
}

func transformGeometry(g orb.Geometry, fn vertexFunc) (orb.Geometry, error) {
	switch v := g.(type) {
	case orb.Point:
		return fn(v)
	case orb.MultiPoint:
		pts, err := mapPoints(v, fn)
		return orb.MultiPoint(pts), err
	case orb.LineString:
		pts, err := mapPoints(v, fn)
		return orb.LineString(pts), err
	case orb.Ring:
		return mapRing(v, fn)
	case orb.MultiLineString:
		if v == nil {
			return orb.MultiLineString(nil), nil
		}
		out := make(orb.MultiLineString, len(v))
		for i, ls := range v {
			pts, err := mapPoints(ls, fn)
			if err != nil {
				return nil, fmt.Errorf("part %d: %w", i, err)
			}
			out[i] = pts
		}
		return out, nil
	case orb.Polygon:
		return mapPolygon(v, fn)
	case orb.MultiPolygon:
		if v == nil {
			return orb.MultiPolygon(nil), nil
		}
		out := make(orb.MultiPolygon, len(v))
		for i, p := range v {
			poly, err := mapPolygon(p, fn)
			if err != nil {
				return nil, fmt.Errorf("part %d: %w", i, err)
			}
			out[i] = poly
		}
		return out, nil
	case orb.Collection:
		return mapCollection(v, fn)
	case nil:
		return nil, fmt.Errorf("nil geometry: %w", ErrUnsupportedGeometryType)
	default:
		// orb.Bound is rejected: an axis-aligned box cannot carry a rotation.
		return nil, fmt.Errorf("%T: %w", g, ErrUnsupportedGeometryType)
	}
}

func mapPoints[S ~[]orb.Point](pts S, fn vertexFunc) ([]orb.Point, error) {
	if pts == nil {
		return nil, nil
	}
	out := make([]orb.Point, len(pts))
	for i, p := range pts {
		q, err := fn(p)
		if err != nil {
			return nil, err
		}
		out[i] = q
	}
	return out, nil
}

func mapRing(r orb.Ring, fn vertexFunc) (orb.Ring, error) {
	pts, err := mapPoints(r, fn)
	if err != nil {
		return nil, err
	}
	return orb.Ring(pts), nil
}

func mapPolygon(p orb.Polygon, fn vertexFunc) (orb.Polygon, error) {
	if p == nil {
		return nil, nil
	}
	out := make(orb.Polygon, len(p))
	for i, r := range p {
		ring, err := mapRing(r, fn)
		if err != nil {
			return nil, fmt.Errorf("ring %d: %w", i, err)
		}
		out[i] = ring
	}
	return out, nil
}

func mapCollection(c orb.Collection, fn vertexFunc) (orb.Collection, error) {
	if c == nil {
		return nil, nil
	}
	out := make(orb.Collection, len(c))
	for i, g := range c {
		if g == nil {
			return nil, fmt.Errorf("collection member %d is nil: %w", i, ErrUnsupportedGeometryType)
		}
		if i > 0 && g.GeoJSONType() != c[0].GeoJSONType() {
			return nil, fmt.Errorf("collection mixes %s and %s: %w",
				c[0].GeoJSONType(), g.GeoJSONType(), ErrUnsupportedGeometryType)
		}
		t, err := transformGeometry(g, fn)
		if err != nil {
			return nil, fmt.Errorf("member %d: %w", i, err)
		}
		out[i] = t
	}
	return out, nil
}

// BatchError reports the first geometry of a batch that failed to transform.
type BatchError struct {
	Index int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("geometry %d: %v", e.Index, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// TransformAll maps every geometry with m. Geometries are independent, so up
// to workers of them are transformed concurrently; workers <= 1 runs
// sequentially. Output order equals input order. If any geometry fails the
// lowest failing index is reported and no output is returned.
func TransformAll(ctx context.Context, geoms []orb.Geometry, m transform.Model, workers int) ([]orb.Geometry, error) {
	fn, err := mapper(m)
	if err != nil {
		return nil, err
	}

	out := make([]orb.Geometry, len(geoms))
	errs := make([]error, len(geoms))

	if workers <= 1 {
		for i, g := range geoms {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if out[i], errs[i] = transformGeometry(g, fn); errs[i] != nil {
				return nil, &BatchError{Index: i, Err: errs[i]}
			}
		}
		return out, nil
	}

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(workers)
	for i, g := range geoms {
		grp.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i], errs[i] = transformGeometry(g, fn)
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	for i, err := range errs {
		if err != nil {
			return nil, &BatchError{Index: i, Err: err}
		}
	}
	return out, nil
}
