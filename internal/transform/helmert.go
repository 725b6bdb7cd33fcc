package transform

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"vector-georef/internal/controlpoint"
	"vector-georef/internal/lsq"
	"vector-georef/pkg/geometry"
)

// FitHelmert estimates a HelmertModel by linear least squares over the
// unknowns a = s*cos(r), b = s*sin(r), tx, ty. Both point clouds are reduced
// to their centroids first to keep the normal system well conditioned for
// large projected coordinates.
func FitHelmert(set *controlpoint.Set) (*Fit, error) {
	n := set.Len()
	if n < 2 {
		return nil, fmt.Errorf("helmert needs at least 2 control points, got %d: %w", n, ErrInsufficientControlPoints)
	}

	src := set.Sources()
	dst := set.Targets()
	cs := geometry.Centroid(src)
	ct := geometry.Centroid(dst)

	if spread(src, cs) <= 1e-12*math.Max(1, math.Hypot(cs.X, cs.Y)) {
		return nil, fmt.Errorf("all source points coincide: %w", ErrDegenerateGeometry)
	}

	// Two rows per point:
	//   x  -y  1  0  -> X
	//   y   x  0  1  -> Y
	A := mat.NewDense(n*2, 4, nil)
	B := mat.NewVecDense(n*2, nil)
	for i := 0; i < n; i++ {
		s := src[i].Sub(cs)
		d := dst[i].Sub(ct)

		A.Set(i*2, 0, s.X)
		A.Set(i*2, 1, -s.Y)
		A.Set(i*2, 2, 1)
		B.SetVec(i*2, d.X)

		A.Set(i*2+1, 0, s.Y)
		A.Set(i*2+1, 1, s.X)
		A.Set(i*2+1, 3, 1)
		B.SetVec(i*2+1, d.Y)
	}

	params, err := lsq.Solve(A, B)
	if err != nil {
		return nil, fmt.Errorf("helmert: %w", err)
	}

	a, b := params.AtVec(0), params.AtVec(1)
	scale := math.Hypot(a, b)
	if !(scale > 0) {
		return nil, fmt.Errorf("all target points coincide: %w", ErrDegenerateGeometry)
	}

	model := HelmertModel{
		Scale:    scale,
		Rotation: math.Atan2(b, a),
		TX:       ct.X + params.AtVec(2) - (a*cs.X - b*cs.Y),
		TY:       ct.Y + params.AtVec(3) - (b*cs.X + a*cs.Y),
	}
	if err := model.Validate(); err != nil {
		return nil, err
	}

	rows := rowResiduals(A, params, B)
	residuals := make([]Residual, n)
	for i := range residuals {
		residuals[i] = Residual{DX: rows[i*2], DY: rows[i*2+1]}
	}

	return &Fit{
		Model:          model,
		Residuals:      residuals,
		SourceCentroid: cs,
		TargetCentroid: ct,
	}, nil
}

// spread returns the largest distance of any point from c.
func spread(points []geometry.Point2D, c geometry.Point2D) float64 {
	var m float64
	for _, p := range points {
		m = math.Max(m, p.Distance(c))
	}
	return m
}
