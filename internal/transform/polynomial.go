package transform

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"vector-georef/internal/controlpoint"
	"vector-georef/internal/lsq"
	"vector-georef/pkg/geometry"
)

// FitPolynomial estimates independent x and y polynomials of the given
// degree. Both axes share one design matrix and one factorization.
func FitPolynomial(set *controlpoint.Set, degree int) (*Fit, error) {
	if degree < 0 || degree > MaxDegree {
		return nil, fmt.Errorf("degree %d outside 0..%d: %w", degree, MaxDegree, ErrInvalidDegree)
	}
	n := set.Len()
	k := TermCount(degree)
	if n < k {
		return nil, fmt.Errorf("degree %d polynomial needs at least %d control points, got %d: %w",
			degree, k, n, ErrInsufficientControlPoints)
	}

	src := set.Sources()
	dst := set.Targets()
	origin := geometry.Centroid(src)
	norm := 0.0
	for _, p := range src {
		norm = math.Max(norm, math.Max(math.Abs(p.X-origin.X), math.Abs(p.Y-origin.Y)))
	}
	if norm == 0 {
		norm = 1
	}
	frame := PolynomialModel{Degree: degree, Origin: origin, Norm: norm}

	A := mat.NewDense(n, k, nil)
	BX := mat.NewVecDense(n, nil)
	BY := mat.NewVecDense(n, nil)
	row := make([]float64, 0, k)
	for i := 0; i < n; i++ {
		row = monomials(frame.normalize(src[i]), degree, row[:0])
		A.SetRow(i, row)
		BX.SetVec(i, dst[i].X)
		BY.SetVec(i, dst[i].Y)
	}

	coeffs, err := lsq.SolveMulti(A, BX, BY)
	if err != nil {
		return nil, fmt.Errorf("polynomial degree %d: %w", degree, err)
	}

	model := frame
	model.CX = mat.Col(nil, 0, coeffs[0])
	model.CY = mat.Col(nil, 0, coeffs[1])

	rx := rowResiduals(A, coeffs[0], BX)
	ry := rowResiduals(A, coeffs[1], BY)
	residuals := make([]Residual, n)
	for i := range residuals {
		residuals[i] = Residual{DX: rx[i], DY: ry[i]}
	}

	return &Fit{
		Model:          model,
		Residuals:      residuals,
		SourceCentroid: origin,
		TargetCentroid: geometry.Centroid(dst),
	}, nil
}
