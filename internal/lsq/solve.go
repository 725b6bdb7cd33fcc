// Package lsq solves overdetermined linear systems in the least-squares sense.
package lsq

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ConditionLimit is the largest condition number of the design matrix that
// is still treated as solvable.
const ConditionLimit = 1e12

var (
	// ErrUnderdeterminedSystem means the design matrix has fewer rows than columns.
	ErrUnderdeterminedSystem = errors.New("underdetermined system")
	// ErrSingularSystem means the design matrix is rank deficient within tolerance.
	ErrSingularSystem = errors.New("singular system")
)

// Solve returns x minimizing ||Ax - b||².
func Solve(a *mat.Dense, b *mat.VecDense) (*mat.VecDense, error) {
	xs, err := SolveMulti(a, b)
	if err != nil {
		return nil, err
	}
	return xs[0], nil
}

// SolveMulti solves the least-squares problem for several observation
// vectors that share one design matrix. The matrix is factorized once.
func SolveMulti(a *mat.Dense, bs ...*mat.VecDense) ([]*mat.VecDense, error) {
	m, n := a.Dims()
	if n == 0 {
		return nil, fmt.Errorf("empty design matrix: %w", ErrUnderdeterminedSystem)
	}
	if m < n {
		return nil, fmt.Errorf("%d observations for %d unknowns: %w", m, n, ErrUnderdeterminedSystem)
	}
	for i, b := range bs {
		if b.Len() != m {
			return nil, fmt.Errorf("observation vector %d has length %d, want %d", i, b.Len(), m)
		}
	}

	var qr mat.QR
	qr.Factorize(a)

	if err := checkRank(&qr, n); err != nil {
		return nil, err
	}

	out := make([]*mat.VecDense, len(bs))
	for i, b := range bs {
		var x mat.VecDense
		if err := qr.SolveVecTo(&x, false, b); err != nil {
			var cond mat.Condition
			if errors.As(err, &cond) {
				return nil, fmt.Errorf("condition number %.3g: %w", float64(cond), ErrSingularSystem)
			}
			return nil, err
		}
		out[i] = &x
	}
	return out, nil
}

// checkRank rejects factorizations whose triangular factor has a zero
// pivot or whose condition number exceeds ConditionLimit.
func checkRank(qr *mat.QR, n int) error {
	var r mat.Dense
	qr.RTo(&r)

	maxDiag := 0.0
	for i := 0; i < n; i++ {
		maxDiag = math.Max(maxDiag, math.Abs(r.At(i, i)))
	}
	if maxDiag == 0 || math.IsNaN(maxDiag) {
		return fmt.Errorf("zero design matrix: %w", ErrSingularSystem)
	}
	for i := 0; i < n; i++ {
		d := math.Abs(r.At(i, i))
		if math.IsNaN(d) || d <= maxDiag*1e-14 {
			return fmt.Errorf("rank deficient at column %d: %w", i, ErrSingularSystem)
		}
	}

	if c := qr.Cond(); math.IsInf(c, 0) || math.IsNaN(c) || c > ConditionLimit {
		return fmt.Errorf("condition number %.3g: %w", c, ErrSingularSystem)
	}
	return nil
}
