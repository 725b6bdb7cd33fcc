package lsq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestSolveSquareSystemIsExact(t *testing.T) {
	a := mat.NewDense(3, 3, []float64{
		2, 1, 0,
		1, 3, 1,
		0, 1, 4,
	})
	want := []float64{1, -2, 0.5}
	var b mat.VecDense
	b.MulVec(a, mat.NewVecDense(3, want))

	x, err := Solve(a, &b)
	require.NoError(t, err)
	for i, w := range want {
		assert.InDelta(t, w, x.AtVec(i), 1e-12)
	}
}

func TestSolveOverdeterminedLine(t *testing.T) {
	// y = 2x + 1 sampled with symmetric noise; the fit recovers the line.
	xs := []float64{0, 1, 2, 3}
	ys := []float64{1.1, 2.9, 5.1, 6.9}
	a := mat.NewDense(4, 2, nil)
	b := mat.NewVecDense(4, ys)
	for i, x := range xs {
		a.Set(i, 0, x)
		a.Set(i, 1, 1)
	}

	x, err := Solve(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 1.96, x.AtVec(0), 1e-9)
	assert.InDelta(t, 1.06, x.AtVec(1), 1e-9)
}

func TestSolveMultiSharesFactorization(t *testing.T) {
	a := mat.NewDense(3, 2, []float64{
		1, 0,
		0, 1,
		1, 1,
	})
	bx := mat.NewVecDense(3, []float64{1, 2, 3})
	by := mat.NewVecDense(3, []float64{-1, 4, 3})

	xs, err := SolveMulti(a, bx, by)
	require.NoError(t, err)
	require.Len(t, xs, 2)
	assert.InDelta(t, 1, xs[0].AtVec(0), 1e-12)
	assert.InDelta(t, 2, xs[0].AtVec(1), 1e-12)
	assert.InDelta(t, -1, xs[1].AtVec(0), 1e-12)
	assert.InDelta(t, 4, xs[1].AtVec(1), 1e-12)
}

func TestSolveUnderdetermined(t *testing.T) {
	a := mat.NewDense(1, 2, []float64{1, 1})
	_, err := Solve(a, mat.NewVecDense(1, []float64{1}))
	assert.ErrorIs(t, err, ErrUnderdeterminedSystem)
}

func TestSolveSingular(t *testing.T) {
	// Second column is a multiple of the first.
	a := mat.NewDense(3, 2, []float64{
		1, 2,
		2, 4,
		3, 6,
	})
	_, err := Solve(a, mat.NewVecDense(3, []float64{1, 2, 3}))
	assert.ErrorIs(t, err, ErrSingularSystem)
}

func TestSolveLengthMismatch(t *testing.T) {
	a := mat.NewDense(3, 2, []float64{1, 0, 0, 1, 1, 1})
	_, err := Solve(a, mat.NewVecDense(2, []float64{1, 2}))
	assert.Error(t, err)
}
