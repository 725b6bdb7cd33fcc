package transform

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"vector-georef/internal/controlpoint"
	"vector-georef/pkg/geometry"
)

// Method selects the model family and, for polynomials, the degree.
type Method struct {
	Kind   Kind
	Degree int
}

// Helmert selects the 4-parameter similarity model.
func Helmert() Method { return Method{Kind: KindHelmert} }

// Polynomial selects a polynomial model of the given degree.
func Polynomial(degree int) Method { return Method{Kind: KindPolynomial, Degree: degree} }

// MinPoints returns the minimum number of control points for the method.
func (m Method) MinPoints() int {
	if m.Kind == KindPolynomial {
		return TermCount(m.Degree)
	}
	return 2
}

func (m Method) String() string {
	if m.Kind == KindPolynomial {
		return fmt.Sprintf("polynomial(%d)", m.Degree)
	}
	return string(m.Kind)
}

// AutoDegree picks a polynomial degree from the number of control points:
// 3 from ten points, 2 from six, 1 otherwise.
func AutoDegree(n int) int {
	switch {
	case n >= TermCount(3):
		return 3
	case n >= TermCount(2):
		return 2
	default:
		return 1
	}
}

// Residual is the difference between an observed target and the model's
// prediction for one control point.
type Residual struct {
	DX float64 `json:"dx" yaml:"dx"`
	DY float64 `json:"dy" yaml:"dy"`
}

// Magnitude returns the Euclidean length of the residual.
func (r Residual) Magnitude() float64 {
	return math.Hypot(r.DX, r.DY)
}

// Fit is the outcome of an estimator.
type Fit struct {
	Model     Model
	Residuals []Residual // aligned with the control point set

	SourceCentroid geometry.Point2D
	TargetCentroid geometry.Point2D
}

// Estimate fits the model selected by m.
func Estimate(set *controlpoint.Set, m Method) (*Fit, error) {
	switch m.Kind {
	case KindHelmert:
		return FitHelmert(set)
	case KindPolynomial:
		return FitPolynomial(set, m.Degree)
	}
	return nil, fmt.Errorf("%q: %w", m.Kind, ErrUnknownModel)
}

// rowResiduals computes b - A*x for interleaved or split per-axis rows.
func rowResiduals(a *mat.Dense, x, b *mat.VecDense) []float64 {
	var pred mat.VecDense
	pred.MulVec(a, x)
	out := make([]float64, b.Len())
	for i := range out {
		out[i] = b.AtVec(i) - pred.AtVec(i)
	}
	return out
}
