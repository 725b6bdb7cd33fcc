// Package transform fits 2-D coordinate transformations to control points
// and evaluates the fitted models.
package transform

import (
	"fmt"
	"math"
	"strings"

	"vector-georef/pkg/geometry"
)

// Kind names a transformation model family.
type Kind string

const (
	KindHelmert    Kind = "helmert"
	KindPolynomial Kind = "polynomial"
)

// ParseKind parses a model name, case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindHelmert:
		return KindHelmert, nil
	case KindPolynomial, "poly":
		return KindPolynomial, nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnknownModel)
}

// Model is a fitted transformation. The set of implementations is closed:
// HelmertModel and PolynomialModel.
type Model interface {
	Kind() Kind
	// Apply maps a source coordinate into the target frame.
	Apply(p geometry.Point2D) geometry.Point2D
	// NumParams is the number of free parameters of the model.
	NumParams() int
	// Validate reports whether Apply is safe to call.
	Validate() error

	sealed()
}

// HelmertModel is a 4-parameter similarity transform:
// target = Scale * R(Rotation) * source + (TX, TY).
type HelmertModel struct {
	Scale    float64 `json:"scale" yaml:"scale"`
	Rotation float64 `json:"rotation" yaml:"rotation"` // radians, counter-clockwise
	TX       float64 `json:"tx" yaml:"tx"`
	TY       float64 `json:"ty" yaml:"ty"`
}

func (HelmertModel) sealed() {}

// Kind implements Model.
func (HelmertModel) Kind() Kind { return KindHelmert }

// NumParams implements Model.
func (HelmertModel) NumParams() int { return 4 }

// Apply implements Model.
func (m HelmertModel) Apply(p geometry.Point2D) geometry.Point2D {
	return m.Affine().Apply(p)
}

// Affine returns the model as an affine matrix.
func (m HelmertModel) Affine() geometry.AffineTransform {
	a := m.Scale * math.Cos(m.Rotation)
	b := m.Scale * math.Sin(m.Rotation)
	return geometry.AffineTransform{
		A: a, B: -b, TX: m.TX,
		C: b, D: a, TY: m.TY,
	}
}

// RotationDegrees returns the rotation angle in degrees.
func (m HelmertModel) RotationDegrees() float64 {
	return m.Rotation * 180 / math.Pi
}

// Validate checks the scale invariant.
func (m HelmertModel) Validate() error {
	if !(m.Scale > 0) || math.IsInf(m.Scale, 0) {
		return fmt.Errorf("helmert scale %v must be positive and finite: %w", m.Scale, ErrDegenerateGeometry)
	}
	return nil
}

// Inverse returns the model mapping target coordinates back to the source.
func (m HelmertModel) Inverse() (HelmertModel, error) {
	if err := m.Validate(); err != nil {
		return HelmertModel{}, err
	}
	inv, ok := m.Affine().Inverse()
	if !ok {
		return HelmertModel{}, fmt.Errorf("helmert scale %v has no inverse: %w", m.Scale, ErrDegenerateGeometry)
	}
	// inverse of [a -b; b a] is [a b; -b a] / (a² + b²), still a similarity
	return HelmertModel{
		Scale:    math.Hypot(inv.A, inv.C),
		Rotation: math.Atan2(inv.C, inv.A),
		TX:       inv.TX,
		TY:       inv.TY,
	}, nil
}

// MaxDegree is the highest polynomial degree accepted by FitPolynomial.
const MaxDegree = 5

// TermCount returns the number of monomials x^i*y^j with i+j <= degree,
// which is also the minimum number of control points for that degree.
func TermCount(degree int) int {
	return (degree + 1) * (degree + 2) / 2
}

// PolynomialModel maps coordinates with one polynomial per output axis.
// Coefficients are ordered 1, x, y, x², xy, y², x³, ... and apply to
// coordinates normalized as ((x-Origin.X)/Norm, (y-Origin.Y)/Norm).
type PolynomialModel struct {
	Degree int              `json:"degree" yaml:"degree"`
	CX     []float64        `json:"cx" yaml:"cx"`
	CY     []float64        `json:"cy" yaml:"cy"`
	Origin geometry.Point2D `json:"origin" yaml:"origin"`
	Norm   float64          `json:"norm" yaml:"norm"`
}

func (PolynomialModel) sealed() {}

// Kind implements Model.
func (PolynomialModel) Kind() Kind { return KindPolynomial }

// NumParams implements Model.
func (m PolynomialModel) NumParams() int { return 2 * TermCount(m.Degree) }

// Apply implements Model.
func (m PolynomialModel) Apply(p geometry.Point2D) geometry.Point2D {
	terms := monomials(m.normalize(p), m.Degree, make([]float64, 0, TermCount(m.Degree)))
	var x, y float64
	for i, t := range terms {
		x += m.CX[i] * t
		y += m.CY[i] * t
	}
	return geometry.Point2D{X: x, Y: y}
}

// Validate checks coefficient vector lengths.
func (m PolynomialModel) Validate() error {
	if m.Degree < 0 || m.Degree > MaxDegree {
		return fmt.Errorf("degree %d: %w", m.Degree, ErrInvalidDegree)
	}
	n := TermCount(m.Degree)
	if len(m.CX) != n || len(m.CY) != n {
		return fmt.Errorf("degree %d needs %d coefficients per axis, have %d and %d: %w",
			m.Degree, n, len(m.CX), len(m.CY), ErrInvalidDegree)
	}
	return nil
}

// Affine returns the equivalent affine transform for degree 0 and 1 models.
func (m PolynomialModel) Affine() (geometry.AffineTransform, bool) {
	if m.Degree > 1 || m.Validate() != nil {
		return geometry.AffineTransform{}, false
	}
	coef := func(c []float64, i int) float64 {
		if i < len(c) {
			return c[i]
		}
		return 0
	}
	n := m.norm()
	ax, bx := coef(m.CX, 1)/n, coef(m.CX, 2)/n
	cy, dy := coef(m.CY, 1)/n, coef(m.CY, 2)/n
	return geometry.AffineTransform{
		A: ax, B: bx, TX: m.CX[0] - ax*m.Origin.X - bx*m.Origin.Y,
		C: cy, D: dy, TY: m.CY[0] - cy*m.Origin.X - dy*m.Origin.Y,
	}, true
}

func (m PolynomialModel) norm() float64 {
	if m.Norm == 0 {
		return 1
	}
	return m.Norm
}

func (m PolynomialModel) normalize(p geometry.Point2D) geometry.Point2D {
	return p.Sub(m.Origin).Scale(1 / m.norm())
}

// monomials appends the terms u^i*v^j, i+j <= degree, in graded order.
func monomials(p geometry.Point2D, degree int, dst []float64) []float64 {
	for n := 0; n <= degree; n++ {
		for j := 0; j <= n; j++ {
			dst = append(dst, pow(p.X, n-j)*pow(p.Y, j))
		}
	}
	return dst
}

func pow(v float64, n int) float64 {
	r := 1.0
	for ; n > 0; n-- {
		r *= v
	}
	return r
}
