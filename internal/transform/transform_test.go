package transform

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vector-georef/internal/controlpoint"
	"vector-georef/pkg/geometry"
)

const tol = 1e-9

func pt(x, y float64) geometry.Point2D { return geometry.NewPoint2D(x, y) }

func mustSet(t *testing.T, src, dst []geometry.Point2D) *controlpoint.Set {
	t.Helper()
	set, err := controlpoint.FromPairs(src, dst)
	require.NoError(t, err)
	return set
}

func mapped(m Model, src []geometry.Point2D) []geometry.Point2D {
	out := make([]geometry.Point2D, len(src))
	for i, p := range src {
		out[i] = m.Apply(p)
	}
	return out
}

func randomPoints(r *rand.Rand, n int, origin geometry.Point2D, extent float64) []geometry.Point2D {
	out := make([]geometry.Point2D, n)
	for i := range out {
		out[i] = pt(origin.X+r.Float64()*extent, origin.Y+r.Float64()*extent)
	}
	return out
}

func mustAnalyze(t *testing.T, m Model, set *controlpoint.Set) Report {
	t.Helper()
	rep, err := Analyze(m, set)
	require.NoError(t, err)
	return rep
}

func assertPoint(t *testing.T, want, got geometry.Point2D, delta float64) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, delta)
	assert.InDelta(t, want.Y, got.Y, delta)
}

func TestHelmertTranslationScenario(t *testing.T) {
	set := mustSet(t,
		[]geometry.Point2D{pt(0, 0), pt(1, 0), pt(0, 1)},
		[]geometry.Point2D{pt(5, 5), pt(6, 5), pt(5, 6)},
	)

	fit, err := FitHelmert(set)
	require.NoError(t, err)
	m := fit.Model.(HelmertModel)
	assert.InDelta(t, 1, m.Scale, tol)
	assert.InDelta(t, 0, m.Rotation, tol)
	assert.InDelta(t, 5, m.TX, tol)
	assert.InDelta(t, 5, m.TY, tol)

	report := mustAnalyze(t, m, set)
	assert.InDelta(t, 0, report.RMSE, tol)
	require.Len(t, fit.Residuals, 3)
	for _, r := range fit.Residuals {
		assert.InDelta(t, 0, r.Magnitude(), tol)
	}
	assertPoint(t, pt(1.0/3, 1.0/3), fit.SourceCentroid, tol)
}

func TestHelmertTwoPointsIsExact(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		src := randomPoints(r, 2, pt(-50, -50), 100)
		dst := randomPoints(r, 2, pt(1000, 2000), 300)
		set := mustSet(t, src, dst)

		fit, err := FitHelmert(set)
		require.NoError(t, err)
		for j := range src {
			assertPoint(t, dst[j], fit.Model.Apply(src[j]), 1e-8)
		}
		assert.InDelta(t, 0, mustAnalyze(t, fit.Model, set).RMSE, 1e-8)
	}
}

func TestHelmertRecoversKnownModel(t *testing.T) {
	known := HelmertModel{Scale: 1.0003, Rotation: 0.0125, TX: 2600000.5, TY: 1200000.25}
	r := rand.New(rand.NewSource(1))
	src := randomPoints(r, 12, pt(600000, 200000), 5000)
	set := mustSet(t, src, mapped(known, src))

	fit, err := FitHelmert(set)
	require.NoError(t, err)
	m := fit.Model.(HelmertModel)
	assert.InDelta(t, known.Scale, m.Scale, 1e-9)
	assert.InDelta(t, known.Rotation, m.Rotation, 1e-9)
	assert.InDelta(t, known.TX, m.TX, 1e-4)
	assert.InDelta(t, known.TY, m.TY, 1e-4)
	assert.InDelta(t, 0, mustAnalyze(t, m, set).RMSE, 1e-6)
}

func TestHelmertNoisyResidualsMatchAnalyzer(t *testing.T) {
	known := HelmertModel{Scale: 2, Rotation: -0.4, TX: 10, TY: -3}
	r := rand.New(rand.NewSource(3))
	src := randomPoints(r, 8, pt(0, 0), 100)
	dst := mapped(known, src)
	for i := range dst {
		dst[i] = dst[i].Add(pt(r.NormFloat64()*0.1, r.NormFloat64()*0.1))
	}
	set := mustSet(t, src, dst)

	fit, err := FitHelmert(set)
	require.NoError(t, err)
	report := mustAnalyze(t, fit.Model, set)
	require.Len(t, report.Residuals, len(fit.Residuals))
	for i := range fit.Residuals {
		assert.InDelta(t, report.Residuals[i].DX, fit.Residuals[i].DX, 1e-9)
		assert.InDelta(t, report.Residuals[i].DY, fit.Residuals[i].DY, 1e-9)
	}
	assert.Greater(t, report.RMSE, 0.0)
}

func TestHelmertSinglePointInsufficient(t *testing.T) {
	set := mustSet(t, []geometry.Point2D{pt(0, 0)}, []geometry.Point2D{pt(1, 1)})
	_, err := FitHelmert(set)
	assert.ErrorIs(t, err, ErrInsufficientControlPoints)
}

func TestHelmertCoincidentTargets(t *testing.T) {
	set := mustSet(t,
		[]geometry.Point2D{pt(0, 0), pt(1, 0), pt(0, 1)},
		[]geometry.Point2D{pt(5, 5), pt(5, 5), pt(5, 5)},
	)
	_, err := FitHelmert(set)
	assert.ErrorIs(t, err, ErrDegenerateGeometry)
}

func TestHelmertInverseRoundTrip(t *testing.T) {
	m := HelmertModel{Scale: 0.75, Rotation: 2.1, TX: -40, TY: 12}
	inv, err := m.Inverse()
	require.NoError(t, err)
	for i := 0; i < 16; i++ {
		a := float64(i) * math.Pi / 8
		p := pt(3+50*math.Cos(a), 4+50*math.Sin(a))
		assertPoint(t, p, inv.Apply(m.Apply(p)), 1e-9)
	}
	assert.InDelta(t, 1/0.75, inv.Scale, tol)
	assert.InDelta(t, -2.1, inv.Rotation, tol)

	tiny := HelmertModel{Scale: 9e-6, Rotation: 0.01, TX: 7.4, TY: 46.5}
	tinyInv, err := tiny.Inverse()
	require.NoError(t, err)
	p := pt(2600000, 1200000)
	assertPoint(t, p, tinyInv.Apply(tiny.Apply(p)), 1e-4)

	_, err = HelmertModel{Scale: 0}.Inverse()
	assert.ErrorIs(t, err, ErrDegenerateGeometry)
}

func TestAnalyzeRejectsInvalidModel(t *testing.T) {
	set := mustSet(t,
		[]geometry.Point2D{pt(0, 0), pt(1, 0), pt(0, 1)},
		[]geometry.Point2D{pt(0, 0), pt(1, 0), pt(0, 1)},
	)
	short := PolynomialModel{Degree: 2, CX: []float64{0, 1, 0}, CY: []float64{0, 0, 1}, Norm: 1}
	_, err := Analyze(short, set)
	assert.ErrorIs(t, err, ErrInvalidDegree)

	_, err = Analyze(HelmertModel{}, set)
	assert.ErrorIs(t, err, ErrDegenerateGeometry)
}

func TestPolynomialDegreeOneScenario(t *testing.T) {
	set := mustSet(t,
		[]geometry.Point2D{pt(0, 0), pt(1, 0), pt(0, 1)},
		[]geometry.Point2D{pt(5, 5), pt(6, 5), pt(5, 6)},
	)

	fit, err := FitPolynomial(set, 1)
	require.NoError(t, err)
	aff, ok := fit.Model.(PolynomialModel).Affine()
	require.True(t, ok)
	assert.InDelta(t, 1, aff.A, tol)
	assert.InDelta(t, 0, aff.B, tol)
	assert.InDelta(t, 5, aff.TX, tol)
	assert.InDelta(t, 0, aff.C, tol)
	assert.InDelta(t, 1, aff.D, tol)
	assert.InDelta(t, 5, aff.TY, tol)
	assert.InDelta(t, 0, mustAnalyze(t, fit.Model, set).RMSE, tol)

	helmert, err := FitHelmert(set)
	require.NoError(t, err)
	for _, p := range []geometry.Point2D{pt(10, -3), pt(-7, 2)} {
		assertPoint(t, helmert.Model.Apply(p), fit.Model.Apply(p), 1e-9)
	}
}

func TestPolynomialRecoversAffine(t *testing.T) {
	affine := geometry.AffineTransform{A: 1.2, B: 0.3, TX: 500, C: -0.1, D: 0.9, TY: -250}
	r := rand.New(rand.NewSource(11))
	src := randomPoints(r, 9, pt(2600000, 1200000), 2000)
	dst := make([]geometry.Point2D, len(src))
	for i, p := range src {
		dst[i] = affine.Apply(p)
	}
	set := mustSet(t, src, dst)

	fit, err := FitPolynomial(set, 1)
	require.NoError(t, err)
	got, ok := fit.Model.(PolynomialModel).Affine()
	require.True(t, ok)
	assert.InDelta(t, affine.A, got.A, 1e-9)
	assert.InDelta(t, affine.B, got.B, 1e-9)
	assert.InDelta(t, affine.C, got.C, 1e-9)
	assert.InDelta(t, affine.D, got.D, 1e-9)
	assert.InDelta(t, affine.TX, got.TX, 1e-2)
	assert.InDelta(t, affine.TY, got.TY, 1e-2)
	assert.InDelta(t, 0, mustAnalyze(t, fit.Model, set).RMSE, 1e-6)
}

func TestPolynomialRecoversQuadratic(t *testing.T) {
	f := func(p geometry.Point2D) geometry.Point2D {
		return pt(
			3+2*p.X-p.Y+0.01*p.X*p.X+0.02*p.X*p.Y-0.005*p.Y*p.Y,
			-1+0.5*p.X+1.5*p.Y-0.01*p.X*p.Y+0.003*p.Y*p.Y,
		)
	}
	r := rand.New(rand.NewSource(5))
	src := randomPoints(r, 15, pt(-20, -20), 40)
	dst := make([]geometry.Point2D, len(src))
	for i, p := range src {
		dst[i] = f(p)
	}
	set := mustSet(t, src, dst)

	fit, err := FitPolynomial(set, 2)
	require.NoError(t, err)
	m := fit.Model.(PolynomialModel)
	require.NoError(t, m.Validate())
	assert.Len(t, m.CX, 6)
	assert.Equal(t, 12, m.NumParams())
	assert.InDelta(t, 0, mustAnalyze(t, m, set).RMSE, 1e-8)

	for _, p := range []geometry.Point2D{pt(0, 0), pt(7, -3), pt(-15, 12)} {
		assertPoint(t, f(p), m.Apply(p), 1e-8)
	}
}

func TestPolynomialInsufficient(t *testing.T) {
	set := mustSet(t,
		[]geometry.Point2D{pt(0, 0), pt(1, 0), pt(0, 1), pt(1, 1), pt(2, 2)},
		[]geometry.Point2D{pt(0, 0), pt(1, 0), pt(0, 1), pt(1, 1), pt(2, 2)},
	)
	_, err := FitPolynomial(set, 2)
	assert.ErrorIs(t, err, ErrInsufficientControlPoints)
}

func TestPolynomialCollinearIsSingular(t *testing.T) {
	set := mustSet(t,
		[]geometry.Point2D{pt(0, 0), pt(1, 1), pt(2, 2), pt(3, 3)},
		[]geometry.Point2D{pt(0, 1), pt(1, 2), pt(2, 3), pt(3, 4)},
	)
	_, err := FitPolynomial(set, 1)
	assert.ErrorIs(t, err, ErrSingularSystem)
}

func TestPolynomialInvalidDegree(t *testing.T) {
	set := mustSet(t, []geometry.Point2D{pt(0, 0)}, []geometry.Point2D{pt(0, 0)})
	_, err := FitPolynomial(set, -1)
	assert.ErrorIs(t, err, ErrInvalidDegree)
	_, err = FitPolynomial(set, MaxDegree+1)
	assert.ErrorIs(t, err, ErrInvalidDegree)
}

func TestPolynomialDegreeZeroIsMean(t *testing.T) {
	set := mustSet(t,
		[]geometry.Point2D{pt(0, 0), pt(1, 0)},
		[]geometry.Point2D{pt(2, 4), pt(4, 8)},
	)
	fit, err := FitPolynomial(set, 0)
	require.NoError(t, err)
	assertPoint(t, pt(3, 6), fit.Model.Apply(pt(100, 100)), tol)
}

func TestEstimateDispatch(t *testing.T) {
	set := mustSet(t,
		[]geometry.Point2D{pt(0, 0), pt(1, 0), pt(0, 1)},
		[]geometry.Point2D{pt(5, 5), pt(6, 5), pt(5, 6)},
	)

	fit, err := Estimate(set, Helmert())
	require.NoError(t, err)
	assert.Equal(t, KindHelmert, fit.Model.Kind())

	fit, err = Estimate(set, Polynomial(1))
	require.NoError(t, err)
	assert.Equal(t, KindPolynomial, fit.Model.Kind())

	_, err = Estimate(set, Method{Kind: "spline"})
	assert.ErrorIs(t, err, ErrUnknownModel)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Helmert ")
	require.NoError(t, err)
	assert.Equal(t, KindHelmert, k)

	k, err = ParseKind("poly")
	require.NoError(t, err)
	assert.Equal(t, KindPolynomial, k)

	_, err = ParseKind("tps")
	assert.ErrorIs(t, err, ErrUnknownModel)
}

func TestMethodMinPointsAndAutoDegree(t *testing.T) {
	assert.Equal(t, 2, Helmert().MinPoints())
	assert.Equal(t, 3, Polynomial(1).MinPoints())
	assert.Equal(t, 6, Polynomial(2).MinPoints())
	assert.Equal(t, 10, Polynomial(3).MinPoints())

	assert.Equal(t, 1, AutoDegree(4))
	assert.Equal(t, 2, AutoDegree(6))
	assert.Equal(t, 2, AutoDegree(9))
	assert.Equal(t, 3, AutoDegree(25))
	assert.Equal(t, "polynomial(2)", Polynomial(2).String())
}

func TestSummarizeZeroAndMonotone(t *testing.T) {
	zero := Summarize([]Residual{{}, {}, {}})
	assert.Equal(t, 0.0, zero.RMSE)
	assert.Equal(t, 0.0, zero.MaxResidual)

	base := []Residual{{DX: 0.1, DY: -0.2}, {DX: 0.3, DY: 0}, {DX: 0, DY: 0.05}}
	prev := Summarize(base).RMSE
	assert.Greater(t, prev, 0.0)
	for _, mag := range []float64{0.5, 1, 2, 10} {
		grown := append([]Residual(nil), base...)
		grown[1] = Residual{DX: mag, DY: 0}
		rmse := Summarize(grown).RMSE
		assert.Greater(t, rmse, prev)
		prev = rmse
	}

	report := Summarize([]Residual{{DX: 3, DY: 4}, {DX: 1, DY: 0}})
	assert.Equal(t, 5.0, report.MaxResidual)
	assert.Equal(t, 0, report.MaxIndex)
	assert.InDelta(t, math.Sqrt(13), report.RMSE, tol)
}

func TestSummarizeEmpty(t *testing.T) {
	report := Summarize(nil)
	assert.Equal(t, -1, report.MaxIndex)
	assert.Equal(t, 0.0, report.RMSE)
}

func TestHelmertValidate(t *testing.T) {
	assert.ErrorIs(t, HelmertModel{Scale: 0}.Validate(), ErrDegenerateGeometry)
	assert.ErrorIs(t, HelmertModel{Scale: math.NaN()}.Validate(), ErrDegenerateGeometry)
	assert.NoError(t, HelmertModel{Scale: 1}.Validate())
}
