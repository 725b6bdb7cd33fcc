package transform

import (
	"math"

	"vector-georef/internal/controlpoint"
)

// Report summarizes how well a model explains its control points.
type Report struct {
	Residuals   []Residual `json:"residuals" yaml:"residuals"`
	RMSE        float64    `json:"rmse" yaml:"rmse"`
	MaxResidual float64    `json:"max_residual" yaml:"max_residual"`
	MaxIndex    int        `json:"max_index" yaml:"max_index"` // -1 for an empty report
}

// Analyze recomputes the forward transform of every source point and
// reports target - prediction. Invalid models are rejected before any
// point is evaluated.
func Analyze(m Model, set *controlpoint.Set) (Report, error) {
	if err := m.Validate(); err != nil {
		return Report{}, err
	}
	residuals := make([]Residual, set.Len())
	for i := range residuals {
		cp := set.At(i)
		d := cp.Target().Sub(m.Apply(cp.Source()))
		residuals[i] = Residual{DX: d.X, DY: d.Y}
	}
	return Summarize(residuals), nil
}

// Summarize computes RMSE and the largest residual of the given vectors.
// The slice is copied.
func Summarize(residuals []Residual) Report {
	r := Report{
		Residuals: append([]Residual(nil), residuals...),
		MaxIndex:  -1,
	}
	if len(residuals) == 0 {
		return r
	}

	var sumSq float64
	for i, res := range residuals {
		sumSq += res.DX*res.DX + res.DY*res.DY
		if mag := res.Magnitude(); r.MaxIndex < 0 || mag > r.MaxResidual {
			r.MaxResidual = mag
			r.MaxIndex = i
		}
	}
	r.RMSE = math.Sqrt(sumSq / float64(len(residuals)))
	return r
}
