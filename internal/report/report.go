// Package report renders fit results for people: an HTML transformation
// report and a YAML summary.
package report

import (
	"html/template"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"vector-georef/internal/controlpoint"
	"vector-georef/internal/transform"
)

// Summary is the presentation model of one fit.
type Summary struct {
	RunID     string    `yaml:"run_id"`
	Generated time.Time `yaml:"generated"`
	Model     string    `yaml:"model"`

	// Shift between the control point centroids of both frames.
	CentroidDX float64 `yaml:"centroid_dx"`
	CentroidDY float64 `yaml:"centroid_dy"`

	Helmert    *HelmertParams    `yaml:"helmert,omitempty"`
	Polynomial *PolynomialParams `yaml:"polynomial,omitempty"`

	RMSE        float64 `yaml:"rmse"`
	MaxResidual float64 `yaml:"max_residual"`
	MaxIndex    int     `yaml:"max_index"`

	ControlPoints []Row `yaml:"control_points"`
}

type HelmertParams struct {
	Scale           float64 `yaml:"scale"`
	RotationDegrees float64 `yaml:"rotation_degrees"`
	TX              float64 `yaml:"tx"`
	TY              float64 `yaml:"ty"`
}

type PolynomialParams struct {
	Degree int       `yaml:"degree"`
	CX     []float64 `yaml:"cx"`
	CY     []float64 `yaml:"cy"`
}

// Row is one control point with its residual.
type Row struct {
	SourceX   float64 `yaml:"source_x"`
	SourceY   float64 `yaml:"source_y"`
	TargetX   float64 `yaml:"target_x"`
	TargetY   float64 `yaml:"target_y"`
	DX        float64 `yaml:"dx"`
	DY        float64 `yaml:"dy"`
	Magnitude float64 `yaml:"magnitude"`
}

// Build assembles a Summary. rep must come from the same model and set.
func Build(runID string, fit *transform.Fit, set *controlpoint.Set, rep transform.Report) Summary {
	s := Summary{
		RunID:       runID,
		Generated:   time.Now().UTC(),
		Model:       string(fit.Model.Kind()),
		CentroidDX:  fit.TargetCentroid.X - fit.SourceCentroid.X,
		CentroidDY:  fit.TargetCentroid.Y - fit.SourceCentroid.Y,
		RMSE:        rep.RMSE,
		MaxResidual: rep.MaxResidual,
		MaxIndex:    rep.MaxIndex,
	}

	switch m := fit.Model.(type) {
	case transform.HelmertModel:
		s.Helmert = &HelmertParams{
			Scale:           m.Scale,
			RotationDegrees: m.RotationDegrees(),
			TX:              m.TX,
			TY:              m.TY,
		}
	case transform.PolynomialModel:
		s.Polynomial = &PolynomialParams{Degree: m.Degree, CX: m.CX, CY: m.CY}
	}

	s.ControlPoints = make([]Row, set.Len())
	for i := range s.ControlPoints {
		cp := set.At(i)
		var res transform.Residual
		if i < len(rep.Residuals) {
			res = rep.Residuals[i]
		}
		s.ControlPoints[i] = Row{
			SourceX:   cp.Source().X,
			SourceY:   cp.Source().Y,
			TargetX:   cp.Target().X,
			TargetY:   cp.Target().Y,
			DX:        res.DX,
			DY:        res.DY,
			Magnitude: res.Magnitude(),
		}
	}
	return s
}

// WriteYAML writes the summary as YAML.
func WriteYAML(w io.Writer, s Summary) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return err
	}
	return enc.Close()
}

// WriteHTML writes the transformation report page.
func WriteHTML(w io.Writer, s Summary) error {
	return page.Execute(w, s)
}

var page = template.Must(template.New("report").Funcs(template.FuncMap{
	"f4": func(v float64) string { return formatFloat(v, 4) },
	"f6": func(v float64) string { return formatFloat(v, 6) },
	"inc": func(i int) int { return i + 1 },
}).Parse(reportHTML))
