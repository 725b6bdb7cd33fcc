package report

import "strconv"

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

const reportHTML = `<html><head>
<meta http-equiv="Content-Type" content="text/html; charset=utf-8" />
<title>Transformation report</title>
</head><body>
<h1>Transformation report</h1>
<p>Run {{.RunID}}, model {{.Model}}, generated {{.Generated.Format "2006-01-02 15:04:05 MST"}}</p>

<h2>Translation</h2>
<table border="1" width="700px">
<tr><th>dX</th><th>dY</th></tr>
<tr><td>{{f4 .CentroidDX}}</td><td>{{f4 .CentroidDY}}</td></tr>
</table>
{{with .Helmert}}
<h2>Scale and rotation</h2>
<table border="1" width="700px">
<tr><th>Scale</th><th>Rotation (degrees, counter-clockwise)</th><th>TX</th><th>TY</th></tr>
<tr><td>{{f6 .Scale}}</td><td>{{f6 .RotationDegrees}}</td><td>{{f4 .TX}}</td><td>{{f4 .TY}}</td></tr>
</table>
{{end}}{{with .Polynomial}}
<h2>Polynomial coefficients (degree {{.Degree}})</h2>
<table border="1" width="700px">
<tr><th>Term</th><th>X</th><th>Y</th></tr>
{{$cy := .CY}}{{range $i, $c := .CX}}<tr><td>{{$i}}</td><td>{{f6 $c}}</td><td>{{f6 (index $cy $i)}}</td></tr>
{{end}}</table>
{{end}}
<h2>Residuals</h2>
<p>RMSE {{f4 .RMSE}}, largest residual {{f4 .MaxResidual}}{{if ge .MaxIndex 0}} at point {{inc .MaxIndex}}{{end}}</p>
<table border="1" width="700px">
<tr><th>#</th><th>Start X</th><th>Start Y</th><th>Dest X</th><th>Dest Y</th><th>Residuals X</th><th>Residuals Y</th></tr>
{{range $i, $r := .ControlPoints}}<tr><td>{{inc $i}}</td><td>{{f4 $r.SourceX}}</td><td>{{f4 $r.SourceY}}</td><td>{{f4 $r.TargetX}}</td><td>{{f4 $r.TargetY}}</td><td>{{f4 $r.DX}}</td><td>{{f4 $r.DY}}</td></tr>
{{end}}</table>
</body></html>
`
