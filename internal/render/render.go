// Package render draws a raster preview of a georeferencing run: the
// transformed layer, the control point targets and exaggerated residuals.
package render

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"

	"github.com/paulmach/orb"
	"golang.org/x/image/vector"

	"vector-georef/internal/controlpoint"
	"vector-georef/internal/transform"
	"vector-georef/pkg/colorutil"
	"vector-georef/pkg/geometry"
)

// Options configures the preview image.
type Options struct {
	Width, Height int
	Margin        int     // pixels kept free around the content
	LineWidth     float64 // stroke width in pixels
	PointSize     float64 // marker edge length in pixels
	// ResidualScale is the fraction of the view the largest residual
	// vector is stretched to. Zero draws residuals at true scale.
	ResidualScale float64
}

// DefaultOptions returns default rendering options.
func DefaultOptions() Options {
	return Options{
		Width:         1024,
		Height:        768,
		Margin:        24,
		LineWidth:     1.5,
		PointSize:     6,
		ResidualScale: 0.08,
	}
}

// Scene is what gets drawn, all in the target frame.
type Scene struct {
	Geometries []orb.Geometry
	Set        *controlpoint.Set
	Report     transform.Report
}

// Render produces an RGBA image of the scene.
func Render(scene Scene, opts Options) (*image.RGBA, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, errors.New("render: image size must be positive")
	}

	img := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(colorutil.White), image.Point{}, draw.Src)

	var extent []geometry.Point2D
	for _, g := range scene.Geometries {
		if g == nil {
			continue
		}
		b := g.Bound()
		if b.IsEmpty() {
			continue
		}
		extent = append(extent, geometry.FromOrb(b.Min), geometry.FromOrb(b.Max))
	}
	var targets []geometry.Point2D
	if scene.Set != nil {
		targets = scene.Set.Targets()
		extent = append(extent, targets...)
	}
	if len(extent) == 0 {
		return img, nil
	}
	vp := newViewport(geometry.BoundingBox(extent), opts)

	fill := newPen(opts)
	stroke := newPen(opts)
	for _, g := range scene.Geometries {
		drawGeometry(g, vp, fill, stroke, opts)
	}
	fill.flush(img, colorutil.WithAlpha(colorutil.Cyan, 64))
	stroke.flush(img, colorutil.Blue)

	// Residual vectors point from the predicted position to the target.
	maxRes := scene.Report.MaxResidual
	exaggerate := 1.0
	if opts.ResidualScale > 0 && maxRes > 0 {
		exaggerate = opts.ResidualScale * math.Max(vp.world.Width, vp.world.Height) / maxRes
	}
	for i, t := range targets {
		if i >= len(scene.Report.Residuals) {
			break
		}
		r := scene.Report.Residuals[i]
		ratio := 0.0
		if maxRes > 0 {
			ratio = r.Magnitude() / maxRes
		}
		arrow := newPen(opts)
		from := vp.toPixel(t.Sub(geometry.Point2D{X: r.DX, Y: r.DY}.Scale(exaggerate)))
		arrow.segment(from, vp.toPixel(t), opts.LineWidth*1.5)
		arrow.flush(img, colorutil.Heat(ratio))
	}

	markers := newPen(opts)
	for _, t := range targets {
		markers.square(vp.toPixel(t), opts.PointSize)
	}
	markers.flush(img, colorutil.Black)

	return img, nil
}

// WritePNG encodes img to path.
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func drawGeometry(g orb.Geometry, vp viewport, fill, stroke *pen, opts Options) {
	switch v := g.(type) {
	case orb.Point:
		stroke.square(vp.toPixel(geometry.FromOrb(v)), opts.PointSize)
	case orb.MultiPoint:
		for _, p := range v {
			stroke.square(vp.toPixel(geometry.FromOrb(p)), opts.PointSize)
		}
	case orb.LineString:
		stroke.polyline(vp.pixels(v), opts.LineWidth)
	case orb.MultiLineString:
		for _, ls := range v {
			stroke.polyline(vp.pixels(ls), opts.LineWidth)
		}
	case orb.Ring:
		drawPolygon(orb.Polygon{v}, vp, fill, stroke, opts)
	case orb.Polygon:
		drawPolygon(v, vp, fill, stroke, opts)
	case orb.MultiPolygon:
		for _, p := range v {
			drawPolygon(p, vp, fill, stroke, opts)
		}
	case orb.Collection:
		for _, m := range v {
			drawGeometry(m, vp, fill, stroke, opts)
		}
	}
}

func drawPolygon(p orb.Polygon, vp viewport, fill, stroke *pen, opts Options) {
	for _, r := range p {
		if len(r) == 0 {
			continue
		}
		px := vp.pixels(r)
		fill.area(px)
		stroke.polyline(append(px, px[0]), opts.LineWidth)
	}
}

// viewport maps world coordinates to pixels with north up.
type viewport struct {
	world geometry.Rect
	scale float64
	offX  float64
	offY  float64
}

func newViewport(world geometry.Rect, opts Options) viewport {
	innerW := float64(opts.Width - 2*opts.Margin)
	innerH := float64(opts.Height - 2*opts.Margin)
	scale := 1.0
	switch {
	case world.Width > 0 && world.Height > 0:
		scale = math.Min(innerW/world.Width, innerH/world.Height)
	case world.Width > 0:
		scale = innerW / world.Width
	case world.Height > 0:
		scale = innerH / world.Height
	}
	c := world.Center()
	return viewport{
		world: world,
		scale: scale,
		offX:  float64(opts.Width)/2 - c.X*scale,
		offY:  float64(opts.Height)/2 + c.Y*scale,
	}
}

func (v viewport) toPixel(p geometry.Point2D) geometry.Point2D {
	return geometry.Point2D{X: p.X*v.scale + v.offX, Y: v.offY - p.Y*v.scale}
}

func (v viewport) pixels(pts []orb.Point) []geometry.Point2D {
	out := make([]geometry.Point2D, len(pts))
	for i, p := range pts {
		out[i] = v.toPixel(geometry.FromOrb(p))
	}
	return out
}

// pen accumulates paths of one color in a rasterizer.
type pen struct {
	z     *vector.Rasterizer
	empty bool
}

func newPen(opts Options) *pen {
	return &pen{z: vector.NewRasterizer(opts.Width, opts.Height), empty: true}
}

func (p *pen) flush(dst draw.Image, c color.Color) {
	if p.empty {
		return
	}
	p.z.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{})
}

func (p *pen) area(px []geometry.Point2D) {
	if len(px) < 3 {
		return
	}
	p.z.MoveTo(float32(px[0].X), float32(px[0].Y))
	for _, q := range px[1:] {
		p.z.LineTo(float32(q.X), float32(q.Y))
	}
	p.z.ClosePath()
	p.empty = false
}

func (p *pen) polyline(px []geometry.Point2D, width float64) {
	for i := 1; i < len(px); i++ {
		p.segment(px[i-1], px[i], width)
	}
}

// segment strokes a line as a quad of the given width.
func (p *pen) segment(a, b geometry.Point2D, width float64) {
	d := b.Sub(a)
	length := math.Hypot(d.X, d.Y)
	if length == 0 {
		return
	}
	n := geometry.Point2D{X: -d.Y / length, Y: d.X / length}.Scale(width / 2)
	p.area([]geometry.Point2D{a.Add(n), b.Add(n), b.Sub(n), a.Sub(n)})
}

func (p *pen) square(c geometry.Point2D, size float64) {
	h := size / 2
	p.area([]geometry.Point2D{
		{X: c.X - h, Y: c.Y - h},
		{X: c.X + h, Y: c.Y - h},
		{X: c.X + h, Y: c.Y + h},
		{X: c.X - h, Y: c.Y + h},
	})
}
