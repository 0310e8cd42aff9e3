// Package figure is the plot context light curves are drawn onto. A caller
// creates one Figure, passes it to any number of plot calls to overlay
// several targets, then renders it once.
package figure

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

const (
	XLabel = "Time (days)"
	YLabel = "Normalized flux"

	DefaultYMin = 0.5
	DefaultYMax = 1.1

	markerAlpha = 0.2
)

type series struct {
	label  string
	points plotter.XYs
}

type Figure struct {
	plot   *plot.Plot
	series []series
	yMin   float64
	yMax   float64
	width  vg.Length
	height vg.Length
}

// New returns an empty figure with the light curve axis layout applied.
func New() *Figure {
	f := &Figure{
		plot:   plot.New(),
		yMin:   DefaultYMin,
		yMax:   DefaultYMax,
		width:  8 * vg.Inch,
		height: 5 * vg.Inch,
	}
	f.ApplyLayout()
	return f
}

// SetSize sets the rendered size in inches.
func (f *Figure) SetSize(widthIn, heightIn float64) {
	f.width = vg.Length(widthIn) * vg.Inch
	f.height = vg.Length(heightIn) * vg.Inch
}

// SetYRange overrides the fixed flux axis range.
func (f *Figure) SetYRange(lo, hi float64) {
	f.yMin, f.yMax = lo, hi
	f.ApplyLayout()
}

// ApplyLayout (re)applies axis labels, the fixed y range and the legend
// placement. Adding data widens the axes, so it runs after every series.
func (f *Figure) ApplyLayout() {
	f.plot.X.Label.Text = XLabel
	f.plot.Y.Label.Text = YLabel
	f.plot.Y.Min = f.yMin
	f.plot.Y.Max = f.yMax
	f.plot.Legend.Top = true
}

// AddSeries draws x versus y as unconnected, semi-transparent markers
// labeled label. Pairs with a non-finite coordinate are not drawn. It
// returns the number of points drawn.
func (f *Figure) AddSeries(label string, x, y []float64) (int, error) {
	if len(x) != len(y) {
		return 0, fmt.Errorf("series %q: %d x values but %d y values", label, len(x), len(y))
	}

	xys := make(plotter.XYs, 0, len(x))
	for i := range x {
		if !finite(x[i]) || !finite(y[i]) {
			continue
		}
		xys = append(xys, plotter.XY{X: x[i], Y: y[i]})
	}

	s, err := plotter.NewScatter(xys)
	if err != nil {
		return 0, fmt.Errorf("series %q: %w", label, err)
	}
	s.GlyphStyle.Color = withAlpha(plotutil.Color(len(f.series)), markerAlpha)
	s.GlyphStyle.Shape = draw.CircleGlyph{}
	s.GlyphStyle.Radius = vg.Points(1.5)

	f.plot.Add(s)
	f.plot.Legend.Add(label, s)
	f.series = append(f.series, series{label: label, points: xys})
	f.ApplyLayout()

	return len(xys), nil
}

// Series is the number of series drawn so far.
func (f *Figure) Series() int {
	return len(f.series)
}

// Labels returns the series labels in drawing order.
func (f *Figure) Labels() []string {
	out := make([]string, len(f.series))
	for i, s := range f.series {
		out[i] = s.label
	}
	return out
}

// Points returns a copy of the points drawn for series i.
func (f *Figure) Points(i int) plotter.XYs {
	if i < 0 || i >= len(f.series) {
		return nil
	}
	out := make(plotter.XYs, len(f.series[i].points))
	copy(out, f.series[i].points)
	return out
}

// YRange is the flux axis range currently applied.
func (f *Figure) YRange() (float64, float64) {
	return f.plot.Y.Min, f.plot.Y.Max
}

// Save renders the figure to path; the format follows the extension
// (png, svg, pdf, eps, jpg, tif). An existing file is overwritten.
func (f *Figure) Save(path string) error {
	if err := f.plot.Save(f.width, f.height, path); err != nil {
		return fmt.Errorf("save figure %s: %w", path, err)
	}
	return nil
}

// WriteTo renders the figure in format to w.
func (f *Figure) WriteTo(w io.Writer, format string) (int64, error) {
	wt, err := f.plot.WriterTo(f.width, f.height, strings.ToLower(format))
	if err != nil {
		return 0, err
	}
	return wt.WriteTo(w)
}

// FormatOf returns the render format implied by a file name.
func FormatOf(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func withAlpha(c color.Color, a float64) color.Color {
	r, g, b, _ := c.RGBA()
	return color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a*255 + 0.5)}
}
