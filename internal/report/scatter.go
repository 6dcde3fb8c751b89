package report

import (
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/kiteco/backdoor-sweep/internal/errors"
	"github.com/kiteco/backdoor-sweep/internal/mixture"
)

var (
	colorClass1   = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	colorClass0   = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	colorInfected = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// RenderDataset draws a poisoned training set as a PNG scatter plot: clean samples by
// label, infected samples (shifted by the trigger and relabeled 0) as crosses.
func RenderDataset(w io.Writer, title string, data mixture.Dataset, infected []bool) error {
	if len(infected) != len(data) {
		return errors.Errorf("got %d infection flags for %d samples", len(infected), len(data))
	}

	var ones, zeros, poisoned plotter.XYs
	for i, s := range data {
		xy := plotter.XY{X: s.X[0], Y: s.X[1]}
		switch {
		case infected[i]:
			poisoned = append(poisoned, xy)
		case s.Y == 1:
			ones = append(ones, xy)
		default:
			zeros = append(zeros, xy)
		}
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x1"
	p.Y.Label.Text = "x2"
	p.Add(plotter.NewGrid())

	groups := []struct {
		name  string
		xys   plotter.XYs
		color color.Color
		shape draw.GlyphDrawer
	}{
		{"y = 1", ones, colorClass1, draw.CircleGlyph{}},
		{"y = 0", zeros, colorClass0, draw.CircleGlyph{}},
		{"infected", poisoned, colorInfected, draw.CrossGlyph{}},
	}
	for _, g := range groups {
		if len(g.xys) == 0 {
			continue
		}
		s, err := plotter.NewScatter(g.xys)
		if err != nil {
			return err
		}
		s.GlyphStyle.Color = g.color
		s.GlyphStyle.Shape = g.shape
		s.GlyphStyle.Radius = vg.Points(2.5)
		p.Add(s)
		p.Legend.Add(g.name, s)
	}

	wt, err := p.WriterTo(6*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
