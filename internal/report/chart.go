package report

import (
	"io"
	"sort"
	"strconv"

	chart "github.com/wcharczuk/go-chart"

	"github.com/kiteco/backdoor-sweep/internal/errors"
)

// RenderErrorRates draws mean error rate against trigger angle as a PNG, one solid
// backdoor-error series and one dashed poisoned-clean-error series per length.
func RenderErrorRates(w io.Writer, sums []CellSummary) error {
	byLength := make(map[float64][]CellSummary)
	var lengths []float64
	for _, s := range sums {
		if _, ok := byLength[s.Length]; !ok {
			lengths = append(lengths, s.Length)
		}
		byLength[s.Length] = append(byLength[s.Length], s)
	}
	if len(lengths) == 0 {
		return errors.New("no results to plot")
	}
	sort.Float64s(lengths)

	var series []chart.Series
	for i, length := range lengths {
		cells := byLength[length]
		sort.Slice(cells, func(a, b int) bool { return cells[a].AngleDegrees < cells[b].AngleDegrees })
		if len(cells) < 2 {
			return errors.Errorf("length %v has a single angle, need at least two to plot", length)
		}

		var xs, bd, poi []float64
		for _, c := range cells {
			xs = append(xs, float64(c.AngleDegrees))
			bd = append(bd, c.BackdoorMean)
			poi = append(poi, c.PoisonedMean)
		}
		name := "length " + strconv.FormatFloat(length, 'f', -1, 64)

		series = append(series,
			chart.ContinuousSeries{
				Name:    name + " r_bd",
				XValues: xs,
				YValues: bd,
				Style: chart.Style{
					Show:        true,
					StrokeColor: chart.GetAlternateColor(i),
				},
			},
			chart.ContinuousSeries{
				Name:    name + " r_poi",
				XValues: xs,
				YValues: poi,
				Style: chart.Style{
					Show:            true,
					StrokeColor:     chart.GetAlternateColor(i),
					StrokeDashArray: []float64{5, 5},
				},
			})
	}

	graph := chart.Chart{
		Title:      "Backdoor error rates",
		TitleStyle: chart.StyleShow(),
		XAxis: chart.XAxis{
			Name:      "Trigger angle (degrees)",
			NameStyle: chart.StyleShow(),
			Style:     chart.StyleShow(),
		},
		YAxis: chart.YAxis{
			Name:      "Mean error rate",
			NameStyle: chart.StyleShow(),
			Style:     chart.StyleShow(),
			Range: &chart.ContinuousRange{
				Min: 0,
				Max: 1,
			},
		},
		Series: series,
	}

	graph.Elements = []chart.Renderable{
		chart.Legend(&graph),
	}

	return graph.Render(chart.PNG, w)
}
