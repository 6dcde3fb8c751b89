// Package report summarizes and plots persisted sweep results.
package report

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/gocarina/gocsv"
	"github.com/montanaflynn/stats"

	"github.com/kiteco/backdoor-sweep/internal/errors"
	"github.com/kiteco/backdoor-sweep/internal/resultstore"
)

// ColumnStats summarizes one error-rate column of a cell.
type ColumnStats struct {
	Mean   float64
	StdDev float64
	Median float64
	P5     float64
	P95    float64
}

// CellSummary is one row of the summary table.
type CellSummary struct {
	Length       float64 `csv:"length"`
	AngleDegrees int     `csv:"angle_degrees"`
	Rows         int     `csv:"rows"`

	PoisonedMean   float64 `csv:"r_poi_mean"`
	PoisonedStdDev float64 `csv:"r_poi_sd"`
	PoisonedMedian float64 `csv:"r_poi_median"`
	PoisonedP5     float64 `csv:"r_poi_p5"`
	PoisonedP95    float64 `csv:"r_poi_p95"`

	CleanMean   float64 `csv:"r_cl_mean"`
	CleanStdDev float64 `csv:"r_cl_sd"`
	CleanMedian float64 `csv:"r_cl_median"`
	CleanP5     float64 `csv:"r_cl_p5"`
	CleanP95    float64 `csv:"r_cl_p95"`

	BackdoorMean   float64 `csv:"r_bd_mean"`
	BackdoorStdDev float64 `csv:"r_bd_sd"`
	BackdoorMedian float64 `csv:"r_bd_median"`
	BackdoorP5     float64 `csv:"r_bd_p5"`
	BackdoorP95    float64 `csv:"r_bd_p95"`
}

// Column returns the stats of column j in persisted order (r_poi, r_cl, r_bd).
func (c CellSummary) Column(j int) ColumnStats {
	switch j {
	case 0:
		return ColumnStats{c.PoisonedMean, c.PoisonedStdDev, c.PoisonedMedian, c.PoisonedP5, c.PoisonedP95}
	case 1:
		return ColumnStats{c.CleanMean, c.CleanStdDev, c.CleanMedian, c.CleanP5, c.CleanP95}
	default:
		return ColumnStats{c.BackdoorMean, c.BackdoorStdDev, c.BackdoorMedian, c.BackdoorP5, c.BackdoorP95}
	}
}

func (c *CellSummary) setColumn(j int, s ColumnStats) {
	switch j {
	case 0:
		c.PoisonedMean, c.PoisonedStdDev, c.PoisonedMedian, c.PoisonedP5, c.PoisonedP95 = s.Mean, s.StdDev, s.Median, s.P5, s.P95
	case 1:
		c.CleanMean, c.CleanStdDev, c.CleanMedian, c.CleanP5, c.CleanP95 = s.Mean, s.StdDev, s.Median, s.P5, s.P95
	default:
		c.BackdoorMean, c.BackdoorStdDev, c.BackdoorMedian, c.BackdoorP5, c.BackdoorP95 = s.Mean, s.StdDev, s.Median, s.P5, s.P95
	}
}

// Describe computes the column stats of xs; an empty column gives all zeros.
func Describe(xs []float64) (ColumnStats, error) {
	if len(xs) == 0 {
		return ColumnStats{}, nil
	}
	data := stats.Float64Data(xs)

	var (
		s   ColumnStats
		err error
	)
	if s.Mean, err = stats.Mean(data); err != nil {
		return ColumnStats{}, err
	}
	if s.StdDev, err = stats.StandardDeviation(data); err != nil {
		return ColumnStats{}, err
	}
	if s.Median, err = stats.Median(data); err != nil {
		return ColumnStats{}, err
	}
	if s.P5, err = stats.PercentileNearestRank(data, 5); err != nil {
		return ColumnStats{}, err
	}
	if s.P95, err = stats.PercentileNearestRank(data, 95); err != nil {
		return ColumnStats{}, err
	}
	return s, nil
}

// SummarizeRecord summarizes the record of one cell.
func SummarizeRecord(k resultstore.Key, rec resultstore.Record) (CellSummary, error) {
	sum := CellSummary{Length: k.Length, AngleDegrees: k.AngleDegrees, Rows: len(rec.Err)}
	for j := range resultstore.Columns {
		s, err := Describe(rec.Column(j))
		if err != nil {
			return CellSummary{}, errors.Wrapf(err, "%s column %s", k.Name(), resultstore.Columns[j])
		}
		sum.setColumn(j, s)
	}
	return sum, nil
}

// Summarize loads every record in store, ordered by length then angle.
func Summarize(ctx context.Context, store resultstore.Store) ([]CellSummary, error) {
	keys, err := store.List(ctx)
	if err != nil {
		return nil, err
	}

	sums := make([]CellSummary, 0, len(keys))
	for _, k := range keys {
		rec, err := store.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		sum, err := SummarizeRecord(k, rec)
		if err != nil {
			return nil, err
		}
		sums = append(sums, sum)
	}
	return sums, nil
}

// WriteCSV writes the summaries with a header row.
func WriteCSV(w io.Writer, sums []CellSummary) error {
	return gocsv.Marshal(&sums, w)
}

// WriteTable prints mean and standard deviation of each column.
func WriteTable(w io.Writer, sums []CellSummary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "length\tangle\trows\tr_poi\tr_cl\tr_bd")
	for _, s := range sums {
		fmt.Fprintf(tw, "%v\t%d\t%d", s.Length, s.AngleDegrees, s.Rows)
		for j := range resultstore.Columns {
			c := s.Column(j)
			fmt.Fprintf(tw, "\t%.3f ± %.3f", c.Mean, c.StdDev)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
