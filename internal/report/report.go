// Package report summarises flux grids as statistics and point time series
// in CSV form.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/couchcryptid/lwf-etl/internal/domain"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// StatsHeader is the column order of WriteStatsCSV.
var StatsHeader = []string{
	"mean_m_s", "max_m_s", "min_m_s", "std_m_s",
	"mean_mm_day", "max_mm_day", "min_mm_day", "std_mm_day",
}

// SeriesHeader is the column order of WriteSeriesCSV.
var SeriesHeader = []string{"date", "lwf_m_s", "lwf_mm_day"}

// Summarize computes statistics over every valid cell of g. The standard
// deviation is the population one.
func Summarize(g *domain.GridDataset) domain.FieldStats {
	var vals []float64
	for _, slice := range g.Values {
		for _, row := range slice {
			for _, v := range row {
				if !domain.IsNoData(v) {
					vals = append(vals, v)
				}
			}
		}
	}
	if len(vals) == 0 {
		nan := math.NaN()
		return domain.FieldStats{Mean: nan, Min: nan, Max: nan, Std: nan}
	}
	mean, std := stat.PopMeanStdDev(vals, nil)
	return domain.FieldStats{
		Count: len(vals),
		Mean:  mean,
		Min:   floats.Min(vals),
		Max:   floats.Max(vals),
		Std:   std,
	}
}

// WriteStatsCSV writes one row of rate and daily statistics.
func WriteStatsCSV(w io.Writer, rate, daily domain.FieldStats) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(StatsHeader); err != nil {
		return fmt.Errorf("write stats header: %w", err)
	}
	row := []string{
		formatFloat(rate.Mean), formatFloat(rate.Max), formatFloat(rate.Min), formatFloat(rate.Std),
		formatFloat(daily.Mean), formatFloat(daily.Max), formatFloat(daily.Min), formatFloat(daily.Std),
	}
	if err := cw.Write(row); err != nil {
		return fmt.Errorf("write stats row: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

// WriteSeriesCSV writes the rate and daily flux of the grid cell nearest to p,
// one row per time step.
func WriteSeriesCSV(w io.Writer, rate, daily *domain.GridDataset, p domain.Point) error {
	if len(rate.Time) != len(daily.Time) {
		return fmt.Errorf("%w: rate has %d steps, daily has %d", domain.ErrShapeMismatch, len(rate.Time), len(daily.Time))
	}
	r, d := rate.Nearest(p), daily.Nearest(p)

	cw := csv.NewWriter(w)
	if err := cw.Write(SeriesHeader); err != nil {
		return fmt.Errorf("write series header: %w", err)
	}
	for i, t := range r.Time {
		row := []string{formatDate(t), formatFloat(cell(r, i)), formatFloat(cell(d, i))}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write series row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func cell(g *domain.GridDataset, t int) float64 {
	if len(g.Values[t]) == 0 || len(g.Values[t][0]) == 0 {
		return domain.NoData
	}
	return g.Values[t][0][0]
}

// formatFloat renders NoData as an empty field.
func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatDate(t time.Time) string {
	if t.Equal(domain.Date(t)) {
		return t.UTC().Format(time.DateOnly)
	}
	return t.UTC().Format(time.RFC3339)
}
