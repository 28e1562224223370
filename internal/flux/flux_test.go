package flux_test

import (
	"testing"
	"time"

	"github.com/couchcryptid/lwf-etl/internal/domain"
	"github.com/couchcryptid/lwf-etl/internal/flux"
	"github.com/couchcryptid/lwf-etl/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	d0    = time.Date(2025, time.April, 10, 0, 0, 0, 0, time.UTC)
	d1    = d0.AddDate(0, 0, 1)
	d2    = d0.AddDate(0, 0, 2)
	lat   = []float64{45, 45.5, 46}
	lon   = []float64{-75, -74.5}
	cells = len(lat) * len(lon)
)

func uniform(name string, times []time.Time, v ...float64) *domain.GridDataset {
	g := domain.NewGridDataset(name, times, lat, lon)
	for t := range g.Values {
		for y := range g.Values[t] {
			for x := range g.Values[t][y] {
				g.Values[t][y][x] = v[t]
			}
		}
	}
	return g
}

func compute(t *testing.T, swe, precip *domain.GridDataset) (*domain.GridDataset, *domain.GridDataset, *observability.Metrics) {
	t.Helper()
	m := observability.NewMetricsForTesting()
	rate, daily, err := flux.NewCalculator(m).Compute(swe, precip)
	require.NoError(t, err)
	return rate, daily, m
}

func eachCell(g *domain.GridDataset, fn func(t, y, x int, v float64)) {
	for t := range g.Values {
		for y := range g.Values[t] {
			for x, v := range g.Values[t][y] {
				fn(t, y, x, v)
			}
		}
	}
}

func TestCompute_Melt(t *testing.T) {
	swe := uniform("swe", []time.Time{d0, d1}, 10, 8)
	precip := uniform("precip", []time.Time{d0, d1}, 0, 1)

	rate, daily, m := compute(t, swe, precip)

	assert.Equal(t, []time.Time{d1}, rate.Time)
	assert.Equal(t, []time.Time{d1}, daily.Time)
	eachCell(daily, func(_, _, _ int, v float64) { assert.InDelta(t, 3, v, 1e-12) })
	eachCell(rate, func(_, _, _ int, v float64) { assert.InDelta(t, 3.0/86400000, v, 1e-20) })
	assert.InDelta(t, cells, testutil.ToFloat64(m.CellsComputed), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.CellsClamped), 0)
}

func TestCompute_NegativeClampedToZero(t *testing.T) {
	swe := uniform("swe", []time.Time{d0, d1}, 8, 10)
	precip := uniform("precip", []time.Time{d0, d1}, 0, 1)

	rate, daily, m := compute(t, swe, precip)

	eachCell(daily, func(_, _, _ int, v float64) { assert.Zero(t, v) })
	eachCell(rate, func(_, _, _ int, v float64) { assert.Zero(t, v) })
	assert.InDelta(t, cells, testutil.ToFloat64(m.CellsClamped), 0)
}

func TestCompute_Metadata(t *testing.T) {
	swe := uniform("swe", []time.Time{d0, d1}, 10, 8)
	precip := uniform("precip", []time.Time{d1}, 1)

	rate, daily, _ := compute(t, swe, precip)

	assert.Equal(t, flux.Name, rate.Name)
	assert.Equal(t, "m/s", rate.Metadata.Units)
	assert.Equal(t, "mm/day", daily.Metadata.Units)
	assert.Equal(t, "converted to zero", rate.Metadata.NegativeValues)
	assert.Equal(t, "converted to zero", daily.Metadata.NegativeValues)
	assert.Equal(t, flux.Description, daily.Metadata.Description)
	assert.Equal(t, swe.Lat, rate.Lat)
	assert.Equal(t, swe.Lon, daily.Lon)
}

func TestCompute_AlignsPrecipByTimestamp(t *testing.T) {
	swe := uniform("swe", []time.Time{d0, d1, d2}, 10, 8, 8)
	// The extra leading day shifts every precipitation index by one.
	precip := uniform("precip", []time.Time{d0.AddDate(0, 0, -1), d0, d1, d2}, 100, 100, 1, 5)

	_, daily, _ := compute(t, swe, precip)

	require.Equal(t, []time.Time{d1, d2}, daily.Time)
	assert.InDelta(t, 3, daily.Values[0][0][0], 1e-12)
	assert.InDelta(t, 5, daily.Values[1][1][1], 1e-12)
}

func TestCompute_MissingPrecipStep(t *testing.T) {
	swe := uniform("swe", []time.Time{d0, d1}, 10, 8)
	precip := uniform("precip", []time.Time{d0}, 1)

	_, _, err := flux.NewCalculator(observability.NewMetricsForTesting()).Compute(swe, precip)
	require.ErrorIs(t, err, domain.ErrTimeAlignment)
}

func TestCompute_TooFewSteps(t *testing.T) {
	swe := uniform("swe", []time.Time{d0}, 10)
	precip := uniform("precip", []time.Time{d0}, 1)

	_, _, err := flux.NewCalculator(observability.NewMetricsForTesting()).Compute(swe, precip)
	require.ErrorIs(t, err, domain.ErrTimeAlignment)
}

func TestCompute_GridMismatch(t *testing.T) {
	swe := uniform("swe", []time.Time{d0, d1}, 10, 8)
	precip := domain.NewGridDataset("precip", []time.Time{d0, d1}, lat, []float64{-75, -74.4})

	_, _, err := flux.NewCalculator(observability.NewMetricsForTesting()).Compute(swe, precip)
	require.ErrorIs(t, err, domain.ErrShapeMismatch)
}

func TestCompute_NoDataPropagates(t *testing.T) {
	swe := uniform("swe", []time.Time{d0, d1, d2}, 10, 8, 6)
	precip := uniform("precip", []time.Time{d0, d1, d2}, 0, 1, 1)
	swe.Values[0][0][0] = domain.NoData    // swe[t-1] at step d1
	swe.Values[2][1][0] = domain.NoData    // swe[t] at step d2
	precip.Values[1][2][1] = domain.NoData // precip[t] at step d1

	_, daily, m := compute(t, swe, precip)

	assert.True(t, domain.IsNoData(daily.Values[0][0][0]))
	assert.True(t, domain.IsNoData(daily.Values[1][1][0]))
	assert.True(t, domain.IsNoData(daily.Values[0][2][1]))
	assert.InDelta(t, 3, daily.Values[1][0][0], 1e-12, "a missing swe[t-1] affects only its own step")
	assert.InDelta(t, 2*cells-3, testutil.ToFloat64(m.CellsComputed), 0)
}

func TestCompute_Properties(t *testing.T) {
	times := []time.Time{d0, d1, d2, d2.AddDate(0, 0, 1)}
	swe := domain.NewGridDataset("swe", times, lat, lon)
	precip := domain.NewGridDataset("precip", times, lat, lon)
	eachCell(swe, func(ti, y, x int, _ float64) {
		swe.Values[ti][y][x] = float64((ti*7+y*3+x*5)%11) * 1.5
		precip.Values[ti][y][x] = float64((ti+y+x)%3) * 0.4
	})

	rate, daily, _ := compute(t, swe, precip)

	assert.Equal(t, swe.Time[1:], daily.Time)
	eachCell(daily, func(ti, y, x int, v float64) {
		require.False(t, domain.IsNoData(v))
		assert.GreaterOrEqual(t, v, 0.0)
		r := rate.Values[ti][y][x]
		assert.GreaterOrEqual(t, r, 0.0)
		assert.InDelta(t, v, r*flux.MillimetresPerDayToMetresPerSecond, 1e-9)
	})
}

func TestCompute_DoesNotModifyInputs(t *testing.T) {
	swe := uniform("swe", []time.Time{d0, d1}, 10, 8)
	precip := uniform("precip", []time.Time{d0, d1}, 0, 1)

	_, daily, _ := compute(t, swe, precip)
	daily.Values[0][0][0] = 42

	assert.InDelta(t, 8, swe.Values[1][0][0], 0)
	assert.InDelta(t, 1, precip.Values[1][0][0], 0)
	assert.Len(t, swe.Time, 2)
}
