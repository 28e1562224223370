package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var d0 = time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time { return d0.AddDate(0, 0, n) }

func uniform(name string, times []time.Time, lat, lon []float64, v ...float64) *GridDataset {
	g := NewGridDataset(name, times, lat, lon)
	for t := range g.Values {
		for y := range g.Values[t] {
			for x := range g.Values[t][y] {
				g.Values[t][y][x] = v[t]
			}
		}
	}
	return g
}

func TestNewGridDataset_FilledWithNoData(t *testing.T) {
	g := NewGridDataset("swe", []time.Time{day(0), day(1)}, []float64{0, 1, 2}, []float64{10, 11})

	nt, ny, nx := g.Shape()
	assert.Equal(t, 2, nt)
	assert.Equal(t, 3, ny)
	assert.Equal(t, 2, nx)
	for _, slice := range g.Values {
		for _, row := range slice {
			for _, v := range row {
				assert.True(t, IsNoData(v))
			}
		}
	}
	require.NoError(t, g.Validate())
}

func TestNewGridDataset_RowsDoNotAlias(t *testing.T) {
	g := NewGridDataset("swe", []time.Time{day(0)}, []float64{0, 1}, []float64{0, 1})
	g.Values[0][0] = append(g.Values[0][0], 5)

	assert.True(t, IsNoData(g.Values[0][1][0]), "appending to one row must not overwrite the next")
}

func TestValidate_DescendingLatitude(t *testing.T) {
	g := NewGridDataset("precip", []time.Time{day(0)}, []float64{3, 2, 1}, []float64{-110, -109})
	assert.NoError(t, g.Validate())
}

func TestValidate_NonMonotonicAxis(t *testing.T) {
	g := NewGridDataset("swe", []time.Time{day(0)}, []float64{0, 2, 1}, []float64{0, 1})
	err := g.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShapeMismatch))
	assert.Contains(t, err.Error(), "latitude")
}

func TestValidate_DuplicateLongitude(t *testing.T) {
	g := NewGridDataset("swe", []time.Time{day(0)}, []float64{0, 1}, []float64{5, 5})
	assert.ErrorIs(t, g.Validate(), ErrShapeMismatch)
}

func TestValidate_TimeNotAscending(t *testing.T) {
	g := NewGridDataset("swe", []time.Time{day(1), day(0)}, []float64{0}, []float64{0})
	assert.ErrorIs(t, g.Validate(), ErrShapeMismatch)
}

func TestValidate_ValuesShape(t *testing.T) {
	g := NewGridDataset("swe", []time.Time{day(0)}, []float64{0, 1}, []float64{0, 1})
	g.Values[0][1] = g.Values[0][1][:1]
	assert.ErrorIs(t, g.Validate(), ErrShapeMismatch)

	g = NewGridDataset("swe", []time.Time{day(0)}, []float64{0, 1}, []float64{0, 1})
	g.Time = append(g.Time, day(1))
	assert.ErrorIs(t, g.Validate(), ErrShapeMismatch)
}

func TestSelectDates_ClosedInterval(t *testing.T) {
	times := []time.Time{day(0), day(1).Add(12 * time.Hour), day(2), day(3)}
	g := uniform("precip", times, []float64{0}, []float64{0}, 1, 2, 3, 4)

	sel := g.SelectDates(day(1), day(2))

	require.Len(t, sel.Time, 2)
	assert.Equal(t, times[1], sel.Time[0])
	assert.Equal(t, times[2], sel.Time[1])
	assert.Equal(t, 2.0, sel.Values[0][0][0])
	assert.Equal(t, 3.0, sel.Values[1][0][0])

	sel.Values[0][0][0] = 99
	assert.Equal(t, 2.0, g.Values[1][0][0], "selection must not alias the source")
}

func TestNearest_PicksClosestCell(t *testing.T) {
	g := NewGridDataset("swe", []time.Time{day(0)}, []float64{50, 49, 48}, []float64{-115, -114, -113})
	g.Values[0][1][2] = 7

	cell := g.Nearest(Point{Lat: 48.9, Lon: -112.8})

	assert.Equal(t, []float64{49}, cell.Lat)
	assert.Equal(t, []float64{-113}, cell.Lon)
	assert.Equal(t, 7.0, cell.Values[0][0][0])
}

func TestNearestIndex(t *testing.T) {
	assert.Equal(t, -1, NearestIndex(nil, 1))
	assert.Equal(t, 0, NearestIndex([]float64{0, 1}, 0.5))
	assert.Equal(t, 1, NearestIndex([]float64{0, 1, 2}, 1.2))
	assert.Equal(t, 2, NearestIndex([]float64{0, 1, 2}, 10))
}

func TestExtent(t *testing.T) {
	lo, hi := Extent([]float64{3, 2, 1})
	assert.Equal(t, 1.0, lo)
	assert.Equal(t, 3.0, hi)
}

func TestConcat_OrdersByTime(t *testing.T) {
	lat, lon := []float64{0, 1}, []float64{0, 1}
	a := uniform("swe", []time.Time{day(1)}, lat, lon, 8)
	b := uniform("swe", []time.Time{day(0)}, lat, lon, 10)

	out, err := Concat(a, b)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day(0), day(1)}, out.Time)
	assert.Equal(t, 10.0, out.Values[0][1][1])
	assert.Equal(t, 8.0, out.Values[1][0][0])
	assert.NoError(t, out.Validate())
}

func TestConcat_GridMismatch(t *testing.T) {
	a := uniform("swe", []time.Time{day(0)}, []float64{0, 1}, []float64{0, 1}, 1)
	b := uniform("swe", []time.Time{day(1)}, []float64{0, 2}, []float64{0, 1}, 1)

	_, err := Concat(a, b)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestConcat_DuplicateTimestamp(t *testing.T) {
	a := uniform("swe", []time.Time{day(0)}, []float64{0}, []float64{0}, 1)
	b := uniform("swe", []time.Time{day(0)}, []float64{0}, []float64{0}, 2)

	_, err := Concat(a, b)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, IsPermanent(ErrNotFound))
	assert.True(t, IsPermanent(errors.Join(errors.New("load swe"), ErrTimeAlignment)))
	assert.False(t, IsPermanent(errors.New("disk full")))
}
