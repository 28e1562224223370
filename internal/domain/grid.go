package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// NoData marks an undefined cell. It is NaN, so it never compares equal to
// anything, zero included; test cells with IsNoData.
var NoData = math.NaN()

// IsNoData reports whether v is the no-data sentinel.
func IsNoData(v float64) bool { return math.IsNaN(v) }

// Point is a WGS-84 latitude/longitude pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Metadata is the small descriptive record persisted next to a grid.
type Metadata struct {
	Description    string `json:"description,omitempty"`
	Units          string `json:"units,omitempty"`
	NegativeValues string `json:"negative_values,omitempty"`
}

// GridDataset is a dense time × lat × lon scalar field on a rectilinear grid.
//
// Time is ascending and unique. Lat and Lon are strictly monotonic, either
// direction. Values is indexed [time][lat][lon]; undefined cells hold NoData.
// Transformations return new datasets and never modify their inputs.
type GridDataset struct {
	Name     string
	Time     []time.Time
	Lat      []float64
	Lon      []float64
	Values   [][][]float64
	Metadata Metadata
}

// NewGridDataset allocates a dataset over copies of the given axes with every
// cell set to NoData.
func NewGridDataset(name string, times []time.Time, lat, lon []float64) *GridDataset {
	return &GridDataset{
		Name:   name,
		Time:   append([]time.Time(nil), times...),
		Lat:    append([]float64(nil), lat...),
		Lon:    append([]float64(nil), lon...),
		Values: allocate(len(times), len(lat), len(lon)),
	}
}

// allocate returns an nt × ny × nx array backed by one slab, filled with NoData.
func allocate(nt, ny, nx int) [][][]float64 {
	slab := make([]float64, nt*ny*nx)
	for i := range slab {
		slab[i] = NoData
	}
	out := make([][][]float64, nt)
	for t := range out {
		rows := make([][]float64, ny)
		for y := range rows {
			off := (t*ny + y) * nx
			rows[y] = slab[off : off+nx : off+nx]
		}
		out[t] = rows
	}
	return out
}

// Shape returns the lengths of the time, lat and lon axes.
func (g *GridDataset) Shape() (nt, ny, nx int) {
	return len(g.Time), len(g.Lat), len(g.Lon)
}

// Validate checks the dataset invariants and wraps ErrShapeMismatch on failure.
func (g *GridDataset) Validate() error {
	if len(g.Values) != len(g.Time) {
		return fmt.Errorf("%w: %s has %d time slices for %d timestamps", ErrShapeMismatch, g.Name, len(g.Values), len(g.Time))
	}
	for t, slice := range g.Values {
		if len(slice) != len(g.Lat) {
			return fmt.Errorf("%w: %s slice %d has %d rows for %d latitudes", ErrShapeMismatch, g.Name, t, len(slice), len(g.Lat))
		}
		for y, row := range slice {
			if len(row) != len(g.Lon) {
				return fmt.Errorf("%w: %s slice %d row %d has %d cells for %d longitudes", ErrShapeMismatch, g.Name, t, y, len(row), len(g.Lon))
			}
		}
	}
	if !strictlyMonotonic(g.Lat) {
		return fmt.Errorf("%w: %s latitude axis is not strictly monotonic", ErrShapeMismatch, g.Name)
	}
	if !strictlyMonotonic(g.Lon) {
		return fmt.Errorf("%w: %s longitude axis is not strictly monotonic", ErrShapeMismatch, g.Name)
	}
	for i := 1; i < len(g.Time); i++ {
		if !g.Time[i].After(g.Time[i-1]) {
			return fmt.Errorf("%w: %s time axis is not unique and ascending at %s", ErrShapeMismatch, g.Name, g.Time[i].Format(time.RFC3339))
		}
	}
	return nil
}

func strictlyMonotonic(axis []float64) bool {
	if len(axis) < 2 {
		return len(axis) == 0 || !math.IsNaN(axis[0])
	}
	ascending := axis[1] > axis[0]
	for i := 1; i < len(axis); i++ {
		d := axis[i] - axis[i-1]
		if ascending && !(d > 0) || !ascending && !(d < 0) {
			return false
		}
	}
	return true
}

// SameGrid reports whether g and o share identical lat and lon axes.
func (g *GridDataset) SameGrid(o *GridDataset) bool {
	return equalAxis(g.Lat, o.Lat) && equalAxis(g.Lon, o.Lon)
}

func equalAxis(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TimeIndex maps each timestamp (as Unix nanoseconds) to its position.
func (g *GridDataset) TimeIndex() map[int64]int {
	idx := make(map[int64]int, len(g.Time))
	for i, t := range g.Time {
		idx[t.UnixNano()] = i
	}
	return idx
}

// SelectDates returns the steps whose UTC calendar date lies in the closed
// interval [start, end]. The result may have an empty time axis.
func (g *GridDataset) SelectDates(start, end time.Time) *GridDataset {
	from, to := Date(start), Date(end)
	out := &GridDataset{
		Name:     g.Name,
		Lat:      append([]float64(nil), g.Lat...),
		Lon:      append([]float64(nil), g.Lon...),
		Metadata: g.Metadata,
	}
	for i, t := range g.Time {
		d := Date(t)
		if d.Before(from) || d.After(to) {
			continue
		}
		out.Time = append(out.Time, t)
		out.Values = append(out.Values, copySlice(g.Values[i]))
	}
	return out
}

// Nearest returns the single-cell series at the grid cell closest to p.
func (g *GridDataset) Nearest(p Point) *GridDataset {
	y := NearestIndex(g.Lat, p.Lat)
	x := NearestIndex(g.Lon, p.Lon)
	if y < 0 || x < 0 {
		return &GridDataset{Name: g.Name, Time: append([]time.Time(nil), g.Time...), Values: make([][][]float64, len(g.Time)), Metadata: g.Metadata}
	}
	out := NewGridDataset(g.Name, g.Time, g.Lat[y:y+1], g.Lon[x:x+1])
	out.Metadata = g.Metadata
	for t := range g.Values {
		out.Values[t][0][0] = g.Values[t][y][x]
	}
	return out
}

// NearestIndex returns the index of the axis value closest to v, or -1 for an
// empty axis. Ties resolve to the lower index.
func NearestIndex(axis []float64, v float64) int {
	best, bestDist := -1, math.Inf(1)
	for i, a := range axis {
		if d := math.Abs(a - v); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// Extent returns the minimum and maximum of an axis.
func Extent(axis []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range axis {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// Concat joins datasets on the same grid along the time axis, ordering the
// steps by timestamp. Duplicate timestamps are rejected.
func Concat(parts ...*GridDataset) (*GridDataset, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: nothing to concatenate", ErrNotFound)
	}
	first := parts[0]
	type step struct {
		t      time.Time
		values [][]float64
	}
	var steps []step
	for _, p := range parts {
		if !first.SameGrid(p) {
			return nil, fmt.Errorf("%w: %s grid differs between concatenated parts", ErrShapeMismatch, p.Name)
		}
		for i, t := range p.Time {
			steps = append(steps, step{t: t, values: p.Values[i]})
		}
	}
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].t.Before(steps[j].t) })

	out := &GridDataset{
		Name:     first.Name,
		Lat:      append([]float64(nil), first.Lat...),
		Lon:      append([]float64(nil), first.Lon...),
		Time:     make([]time.Time, 0, len(steps)),
		Values:   make([][][]float64, 0, len(steps)),
		Metadata: first.Metadata,
	}
	for i, s := range steps {
		if i > 0 && s.t.Equal(steps[i-1].t) {
			return nil, fmt.Errorf("%w: duplicate timestamp %s", ErrShapeMismatch, s.t.Format(time.RFC3339))
		}
		out.Time = append(out.Time, s.t)
		out.Values = append(out.Values, copySlice(s.values))
	}
	return out, nil
}

func copySlice(in [][]float64) [][]float64 {
	out := make([][]float64, len(in))
	for y, row := range in {
		out[y] = append([]float64(nil), row...)
	}
	return out
}

// Date truncates t to midnight UTC of its calendar date.
func Date(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
