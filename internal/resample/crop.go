package resample

import (
	"github.com/couchcryptid/lwf-etl/internal/domain"
	"gonum.org/v1/gonum/spatial/r2"
)

// Bounds returns the closed lon/lat bounding box of a dataset's grid, with
// X as longitude and Y as latitude.
func Bounds(g *domain.GridDataset) r2.Box {
	lonMin, lonMax := domain.Extent(g.Lon)
	latMin, latMax := domain.Extent(g.Lat)
	return r2.Box{
		Min: r2.Vec{X: lonMin, Y: latMin},
		Max: r2.Vec{X: lonMax, Y: latMax},
	}
}

// Crop returns the cells of g inside the closed box. Cells outside are
// dropped, not masked; axis order and the full time axis are kept.
func Crop(g *domain.GridDataset, box r2.Box) *domain.GridDataset {
	ys := within(g.Lat, box.Min.Y, box.Max.Y)
	xs := within(g.Lon, box.Min.X, box.Max.X)

	lat := make([]float64, len(ys))
	for i, y := range ys {
		lat[i] = g.Lat[y]
	}
	lon := make([]float64, len(xs))
	for i, x := range xs {
		lon[i] = g.Lon[x]
	}

	out := domain.NewGridDataset(g.Name, g.Time, lat, lon)
	out.Metadata = g.Metadata
	for t := range g.Values {
		for i, y := range ys {
			for j, x := range xs {
				out.Values[t][i][j] = g.Values[t][y][x]
			}
		}
	}
	return out
}

func within(axis []float64, lo, hi float64) []int {
	var idx []int
	for i, v := range axis {
		if v >= lo && v <= hi {
			idx = append(idx, i)
		}
	}
	return idx
}
