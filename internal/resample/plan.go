package resample

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r2"
)

// snapTolerance is how far outside a triangle, in barycentric units, a target
// may sit and still be interpolated from it. It absorbs rounding for targets
// that lie on hull edges.
const snapTolerance = 1e-9

// stencil is the linear combination producing one target cell:
// v[idx0] + w0*(v[idx1]-v[idx0]) + w1*(v[idx2]-v[idx0]).
// A stencil that is not set yields no data.
type stencil struct {
	set bool
	idx [3]int
	w   [2]float64
}

// plan maps every cell of a target grid, row-major, to a stencil over the
// flattened source grid.
type plan struct {
	nx    int // source longitude count, for unflattening indices
	cells []stencil
}

// buildPlan triangulates the source cells listed in valid (flat indices into
// a srcLat × srcLon grid) and assigns every target cell covered by a triangle
// the stencil of the first triangle covering it.
func buildPlan(srcLat, srcLon []float64, valid []int, tgtLat, tgtLon []float64) *plan {
	nx := len(srcLon)
	pts := make([]r2.Vec, len(valid))
	for k, idx := range valid {
		pts[k] = r2.Vec{X: srcLon[idx%nx], Y: srcLat[idx/nx]}
	}
	tr := Triangulate(pts)

	p := &plan{nx: nx, cells: make([]stencil, len(tgtLat)*len(tgtLon))}
	margin := snapTolerance * tr.scale
	for t, v := range tr.tris {
		a, b, c := pts[v[0]], pts[v[1]], pts[v[2]]
		y0, y1 := span(tgtLat, math.Min(a.Y, math.Min(b.Y, c.Y))-margin, math.Max(a.Y, math.Max(b.Y, c.Y))+margin)
		x0, x1 := span(tgtLon, math.Min(a.X, math.Min(b.X, c.X))-margin, math.Max(a.X, math.Max(b.X, c.X))+margin)
		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				cell := &p.cells[y*len(tgtLon)+x]
				if cell.set {
					continue
				}
				w1, w2, ok := tr.barycentric(t, r2.Vec{X: tgtLon[x], Y: tgtLat[y]})
				if !ok {
					continue
				}
				*cell = stencil{
					set: true,
					idx: [3]int{valid[v[0]], valid[v[1]], valid[v[2]]},
					w:   [2]float64{w1, w2},
				}
			}
		}
	}
	return p
}

// span returns the half-open index range of the monotonic axis whose values
// lie in [lo, hi].
func span(axis []float64, lo, hi float64) (from, to int) {
	n := len(axis)
	if n < 2 || axis[1] > axis[0] {
		from = sort.Search(n, func(i int) bool { return axis[i] >= lo })
		to = sort.Search(n, func(i int) bool { return axis[i] > hi })
		return from, to
	}
	from = sort.Search(n, func(i int) bool { return axis[i] <= hi })
	to = sort.Search(n, func(i int) bool { return axis[i] < lo })
	return from, to
}

// apply evaluates the plan on one source slice and writes the target slice.
func (p *plan) apply(src [][]float64, dst [][]float64) {
	nxDst := 0
	if len(dst) > 0 {
		nxDst = len(dst[0])
	}
	at := func(idx int) float64 { return src[idx/p.nx][idx%p.nx] }
	for i, s := range p.cells {
		y, x := i/nxDst, i%nxDst
		if !s.set {
			dst[y][x] = math.NaN()
			continue
		}
		v0 := at(s.idx[0])
		dst[y][x] = v0 + s.w[0]*(at(s.idx[1])-v0) + s.w[1]*(at(s.idx[2])-v0)
	}
}
