package resample

import (
	"math"

	"github.com/fogleman/delaunay"
	"gonum.org/v1/gonum/spatial/r2"
)

// degenerateArea is the triangle area, relative to the squared extent of the
// point cloud, below which a triangle is dropped as a sliver.
const degenerateArea = 1e-12

// Triangulation is the Delaunay triangulation of a point set. Its triangles
// are counter-clockwise index triples into the input points and exactly tile
// the convex hull of the input.
type Triangulation struct {
	pts   []r2.Vec
	tris  [][3]int
	scale float64 // largest extent of the point cloud
}

// Triangulate builds the Delaunay triangulation of pts. Repeated points are
// triangulated once. Collinear input has no triangles.
func Triangulate(pts []r2.Vec) *Triangulation {
	tr := &Triangulation{pts: pts, scale: extent(pts)}

	unique, index := dedupe(pts)
	if len(unique) < 3 {
		return tr
	}
	dt, err := delaunay.Triangulate(unique)
	if err != nil {
		return tr
	}

	minArea := degenerateArea * tr.scale * tr.scale
	for i := 0; i+2 < len(dt.Triangles); i += 3 {
		t := [3]int{index[dt.Triangles[i]], index[dt.Triangles[i+1]], index[dt.Triangles[i+2]]}
		a := orient(pts[t[0]], pts[t[1]], pts[t[2]])
		if math.Abs(a) <= minArea {
			continue
		}
		if a < 0 {
			t[1], t[2] = t[2], t[1]
		}
		tr.tris = append(tr.tris, t)
	}
	return tr
}

// Triangles returns the vertex indices of every triangle.
func (tr *Triangulation) Triangles() [][3]int {
	return tr.tris
}

// barycentric returns the weights of the second and third vertex of triangle
// t at p, and whether p lies inside the triangle or within snapTolerance of
// its edges.
func (tr *Triangulation) barycentric(t int, p r2.Vec) (w1, w2 float64, ok bool) {
	v := tr.tris[t]
	a, b, c := tr.pts[v[0]], tr.pts[v[1]], tr.pts[v[2]]
	ab, ac, ap := r2.Sub(b, a), r2.Sub(c, a), r2.Sub(p, a)
	d := r2.Cross(ab, ac)
	w1 = r2.Cross(ap, ac) / d
	w2 = r2.Cross(ab, ap) / d
	w0 := 1 - w1 - w2
	return w1, w2, w0 >= -snapTolerance && w1 >= -snapTolerance && w2 >= -snapTolerance
}

// orient is twice the signed area of (a, b, p): positive when p lies left of
// the directed edge a→b.
func orient(a, b, p r2.Vec) float64 {
	return r2.Cross(r2.Sub(b, a), r2.Sub(p, a))
}

// dedupe returns the distinct points of pts and, for each, the index of its
// first occurrence in pts.
func dedupe(pts []r2.Vec) ([]delaunay.Point, []int) {
	seen := make(map[r2.Vec]struct{}, len(pts))
	unique := make([]delaunay.Point, 0, len(pts))
	index := make([]int, 0, len(pts))
	for i, p := range pts {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		unique = append(unique, delaunay.Point{X: p.X, Y: p.Y})
		index = append(index, i)
	}
	return unique, index
}

func extent(pts []r2.Vec) float64 {
	if len(pts) == 0 {
		return 1
	}
	lo, hi := pts[0], pts[0]
	for _, p := range pts[1:] {
		lo.X, lo.Y = math.Min(lo.X, p.X), math.Min(lo.Y, p.Y)
		hi.X, hi.Y = math.Max(hi.X, p.X), math.Max(hi.Y, p.Y)
	}
	size := math.Max(hi.X-lo.X, hi.Y-lo.Y)
	if size == 0 {
		return 1
	}
	return size
}
