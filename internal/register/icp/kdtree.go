package icp

import (
	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/banshee-data/scanmatch/internal/cloud"
)

// kdPoint adapts one cloud point for gonum's kd-tree, carrying its
// index in the originating frame so correspondences can be recovered.
type kdPoint struct {
	x, y, z float64
	idx     int
}

func (p kdPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(kdPoint)
	switch d {
	case 0:
		return p.x - q.x
	case 1:
		return p.y - q.y
	default:
		return p.z - q.z
	}
}

func (p kdPoint) Dims() int { return 3 }

// Distance returns the squared Euclidean distance, per the kdtree
// contract.
func (p kdPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(kdPoint)
	dx, dy, dz := p.x-q.x, p.y-q.y, p.z-q.z
	return dx*dx + dy*dy + dz*dz
}

// kdPoints implements kdtree.Interface over a slice of kdPoint.
type kdPoints []kdPoint

func (p kdPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p kdPoints) Len() int                              { return len(p) }
func (p kdPoints) Pivot(d kdtree.Dim) int                { return kdPlane{Dim: d, kdPoints: p}.Pivot() }
func (p kdPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// kdPlane is the SortSlicer used by Pivot, ordering points along one
// dimension.
type kdPlane struct {
	kdtree.Dim
	kdPoints
}

func (p kdPlane) Less(i, j int) bool {
	a, b := p.kdPoints[i], p.kdPoints[j]
	switch p.Dim {
	case 0:
		return a.x < b.x
	case 1:
		return a.y < b.y
	default:
		return a.z < b.z
	}
}

func (p kdPlane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }

func (p kdPlane) Slice(start, end int) kdtree.SortSlicer {
	p.kdPoints = p.kdPoints[start:end]
	return p
}

func (p kdPlane) Swap(i, j int) {
	p.kdPoints[i], p.kdPoints[j] = p.kdPoints[j], p.kdPoints[i]
}

// newTargetTree builds a kd-tree over the frame's points.
func newTargetTree(f *cloud.Frame) *kdtree.Tree {
	pts := make(kdPoints, len(f.Points))
	for i, p := range f.Points {
		pts[i] = kdPoint{x: p.X, y: p.Y, z: p.Z, idx: i}
	}
	return kdtree.New(pts, false)
}
