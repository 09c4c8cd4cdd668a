package icp

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/scanmatch/internal/cloud"
	"github.com/banshee-data/scanmatch/internal/geom"
)

// gridFrame builds a synthetic cloud with 3D structure: a 10x10x3
// lattice with 0.5m spacing. Dense enough that small motions keep
// nearest-neighbour pairings honest.
func gridFrame(t *testing.T) *cloud.Frame {
	t.Helper()
	var pts []cloud.Point
	for i := 0; i < 10; i++ {
		for j := 0; j < 10; j++ {
			for k := 0; k < 3; k++ {
				pts = append(pts, cloud.Point{
					X: float64(i) * 0.5,
					Y: float64(j) * 0.5,
					Z: float64(k) * 0.5,
				})
			}
		}
	}
	return cloud.NewFrame("synthetic", time.Now(), pts)
}

func TestAlignRecoversKnownMotion(t *testing.T) {
	src := gridFrame(t)
	want := geom.Translation(0.05, -0.03, 0.02).Mul(geom.RotationZ(0.02))
	tgt := src.Transform(want)

	a := NewAligner(DefaultConfig())
	a.SetInputSource(src)
	a.SetInputTarget(tgt)
	a.Align(nil, geom.Identity())

	require.True(t, a.HasConverged(), "ICP did not converge on a small rigid motion")
	assert.True(t, a.FinalTransform().ApproxEqual(want, 1e-3),
		"final transform %v differs from applied motion %v", a.FinalTransform(), want)
	assert.True(t, a.FinalTransform().IsRigid(), "final transform is not rigid")
	assert.Less(t, a.FitnessScore(), 1e-4)
}

func TestAlignConvergesImmediatelyWithExactGuess(t *testing.T) {
	src := gridFrame(t)
	motion := geom.Translation(0.4, 0.2, -0.1).Mul(geom.RotationZ(0.1))
	tgt := src.Transform(motion)

	a := NewAligner(DefaultConfig())
	a.SetInputSource(src)
	a.SetInputTarget(tgt)
	a.Align(nil, motion)

	require.True(t, a.HasConverged())
	assert.True(t, a.FinalTransform().ApproxEqual(motion, 1e-6))
	assert.LessOrEqual(t, a.Iterations(), 2, "exact guess should converge almost immediately")
}

func TestAlignDegenerateInputDoesNotConverge(t *testing.T) {
	empty := cloud.NewFrame("s", time.Now(), nil)
	full := gridFrame(t)

	tests := []struct {
		name        string
		src, target *cloud.Frame
	}{
		{"empty source", empty, full},
		{"empty target", full, empty},
		{"both empty", empty, empty},
		{"nil source", nil, full},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAligner(DefaultConfig())
			a.SetInputSource(tt.src)
			a.SetInputTarget(tt.target)
			a.Align(nil, geom.Identity())
			assert.False(t, a.HasConverged())
		})
	}
}

func TestAlignNoOverlapDoesNotConverge(t *testing.T) {
	src := gridFrame(t)
	// Target is far beyond the correspondence gate; every pair is
	// rejected and the run must report non-convergence.
	tgt := src.Transform(geom.Translation(100, 0, 0))

	a := NewAligner(DefaultConfig())
	a.SetInputSource(src)
	a.SetInputTarget(tgt)
	a.Align(nil, geom.Identity())

	assert.False(t, a.HasConverged())
}

func TestAlignWritesTransformedOutput(t *testing.T) {
	src := gridFrame(t)
	motion := geom.Translation(0.05, 0, 0)
	tgt := src.Transform(motion)

	a := NewAligner(DefaultConfig())
	a.SetInputSource(src)
	a.SetInputTarget(tgt)

	var out cloud.Frame
	a.Align(&out, geom.Identity())

	require.True(t, a.HasConverged())
	require.Equal(t, src.Len(), out.Len())

	// The output cloud should lie on the target within tolerance.
	T := a.FinalTransform()
	for i, p := range src.Points {
		x, y, z := T.Apply(p.X, p.Y, p.Z)
		assert.InDelta(t, x, out.Points[i].X, 1e-9)
		assert.InDelta(t, y, out.Points[i].Y, 1e-9)
		assert.InDelta(t, z, out.Points[i].Z, 1e-9)
	}
}

func TestRigidFromPairsPureTranslation(t *testing.T) {
	src := [][3]float64{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	tgt := make([][3]float64, len(src))
	for i, p := range src {
		tgt[i] = [3]float64{p[0] + 2, p[1] - 1, p[2] + 0.5}
	}

	m, ok := rigidFromPairs(src, tgt)
	require.True(t, ok)
	assert.True(t, m.ApproxEqual(geom.Translation(2, -1, 0.5), 1e-9), "got %v", m)
}

func TestRigidFromPairsRotation(t *testing.T) {
	want := geom.RotationZ(math.Pi / 6)
	src := [][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {1, 1, 1}, {2, -1, 0.5}}
	tgt := make([][3]float64, len(src))
	for i, p := range src {
		x, y, z := want.Apply(p[0], p[1], p[2])
		tgt[i] = [3]float64{x, y, z}
	}

	m, ok := rigidFromPairs(src, tgt)
	require.True(t, ok)
	assert.True(t, m.ApproxEqual(want, 1e-9), "got %v want %v", m, want)
	assert.True(t, m.IsRigid())
}
