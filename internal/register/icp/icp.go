// Package icp provides an iterative-closest-point implementation of
// the register.Aligner capability.
//
// Correspondences are nearest neighbours found through a kd-tree over
// the target frame, gated by a maximum correspondence distance. Each
// iteration estimates the rigid motion that best maps the current
// source estimate onto its correspondences (Kabsch, via SVD of the
// cross-covariance) and composes it onto the running estimate.
// Convergence is declared when the incremental motion or the fitness
// improvement falls below the configured epsilons within the
// iteration budget; degenerate input (too few points, no overlap
// within the gate) surfaces as non-convergence.
package icp

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/banshee-data/scanmatch/internal/cloud"
	"github.com/banshee-data/scanmatch/internal/geom"
	"github.com/banshee-data/scanmatch/internal/monitoring"
	"github.com/banshee-data/scanmatch/internal/register"
)

// Config holds ICP tuning parameters. Distances are in the same units
// as the input clouds (meters for sensor frames).
type Config struct {
	MaxIterations             int     // iteration budget per Align call
	TransformationEpsilon     float64 // stop when the incremental motion is below this
	EuclideanFitnessEpsilon   float64 // stop when fitness improvement is below this
	MaxCorrespondenceDistance float64 // reject correspondences farther than this
	MinCorrespondences        int     // minimum pairs required to estimate a motion
	Debug                     bool    // log per-align iteration summary
}

// DefaultConfig returns sensible defaults for frame-to-frame odometry
// at typical sensor rates, where consecutive frames overlap heavily.
func DefaultConfig() Config {
	return Config{
		MaxIterations:             50,
		TransformationEpsilon:     1e-6,
		EuclideanFitnessEpsilon:   1e-8,
		MaxCorrespondenceDistance: 1.0,
		MinCorrespondences:        3,
	}
}

// Aligner is a point-to-point ICP aligner. It satisfies
// register.Aligner and is not safe for concurrent use.
type Aligner struct {
	cfg Config

	source *cloud.Frame
	target *cloud.Frame
	tree   *kdtree.Tree // built lazily from target

	converged  bool
	final      geom.Mat4
	fitness    float64
	iterations int
}

// Compile-time check that Aligner satisfies the engine's contract.
var _ register.Aligner = (*Aligner)(nil)

// NewAligner returns an ICP aligner with the given configuration.
func NewAligner(cfg Config) *Aligner {
	return &Aligner{cfg: cfg, final: geom.Identity()}
}

// SetInputSource binds the cloud to be aligned.
func (a *Aligner) SetInputSource(c *cloud.Frame) { a.source = c }

// SetInputTarget binds the cloud to align against. The kd-tree over
// the target is rebuilt on the next Align call.
func (a *Aligner) SetInputTarget(c *cloud.Frame) {
	a.target = c
	a.tree = nil
}

// HasConverged reports the convergence signal for the most recent
// Align call.
func (a *Aligner) HasConverged() bool { return a.converged }

// FinalTransform returns the refined source-to-target transform for
// the most recent converged Align call.
func (a *Aligner) FinalTransform() geom.Mat4 { return a.final }

// FitnessScore returns the mean squared correspondence distance of
// the most recent Align call. Diagnostic only.
func (a *Aligner) FitnessScore() float64 { return a.fitness }

// Iterations returns the number of iterations the most recent Align
// call ran.
func (a *Aligner) Iterations() int { return a.iterations }

// Align runs ICP from guess. If out is non-nil it receives a copy of
// the source transformed by the final estimate, whether or not the
// run converged.
func (a *Aligner) Align(out *cloud.Frame, guess geom.Mat4) {
	a.converged = false
	a.final = guess
	a.fitness = math.Inf(1)
	a.iterations = 0

	if a.source.Len() < a.cfg.MinCorrespondences || a.target.Len() < a.cfg.MinCorrespondences {
		a.writeOutput(out, guess)
		return
	}
	if a.tree == nil {
		a.tree = newTargetTree(a.target)
	}

	current := guess
	prevFitness := math.Inf(1)
	maxSq := a.cfg.MaxCorrespondenceDistance * a.cfg.MaxCorrespondenceDistance

	for iter := 0; iter < a.cfg.MaxIterations; iter++ {
		a.iterations = iter + 1

		src, tgt, fitness := a.correspondences(current, maxSq)
		if len(src) < a.cfg.MinCorrespondences {
			break
		}
		a.fitness = fitness

		increment, ok := rigidFromPairs(src, tgt)
		if !ok {
			break
		}
		current = increment.Mul(current)

		if incrementMagnitude(increment) < a.cfg.TransformationEpsilon {
			a.converged = true
			break
		}
		if math.Abs(prevFitness-fitness) < a.cfg.EuclideanFitnessEpsilon {
			a.converged = true
			break
		}
		prevFitness = fitness
	}

	if a.converged {
		a.final = current
	}
	if a.cfg.Debug {
		monitoring.Logf("icp: converged=%v iterations=%d fitness=%.6g pairs source=%d target=%d",
			a.converged, a.iterations, a.fitness, a.source.Len(), a.target.Len())
	}
	a.writeOutput(out, current)
}

// correspondences transforms the source by current and pairs each
// point with its nearest target neighbour within the distance gate.
// Returns paired positions and the mean squared pair distance.
func (a *Aligner) correspondences(current geom.Mat4, maxSq float64) (src, tgt [][3]float64, fitness float64) {
	for _, p := range a.source.Points {
		x, y, z := current.Apply(p.X, p.Y, p.Z)
		nearest, sq := a.tree.Nearest(kdPoint{x: x, y: y, z: z})
		if nearest == nil || sq > maxSq {
			continue
		}
		q := nearest.(kdPoint)
		src = append(src, [3]float64{x, y, z})
		tgt = append(tgt, [3]float64{q.x, q.y, q.z})
		fitness += sq
	}
	if len(src) > 0 {
		fitness /= float64(len(src))
	} else {
		fitness = math.Inf(1)
	}
	return src, tgt, fitness
}

func (a *Aligner) writeOutput(out *cloud.Frame, T geom.Mat4) {
	if out == nil || a.source == nil {
		return
	}
	*out = *a.source.Transform(T)
}

// rigidFromPairs estimates the rigid motion mapping src points onto
// tgt points (Kabsch). Returns ok=false when the SVD fails or the
// pairing is degenerate.
func rigidFromPairs(src, tgt [][3]float64) (geom.Mat4, bool) {
	n := float64(len(src))
	var cs, ct [3]float64
	for i := range src {
		for d := 0; d < 3; d++ {
			cs[d] += src[i][d]
			ct[d] += tgt[i][d]
		}
	}
	for d := 0; d < 3; d++ {
		cs[d] /= n
		ct[d] /= n
	}

	// Cross-covariance H = Σ (s-cs)(t-ct)ᵀ.
	h := mat.NewDense(3, 3, nil)
	for i := range src {
		var ds, dt [3]float64
		for d := 0; d < 3; d++ {
			ds[d] = src[i][d] - cs[d]
			dt[d] = tgt[i][d] - ct[d]
		}
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				h.Set(r, c, h.At(r, c)+ds[r]*dt[c])
			}
		}
	}

	var svd mat.SVD
	if !svd.Factorize(h, mat.SVDFull) {
		return geom.Identity(), false
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var r mat.Dense
	r.Mul(&v, u.T())
	if mat.Det(&r) < 0 {
		// Reflection case: flip the axis of least significance.
		for i := 0; i < 3; i++ {
			v.Set(i, 2, -v.At(i, 2))
		}
		r.Mul(&v, u.T())
	}

	tx := ct[0] - (r.At(0, 0)*cs[0] + r.At(0, 1)*cs[1] + r.At(0, 2)*cs[2])
	ty := ct[1] - (r.At(1, 0)*cs[0] + r.At(1, 1)*cs[1] + r.At(1, 2)*cs[2])
	tz := ct[2] - (r.At(2, 0)*cs[0] + r.At(2, 1)*cs[1] + r.At(2, 2)*cs[2])

	return geom.Mat4{
		r.At(0, 0), r.At(0, 1), r.At(0, 2), tx,
		r.At(1, 0), r.At(1, 1), r.At(1, 2), ty,
		r.At(2, 0), r.At(2, 1), r.At(2, 2), tz,
		0, 0, 0, 1,
	}, true
}

// incrementMagnitude measures how far an incremental transform is
// from identity: the maximum absolute element difference.
func incrementMagnitude(m geom.Mat4) float64 {
	id := geom.Identity()
	maxDiff := 0.0
	for i := range m {
		if d := math.Abs(m[i] - id[i]); d > maxDiff {
			maxDiff = d
		}
	}
	return maxDiff
}
