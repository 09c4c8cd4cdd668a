package register

import (
	"github.com/banshee-data/scanmatch/internal/cloud"
	"github.com/banshee-data/scanmatch/internal/geom"
)

// Aligner is the pairwise-alignment capability consumed by the
// registration engine. Any conforming implementation (iterative
// closest point, feature-based, learned) can be substituted without
// the engine's knowledge.
//
// Call order per attempt: SetInputSource, SetInputTarget, Align, then
// read HasConverged and — only if converged — FinalTransform.
type Aligner interface {
	// SetInputSource binds the cloud to be aligned (the new frame).
	SetInputSource(c *cloud.Frame)

	// SetInputTarget binds the cloud to align against (the retained frame).
	SetInputTarget(c *cloud.Frame)

	// Align runs the alignment starting from guess and writes a
	// transformed copy of the source into out. Passing nil out skips
	// the copy; the engine only needs the transform and convergence
	// signal.
	Align(out *cloud.Frame, guess geom.Mat4)

	// HasConverged reports the convergence signal for the most recent
	// Align call.
	HasConverged() bool

	// FinalTransform returns the refined source-to-target transform
	// for the most recent converged Align call. Undefined if the last
	// Align did not converge.
	FinalTransform() geom.Mat4
}
