package register

import (
	"errors"

	"github.com/banshee-data/scanmatch/internal/cloud"
	"github.com/banshee-data/scanmatch/internal/geom"
)

// Engine precondition violations. Non-convergence is not an error; it
// is reported through the boolean result of RegisterCloud.
var (
	// ErrNoAligner is returned when RegisterCloud is called before an
	// aligner has been attached. Proceeding without one would hand the
	// caller an identity transform masquerading as a measured motion.
	ErrNoAligner = errors.New("register: no aligner attached")

	// ErrNilFrame is returned when RegisterCloud is called with a nil frame.
	ErrNilFrame = errors.New("register: nil frame")
)

// IncrementalRegistration chains pairwise alignments of consecutive
// frames into a running absolute transform.
//
// The engine is single-threaded: callers must serialise RegisterCloud,
// Reset and SetAligner on one instance. DeltaTransform and
// AbsoluteTransform return copies and are safe to call concurrently
// with each other, but not with a mutating call.
type IncrementalRegistration struct {
	aligner Aligner
	last    *cloud.Frame // most recently accepted frame, nil before first call
	delta   geom.Mat4    // last accepted frame-to-frame transform
	abs     geom.Mat4    // running composition of accepted deltas
}

// NewIncrementalRegistration returns an engine with identity
// transforms and no retained frame. An aligner may be attached now or
// later via SetAligner, but must be attached before the first
// RegisterCloud call.
func NewIncrementalRegistration(aligner Aligner) *IncrementalRegistration {
	return &IncrementalRegistration{
		aligner: aligner,
		delta:   geom.Identity(),
		abs:     geom.Identity(),
	}
}

// SetAligner (re)binds the pairwise-alignment collaborator. Allowed in
// any state; swapping aligners mid-sequence changes only which
// algorithm computes future deltas, never already-accumulated state.
func (r *IncrementalRegistration) SetAligner(aligner Aligner) {
	r.aligner = aligner
}

// RegisterCloud attempts to register frame against the retained frame.
//
// On the first call there is nothing to align against: the frame is
// adopted as-is and deltaEstimate seeds both the delta and the
// absolute transform (the seed defines the trajectory origin; note it
// is reported as the first "delta" too, mirroring the established
// behaviour of this interface).
//
// On subsequent calls the aligner is invoked with the new frame as
// source, the retained frame as target, and deltaEstimate as the
// optimizer's starting estimate. If the aligner converges the refined
// transform is accepted: delta is replaced, the absolute transform is
// right-multiplied (preserving temporal order), and the new frame
// replaces the retained one. If the aligner does not converge the
// call is a pure no-op on engine state and returns false; the caller
// decides whether to retry, skip the frame, or Reset.
func (r *IncrementalRegistration) RegisterCloud(frame *cloud.Frame, deltaEstimate geom.Mat4) (bool, error) {
	if r.aligner == nil {
		return false, ErrNoAligner
	}
	if frame == nil {
		return false, ErrNilFrame
	}

	if r.last == nil {
		r.last = frame
		r.delta = deltaEstimate
		r.abs = deltaEstimate
		return true, nil
	}

	r.aligner.SetInputSource(frame)
	r.aligner.SetInputTarget(r.last)
	r.aligner.Align(nil, deltaEstimate)

	if !r.aligner.HasConverged() {
		return false, nil
	}

	r.delta = r.aligner.FinalTransform()
	r.abs = r.abs.Mul(r.delta)
	r.last = frame
	return true, nil
}

// DeltaTransform returns the most recently accepted frame-to-frame
// transform, or identity if no call has been accepted.
func (r *IncrementalRegistration) DeltaTransform() geom.Mat4 {
	return r.delta
}

// AbsoluteTransform returns the composition of every accepted delta
// since construction or the last Reset.
func (r *IncrementalRegistration) AbsoluteTransform() geom.Mat4 {
	return r.abs
}

// RetainedFrame returns the most recently accepted frame, or nil if
// none. Read-only; the frame must not be mutated.
func (r *IncrementalRegistration) RetainedFrame() *cloud.Frame {
	return r.last
}

// Reset clears the retained frame and returns both transforms to
// identity, starting a new independent trajectory segment. The
// aligner stays attached. Resetting a fresh engine is a no-op.
func (r *IncrementalRegistration) Reset() {
	r.last = nil
	r.delta = geom.Identity()
	r.abs = geom.Identity()
}
