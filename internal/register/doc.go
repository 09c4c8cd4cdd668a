// Package register implements incremental pairwise registration: the
// stateful controller that chains frame-to-frame alignments into a
// running absolute pose for point-cloud odometry.
//
// The pairwise alignment algorithm itself is pluggable through the
// Aligner interface; the engine only retains the most recently
// accepted frame, gates acceptance on the aligner's convergence
// signal, and accumulates accepted relative motions in temporal
// order. A rejected alignment never mutates engine state, so a caller
// can retry the same frame against the same retained frame.
package register
