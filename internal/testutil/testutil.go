// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code
// duplication across test files.
package testutil

import (
	"testing"

	"github.com/banshee-data/scanmatch/internal/geom"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertMat4Near checks that two transforms agree element-wise within tol.
func AssertMat4Near(t *testing.T, got, want geom.Mat4, tol float64) {
	t.Helper()
	if !got.ApproxEqual(want, tol) {
		t.Errorf("transform mismatch (tol %g):\n got %v\nwant %v", tol, got, want)
	}
}
