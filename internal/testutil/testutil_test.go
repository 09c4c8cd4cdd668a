package testutil

import (
	"testing"

	"github.com/banshee-data/scanmatch/internal/geom"
)

func TestAssertMat4Near(t *testing.T) {
	// Run the helper against a throwaway T so a failure does not fail
	// this test directly.
	sub := &testing.T{}
	AssertMat4Near(sub, geom.Identity(), geom.Identity(), 0)
	if sub.Failed() {
		t.Error("AssertMat4Near failed on equal transforms")
	}

	sub = &testing.T{}
	AssertMat4Near(sub, geom.Identity(), geom.Translation(1, 0, 0), 1e-9)
	if !sub.Failed() {
		t.Error("AssertMat4Near passed on unequal transforms")
	}
}
