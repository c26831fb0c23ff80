package pupstore

import "testing"

func TestVersion(t *testing.T) {
	if Version() == "" {
		t.Error("Expected non-empty version")
	}
}
