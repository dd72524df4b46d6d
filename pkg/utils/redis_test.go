package utils

import (
	"testing"
	"time"
)

func TestDispatchScriptsCompile(t *testing.T) {
	// Compile-time smoke test: scripts should be initialized.
	if dispatchAcquireScript == nil || dispatchReleaseScript == nil {
		t.Fatalf("expected scripts to be initialized")
	}
}

func TestNewDispatchCap_ValidatesInputs(t *testing.T) {
	if _, err := NewDispatchCap(nil, "k", 1, time.Second); err == nil {
		t.Fatalf("expected error for nil client")
	}
}
