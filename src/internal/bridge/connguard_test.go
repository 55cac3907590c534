// FILE: src/internal/bridge/connguard_test.go
package bridge

import (
	"testing"
	"time"
)

func TestConnGuardAllowsUpToBurstThenBlocks(t *testing.T) {
	g := newConnGuard(3, 1)

	if !g.allow() || !g.allow() || !g.allow() {
		t.Fatal("expected burst capacity of 3 to be allowed immediately")
	}
	if g.allow() {
		t.Fatal("expected 4th immediate attempt to be denied")
	}
}

func TestConnGuardRefillsOverTime(t *testing.T) {
	g := newConnGuard(1, 1)
	if !g.allow() {
		t.Fatal("expected first attempt to be allowed")
	}
	if g.allow() {
		t.Fatal("expected immediate second attempt to be denied before refill")
	}

	// Simulate one second elapsing without a real sleep.
	g.lastRefill = g.lastRefill.Add(-1 * time.Second)
	if !g.allow() {
		t.Fatal("expected a token to have refilled after one second")
	}
}
