package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/kbukum/whisper-server/component"
)

// Start starts c and stops it when the test ends.
func Start[C component.Component](t testing.TB, c C) C {
	t.Helper()
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start %s: %v", c.Name(), err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.Stop(ctx); err != nil {
			t.Errorf("stop %s: %v", c.Name(), err)
		}
	})
	return c
}

// Eventually polls cond until it holds or the timeout elapses.
func Eventually(t testing.TB, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before timeout")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
