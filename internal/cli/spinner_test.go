package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestSpinnerWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	s := newSpinnerWithContext(ctx, "Testing with context...")
	s.Start()

	cancel()
	time.Sleep(100 * time.Millisecond)

	if !s.Cancelled() {
		t.Error("Spinner should be cancelled after context cancellation")
	}
}

func TestSpinnerWithTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	s := newSpinnerWithContext(ctx, "Testing with timeout...")
	s.Start()
	time.Sleep(100 * time.Millisecond)

	if !s.Cancelled() {
		t.Error("Spinner should be cancelled after context timeout")
	}
}

func TestSpinnerStopIsIdempotent(t *testing.T) {
	s := newSpinnerWithContext(context.Background(), "Testing idempotent stop...")
	s.Start()

	s.Stop()
	s.Stop()
	s.Stop()
}

func TestSpinnerStopWithoutStart(t *testing.T) {
	s := newSpinnerWithContext(context.Background(), "never started")
	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on a spinner that was never started")
	}
}

func TestSpinnerAnimates(t *testing.T) {
	var buf bytes.Buffer
	s := newSpinnerWithContext(context.Background(), "Ordering")
	s.out = &buf
	s.animate = true
	s.Start()
	time.Sleep(200 * time.Millisecond)
	s.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !strings.Contains(buf.String(), "Ordering") {
		t.Errorf("spinner output %q should contain the message", buf.String())
	}
}

func TestSpinnerQuietWithoutTerminal(t *testing.T) {
	var buf bytes.Buffer
	s := newSpinnerWithContext(context.Background(), "Ordering")
	s.out = &buf
	s.animate = false
	s.Start()
	time.Sleep(200 * time.Millisecond)
	s.StopWithSuccess("done")

	if buf.Len() != 0 {
		t.Errorf("spinner wrote %q without a terminal", buf.String())
	}
}
