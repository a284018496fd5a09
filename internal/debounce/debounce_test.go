package debounce_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeblew999/geofield/internal/debounce"
)

func TestTrailingEdgeCoalesces(t *testing.T) {
	var calls atomic.Int32
	var last atomic.Int32
	var current atomic.Int32

	d := debounce.New(150*time.Millisecond, func() {
		calls.Add(1)
		last.Store(current.Load())
	})

	for i := 1; i <= 10; i++ {
		current.Store(int32(i))
		d.Trigger()
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(300 * time.Millisecond)

	if got := calls.Load(); got != 1 {
		t.Fatalf("calls=%d, want 1", got)
	}
	if got := last.Load(); got != 10 {
		t.Fatalf("sampled=%d, want 10", got)
	}
}

func TestSeparateBurstsFireSeparately(t *testing.T) {
	var calls atomic.Int32
	d := debounce.New(20*time.Millisecond, func() { calls.Add(1) })

	d.Trigger()
	time.Sleep(80 * time.Millisecond)
	d.Trigger()
	time.Sleep(80 * time.Millisecond)

	if got := calls.Load(); got != 2 {
		t.Fatalf("calls=%d, want 2", got)
	}
}

func TestStopCancelsPending(t *testing.T) {
	var calls atomic.Int32
	d := debounce.New(20*time.Millisecond, func() { calls.Add(1) })

	d.Trigger()
	d.Stop()
	d.Trigger()
	time.Sleep(80 * time.Millisecond)

	if got := calls.Load(); got != 0 {
		t.Fatalf("calls=%d, want 0", got)
	}
}

func TestFlush(t *testing.T) {
	var calls atomic.Int32
	d := debounce.New(time.Hour, func() { calls.Add(1) })

	if d.Flush() {
		t.Fatal("Flush reported a pending call on an idle debouncer")
	}
	d.Trigger()
	if !d.Pending() {
		t.Fatal("expected a pending call")
	}
	if !d.Flush() {
		t.Fatal("Flush did not find the pending call")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls=%d, want 1", got)
	}
	if d.Pending() {
		t.Fatal("still pending after Flush")
	}
}
