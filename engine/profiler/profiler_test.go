package profiler

import (
	"testing"
	"time"
)

func TestTickLogsOncePerInterval(t *testing.T) {
	clock := time.Unix(100, 0)
	p := NewProfiler(time.Second)
	p.lastTime = clock
	p.now = func() time.Time { return clock }

	for i := range 5 {
		clock = clock.Add(100 * time.Millisecond)
		if p.Tick(uint64(i * 3)) {
			t.Fatalf("tick %d logged before the interval elapsed", i)
		}
	}
	clock = clock.Add(600 * time.Millisecond)
	if !p.Tick(18) {
		t.Fatal("tick after the interval should log")
	}
	if p.frameCount != 0 || p.lastDispatches != 18 || !p.lastTime.Equal(clock) {
		t.Errorf("state not reset: frames %d, dispatches %d", p.frameCount, p.lastDispatches)
	}
}

func TestDefaultInterval(t *testing.T) {
	if p := NewProfiler(0); p.updateInterval != time.Second {
		t.Errorf("interval = %v, want 1s", p.updateInterval)
	}
}
