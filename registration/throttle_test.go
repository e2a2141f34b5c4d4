package registration

import (
	"testing"
	"time"
)

func TestThrottle_LeadAndTrail(t *testing.T) {
	th := newThrottle[int](20 * time.Millisecond)

	if v, ok := th.offer(1); !ok || v != 1 {
		t.Fatalf("lead: got %d %v, want 1 true", v, ok)
	}
	if _, ok := th.offer(2); ok {
		t.Fatal("second value passed inside the window")
	}
	if _, ok := th.offer(3); ok {
		t.Fatal("third value passed inside the window")
	}

	select {
	case <-th.C():
	case <-time.After(time.Second):
		t.Fatal("window never closed")
	}
	if v, ok := th.fire(); !ok || v != 3 {
		t.Fatalf("trail: got %d %v, want 3 true", v, ok)
	}

	// The trailing value opened a new window that closes empty.
	<-th.C()
	if _, ok := th.fire(); ok {
		t.Fatal("empty window emitted a value")
	}
	if th.C() != nil {
		t.Error("timer still armed after an empty window")
	}

	if v, ok := th.offer(4); !ok || v != 4 {
		t.Errorf("new burst lead: got %d %v", v, ok)
	}
}

func TestThrottle_Stop(t *testing.T) {
	th := newThrottle[int](time.Hour)
	th.offer(1)
	th.offer(2)
	th.stop()
	if th.C() != nil {
		t.Fatal("stop left the timer armed")
	}
	if v, ok := th.offer(3); !ok || v != 3 {
		t.Errorf("after stop: got %d %v, want 3 true", v, ok)
	}
}

func TestThrottle_ZeroWindow(t *testing.T) {
	th := newThrottle[int](0)
	for i := range 3 {
		if v, ok := th.offer(i); !ok || v != i {
			t.Errorf("offer %d: got %d %v", i, v, ok)
		}
	}
}

func TestSlot(t *testing.T) {
	s := newSlot()
	if !s.tryAcquire() {
		t.Fatal("first acquire failed")
	}
	if s.tryAcquire() {
		t.Fatal("second acquire succeeded")
	}
	if !s.held() {
		t.Error("held: got false")
	}
	s.release()
	s.release()
	if s.held() || !s.tryAcquire() {
		t.Error("slot not free after release")
	}
}
