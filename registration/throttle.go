package registration

import "time"

// throttle passes the first value of a burst through at once, then at most
// one value per window: the latest one offered while the window was open,
// emitted when it closes. The owner's select loop waits on C and calls fire.
type throttle[T any] struct {
	window     time.Duration
	timer      *time.Timer
	timerCh    <-chan time.Time
	pending    T
	hasPending bool
}

func newThrottle[T any](window time.Duration) *throttle[T] {
	return &throttle[T]{window: window}
}

// offer submits v. It returns v and true when v passes immediately.
func (th *throttle[T]) offer(v T) (T, bool) {
	if th.window <= 0 {
		return v, true
	}
	if th.timer == nil {
		th.start()
		return v, true
	}
	th.pending = v
	th.hasPending = true
	var zero T
	return zero, false
}

// C fires when the open window closes; nil when no window is open.
func (th *throttle[T]) C() <-chan time.Time {
	return th.timerCh
}

// fire closes the window. The trailing value, if any, is returned and
// opens the next window.
func (th *throttle[T]) fire() (T, bool) {
	th.timer = nil
	th.timerCh = nil
	var zero T
	if !th.hasPending {
		return zero, false
	}
	v := th.pending
	th.pending = zero
	th.hasPending = false
	th.start()
	return v, true
}

// stop drops any pending value and closes the window.
func (th *throttle[T]) stop() {
	if th.timer != nil {
		th.timer.Stop()
	}
	var zero T
	th.timer = nil
	th.timerCh = nil
	th.pending = zero
	th.hasPending = false
}

func (th *throttle[T]) start() {
	th.timer = time.NewTimer(th.window)
	th.timerCh = th.timer.C
}
