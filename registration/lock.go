package registration

// slot is a single-slot lock with no queueing: a second acquirer fails
// instead of waiting.
type slot chan struct{}

func newSlot() slot { return make(slot, 1) }

func (s slot) tryAcquire() bool {
	select {
	case s <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s slot) release() {
	select {
	case <-s:
	default:
	}
}

func (s slot) held() bool { return len(s) == 1 }
