package presence

import "time"

// DefaultQuiescence is how long the agent must stay silent before the
// speaking signal drops.
const DefaultQuiescence = 300 * time.Millisecond

type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it through
// RealAfterFunc; tests substitute a manual clock.
type AfterFunc func(d time.Duration, f func()) Timer

func RealAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// speaking is the debounced speaking signal. set and clear are its only
// mutators. Every mutation bumps gen so a timer that already fired on another
// goroutine cannot lower a value that was raised again meanwhile.
type speaking struct {
	value   bool
	pending Timer
	gen     uint64
}

// set cancels any pending quiescence timer and stores v.
func (s *speaking) set(v bool) bool {
	s.stopPending()
	changed := s.value != v
	s.value = v
	return changed
}

// clear arms the quiescence timer; when it fires, fire receives the
// generation it was armed for.
func (s *speaking) clear(after AfterFunc, window time.Duration, fire func(gen uint64)) {
	s.stopPending()
	gen := s.gen
	s.pending = after(window, func() { fire(gen) })
}

// expire lowers the signal if gen is still current.
func (s *speaking) expire(gen uint64) bool {
	if gen != s.gen || s.pending == nil {
		return false
	}
	s.pending = nil
	return s.set(false)
}

func (s *speaking) stopPending() {
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	s.gen++
}
