package session

import "sync"

// Scope holds releases acquired for one session. Close runs them once, in
// reverse order. Acquiring on a closed scope releases immediately.
type Scope struct {
	mu       sync.Mutex
	releases []func()
	closed   bool
}

func (s *Scope) Acquire(release func()) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		release()
		return false
	}
	s.releases = append(s.releases, release)
	s.mu.Unlock()
	return true
}

func (s *Scope) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	releases := s.releases
	s.releases = nil
	s.mu.Unlock()

	for i := len(releases) - 1; i >= 0; i-- {
		releases[i]()
	}
}

func (s *Scope) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
