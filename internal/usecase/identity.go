package usecase

import (
	"sync"
)

// SessionIdentity is an IdentityProvider backed by explicit SignIn and
// SignOut calls from the composition root, typically made when a client
// connection authenticates and when it goes away.
type SessionIdentity struct {
	mu        sync.Mutex
	current   *CurrentUser
	nextID    int
	listeners map[int]func(*CurrentUser)
}

func NewSessionIdentity() *SessionIdentity {
	return &SessionIdentity{
		listeners: make(map[int]func(*CurrentUser)),
	}
}

func (s *SessionIdentity) CurrentUser() (*CurrentUser, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, false
	}
	return s.current, true
}

func (s *SessionIdentity) OnChange(fn func(*CurrentUser)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *SessionIdentity) SignIn(user *CurrentUser) {
	s.set(user)
}

func (s *SessionIdentity) SignOut() {
	s.set(nil)
}

func (s *SessionIdentity) set(user *CurrentUser) {
	s.mu.Lock()
	s.current = user
	fns := make([]func(*CurrentUser), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	// Listeners run outside the lock; they are free to call back into
	// CurrentUser.
	for _, fn := range fns {
		fn(user)
	}
}
