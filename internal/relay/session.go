package relay

import (
	"sync"

	"github.com/google/uuid"

	"github.com/playontable/backend/internal/models"
)

// outboundBuffer sizes each session's send channel. A recipient that
// falls this far behind starts losing broadcasts until its write pump
// catches up or its disconnect path reaps it.
const outboundBuffer = 64

// Session is one connected participant. It holds a non-owning reference
// to at most one room and owns its outbound channel for its lifetime.
type Session struct {
	ID string

	mu     sync.Mutex
	room   *Room
	closed bool

	out  chan models.Envelope
	once sync.Once
}

func NewSession() *Session {
	return &Session{
		ID:  uuid.NewString(),
		out: make(chan models.Envelope, outboundBuffer),
	}
}

// Outbound is the channel drained by the connection's write pump. It is
// closed exactly once, by Close.
func (s *Session) Outbound() <-chan models.Envelope {
	return s.out
}

// Room returns the session's current room, or nil.
func (s *Session) Room() *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

// Send queues an envelope without blocking. It reports false when the
// buffer is full or the session is already closed; callers treat that
// as a dropped delivery, never an error.
func (s *Session) Send(env models.Envelope) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.out <- env:
		return true
	default:
		return false
	}
}

// Close tears the session down: exit the current room, then close the
// outbound channel so the write pump terminates. Runs at most once no
// matter which exit path calls it; reports whether this call did the
// teardown.
func (s *Session) Close() bool {
	first := false
	s.once.Do(func() {
		first = true
		if r := s.Room(); r != nil {
			r.Exit(s)
		}
		s.mu.Lock()
		s.closed = true
		close(s.out)
		s.mu.Unlock()
	})
	return first
}

func (s *Session) setRoom(r *Room) {
	s.mu.Lock()
	s.room = r
	s.mu.Unlock()
}

// clearRoom drops the back-reference only if it still points at r, so
// exiting a prior room cannot clobber a just-joined one.
func (s *Session) clearRoom(r *Room) {
	s.mu.Lock()
	if s.room == r {
		s.room = nil
	}
	s.mu.Unlock()
}
