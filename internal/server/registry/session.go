package registry

import (
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/protocol"
	"github.com/google/uuid"
)

// Outbox accepts frames for asynchronous delivery to one connection.
// Send must not block; it reports false when the frame was dropped.
type Outbox interface {
	Send(f protocol.Frame) bool
}

// Session is one authenticated connection as seen by the registry.
type Session struct {
	ID           uuid.UUID
	Username     string
	Host         string
	Port         int
	ListenerPort int
	StartedAt    time.Time

	out   Outbox
	alive atomic.Bool
}

func NewSession(username, host string, port, listenerPort int, out Outbox) *Session {
	s := &Session{
		ID:           uuid.New(),
		Username:     username,
		Host:         host,
		Port:         port,
		ListenerPort: listenerPort,
		out:          out,
	}
	s.alive.Store(true)
	return s
}

// Send queues f unless the session is dead. A refused frame marks the
// session dead.
func (s *Session) Send(f protocol.Frame) bool {
	if !s.alive.Load() {
		return false
	}
	if !s.out.Send(f) {
		s.alive.Store(false)
		return false
	}
	return true
}

func (s *Session) Alive() bool { return s.alive.Load() }

func (s *Session) MarkDead() { s.alive.Store(false) }

// Info is a point-in-time copy of a session for reporting.
type Info struct {
	ID           uuid.UUID
	Username     string
	Host         string
	Port         int
	ListenerPort int
	StartedAt    time.Time
}

func (s *Session) info() Info {
	return Info{
		ID:           s.ID,
		Username:     s.Username,
		Host:         s.Host,
		Port:         s.Port,
		ListenerPort: s.ListenerPort,
		StartedAt:    s.StartedAt,
	}
}
