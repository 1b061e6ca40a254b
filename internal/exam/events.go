package exam

import (
	"time"

	"github.com/google/uuid"

	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/proctor"
)

// EventKind names what happened in a session.
type EventKind string

const (
	EventTick      EventKind = "tick"
	EventWarning   EventKind = "warning"
	EventFinalized EventKind = "finalized"
)

// Event is delivered to observers after the session lock is released. Seq is
// assigned under the lock, so it reflects the order in which the changes were
// applied even when delivery from different goroutines interleaves.
type Event struct {
	Seq       uint64
	Kind      EventKind
	SessionID uuid.UUID
	ExamID    uuid.UUID
	At        time.Time

	// tick
	RemainingSeconds int
	RemainingDisplay string

	// warning
	Signal      proctor.SignalKind
	Disposition proctor.Disposition

	// finalized
	Result *model.Result
}

// Observe registers fn for every subsequent event. fn must not block for long;
// it runs on whichever goroutine caused the event (the ticker, a transport
// handler, or a test). Calling the returned function stops delivery.
func (s *Session) Observe(fn func(Event)) func() {
	s.mu.Lock()
	s.nextObs++
	id := s.nextObs
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// emitLocked stamps ev and queues it for dispatch. Callers hold s.mu.
func (s *Session) emitLocked(ev Event) {
	s.seq++
	ev.Seq = s.seq
	ev.SessionID = s.id
	ev.ExamID = s.exam.ID
	ev.At = s.clock.Now()
	s.pending = append(s.pending, ev)
}

// unlock releases s.mu and then delivers queued events.
func (s *Session) unlock() {
	events := s.pending
	s.pending = nil
	var observers []func(Event)
	if len(events) > 0 {
		observers = make([]func(Event), 0, len(s.observers))
		for _, fn := range s.observers {
			observers = append(observers, fn)
		}
	}
	s.mu.Unlock()

	for _, ev := range events {
		for _, fn := range observers {
			fn(ev)
		}
	}
}
