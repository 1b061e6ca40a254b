package proctor

import (
	"sync"
	"time"
)

// Emitter is an in-process Source. Transports (WebSocket, REST) call Emit for
// each signal a client reports; tests call it directly.
type Emitter struct {
	mu       sync.Mutex
	nextID   int
	handlers map[int]Handler
	now      func() time.Time
}

// NewEmitter creates an Emitter with no subscribers.
func NewEmitter() *Emitter {
	return &Emitter{
		handlers: make(map[int]Handler),
		now:      time.Now,
	}
}

// Subscribe registers h until the returned function is called.
func (e *Emitter) Subscribe(h Handler) func() {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.handlers[id] = h
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.handlers, id)
		e.mu.Unlock()
	}
}

// Emit delivers a signal of kind to every current subscriber and returns their
// dispositions. With no subscribers the signal is dropped and the result is empty.
// Handlers run without the emitter lock held, so they may unsubscribe.
func (e *Emitter) Emit(kind SignalKind) []Disposition {
	e.mu.Lock()
	handlers := make([]Handler, 0, len(e.handlers))
	for _, h := range e.handlers {
		handlers = append(handlers, h)
	}
	e.mu.Unlock()

	sig := Signal{Kind: kind, At: e.now()}
	out := make([]Disposition, 0, len(handlers))
	for _, h := range handlers {
		out = append(out, h(sig))
	}
	return out
}

// Subscribers returns the number of live subscriptions.
func (e *Emitter) Subscribers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handlers)
}
