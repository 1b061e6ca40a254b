// Package clock abstracts the tick source behind exam countdowns so sessions can
// run on wall-clock time in production and on explicitly advanced time in tests.
package clock

import (
	"sync"
	"time"
)

// Clock provides the current time and recurring callbacks.
type Clock interface {
	Now() time.Time
	// Every calls fn once per interval until stop is called. stop is idempotent
	// and safe to call from inside fn.
	Every(interval time.Duration, fn func()) (stop func())
}

// Real is the wall clock. Each Every call owns one goroutine, which exits when
// stop is called.
type Real struct{}

// Now returns time.Now().
func (Real) Now() time.Time {
	return time.Now()
}

// Every starts a ticker goroutine.
func (Real) Every(interval time.Duration, fn func()) func() {
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	var once sync.Once

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				// A tick and stop can be ready together; stop wins.
				select {
				case <-done:
					return
				default:
				}
				fn()
			}
		}
	}()

	return func() {
		once.Do(func() { close(done) })
	}
}
