package exam

import (
	"fmt"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// FormatRemaining renders seconds as M:SS. Negative input renders as 0:00.
func FormatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

func (s *Session) startTimerLocked() {
	s.stopTimer = s.clock.Every(s.tickInterval, s.tick)
}

// tick removes one second. Reaching zero finalizes with FinalizeTimeout, which
// also stops the timer, so no tick ever observes a negative value.
func (s *Session) tick() {
	s.mu.Lock()
	defer s.unlock()

	if !s.activeLocked() {
		return
	}

	if s.remaining > 0 {
		s.remaining--
	}
	s.emitLocked(Event{
		Kind:             EventTick,
		RemainingSeconds: s.remaining,
		RemainingDisplay: FormatRemaining(s.remaining),
	})

	if s.remaining == 0 {
		s.finalizeLocked(model.FinalizeTimeout)
	}
}
