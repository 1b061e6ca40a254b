package exam

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/clock"
	"github.com/stemsi/exstem-proctor/internal/proctor"
	"github.com/stemsi/exstem-proctor/internal/scoring"
)

type options struct {
	id           uuid.UUID
	candidateID  int
	clock        clock.Clock
	signals      proctor.Source
	threshold    int
	policy       scoring.Policy
	timeLimit    time.Duration
	tickInterval time.Duration
	log          zerolog.Logger
}

// Option configures a Session.
type Option func(*options)

// WithClock sets the time source. Defaults to clock.Real.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithSignals sets the proctoring signal source. Without one, no violations
// are ever recorded.
func WithSignals(src proctor.Source) Option {
	return func(o *options) { o.signals = src }
}

// WithThreshold sets the violation count that force-finalizes the session.
func WithThreshold(n int) Option {
	return func(o *options) { o.threshold = n }
}

// WithPolicy sets the banding and pass-mark policy.
func WithPolicy(p scoring.Policy) Option {
	return func(o *options) { o.policy = p }
}

// WithTimeLimit overrides the exam's DurationMinutes. Sub-second parts are dropped.
func WithTimeLimit(d time.Duration) Option {
	return func(o *options) { o.timeLimit = d }
}

// WithTickInterval sets how often the countdown ticks. Each tick removes one
// second regardless of the interval.
func WithTickInterval(d time.Duration) Option {
	return func(o *options) { o.tickInterval = d }
}

func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

func WithSessionID(id uuid.UUID) Option {
	return func(o *options) { o.id = id }
}

// WithCandidate records who owns the session. It is copied into the Result.
func WithCandidate(id int) Option {
	return func(o *options) { o.candidateID = id }
}
