// Package proctor turns client-observable integrity signals (tab switches, focus
// loss, clipboard and context-menu attempts) into counted violations.
//
// This is a deterrence and UX feature. A client can always withhold signals, so
// nothing here is a security boundary.
package proctor

import (
	"errors"
	"fmt"
	"time"
)

// SignalKind classifies an observed signal.
type SignalKind string

const (
	SignalVisibilityHidden SignalKind = "visibility_hidden"
	SignalFocusLost        SignalKind = "focus_lost"
	SignalCopy             SignalKind = "copy"
	SignalPaste            SignalKind = "paste"
	SignalCut              SignalKind = "cut"
	SignalContextMenu      SignalKind = "context_menu"
)

var kinds = map[SignalKind]struct {
	label     string
	blockable bool
}{
	SignalVisibilityHidden: {"Tab switch detected!", false},
	SignalFocusLost:        {"Window focus lost!", false},
	SignalCopy:             {"Copying is not allowed!", true},
	SignalPaste:            {"Pasting is not allowed!", true},
	SignalCut:              {"Cutting is not allowed!", true},
	SignalContextMenu:      {"Right-click is disabled!", true},
}

// ErrUnknownKind is returned for signal kinds outside the known set.
var ErrUnknownKind = errors.New("unknown signal kind")

// ParseKind validates a wire value.
func ParseKind(s string) (SignalKind, error) {
	k := SignalKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w %q", ErrUnknownKind, s)
	}
	return k, nil
}

// Valid reports whether k is a known kind.
func (k SignalKind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// Blockable reports whether the client must also suppress the browser's
// default action (clipboard and context menu).
func (k SignalKind) Blockable() bool {
	return kinds[k].blockable
}

// Signal is one observation from the client.
type Signal struct {
	Kind SignalKind
	At   time.Time
}

// Disposition is what a subscriber decided about a signal.
type Disposition struct {
	// Counted is false when the signal arrived outside an active session.
	Counted   bool   `json:"counted"`
	Block     bool   `json:"block"`
	Count     int    `json:"count"`
	Threshold int    `json:"threshold"`
	Warning   string `json:"warning,omitempty"`
	// Tripped is true for the signal that reached the threshold.
	Tripped bool `json:"tripped"`
}

// Handler receives signals from a Source.
type Handler func(Signal) Disposition

// Source delivers signals to subscribers. A session subscribes when it starts
// and unsubscribes when it ends.
type Source interface {
	Subscribe(h Handler) (unsubscribe func())
}

// Warning formats the message shown to the candidate for the count-th violation.
func Warning(kind SignalKind, count, threshold int) string {
	label := kinds[kind].label
	if label == "" {
		label = "Suspicious activity detected!"
	}
	return fmt.Sprintf("%s (Warning %d/%d)", label, count, threshold)
}
