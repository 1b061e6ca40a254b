package websocket

import (
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/proctor"
)

// Action is a client -> server message type.
type Action string

const (
	ActionPing            Action = "ping"
	ActionState           Action = "state"
	ActionStart           Action = "start"
	ActionSelect          Action = "select"
	ActionClear           Action = "clear"
	ActionMark            Action = "mark"
	ActionGoTo            Action = "goto"
	ActionNext            Action = "next"
	ActionPrev            Action = "prev"
	ActionRequestFinalize Action = "request_finalize"
	ActionCancelFinalize  Action = "cancel_finalize"
	ActionConfirmFinalize Action = "confirm_finalize"
	ActionSignal          Action = "signal"
)

// Request is every client message. Only the fields of the action are read.
type Request struct {
	Action Action `json:"action" binding:"required"`
	Option *int   `json:"option,omitempty" binding:"omitempty,min=0"`
	Index  *int   `json:"index,omitempty" binding:"omitempty,min=0"`
	Kind   string `json:"kind,omitempty" binding:"omitempty,signal_kind"`
}

// Event is a server -> client message type.
type Event string

const (
	EventPong      Event = "pong"
	EventState     Event = "state"
	EventTick      Event = "tick"
	EventWarning   Event = "warning"
	EventSignalAck Event = "signal_ack"
	EventFinalized Event = "finalized"
	EventError     Event = "error"
)

type PongResponse struct {
	Event Event `json:"event"`
}

// StateResponse answers every state-changing action.
type StateResponse struct {
	Event   Event              `json:"event"`
	Applied bool               `json:"applied"`
	State   model.SessionState `json:"state"`
}

type TickResponse struct {
	Event            Event  `json:"event"`
	RemainingSeconds int    `json:"remaining_seconds"`
	RemainingDisplay string `json:"remaining_display"`
}

// WarningResponse is pushed when a counted violation is recorded.
type WarningResponse struct {
	Event       Event               `json:"event"`
	Kind        proctor.SignalKind  `json:"kind"`
	Disposition proctor.Disposition `json:"disposition"`
}

// SignalAckResponse tells the client whether to suppress the default action
// of the reported signal (copy, paste and the like).
type SignalAckResponse struct {
	Event       Event               `json:"event"`
	Kind        proctor.SignalKind  `json:"kind"`
	Disposition proctor.Disposition `json:"disposition"`
}

type FinalizedResponse struct {
	Event  Event        `json:"event"`
	Result model.Result `json:"result"`
}

type ErrorResponse struct {
	Event  Event             `json:"event"`
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}
