package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/exam"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/proctor"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/validator"
	ws "github.com/stemsi/exstem-proctor/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler bridges a candidate's browser to their exam session: the browser
// reports proctoring signals and drives the session, the server pushes the
// countdown, warnings and the final Result.
type WSHandler struct {
	sessions *service.SessionService
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessions *service.SessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/sessions/:session_id/stream?token=
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	sessionID := middleware.GetSessionID(c)

	// Ownership is checked before the upgrade so failures get a JSON error.
	state, err := h.sessions.State(sessionID, claims.UserID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.NewConn(raw)
	defer conn.Close()

	log := h.log.With().
		Int("candidate_id", claims.UserID).
		Str("session_id", sessionID.String()).
		Logger()

	cancel, err := h.sessions.Subscribe(sessionID, claims.UserID, func(ev exam.Event) {
		if msg := eventMessage(ev); msg != nil {
			_ = conn.Send(msg)
		}
	})
	if err != nil {
		_ = conn.Send(errorMessage(err))
		return
	}
	defer cancel()

	log.Info().Msg("Candidate connected")
	_ = conn.Send(ws.StateResponse{Event: ws.EventState, State: state})

	for {
		var req ws.Request
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("Unexpected close")
			} else {
				log.Debug().Msg("Connection closed")
			}
			return
		}

		if fields := validator.Struct(&req); fields != nil {
			_ = conn.SendError(string(response.ErrInvalidPayload), fields)
			continue
		}

		if reply := h.dispatch(sessionID, claims.UserID, &req); reply != nil {
			if err := conn.Send(reply); err != nil {
				return
			}
		}
	}
}

// dispatch applies one client action and returns the direct reply.
func (h *WSHandler) dispatch(id uuid.UUID, candidateID int, req *ws.Request) any {
	var (
		out service.Outcome
		err error
	)

	switch req.Action {
	case ws.ActionPing:
		return ws.PongResponse{Event: ws.EventPong}
	case ws.ActionSignal:
		kind := proctor.SignalKind(req.Kind)
		d, err := h.sessions.Signal(id, candidateID, kind)
		if err != nil {
			return errorMessage(err)
		}
		return ws.SignalAckResponse{Event: ws.EventSignalAck, Kind: kind, Disposition: d}
	case ws.ActionState:
		st, err := h.sessions.State(id, candidateID)
		if err != nil {
			return errorMessage(err)
		}
		return ws.StateResponse{Event: ws.EventState, State: st}
	case ws.ActionStart:
		out, err = h.sessions.Start(id, candidateID)
	case ws.ActionSelect:
		if req.Option == nil {
			return ws.ErrorResponse{Event: ws.EventError, Error: "option is required"}
		}
		out, err = h.sessions.SelectAnswer(id, candidateID, *req.Option)
	case ws.ActionClear:
		out, err = h.sessions.ClearAnswer(id, candidateID)
	case ws.ActionMark:
		out, err = h.sessions.ToggleMark(id, candidateID)
	case ws.ActionGoTo:
		if req.Index == nil {
			return ws.ErrorResponse{Event: ws.EventError, Error: "index is required"}
		}
		out, err = h.sessions.GoTo(id, candidateID, *req.Index)
	case ws.ActionNext:
		out, err = h.sessions.Next(id, candidateID)
	case ws.ActionPrev:
		out, err = h.sessions.Prev(id, candidateID)
	case ws.ActionRequestFinalize:
		out, err = h.sessions.RequestFinalize(id, candidateID)
	case ws.ActionCancelFinalize:
		out, err = h.sessions.CancelFinalize(id, candidateID)
	case ws.ActionConfirmFinalize:
		// The finalized event carries the Result.
		out, err = h.sessions.ConfirmFinalize(id, candidateID)
	default:
		return ws.ErrorResponse{Event: ws.EventError, Error: "unknown action: " + string(req.Action)}
	}

	if err != nil {
		return errorMessage(err)
	}
	return ws.StateResponse{Event: ws.EventState, Applied: out.Applied, State: out.State}
}

// eventMessage converts a session event into its wire message.
func eventMessage(ev exam.Event) any {
	switch ev.Kind {
	case exam.EventTick:
		return ws.TickResponse{Event: ws.EventTick, RemainingSeconds: ev.RemainingSeconds, RemainingDisplay: ev.RemainingDisplay}
	case exam.EventWarning:
		return ws.WarningResponse{Event: ws.EventWarning, Kind: ev.Signal, Disposition: ev.Disposition}
	case exam.EventFinalized:
		if ev.Result == nil {
			return nil
		}
		return ws.FinalizedResponse{Event: ws.EventFinalized, Result: *ev.Result}
	}
	return nil
}

func errorMessage(err error) ws.ErrorResponse {
	_, code := classify(err)
	return ws.ErrorResponse{Event: ws.EventError, Error: string(code)}
}
