package handler

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/proctor"
	"github.com/stemsi/exstem-proctor/internal/report"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/validator"
)

// SessionHandler handles the candidate-facing exam endpoints.
type SessionHandler struct {
	sessions *service.SessionService
	exams    *service.ExamService
	log      zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *service.SessionService, exams *service.ExamService, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		exams:    exams,
		log:      log.With().Str("component", "session_handler").Logger(),
	}
}

// GetExamPaper godoc
// GET /api/v1/candidate/exams/:exam_id/paper
// Returns the exam without its answer key, from Redis when possible.
func (h *SessionHandler) GetExamPaper(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	paper, err := h.exams.GetPaper(c.Request.Context(), examID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, paper)
}

// OpenSession godoc
// POST /api/v1/candidate/exams/:exam_id/sessions
// Returns the candidate's unfinished session for the exam or opens a new one
// on the instructions screen.
func (h *SessionHandler) OpenSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	state, err := h.sessions.Open(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"session": state})
}

// GetState godoc
// GET /api/v1/candidate/sessions/:session_id
// Covers page reloads: answers, marks, current question and remaining time.
func (h *SessionHandler) GetState(c *gin.Context) {
	state, err := h.sessions.State(middleware.GetSessionID(c), middleware.GetClaims(c).UserID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": state})
}

// GetSessionPaper godoc
// GET /api/v1/candidate/sessions/:session_id/paper
func (h *SessionHandler) GetSessionPaper(c *gin.Context) {
	paper, err := h.sessions.Paper(middleware.GetSessionID(c), middleware.GetClaims(c).UserID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, paper)
}

// Start godoc
// POST /api/v1/candidate/sessions/:session_id/start
func (h *SessionHandler) Start(c *gin.Context) {
	h.respond(c, func(id uuid.UUID, cid int) (service.Outcome, error) {
		return h.sessions.Start(id, cid)
	})
}

// SelectAnswer godoc
// PUT /api/v1/candidate/sessions/:session_id/answer
func (h *SessionHandler) SelectAnswer(c *gin.Context) {
	var req model.SelectAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	h.respond(c, func(id uuid.UUID, cid int) (service.Outcome, error) {
		return h.sessions.SelectAnswer(id, cid, *req.Option)
	})
}

// ClearAnswer godoc
// DELETE /api/v1/candidate/sessions/:session_id/answer
func (h *SessionHandler) ClearAnswer(c *gin.Context) {
	h.respond(c, func(id uuid.UUID, cid int) (service.Outcome, error) {
		return h.sessions.ClearAnswer(id, cid)
	})
}

// ToggleMark godoc
// POST /api/v1/candidate/sessions/:session_id/mark
func (h *SessionHandler) ToggleMark(c *gin.Context) {
	h.respond(c, func(id uuid.UUID, cid int) (service.Outcome, error) {
		return h.sessions.ToggleMark(id, cid)
	})
}

// Navigate godoc
// POST /api/v1/candidate/sessions/:session_id/navigate
// Body is {"index": n} or {"direction": "next"|"prev"}.
func (h *SessionHandler) Navigate(c *gin.Context) {
	var req model.NavigateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	h.respond(c, func(id uuid.UUID, cid int) (service.Outcome, error) {
		switch {
		case req.Index != nil:
			return h.sessions.GoTo(id, cid, *req.Index)
		case req.Direction == "next":
			return h.sessions.Next(id, cid)
		default:
			return h.sessions.Prev(id, cid)
		}
	})
}

// RequestFinalize godoc
// POST /api/v1/candidate/sessions/:session_id/finalize/request
func (h *SessionHandler) RequestFinalize(c *gin.Context) {
	h.respond(c, func(id uuid.UUID, cid int) (service.Outcome, error) {
		return h.sessions.RequestFinalize(id, cid)
	})
}

// CancelFinalize godoc
// POST /api/v1/candidate/sessions/:session_id/finalize/cancel
func (h *SessionHandler) CancelFinalize(c *gin.Context) {
	h.respond(c, func(id uuid.UUID, cid int) (service.Outcome, error) {
		return h.sessions.CancelFinalize(id, cid)
	})
}

// ConfirmFinalize godoc
// POST /api/v1/candidate/sessions/:session_id/finalize/confirm
// Ends the attempt; the response carries the Result when one exists.
func (h *SessionHandler) ConfirmFinalize(c *gin.Context) {
	h.respond(c, func(id uuid.UUID, cid int) (service.Outcome, error) {
		return h.sessions.ConfirmFinalize(id, cid)
	})
}

// ReportSignal godoc
// POST /api/v1/candidate/sessions/:session_id/signals
// REST fallback for clients without a WebSocket.
func (h *SessionHandler) ReportSignal(c *gin.Context) {
	var req model.SignalRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	d, err := h.sessions.Signal(middleware.GetSessionID(c), middleware.GetClaims(c).UserID, proctor.SignalKind(req.Kind))
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"disposition": d})
}

// GetResult godoc
// GET /api/v1/candidate/sessions/:session_id/result
func (h *SessionHandler) GetResult(c *gin.Context) {
	res, err := h.sessions.Result(middleware.GetSessionID(c), middleware.GetClaims(c).UserID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": res})
}

// DownloadReport godoc
// GET /api/v1/candidate/sessions/:session_id/report?format=pdf|xlsx
// The report is rendered into memory first so a failure still gets a JSON error.
func (h *SessionHandler) DownloadReport(c *gin.Context) {
	format, err := report.ParseFormat(c.Query("format"))
	if err != nil {
		failFromError(c, h.log, err)
		return
	}

	id, cid := middleware.GetSessionID(c), middleware.GetClaims(c).UserID
	res, err := h.sessions.Result(id, cid)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}

	var buf bytes.Buffer
	if err := h.sessions.Report(id, cid, format, &buf); err != nil {
		failFromError(c, h.log, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+report.Filename(res.ExamTitle, format)+`"`)
	c.Header("Content-Length", strconv.Itoa(buf.Len()))
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

// Retake godoc
// POST /api/v1/candidate/sessions/:session_id/retake
// Discards a finalized session and opens a fresh one for the same exam.
func (h *SessionHandler) Retake(c *gin.Context) {
	state, err := h.sessions.Retake(c.Request.Context(), middleware.GetSessionID(c), middleware.GetClaims(c).UserID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"session": state})
}

// CloseSession godoc
// DELETE /api/v1/candidate/sessions/:session_id
// The candidate navigated away: timers stop and nothing is scored.
func (h *SessionHandler) CloseSession(c *gin.Context) {
	if err := h.sessions.Close(middleware.GetSessionID(c), middleware.GetClaims(c).UserID); err != nil {
		failFromError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SessionHandler) respond(c *gin.Context, op func(id uuid.UUID, candidateID int) (service.Outcome, error)) {
	out, err := op(middleware.GetSessionID(c), middleware.GetClaims(c).UserID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, out)
}
