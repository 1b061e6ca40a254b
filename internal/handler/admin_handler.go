package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
)

// AdminHandler handles administrator endpoints for results and sessions.
type AdminHandler struct {
	sessions *service.SessionService
	monitor  *service.MonitorService
	log      zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(sessions *service.SessionService, monitor *service.MonitorService, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		sessions: sessions,
		monitor:  monitor,
		log:      log.With().Str("component", "admin_handler").Logger(),
	}
}

// ListResults godoc
// GET /api/v1/admin/exams/:id/results?page=&per_page=
func (h *AdminHandler) ListResults(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	p := response.NewPagination(page, perPage, 0)

	results, total, err := h.monitor.ListResults(c.Request.Context(), examID, p.PerPage, p.Offset())
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	if results == nil {
		results = []model.ResultSummary{}
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": results}, response.NewPagination(p.Page, p.PerPage, total))
}

// FinalizeSession godoc
// POST /api/v1/admin/sessions/:session_id/finalize
// Ends a candidate's attempt immediately. It is scored like a manual finish.
func (h *AdminHandler) FinalizeSession(c *gin.Context) {
	id := middleware.GetSessionID(c)
	out, err := h.sessions.Finalize(id)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}

	h.log.Info().
		Str("session_id", id.String()).
		Int("admin_id", middleware.GetClaims(c).UserID).
		Bool("applied", out.Applied).
		Msg("Session finalized by administrator")
	response.Success(c, http.StatusOK, out)
}
