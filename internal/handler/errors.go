package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/proctor"
	"github.com/stemsi/exstem-proctor/internal/report"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
)

// failFromError maps service errors to response codes. Unknown errors are
// logged and reported as internal.
func failFromError(c *gin.Context, log zerolog.Logger, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).
			Str("path", c.FullPath()).
			Str("request_id", response.RequestID(c)).
			Str("session_id", c.Param("session_id")).
			Msg("Request failed")
	}
	response.Fail(c, status, code)
}

func classify(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, service.ErrExamNotFound):
		return http.StatusNotFound, response.ErrNotFound
	case errors.Is(err, service.ErrExamNotAvailable):
		return http.StatusConflict, response.ErrExamNotAvailable
	case errors.Is(err, service.ErrNoQuestions):
		return http.StatusConflict, response.ErrNoQuestions
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound, response.ErrSessionNotFound
	case errors.Is(err, service.ErrNotSessionOwner):
		return http.StatusForbidden, response.ErrNotSessionOwner
	case errors.Is(err, service.ErrSessionNotFinalized):
		return http.StatusConflict, response.ErrSessionNotDone
	case errors.Is(err, proctor.ErrUnknownKind):
		return http.StatusBadRequest, response.ErrValidation
	case errors.Is(err, report.ErrUnknownFormat):
		return http.StatusBadRequest, response.ErrUnknownFormat
	case errors.Is(err, report.ErrRenderFailed):
		return http.StatusInternalServerError, response.ErrReportUnavailable
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}
