package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/exstem-proctor/internal/response"
)

// ContextKeySessionID is the Gin context key for the parsed :session_id param.
const ContextKeySessionID = "session_id"

// ParseSessionID rejects requests whose :session_id is not a UUID and stores
// the parsed value for handlers.
func ParseSessionID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("session_id"))
		if err != nil {
			response.AbortFail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}
		c.Set(ContextKeySessionID, id)
		c.Next()
	}
}

// GetSessionID returns the session ID set by ParseSessionID.
func GetSessionID(c *gin.Context) uuid.UUID {
	id, _ := c.Get(ContextKeySessionID)
	v, _ := id.(uuid.UUID)
	return v
}
