package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) { Success(c, http.StatusOK, gin.H{"ok": true}) })

	serve := func(header string) (*httptest.ResponseRecorder, Response) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("X-Request-ID", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		var body Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		return w, body
	}

	t.Run("caller id is kept", func(t *testing.T) {
		w, body := serve("lb-7f3a.91_x")
		assert.Equal(t, "lb-7f3a.91_x", w.Header().Get("X-Request-ID"))
		assert.Equal(t, "lb-7f3a.91_x", body.Metadata.RequestID)
	})

	for name, header := range map[string]string{
		"missing":   "",
		"too long":  strings.Repeat("a", maxRequestIDLen+1),
		"log noise": "abc def\tlevel=fatal",
	} {
		t.Run(name+" id is replaced", func(t *testing.T) {
			w, body := serve(header)
			id := w.Header().Get("X-Request-ID")
			_, err := uuid.Parse(id)
			assert.NoError(t, err, id)
			assert.Equal(t, id, body.Metadata.RequestID)
		})
	}
}

func TestRequestIDOutsideMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Empty(t, RequestID(c))
}
