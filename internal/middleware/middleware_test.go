package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) response.ErrCode {
	t.Helper()
	var body response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	require.NotNil(t, body.Error)
	return body.Error.Code
}

func ok(c *gin.Context) { c.String(http.StatusOK, "ok") }

func TestRateLimiterAllowAndRefill(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "buckets are per key")

	now = now.Add(30 * time.Second)
	assert.False(t, rl.Allow("a"), "no refill before a full interval")

	now = now.Add(31 * time.Second)
	assert.True(t, rl.Allow("a"))
}

func TestRateLimiterDropsIdleVisitors(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, time.Second)
	rl.now = func() time.Time { return now }

	rl.Allow("a")
	rl.Allow("b")
	require.Len(t, rl.visitors, 2)

	now = now.Add(10 * time.Second)
	rl.Allow("c")
	assert.Len(t, rl.visitors, 1)
}

func TestRateLimiterByCandidate(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute).ByCandidate()

	r := gin.New()
	r.Use(func(c *gin.Context) {
		id := 7
		if c.GetHeader("X-Candidate") == "8" {
			id = 8
		}
		c.Set(ContextKeyClaims, &service.Claims{TokenType: service.TokenTypeCandidate, UserID: id})
	})
	r.GET("/", rl.Middleware(), ok)

	do := func(candidate string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Candidate", candidate)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, do("7").Code)
	w := do("7")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, response.ErrRateLimitExceeded, errorCode(t, w))
	// Same IP, different candidate.
	assert.Equal(t, http.StatusOK, do("8").Code)
}

func TestRequireTokenType(t *testing.T) {
	auth := service.NewAuthService("test-secret", time.Hour)
	candidate, err := auth.GenerateCandidateToken(7)
	require.NoError(t, err)
	admin, err := auth.GenerateAdminToken(1, []model.Permission{model.PermissionResultsRead})
	require.NoError(t, err)

	r := gin.New()
	r.GET("/candidate", RequireCandidateJWT(auth), func(c *gin.Context) {
		c.String(http.StatusOK, "%d", GetClaims(c).UserID)
	})
	r.GET("/admin", RequireAdminJWT(auth), ok)

	tests := []struct {
		name     string
		path     string
		header   string
		wantCode int
		wantErr  response.ErrCode
	}{
		{"missing token", "/candidate", "", http.StatusUnauthorized, response.ErrTokenRequired},
		{"garbage token", "/candidate", "Bearer nope", http.StatusUnauthorized, response.ErrTokenInvalid},
		{"admin on candidate route", "/candidate", "Bearer " + admin, http.StatusForbidden, response.ErrCandidateAccessOnly},
		{"candidate on admin route", "/admin", "Bearer " + candidate, http.StatusForbidden, response.ErrAdminAccessOnly},
		{"candidate", "/candidate", "Bearer " + candidate, http.StatusOK, ""},
		{"admin", "/admin", "bearer " + admin, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, tt.wantCode, w.Code, w.Body.String())
			if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, errorCode(t, w))
			}
		})
	}

	t.Run("token in query", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/candidate?token="+candidate, nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "7", w.Body.String())
	})
}

func TestRequirePermission(t *testing.T) {
	withClaims := func(claims *service.Claims) gin.HandlerFunc {
		return func(c *gin.Context) {
			if claims != nil {
				c.Set(ContextKeyClaims, claims)
			}
		}
	}
	serve := func(claims *service.Claims, guard gin.HandlerFunc) *httptest.ResponseRecorder {
		r := gin.New()
		r.GET("/", withClaims(claims), guard, ok)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		return w
	}

	reader := &service.Claims{TokenType: service.TokenTypeAdmin, UserID: 1, Permissions: []string{"results:read"}}

	assert.Equal(t, http.StatusOK, serve(reader, RequirePermission(model.PermissionResultsRead)).Code)

	w := serve(reader, RequirePermission(model.PermissionSessionsFinalize))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, response.ErrPermissionDenied, errorCode(t, w))

	assert.Equal(t, http.StatusOK,
		serve(reader, RequireAnyPermission(model.PermissionSystemRead, model.PermissionResultsRead)).Code)

	assert.Equal(t, http.StatusUnauthorized, serve(nil, RequirePermission(model.PermissionResultsRead)).Code)
}

func TestParseSessionID(t *testing.T) {
	r := gin.New()
	r.GET("/sessions/:session_id", ParseSessionID(), func(c *gin.Context) {
		c.String(http.StatusOK, GetSessionID(c).String())
	})

	id := uuid.New()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions/"+id.String(), nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id.String(), w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions/42", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.ErrInvalidID, errorCode(t, w))
}

func TestCacheHeaders(t *testing.T) {
	r := gin.New()
	r.GET("/private", CacheControl(60), ok)
	r.GET("/nostore", NoStore(), ok)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/private", nil))
	assert.Equal(t, "private, max-age=60", w.Header().Get("Cache-Control"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nostore", nil))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestBrotli(t *testing.T) {
	large := strings.Repeat("exam session state ", 200)

	r := gin.New()
	r.Use(BrotliWithConfig(BrotliConfig{Skipper: SkipReports}))
	r.GET("/large", func(c *gin.Context) { c.String(http.StatusOK, large) })
	r.GET("/small", func(c *gin.Context) { c.String(http.StatusOK, "tiny") })
	r.GET("/sessions/x/report", func(c *gin.Context) { c.String(http.StatusOK, large) })

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Accept-Encoding", "gzip, br")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	t.Run("large body is compressed", func(t *testing.T) {
		w := get("/large")
		require.Equal(t, "br", w.Header().Get("Content-Encoding"))
		assert.Less(t, w.Body.Len(), len(large))

		plain, err := io.ReadAll(brotli.NewReader(bytes.NewReader(w.Body.Bytes())))
		require.NoError(t, err)
		assert.Equal(t, large, string(plain))
	})

	t.Run("small body goes out as is", func(t *testing.T) {
		w := get("/small")
		assert.Empty(t, w.Header().Get("Content-Encoding"))
		assert.Equal(t, "tiny", w.Body.String())
	})

	t.Run("reports are skipped", func(t *testing.T) {
		w := get("/sessions/x/report")
		assert.Empty(t, w.Header().Get("Content-Encoding"))
		assert.Equal(t, large, w.Body.String())
	})
}
