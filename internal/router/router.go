package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/handler"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session *handler.SessionHandler
	WS      *handler.WSHandler
	Admin   *handler.AdminHandler
	Monitor *handler.MonitorHandler
	System  *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// If AllowedOrigins is set, restrict to that list; otherwise allow all (*)
	// so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Content-Disposition"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.BrotliWithConfig(middleware.BrotliConfig{Skipper: middleware.SkipReports}))

	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Reports are rendered on demand; 20 per minute per candidate is plenty.
	reportLimiter := middleware.NewRateLimiter(20, time.Minute).ByCandidate()
	// Signals arrive in bursts (copy + context menu), but never hundreds per minute.
	signalLimiter := middleware.NewRateLimiter(120, time.Minute).ByCandidate()

	// ─── Candidate Group (JWT) ─────────────────────────────────────────
	candidateAPI := router.Group("/api/v1/candidate")
	candidateAPI.Use(middleware.RequireCandidateJWT(authService), middleware.NoStore())
	{
		candidateAPI.GET("/exams/:exam_id/paper", handlers.Session.GetExamPaper)
		candidateAPI.POST("/exams/:exam_id/sessions", handlers.Session.OpenSession)

		sessions := candidateAPI.Group("/sessions/:session_id")
		sessions.Use(middleware.ParseSessionID())
		{
			sessions.GET("", handlers.Session.GetState)
			sessions.DELETE("", handlers.Session.CloseSession)
			sessions.GET("/paper", handlers.Session.GetSessionPaper)
			sessions.POST("/start", handlers.Session.Start)
			sessions.PUT("/answer", handlers.Session.SelectAnswer)
			sessions.DELETE("/answer", handlers.Session.ClearAnswer)
			sessions.POST("/mark", handlers.Session.ToggleMark)
			sessions.POST("/navigate", handlers.Session.Navigate)
			sessions.POST("/finalize/request", handlers.Session.RequestFinalize)
			sessions.POST("/finalize/cancel", handlers.Session.CancelFinalize)
			sessions.POST("/finalize/confirm", handlers.Session.ConfirmFinalize)
			sessions.POST("/signals", signalLimiter.Middleware(), handlers.Session.ReportSignal)
			sessions.GET("/result", handlers.Session.GetResult)
			sessions.GET("/report", reportLimiter.Middleware(), handlers.Session.DownloadReport)
			sessions.POST("/retake", handlers.Session.Retake)
		}
	}

	// ─── WebSocket Group (token in query) ──────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireCandidateJWT(authService))
	{
		ws.GET("/sessions/:session_id/stream", middleware.ParseSessionID(), handlers.WS.SessionStream)
	}

	// ─── Admin Group (JWT + RBAC) ──────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService), middleware.NoStore())
	{
		adminAPI.GET("/exams/:id/results",
			middleware.RequirePermission(model.PermissionResultsRead),
			handlers.Admin.ListResults,
		)
		adminAPI.GET("/exams/:id/monitor",
			middleware.RequirePermission(model.PermissionExamsMonitor),
			handlers.Monitor.MonitorExamSSE,
		)
		adminAPI.POST("/sessions/:session_id/finalize",
			middleware.RequirePermission(model.PermissionSessionsFinalize),
			middleware.ParseSessionID(),
			handlers.Admin.FinalizeSession,
		)
		adminAPI.GET("/system/metrics",
			middleware.RequirePermission(model.PermissionSystemRead),
			handlers.System.SystemMetricsSSE,
		)
	}

	return router
}
