package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/provex-backend/internal/config"
	"github.com/stemsi/provex-backend/internal/handler"
	"github.com/stemsi/provex-backend/internal/middleware"
	"github.com/stemsi/provex-backend/internal/response"
	"github.com/stemsi/provex-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	Session *handler.SessionHandler
	Attempt *handler.AttemptHandler
	Proctor *handler.ProctorHandler
	Relay   *handler.RelayHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID", "X-Session-Token"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Serve stored recordings statically for proctor review.
	router.Static("/media/recordings", cfg.RecordingDir)

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── 1. Auth Group (Public) ────────────────────────────────────────
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/login", handlers.Auth.Login)
		auth.GET("/me", middleware.RequireUserJWT(authService), handlers.Auth.Me)
	}

	// Rate limiter for the snapshot post path, which clients hit on a timer.
	snapshotLimiter := middleware.NewRateLimiter(cfg.SnapshotRatePerMin, time.Minute)

	// ─── 2. Attempt Group (Any authenticated user) ─────────────────────
	api := router.Group("/api/v1")
	api.Use(middleware.RequireUserJWT(authService))
	{
		api.POST("/exams/:exam_id/attempts", handlers.Session.Start)
		api.GET("/attempts/:attempt_id", handlers.Attempt.Load)
		api.PUT("/attempts/:attempt_id/answers", handlers.Attempt.SaveAnswer)
		api.POST("/attempts/:attempt_id/submit", handlers.Attempt.Submit)
		api.POST("/attempts/:attempt_id/recordings/:kind", handlers.Proctor.UploadRecording)
		api.POST("/attempts/:attempt_id/snapshot", snapshotLimiter.Middleware(), handlers.Proctor.PostSnapshot)
	}

	// ─── 3. Proctor Group (Elevated roles only) ────────────────────────
	proctor := router.Group("/api/v1/proctor")
	proctor.Use(middleware.RequireProctorJWT(authService))
	{
		proctor.GET("/attempts/:attempt_id/snapshot", handlers.Proctor.GetSnapshot)
		proctor.DELETE("/attempts/:attempt_id/recordings/:kind", handlers.Proctor.DeleteRecording)
		proctor.GET("/exams/:exam_id/snapshots", handlers.Proctor.GetExamSnapshots)
		proctor.GET("/exams/:exam_id/monitor", handlers.Proctor.MonitorSSE)
	}

	// ─── 4. WebSocket Group (WS Auth via query token) ──────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireWSAuth(authService))
	{
		ws.GET("/attempts/:attempt_id/signal", handlers.Relay.Signal)
	}

	return router
}
