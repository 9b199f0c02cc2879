package router

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/hello-pdf-submission/internal/config"
	"github.com/stemsi/hello-pdf-submission/internal/handler"
	"github.com/stemsi/hello-pdf-submission/internal/middleware"
	"github.com/stemsi/hello-pdf-submission/internal/model"
	"github.com/stemsi/hello-pdf-submission/internal/response"
	"github.com/stemsi/hello-pdf-submission/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Block   *handler.BlockHandler
	Monitor *handler.MonitorHandler
	Health  *handler.HealthHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds the background goroutines the middlewares start.
func SetupRouter(
	ctx context.Context,
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", response.HeaderRequestID}
	corsConfig.ExposeHeaders = []string{response.HeaderRequestID}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.AccessLog(log))

	router.Use(middleware.Brotli())

	router.GET("/health", handlers.Health.Live)
	router.GET("/ready", handlers.Health.Ready)

	submitLimiter := middleware.NewRateLimiter(ctx, cfg.SubmitRatePerMinute, time.Minute)
	authorOnly := middleware.RequirePermission(string(model.PermissionBlocksAuthor))

	// ─── 1. Learner Group (views + handlers of one block usage) ────────
	learnerAPI := router.Group("/api/v1/blocks/:usage_id")
	learnerAPI.Use(middleware.RequireLearnerJWT(authService))
	{
		learnerAPI.GET("/student_view", middleware.NoStore(), handlers.Block.StudentView)
		learnerAPI.POST("/handler/reset_submission", handlers.Block.ResetSubmission)
		learnerAPI.POST("/handler/submit_text",
			submitLimiter.Middleware(),
			handlers.Block.SubmitText,
		)
	}

	// ─── 2. Author Group (JWT + RBAC) ──────────────────────────────────
	// Shares the learner prefix. Group middlewares bind per route, so the
	// two chains never mix.
	authorAPI := router.Group("/api/v1/blocks/:usage_id")
	authorAPI.Use(middleware.RequireAuthorJWT(authService))
	{
		authorAPI.GET("/studio_view", authorOnly, middleware.NoStore(), handlers.Block.StudioView)
		authorAPI.POST("/handler/studio_submit", authorOnly, handlers.Block.StudioSubmit)
		authorAPI.GET("/submissions",
			middleware.RequirePermission(string(model.PermissionBlocksMonitor)),
			handlers.Monitor.ListSubmissions,
		)
	}

	// ─── 3. WebSocket Group (Author WS Auth) ───────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireAuthorWSAuth(authService))
	{
		ws.GET("/blocks/:usage_id/monitor",
			middleware.RequirePermission(string(model.PermissionBlocksMonitor)),
			handlers.Monitor.MonitorStream,
		)
	}

	return router
}
