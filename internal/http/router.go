package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/maturio/maturio-backend/internal/http/handlers"
	httpMW "github.com/maturio/maturio-backend/internal/http/middleware"
	"github.com/maturio/maturio-backend/internal/pkg/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	AuthMiddleware *httpMW.AuthMiddleware

	HealthHandler   *httpH.HealthHandler
	AuthHandler     *httpH.AuthHandler
	SessionHandler  *httpH.SessionHandler
	ExerciseHandler *httpH.ExerciseHandler
	QuotaHandler    *httpH.QuotaHandler
	ProgressHandler *httpH.ProgressHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.Default()
	r.Use(otelgin.Middleware("maturio-backend"))
	r.Use(httpMW.CORS())
	r.Use(httpMW.Metrics())
	if cfg.Log != nil {
		r.Use(httpMW.RequestLogger(cfg.Log))
	}

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		// Auth (public)
		if cfg.AuthHandler != nil {
			api.POST("/register", cfg.AuthHandler.Register)
			api.POST("/login", cfg.AuthHandler.Login)
		}
	}

	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		if cfg.AuthHandler != nil {
			protected.GET("/me", cfg.AuthHandler.GetMe)
		}

		// Sessions
		if cfg.SessionHandler != nil {
			protected.POST("/sessions", cfg.SessionHandler.Start)
			protected.GET("/sessions/:id", cfg.SessionHandler.Get)
			protected.GET("/sessions/:id/next", cfg.SessionHandler.Next)
			protected.POST("/sessions/:id/submissions", cfg.SessionHandler.Submit)
			protected.GET("/sessions/:id/submissions", cfg.SessionHandler.ListSubmissions)
			protected.POST("/sessions/:id/exit", cfg.SessionHandler.RequestExit)
			protected.POST("/sessions/:id/exit/confirm", cfg.SessionHandler.ConfirmExit)
			protected.POST("/sessions/:id/complete", cfg.SessionHandler.Complete)
		}

		// Catalog
		if cfg.ExerciseHandler != nil {
			protected.GET("/exercises/count", cfg.ExerciseHandler.Count)
		}

		// Quota and progression
		if cfg.QuotaHandler != nil {
			protected.GET("/quota", cfg.QuotaHandler.Get)
		}
		if cfg.ProgressHandler != nil {
			protected.GET("/progress", cfg.ProgressHandler.Get)
		}
	}

	return r
}
