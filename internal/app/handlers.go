package app

import (
	"github.com/gin-gonic/gin"

	internalhttp "github.com/maturio/maturio-backend/internal/http"
	httpH "github.com/maturio/maturio-backend/internal/http/handlers"
	httpMW "github.com/maturio/maturio-backend/internal/http/middleware"
	"github.com/maturio/maturio-backend/internal/pkg/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health   *httpH.HealthHandler
	Auth     *httpH.AuthHandler
	Session  *httpH.SessionHandler
	Exercise *httpH.ExerciseHandler
	Quota    *httpH.QuotaHandler
	Progress *httpH.ProgressHandler
}

func wireHandlers(log *logger.Logger, serviceset Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:   httpH.NewHealthHandler(),
		Auth:     httpH.NewAuthHandler(serviceset.Auth),
		Session:  httpH.NewSessionHandler(log, serviceset.Auth, serviceset.Session, serviceset.Submission),
		Exercise: httpH.NewExerciseHandler(serviceset.Auth, serviceset.Catalog, serviceset.Progression),
		Quota:    httpH.NewQuotaHandler(serviceset.Auth, serviceset.Quota),
		Progress: httpH.NewProgressHandler(serviceset.Auth, serviceset.Progression),
	}
}

func wireMiddleware(log *logger.Logger, serviceset Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, serviceset.Auth),
	}
}

func wireRouter(log *logger.Logger, handlers Handlers, middleware Middleware) *gin.Engine {
	return internalhttp.NewRouter(internalhttp.RouterConfig{
		Log:             log,
		AuthMiddleware:  middleware.Auth,
		HealthHandler:   handlers.Health,
		AuthHandler:     handlers.Auth,
		SessionHandler:  handlers.Session,
		ExerciseHandler: handlers.Exercise,
		QuotaHandler:    handlers.Quota,
		ProgressHandler: handlers.Progress,
	})
}
