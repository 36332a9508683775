package app

import (
	"gorm.io/gorm"

	"github.com/maturio/maturio-backend/internal/pkg/logger"
	"github.com/maturio/maturio-backend/internal/services"
)

type Services struct {
	Auth        services.AuthService
	Catalog     services.CatalogService
	Quota       services.QuotaService
	Progression services.ProgressionService
	Selector    services.SelectorService
	Session     services.SessionService
	Submission  services.SubmissionService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos, clients Clients) Services {
	log.Info("Wiring services...")

	costs := cfg.Engine.CostTable()

	auth := services.NewAuthService(db, log, reposet.User, cfg.JWTSecretKey, cfg.AccessTokenTTL)
	catalog := services.NewCatalogService(db, log, reposet.Exercise)
	quota := services.NewQuotaService(db, log, reposet.DailyUsage, reposet.AiPoints, clients.QuotaCache,
		cfg.Engine.FreeDailyLimit, cfg.Engine.AiPointsLimit, costs)
	progression := services.NewProgressionService(db, log, reposet.Progress, cfg.Engine.Ladder())
	selector := services.NewSelectorService(db, log, catalog, quota, progression)

	var grader services.Grader
	if clients.Grader != nil {
		grader = clients.Grader
	}
	session := services.NewSessionService(db, log, reposet.Session, selector, grader,
		cfg.Engine.SessionLimit, cfg.Engine.AutosaveInterval())
	submission := services.NewSubmissionService(db, log, session, catalog, quota, progression,
		reposet.Submission, grader, costs)

	return Services{
		Auth:        auth,
		Catalog:     catalog,
		Quota:       quota,
		Progression: progression,
		Selector:    selector,
		Session:     session,
		Submission:  submission,
	}
}
