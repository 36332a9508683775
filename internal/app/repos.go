package app

import (
	"gorm.io/gorm"

	"github.com/maturio/maturio-backend/internal/pkg/logger"
	"github.com/maturio/maturio-backend/internal/repos"
)

type Repos struct {
	User       repos.UserRepo
	Exercise   repos.ExerciseRepo
	Session    repos.SessionRepo
	Submission repos.SubmissionRepo
	DailyUsage repos.DailyUsageRepo
	AiPoints   repos.AiPointsRepo
	Progress   repos.ProgressRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:       repos.NewUserRepo(db, log),
		Exercise:   repos.NewExerciseRepo(db, log),
		Session:    repos.NewSessionRepo(db, log),
		Submission: repos.NewSubmissionRepo(db, log),
		DailyUsage: repos.NewDailyUsageRepo(db, log),
		AiPoints:   repos.NewAiPointsRepo(db, log),
		Progress:   repos.NewProgressRepo(db, log),
	}
}
