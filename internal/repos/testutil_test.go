package repos

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/maturio/maturio-backend/internal/pkg/logger"
	"github.com/maturio/maturio-backend/internal/types"
)

var errMissingDSN = errors.New("missing TEST_POSTGRES_DSN")

var (
	dbOnce sync.Once
	db     *gorm.DB
	dbErr  error
)

func testDB(tb testing.TB) *gorm.DB {
	tb.Helper()

	dbOnce.Do(func() {
		dsn := os.Getenv("TEST_POSTGRES_DSN")
		if dsn == "" {
			dbErr = errMissingDSN
			return
		}

		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			DisableForeignKeyConstraintWhenMigrating: true,
			Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
		})
		if err != nil {
			dbErr = err
			return
		}

		if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
			dbErr = err
			return
		}

		dbErr = db.AutoMigrate(
			&types.User{},
			&types.Exercise{},
			&types.Session{},
			&types.Submission{},
			&types.DailyUsage{},
			&types.AiPointsBudget{},
			&types.DifficultyProgress{},
		)
	})

	if errors.Is(dbErr, errMissingDSN) {
		tb.Skip("set TEST_POSTGRES_DSN to run repo integration tests")
	}
	if dbErr != nil {
		tb.Fatalf("failed to init test db: %v", dbErr)
	}
	return db
}

func testTx(tb testing.TB, db *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := db.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}

func seedExercise(tb testing.TB, tx *gorm.DB, repo ExerciseRepo, exType, category string, difficulty int, search string) *types.Exercise {
	tb.Helper()
	content, _ := json.Marshal(map[string]any{"prompt": search})
	row := &types.Exercise{
		ID:         uuid.New(),
		Type:       exType,
		Category:   category,
		Difficulty: difficulty,
		Points:     2,
		Content:    content,
		SearchText: search,
	}
	if _, err := repo.Create(context.Background(), tx, []*types.Exercise{row}); err != nil {
		tb.Fatalf("seed exercise: %v", err)
	}
	return row
}

func nopLogger() *logger.Logger {
	return logger.NewNop()
}
