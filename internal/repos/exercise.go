package repos

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/maturio/maturio-backend/internal/pkg/logger"
	"github.com/maturio/maturio-backend/internal/types"
)

// ExerciseQuery is the catalog lookup shape: learner filters intersected with
// the unlocked-difficulty ceiling, the plan's allowed types, and the ids that
// must not come back.
type ExerciseQuery struct {
	Filters       types.ExerciseFilters
	MaxDifficulty int
	AllowedTypes  []string
	ExcludeIDs    []uuid.UUID
	// Sequential orders by creation time ascending instead of randomly.
	Sequential bool
}

type ExerciseRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.Exercise) ([]*types.Exercise, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Exercise, error)
	FindOne(ctx context.Context, tx *gorm.DB, q ExerciseQuery) (*types.Exercise, error)
	Count(ctx context.Context, tx *gorm.DB, q ExerciseQuery) (int64, error)
}

type exerciseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewExerciseRepo(db *gorm.DB, baseLog *logger.Logger) ExerciseRepo {
	return &exerciseRepo{db: db, log: baseLog.With("repo", "ExerciseRepo")}
}

func (r *exerciseRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.Exercise) ([]*types.Exercise, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.Exercise{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *exerciseRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Exercise, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Exercise
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *exerciseRepo) FindOne(ctx context.Context, tx *gorm.DB, q ExerciseQuery) (*types.Exercise, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	stmt := applyExerciseQuery(transaction.WithContext(ctx).Model(&types.Exercise{}), q)
	if q.Sequential {
		stmt = stmt.Order("created_at ASC")
	} else {
		stmt = stmt.Order("RANDOM()")
	}

	var row types.Exercise
	err := stmt.First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *exerciseRepo) Count(ctx context.Context, tx *gorm.DB, q ExerciseQuery) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	err := applyExerciseQuery(transaction.WithContext(ctx).Model(&types.Exercise{}), q).Count(&n).Error
	return n, err
}

func applyExerciseQuery(stmt *gorm.DB, q ExerciseQuery) *gorm.DB {
	f := q.Filters

	if f.Category != nil && strings.TrimSpace(*f.Category) != "" {
		stmt = stmt.Where("category = ?", *f.Category)
	}
	if len(f.Epochs) > 0 {
		stmt = stmt.Where("epoch IN ?", f.Epochs)
	}
	if f.LiteraryWork != nil && strings.TrimSpace(*f.LiteraryWork) != "" {
		stmt = stmt.Where("literary_work = ?", *f.LiteraryWork)
	}
	if f.Search != nil && strings.TrimSpace(*f.Search) != "" {
		pattern := "%" + strings.ToLower(strings.TrimSpace(*f.Search)) + "%"
		stmt = stmt.Where("LOWER(search_text) LIKE ?", pattern)
	}

	// Types: intersect the learner's choice with what the plan allows.
	wantTypes := f.Types
	if len(q.AllowedTypes) > 0 {
		wantTypes = intersectStrings(wantTypes, q.AllowedTypes)
		if len(wantTypes) == 0 {
			// Learner asked only for types the plan forbids; match nothing.
			return stmt.Where("1 = 0")
		}
	}
	if len(wantTypes) > 0 {
		stmt = stmt.Where("type IN ?", wantTypes)
	}

	// Difficulties: learner's set clamped to the unlocked ceiling.
	if q.MaxDifficulty > 0 {
		stmt = stmt.Where("difficulty <= ?", q.MaxDifficulty)
	}
	if len(f.Difficulties) > 0 {
		stmt = stmt.Where("difficulty IN ?", f.Difficulties)
	}

	if len(q.ExcludeIDs) > 0 {
		stmt = stmt.Where("id NOT IN ?", q.ExcludeIDs)
	}
	return stmt
}

func intersectStrings(want, allowed []string) []string {
	if len(want) == 0 {
		return allowed
	}
	set := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		set[a] = true
	}
	var out []string
	for _, w := range want {
		if set[w] {
			out = append(out, w)
		}
	}
	return out
}
