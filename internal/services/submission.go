package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/maturio/maturio-backend/internal/learning"
	"github.com/maturio/maturio-backend/internal/observability"
	"github.com/maturio/maturio-backend/internal/pkg/logger"
	"github.com/maturio/maturio-backend/internal/platform/apierr"
	"github.com/maturio/maturio-backend/internal/repos"
	"github.com/maturio/maturio-backend/internal/types"
)

// SubmitResult is everything a graded answer produces: the score, structured
// feedback, the session snapshot after the score landed, and any progression
// side effects. PersistFailed flags that the score could not be written; the
// feedback is still valid and returned.
type SubmitResult struct {
	ExerciseID           uuid.UUID       `json:"exercise_id"`
	Score                int             `json:"score"`
	MaxScore             int             `json:"max_score"`
	Correct              bool            `json:"correct"`
	Feedback             json.RawMessage `json:"feedback"`
	UnlockedNewLevel     bool            `json:"unlocked_new_level"`
	CurrentMaxDifficulty int             `json:"current_max_difficulty"`
	PersistFailed        bool            `json:"persist_failed,omitempty"`
	Session              *types.Session  `json:"session"`
}

// SubmissionService grades answers and threads the result through session
// stats, difficulty progression, and the AI-points budget.
type SubmissionService interface {
	Submit(ctx context.Context, user *types.User, sessionID, exerciseID uuid.UUID, rawAnswer json.RawMessage) (*SubmitResult, error)
	ListBySession(ctx context.Context, user *types.User, sessionID uuid.UUID) ([]*types.Submission, error)
}

// sessionCore is the slice of the session service the orchestrator needs:
// resolving the live aggregate and applying a score under its locks.
type sessionCore interface {
	getActive(ctx context.Context, sessionID uuid.UUID, user *types.User) (*activeSession, error)
	applyScore(ctx context.Context, as *activeSession, exerciseID uuid.UUID, score int) (types.Session, bool, error)
}

type submissionService struct {
	db          *gorm.DB
	log         *logger.Logger
	core        sessionCore
	catalog     CatalogService
	quota       QuotaService
	progression ProgressionService
	submissions repos.SubmissionRepo
	grader      Grader
	costs       learning.CostTable

	flight singleflight.Group
}

func NewSubmissionService(db *gorm.DB, baseLog *logger.Logger, sessions SessionService, catalog CatalogService, quota QuotaService, progression ProgressionService, submissions repos.SubmissionRepo, grader Grader, costs learning.CostTable) SubmissionService {
	core, ok := sessions.(sessionCore)
	if !ok {
		panic("services: SessionService implementation does not expose its session core")
	}
	if costs == nil {
		costs = learning.DefaultCostTable()
	}
	return &submissionService{
		db:          db,
		log:         baseLog.With("service", "SubmissionService"),
		core:        core,
		catalog:     catalog,
		quota:       quota,
		progression: progression,
		submissions: submissions,
		grader:      grader,
		costs:       costs,
	}
}

func (s *submissionService) Submit(ctx context.Context, user *types.User, sessionID, exerciseID uuid.UUID, rawAnswer json.RawMessage) (*SubmitResult, error) {
	if user == nil {
		return nil, apierr.New(http.StatusUnauthorized, apierr.CodeUnauthorized, nil)
	}
	// Duplicate requests for the same (session, exercise) pair share one
	// grading pass and one result.
	key := sessionID.String() + ":" + exerciseID.String()
	v, err, _ := s.flight.Do(key, func() (interface{}, error) {
		return s.submit(ctx, user, sessionID, exerciseID, rawAnswer)
	})
	if err != nil {
		return nil, err
	}
	return v.(*SubmitResult), nil
}

func (s *submissionService) submit(ctx context.Context, user *types.User, sessionID, exerciseID uuid.UUID, rawAnswer json.RawMessage) (*SubmitResult, error) {
	as, err := s.core.getActive(ctx, sessionID, user)
	if err != nil {
		return nil, err
	}
	// Holding the flight lock keeps exit requests queued until the score
	// has been applied.
	as.flight.Lock()
	defer as.flight.Unlock()

	// Re-check under the lock: the session may have been finalized while
	// this request waited behind another submission or an exit.
	as.mu.Lock()
	status := as.sess.Status
	as.mu.Unlock()
	if status != types.SessionActive {
		return nil, apierr.New(http.StatusConflict, apierr.CodeSessionClosed,
			fmt.Errorf("session is %s", status))
	}

	exercise, err := s.catalog.Get(ctx, exerciseID)
	if err != nil {
		return nil, err
	}
	if exercise == nil {
		return nil, apierr.New(http.StatusNotFound, apierr.CodeExerciseNotFound, nil)
	}

	content, err := learning.ParseContent(exercise.Content)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, apierr.CodeInvalidInput,
			fmt.Errorf("exercise %s has malformed content: %w", exercise.ID, err))
	}
	answer, err := learning.ParseAnswer(rawAnswer)
	if err != nil {
		return nil, apierr.New(http.StatusBadRequest, apierr.CodeInvalidInput, err)
	}
	if !learning.CanSubmit(exercise.Type, content, answer) {
		return nil, apierr.New(http.StatusBadRequest, apierr.CodeIncompleteAnswer,
			fmt.Errorf("answer does not meet the requirements for a %s exercise", exercise.Type))
	}

	// Admission check before any state changes: a learner who cannot afford
	// grading keeps their budget and their session untouched.
	cost := s.costs.CostFor(exercise.Type)
	if cost > 0 {
		budget, err := s.quota.CheckAiBudget(ctx, user.ID, exercise.Type)
		if err != nil {
			return nil, err
		}
		if !budget.Allowed {
			observability.Current().IncQuotaRejection(apierr.CodeInsufficientAiPoints)
			return nil, apierr.WithMeta(http.StatusPaymentRequired, apierr.CodeInsufficientAiPoints,
				fmt.Errorf("grading this exercise costs %d AI points, %d remaining", budget.Cost, budget.Remaining),
				map[string]any{"cost": budget.Cost, "remaining": budget.Remaining})
		}
	}

	grade, err := s.grade(ctx, exercise, content, answer)
	if err != nil {
		return nil, err
	}

	row := &types.Submission{
		ID:         uuid.New(),
		SessionID:  sessionID,
		ExerciseID: exerciseID,
		UserID:     user.ID,
		UserAnswer: datatypes.JSON(rawAnswer),
		Score:      grade.Score,
		Feedback:   datatypes.JSON(grade.Feedback),
	}
	persistFailed := false
	if err := s.submissions.Upsert(ctx, nil, row); err != nil {
		s.log.Error("persisting submission failed; returning grade anyway", "session_id", sessionID, "exercise_id", exerciseID, "error", err)
		persistFailed = true
	}

	snap, wasNew, err := s.core.applyScore(ctx, as, exerciseID, grade.Score)
	if err != nil {
		if apierr.HasCode(err, apierr.CodeSessionClosed) {
			return nil, err
		}
		s.log.Error("applying score to session failed; returning grade anyway", "session_id", sessionID, "error", err)
		persistFailed = true
	}

	observability.Current().IncSubmissionScored(exercise.Type, grade.Score > 0)

	result := &SubmitResult{
		ExerciseID:           exerciseID,
		Score:                grade.Score,
		MaxScore:             exercise.Points,
		Correct:              grade.Score > 0,
		Feedback:             grade.Feedback,
		CurrentMaxDifficulty: exercise.Difficulty,
		PersistFailed:        persistFailed,
		Session:              &snap,
	}

	if grade.Score > 0 {
		status, unlocked, err := s.progression.RecordCorrectAnswer(ctx, user.ID, grade.Score)
		if err != nil {
			s.log.Warn("recording progression failed", "user_id", user.ID, "error", err)
		} else {
			result.UnlockedNewLevel = unlocked
			result.CurrentMaxDifficulty = status.CurrentMaxDifficulty
			if unlocked {
				observability.Current().IncLevelUnlock()
			}
		}
	}

	// Budget is charged once per exercise; regrading the same one is free.
	if cost > 0 && wasNew {
		if _, err := s.quota.ConsumeAiBudget(ctx, user.ID, exercise.Type); err != nil {
			s.log.Warn("consuming AI points failed", "user_id", user.ID, "cost", cost, "error", err)
		}
	}
	return result, nil
}

func (s *submissionService) grade(ctx context.Context, exercise *types.Exercise, content learning.Content, answer learning.Answer) (*GradeResult, error) {
	if types.IsClosedType(exercise.Type) {
		score, feedback := learning.GradeClosed(exercise.Type, content, answer, exercise.Points)
		return &GradeResult{Score: score, Feedback: learning.MarshalFeedback(feedback)}, nil
	}
	if s.grader == nil {
		return nil, apierr.New(http.StatusBadGateway, apierr.CodeGraderUnavailable,
			fmt.Errorf("no grader is configured for %s exercises", exercise.Type))
	}
	start := time.Now()
	grade, err := s.grader.Grade(ctx, exercise, content, answer)
	if err != nil {
		observability.Current().ObserveGraderRequest(exercise.Type, "error", time.Since(start))
		return nil, apierr.New(http.StatusBadGateway, apierr.CodeGraderUnavailable, err)
	}
	observability.Current().ObserveGraderRequest(exercise.Type, "ok", time.Since(start))
	return grade, nil
}

func (s *submissionService) ListBySession(ctx context.Context, user *types.User, sessionID uuid.UUID) ([]*types.Submission, error) {
	if user == nil {
		return nil, apierr.New(http.StatusUnauthorized, apierr.CodeUnauthorized, nil)
	}
	rows, err := s.submissions.ListBySession(ctx, nil, sessionID)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if r.UserID != user.ID {
			return nil, apierr.New(http.StatusNotFound, apierr.CodeSessionNotFound, nil)
		}
	}
	return rows, nil
}
