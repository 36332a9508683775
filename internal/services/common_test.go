package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/maturio/maturio-backend/internal/learning"
	"github.com/maturio/maturio-backend/internal/pkg/logger"
	"github.com/maturio/maturio-backend/internal/repos"
	"github.com/maturio/maturio-backend/internal/types"
)

func testLogger() *logger.Logger {
	return logger.NewNop()
}

func freeUser() *types.User {
	return &types.User{ID: uuid.New(), Email: "free@example.com", Plan: types.PlanFree}
}

func premiumUser() *types.User {
	return &types.User{ID: uuid.New(), Email: "premium@example.com", Plan: types.PlanPremium}
}

func closedExercise(points int) *types.Exercise {
	correct := 0
	content, _ := json.Marshal(map[string]any{
		"options":        []map[string]any{{"text": "a"}, {"text": "b"}},
		"correct_option": correct,
		"explanation":    "a is right",
	})
	return &types.Exercise{
		ID:         uuid.New(),
		Type:       types.ExerciseClosedSingle,
		Category:   "epoche",
		Difficulty: 1,
		Points:     points,
		Content:    content,
	}
}

func essayExercise(points int) *types.Exercise {
	content, _ := json.Marshal(map[string]any{
		"prompt":    "discuss",
		"min_words": 1,
	})
	return &types.Exercise{
		ID:         uuid.New(),
		Type:       types.ExerciseEssay,
		Category:   "epoche",
		Difficulty: 2,
		Points:     points,
		Content:    content,
	}
}

func selectedOption(i int) json.RawMessage {
	raw, _ := json.Marshal(map[string]any{"selected_option": i})
	return raw
}

func essayAnswer(text string) json.RawMessage {
	raw, _ := json.Marshal(map[string]any{"text": text})
	return raw
}

// fakeSessionRepo keeps sessions in memory and can be told to fail saves.
type fakeSessionRepo struct {
	rows map[uuid.UUID]*types.Session

	saveErr   error
	saveCalls int
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{rows: map[uuid.UUID]*types.Session{}}
}

func (f *fakeSessionRepo) Create(ctx context.Context, tx *gorm.DB, row *types.Session) (*types.Session, error) {
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	cp := *row
	f.rows[row.ID] = &cp
	return row, nil
}

func (f *fakeSessionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Session, error) {
	row, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (f *fakeSessionRepo) GetActiveByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Session, error) {
	var out []*types.Session
	for _, row := range f.rows {
		if row.UserID == userID && row.Status == types.SessionActive {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeSessionRepo) Save(ctx context.Context, tx *gorm.DB, row *types.Session) error {
	f.saveCalls++
	if f.saveErr != nil {
		return f.saveErr
	}
	cp := *row
	f.rows[row.ID] = &cp
	return nil
}

// fakeSubmissionRepo stores one row per (session, exercise), like the unique
// index in the real table.
type fakeSubmissionRepo struct {
	rows map[string]*types.Submission

	upsertErr error
}

func newFakeSubmissionRepo() *fakeSubmissionRepo {
	return &fakeSubmissionRepo{rows: map[string]*types.Submission{}}
}

func submissionKey(sessionID, exerciseID uuid.UUID) string {
	return sessionID.String() + ":" + exerciseID.String()
}

func (f *fakeSubmissionRepo) Upsert(ctx context.Context, tx *gorm.DB, row *types.Submission) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	key := submissionKey(row.SessionID, row.ExerciseID)
	if prev, ok := f.rows[key]; ok {
		prev.UserAnswer = row.UserAnswer
		prev.Score = row.Score
		prev.Feedback = row.Feedback
		return nil
	}
	cp := *row
	f.rows[key] = &cp
	return nil
}

func (f *fakeSubmissionRepo) GetBySessionAndExercise(ctx context.Context, tx *gorm.DB, sessionID, exerciseID uuid.UUID) (*types.Submission, error) {
	row, ok := f.rows[submissionKey(sessionID, exerciseID)]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (f *fakeSubmissionRepo) ListBySession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) ([]*types.Submission, error) {
	var out []*types.Submission
	for _, row := range f.rows {
		if row.SessionID == sessionID {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

// fakeCatalog serves GetByID from a map and Find from a queue, so tests
// control exactly which exercise comes next.
type fakeCatalog struct {
	byID  map[uuid.UUID]*types.Exercise
	queue []*types.Exercise

	lastQuery repos.ExerciseQuery
	findCalls int
}

func newFakeCatalog(exercises ...*types.Exercise) *fakeCatalog {
	f := &fakeCatalog{byID: map[uuid.UUID]*types.Exercise{}}
	for _, e := range exercises {
		f.add(e)
	}
	return f
}

func (f *fakeCatalog) add(e *types.Exercise) {
	f.byID[e.ID] = e
	f.queue = append(f.queue, e)
}

func (f *fakeCatalog) Get(ctx context.Context, id uuid.UUID) (*types.Exercise, error) {
	return f.byID[id], nil
}

func (f *fakeCatalog) Find(ctx context.Context, q repos.ExerciseQuery) (*types.Exercise, error) {
	f.findCalls++
	f.lastQuery = q
	excluded := make(map[uuid.UUID]bool, len(q.ExcludeIDs))
	for _, id := range q.ExcludeIDs {
		excluded[id] = true
	}
	for _, e := range f.queue {
		if !excluded[e.ID] {
			return e, nil
		}
	}
	return nil, nil
}

func (f *fakeCatalog) Count(ctx context.Context, q repos.ExerciseQuery) (int64, error) {
	return int64(len(f.queue)), nil
}

// fakeQuota answers admission checks from fixed fields and counts consumes.
type fakeQuota struct {
	freeAllowed   bool
	freeRemaining int
	freeConsumed  int

	aiAllowed    bool
	aiRemaining  int
	aiConsumed   int
	checkAiCalls int
}

func newFakeQuota() *fakeQuota {
	return &fakeQuota{freeAllowed: true, freeRemaining: 10, aiAllowed: true, aiRemaining: 100}
}

func (f *fakeQuota) CheckFreeQuota(ctx context.Context, user *types.User) (*FreeQuotaStatus, error) {
	allowedTypes := types.ClosedTypes()
	if user.IsPremium() {
		allowedTypes = allExerciseTypes()
	}
	return &FreeQuotaStatus{
		Allowed:      f.freeAllowed || user.IsPremium(),
		Limit:        10,
		Remaining:    f.freeRemaining,
		AllowedTypes: allowedTypes,
	}, nil
}

func (f *fakeQuota) ConsumeFreeQuota(ctx context.Context, user *types.User) (*FreeQuotaStatus, error) {
	f.freeConsumed++
	return f.CheckFreeQuota(ctx, user)
}

func (f *fakeQuota) CheckAiBudget(ctx context.Context, userID uuid.UUID, exerciseType string) (*AiBudgetStatus, error) {
	f.checkAiCalls++
	cost := learning.DefaultCostTable().CostFor(exerciseType)
	return &AiBudgetStatus{Allowed: f.aiAllowed, Cost: cost, Remaining: f.aiRemaining}, nil
}

func (f *fakeQuota) ConsumeAiBudget(ctx context.Context, userID uuid.UUID, exerciseType string) (*AiBudgetStatus, error) {
	f.aiConsumed++
	return &AiBudgetStatus{Allowed: true, Remaining: f.aiRemaining}, nil
}

// fakeProgression records points and reports an unlock when the running total
// crosses unlockAt.
type fakeProgression struct {
	level    int
	total    int
	unlockAt int

	recordCalls int
}

func newFakeProgression() *fakeProgression {
	return &fakeProgression{level: 1, unlockAt: 1 << 30}
}

func (f *fakeProgression) Get(ctx context.Context, userID uuid.UUID) (*ProgressStatus, error) {
	return &ProgressStatus{CurrentMaxDifficulty: f.level, TotalPoints: f.total}, nil
}

func (f *fakeProgression) RecordCorrectAnswer(ctx context.Context, userID uuid.UUID, pointsEarned int) (*ProgressStatus, bool, error) {
	f.recordCalls++
	before := f.total
	f.total += pointsEarned
	unlocked := before < f.unlockAt && f.total >= f.unlockAt
	if unlocked {
		f.level++
	}
	return &ProgressStatus{CurrentMaxDifficulty: f.level, TotalPoints: f.total}, unlocked, nil
}

// fakeSelector hands out exercises from a queue or fails with a fixed error.
type fakeSelector struct {
	queue []*types.Exercise
	err   error

	calls       int
	lastExclude uuid.UUID
}

func (f *fakeSelector) SelectNext(ctx context.Context, user *types.User, session *types.Session, excludeID uuid.UUID, sequential bool) (*types.Exercise, error) {
	f.calls++
	f.lastExclude = excludeID
	if f.err != nil {
		return nil, f.err
	}
	if len(f.queue) == 0 {
		return nil, nil
	}
	next := f.queue[0]
	f.queue = f.queue[1:]
	return next, nil
}

// fakeGrader returns a fixed score and counts calls; either path can be told
// to fail.
type fakeGrader struct {
	score      int
	gradeErr   error
	summaryErr error

	// gradeStarted gets a send when Grade is entered; Grade then waits for
	// gradeRelease to close. Both nil unless a test needs to hold a grading
	// pass open.
	gradeStarted chan struct{}
	gradeRelease chan struct{}

	gradeCalls     int
	summarizeCalls int
}

func (f *fakeGrader) Grade(ctx context.Context, exercise *types.Exercise, content learning.Content, answer learning.Answer) (*GradeResult, error) {
	f.gradeCalls++
	if f.gradeStarted != nil {
		f.gradeStarted <- struct{}{}
	}
	if f.gradeRelease != nil {
		<-f.gradeRelease
	}
	if f.gradeErr != nil {
		return nil, f.gradeErr
	}
	feedback, _ := json.Marshal(ShortAnswerFeedback{Suggestions: []string{"ok"}})
	return &GradeResult{Score: f.score, Feedback: feedback}, nil
}

func (f *fakeGrader) Summarize(ctx context.Context, session *types.Session, completed []types.CompletedExercise) (string, error) {
	f.summarizeCalls++
	if f.summaryErr != nil {
		return "", f.summaryErr
	}
	return fmt.Sprintf("%d of %d correct", session.Correct, session.Completed), nil
}

// fakeUsageRepo is the in-memory daily counter table.
type fakeUsageRepo struct {
	rows map[string]*types.DailyUsage
}

func newFakeUsageRepo() *fakeUsageRepo {
	return &fakeUsageRepo{rows: map[string]*types.DailyUsage{}}
}

func usageKey(userID uuid.UUID, day string) string {
	return userID.String() + ":" + day
}

func (f *fakeUsageRepo) GetForDay(ctx context.Context, tx *gorm.DB, userID uuid.UUID, day string) (*types.DailyUsage, error) {
	row, ok := f.rows[usageKey(userID, day)]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (f *fakeUsageRepo) Increment(ctx context.Context, tx *gorm.DB, userID uuid.UUID, day string) (*types.DailyUsage, error) {
	key := usageKey(userID, day)
	row, ok := f.rows[key]
	if !ok {
		row = &types.DailyUsage{ID: uuid.New(), UserID: userID, Day: day}
		f.rows[key] = row
	}
	row.Used++
	cp := *row
	return &cp, nil
}

// fakeAiRepo is the in-memory budget table.
type fakeAiRepo struct {
	rows map[string]*types.AiPointsBudget
}

func newFakeAiRepo() *fakeAiRepo {
	return &fakeAiRepo{rows: map[string]*types.AiPointsBudget{}}
}

func (f *fakeAiRepo) GetOrCreate(ctx context.Context, tx *gorm.DB, userID uuid.UUID, periodStart string, defaultLimit int) (*types.AiPointsBudget, error) {
	key := userID.String() + ":" + periodStart
	row, ok := f.rows[key]
	if !ok {
		row = &types.AiPointsBudget{ID: uuid.New(), UserID: userID, PeriodStart: periodStart, Limit: defaultLimit}
		f.rows[key] = row
	}
	cp := *row
	return &cp, nil
}

func (f *fakeAiRepo) Charge(ctx context.Context, tx *gorm.DB, id uuid.UUID, cost int) (*types.AiPointsBudget, error) {
	for _, row := range f.rows {
		if row.ID == id {
			row.Used += cost
			cp := *row
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// fakeQuotaCache records reads and writes so cache interaction is observable.
type fakeQuotaCache struct {
	values map[string]int
	getErr error
	setErr error

	gets int
	sets int
}

func newFakeQuotaCache() *fakeQuotaCache {
	return &fakeQuotaCache{values: map[string]int{}}
}

func (f *fakeQuotaCache) GetUsed(ctx context.Context, userID, day string) (int, bool, error) {
	f.gets++
	if f.getErr != nil {
		return 0, false, f.getErr
	}
	used, ok := f.values[userID+":"+day]
	return used, ok, nil
}

func (f *fakeQuotaCache) SetUsed(ctx context.Context, userID, day string, used int, expireAt time.Time) error {
	f.sets++
	if f.setErr != nil {
		return f.setErr
	}
	f.values[userID+":"+day] = used
	return nil
}
