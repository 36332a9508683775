package services

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/maturio/maturio-backend/internal/observability"
	"github.com/maturio/maturio-backend/internal/pkg/logger"
	"github.com/maturio/maturio-backend/internal/platform/apierr"
	"github.com/maturio/maturio-backend/internal/repos"
	"github.com/maturio/maturio-backend/internal/types"
)

// ExitStatus is the answer to a requestExit call: either the session still
// needs the learner's confirmation, or it was already finalized.
type ExitStatus struct {
	RequiresConfirmation bool           `json:"requires_confirmation"`
	Session              *types.Session `json:"session"`
}

// SessionSummary is the completion payload: final stats plus the narrative
// produced by the summary collaborator.
type SessionSummary struct {
	Session       *types.Session `json:"session"`
	Summary       string         `json:"summary,omitempty"`
	SummaryFailed bool           `json:"summary_failed,omitempty"`
}

// SessionService owns session state. It is the single writer for a session's
// stats and completion list; everything else reads or computes.
type SessionService interface {
	// Start finalizes any session still ACTIVE for the user, creates a fresh
	// one, and serves the first exercise when one is available.
	Start(ctx context.Context, user *types.User, filters types.ExerciseFilters) (*types.Session, *types.Exercise, error)
	Get(ctx context.Context, sessionID uuid.UUID) (*types.Session, error)
	NextExercise(ctx context.Context, user *types.User, sessionID, excludeID uuid.UUID, sequential bool) (*types.Exercise, error)
	RequestExit(ctx context.Context, user *types.User, sessionID uuid.UUID) (*ExitStatus, error)
	ConfirmExit(ctx context.Context, user *types.User, sessionID uuid.UUID) (*types.Session, error)
	Complete(ctx context.Context, user *types.User, sessionID uuid.UUID) (*SessionSummary, error)
	// StartAutoSave runs the periodic snapshot writer until ctx is done.
	StartAutoSave(ctx context.Context)
}

// activeSession is the in-memory aggregate for one ACTIVE session. mu guards
// the snapshot; flight serializes submissions and exit requests so an exit
// arriving mid-grade queues instead of abandoning a scored answer.
type activeSession struct {
	mu     sync.Mutex
	flight sync.Mutex

	sess        *types.Session
	exitPending bool
}

type sessionService struct {
	db       *gorm.DB
	log      *logger.Logger
	sessions repos.SessionRepo
	selector SelectorService
	grader   Grader

	sessionLimit     int
	autosaveInterval time.Duration
	now              func() time.Time

	regMu    sync.Mutex
	registry map[uuid.UUID]*activeSession
}

func NewSessionService(db *gorm.DB, baseLog *logger.Logger, sessions repos.SessionRepo, selector SelectorService, grader Grader, sessionLimit int, autosaveInterval time.Duration) SessionService {
	if sessionLimit <= 0 {
		sessionLimit = types.DefaultSessionLimit
	}
	if autosaveInterval <= 0 {
		autosaveInterval = 30 * time.Second
	}
	return &sessionService{
		db:               db,
		log:              baseLog.With("service", "SessionService"),
		sessions:         sessions,
		selector:         selector,
		grader:           grader,
		sessionLimit:     sessionLimit,
		autosaveInterval: autosaveInterval,
		now:              func() time.Time { return time.Now().UTC() },
		registry:         make(map[uuid.UUID]*activeSession),
	}
}

func (s *sessionService) Start(ctx context.Context, user *types.User, filters types.ExerciseFilters) (*types.Session, *types.Exercise, error) {
	if user == nil {
		return nil, nil, apierr.New(http.StatusUnauthorized, apierr.CodeUnauthorized, nil)
	}

	// At most one ACTIVE session per user: close out whatever is open.
	actives, err := s.sessions.GetActiveByUser(ctx, nil, user.ID)
	if err != nil {
		return nil, nil, err
	}
	for _, prev := range actives {
		s.finalizePrior(ctx, prev)
	}

	sess := &types.Session{
		ID:     uuid.New(),
		UserID: user.ID,
		Status: types.SessionActive,
		Limit:  s.sessionLimit,
	}
	if err := sess.EncodeFilters(filters); err != nil {
		return nil, nil, apierr.New(http.StatusBadRequest, apierr.CodeInvalidInput, err)
	}
	if err := sess.SetCompletedList(nil); err != nil {
		return nil, nil, err
	}
	if _, err := s.sessions.Create(ctx, nil, sess); err != nil {
		return nil, nil, err
	}
	s.register(sess)
	observability.Current().IncSessionStarted()

	// Serve the first exercise right away. A recoverable selection error
	// (empty pool, exhausted quota) does not fail the start; the client sees
	// it on its next-exercise call.
	first, selErr := s.selector.SelectNext(ctx, user, sess, uuid.Nil, user.Sequential)
	if selErr != nil {
		if _, ok := apierr.As(selErr); ok {
			s.log.Info("session started without a first exercise", "session_id", sess.ID, "reason", selErr.Error())
			return s.snapshot(sess.ID), nil, nil
		}
		return nil, nil, selErr
	}
	return s.snapshot(sess.ID), first, nil
}

func (s *sessionService) Get(ctx context.Context, sessionID uuid.UUID) (*types.Session, error) {
	if snap := s.snapshot(sessionID); snap != nil {
		return snap, nil
	}
	sess, err := s.sessions.GetByID(ctx, nil, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, apierr.New(http.StatusNotFound, apierr.CodeSessionNotFound, nil)
	}
	return sess, nil
}

func (s *sessionService) NextExercise(ctx context.Context, user *types.User, sessionID, excludeID uuid.UUID, sequential bool) (*types.Exercise, error) {
	as, err := s.getActive(ctx, sessionID, user)
	if err != nil {
		return nil, err
	}

	as.mu.Lock()
	snap := *as.sess
	as.mu.Unlock()
	if snap.Completed >= snap.Limit {
		return nil, apierr.New(http.StatusConflict, apierr.CodeSessionNotExhausted,
			fmt.Errorf("session reached its limit of %d exercises; complete it instead", snap.Limit))
	}
	return s.selector.SelectNext(ctx, user, &snap, excludeID, sequential)
}

func (s *sessionService) RequestExit(ctx context.Context, user *types.User, sessionID uuid.UUID) (*ExitStatus, error) {
	as, err := s.getActive(ctx, sessionID, user)
	if err != nil {
		return nil, err
	}
	// Queue behind any in-flight submission so its score lands first.
	as.flight.Lock()
	defer as.flight.Unlock()

	as.mu.Lock()
	atLimit := as.sess.Completed >= as.sess.Limit
	if !atLimit {
		as.exitPending = true
	}
	as.mu.Unlock()

	if atLimit {
		// Exiting a finished session is just completion.
		summary, err := s.completeLocked(ctx, as)
		if err != nil {
			return nil, err
		}
		return &ExitStatus{RequiresConfirmation: false, Session: summary.Session}, nil
	}
	return &ExitStatus{RequiresConfirmation: true, Session: s.snapshot(sessionID)}, nil
}

func (s *sessionService) ConfirmExit(ctx context.Context, user *types.User, sessionID uuid.UUID) (*types.Session, error) {
	as, err := s.getActive(ctx, sessionID, user)
	if err != nil {
		return nil, err
	}
	as.flight.Lock()
	defer as.flight.Unlock()

	as.mu.Lock()
	pending := as.exitPending
	as.mu.Unlock()
	if !pending {
		return nil, apierr.New(http.StatusConflict, apierr.CodeInvalidInput,
			fmt.Errorf("no exit was requested for this session"))
	}

	// Partial progress is kept: the session is saved with its current stats.
	if err := s.finalize(ctx, as, types.SessionAbandoned); err != nil {
		return nil, err
	}
	as.mu.Lock()
	snap := *as.sess
	as.mu.Unlock()
	return &snap, nil
}

func (s *sessionService) Complete(ctx context.Context, user *types.User, sessionID uuid.UUID) (*SessionSummary, error) {
	as, err := s.getActive(ctx, sessionID, user)
	if err != nil {
		return nil, err
	}
	as.flight.Lock()
	defer as.flight.Unlock()
	return s.completeLocked(ctx, as)
}

// completeLocked finalizes a session that has reached its limit. Callers hold
// the flight lock.
func (s *sessionService) completeLocked(ctx context.Context, as *activeSession) (*SessionSummary, error) {
	as.mu.Lock()
	snap := *as.sess
	as.mu.Unlock()

	if snap.Completed < snap.Limit {
		return nil, apierr.New(http.StatusConflict, apierr.CodeSessionNotExhausted,
			fmt.Errorf("session has %d of %d exercises completed", snap.Completed, snap.Limit))
	}

	summary := ""
	summaryFailed := false
	if s.grader != nil {
		completed, _ := snap.CompletedList()
		text, err := s.grader.Summarize(ctx, &snap, completed)
		if err != nil {
			// The summary is celebratory UX; its failure never blocks completion.
			s.log.Warn("session summary generation failed", "session_id", snap.ID, "error", err)
			summaryFailed = true
		} else {
			summary = text
		}
	}

	if err := s.finalize(ctx, as, types.SessionCompleted); err != nil {
		return nil, err
	}
	as.mu.Lock()
	final := *as.sess
	as.mu.Unlock()
	return &SessionSummary{Session: &final, Summary: summary, SummaryFailed: summaryFailed}, nil
}

// applyScore is the single mutation entry point for submission results. It
// appends or updates the (exercise, score) entry, recomputes every aggregate
// from the list, and persists the snapshot. The in-memory aggregate is
// updated even when the save fails so the caller can degrade gracefully.
func (s *sessionService) applyScore(ctx context.Context, as *activeSession, exerciseID uuid.UUID, score int) (types.Session, bool, error) {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.sess.Status != types.SessionActive {
		return *as.sess, false, apierr.New(http.StatusConflict, apierr.CodeSessionClosed,
			fmt.Errorf("session is %s", as.sess.Status))
	}

	list, err := as.sess.CompletedList()
	if err != nil {
		return *as.sess, false, err
	}

	wasNew := true
	for i := range list {
		if list[i].ExerciseID == exerciseID {
			list[i].Score = score
			wasNew = false
			break
		}
	}
	if wasNew {
		if as.sess.Completed >= as.sess.Limit {
			return *as.sess, false, apierr.New(http.StatusConflict, apierr.CodeSessionClosed,
				fmt.Errorf("session already holds %d exercises", as.sess.Limit))
		}
		list = append(list, types.CompletedExercise{ExerciseID: exerciseID, Score: score})
	}

	if err := as.sess.SetCompletedList(list); err != nil {
		return *as.sess, wasNew, err
	}
	recomputeStats(as.sess, list)
	as.sess.ElapsedSeconds = int(s.now().Sub(as.sess.CreatedAt).Seconds())

	if err := s.sessions.Save(ctx, nil, as.sess); err != nil {
		return *as.sess, wasNew, apierr.New(http.StatusInternalServerError, apierr.CodeSessionNotFound, err)
	}
	return *as.sess, wasNew, nil
}

// recomputeStats rebuilds every aggregate from the completion list, which
// keeps completed == len(list) and correct == count(score>0) by construction.
func recomputeStats(sess *types.Session, list []types.CompletedExercise) {
	completed := len(list)
	correct := 0
	points := 0
	streak := 0
	maxStreak := 0
	for _, e := range list {
		points += e.Score
		if e.Score > 0 {
			correct++
			streak++
			if streak > maxStreak {
				maxStreak = streak
			}
		} else {
			streak = 0
		}
	}
	sess.Completed = completed
	sess.Correct = correct
	sess.Points = points
	sess.Streak = streak
	sess.MaxStreak = maxStreak
}

func (s *sessionService) finalize(ctx context.Context, as *activeSession, status string) error {
	as.mu.Lock()
	as.sess.Status = status
	as.sess.ElapsedSeconds = int(s.now().Sub(as.sess.CreatedAt).Seconds())
	snapID := as.sess.ID
	err := s.sessions.Save(ctx, nil, as.sess)
	as.mu.Unlock()
	if err != nil {
		s.log.Error("finalizing session failed", "session_id", snapID, "status", status, "error", err)
		return apierr.New(http.StatusInternalServerError, apierr.CodeSessionNotFound, err)
	}
	s.unregister(snapID)
	observability.Current().IncSessionFinalized(status)
	return nil
}

// finalizePrior closes out a session left ACTIVE by an earlier start. The
// repo row may be stale, so the status flip goes through the live aggregate,
// queued behind its flight lock: a submission being graded right now lands
// its score first and the final stats include it.
func (s *sessionService) finalizePrior(ctx context.Context, prev *types.Session) {
	as := s.register(prev)
	as.flight.Lock()
	defer as.flight.Unlock()

	as.mu.Lock()
	id := as.sess.ID
	active := as.sess.Status == types.SessionActive
	completed := as.sess.Completed
	as.mu.Unlock()
	if !active {
		s.unregister(id)
		return
	}

	status := types.SessionAbandoned
	if completed > 0 {
		status = types.SessionCompleted
	}
	if err := s.finalize(ctx, as, status); err != nil {
		s.log.Warn("finalizing prior active session failed", "session_id", id, "error", err)
	}
}

// getActive resolves a session that must be ACTIVE and owned by the caller,
// adopting it into the registry after a restart.
func (s *sessionService) getActive(ctx context.Context, sessionID uuid.UUID, user *types.User) (*activeSession, error) {
	if user == nil {
		return nil, apierr.New(http.StatusUnauthorized, apierr.CodeUnauthorized, nil)
	}
	s.regMu.Lock()
	as, ok := s.registry[sessionID]
	s.regMu.Unlock()
	if ok {
		as.mu.Lock()
		owner := as.sess.UserID
		status := as.sess.Status
		as.mu.Unlock()
		if owner != user.ID {
			return nil, apierr.New(http.StatusNotFound, apierr.CodeSessionNotFound, nil)
		}
		if status != types.SessionActive {
			return nil, apierr.New(http.StatusConflict, apierr.CodeSessionClosed,
				fmt.Errorf("session is %s", status))
		}
		return as, nil
	}

	sess, err := s.sessions.GetByID(ctx, nil, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.UserID != user.ID {
		return nil, apierr.New(http.StatusNotFound, apierr.CodeSessionNotFound, nil)
	}
	if sess.Status != types.SessionActive {
		return nil, apierr.New(http.StatusConflict, apierr.CodeSessionClosed,
			fmt.Errorf("session is %s", sess.Status))
	}
	return s.register(sess), nil
}

func (s *sessionService) register(sess *types.Session) *activeSession {
	s.regMu.Lock()
	defer s.regMu.Unlock()
	if existing, ok := s.registry[sess.ID]; ok {
		return existing
	}
	as := &activeSession{sess: sess}
	s.registry[sess.ID] = as
	return as
}

func (s *sessionService) unregister(sessionID uuid.UUID) {
	s.regMu.Lock()
	delete(s.registry, sessionID)
	s.regMu.Unlock()
}

func (s *sessionService) snapshot(sessionID uuid.UUID) *types.Session {
	s.regMu.Lock()
	as, ok := s.registry[sessionID]
	s.regMu.Unlock()
	if !ok {
		return nil
	}
	as.mu.Lock()
	snap := *as.sess
	as.mu.Unlock()
	return &snap
}

// StartAutoSave persists every active session's snapshot on a fixed interval,
// independent of submissions. A failed save is retried on the next tick.
func (s *sessionService) StartAutoSave(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.autosaveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.autosaveTick(ctx)
			}
		}
	}()
}

func (s *sessionService) autosaveTick(ctx context.Context) {
	s.regMu.Lock()
	entries := make([]*activeSession, 0, len(s.registry))
	for _, as := range s.registry {
		entries = append(entries, as)
	}
	s.regMu.Unlock()

	for _, as := range entries {
		as.mu.Lock()
		if as.sess.Status != types.SessionActive {
			as.mu.Unlock()
			continue
		}
		as.sess.ElapsedSeconds = int(s.now().Sub(as.sess.CreatedAt).Seconds())
		err := s.sessions.Save(ctx, nil, as.sess)
		id := as.sess.ID
		as.mu.Unlock()
		if err != nil {
			s.log.Warn("autosave failed; will retry next tick", "session_id", id, "error", err)
			observability.Current().IncAutosaveFailure()
		}
	}
}
