package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/maturio/maturio-backend/internal/http/response"
	"github.com/maturio/maturio-backend/internal/pkg/logger"
	"github.com/maturio/maturio-backend/internal/services"
	"github.com/maturio/maturio-backend/internal/types"
)

type SessionHandler struct {
	log         *logger.Logger
	authService services.AuthService
	sessions    services.SessionService
	submissions services.SubmissionService
}

func NewSessionHandler(log *logger.Logger, authService services.AuthService, sessions services.SessionService, submissions services.SubmissionService) *SessionHandler {
	return &SessionHandler{
		log:         log.With("handler", "SessionHandler"),
		authService: authService,
		sessions:    sessions,
		submissions: submissions,
	}
}

type startSessionRequest struct {
	Filters types.ExerciseFilters `json:"filters"`
}

type submitRequest struct {
	ExerciseID uuid.UUID       `json:"exercise_id" binding:"required"`
	Answer     json.RawMessage `json:"answer" binding:"required"`
}

// POST /api/sessions
// Starting a new session finalizes whatever session was still open.
func (h *SessionHandler) Start(c *gin.Context) {
	user, err := h.authService.CurrentUser(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	sess, first, err := h.sessions.Start(c.Request.Context(), user, req.Filters)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"session": sess, "exercise": first})
}

// GET /api/sessions/:id
func (h *SessionHandler) Get(c *gin.Context) {
	user, err := h.authService.CurrentUser(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	sess, err := h.sessions.Get(c.Request.Context(), sessionID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	if sess.UserID != user.ID {
		response.RespondError(c, http.StatusNotFound, "session_not_found", nil)
		return
	}
	response.RespondOK(c, gin.H{"session": sess})
}

// GET /api/sessions/:id/next?exclude_id=<uuid>
// exclude_id marks the currently shown exercise as skipped.
func (h *SessionHandler) Next(c *gin.Context) {
	user, err := h.authService.CurrentUser(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	excludeID := uuid.Nil
	if raw := c.Query("exclude_id"); raw != "" {
		excludeID, err = uuid.Parse(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
	}
	exercise, err := h.sessions.NextExercise(c.Request.Context(), user, sessionID, excludeID, user.Sequential)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"exercise": exercise})
}

// POST /api/sessions/:id/submissions
func (h *SessionHandler) Submit(c *gin.Context) {
	user, err := h.authService.CurrentUser(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	result, err := h.submissions.Submit(c.Request.Context(), user, sessionID, req.ExerciseID, req.Answer)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, result)
}

// GET /api/sessions/:id/submissions
func (h *SessionHandler) ListSubmissions(c *gin.Context) {
	user, err := h.authService.CurrentUser(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	rows, err := h.submissions.ListBySession(c.Request.Context(), user, sessionID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"submissions": rows})
}

// POST /api/sessions/:id/exit
func (h *SessionHandler) RequestExit(c *gin.Context) {
	user, err := h.authService.CurrentUser(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	status, err := h.sessions.RequestExit(c.Request.Context(), user, sessionID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, status)
}

// POST /api/sessions/:id/exit/confirm
func (h *SessionHandler) ConfirmExit(c *gin.Context) {
	user, err := h.authService.CurrentUser(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	sess, err := h.sessions.ConfirmExit(c.Request.Context(), user, sessionID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"session": sess})
}

// POST /api/sessions/:id/complete
func (h *SessionHandler) Complete(c *gin.Context) {
	user, err := h.authService.CurrentUser(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	summary, err := h.sessions.Complete(c.Request.Context(), user, sessionID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, summary)
}
