package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/maturio/maturio-backend/internal/http/response"
	"github.com/maturio/maturio-backend/internal/services"
)

type ProgressHandler struct {
	authService services.AuthService
	progression services.ProgressionService
}

func NewProgressHandler(authService services.AuthService, progression services.ProgressionService) *ProgressHandler {
	return &ProgressHandler{authService: authService, progression: progression}
}

// GET /api/progress
func (h *ProgressHandler) Get(c *gin.Context) {
	user, err := h.authService.CurrentUser(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	status, err := h.progression.Get(c.Request.Context(), user.ID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"progress": status})
}
