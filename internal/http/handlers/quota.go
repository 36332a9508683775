package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/maturio/maturio-backend/internal/http/response"
	"github.com/maturio/maturio-backend/internal/services"
	"github.com/maturio/maturio-backend/internal/types"
)

type QuotaHandler struct {
	authService services.AuthService
	quota       services.QuotaService
}

func NewQuotaHandler(authService services.AuthService, quota services.QuotaService) *QuotaHandler {
	return &QuotaHandler{authService: authService, quota: quota}
}

// GET /api/quota
// The free-tier daily counter plus, for premium accounts, the AI-points
// balance for the current billing period.
func (h *QuotaHandler) Get(c *gin.Context) {
	user, err := h.authService.CurrentUser(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}

	free, err := h.quota.CheckFreeQuota(c.Request.Context(), user)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	payload := gin.H{"plan": user.Plan, "free": free}

	if user.IsPremium() {
		budget, err := h.quota.CheckAiBudget(c.Request.Context(), user.ID, types.ExerciseEssay)
		if err != nil {
			response.RespondServiceError(c, err)
			return
		}
		payload["ai_points"] = gin.H{
			"used":      budget.Used,
			"limit":     budget.Limit,
			"remaining": budget.Remaining,
		}
	}
	response.RespondOK(c, payload)
}
