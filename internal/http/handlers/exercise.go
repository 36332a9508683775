package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/maturio/maturio-backend/internal/http/response"
	"github.com/maturio/maturio-backend/internal/repos"
	"github.com/maturio/maturio-backend/internal/services"
	"github.com/maturio/maturio-backend/internal/types"
)

type ExerciseHandler struct {
	authService services.AuthService
	catalog     services.CatalogService
	progression services.ProgressionService
}

func NewExerciseHandler(authService services.AuthService, catalog services.CatalogService, progression services.ProgressionService) *ExerciseHandler {
	return &ExerciseHandler{authService: authService, catalog: catalog, progression: progression}
}

// GET /api/exercises/count
// Pre-session preview: how many exercises the given filters match for this
// learner, honoring their current difficulty ceiling.
func (h *ExerciseHandler) Count(c *gin.Context) {
	user, err := h.authService.CurrentUser(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}

	filters := filtersFromQuery(c)
	progress, err := h.progression.Get(c.Request.Context(), user.ID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	q := repos.ExerciseQuery{
		Filters:       filters,
		MaxDifficulty: progress.CurrentMaxDifficulty,
	}
	if !user.IsPremium() {
		q.AllowedTypes = types.ClosedTypes()
	}
	count, err := h.catalog.Count(c.Request.Context(), q)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"count": count})
}

func filtersFromQuery(c *gin.Context) types.ExerciseFilters {
	var f types.ExerciseFilters
	if v := c.Query("category"); v != "" {
		f.Category = &v
	}
	if v := c.Query("epochs"); v != "" {
		f.Epochs = splitCSV(v)
	}
	if v := c.Query("types"); v != "" {
		f.Types = splitCSV(v)
	}
	if v := c.Query("literary_work"); v != "" {
		f.LiteraryWork = &v
	}
	if v := c.Query("search"); v != "" {
		f.Search = &v
	}
	if v := c.Query("difficulties"); v != "" {
		for _, part := range splitCSV(v) {
			if d, err := strconv.Atoi(part); err == nil {
				f.Difficulties = append(f.Difficulties, d)
			}
		}
	}
	return f
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
