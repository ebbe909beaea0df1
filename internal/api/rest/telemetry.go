package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timone-gs/timone-link/internal/types"
)

// GET /api/v1/telemetry/recent
func (s *Server) getRecentTelemetry(c *gin.Context) {
	store := s.lm.Storage()
	if store == nil {
		c.JSON(http.StatusServiceUnavailable, types.NewErrorResponse("TELEMETRY_503", "Telemetry archive disabled", nil))
		return
	}

	limit := parseLimit(c.DefaultQuery("limit", "50"))

	entries, err := store.RecentTelemetry(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("TELEMETRY_500", "Failed to load telemetry", err.Error()))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
	})
}
