package rest

import (
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/timone-gs/timone-link/internal/peripherals"
	"github.com/timone-gs/timone-link/internal/protocol"
	"github.com/timone-gs/timone-link/internal/types"
)

// GET /api/v1/peripherals
func (s *Server) listPeripherals(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"peripherals": s.lm.Profiles(),
	})
}

// GET /api/v1/peripherals/:name
func (s *Server) getPeripheral(c *gin.Context) {
	profile := s.findProfile(c.Param("name"))
	if profile == nil {
		c.JSON(http.StatusNotFound, types.NewErrorResponse("PERIPHERAL_404", "Peripheral not found", c.Param("name")))
		return
	}
	c.JSON(http.StatusOK, profile)
}

// POST /api/v1/peripherals/:name/command
func (s *Server) sendPeripheralCommand(c *gin.Context) {
	profile := s.findProfile(c.Param("name"))
	if profile == nil {
		c.JSON(http.StatusNotFound, types.NewErrorResponse("PERIPHERAL_404", "Peripheral not found", c.Param("name")))
		return
	}

	var req struct {
		Command *int   `json:"command" binding:"required"`
		Data    string `json:"data"` // Hex-encoded, optional
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("PERIPHERAL_400", "Invalid request body", err.Error()))
		return
	}

	if *req.Command < 0 || *req.Command > 0xFF {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("PERIPHERAL_400", "Command must be a single byte", *req.Command))
		return
	}

	var data []byte
	if req.Data != "" {
		var err error
		data, err = hex.DecodeString(req.Data)
		if err != nil {
			c.JSON(http.StatusBadRequest, types.NewErrorResponse("PERIPHERAL_400", "Data must be hex-encoded", err.Error()))
			return
		}
	}

	peripheral := peripherals.PeripheralID(profile)
	cmd := protocol.CommandCode(*req.Command)

	record, err := s.lm.Hub().SendCommand(c.Request.Context(), peripheral, cmd, data)
	if err != nil {
		s.commandError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"peripheral": profile.Name,
		"command":    cmd.String(),
		"kind":       record.TelemetryKind(),
		"record":     record,
	})
}

// GET /api/v1/peripherals/:name/telemetry
func (s *Server) getPeripheralTelemetry(c *gin.Context) {
	profile := s.findProfile(c.Param("name"))
	if profile == nil {
		c.JSON(http.StatusNotFound, types.NewErrorResponse("PERIPHERAL_404", "Peripheral not found", c.Param("name")))
		return
	}

	store := s.lm.Storage()
	if store == nil {
		c.JSON(http.StatusServiceUnavailable, types.NewErrorResponse("TELEMETRY_503", "Telemetry archive disabled", nil))
		return
	}

	limit := parseLimit(c.DefaultQuery("limit", "50"))

	entries, err := store.RecentTelemetryByPeripheral(c.Request.Context(), peripherals.PeripheralID(profile), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("TELEMETRY_500", "Failed to load telemetry", err.Error()))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"peripheral": profile.Name,
		"entries":    entries,
	})
}

// commandError maps link errors to HTTP status codes
func (s *Server) commandError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, protocol.ErrTimeout):
		c.JSON(http.StatusGatewayTimeout, types.NewErrorResponse("LINK_504", "Peripheral did not reply", err.Error()))
	case errors.Is(err, protocol.ErrNotConnected):
		c.JSON(http.StatusServiceUnavailable, types.NewErrorResponse("LINK_503", "Serial link not connected", err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("LINK_500", "Command failed", err.Error()))
	}
}

func (s *Server) findProfile(name string) *types.PeripheralProfile {
	for _, p := range s.lm.Profiles() {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func parseLimit(raw string) int {
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 50
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}
