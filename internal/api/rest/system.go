package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timone-gs/timone-link/internal/protocol"
)

// GET /api/v1/system/status
func (s *Server) getSystemStatus(c *gin.Context) {
	status := s.lm.GetCurrentStatus()
	c.JSON(http.StatusOK, status)
}

// POST /api/v1/system/wakeup
func (s *Server) wakeupBoard(c *gin.Context) {
	record, err := s.lm.Hub().Wakeup(c.Request.Context())
	if err != nil {
		s.commandError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Board awake",
		"record":  record,
	})
}

// POST /api/v1/system/sleep
func (s *Server) sleepBoard(c *gin.Context) {
	record, err := s.lm.Hub().Sleep(c.Request.Context())
	if err != nil {
		s.commandError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Board sleeping",
		"record":  record,
	})
}

// POST /api/v1/system/reset
func (s *Server) resetBoard(c *gin.Context) {
	record, err := s.lm.Hub().SendCommand(c.Request.Context(), protocol.PeripheralSystem, protocol.CmdSystemReset, nil)
	if err != nil {
		s.commandError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Board reset",
		"record":  record,
	})
}

// POST /api/v1/system/shutdown
func (s *Server) shutdown(c *gin.Context) {
	c.JSON(http.StatusAccepted, gin.H{
		"message": "Shutdown initiated",
	})

	// Trigger shutdown in background
	go func() {
		ctx := c.Request.Context()
		s.lm.Shutdown(ctx)
	}()
}
