package api

import (
	"net/http"

	"emailbot-backend/internal/auth"
	"emailbot-backend/internal/monitor"

	"github.com/gin-gonic/gin"
)

// handleHeartbeat records a liveness report and returns the remote pause flag
// POST /api/heartbeat
func (s *Server) handleHeartbeat(c *gin.Context) {
	var req monitor.HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	resp, err := s.monitorService.RecordHeartbeat(c.Request.Context(), auth.GetUserID(c), req, c.ClientIP())
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to record heartbeat")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// handleGetFleet returns the fleet dashboard snapshot
// GET /api/admin/fleet
func (s *Server) handleGetFleet(c *gin.Context) {
	fleet, err := s.monitorService.Fleet(c.Request.Context())
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to load fleet")
		return
	}

	c.JSON(http.StatusOK, fleet)
}

// handlePauseMachine sets the remote pause flag on one machine
// POST /api/admin/machines/:id/pause
func (s *Server) handlePauseMachine(c *gin.Context) {
	s.setMachinePause(c, true)
}

// handleResumeMachine clears the remote pause flag on one machine
// POST /api/admin/machines/:id/resume
func (s *Server) handleResumeMachine(c *gin.Context) {
	s.setMachinePause(c, false)
}

func (s *Server) setMachinePause(c *gin.Context, paused bool) {
	id := c.Param("id")

	hb, err := s.monitorService.SetPaused(c.Request.Context(), id, paused)
	if err != nil {
		errorResponse(c, http.StatusNotFound, "MACHINE_NOT_FOUND", "machine not found")
		return
	}

	action := "machine_resumed"
	if paused {
		action = "machine_paused"
	}
	s.record(c, action, "heartbeat", hb.ID, map[string]interface{}{
		"machine_id": hb.MachineID,
		"user_id":    hb.UserID,
	})

	c.JSON(http.StatusOK, hb)
}
