package api

import (
	"net/http"
	"strconv"

	"emailbot-backend/internal/auth"
	"emailbot-backend/internal/cache"
	"emailbot-backend/internal/database"

	"github.com/gin-gonic/gin"
)

const eventsPerPage = 50

// handleCreateEvent records one processed email address. The event also
// moves the caller's daily counters, so bots post here instead of calling
// log-activity separately.
// POST /api/events
func (s *Server) handleCreateEvent(c *gin.Context) {
	var req struct {
		Email     string `json:"email" binding:"required"`
		Success   *bool  `json:"success" binding:"required"`
		MachineID string `json:"machine_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	ctx := c.Request.Context()
	userID := auth.GetUserID(c)

	status := "failed"
	if *req.Success {
		status = "success"
	}

	event := &database.EmailEvent{
		UserID: userID,
		Email:  req.Email,
		Status: status,
	}
	if req.MachineID != "" {
		event.MachineID = &req.MachineID
	}

	if err := s.repo.CreateEmailEvent(ctx, event); err != nil {
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to record event")
		return
	}

	if _, err := s.statsService.LogEmailActivity(ctx, userID, *req.Success); err != nil {
		s.respondStatsError(c, err)
		return
	}

	if s.cacheService != nil {
		_ = s.cacheService.Delete(ctx, cache.SummaryKey(userID))
	}

	c.JSON(http.StatusCreated, event)
}

// handleListEvents returns one page of events, newest first. Admins see the
// whole fleet; everyone else sees their own.
// GET /api/events?page=1
func (s *Server) handleListEvents(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}

	scope := auth.GetUserID(c)
	if auth.IsAdmin(c) {
		scope = ""
	}

	events, total, err := s.repo.ListEmailEvents(c.Request.Context(), scope, eventsPerPage, (page-1)*eventsPerPage)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list events")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events":   events,
		"total":    total,
		"page":     page,
		"per_page": eventsPerPage,
	})
}
