package api

import (
	"net/http"
	"strconv"

	"emailbot-backend/internal/auth"
	"emailbot-backend/internal/cache"
	"emailbot-backend/internal/stats"

	"github.com/gin-gonic/gin"
)

func (s *Server) respondStatsError(c *gin.Context, err error) {
	if statsErr, ok := err.(stats.StatsError); ok {
		status := http.StatusBadRequest
		if statsErr.Code == stats.ErrSessionNotFound.Code {
			status = http.StatusNotFound
		}
		errorResponse(c, status, statsErr.Code, statsErr.Message)
		return
	}
	errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "stats operation failed")
}

// handleLogActivity records one processed email for the caller
// POST /api/stats/log-activity
func (s *Server) handleLogActivity(c *gin.Context) {
	var req struct {
		Success *bool `json:"success" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	userID := auth.GetUserID(c)
	stat, err := s.statsService.LogEmailActivity(c.Request.Context(), userID, *req.Success)
	if err != nil {
		s.respondStatsError(c, err)
		return
	}

	// The cached summary is stale the moment a counter moves
	if s.cacheService != nil {
		_ = s.cacheService.Delete(c.Request.Context(), cache.SummaryKey(userID))
	}

	c.JSON(http.StatusOK, stat)
}

// handleStartSession opens a work session for the caller
// POST /api/stats/session/start
func (s *Server) handleStartSession(c *gin.Context) {
	var req struct {
		MachineID string `json:"machine_id"`
	}
	// The body is optional; a bare POST starts an unattributed session
	_ = c.ShouldBindJSON(&req)

	session, err := s.statsService.StartSession(c.Request.Context(), auth.GetUserID(c), req.MachineID)
	if err != nil {
		s.respondStatsError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"session_id": session.ID,
		"started_at": session.StartedAt,
	})
}

// handleEndSession closes a work session and credits its minutes to today
// POST /api/stats/session/end
func (s *Server) handleEndSession(c *gin.Context) {
	var req struct {
		SessionID string `json:"session_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	userID := auth.GetUserID(c)
	session, err := s.statsService.EndSession(c.Request.Context(), userID, req.SessionID)
	if err != nil {
		s.respondStatsError(c, err)
		return
	}

	if s.cacheService != nil {
		_ = s.cacheService.Delete(c.Request.Context(), cache.SummaryKey(userID))
	}

	c.JSON(http.StatusOK, session)
}

// handleGetSummary returns the caller's dashboard summary
// GET /api/stats/summary
func (s *Server) handleGetSummary(c *gin.Context) {
	userID := auth.GetUserID(c)
	ctx := c.Request.Context()

	if s.cacheService != nil {
		var cached stats.Summary
		if err := s.cacheService.GetJSON(ctx, cache.SummaryKey(userID), &cached); err == nil {
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	summary, err := s.statsService.GetSummary(ctx, userID)
	if err != nil {
		s.respondStatsError(c, err)
		return
	}

	if s.cacheService != nil {
		_ = s.cacheService.SetJSON(ctx, cache.SummaryKey(userID), summary, cache.DefaultSummaryTTL)
	}

	c.JSON(http.StatusOK, summary)
}

// handleListDailyStats returns the caller's recent daily rows
// GET /api/stats/daily?limit=30
func (s *Server) handleListDailyStats(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	rows, err := s.statsService.ListDaily(c.Request.Context(), auth.GetUserID(c), limit)
	if err != nil {
		s.respondStatsError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": rows, "count": len(rows)})
}

// handleListWeeklyStats returns the caller's weekly rollups
// GET /api/stats/weekly
func (s *Server) handleListWeeklyStats(c *gin.Context) {
	rows, err := s.statsService.ListWeekly(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		s.respondStatsError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": rows, "count": len(rows)})
}

// handleListMonthlyStats returns the caller's monthly rollups
// GET /api/stats/monthly
func (s *Server) handleListMonthlyStats(c *gin.Context) {
	rows, err := s.statsService.ListMonthly(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		s.respondStatsError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": rows, "count": len(rows)})
}

// handleExportStats returns the caller's rollup rows, as a CSV download or as
// JSON, over the same bounded windows either way
// GET /api/stats/export?period=daily&format=csv&limit=30
func (s *Server) handleExportStats(c *gin.Context) {
	period := c.DefaultQuery("period", "daily")
	format := c.DefaultQuery("format", "csv")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	switch format {
	case "csv":
		data, filename, err := s.statsService.Export(c.Request.Context(), auth.GetUserID(c), period, limit)
		if err != nil {
			s.respondStatsError(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		c.Data(http.StatusOK, "text/csv", data)
	case "json":
		s.exportStatsJSON(c, period, limit)
	default:
		errorResponse(c, http.StatusBadRequest, "INVALID_FORMAT", "format must be json or csv")
	}
}

func (s *Server) exportStatsJSON(c *gin.Context, period string, limit int) {
	ctx := c.Request.Context()
	userID := auth.GetUserID(c)

	var (
		rows interface{}
		err  error
	)
	switch period {
	case "daily":
		rows, err = s.statsService.ListDaily(ctx, userID, limit)
	case "weekly":
		rows, err = s.statsService.ListWeekly(ctx, userID)
	case "monthly":
		rows, err = s.statsService.ListMonthly(ctx, userID)
	default:
		err = stats.ErrInvalidPeriod
	}
	if err != nil {
		s.respondStatsError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"period": period, "stats": rows})
}

// handleUpdateDailyStats writes absolute counters for one user/day
// PUT /api/admin/users/:id/daily-stats
func (s *Server) handleUpdateDailyStats(c *gin.Context) {
	var req stats.UpdateDailyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	targetID := c.Param("id")
	stat, err := s.statsService.UpdateDailyStats(c.Request.Context(), targetID, req)
	if err != nil {
		s.respondStatsError(c, err)
		return
	}

	if s.cacheService != nil {
		_ = s.cacheService.Delete(c.Request.Context(), cache.SummaryKey(targetID))
	}

	s.record(c, "daily_stats_updated", "user", targetID, map[string]interface{}{
		"date": req.Date,
	})

	c.JSON(http.StatusOK, stat)
}
