package api

import (
	"net/http"
	"strconv"

	"emailbot-backend/internal/database"

	"github.com/gin-gonic/gin"
)

// handleListUsers returns all accounts with activity totals
// GET /api/admin/users
func (s *Server) handleListUsers(c *gin.Context) {
	users, err := s.repo.ListUsers(c.Request.Context())
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list users")
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
}

// handleUpdateUser applies a partial update to an account
// PATCH /api/admin/users/:id
func (s *Server) handleUpdateUser(c *gin.Context) {
	var req struct {
		Role     *string `json:"role"`
		IsActive *bool   `json:"is_active"`
		Password *string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	input := database.UpdateUserInput{
		Role:     req.Role,
		IsActive: req.IsActive,
	}

	if req.Role != nil && *req.Role != database.RoleAdmin && *req.Role != database.RoleUser {
		errorResponse(c, http.StatusBadRequest, "INVALID_ROLE", "role must be admin or user")
		return
	}

	if req.Password != nil {
		pm := s.authService.PasswordManager()
		if err := pm.ValidatePasswordStrength(*req.Password); err != nil {
			errorResponse(c, http.StatusBadRequest, "WEAK_PASSWORD", err.Error())
			return
		}
		hash, err := pm.HashPassword(*req.Password)
		if err != nil {
			errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to hash password")
			return
		}
		input.PasswordHash = &hash
	}

	id := c.Param("id")
	if err := s.repo.UpdateUser(c.Request.Context(), id, input); err != nil {
		errorResponse(c, http.StatusNotFound, "USER_NOT_FOUND", "user not found")
		return
	}

	s.record(c, "user_updated", "user", id, nil)

	user, err := s.repo.GetUserByID(c.Request.Context(), id)
	if err != nil || user == nil {
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to reload user")
		return
	}

	c.JSON(http.StatusOK, user)
}

// handleDeactivateUser disables an account and revokes its sessions
// DELETE /api/admin/users/:id
func (s *Server) handleDeactivateUser(c *gin.Context) {
	id := c.Param("id")

	if err := s.repo.DeactivateUser(c.Request.Context(), id); err != nil {
		errorResponse(c, http.StatusNotFound, "USER_NOT_FOUND", "user not found")
		return
	}

	if err := s.repo.RevokeAllRefreshTokens(c.Request.Context(), id); err == nil {
		s.hub.DisconnectUser(id)
	}

	s.record(c, "user_deactivated", "user", id, nil)

	c.JSON(http.StatusOK, gin.H{"message": "user deactivated"})
}

// handleListAudit returns recent audit entries, optionally filtered by action
// GET /api/admin/audit?action=login&limit=100
func (s *Server) handleListAudit(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit < 1 || limit > 1000 {
		limit = 100
	}

	entries, err := s.repo.ListAuditEntries(c.Request.Context(), c.Query("action"), limit)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list audit entries")
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

// handleListNotifications returns recent admin notifications
// GET /api/admin/notifications?unread=true
func (s *Server) handleListNotifications(c *gin.Context) {
	unreadOnly := c.Query("unread") == "true"
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 500 {
		limit = 50
	}

	notifications, err := s.repo.ListNotifications(c.Request.Context(), unreadOnly, limit)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list notifications")
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": notifications, "count": len(notifications)})
}

// handleMarkNotificationRead flags one notification as read
// POST /api/admin/notifications/:id/read
func (s *Server) handleMarkNotificationRead(c *gin.Context) {
	if err := s.repo.MarkNotificationRead(c.Request.Context(), c.Param("id")); err != nil {
		errorResponse(c, http.StatusNotFound, "NOTIFICATION_NOT_FOUND", "notification not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "notification marked read"})
}
