package api

import (
	"net/http"
	"strconv"

	"emailbot-backend/internal/auth"
	"emailbot-backend/internal/screenshots"

	"github.com/gin-gonic/gin"
)

func screenshotErrorStatus(err screenshots.ScreenshotError) int {
	switch err.Code {
	case screenshots.ErrNotFound.Code:
		return http.StatusNotFound
	case screenshots.ErrForbidden.Code:
		return http.StatusForbidden
	case screenshots.ErrTooLarge.Code:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusBadRequest
	}
}

func (s *Server) respondScreenshotError(c *gin.Context, err error) {
	if shotErr, ok := err.(screenshots.ScreenshotError); ok {
		errorResponse(c, screenshotErrorStatus(shotErr), shotErr.Code, shotErr.Message)
		return
	}
	errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "screenshot operation failed")
}

// handleUploadScreenshot stores one base64-encoded screenshot
// POST /api/screenshots
func (s *Server) handleUploadScreenshot(c *gin.Context) {
	var req screenshots.UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	shot, err := s.screenshotService.Upload(c.Request.Context(), auth.GetUserID(c), req)
	if err != nil {
		s.respondScreenshotError(c, err)
		return
	}

	c.JSON(http.StatusCreated, shot)
}

// handleListScreenshots returns one page of screenshot metadata. Admins see
// everyone's uploads.
// GET /api/screenshots?page=1
func (s *Server) handleListScreenshots(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))

	result, err := s.screenshotService.List(c.Request.Context(), auth.GetUserID(c), auth.IsAdmin(c), page)
	if err != nil {
		s.respondScreenshotError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// handleDownloadScreenshot streams one screenshot's image data
// GET /api/screenshots/:id/download
func (s *Server) handleDownloadScreenshot(c *gin.Context) {
	shot, data, err := s.screenshotService.Open(c.Request.Context(), c.Param("id"), auth.GetUserID(c), auth.IsAdmin(c))
	if err != nil {
		s.respondScreenshotError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+shot.Filename+`"`)
	c.Data(http.StatusOK, "image/png", data)
}

// handleDeleteScreenshot removes one screenshot
// DELETE /api/screenshots/:id
func (s *Server) handleDeleteScreenshot(c *gin.Context) {
	id := c.Param("id")
	if err := s.screenshotService.Delete(c.Request.Context(), id, auth.GetUserID(c), auth.IsAdmin(c)); err != nil {
		s.respondScreenshotError(c, err)
		return
	}

	s.record(c, "screenshot_deleted", "screenshot", id, nil)

	c.JSON(http.StatusOK, gin.H{"message": "screenshot deleted"})
}

// handleCleanupScreenshots deletes screenshots older than the given age
// POST /api/admin/screenshots/cleanup
func (s *Server) handleCleanupScreenshots(c *gin.Context) {
	var req struct {
		OlderThanDays int `json:"older_than_days"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		errorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	deleted, err := s.screenshotService.Cleanup(c.Request.Context(), req.OlderThanDays)
	if err != nil {
		s.respondScreenshotError(c, err)
		return
	}

	s.record(c, "screenshots_cleaned", "screenshot", "", map[string]interface{}{
		"deleted":         deleted,
		"older_than_days": req.OlderThanDays,
	})

	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}
