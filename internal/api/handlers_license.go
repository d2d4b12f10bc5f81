package api

import (
	"fmt"
	"net/http"

	"emailbot-backend/internal/auth"
	"emailbot-backend/internal/cache"
	"emailbot-backend/internal/license"

	"github.com/gin-gonic/gin"
)

// licenseErrorStatus maps license engine errors to HTTP status codes.
// An unknown or inactive key is reported as not found so probes cannot
// distinguish revoked keys from ones that never existed.
func licenseErrorStatus(err license.LicenseError) int {
	switch err.Code {
	case license.ErrLicenseNotFound.Code:
		return http.StatusNotFound
	case license.ErrLicenseExpired.Code, license.ErrActivationLimit.Code, license.ErrNotActivated.Code:
		return http.StatusForbidden
	default:
		return http.StatusBadRequest
	}
}

// dropCachedValidations clears every machine's cached validation for a key.
// Called when a license is revoked or edited so clients stop passing early.
func (s *Server) dropCachedValidations(c *gin.Context, licenseKey string) {
	if s.cacheService == nil {
		return
	}
	_ = s.cacheService.DeletePattern(c.Request.Context(), cache.ValidationPattern(licenseKey))
}

func (s *Server) respondLicenseError(c *gin.Context, err error) {
	if licErr, ok := err.(license.LicenseError); ok {
		errorResponse(c, licenseErrorStatus(licErr), licErr.Code, licErr.Message)
		return
	}
	errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "license operation failed")
}

// handleActivateLicense binds the calling machine to a license key
// POST /api/license/activate
func (s *Server) handleActivateLicense(c *gin.Context) {
	var req license.ActivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	result, err := s.licenseService.Activate(c.Request.Context(), req, c.ClientIP(), auth.GetUserID(c))
	if err != nil {
		if licErr, ok := err.(license.LicenseError); ok && licErr.Code == license.ErrActivationLimit.Code {
			s.notifyAdmins(c, "license_limit",
				fmt.Sprintf("license %s hit its activation limit", license.NormalizeKey(req.LicenseKey)),
				"license", "")
		}
		s.respondLicenseError(c, err)
		return
	}

	if result.Existing {
		c.JSON(http.StatusOK, gin.H{
			"message":       "already activated on this machine",
			"activation_id": result.ActivationID,
		})
		return
	}

	s.record(c, "license_activated", "activation", result.ActivationID, map[string]interface{}{
		"license_id": result.LicenseID,
		"machine_id": req.MachineID,
	})

	c.JSON(http.StatusCreated, result)
}

// handleValidateLicense checks the calling machine's activation
// POST /api/license/validate
func (s *Server) handleValidateLicense(c *gin.Context) {
	var req license.ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	ctx := c.Request.Context()
	cacheKey := cache.ValidationKey(license.NormalizeKey(req.LicenseKey), req.MachineID)

	// Bots validate on every run; a recent positive answer is served from
	// cache. Negative answers are never cached. A cache hit also skips the
	// last_seen refresh, so that column can lag by up to the cache TTL.
	if s.cacheService != nil {
		var cached license.ValidateResult
		if err := s.cacheService.GetJSON(ctx, cacheKey, &cached); err == nil {
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	result, err := s.licenseService.Validate(ctx, req)
	if err != nil {
		s.respondLicenseError(c, err)
		return
	}

	if s.cacheService != nil {
		_ = s.cacheService.SetJSON(ctx, cacheKey, result, cache.DefaultValidationTTL)
	}

	c.JSON(http.StatusOK, result)
}

// handleCreateLicense issues a new license
// POST /api/admin/licenses
func (s *Server) handleCreateLicense(c *gin.Context) {
	var req license.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	lic, err := s.licenseService.Create(c.Request.Context(), req, auth.GetUserID(c))
	if err != nil {
		s.respondLicenseError(c, err)
		return
	}

	s.record(c, "license_created", "license", lic.ID, map[string]interface{}{
		"max_activations": lic.MaxActivations,
	})

	c.JSON(http.StatusCreated, lic)
}

// handleListLicenses returns all licenses with usage counts
// GET /api/admin/licenses
func (s *Server) handleListLicenses(c *gin.Context) {
	licenses, err := s.licenseService.List(c.Request.Context())
	if err != nil {
		s.respondLicenseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"licenses": licenses, "count": len(licenses)})
}

// handleGetLicense returns one license
// GET /api/admin/licenses/:id
func (s *Server) handleGetLicense(c *gin.Context) {
	lic, err := s.licenseService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondLicenseError(c, err)
		return
	}

	c.JSON(http.StatusOK, lic)
}

// handleUpdateLicense applies a partial license update
// PATCH /api/admin/licenses/:id
func (s *Server) handleUpdateLicense(c *gin.Context) {
	var req license.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	lic, err := s.licenseService.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		s.respondLicenseError(c, err)
		return
	}

	s.dropCachedValidations(c, lic.LicenseKey)
	s.record(c, "license_updated", "license", lic.ID, nil)

	c.JSON(http.StatusOK, lic)
}

// handleRevokeLicense deactivates a license
// DELETE /api/admin/licenses/:id
func (s *Server) handleRevokeLicense(c *gin.Context) {
	id := c.Param("id")

	// Resolve the key before revoking so the cached validations can be dropped
	lic, err := s.licenseService.Get(c.Request.Context(), id)
	if err != nil {
		s.respondLicenseError(c, err)
		return
	}

	if err := s.licenseService.Revoke(c.Request.Context(), id); err != nil {
		s.respondLicenseError(c, err)
		return
	}

	s.dropCachedValidations(c, lic.LicenseKey)
	s.record(c, "license_revoked", "license", id, nil)

	c.JSON(http.StatusOK, gin.H{"message": "license revoked"})
}

// handleListActivations lists a license's activations
// GET /api/admin/licenses/:id/activations
func (s *Server) handleListActivations(c *gin.Context) {
	activations, err := s.licenseService.ListActivations(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondLicenseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"activations": activations, "count": len(activations)})
}

// handleRevokeActivation frees one activation slot
// POST /api/admin/activations/:id/revoke
func (s *Server) handleRevokeActivation(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	// Resolve the machine and key first so this machine's cached validation
	// can be dropped along with the activation
	act, err := s.licenseService.GetActivationByID(ctx, id)
	if err != nil {
		s.respondLicenseError(c, err)
		return
	}

	if err := s.licenseService.RevokeActivation(ctx, id); err != nil {
		s.respondLicenseError(c, err)
		return
	}

	if s.cacheService != nil {
		if lic, err := s.licenseService.Get(ctx, act.LicenseID); err == nil {
			_ = s.cacheService.Delete(ctx, cache.ValidationKey(lic.LicenseKey, act.MachineID))
		}
	}

	s.record(c, "activation_revoked", "activation", id, map[string]interface{}{
		"license_id": act.LicenseID,
		"machine_id": act.MachineID,
	})

	c.JSON(http.StatusOK, gin.H{"message": "activation revoked"})
}
