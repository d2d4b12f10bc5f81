package license

import (
	"time"
)

// LicenseError is a typed license engine error
type LicenseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e LicenseError) Error() string {
	return e.Message
}

// Common license errors
var (
	ErrLicenseNotFound = LicenseError{Code: "LICENSE_NOT_FOUND", Message: "invalid license key"}
	ErrLicenseExpired  = LicenseError{Code: "LICENSE_EXPIRED", Message: "license has expired"}
	ErrActivationLimit = LicenseError{Code: "ACTIVATION_LIMIT", Message: "activation limit reached"}
	ErrNotActivated    = LicenseError{Code: "NOT_ACTIVATED", Message: "license not activated on this machine"}
	ErrInvalidInput    = LicenseError{Code: "INVALID_INPUT", Message: "no fields to update"}
)

// CreateRequest describes a new license to issue
type CreateRequest struct {
	MaxActivations int        `json:"max_activations" binding:"required,min=1"`
	ExpiresAt      *time.Time `json:"expires_at"`
	Notes          string     `json:"notes"`
}

// ActivateRequest binds a machine to a license key
type ActivateRequest struct {
	LicenseKey string `json:"license_key" binding:"required"`
	MachineID  string `json:"machine_id" binding:"required"`
	Hostname   string `json:"hostname"`
	OSInfo     string `json:"os_info"`
}

// ActivationResult is returned from a successful activation
type ActivationResult struct {
	ActivationID string     `json:"activation_id"`
	LicenseID    string     `json:"license_id"`
	ExpiresAt    *time.Time `json:"expires_at"`
	Existing     bool       `json:"-"`
}

// ValidateRequest checks an existing activation
type ValidateRequest struct {
	LicenseKey string `json:"license_key" binding:"required"`
	MachineID  string `json:"machine_id" binding:"required"`
}

// ValidateResult reports the state of an activation
type ValidateResult struct {
	Valid     bool       `json:"valid"`
	ExpiresAt *time.Time `json:"expires_at"`
	LastSeen  time.Time  `json:"last_seen"`
}

// UpdateRequest carries a partial license update. A null expires_at in the
// request body clears the expiry; an absent field leaves it untouched.
type UpdateRequest struct {
	MaxActivations *int       `json:"max_activations"`
	ExpiresAt      *time.Time `json:"expires_at"`
	ClearExpiry    bool       `json:"clear_expiry"`
	IsActive       *bool      `json:"is_active"`
	Notes          *string    `json:"notes"`
}
