package license

import (
	"context"
	"fmt"
	"time"

	"emailbot-backend/internal/database"
)

// Store is the persistence surface the license engine needs.
// *database.Repository satisfies it.
type Store interface {
	CreateLicense(ctx context.Context, license *database.License) error
	GetLicenseByKey(ctx context.Context, key string) (*database.License, error)
	GetActiveLicenseByKey(ctx context.Context, key string) (*database.License, error)
	GetLicenseByID(ctx context.Context, id string) (*database.License, error)
	ListLicenses(ctx context.Context) ([]database.LicenseWithUsage, error)
	UpdateLicense(ctx context.Context, id string, input database.UpdateLicenseInput) error
	DeactivateLicense(ctx context.Context, id string) error
	GetActivation(ctx context.Context, licenseID, machineID string) (*database.Activation, error)
	GetActivationByID(ctx context.Context, id string) (*database.Activation, error)
	CountActivations(ctx context.Context, licenseID string) (int, error)
	CreateActivation(ctx context.Context, activation *database.Activation) error
	TouchActivation(ctx context.Context, id string, ip *string, userID *string) error
	RefreshActivationLastSeen(ctx context.Context, id string) (time.Time, error)
	RevokeActivation(ctx context.Context, id string) error
	ListActivations(ctx context.Context, licenseID string) ([]database.Activation, error)
}

// Service implements license issuance, activation and validation
type Service struct {
	repo Store
}

// NewService creates a new license service
func NewService(repo Store) *Service {
	return &Service{repo: repo}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Create issues a new license with a freshly generated key
func (s *Service) Create(ctx context.Context, req CreateRequest, createdBy string) (*database.License, error) {
	if req.MaxActivations < 1 {
		return nil, LicenseError{Code: ErrInvalidInput.Code, Message: "max_activations must be at least 1"}
	}

	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}

	lic := &database.License{
		LicenseKey:     key,
		MaxActivations: req.MaxActivations,
		ExpiresAt:      req.ExpiresAt,
		IsActive:       true,
		Notes:          req.Notes,
	}
	if createdBy != "" {
		lic.CreatedBy = &createdBy
	}

	if err := s.repo.CreateLicense(ctx, lic); err != nil {
		return nil, fmt.Errorf("failed to create license: %w", err)
	}

	return lic, nil
}

// Activate binds a machine to a license. Repeat activation from the same
// machine is idempotent and refreshes its last-seen timestamp.
func (s *Service) Activate(ctx context.Context, req ActivateRequest, ip, userID string) (*ActivationResult, error) {
	lic, err := s.repo.GetActiveLicenseByKey(ctx, NormalizeKey(req.LicenseKey))
	if err != nil {
		return nil, fmt.Errorf("failed to look up license: %w", err)
	}
	if lic == nil {
		return nil, ErrLicenseNotFound
	}

	if lic.ExpiresAt != nil && lic.ExpiresAt.Before(time.Now()) {
		return nil, ErrLicenseExpired
	}

	existing, err := s.repo.GetActivation(ctx, lic.ID, req.MachineID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up activation: %w", err)
	}
	if existing != nil {
		if err := s.repo.TouchActivation(ctx, existing.ID, optional(ip), optional(userID)); err != nil {
			return nil, fmt.Errorf("failed to touch activation: %w", err)
		}
		return &ActivationResult{
			ActivationID: existing.ID,
			LicenseID:    lic.ID,
			ExpiresAt:    lic.ExpiresAt,
			Existing:     true,
		}, nil
	}

	// The limit only gates machines not yet activated
	count, err := s.repo.CountActivations(ctx, lic.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count activations: %w", err)
	}
	if count >= lic.MaxActivations {
		return nil, ErrActivationLimit
	}

	activation := &database.Activation{
		LicenseID: lic.ID,
		MachineID: req.MachineID,
		UserID:    optional(userID),
		IP:        optional(ip),
		Hostname:  optional(req.Hostname),
		OSInfo:    optional(req.OSInfo),
	}
	if err := s.repo.CreateActivation(ctx, activation); err != nil {
		return nil, fmt.Errorf("failed to create activation: %w", err)
	}

	return &ActivationResult{
		ActivationID: activation.ID,
		LicenseID:    lic.ID,
		ExpiresAt:    lic.ExpiresAt,
	}, nil
}

// Validate checks that a machine holds a live activation and refreshes its
// last-seen timestamp
func (s *Service) Validate(ctx context.Context, req ValidateRequest) (*ValidateResult, error) {
	lic, err := s.repo.GetActiveLicenseByKey(ctx, NormalizeKey(req.LicenseKey))
	if err != nil {
		return nil, fmt.Errorf("failed to look up license: %w", err)
	}
	if lic == nil {
		return nil, ErrLicenseNotFound
	}

	if lic.ExpiresAt != nil && lic.ExpiresAt.Before(time.Now()) {
		return nil, ErrLicenseExpired
	}

	activation, err := s.repo.GetActivation(ctx, lic.ID, req.MachineID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up activation: %w", err)
	}
	if activation == nil {
		return nil, ErrNotActivated
	}

	lastSeen, err := s.repo.RefreshActivationLastSeen(ctx, activation.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh activation: %w", err)
	}

	return &ValidateResult{
		Valid:     true,
		ExpiresAt: lic.ExpiresAt,
		LastSeen:  lastSeen,
	}, nil
}

// GetByKey returns a license by key, revoked ones included. Admin lookup;
// clients go through Validate instead.
func (s *Service) GetByKey(ctx context.Context, key string) (*database.License, error) {
	lic, err := s.repo.GetLicenseByKey(ctx, NormalizeKey(key))
	if err != nil {
		return nil, fmt.Errorf("failed to get license: %w", err)
	}
	if lic == nil {
		return nil, ErrLicenseNotFound
	}
	return lic, nil
}

// Get returns a license by ID
func (s *Service) Get(ctx context.Context, id string) (*database.License, error) {
	lic, err := s.repo.GetLicenseByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get license: %w", err)
	}
	if lic == nil {
		return nil, ErrLicenseNotFound
	}
	return lic, nil
}

// List returns all licenses with usage counts
func (s *Service) List(ctx context.Context) ([]database.LicenseWithUsage, error) {
	return s.repo.ListLicenses(ctx)
}

// Update applies a partial update to a license
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*database.License, error) {
	input := database.UpdateLicenseInput{
		MaxActivations: req.MaxActivations,
		IsActive:       req.IsActive,
		Notes:          req.Notes,
	}
	if req.ClearExpiry {
		var cleared *time.Time
		input.ExpiresAt = &cleared
	} else if req.ExpiresAt != nil {
		expiry := req.ExpiresAt
		input.ExpiresAt = &expiry
	}

	if input.IsEmpty() {
		return nil, ErrInvalidInput
	}

	if err := s.repo.UpdateLicense(ctx, id, input); err != nil {
		return nil, fmt.Errorf("failed to update license: %w", err)
	}

	return s.Get(ctx, id)
}

// Revoke deactivates a license. Rows are kept for the audit trail.
func (s *Service) Revoke(ctx context.Context, id string) error {
	if err := s.repo.DeactivateLicense(ctx, id); err != nil {
		return fmt.Errorf("failed to revoke license: %w", err)
	}
	return nil
}

// GetActivationByID returns one activation row for admin handlers
func (s *Service) GetActivationByID(ctx context.Context, id string) (*database.Activation, error) {
	act, err := s.repo.GetActivationByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get activation: %w", err)
	}
	if act == nil {
		return nil, ErrNotActivated
	}
	return act, nil
}

// RevokeActivation frees one activation slot on a license
func (s *Service) RevokeActivation(ctx context.Context, activationID string) error {
	if err := s.repo.RevokeActivation(ctx, activationID); err != nil {
		return fmt.Errorf("failed to revoke activation: %w", err)
	}
	return nil
}

// ListActivations returns all activations for a license
func (s *Service) ListActivations(ctx context.Context, licenseID string) ([]database.Activation, error) {
	return s.repo.ListActivations(ctx, licenseID)
}
