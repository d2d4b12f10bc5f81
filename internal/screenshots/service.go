package screenshots

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"emailbot-backend/config"
	"emailbot-backend/internal/database"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ScreenshotError is a typed screenshot service error
type ScreenshotError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e ScreenshotError) Error() string {
	return e.Message
}

var (
	ErrNotFound     = ScreenshotError{Code: "SCREENSHOT_NOT_FOUND", Message: "screenshot not found"}
	ErrTooLarge     = ScreenshotError{Code: "SCREENSHOT_TOO_LARGE", Message: "screenshot exceeds the size limit"}
	ErrInvalidImage = ScreenshotError{Code: "INVALID_IMAGE", Message: "image data is not valid base64"}
	ErrForbidden    = ScreenshotError{Code: "FORBIDDEN", Message: "not allowed to access this screenshot"}
)

// UploadRequest carries one base64-encoded screenshot
type UploadRequest struct {
	ImageData string `json:"image_base64" binding:"required"`
	MachineID string `json:"machine_id"`
	Note      string `json:"note"`
}

// Page is one page of screenshot metadata
type Page struct {
	Screenshots []database.Screenshot `json:"screenshots"`
	Total       int64                 `json:"total"`
	Page        int                   `json:"page"`
	PerPage     int                   `json:"per_page"`
}

// Service stores screenshots on disk with their metadata in Postgres
type Service struct {
	repo   *database.Repository
	cfg    config.StorageConfig
	logger zerolog.Logger
}

// NewService creates the service and ensures the storage directory exists
func NewService(repo *database.Repository, cfg config.StorageConfig, logger zerolog.Logger) (*Service, error) {
	if err := os.MkdirAll(cfg.ScreenshotDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create screenshot directory: %w", err)
	}

	return &Service{
		repo:   repo,
		cfg:    cfg,
		logger: logger.With().Str("component", "screenshots").Logger(),
	}, nil
}

// Upload decodes and stores one screenshot for a user
func (s *Service) Upload(ctx context.Context, userID string, req UploadRequest) (*database.Screenshot, error) {
	data, err := decodeImage(req.ImageData)
	if err != nil {
		return nil, ErrInvalidImage
	}

	maxBytes := int64(s.cfg.MaxScreenshotMB) * 1024 * 1024
	if int64(len(data)) > maxBytes {
		return nil, ErrTooLarge
	}

	filename := uuid.New().String() + ".png"
	path := filepath.Join(s.cfg.ScreenshotDir, filename)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write screenshot: %w", err)
	}

	shot := &database.Screenshot{
		UserID:    userID,
		Filename:  filename,
		SizeBytes: int64(len(data)),
	}
	if req.MachineID != "" {
		shot.MachineID = &req.MachineID
	}
	if req.Note != "" {
		shot.Note = &req.Note
	}

	if err := s.repo.CreateScreenshot(ctx, shot); err != nil {
		// Orphaned file, remove it so disk usage tracks the table
		if rmErr := os.Remove(path); rmErr != nil {
			s.logger.Warn().Err(rmErr).Str("path", path).Msg("failed to remove orphaned screenshot file")
		}
		return nil, err
	}

	return shot, nil
}

// decodeImage strips an optional data-URI prefix and decodes the payload
func decodeImage(imageData string) ([]byte, error) {
	if idx := strings.Index(imageData, ","); idx != -1 && strings.HasPrefix(imageData, "data:") {
		imageData = imageData[idx+1:]
	}
	return base64.StdEncoding.DecodeString(imageData)
}

// List returns one page of metadata. Admins see the whole fleet; everyone
// else sees only their own uploads.
func (s *Service) List(ctx context.Context, requesterID string, isAdmin bool, page int) (*Page, error) {
	perPage := s.cfg.ScreenshotsPerPage
	if page < 1 {
		page = 1
	}

	scope := requesterID
	if isAdmin {
		scope = ""
	}

	shots, total, err := s.repo.ListScreenshots(ctx, scope, perPage, (page-1)*perPage)
	if err != nil {
		return nil, err
	}

	return &Page{
		Screenshots: shots,
		Total:       total,
		Page:        page,
		PerPage:     perPage,
	}, nil
}

// Open returns the metadata and file contents of one screenshot, enforcing
// owner-or-admin access
func (s *Service) Open(ctx context.Context, id, requesterID string, isAdmin bool) (*database.Screenshot, []byte, error) {
	shot, err := s.repo.GetScreenshot(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if shot == nil {
		return nil, nil, ErrNotFound
	}

	if !isAdmin && shot.UserID != requesterID {
		return nil, nil, ErrForbidden
	}

	data, err := os.ReadFile(filepath.Join(s.cfg.ScreenshotDir, shot.Filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to read screenshot: %w", err)
	}

	return shot, data, nil
}

// Delete removes one screenshot's row and file, enforcing owner-or-admin
// access
func (s *Service) Delete(ctx context.Context, id, requesterID string, isAdmin bool) error {
	shot, err := s.repo.GetScreenshot(ctx, id)
	if err != nil {
		return err
	}
	if shot == nil {
		return ErrNotFound
	}

	if !isAdmin && shot.UserID != requesterID {
		return ErrForbidden
	}

	if err := s.repo.DeleteScreenshot(ctx, id); err != nil {
		return err
	}

	path := filepath.Join(s.cfg.ScreenshotDir, shot.Filename)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn().Err(err).Str("path", path).Msg("failed to remove screenshot file")
	}

	return nil
}

// Cleanup removes screenshots older than the given number of days and
// returns how many were deleted. Zero days falls back to the configured
// retention.
func (s *Service) Cleanup(ctx context.Context, olderThanDays int) (int, error) {
	if olderThanDays <= 0 {
		olderThanDays = s.cfg.CleanupAfterDays
	}
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)

	old, err := s.repo.ListScreenshotsOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, shot := range old {
		if err := s.repo.DeleteScreenshot(ctx, shot.ID); err != nil {
			s.logger.Error().Err(err).Str("id", shot.ID).Msg("cleanup: failed to delete row")
			continue
		}

		path := filepath.Join(s.cfg.ScreenshotDir, shot.Filename)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str("path", path).Msg("cleanup: failed to remove file")
		}
		deleted++
	}

	return deleted, nil
}
