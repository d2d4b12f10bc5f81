package api

import (
	"net/http"
	"testing"
	"time"

	"emailbot-backend/internal/license"
	"emailbot-backend/internal/screenshots"
)

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1:/api/license/activate") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	if rl.Allow("10.0.0.1:/api/license/activate") {
		t.Error("fourth request within the window should be rejected")
	}

	// Other keys are tracked independently
	if !rl.Allow("10.0.0.2:/api/license/activate") {
		t.Error("different client should not share the limit")
	}
}

func TestRateLimiterWindowExpiry(t *testing.T) {
	rl := NewRateLimiter(1, 10*time.Millisecond)

	if !rl.Allow("key") {
		t.Fatal("first request should be allowed")
	}
	if rl.Allow("key") {
		t.Fatal("second request inside the window should be rejected")
	}

	time.Sleep(20 * time.Millisecond)

	if !rl.Allow("key") {
		t.Error("request after the window elapsed should be allowed")
	}
}

func TestLicenseErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  license.LicenseError
		want int
	}{
		{"unknown key", license.ErrLicenseNotFound, http.StatusNotFound},
		{"expired", license.ErrLicenseExpired, http.StatusForbidden},
		{"limit reached", license.ErrActivationLimit, http.StatusForbidden},
		{"not activated", license.ErrNotActivated, http.StatusForbidden},
		{"empty update", license.ErrInvalidInput, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := licenseErrorStatus(tt.err); got != tt.want {
				t.Errorf("licenseErrorStatus(%s) = %d, want %d", tt.err.Code, got, tt.want)
			}
		})
	}
}

func TestScreenshotErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  screenshots.ScreenshotError
		want int
	}{
		{"missing", screenshots.ErrNotFound, http.StatusNotFound},
		{"not owner", screenshots.ErrForbidden, http.StatusForbidden},
		{"oversized", screenshots.ErrTooLarge, http.StatusRequestEntityTooLarge},
		{"bad payload", screenshots.ErrInvalidImage, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := screenshotErrorStatus(tt.err); got != tt.want {
				t.Errorf("screenshotErrorStatus(%s) = %d, want %d", tt.err.Code, got, tt.want)
			}
		})
	}
}
