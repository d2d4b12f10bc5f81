package license

import (
	"testing"
)

func TestGenerateKeyFormat(t *testing.T) {
	seen := make(map[string]bool)

	for i := 0; i < 100; i++ {
		key, err := GenerateKey()
		if err != nil {
			t.Fatalf("GenerateKey() error = %v", err)
		}

		if !KeyPattern.MatchString(key) {
			t.Fatalf("GenerateKey() = %q, does not match %v", key, KeyPattern)
		}

		if seen[key] {
			t.Fatalf("GenerateKey() produced duplicate key %q", key)
		}
		seen[key] = true
	}
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"already normalized", "A1B2-C3D4-E5F6-0789", "A1B2-C3D4-E5F6-0789"},
		{"lowercase", "a1b2-c3d4-e5f6-0789", "A1B2-C3D4-E5F6-0789"},
		{"surrounding whitespace", "  A1B2-C3D4-E5F6-0789\n", "A1B2-C3D4-E5F6-0789"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeKey(tt.input); got != tt.want {
				t.Errorf("NormalizeKey(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestLicenseErrorCodes(t *testing.T) {
	tests := []struct {
		err  LicenseError
		code string
	}{
		{ErrLicenseNotFound, "LICENSE_NOT_FOUND"},
		{ErrLicenseExpired, "LICENSE_EXPIRED"},
		{ErrActivationLimit, "ACTIVATION_LIMIT"},
		{ErrNotActivated, "NOT_ACTIVATED"},
		{ErrInvalidInput, "INVALID_INPUT"},
	}

	for _, tt := range tests {
		if tt.err.Code != tt.code {
			t.Errorf("error code = %q, want %q", tt.err.Code, tt.code)
		}
		if tt.err.Error() == "" {
			t.Errorf("error %q has empty message", tt.code)
		}
	}
}
