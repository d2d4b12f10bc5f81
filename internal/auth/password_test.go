package auth

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerifyPassword(t *testing.T) {
	// Low cost keeps the test fast
	pm := NewPasswordManager(bcrypt.MinCost, 8)

	hash, err := pm.HashPassword("Str0ng!pass")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	if hash == "Str0ng!pass" {
		t.Fatal("hash should not equal the plaintext")
	}
	if !pm.VerifyPassword("Str0ng!pass", hash) {
		t.Error("correct password should verify")
	}
	if pm.VerifyPassword("wrong-password", hash) {
		t.Error("wrong password should not verify")
	}
}

func TestHashPasswordTooLong(t *testing.T) {
	pm := NewPasswordManager(bcrypt.MinCost, 8)

	if _, err := pm.HashPassword(strings.Repeat("a", MaxPasswordLength+1)); err == nil {
		t.Error("expected error for oversized password")
	}
}

func TestValidatePasswordStrength(t *testing.T) {
	pm := NewPasswordManager(bcrypt.MinCost, 8)

	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"upper lower number", "Abcdef12", false},
		{"lower number special", "abcdef1!", false},
		{"all four classes", "Abcdef1!", false},
		{"too short", "Ab1!", true},
		{"only lowercase", "abcdefgh", true},
		{"only two classes", "abcdef12", true},
		{"too long", strings.Repeat("Ab1!", 40), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := pm.ValidatePasswordStrength(tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePasswordStrength(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
			}
		})
	}
}

func TestHashRefreshTokenDeterministic(t *testing.T) {
	a := HashRefreshToken("some-refresh-token")
	b := HashRefreshToken("some-refresh-token")
	c := HashRefreshToken("another-token")

	if a != b {
		t.Error("same token should hash identically")
	}
	if a == c {
		t.Error("different tokens should hash differently")
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
}
