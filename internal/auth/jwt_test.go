package auth

import (
	"testing"
	"time"
)

func testClaims() UserClaims {
	return UserClaims{
		UserID:  "3f1c2a74-0000-4000-8000-000000000001",
		Email:   "user@example.com",
		Role:    RoleUser,
		IsAdmin: false,
	}
}

func TestGenerateAndValidateAccessToken(t *testing.T) {
	m := NewJWTManager("test-secret", 15*time.Minute, 7*24*time.Hour)

	token, err := m.GenerateAccessToken(testClaims())
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	claims, err := m.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateAccessToken failed: %v", err)
	}

	if claims.UserID != "3f1c2a74-0000-4000-8000-000000000001" {
		t.Errorf("unexpected user ID: %s", claims.UserID)
	}
	if claims.Email != "user@example.com" {
		t.Errorf("unexpected email: %s", claims.Email)
	}
	if claims.IsAdmin {
		t.Error("claims should not be admin")
	}
}

func TestValidateAccessTokenWrongSecret(t *testing.T) {
	m := NewJWTManager("test-secret", 15*time.Minute, 7*24*time.Hour)
	other := NewJWTManager("other-secret", 15*time.Minute, 7*24*time.Hour)

	token, err := m.GenerateAccessToken(testClaims())
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	if _, err := other.ValidateAccessToken(token); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateAccessTokenExpired(t *testing.T) {
	m := NewJWTManager("test-secret", -time.Minute, 7*24*time.Hour)

	token, err := m.GenerateAccessToken(testClaims())
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	if _, err := m.ValidateAccessToken(token); err != ErrTokenExpired {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestValidateAccessTokenGarbage(t *testing.T) {
	m := NewJWTManager("test-secret", 15*time.Minute, 7*24*time.Hour)

	if _, err := m.ValidateAccessToken("not-a-token"); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestGenerateRefreshTokenUnique(t *testing.T) {
	m := NewJWTManager("test-secret", 15*time.Minute, 7*24*time.Hour)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		token, err := m.GenerateRefreshToken()
		if err != nil {
			t.Fatalf("GenerateRefreshToken failed: %v", err)
		}
		if seen[token] {
			t.Fatal("refresh token collision")
		}
		seen[token] = true
	}
}

func TestGenerateTokenPair(t *testing.T) {
	m := NewJWTManager("test-secret", 15*time.Minute, 7*24*time.Hour)

	pair, err := m.GenerateTokenPair(testClaims())
	if err != nil {
		t.Fatalf("GenerateTokenPair failed: %v", err)
	}

	if pair.TokenType != "Bearer" {
		t.Errorf("unexpected token type: %s", pair.TokenType)
	}
	if pair.ExpiresIn != int64((15 * time.Minute).Seconds()) {
		t.Errorf("unexpected expires_in: %d", pair.ExpiresIn)
	}
	if pair.RefreshToken == "" {
		t.Error("refresh token should not be empty")
	}
	if _, err := m.ValidateAccessToken(pair.AccessToken); err != nil {
		t.Errorf("access token from pair should validate: %v", err)
	}
}
