package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"emailbot-backend/internal/database"

	"github.com/gin-gonic/gin"
)

// fakeUserLookup serves users from a map; a nil map simulates a broken store
type fakeUserLookup struct {
	users map[string]*database.User
	err   error
}

func (f *fakeUserLookup) GetUserByID(_ context.Context, id string) (*database.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.users[id], nil
}

func authRouter(jwtManager *JWTManager, users UserLookup) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/protected", Middleware(jwtManager, users), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":  GetUserID(c),
			"is_admin": IsAdmin(c),
		})
	})
	return router
}

func bearerRequest(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestMiddlewareRequiresToken(t *testing.T) {
	m := NewJWTManager("test-secret", 15*time.Minute, 7*24*time.Hour)
	router := authRouter(m, &fakeUserLookup{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, bearerRequest(""))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("missing header status = %d, want %d", w.Code, http.StatusUnauthorized)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, bearerRequest("not-a-token"))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("garbage token status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestMiddlewareChecksAccountOnEveryRequest(t *testing.T) {
	m := NewJWTManager("test-secret", 15*time.Minute, 7*24*time.Hour)

	claims := testClaims()
	token, err := m.GenerateAccessToken(claims)
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	user := &database.User{
		ID:       claims.UserID,
		Email:    claims.Email,
		Role:     RoleUser,
		IsActive: true,
	}
	lookup := &fakeUserLookup{users: map[string]*database.User{user.ID: user}}
	router := authRouter(m, lookup)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, bearerRequest(token))
	if w.Code != http.StatusOK {
		t.Fatalf("active user status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	// The token is still valid, but the account was disabled since it was
	// issued. Access must stop immediately.
	user.IsActive = false
	w = httptest.NewRecorder()
	router.ServeHTTP(w, bearerRequest(token))
	if w.Code != http.StatusForbidden {
		t.Errorf("disabled user status = %d, want %d", w.Code, http.StatusForbidden)
	}

	// Deleted account, same story
	delete(lookup.users, user.ID)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, bearerRequest(token))
	if w.Code != http.StatusNotFound {
		t.Errorf("deleted user status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestMiddlewareUsesStoredRole(t *testing.T) {
	m := NewJWTManager("test-secret", 15*time.Minute, 7*24*time.Hour)

	// The token says admin; the row says the user has since been demoted
	claims := testClaims()
	claims.Role = RoleAdmin
	claims.IsAdmin = true
	token, err := m.GenerateAccessToken(claims)
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	lookup := &fakeUserLookup{users: map[string]*database.User{
		claims.UserID: {ID: claims.UserID, Email: claims.Email, Role: RoleUser, IsActive: true},
	}}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/admin", Middleware(m, lookup), RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, func() *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		return req
	}())
	if w.Code != http.StatusForbidden {
		t.Errorf("demoted admin status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestMiddlewareReportsLookupFailure(t *testing.T) {
	m := NewJWTManager("test-secret", 15*time.Minute, 7*24*time.Hour)

	token, err := m.GenerateAccessToken(testClaims())
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	router := authRouter(m, &fakeUserLookup{err: errors.New("connection refused")})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, bearerRequest(token))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("lookup failure status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}
