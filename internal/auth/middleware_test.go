package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func protectedHandler(t *testing.T) (http.HandlerFunc, *Principal) {
	captured := &Principal{}
	m := NewMiddleware(testSecret)
	handler := m.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		if p := GetPrincipal(r.Context()); p != nil {
			*captured = *p
		}
		w.WriteHeader(http.StatusOK)
	})
	return handler, captured
}

func TestRequireAuthValidBearer(t *testing.T) {
	handler, principal := protectedHandler(t)

	token := signToken(t, testSecret, jwt.MapClaims{
		"user_id": "u-1",
		"email":   "analyst@example.com",
		"role":    "admin",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/api/bans", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-1", principal.UserID)
	assert.Equal(t, "analyst@example.com", principal.Email)
	assert.Equal(t, "admin", principal.Role)
}

func TestRequireAuthCookie(t *testing.T) {
	handler, principal := protectedHandler(t)

	token := signToken(t, testSecret, jwt.MapClaims{
		"user_id": "u-2",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/api/bans", nil)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: token})
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-2", principal.UserID)
}

func TestRequireAuthMissingToken(t *testing.T) {
	handler, _ := protectedHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/bans", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuthWrongSecret(t *testing.T) {
	handler, _ := protectedHandler(t)

	token := signToken(t, "other-secret", jwt.MapClaims{
		"user_id": "u-3",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/api/bans", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuthExpiredToken(t *testing.T) {
	handler, _ := protectedHandler(t)

	token := signToken(t, testSecret, jwt.MapClaims{
		"user_id": "u-4",
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/api/bans", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuthMalformedHeader(t *testing.T) {
	handler, _ := protectedHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/bans", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetPrincipalUnauthenticated(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Nil(t, GetPrincipal(req.Context()))
}
