package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const principalKey = contextKey("principal")

// Principal is the authenticated caller. Tokens are issued by an external
// auth service; the engine only validates them.
type Principal struct {
	UserID string
	Email  string
	Role   string
}

// Middleware validates JWT bearer tokens (or the auth_token cookie set by the
// external session layer) and injects the principal into the request context.
type Middleware struct {
	secret []byte
}

// NewMiddleware creates a token-validating middleware.
func NewMiddleware(secret string) *Middleware {
	return &Middleware{secret: []byte(secret)}
}

// RequireAuth rejects requests without a valid token.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			http.Error(w, "Missing authorization", http.StatusUnauthorized)
			return
		}

		principal, err := m.validate(token)
		if err != nil {
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), principalKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

func (m *Middleware) validate(tokenString string) (*Principal, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	principal := &Principal{}
	if v, ok := claims["user_id"].(string); ok {
		principal.UserID = v
	}
	if v, ok := claims["email"].(string); ok {
		principal.Email = v
	}
	if v, ok := claims["role"].(string); ok {
		principal.Role = v
	}
	return principal, nil
}

func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}
	if cookie, err := r.Cookie("auth_token"); err == nil {
		return cookie.Value
	}
	return ""
}

// GetPrincipal extracts the principal from the context. Returns nil if the
// request was not authenticated.
func GetPrincipal(ctx context.Context) *Principal {
	if p, ok := ctx.Value(principalKey).(*Principal); ok {
		return p
	}
	return nil
}
