package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Context keys for storing user information
type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	JWTClaimsKey contextKey = "jwt_claims"
)

// JWTAuthMiddleware authenticates viewers with HS256 bearer tokens.
// The subject claim carries the user id.
type JWTAuthMiddleware struct {
	secret []byte
}

func NewJWTAuthMiddleware(secret string) *JWTAuthMiddleware {
	return &JWTAuthMiddleware{secret: []byte(secret)}
}

// Verify checks the token signature and expiry and returns its claims
func (m *JWTAuthMiddleware) Verify(tokenString string) (*jwt.RegisteredClaims, uuid.UUID, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("HS256 verification failed: %w", err)
	}
	if !token.Valid {
		return nil, uuid.Nil, errors.New("HS256 verification failed: token signature invalid")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("subject is not a user id: %w", err)
	}
	return claims, userID, nil
}

// Sign issues a token for userID. Used by operator tooling and tests.
func (m *JWTAuthMiddleware) Sign(userID uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// RequireAuth middleware ensures the user is authenticated with a valid JWT
// If not authenticated, returns 401
func (m *JWTAuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeAuthError(w, "Missing or malformed Authorization header. Expected: Bearer <token>")
			return
		}

		claims, userID, err := m.Verify(token)
		if err != nil {
			slog.Warn("[AUTH_FAILURE] verification failed",
				"ip", r.RemoteAddr, "method", r.Method, "path", r.URL.Path, "error", err)
			writeAuthError(w, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		ctx = context.WithValue(ctx, JWTClaimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuth middleware loads user info if authenticated, but doesn't require it
// An invalid token is treated as anonymous
func (m *JWTAuthMiddleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		claims, userID, err := m.Verify(token)
		if err != nil {
			slog.Debug("optional auth failed", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		ctx = context.WithValue(ctx, JWTClaimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	return token, token != ""
}

// GetUserID extracts the authenticated user's id from the request context
// Returns nil if not authenticated
func GetUserID(r *http.Request) *uuid.UUID {
	return GetAuthenticatedUserID(r.Context())
}

// GetAuthenticatedUserID is GetUserID for service layers holding only a context
func GetAuthenticatedUserID(ctx context.Context) *uuid.UUID {
	id, ok := ctx.Value(UserIDKey).(uuid.UUID)
	if !ok {
		return nil
	}
	return &id
}

// SetTestUserID sets the user id in the context for testing purposes
// This function should ONLY be used in tests to mock authenticated users
func SetTestUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// writeAuthError writes a JSON error response for authentication failures
func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	response := `{"error":"AuthenticationRequired","message":"` + message + `"}`
	if _, err := w.Write([]byte(response)); err != nil {
		slog.Warn("failed to write auth error response", "error", err)
	}
}
