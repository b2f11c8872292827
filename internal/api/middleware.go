/**
 * @description
 * This file contains the authentication middleware for the HTTP router. Every
 * order-mutating route sits behind it; it extracts the bearer credential,
 * verifies it, and injects the trusted subject into the request context.
 *
 * @notes
 * - The two client-distinguishable failure kinds map to different status
 *   codes and stable machine-readable codes: a missing header is a 400
 *   (missing_credentials), while a present-but-unverifiable credential is a
 *   401 (invalid_token, or token_expired when the only defect is expiry).
 */

package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/suipay/payment-service/internal/auth"
)

// SubjectContextKey is a custom type for the context key to avoid collisions.
type SubjectContextKey string

const subjectKey SubjectContextKey = "authSubject"

// AuthMiddleware creates a middleware that validates the service's bearer
// credentials via the given token service.
func AuthMiddleware(tokens *auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
			if authHeader == "" {
				respondAuthError(w, auth.ErrMissingCredentials)
				return
			}

			tokenString, ok := bearerToken(authHeader)
			if !ok {
				respondAuthError(w, auth.ErrInvalidToken)
				return
			}

			claims, err := tokens.Verify(tokenString)
			if err != nil {
				respondAuthError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSubject retrieves the authenticated subject from the request context.
// Handlers should use this function to get the caller's verified address.
func GetSubject(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(subjectKey).(string)
	return subject, ok
}

func bearerToken(authHeader string) (string, bool) {
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}

	return token, true
}

// respondAuthError maps an authentication fault to its stable response shape.
func respondAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrMissingCredentials):
		respondError(w, http.StatusBadRequest, "missing_credentials", "Missing credentials")
	case errors.Is(err, auth.ErrTokenExpired):
		respondError(w, http.StatusUnauthorized, "token_expired", "Token expired")
	default:
		respondError(w, http.StatusUnauthorized, "invalid_token", "Invalid token")
	}
}
