package jwt

import (
	"context"
	"net/http"
	"strings"

	"signalhub/internal/pkg/logx"
)

type contextKey string

const (
	// ContextSessionKey is the key under which verified SessionClaims are stored in the request Context.
	ContextSessionKey contextKey = "session_claims"

	// SessionQueryParam is the query parameter browsers use to present a previous session token,
	// since the WebSocket API cannot set an Authorization header.
	SessionQueryParam = "session"
)

// tokenFromRequest returns the bearer token or the session query parameter, in that order.
func tokenFromRequest(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}

	return r.URL.Query().Get(SessionQueryParam)
}

// SessionExtractorMiddleware verifies a previous session token if one is presented and
// stores its claims in the Context. It never rejects the request: a missing or invalid
// token just means the connection starts a fresh session.
func SessionExtractorMiddleware(secretKey string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := tokenFromRequest(r)
			if tokenString == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := ParseSessionToken(tokenString, secretKey)
			if err != nil {
				logx.Warn("Invalid or expired session token provided, starting fresh session", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), ContextSessionKey, claims)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext returns the verified claims, or nil when no valid token was presented.
func SessionFromContext(ctx context.Context) *SessionClaims {
	claims, ok := ctx.Value(ContextSessionKey).(*SessionClaims)
	if !ok {
		return nil
	}

	return claims
}
