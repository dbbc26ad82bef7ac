package middleware

import (
	"context"
	"net/http"
	"strings"

	"meterpay/backend/libs/httpx"
	"meterpay/backend/services/checkout-service/internal/token"
)

type contextKey string

const sessionIDKey contextKey = "sessionID"

// RefreshedTokenHeader carries a re-issued session token on every authenticated response.
const RefreshedTokenHeader = "X-Session-Token"

// TokenService verifies and issues session tokens.
type TokenService interface {
	Validate(tokenString string) (*token.Claims, error)
	Issue(sessionID string) (string, error)
}

// SessionAuth validates the session token and stores the session id in the request context.
// Browsers cannot set headers on websocket upgrades, so a token query parameter is accepted too.
// A fresh token is returned in RefreshedTokenHeader so the token lifetime slides with the
// session's own TTL.
func SessionAuth(tokens TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := extractToken(r)
			if !ok {
				httpx.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing session token"})
				return
			}
			claims, err := tokens.Validate(tokenStr)
			if err != nil {
				httpx.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid session token"})
				return
			}

			if fresh, err := tokens.Issue(claims.SessionID); err == nil {
				w.Header().Set(RefreshedTokenHeader, fresh)
			}

			ctx := context.WithValue(r.Context(), sessionIDKey, claims.SessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractToken(r *http.Request) (string, bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return "", false
		}
		tok := strings.TrimSpace(parts[1])
		return tok, tok != ""
	}
	tok := strings.TrimSpace(r.URL.Query().Get("token"))
	return tok, tok != ""
}

// SessionIDFromContext retrieves the authenticated session id.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey).(string)
	return id, ok && id != ""
}

// WithSessionID returns ctx carrying id, for handler tests.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}
