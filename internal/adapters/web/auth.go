package web

import (
	"context"
	"net/http"
	"strings"

	"order-ledger/internal/auth"
)

type authClaimsKey struct{}

// authFromContext returns the auth claims stored in ctx, or nil.
func authFromContext(ctx context.Context) *auth.Claims {
	v, _ := ctx.Value(authClaimsKey{}).(*auth.Claims)
	return v
}

// bearerToken reads the Authorization header, falling back to the auth_token cookie.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie("auth_token"); err == nil {
		return c.Value
	}
	return ""
}

// RequireAuth validates the bearer token and injects its claims into the
// request context. Returns 401 if the token is absent or invalid. With no
// secret configured the API is open.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.jwtSecret == "" {
			next.ServeHTTP(w, r)
			return
		}
		token := bearerToken(r)
		if token == "" {
			writeError(w, r, "authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}
		claims, err := auth.Verify(h.jwtSecret, token)
		if err != nil {
			writeError(w, r, "invalid or expired token", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), authClaimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// me handles GET /api/auth/me.
func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	if claims == nil {
		writeJSON(w, map[string]string{"subject": "", "role": "anonymous"})
		return
	}
	writeJSON(w, map[string]string{"subject": claims.Subject, "role": claims.Role})
}
