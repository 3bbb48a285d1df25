package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/tjfontaine/campaign-orchestrator/internal/core/domain"
	"github.com/tjfontaine/campaign-orchestrator/internal/core/ports"
)

type authContextKey struct{}

// AuthMiddleware resolves the bearer token to a caller and injects it into the
// request context. Missing or rejected credentials get a JSON 401.
func AuthMiddleware(provider ports.AuthProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				WriteJSONError(w, domain.ErrAuthentication("Authentication required").
					WithCode(domain.ErrorCodeMissingToken))
				return
			}

			authCtx, err := provider.Authenticate(r.Context(), token)
			if err != nil {
				AddError(r.Context(), err)
				WriteJSONError(w, domain.ErrAuthentication("Invalid authentication token").
					WithCode(domain.ErrorCodeInvalidToken))
				return
			}

			AddLogField(r.Context(), "user_id", authCtx.UserID)
			next.ServeHTTP(w, r.WithContext(WithAuthContext(r.Context(), authCtx)))
		})
	}
}

// BearerToken returns the token from the Authorization header. A header
// without the Bearer scheme is taken as the raw token.
func BearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.EqualFold(h, "bearer") {
		return ""
	}
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		h = h[7:]
	}
	return strings.TrimSpace(h)
}

// WithAuthContext stores the authenticated caller in ctx.
func WithAuthContext(ctx context.Context, a *ports.AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, a)
}

// GetAuthContext retrieves the authenticated caller from context.
// Returns nil if the request was not authenticated.
func GetAuthContext(ctx context.Context) *ports.AuthContext {
	if a, ok := ctx.Value(authContextKey{}).(*ports.AuthContext); ok {
		return a
	}
	return nil
}
