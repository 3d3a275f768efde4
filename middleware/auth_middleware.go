package middleware

import (
	"context"
	"net/http"

	"github.com/msc-edu/cms-api/auth"
	"github.com/msc-edu/cms-api/utils"
	"go.uber.org/zap"
)

// PrincipalVerifier resolves an Authorization header value to a principal
type PrincipalVerifier interface {
	Verify(ctx context.Context, authorizationHeader string) (*auth.Principal, error)
}

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	verifier PrincipalVerifier
	logger   *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(verifier PrincipalVerifier, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		logger:   logger,
	}
}

// RequireAuth rejects requests without a valid bearer credential with 401 UNAUTHORIZED
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		principal, err := m.verifier.Verify(ctx, r.Header.Get("Authorization"))
		if err != nil {
			m.logger.Warn("authentication failed",
				zap.String("request_id", requestID),
				zap.Error(err))
			_ = utils.WriteUnauthorized(w, auth.UnauthenticatedMessage, utils.CodeUnauthorized)
			return
		}

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("user_id", principal.ID),
			zap.String("role", string(principal.Role)))

		next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, principal)))
	})
}

// RequireRole admits principals whose role is one of roles. Must run after RequireAuth.
func (m *AuthMiddleware) RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestIDFromContext(ctx)

			decision := auth.Authorize(GetPrincipalFromContext(ctx), roles)
			switch decision.Outcome {
			case auth.Authorized:
				next.ServeHTTP(w, r)
			case auth.Forbidden:
				m.logger.Warn("insufficient permissions",
					zap.String("request_id", requestID),
					zap.String("user_id", decision.Principal.ID),
					zap.String("role", string(decision.Principal.Role)),
					zap.Strings("required_roles", roles))
				_ = utils.WriteForbidden(w, decision.Message)
			default:
				m.logger.Error("principal not found in context",
					zap.String("request_id", requestID))
				_ = utils.WriteUnauthorized(w, decision.Message, utils.CodeUnauthorized)
			}
		})
	}
}
