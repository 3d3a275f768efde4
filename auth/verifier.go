package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/msc-edu/cms-api/identity"
	"github.com/msc-edu/cms-api/models"
	"github.com/msc-edu/cms-api/repositories"
	"go.uber.org/zap"
)

// bearerPrefix must match exactly, including case and the single space
const bearerPrefix = "Bearer "

// ErrUnauthenticated is the single failure outcome of Verify
var ErrUnauthenticated = errors.New("unauthenticated")

// UserResolver resolves an access token to its subject.
// Implemented by identity.Client (remote) and identity.JWTVerifier (local).
type UserResolver interface {
	GetUser(ctx context.Context, token string) (*identity.User, error)
}

// VerifierConfig holds configuration for Verifier
type VerifierConfig struct {
	Timeout     time.Duration
	DefaultRole models.Role
}

// Verifier turns an Authorization header value into a Principal
type Verifier struct {
	users       UserResolver
	profiles    repositories.ProfileRepository
	timeout     time.Duration
	defaultRole models.Role
	logger      *zap.Logger
}

// NewVerifier creates a new Verifier. profiles may be nil, in which case every
// principal gets the default role.
func NewVerifier(users UserResolver, profiles repositories.ProfileRepository, cfg VerifierConfig, logger *zap.Logger) *Verifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.DefaultRole == "" {
		cfg.DefaultRole = models.RoleUser
	}
	return &Verifier{
		users:       users,
		profiles:    profiles,
		timeout:     cfg.Timeout,
		defaultRole: cfg.DefaultRole,
		logger:      logger,
	}
}

// ExtractBearer returns the token of a "Bearer <token>" header value
func ExtractBearer(header string) (string, bool) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", false
	}
	return token, true
}

// Verify validates the credential with the identity provider and looks up the
// subject's role. Every failure is reported as ErrUnauthenticated.
func (v *Verifier) Verify(ctx context.Context, header string) (*Principal, error) {
	token, ok := ExtractBearer(header)
	if !ok {
		return nil, fmt.Errorf("%w: missing bearer credential", ErrUnauthenticated)
	}
	if v.users == nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, identity.ErrNotConfigured)
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	user, err := v.users.GetUser(ctx, token)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidToken) {
			v.logger.Debug("credential rejected by identity provider", zap.Error(err))
		} else {
			v.logger.Error("identity provider call failed", zap.Error(err))
		}
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if user == nil || user.ID == "" {
		return nil, fmt.Errorf("%w: no subject", ErrUnauthenticated)
	}

	return &Principal{
		ID:    user.ID,
		Email: user.Email,
		Role:  v.lookupRole(ctx, user.ID),
	}, nil
}

// lookupRole never fails: a missing row or a store error yields the default role
func (v *Verifier) lookupRole(ctx context.Context, id string) models.Role {
	if v.profiles == nil {
		return v.defaultRole
	}

	profile, err := v.profiles.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			v.logger.Error("profile lookup failed, using default role",
				zap.String("user_id", id),
				zap.Error(err))
		}
		return v.defaultRole
	}
	return profile.RoleOrDefault(v.defaultRole)
}
