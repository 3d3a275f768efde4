package services

import (
	"context"
	"errors"

	"github.com/msc-edu/cms-api/auth"
	"github.com/msc-edu/cms-api/identity"
	"github.com/msc-edu/cms-api/models"
	"github.com/msc-edu/cms-api/repositories"
	"go.uber.org/zap"
)

// PasswordAuthenticator exchanges an email and password for a session
type PasswordAuthenticator interface {
	SignInWithPassword(ctx context.Context, email, password string) (*identity.Session, error)
}

// PrincipalVerifier resolves an Authorization header to a principal
type PrincipalVerifier interface {
	Verify(ctx context.Context, header string) (*auth.Principal, error)
}

// LoginRequest is the body of a password login
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginUser is the user block of a login reply. Profile fields are null when
// the user has no profile row.
type LoginUser struct {
	ID     string       `json:"id"`
	Email  string       `json:"email"`
	Name   *string      `json:"name"`
	Role   *models.Role `json:"role"`
	Avatar *string      `json:"avatar"`
}

// LoginSession is the session block of a login reply
type LoginSession struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
}

// LoginResult is returned by a successful login
type LoginResult struct {
	User    LoginUser    `json:"user"`
	Session LoginSession `json:"session"`
}

// VerifiedUser is the user block of a token verification reply
type VerifiedUser struct {
	ID    string      `json:"id"`
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
}

// VerifyResult is returned for a valid token
type VerifyResult struct {
	User  VerifiedUser `json:"user"`
	Valid bool         `json:"valid"`
}

// AuthService handles password login and token verification
type AuthService struct {
	authenticator PasswordAuthenticator
	verifier      PrincipalVerifier
	profiles      repositories.ProfileRepository
	logger        *zap.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(authenticator PasswordAuthenticator, verifier PrincipalVerifier, profiles repositories.ProfileRepository, logger *zap.Logger) *AuthService {
	return &AuthService{
		authenticator: authenticator,
		verifier:      verifier,
		profiles:      profiles,
		logger:        logger,
	}
}

// Login signs the user in with the identity provider and attaches profile data
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if s.authenticator == nil {
		return nil, WrapInternal("identity provider not configured", identity.ErrNotConfigured)
	}

	session, err := s.authenticator.SignInWithPassword(ctx, req.Email, req.Password)
	if err != nil {
		var perr *identity.ProviderError
		if errors.Is(err, identity.ErrInvalidCredentials) {
			message := ErrInvalidCredentials.Message
			if errors.As(err, &perr) && perr.Message != "" {
				message = perr.Message
			}
			s.logger.Info("login rejected", zap.String("reason", message))
			return nil, NewCodedError(ErrorTypeUnauthorized, ErrInvalidCredentials.Code, message, err)
		}
		s.logger.Error("login failed", zap.Error(err))
		return nil, WrapExternal("identity provider call failed", err)
	}

	result := &LoginResult{
		User: LoginUser{
			ID:    session.User.ID,
			Email: session.User.Email,
		},
		Session: LoginSession{
			AccessToken:  session.AccessToken,
			RefreshToken: session.RefreshToken,
			ExpiresIn:    session.ExpiresIn,
			ExpiresAt:    session.ExpiresAt,
		},
	}

	if profile := s.profile(ctx, session.User.ID); profile != nil {
		result.User.Name = profile.FullName
		result.User.Avatar = profile.AvatarURL
		if profile.Role != "" {
			role := profile.Role
			result.User.Role = &role
		}
		if result.User.Email == "" {
			result.User.Email = profile.Email
		}
	}

	s.logger.Info("user logged in", zap.String("user_id", result.User.ID))
	return result, nil
}

// profile returns the user's profile row, or nil when there is none or the lookup fails
func (s *AuthService) profile(ctx context.Context, id string) *models.Profile {
	if s.profiles == nil {
		return nil
	}
	profile, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			s.logger.Error("profile lookup failed", zap.String("user_id", id), zap.Error(err))
		}
		return nil
	}
	return profile
}

// Verify checks an Authorization header value
func (s *AuthService) Verify(ctx context.Context, header string) (*VerifyResult, error) {
	principal, err := s.verifier.Verify(ctx, header)
	if err != nil {
		return nil, NewCodedError(ErrorTypeUnauthorized, ErrInvalidToken.Code, ErrInvalidToken.Message, err)
	}
	return &VerifyResult{
		User: VerifiedUser{
			ID:    principal.ID,
			Email: principal.Email,
			Role:  principal.Role,
		},
		Valid: true,
	}, nil
}
