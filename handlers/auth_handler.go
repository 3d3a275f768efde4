package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/msc-edu/cms-api/services"
	"github.com/msc-edu/cms-api/utils"
	"go.uber.org/zap"
)

// maxLoginBody bounds the login request body
const maxLoginBody = 64 << 10

// AuthService is the part of services.AuthService the handler uses
type AuthService interface {
	Login(ctx context.Context, req services.LoginRequest) (*services.LoginResult, error)
	Verify(ctx context.Context, header string) (*services.VerifyResult, error)
}

// AuthHandler handles the login and token verification endpoints
type AuthHandler struct {
	service AuthService
	errors  ErrorResponder
	logger  *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthService, responder ErrorResponder, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		errors:  responder,
		logger:  logger,
	}
}

// HandleLogin handles POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req services.LoginRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLoginBody))
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			// empty body: both fields are missing
		case errors.As(err, &tooLarge):
			h.errors.HandleServiceError(w, services.ErrPayloadTooLarge)
			return
		default:
			_ = utils.WriteBadRequest(w, "Invalid JSON body", utils.CodeInvalidJSON)
			return
		}
	}

	if err := utils.ValidateStruct(req); err != nil {
		_ = utils.WriteBadRequest(w, "Email and password are required", utils.CodeMissingFields)
		return
	}

	result, err := h.service.Login(r.Context(), req)
	if err != nil {
		h.errors.HandleServiceError(w, err)
		return
	}

	if err := utils.WriteOK(w, result, "Login successful"); err != nil {
		h.logger.Error("failed to write login response", zap.Error(err))
	}
}

// HandleVerify handles GET /api/auth/verify
func (h *AuthHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Verify(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		h.errors.HandleServiceError(w, err)
		return
	}

	if err := utils.WriteOK(w, result, "Token is valid"); err != nil {
		h.logger.Error("failed to write verify response", zap.Error(err))
	}
}
