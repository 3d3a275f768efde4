// Package identity talks to the hosted identity provider (GoTrue REST API)
// and verifies its access tokens.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrInvalidToken is returned when the provider rejects an access token
	ErrInvalidToken = errors.New("invalid token")

	// ErrInvalidCredentials is returned when a password sign-in is rejected
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrProviderUnavailable is returned on transport failures and 5xx replies
	ErrProviderUnavailable = errors.New("identity provider unavailable")

	// ErrNotConfigured is returned when no provider URL is set
	ErrNotConfigured = errors.New("identity provider not configured")
)

// maxErrorBody bounds how much of an error reply is read
const maxErrorBody = 64 << 10

// User is the subject resolved from an access token
type User struct {
	ID           string                 `json:"id"`
	Email        string                 `json:"email"`
	Role         string                 `json:"role"`
	UserMetadata map[string]interface{} `json:"user_metadata,omitempty"`
}

// Session is a successful password sign-in
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         *User  `json:"user"`
}

// ProviderError carries the provider's status and message.
// It unwraps to one of the package sentinels.
type ProviderError struct {
	Status  int
	Message string
	kind    error
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%v (status %d)", e.kind, e.Status)
	}
	return fmt.Sprintf("%v (status %d): %s", e.kind, e.Status, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.kind
}

// NewProviderError creates a ProviderError that unwraps to kind
func NewProviderError(status int, message string, kind error) *ProviderError {
	return &ProviderError{Status: status, Message: message, kind: kind}
}

// Config holds configuration for Client
type Config struct {
	URL         string
	AnonKey     string
	HTTPTimeout time.Duration
}

// Client is a minimal GoTrue REST client
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
}

// NewClient creates a new identity provider client
func NewClient(cfg Config) *Client {
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		anonKey: cfg.AnonKey,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
	}
}

// GetUser resolves an access token to its user
func (c *Client) GetUser(ctx context.Context, token string) (*User, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("create user request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	var user User
	if err := c.do(req, ErrInvalidToken, &user); err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, fmt.Errorf("%w: no subject in reply", ErrInvalidToken)
	}
	return &user, nil
}

// SignInWithPassword exchanges an email and password for a session
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, fmt.Errorf("encode sign-in request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/v1/token?grant_type=password", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create sign-in request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var session Session
	if err := c.do(req, ErrInvalidCredentials, &session); err != nil {
		return nil, err
	}
	if session.User == nil || session.User.ID == "" {
		return nil, &ProviderError{Status: http.StatusOK, Message: "sign-in reply has no user", kind: ErrProviderUnavailable}
	}
	return &session, nil
}

// do sends req and decodes a 2xx reply into out. 4xx replies map to rejected.
func (c *Client) do(req *http.Request, rejected error, out interface{}) error {
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode reply: %v", ErrProviderUnavailable, err)
		}
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	kind := ErrProviderUnavailable
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		kind = rejected
	}
	return &ProviderError{
		Status:  resp.StatusCode,
		Message: errorMessage(raw),
		kind:    kind,
	}
}

// errorMessage extracts the human message from a GoTrue error body
func errorMessage(raw []byte) string {
	var body map[string]interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return strings.TrimSpace(string(raw))
	}
	for _, key := range []string{"error_description", "msg", "message", "error"} {
		if s, ok := body[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
