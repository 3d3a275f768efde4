// Package storage is a client for the hosted object storage REST API.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrObjectNotFound is returned when the bucket has no object at the path
	ErrObjectNotFound = errors.New("object not found")

	// ErrObjectExists is returned when an upload would overwrite an object
	ErrObjectExists = errors.New("object already exists")

	// ErrStorageUnavailable is returned on transport failures and 5xx replies
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrNotConfigured is returned when no storage URL or key is set
	ErrNotConfigured = errors.New("storage not configured")
)

const maxErrorBody = 64 << 10

// Config holds configuration for Client
type Config struct {
	URL            string
	ServiceRoleKey string
	Bucket         string
	CacheControl   string
	HTTPTimeout    time.Duration
}

// StorageError carries a non-2xx storage reply
type StorageError struct {
	Status  int
	Message string
	kind    error
}

func (e *StorageError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("storage request failed (status %d)", e.Status)
	}
	return fmt.Sprintf("storage request failed (status %d): %s", e.Status, e.Message)
}

func (e *StorageError) Unwrap() error {
	return e.kind
}

// Client uploads and removes objects in a single bucket
type Client struct {
	baseURL      string
	key          string
	bucket       string
	cacheControl string
	httpClient   *http.Client
	logger       *zap.Logger
}

// NewClient creates a storage client bound to cfg.Bucket
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.CacheControl == "" {
		cfg.CacheControl = "3600"
	}
	return &Client{
		baseURL:      strings.TrimSuffix(cfg.URL, "/"),
		key:          cfg.ServiceRoleKey,
		bucket:       cfg.Bucket,
		cacheControl: cfg.CacheControl,
		httpClient:   &http.Client{Timeout: cfg.HTTPTimeout},
		logger:       logger,
	}
}

// Bucket returns the bucket name objects are written to
func (c *Client) Bucket() string {
	return c.bucket
}

// Upload writes body to path. Existing objects are never overwritten.
// It returns the object path as stored.
func (c *Client) Upload(ctx context.Context, path, contentType string, body io.Reader, size int64) (string, error) {
	if c.baseURL == "" || c.key == "" {
		return "", ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.objectURL(path), body)
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	if size >= 0 {
		req.ContentLength = size
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Cache-Control", "max-age="+c.cacheControl)
	req.Header.Set("x-upsert", "false")

	var reply struct {
		Key string `json:"Key"`
	}
	if err := c.do(req, &reply); err != nil {
		return "", err
	}

	c.logger.Debug("object uploaded",
		zap.String("bucket", c.bucket),
		zap.String("path", path),
		zap.Int64("size", size))

	// Key is "<bucket>/<path>"
	if stored := strings.TrimPrefix(reply.Key, c.bucket+"/"); stored != "" && stored != reply.Key {
		return stored, nil
	}
	return path, nil
}

// Remove deletes the object at path
func (c *Client) Remove(ctx context.Context, path string) error {
	if c.baseURL == "" || c.key == "" {
		return ErrNotConfigured
	}

	payload, err := json.Marshal(map[string][]string{"prefixes": {path}})
	if err != nil {
		return fmt.Errorf("encode remove request: %w", err)
	}

	endpoint := c.baseURL + "/storage/v1/object/" + url.PathEscape(c.bucket)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create remove request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var removed []json.RawMessage
	if err := c.do(req, &removed); err != nil {
		return err
	}
	if len(removed) == 0 {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, path)
	}

	c.logger.Debug("object removed",
		zap.String("bucket", c.bucket),
		zap.String("path", path))
	return nil
}

// PublicURL returns the public address of the object at path
func (c *Client) PublicURL(path string) string {
	return c.baseURL + "/storage/v1/object/public/" + url.PathEscape(c.bucket) + "/" + escapePath(path)
}

func (c *Client) objectURL(path string) string {
	return c.baseURL + "/storage/v1/object/" + url.PathEscape(c.bucket) + "/" + escapePath(path)
}

// escapePath escapes each segment of an object path, keeping the separators
func escapePath(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("apikey", c.key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: decode reply: %v", ErrStorageUnavailable, err)
		}
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	status, message := errorDetails(resp.StatusCode, raw)

	var kind error
	switch {
	case status == http.StatusNotFound:
		kind = ErrObjectNotFound
	case status == http.StatusConflict:
		kind = ErrObjectExists
	case status >= 500:
		kind = ErrStorageUnavailable
	}
	return &StorageError{Status: status, Message: message, kind: kind}
}

// errorDetails reads the storage error body. The service reports the real
// status in a statusCode string field while sometimes replying 400.
func errorDetails(status int, raw []byte) (int, string) {
	var body struct {
		StatusCode string `json:"statusCode"`
		Error      string `json:"error"`
		Message    string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return status, strings.TrimSpace(string(raw))
	}
	if code, err := strconv.Atoi(body.StatusCode); err == nil && code >= 400 {
		status = code
	}
	if body.Message != "" {
		return status, body.Message
	}
	return status, body.Error
}
