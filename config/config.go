package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Verification modes for bearer tokens
const (
	VerifyModeRemote = "remote" // introspect every token against the identity provider
	VerifyModeJWT    = "jwt"    // verify the token signature locally with the project JWT secret
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Supabase      SupabaseConfig
	Auth          AuthConfig
	CORS          CORSConfig
	Storage       StorageConfig
	Media         MediaConfig
	Observability ObservabilityConfig
	Environment   string
	Version       string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	InitSchema       bool
}

// SupabaseConfig holds the hosted backend connection settings (auth + storage)
type SupabaseConfig struct {
	URL            string // e.g. https://xyzcompany.supabase.co
	AnonKey        string
	ServiceRoleKey string
	JWTSecret      string
	HTTPTimeout    time.Duration
}

// AuthConfig holds bearer token verification settings
type AuthConfig struct {
	VerifyMode    string
	VerifyTimeout time.Duration
	DefaultRole   string
}

// CORSConfig holds cross-origin settings. AllowedOrigins is ALLOWED_ORIGINS split on commas.
type CORSConfig struct {
	AllowedOrigins []string
	MaxAge         int
}

// StorageConfig holds object storage settings
type StorageConfig struct {
	Bucket           string
	MaxFileSize      int64
	MaxRequestSize   int64
	AllowedMIMETypes []string
	CacheControl     string
}

// MediaConfig holds the access policy for the media endpoints
type MediaConfig struct {
	RequireAuth  bool
	AllowedRoles []string
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or text
}

// DefaultAllowedMIMETypes lists the media types accepted by the upload endpoint
var DefaultAllowedMIMETypes = []string{
	"image/jpeg",
	"image/png",
	"image/webp",
	"image/gif",
	"video/mp4",
	"video/webm",
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnvironment(),
		Version:     getEnv("APP_VERSION", "1.0.0"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			RequestTimeout:  getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: loadDatabaseConfig(),
		Supabase: SupabaseConfig{
			URL:            strings.TrimSuffix(getEnv("SUPABASE_URL", ""), "/"),
			AnonKey:        getEnv("SUPABASE_ANON_KEY", ""),
			ServiceRoleKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
			JWTSecret:      getEnv("SUPABASE_JWT_SECRET", ""),
			HTTPTimeout:    getEnvAsDuration("SUPABASE_HTTP_TIMEOUT", 30*time.Second),
		},
		Auth: AuthConfig{
			VerifyMode:    strings.ToLower(getEnv("AUTH_VERIFY_MODE", VerifyModeRemote)),
			VerifyTimeout: getEnvAsDuration("AUTH_VERIFY_TIMEOUT", 5*time.Second),
			DefaultRole:   getEnv("AUTH_DEFAULT_ROLE", "user"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS"),
			MaxAge:         getEnvAsInt("CORS_MAX_AGE", 86400),
		},
		Storage: StorageConfig{
			Bucket:           getEnv("STORAGE_BUCKET", "content"),
			MaxFileSize:      getEnvAsInt64("STORAGE_MAX_FILE_SIZE", 50*1024*1024),
			MaxRequestSize:   getEnvAsInt64("STORAGE_MAX_REQUEST_SIZE", 200*1024*1024),
			AllowedMIMETypes: getEnvAsListOr("STORAGE_ALLOWED_MIME_TYPES", DefaultAllowedMIMETypes),
			CacheControl:     getEnv("STORAGE_CACHE_CONTROL", "3600"),
		},
		Media: MediaConfig{
			RequireAuth:  getEnvAsBool("MEDIA_REQUIRE_AUTH", false),
			AllowedRoles: getEnvAsListOr("MEDIA_ALLOWED_ROLES", []string{"admin", "editor"}),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.Database.ConnectionString == "" && c.Database.Host == "" {
		return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
	}

	switch c.Auth.VerifyMode {
	case VerifyModeRemote, VerifyModeJWT:
	default:
		return fmt.Errorf("unknown AUTH_VERIFY_MODE %q (want %q or %q)", c.Auth.VerifyMode, VerifyModeRemote, VerifyModeJWT)
	}
	if c.Auth.VerifyMode == VerifyModeJWT && c.Supabase.JWTSecret == "" && c.Supabase.URL == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET or SUPABASE_URL (for JWKS) is required when AUTH_VERIFY_MODE=jwt")
	}
	if c.Auth.VerifyTimeout <= 0 {
		return fmt.Errorf("auth verify timeout must be positive")
	}

	if c.IsProduction() {
		if c.Supabase.URL == "" {
			return fmt.Errorf("supabase URL is required in production")
		}
		if c.Supabase.AnonKey == "" {
			return fmt.Errorf("supabase anon key is required in production")
		}
		if c.Supabase.ServiceRoleKey == "" {
			return fmt.Errorf("supabase service role key is required in production")
		}
		for _, origin := range c.CORS.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf("wildcard origin is not allowed in production")
			}
		}
	}

	if c.Storage.Bucket == "" {
		return fmt.Errorf("storage bucket is required")
	}
	if c.Storage.MaxFileSize <= 0 {
		return fmt.Errorf("storage max file size must be positive")
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	initSchema := getEnvAsBool("DB_INIT_SCHEMA", false)
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			InitSchema:       initSchema,
		}
	}
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "postgres"),
		Password:        getEnv("DB_PASSWORD", "postgres"),
		Database:        getEnv("DB_NAME", "postgres"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		InitSchema:      initSchema,
	}
}

// JWKSURL returns the signing key set endpoint of the identity provider
func (c *SupabaseConfig) JWKSURL() string {
	if c.URL == "" {
		return ""
	}
	return c.URL + "/auth/v1/.well-known/jwks.json"
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getEnvironment reads APP_ENV, falling back to NODE_ENV for deployments shared with the dashboard
func getEnvironment() string {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env
	}
	return getEnv("NODE_ENV", "production")
}

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma-separated variable, dropping blanks. Returns nil when unset.
func getEnvAsList(key string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvAsListOr(key string, defaultValue []string) []string {
	if list := getEnvAsList(key); len(list) > 0 {
		return list
	}
	out := make([]string, len(defaultValue))
	copy(out, defaultValue)
	return out
}
