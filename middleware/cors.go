package middleware

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// CORS header values sent with every response
const (
	AllowMethods = "GET, POST, PUT, DELETE, PATCH, OPTIONS"
	AllowHeaders = "Content-Type, Authorization, X-API-Key, X-Request-ID"
)

// DefaultProductionOrigins are honored when ALLOWED_ORIGINS is unset
var DefaultProductionOrigins = []string{
	"https://msc.edu.vn",
	"https://www.msc.edu.vn",
}

// CORSConfig holds the inputs of the origin set
type CORSConfig struct {
	AllowedOrigins []string
	Development    bool
	MaxAge         int
}

// wildcardOrigin is an entry of the form scheme://*.domain[:port]
type wildcardOrigin struct {
	scheme string
	suffix string // ".domain", lower-case
	port   string
}

// Negotiator decides cross-origin access. It is built once and read-only afterwards.
type Negotiator struct {
	exact          map[string]struct{}
	wildcards      []wildcardOrigin
	allowLoopback  bool
	allowAnyOrigin bool
	maxAge         string
	logger         *zap.Logger
}

// NewNegotiator resolves the allowed origin set
func NewNegotiator(cfg CORSConfig, logger *zap.Logger) *Negotiator {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 86400
	}
	n := &Negotiator{
		exact:         make(map[string]struct{}),
		allowLoopback: cfg.Development,
		maxAge:        strconv.Itoa(cfg.MaxAge),
		logger:        logger,
	}

	// development adds configured origins to the defaults; elsewhere they replace them
	origins := cfg.AllowedOrigins
	switch {
	case cfg.Development:
		origins = append(append([]string{}, DefaultProductionOrigins...), cfg.AllowedOrigins...)
	case len(origins) == 0:
		origins = DefaultProductionOrigins
	}

	for _, entry := range origins {
		entry = strings.TrimSuffix(strings.TrimSpace(entry), "/")
		switch {
		case entry == "":
		case entry == "*":
			if cfg.Development {
				n.allowAnyOrigin = true
			} else {
				logger.Warn("ignoring wildcard origin outside development")
			}
		case strings.Contains(entry, "://*."):
			w, ok := parseWildcard(entry)
			if !ok {
				logger.Warn("ignoring malformed wildcard origin", zap.String("origin", entry))
				continue
			}
			n.wildcards = append(n.wildcards, w)
		default:
			n.exact[strings.ToLower(entry)] = struct{}{}
		}
	}

	return n
}

func parseWildcard(entry string) (wildcardOrigin, bool) {
	scheme, rest, ok := strings.Cut(entry, "://*.")
	if !ok || scheme == "" || rest == "" {
		return wildcardOrigin{}, false
	}
	host, port := rest, ""
	if i := strings.LastIndexByte(rest, ':'); i >= 0 {
		host, port = rest[:i], rest[i+1:]
		if _, err := strconv.Atoi(port); err != nil {
			return wildcardOrigin{}, false
		}
	}
	if host == "" || strings.ContainsAny(host, "*/") {
		return wildcardOrigin{}, false
	}
	return wildcardOrigin{
		scheme: strings.ToLower(scheme),
		suffix: "." + strings.ToLower(host),
		port:   port,
	}, true
}

// IsAllowed reports whether origin may access the API
func (n *Negotiator) IsAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	if n.allowAnyOrigin {
		return true
	}
	if _, ok := n.exact[strings.ToLower(origin)]; ok {
		return true
	}
	if len(n.wildcards) == 0 && !n.allowLoopback {
		return false
	}

	u, err := url.Parse(origin)
	if err != nil || u.Host == "" || (u.Path != "" && u.Path != "/") {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())

	if n.allowLoopback && (scheme == "http" || scheme == "https") {
		switch host {
		case "localhost", "127.0.0.1", "::1":
			return true
		}
	}

	for _, w := range n.wildcards {
		if scheme == w.scheme && u.Port() == w.port &&
			len(host) > len(w.suffix) && strings.HasSuffix(host, w.suffix) {
			return true
		}
	}
	return false
}

// ComputeHeaders returns the CORS headers for a response to origin.
// Access-Control-Allow-Origin is only present when origin is allowed.
func (n *Negotiator) ComputeHeaders(origin string) http.Header {
	h := make(http.Header)
	n.apply(h, origin)
	return h
}

func (n *Negotiator) apply(h http.Header, origin string) {
	h.Add("Vary", "Origin")
	if n.IsAllowed(origin) {
		h.Set("Access-Control-Allow-Origin", origin)
	}
	h.Set("Access-Control-Allow-Methods", AllowMethods)
	h.Set("Access-Control-Allow-Headers", AllowHeaders)
	h.Set("Access-Control-Allow-Credentials", "true")
	h.Set("Access-Control-Max-Age", n.maxAge)
}

// Preflight answers an OPTIONS request: 200, CORS headers, empty body
func (n *Negotiator) Preflight(w http.ResponseWriter, origin string) {
	n.apply(w.Header(), origin)
	w.WriteHeader(http.StatusOK)
}

// Handler sets CORS headers on every response and short-circuits OPTIONS
// before any route, auth or business logic runs.
func (n *Negotiator) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if r.Method == http.MethodOptions {
			n.Preflight(w, origin)
			return
		}

		n.apply(w.Header(), origin)
		if origin != "" && !n.IsAllowed(origin) {
			n.logger.Debug("cross-origin request from disallowed origin",
				zap.String("origin", origin),
				zap.String("request_id", GetRequestIDFromContext(r.Context())))
		}
		next.ServeHTTP(w, r)
	})
}
