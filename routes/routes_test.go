package routes

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/msc-edu/cms-api/app"
	"github.com/msc-edu/cms-api/config"
	"github.com/msc-edu/cms-api/repositories/postgres"
	"github.com/msc-edu/cms-api/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const siteOrigin = "https://msc.edu.vn"

// fakeIdentity is a GoTrue stand-in: "good-token" belongs to userID, every
// other token and every password login is rejected.
func fakeIdentity(t *testing.T, userID string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/auth/v1/token":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
		case "/auth/v1/user":
			if r.Header.Get("Authorization") != "Bearer good-token" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"msg":"invalid JWT"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"id": userID, "email": "user@msc.edu.vn"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(supabaseURL string) *config.Config {
	return &config.Config{
		Environment: "production",
		Version:     "1.2.3",
		Server: config.ServerConfig{
			RequestTimeout: 5 * time.Second,
		},
		Supabase: config.SupabaseConfig{
			URL:            supabaseURL,
			AnonKey:        "anon",
			ServiceRoleKey: "service",
			HTTPTimeout:    2 * time.Second,
		},
		Auth: config.AuthConfig{
			VerifyMode:    config.VerifyModeRemote,
			VerifyTimeout: 2 * time.Second,
			DefaultRole:   "user",
		},
		CORS: config.CORSConfig{MaxAge: 600},
		Storage: config.StorageConfig{
			Bucket:           "content",
			MaxFileSize:      1 << 20,
			MaxRequestSize:   4 << 20,
			AllowedMIMETypes: config.DefaultAllowedMIMETypes,
			CacheControl:     "3600",
		},
		Media: config.MediaConfig{
			AllowedRoles: []string{"admin", "editor"},
		},
	}
}

func newRouter(t *testing.T, cfg *config.Config) (http.Handler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := zap.NewNop()
	deps := app.Build(cfg, postgres.NewRepositoryFactoryFromDB(postgres.Wrap(db, logger), logger), logger)
	return SetupRoutes(deps), mock
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func assertCORS(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, siteOrigin, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Methods"))
}

func TestLoginRejected(t *testing.T) {
	idp := fakeIdentity(t, uuid.New().String())
	router, _ := newRouter(t, testConfig(idp.URL))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"a@msc.edu.vn","password":"wrong"}`))
	req.Header.Set("Origin", siteOrigin)
	w := serve(router, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, utils.CodeAuthFailed, body["code"])
	assert.Equal(t, "Invalid login credentials", body["error"])
	assertCORS(t, w)
}

func TestLoginMissingFields(t *testing.T) {
	router, _ := newRouter(t, testConfig("http://127.0.0.1:1"))

	w := serve(router, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"a@msc.edu.vn"}`)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, utils.CodeMissingFields, decode(t, w)["code"])
}

func TestVerify(t *testing.T) {
	userID := uuid.New().String()
	idp := fakeIdentity(t, userID)

	t.Run("missing header", func(t *testing.T) {
		router, _ := newRouter(t, testConfig(idp.URL))

		w := serve(router, httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		body := decode(t, w)
		assert.Equal(t, utils.CodeInvalidToken, body["code"])
		assert.Equal(t, "Invalid or expired token", body["error"])
	})

	t.Run("valid token without a profile gets role user", func(t *testing.T) {
		router, mock := newRouter(t, testConfig(idp.URL))
		mock.ExpectQuery("FROM profiles").WithArgs(userID).WillReturnRows(sqlmock.NewRows([]string{"id"}))

		req := httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil)
		req.Header.Set("Authorization", "Bearer good-token")
		w := serve(router, req)

		require.Equal(t, http.StatusOK, w.Code)
		data := decode(t, w)["data"].(map[string]interface{})
		assert.Equal(t, true, data["valid"])
		user := data["user"].(map[string]interface{})
		assert.Equal(t, userID, user["id"])
		assert.Equal(t, "user", user["role"])
	})
}

func TestPreflight(t *testing.T) {
	router, _ := newRouter(t, testConfig("http://127.0.0.1:1"))

	for _, path := range []string{"/api/auth/login", "/api/images/upload", "/api/does-not-exist"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, path, nil)
			req.Header.Set("Origin", siteOrigin)
			w := serve(router, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Empty(t, w.Body.String())
			assertCORS(t, w)
			assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))
		})
	}

	t.Run("disallowed origin gets no allow-origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := serve(router, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
		assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Methods"))
	})
}

func TestUploadWithoutFiles(t *testing.T) {
	router, _ := newRouter(t, testConfig("http://127.0.0.1:1"))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("folder", "uploads"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/images/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Origin", siteOrigin)
	w := serve(router, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "No files provided", body["error"])
	assertCORS(t, w)
}

func TestMediaAccessPolicy(t *testing.T) {
	userID := uuid.New().String()
	idp := fakeIdentity(t, userID)
	cfg := testConfig(idp.URL)
	cfg.Media.RequireAuth = true

	t.Run("anonymous request is unauthorized", func(t *testing.T) {
		router, _ := newRouter(t, cfg)

		req := httptest.NewRequest(http.MethodGet, "/api/images", nil)
		req.Header.Set("Origin", siteOrigin)
		w := serve(router, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, utils.CodeUnauthorized, decode(t, w)["code"])
		assertCORS(t, w)
	})

	t.Run("plain user is forbidden", func(t *testing.T) {
		router, mock := newRouter(t, cfg)
		mock.ExpectQuery("FROM profiles").WithArgs(userID).WillReturnRows(sqlmock.NewRows([]string{"id"}))

		req := httptest.NewRequest(http.MethodDelete, "/api/images/upload?path=uploads/a.png", nil)
		req.Header.Set("Authorization", "Bearer good-token")
		w := serve(router, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
		body := decode(t, w)
		assert.Equal(t, utils.CodeForbidden, body["code"])
		assert.Equal(t, "This endpoint requires one of the following roles: admin, editor", body["error"])
	})
}

func TestHealth(t *testing.T) {
	router, _ := newRouter(t, testConfig("http://127.0.0.1:1"))

	w := serve(router, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "1.2.3", body["version"])
	assert.Equal(t, "production", body["environment"])
}

func TestFallbackHandlers(t *testing.T) {
	router, _ := newRouter(t, testConfig("http://127.0.0.1:1"))

	t.Run("unknown route", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/nope", nil)
		req.Header.Set("Origin", siteOrigin)
		w := serve(router, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, utils.CodeNotFound, decode(t, w)["code"])
		assertCORS(t, w)
	})

	t.Run("wrong method", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/api/images", nil)
		req.Header.Set("Origin", siteOrigin)
		w := serve(router, req)

		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
		body := decode(t, w)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, utils.CodeMethodNotAllowed, body["code"])
		assertCORS(t, w)
	})
}
