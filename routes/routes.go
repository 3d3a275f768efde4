package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/msc-edu/cms-api/app"
	"github.com/msc-edu/cms-api/middleware"
	"github.com/msc-edu/cms-api/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	timeout := deps.Config.Server.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	// Core middleware. The recoverer wraps the CORS handler so a panic
	// still answers with the headers CORS already set.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer(deps.Logger))
	r.Use(deps.CORS.Handler)
	r.Use(middleware.Timeout(timeout, deps.Logger))

	r.Route("/api", func(r chi.Router) {
		// Health check endpoints
		r.Get("/health", deps.HealthHandler.HandleHealth)
		r.Get("/health/ready", deps.HealthHandler.HandleReadiness)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", deps.AuthHandler.HandleLogin)
			r.Get("/verify", deps.AuthHandler.HandleVerify)
		})

		// Media endpoints
		r.Group(func(r chi.Router) {
			if deps.Config.Media.RequireAuth {
				r.Use(deps.AuthMiddleware.RequireAuth)
				r.Use(deps.AuthMiddleware.RequireRole(deps.Config.Media.AllowedRoles...))
			}
			r.Get("/images", deps.MediaHandler.HandleList)
			r.Post("/images/upload", deps.MediaHandler.HandleUpload)
			r.Delete("/images/upload", deps.MediaHandler.HandleDelete)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "Endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteFail(w, http.StatusMethodNotAllowed, "Method not allowed", utils.CodeMethodNotAllowed)
	})

	return r
}
