package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/msc-edu/cms-api/utils"
	"go.uber.org/zap"
)

// Timeout cancels the request context after d. If the handler gives up
// without writing anything the client gets a 504 SERVER_ERROR envelope.
func Timeout(d time.Duration, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				if !errors.Is(ctx.Err(), context.DeadlineExceeded) || ww.Status() != 0 {
					return
				}
				logger.Warn("request timed out",
					zap.String("request_id", GetRequestIDFromContext(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Duration("timeout", d))
				_ = utils.WriteFail(w, http.StatusGatewayTimeout, "Request timed out", utils.CodeServerError)
			}()

			next.ServeHTTP(ww, r.WithContext(ctx))
		})
	}
}
