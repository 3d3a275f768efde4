package handlers

import (
	"net/http"

	"github.com/msc-edu/cms-api/services"
	"github.com/msc-edu/cms-api/utils"
	"go.uber.org/zap"
)

// ErrorResponder writes domain errors as envelopes. With ExposeErrors set the
// underlying error text is echoed in the message field of 5xx replies.
type ErrorResponder struct {
	Logger       *zap.Logger
	ExposeErrors bool
}

// HandleServiceError maps domain errors to HTTP responses
func (e ErrorResponder) HandleServiceError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	status, code := statusFor(err)
	message := services.GetErrorMessage(err)

	var resp utils.Response
	if status >= http.StatusInternalServerError {
		e.Logger.Error("request failed",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		if message == "" || services.GetErrorCode(err) == "" {
			message = "Internal server error"
		}
		detail := ""
		if e.ExposeErrors {
			detail = err.Error()
		}
		resp = utils.FailWithMessage(status, message, code, detail)
	} else {
		if message == "" {
			message = http.StatusText(status)
		}
		e.Logger.Debug("request rejected",
			zap.Int("status", status),
			zap.String("code", code),
			zap.String("message", message))
		resp = utils.Fail(status, message, code)
	}

	if err := resp.Write(w); err != nil {
		e.Logger.Error("failed to write error response", zap.Error(err))
	}
}

// statusFor returns the HTTP status and envelope code for an error
func statusFor(err error) (int, string) {
	code := services.GetErrorCode(err)
	or := func(def string) string {
		if code != "" {
			return code
		}
		return def
	}

	switch {
	case services.IsValidationError(err):
		return http.StatusBadRequest, or(utils.CodeValidation)
	case services.IsUnauthorizedError(err):
		return http.StatusUnauthorized, or(utils.CodeUnauthorized)
	case services.IsForbiddenError(err):
		return http.StatusForbidden, or(utils.CodeForbidden)
	case services.IsNotFoundError(err):
		return http.StatusNotFound, or(utils.CodeNotFound)
	case services.IsTooLargeError(err):
		return http.StatusRequestEntityTooLarge, or(utils.CodePayloadTooLarge)
	default:
		return http.StatusInternalServerError, utils.CodeServerError
	}
}
