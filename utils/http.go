package utils

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// Machine-readable error codes carried by failure envelopes
const (
	CodeError            = "ERROR"
	CodeMissingFields    = "MISSING_FIELDS"
	CodeInvalidJSON      = "INVALID_JSON"
	CodeValidation       = "VALIDATION_ERROR"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeInvalidToken     = "INVALID_TOKEN"
	CodeAuthFailed       = "AUTH_FAILED"
	CodeForbidden        = "FORBIDDEN"
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeNoFiles          = "NO_FILES"
	CodePayloadTooLarge  = "PAYLOAD_TOO_LARGE"
	CodeServerError      = "SERVER_ERROR"
)

const contentTypeJSON = "application/json"

// Envelope is the uniform body of every API response.
// Success is true iff the HTTP status is below 400.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
}

// Response is a fully rendered envelope ready to be written.
type Response struct {
	Status int
	Body   []byte
}

// OK builds a success envelope. A status of 0 means 200.
// Statuses of 400 and above yield success=false with the generic ERROR code.
func OK(data interface{}, status int, message string) Response {
	if status == 0 {
		status = http.StatusOK
	}
	env := Envelope{
		Success: status < http.StatusBadRequest,
		Data:    data,
		Message: message,
	}
	if !env.Success {
		env.Code = CodeError
	}
	return render(status, env)
}

// Fail builds an error envelope. An empty code becomes ERROR and statuses
// below 400 are raised to 500 so the envelope never reports a failure as 2xx.
func Fail(status int, message, code string) Response {
	return FailWithMessage(status, message, code, "")
}

// FailWithMessage is Fail plus a free-form message, used to echo the
// underlying error in development.
func FailWithMessage(status int, message, code, detail string) Response {
	if status < http.StatusBadRequest {
		status = http.StatusInternalServerError
	}
	if code == "" {
		code = CodeError
	}
	return render(status, Envelope{
		Success: false,
		Error:   message,
		Code:    code,
		Message: detail,
	})
}

func render(status int, env Envelope) Response {
	body, err := marshal(env)
	if err != nil {
		// data that cannot be encoded degrades to an opaque server error
		status = http.StatusInternalServerError
		body, _ = marshal(Envelope{Success: false, Error: "Internal server error", Code: CodeServerError})
	}
	return Response{Status: status, Body: body}
}

// marshal encodes without HTML escaping so URLs in payloads stay readable.
func marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write sends a rendered response.
func (r Response) Write(w http.ResponseWriter) error {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(r.Status)
	_, err := w.Write(r.Body)
	return err
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)

	if data == nil {
		return nil
	}

	return json.NewEncoder(w).Encode(data)
}

// WriteOK writes a 200 success envelope with optional message
func WriteOK(w http.ResponseWriter, data interface{}, message string) error {
	return OK(data, http.StatusOK, message).Write(w)
}

// WriteFail writes an error envelope
func WriteFail(w http.ResponseWriter, status int, message, code string) error {
	return Fail(status, message, code).Write(w)
}

// WriteBadRequest writes a 400 envelope
func WriteBadRequest(w http.ResponseWriter, message, code string) error {
	if code == "" {
		code = CodeValidation
	}
	return WriteFail(w, http.StatusBadRequest, message, code)
}

// WriteUnauthorized writes a 401 envelope
func WriteUnauthorized(w http.ResponseWriter, message, code string) error {
	if message == "" {
		message = "Valid authentication token required"
	}
	if code == "" {
		code = CodeUnauthorized
	}
	return WriteFail(w, http.StatusUnauthorized, message, code)
}

// WriteForbidden writes a 403 envelope
func WriteForbidden(w http.ResponseWriter, message string) error {
	if message == "" {
		message = "Access forbidden"
	}
	return WriteFail(w, http.StatusForbidden, message, CodeForbidden)
}

// WriteNotFound writes a 404 envelope
func WriteNotFound(w http.ResponseWriter, message string) error {
	if message == "" {
		message = "Resource not found"
	}
	return WriteFail(w, http.StatusNotFound, message, CodeNotFound)
}

// WriteInternalServerError writes a 500 envelope
func WriteInternalServerError(w http.ResponseWriter, message string) error {
	if message == "" {
		message = "Internal server error"
	}
	return WriteFail(w, http.StatusInternalServerError, message, CodeServerError)
}
