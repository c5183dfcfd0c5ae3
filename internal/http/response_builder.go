// Package http serves the ledger and report JSON API.
//
// This file implements the Builder Pattern for constructing JSON responses and
// maps domain errors onto status codes in one place.

package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"cassa/internal/auth"
	"cassa/internal/core"
	"cassa/internal/log"
	"cassa/internal/report"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	payload    any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Data sets the value encoded as the response body.
func (b *JSONResponseBuilder) Data(v any) *JSONResponseBuilder {
	b.payload = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.payload == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	body, err := json.Marshal(b.payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(body, '\n'))
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Data(ErrorBody{Error: message})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// errorStatus maps a domain error to its status code and public body.
func errorStatus(err error) (int, ErrorBody) {
	var (
		ve *core.ValidationError
		nf *core.NotFoundError
		ae *core.AuthorizationError
		pe *core.PersistenceError
	)
	switch {
	case errors.Is(err, core.ErrAlreadyOnboarded):
		return http.StatusConflict, ErrorBody{Error: core.ErrAlreadyOnboarded.Error(), Field: "owner_id"}
	case errors.Is(err, report.ErrStale):
		return http.StatusConflict, ErrorBody{Error: err.Error()}
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity, ErrorBody{Error: ve.Error(), Field: ve.Field}
	case errors.As(err, &nf):
		return http.StatusNotFound, ErrorBody{Error: nf.Error()}
	case errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized, ErrorBody{Error: err.Error()}
	case errors.As(err, &ae):
		if ae.OwnerID == "" {
			return http.StatusUnauthorized, ErrorBody{Error: ae.Error()}
		}
		return http.StatusForbidden, ErrorBody{Error: ae.Error()}
	case errors.As(err, &pe):
		return http.StatusServiceUnavailable, ErrorBody{Error: "ledger store unavailable"}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, ErrorBody{Error: "request timed out"}
	case errors.Is(err, errMalformedBody):
		return http.StatusBadRequest, ErrorBody{Error: err.Error()}
	default:
		return http.StatusInternalServerError, ErrorBody{Error: "internal error"}
	}
}

// writeError logs err with the request logger and writes its mapped response.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, body := errorStatus(err)
	logger := log.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed",
			log.FieldOperation, op,
			log.FieldStatusCode, status,
			log.FieldError, err)
	} else {
		logger.DebugContext(r.Context(), "Request rejected",
			log.FieldOperation, op,
			log.FieldStatusCode, status,
			log.FieldError, err)
	}
	NewJSONResponse().Status(status).Data(body).Write(w)
}
