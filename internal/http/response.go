// Package http provides the JSON API server and its handlers.
//
// This file implements a small builder for JSON responses so every handler
// writes status, headers and bodies the same way.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"housesplit/internal/core"
	"housesplit/internal/csvimport"
	"housesplit/internal/log"
	"housesplit/internal/services"
	"housesplit/internal/settlement"
	"housesplit/internal/storage"
)

// ErrorBody is the shape of every error response.
type ErrorBody struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// ResponseBuilder provides a fluent API for building JSON responses.
type ResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewResponse creates a builder with a default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets the value encoded as the response body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if err := json.NewEncoder(w).Encode(b.body); err != nil {
		slog.Error("Failed to encode response", "error", err, "status", b.statusCode)
	}
}

// ErrorResponse creates an error response with optional details.
func ErrorResponse(statusCode int, message string, details ...string) *ResponseBuilder {
	return NewResponse().
		Status(statusCode).
		JSON(ErrorBody{Error: message, Details: details})
}

func BadRequestError(message string, details ...string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message, details...)
}

func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func InternalServerError() *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, "internal server error")
}

// validationErrors are caller mistakes and map to 400.
var validationErrors = []error{
	core.ErrInvalidAmount,
	core.ErrInvalidMonthKey,
	core.ErrInvalidPerson,
	core.ErrInvalidDate,
	core.ErrCommentTooLong,
	core.ErrEmptyName,
	services.ErrShareTotalOutOfTolerance,
	services.ErrNoShares,
	services.ErrInvalidPayment,
	services.ErrNoValidRows,
	settlement.ErrInvalidShareTotal,
	csvimport.ErrNoRows,
	csvimport.ErrMissingColumn,
}

// errorResponse maps a service error to a response. Unexpected errors are
// logged and reported without their message.
func errorResponse(r *http.Request, err error) *ResponseBuilder {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		return reqErr.response()
	}

	var importErr *services.ImportError
	if errors.As(err, &importErr) {
		details := make([]string, len(importErr.Rows))
		for i, row := range importErr.Rows {
			details[i] = row.Error()
		}
		return BadRequestError("CSV validation failed", details...)
	}

	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return ErrorResponse(http.StatusRequestEntityTooLarge, "request body too large")
	}

	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return BadRequestError(err.Error())
		}
	}

	switch {
	case errors.Is(err, storage.ErrNotFound):
		return NotFoundError("not found")
	case errors.Is(err, storage.ErrConflict):
		return ErrorResponse(http.StatusConflict, err.Error())
	}

	log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
		log.FieldError, err,
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	return InternalServerError()
}
