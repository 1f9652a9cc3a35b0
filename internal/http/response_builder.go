// Package http serves the JSON API.
//
// This file implements the Builder Pattern for JSON responses. Every body
// uses the same envelope: {"status": bool, "message": string, "data": any}.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"fintrack/internal/core"
)

// envelope is the wire shape of every API response.
type envelope struct {
	Status  bool              `json:"status"`
	Message string            `json:"message,omitempty"`
	Data    any               `json:"data,omitempty"`
	Errors  []core.FieldError `json:"errors,omitempty"`
}

// JSONResponseBuilder provides a fluent API for building API responses.
type JSONResponseBuilder struct {
	statusCode int
	body       envelope
	headers    map[string]string
}

// NewJSONResponse creates a successful response builder with a 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		body:       envelope{Status: true},
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code. Codes of 400 and above flip the
// envelope status to false.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	b.body.Status = code < 400
	return b
}

func (b *JSONResponseBuilder) Message(msg string) *JSONResponseBuilder {
	b.body.Message = msg
	return b
}

func (b *JSONResponseBuilder) Data(data any) *JSONResponseBuilder {
	b.body.Data = data
	return b
}

// FieldErrors attaches per-field validation problems.
func (b *JSONResponseBuilder) FieldErrors(fields []core.FieldError) *JSONResponseBuilder {
	b.body.Errors = fields
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if err := json.NewEncoder(w).Encode(b.body); err != nil {
		slog.Error("Failed to encode response body", "error", err, "status_code", b.statusCode)
	}
}

// OK creates a 200 response carrying data.
func OK(data any) *JSONResponseBuilder {
	return NewJSONResponse().Data(data)
}

// Created creates a 201 response with a confirmation message.
func Created(message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(http.StatusCreated).Message(message)
}

// ErrorResponse creates a failed response with the given status and message.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Message(message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// resource names the thing a handler works on, so domain errors read
// naturally ("Goal not found", "Paid amount not found").
type resource struct {
	name  string
	entry string
}

var (
	goalResource        = resource{name: "Goal", entry: "Saved amount"}
	debtResource        = resource{name: "Debt", entry: "Paid amount"}
	categoryResource    = resource{name: "Category"}
	transactionResource = resource{name: "Transaction"}
)

func resourceFor(kind core.AccountKind) resource {
	if kind == core.KindDebt {
		return debtResource
	}
	return goalResource
}

// StatusFor maps a domain error onto an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrNotFound),
		errors.Is(err, core.ErrEntryNotFound),
		errors.Is(err, core.ErrCategoryNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrDuplicateLabel):
		return http.StatusConflict
	case errors.Is(err, core.ErrValidation),
		errors.Is(err, core.ErrAmountTooSmall),
		errors.Is(err, core.ErrExceedsRemaining),
		errors.Is(err, core.ErrInvalidUnit):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrRateProviderUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (res resource) message(err error, development bool) string {
	switch {
	case errors.Is(err, core.ErrUnauthenticated):
		return "Authentication required"
	case errors.Is(err, core.ErrEntryNotFound):
		return res.entry + " not found"
	case errors.Is(err, core.ErrCategoryNotFound):
		return "Category not found"
	case errors.Is(err, core.ErrNotFound):
		return res.name + " not found"
	case errors.Is(err, core.ErrDuplicateLabel):
		return res.name + " already exists"
	case errors.Is(err, core.ErrAmountTooSmall):
		return "The amount is too small"
	case errors.Is(err, core.ErrExceedsRemaining):
		return "The amount exceeds the remaining balance"
	case errors.Is(err, core.ErrInvalidUnit):
		return "Invalid currency unit"
	case errors.Is(err, core.ErrRateProviderUnavailable):
		return "Failed to fetch exchange rates"
	case errors.Is(err, core.ErrValidation):
		return err.Error()
	case development:
		return err.Error()
	default:
		return "Internal server error"
	}
}

// errorResponse renders err in the envelope. Validation failures carry
// their field list.
func (res resource) errorResponse(err error, development bool) *JSONResponseBuilder {
	b := ErrorResponse(StatusFor(err), res.message(err, development))
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		b.Message("Validation failed").FieldErrors(verr.Fields)
	}
	return b
}
