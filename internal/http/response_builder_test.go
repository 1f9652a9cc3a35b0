package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"fintrack/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&core.ValidationError{Fields: []core.FieldError{{Path: "title", Message: "x"}}}, http.StatusBadRequest},
		{core.ErrAmountTooSmall, http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", core.ErrExceedsRemaining), http.StatusBadRequest},
		{core.ErrInvalidUnit, http.StatusBadRequest},
		{core.ErrUnauthenticated, http.StatusUnauthorized},
		{core.ErrNotFound, http.StatusNotFound},
		{core.ErrEntryNotFound, http.StatusNotFound},
		{core.ErrCategoryNotFound, http.StatusNotFound},
		{core.ErrDuplicateLabel, http.StatusConflict},
		{core.ErrRateProviderUnavailable, http.StatusBadGateway},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func render(b *JSONResponseBuilder) (*httptest.ResponseRecorder, map[string]any) {
	rec := httptest.NewRecorder()
	b.Write(rec)
	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func TestErrorResponseHidesInternalsInProduction(t *testing.T) {
	err := errors.New("sql: connection refused")

	_, body := render(goalResource.errorResponse(err, false))
	assert.Equal(t, false, body["status"])
	assert.Equal(t, "Internal server error", body["message"])

	_, body = render(goalResource.errorResponse(err, true))
	assert.Equal(t, "sql: connection refused", body["message"])
}

func TestErrorResponseCarriesFieldErrors(t *testing.T) {
	verr := &core.ValidationError{}
	verr.Add("forWhom", "For whom is required")

	rec, body := render(debtResource.errorResponse(verr, false))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Validation failed", body["message"])
	errs, ok := body["errors"].([]any)
	require.True(t, ok)
	require.Len(t, errs, 1)
	assert.Equal(t, "forWhom", errs[0].(map[string]any)["path"])
}

func TestResourceMessages(t *testing.T) {
	assert.Equal(t, "Debt not found", debtResource.message(core.ErrNotFound, false))
	assert.Equal(t, "Paid amount not found", debtResource.message(core.ErrEntryNotFound, false))
	assert.Equal(t, "Category already exists", categoryResource.message(core.ErrDuplicateLabel, false))
}

func TestBuilderWrite(t *testing.T) {
	rec, body := render(Created("Goal added successfully").Data(createdView{ID: "g1"}).Header("X-Test", "1"))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "1", rec.Header().Get("X-Test"))
	assert.Equal(t, true, body["status"])
	assert.Equal(t, map[string]any{"id": "g1"}, body["data"])
}
