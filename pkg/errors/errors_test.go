package errors

import (
	"context"
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		typ    ErrorType
		status int
	}{
		{"validation", NewValidationError("bad"), ErrorTypeValidation, http.StatusBadRequest},
		{"not found", NewNotFoundError("memory"), ErrorTypeNotFound, http.StatusNotFound},
		{"conflict", NewConflictError("dup"), ErrorTypeConflict, http.StatusConflict},
		{"internal", NewInternalError("boom"), ErrorTypeInternal, http.StatusInternalServerError},
		{"canceled", NewCanceledError("discover", context.Canceled), ErrorTypeCanceled, http.StatusRequestTimeout},
		{"unavailable", NewUnavailableError("store"), ErrorTypeUnavailable, http.StatusServiceUnavailable},
		{"storage", NewStorageError("save", stderrors.New("disk")), ErrorTypeStorage, http.StatusInternalServerError},
		{"external", NewExternalError("eventbridge", stderrors.New("x")), ErrorTypeExternal, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.typ, tt.err.Type)
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
			assert.True(t, IsType(tt.err, tt.typ))
		})
	}
}

func TestNotFoundMessage(t *testing.T) {
	assert.Equal(t, "NOT_FOUND: memory not found", NewNotFoundError("memory").Error())
}

func TestWrap_KeepsTypeAndDoesNotMutate(t *testing.T) {
	base := NewValidationError("empty content")
	wrapped := Wrap(base, "add memory")

	require.Error(t, wrapped)
	assert.True(t, IsValidation(wrapped))
	assert.Equal(t, "empty content", base.Message)
	assert.Contains(t, wrapped.Error(), "add memory: empty content")
	assert.True(t, stderrors.Is(wrapped, base))
}

func TestWrap_PlainErrorBecomesInternal(t *testing.T) {
	cause := stderrors.New("io")
	wrapped := Wrapf(cause, "load %s", "graph")

	assert.True(t, IsType(wrapped, ErrorTypeInternal))
	assert.ErrorIs(t, wrapped, cause)
	assert.Nil(t, Wrap(nil, "x"))
}

func TestIs_MatchesByCode(t *testing.T) {
	sentinel := NewValidationError("dimension mismatch").WithCode("DIMENSION_MISMATCH")
	other := NewValidationError("vectors differ").WithCode("DIMENSION_MISMATCH")

	assert.ErrorIs(t, other, sentinel)
	assert.NotErrorIs(t, NewValidationError("x"), sentinel)
}

func TestHTTPStatus_PlainError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(stderrors.New("x")))
}
