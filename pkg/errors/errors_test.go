package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError(t *testing.T) {
	t.Run("codes map to http statuses", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, New(CodeInvalidParam, "x").HTTPStatus)
		assert.Equal(t, http.StatusUnauthorized, New(CodeUnauthorized, "x").HTTPStatus)
		assert.Equal(t, http.StatusForbidden, New(CodeForbidden, "x").HTTPStatus)
		assert.Equal(t, http.StatusPaymentRequired, New(CodeInsufficientCredits, "x").HTTPStatus)
		assert.Equal(t, http.StatusTooManyRequests, New(CodeGenerationBusy, "x").HTTPStatus)
		assert.Equal(t, http.StatusServiceUnavailable, New(CodeProviderNotConfigured, "x").HTTPStatus)
		// 上游状态未知时落到 500
		assert.Equal(t, http.StatusInternalServerError, New(CodeUpstreamError, "x").HTTPStatus)
	})

	t.Run("with status overrides the mapped status", func(t *testing.T) {
		err := New(CodeUpstreamError, "rate limited").WithStatus(http.StatusTooManyRequests)
		assert.Equal(t, http.StatusTooManyRequests, err.HTTPStatus)
	})

	t.Run("wrap keeps the cause reachable", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Wrap(cause, CodeDatabaseError, "query failed")

		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "query failed")
	})

	t.Run("as app error unwraps through wrapping", func(t *testing.T) {
		inner := New(CodeInsufficientCredits, "insufficient credits")
		wrapped := Wrap(inner, CodeGenerationFailed, "generation failed")

		appErr := AsAppError(wrapped)
		require.NotNil(t, appErr)
		assert.Equal(t, CodeGenerationFailed, appErr.Code)

		assert.Nil(t, AsAppError(errors.New("plain")))
	})
}
