package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromRepository(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{"no rows", fmt.Errorf("get: %w", pgx.ErrNoRows), CodeNotFound, http.StatusNotFound},
		{"unique", &pgconn.PgError{Code: "23505"}, CodeConflict, http.StatusConflict},
		{"network", errors.New("connection reset"), CodeStorage, http.StatusServiceUnavailable},
		{"already mapped", NewForbidden("nope"), CodeForbidden, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := ToDomainError(FromRepository(tt.err, "ticket"))
			require.NotNil(t, mapped)
			assert.Equal(t, tt.wantCode, mapped.Code)
			assert.Equal(t, tt.wantStatus, mapped.HTTPStatus)
		})
	}
	assert.NoError(t, FromRepository(nil, "ticket"))
}

func TestStorageErrorIsRetryable(t *testing.T) {
	cause := errors.New("timeout")
	err := NewStorageError(cause)

	assert.True(t, ToDomainError(err).Retryable)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsCode(err, CodeStorage))
	assert.False(t, IsCode(err, CodeForbidden))
}

func TestToDomainErrorFallsBackToInternal(t *testing.T) {
	mapped := ToDomainError(errors.New("boom"))
	assert.Equal(t, CodeInternal, mapped.Code)
	assert.Nil(t, ToDomainError(nil))
}
