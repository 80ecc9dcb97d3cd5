//go:build !integration

package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uplus-loyalty/internal/domain"
)

func TestIsSerializationFailure(t *testing.T) {
	wrapped := fmt.Errorf("insert welcome bonus: %w", &pgconn.PgError{Code: "40001"})
	assert.True(t, isSerializationFailure(wrapped))
	assert.False(t, isSerializationFailure(&pgconn.PgError{Code: pgUniqueViolation}))
	assert.False(t, isSerializationFailure(errors.New("boom")))
	assert.False(t, isSerializationFailure(nil))
}

func TestGetExecutor(t *testing.T) {
	_, err := getExecutor(nil, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = getExecutor(nil, "not a tx")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidExecContext)
}
