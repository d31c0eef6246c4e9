package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuredError(t *testing.T) {
	t.Parallel()

	base := errors.New("migration failed")
	serr := With(base, "id", "0001-users", "database", "sqlite://data.db")

	assert.Equal(t, "migration failed", serr.Error())
	assert.True(t, errors.Is(serr, base))
	assert.Equal(t, map[string]any{
		"id":       "0001-users",
		"database": "sqlite://data.db",
	}, serr.Metadata())

	// Wrapping again merges metadata, newer values winning.
	merged := With(serr, "id", "0002-emails", "attempt", 2)
	assert.Equal(t, map[string]any{
		"id":       "0002-emails",
		"database": "sqlite://data.db",
		"attempt":  2,
	}, merged.Metadata())
	assert.True(t, errors.Is(merged, base))

	cause := errors.New("disk full")
	werr := WithCause(NewWith("write failed"), cause)
	assert.Equal(t, cause, werr.Cause())
	assert.True(t, errors.Is(werr, cause))
}

func TestRuntimeError(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	rerr := NewRuntimeError("failed opening database", cause, "Check that the server is running.")

	assert.Equal(t, "failed opening database: connection refused", rerr.Error())
	assert.Equal(t, "Check that the server is running.", rerr.Hint())
	require.True(t, errors.Is(rerr, cause))
}
