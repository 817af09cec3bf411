package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewCustomError(t *testing.T) {
	err := New(ERR_NOT_FOUND, "resource not found")
	require.NotNil(t, err)
	require.Equal(t, ERR_NOT_FOUND, err.Code())
	require.Equal(t, "resource not found", err.Message())

	secondErr := New(ERR_INVALID_ARGUMENT, "[ValidateBlock][%s] failed", "height=1", err)
	thirdErr := New(ERR_DOUBLE_SPEND_IN_TX, "wrapping another", secondErr)
	fourthErr := New(ERR_PROCESSING, "older error", thirdErr)

	require.True(t, fourthErr.Is(New(ERR_DOUBLE_SPEND_IN_TX, "")))
	require.True(t, fourthErr.Is(err))
	require.False(t, fourthErr.Is(New(ERR_BAD_POW, "")))
}

func TestFmtErrorCustomError(t *testing.T) {
	err := New(ERR_NOT_FOUND, "resource not found")
	fmtError := fmt.Errorf("wrapped: %w", err)
	require.NotNil(t, fmtError)

	secondErr := New(ERR_INVALID_ARGUMENT, "outer", fmtError)
	require.False(t, secondErr.Is(err))

	altErr := New(ERR_INVALID_ARGUMENT, "invalid argument", err)
	altSecondErr := New(ERR_INVALID_ARGUMENT, "outer", fmtError)
	require.True(t, altSecondErr.Is(altErr))
}

func TestErrorsIs(t *testing.T) {
	err := New(ERR_NOT_FOUND, "not found")
	require.True(t, errors.Is(err, New(ERR_NOT_FOUND, "")))

	err = New(ERR_BAD_COINBASE, "bad coinbase")
	require.True(t, errors.Is(err, New(ERR_BAD_COINBASE, "")))
	require.False(t, errors.Is(err, New(ERR_BAD_POW, "")))
}

func TestErrorsAs(t *testing.T) {
	orig := NewBadDifficultyError("target too easy")
	wrapper := fmt.Errorf("apply block: %w", orig)

	var target *Error
	require.True(t, errors.As(wrapper, &target))
	require.Equal(t, ERR_BAD_DIFFICULTY, target.Code())
}

func TestUnwrap(t *testing.T) {
	inner := NewStorageError("disk full")
	outer := NewProcessingError("apply failed", inner)

	require.Equal(t, inner, errors.Unwrap(outer))
}

func TestIsConsensus(t *testing.T) {
	require.True(t, ERR_MALFORMED_TX.IsConsensus())
	require.True(t, ERR_BLOCK_TOO_LARGE.IsConsensus())
	require.False(t, ERR_STORAGE.IsConsensus())
	require.False(t, ERR_UNKNOWN.IsConsensus())
}

func TestKindString(t *testing.T) {
	require.Equal(t, "bad_pow", ERR_BAD_POW.String())
	require.Equal(t, "unknown", ERR(999).String())
}
