package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(CodeNotFound, "document missing")
	require.Error(t, err)
	assert.Equal(t, "document missing", err.Error())
	assert.True(t, HasCode(err, CodeNotFound))
	assert.False(t, HasCode(err, CodeConflict))
}

func TestWrapPreservesOriginalCode(t *testing.T) {
	inner := New(CodeUnattempted, "artifact store unreachable")
	wrapped := Wrap(inner, CodeInternal, "verification aborted")

	// The unattempted/rejected distinction must survive wrapping, otherwise
	// callers lose the ability to tell "could not attempt" from "failed".
	assert.True(t, HasCode(wrapped, CodeUnattempted))
	assert.False(t, HasCode(wrapped, CodeInternal))
	assert.True(t, errors.Is(wrapped, inner))
}

func TestWrapPlainError(t *testing.T) {
	inner := fmt.Errorf("dial tcp: connection refused")
	wrapped := Wrap(inner, CodeUnattempted, "could not load verification key")

	assert.True(t, HasCode(wrapped, CodeUnattempted))
	assert.ErrorContains(t, wrapped, "could not load verification key")
	assert.True(t, errors.Is(wrapped, inner))
}

func TestIsMatchesByCode(t *testing.T) {
	a := New(CodeExpired, "proof expired at T")
	b := New(CodeExpired, "different message")

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, New(CodeReplayed, "")))
}

func TestErrorFallsBackToCode(t *testing.T) {
	err := &Error{Code: CodeRejected}
	assert.Equal(t, "rejected", err.Error())
}
