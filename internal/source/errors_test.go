package source

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := newError(SchemaError, "fetch", "https://example.com", "moved", nil)
	wrapped := fmt.Errorf("pipeline: %w", err)

	assert.True(t, errors.Is(wrapped, ErrSchema))
	assert.False(t, errors.Is(wrapped, ErrConnection))
	assert.Equal(t, SchemaError, KindOf(wrapped))
}

func TestError_UnwrapKeepsCause(t *testing.T) {
	err := newError(IOFailure, "hash", "/tmp/x", "read failed", io.ErrUnexpectedEOF)

	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	assert.Equal(t, "hash: read failed (/tmp/x): unexpected EOF", err.Error())
}

func TestError_IsRetryable(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{NotFound, false},
		{InvalidFormat, false},
		{SchemaError, false},
		{ConnectionFailure, true},
		{IOFailure, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, (&Error{Kind: tt.kind}).IsRetryable())
		})
	}
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
}
