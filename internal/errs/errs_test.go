package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	err := New(ErrCodeNotFound, "item not found")
	assert.Equal(t, ErrCodeNotFound, err.Code)
	assert.Equal(t, "NOT_FOUND: item not found", err.Error())

	cause := fmt.Errorf("underlying error")
	wrapped := Wrap(cause, ErrCodeStoreFailed, "create failed")
	assert.Same(t, cause, wrapped.Unwrap())
	assert.Contains(t, wrapped.Error(), "caused by: underlying error")

	assert.True(t, Is(wrapped, ErrCodeStoreFailed))
	assert.False(t, Is(wrapped, ErrCodeNotFound))
	assert.False(t, Is(nil, ""))

	detailed := err.WithDetail("id", "x1")
	assert.Equal(t, "x1", detailed.Details["id"])
}

func TestGetCodeThroughWrapping(t *testing.T) {
	inner := MissingID("replace")
	outer := fmt.Errorf("update: %w", inner)

	require.Equal(t, ErrCodeMissingID, GetCode(outer))
	assert.True(t, Is(outer, ErrCodeMissingID))
	assert.Equal(t, ErrorCode(""), GetCode(errors.New("plain")))
	assert.Equal(t, ErrorCode(""), GetCode(nil))
}

func TestConstructors(t *testing.T) {
	err := UnknownBackend("redis")
	assert.Equal(t, ErrCodeUnknownBackend, err.Code)
	assert.Equal(t, "redis", err.Details["backend"])

	err = Decode("d1", errors.New("bad json"))
	assert.Equal(t, ErrCodeDecodeFailed, err.Code)
	assert.Equal(t, "d1", err.Details["id"])

	assert.Contains(t, ConfigInvalid("timeout must be positive").ToJSON(), `"code": "CONFIG_INVALID"`)
}
