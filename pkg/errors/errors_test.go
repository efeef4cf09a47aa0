package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	t.Run("nil error stays nil", func(t *testing.T) {
		assert.Nil(t, Wrap(nil, ErrorTypeQuery, "ignored"))
		assert.Nil(t, Query(nil, "ignored"))
		assert.Nil(t, Connection(nil, "ignored"))
	})

	t.Run("cause is preserved", func(t *testing.T) {
		cause := fmt.Errorf("driver: bad connection")
		err := Connection(cause, "failed to open session")

		require.Error(t, err)
		assert.True(t, stderrors.Is(err, cause))
		assert.True(t, IsConnection(err))
		assert.Equal(t, "connection: failed to open session: driver: bad connection", err.Error())
	})

	t.Run("stack is kept when re-wrapping", func(t *testing.T) {
		inner := New(ErrorTypeQuery, "syntax error")
		outer := Wrap(inner, ErrorTypeInternal, "cycle failed")

		assert.Equal(t, inner.Stack, outer.Stack)
		assert.True(t, IsType(outer, ErrorTypeInternal))
	})
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"connection", New(ErrorTypeConnection, "x"), true},
		{"timeout", New(ErrorTypeTimeout, "x"), true},
		{"sink", New(ErrorTypeSink, "x"), true},
		{"config", Configuration("x"), false},
		{"query", New(ErrorTypeQuery, "x"), false},
		{"plain", fmt.Errorf("x"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestWithDetail(t *testing.T) {
	err := Newf(ErrorTypeValidation, "cursor %d is behind %d", 10, 20).
		WithDetail("current", 20).
		WithDetail("requested", 10)

	assert.Equal(t, "validation: cursor 10 is behind 20", err.Error())
	details := GetDetails(err)
	assert.Equal(t, 20, details["current"])
	assert.Equal(t, 10, details["requested"])
	assert.Nil(t, GetDetails(fmt.Errorf("plain")))
}
