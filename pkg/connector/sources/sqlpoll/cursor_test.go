package sqlpoll

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/sqlpoller/pkg/errors"
)

func TestParseCursor(t *testing.T) {
	c, err := ParseCursor(" 1700000000 ")
	require.NoError(t, err)
	assert.Equal(t, Cursor(1700000000), c)
	assert.Equal(t, "1700000000", c.String())

	_, err = ParseCursor("2024-01-01")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestCursorStore_Advance(t *testing.T) {
	store := NewCursorStore(1000)

	require.NoError(t, store.Advance(1600))
	assert.Equal(t, Cursor(1600), store.Get())

	require.NoError(t, store.Advance(1600), "staying in place is allowed")

	err := store.Advance(1500)
	require.Error(t, err)
	assert.Equal(t, Cursor(1600), store.Get(), "rejected advance leaves the cursor untouched")

	store.Set(10)
	assert.Equal(t, Cursor(10), store.Get())
}
