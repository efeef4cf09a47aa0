package sqlpoll

import (
	"strconv"
	"strings"

	"github.com/ajitpratap0/sqlpoller/pkg/errors"
)

// Cursor is the progress marker of a source in seconds since epoch. It is
// exchanged with checkpoints and query templates as a decimal string.
type Cursor int64

// ParseCursor decodes a string encoded cursor
func ParseCursor(s string) (Cursor, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeValidation, "cursor must be an integer").
			WithDetail("cursor", s)
	}
	return Cursor(v), nil
}

// String returns the decimal encoding of the cursor
func (c Cursor) String() string {
	return strconv.FormatInt(int64(c), 10)
}

// CursorStore holds the cursor of one source. The value only moves forward.
type CursorStore struct {
	value Cursor
}

// NewCursorStore creates a store starting at initial
func NewCursorStore(initial Cursor) *CursorStore {
	return &CursorStore{value: initial}
}

// Get returns the current cursor
func (s *CursorStore) Get() Cursor {
	return s.value
}

// Advance moves the cursor to the upper bound of a consumed window. Moving
// backwards is rejected and leaves the cursor untouched.
func (s *CursorStore) Advance(to Cursor) error {
	if to < s.value {
		return errors.Newf(errors.ErrorTypeValidation, "cursor cannot move backwards from %d to %d", s.value, to)
	}
	s.value = to
	return nil
}

// Set replaces the cursor unconditionally. Only meant for restoring a
// checkpoint before the first cycle.
func (s *CursorStore) Set(c Cursor) {
	s.value = c
}
