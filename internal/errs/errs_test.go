package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	err := GraphIntegrity("record.validate", "parent %q not in ids", "A")
	assert.Equal(t, `record.validate: GRAPH_INTEGRITY: parent "A" not in ids`, err.Error())

	bare := Lookup("", "missing")
	assert.Equal(t, "LOOKUP: missing", bare.Error())
}

func TestKindThroughWrapping(t *testing.T) {
	base := Validation("spec.normalize", "empty uuid")
	wrapped := fmt.Errorf("submit: %w", base)

	assert.True(t, IsValidation(wrapped))
	assert.False(t, IsSerialization(wrapped))
	assert.Equal(t, KindValidation, KindOf(wrapped))
}

func TestWrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(KindSerialization, "doc.marshal", cause, "cannot encode %s", "x")

	assert.True(t, IsSerialization(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")

	assert.Nil(t, Wrap(KindLookup, "op", nil, "unused"))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.False(t, IsLocked(nil))
}
