package schemas

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	cause := errors.New("connection refused")

	e := WrapError(KindDriverUnavailable, "pool.acquire", cause)
	assert.Contains(t, e.Error(), "driver_unavailable")
	assert.Contains(t, e.Error(), "pool.acquire")
	assert.Contains(t, e.Error(), "connection refused")

	e2 := NewError(KindNotFound, "session.get", "no such session")
	assert.Equal(t, "not_found: session.get: no such session", e2.Error())
}

func TestErrorKindMatching(t *testing.T) {
	err := fmt.Errorf("handler: %w", NewError(KindTimeout, "perception.standard", "deadline elapsed"))

	assert.True(t, errors.Is(err, ErrTimeout))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, KindTimeout, KindOf(err))

	var typed *Error
	assert.True(t, errors.As(err, &typed))
	assert.Equal(t, "perception.standard", typed.Op)
}

func TestKindOfUnclassified(t *testing.T) {
	assert.Equal(t, KindFatal, KindOf(errors.New("boom")))
}

func TestValidSessionID(t *testing.T) {
	assert.True(t, ValidSessionID("user-42_a"))
	assert.False(t, ValidSessionID(""))
	assert.False(t, ValidSessionID("bad!id"))
	long := make([]byte, 129)
	for i := range long {
		long[i] = 'a'
	}
	assert.False(t, ValidSessionID(string(long)))
	assert.True(t, ValidSessionID(string(long[:128])))
}

func TestValidPerceptionMode(t *testing.T) {
	for _, m := range []PerceptionMode{ModeLightning, ModeQuick, ModeStandard, ModeDeep, ModeAdaptive} {
		assert.True(t, ValidPerceptionMode(m))
	}
	assert.False(t, ValidPerceptionMode("turbo"))
}
