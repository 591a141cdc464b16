package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("join: %w", ErrAlreadyQueued.Withf("user %s queued", "abc"))
	assert.ErrorIs(t, err, ErrAlreadyQueued)
	assert.NotErrorIs(t, err, ErrNotQueued)
	assert.Equal(t, "user is already queued or matched", ErrAlreadyQueued.Message)
}

func TestFromWrapsUnknown(t *testing.T) {
	assert.Nil(t, From(nil))

	e := From(errors.New("boom"))
	require.NotNil(t, e)
	assert.Equal(t, CodeInternal, e.Code)
	assert.Equal(t, KindInternal, e.Kind)
	assert.Contains(t, Trace(e.Err), "boom")

	known := From(fmt.Errorf("wrapped: %w", ErrInvalidMode))
	assert.Same(t, ErrInvalidMode, known)
}

func TestPayloadAndKind(t *testing.T) {
	p := ErrNotLeader.Payload()
	assert.Equal(t, CodeNotLeader, p.Code)
	assert.Equal(t, string(KindAuthorization), p.Kind)
	assert.True(t, HasKind(ErrMatchNotFound, KindNotFound))
	assert.False(t, HasKind(errors.New("x"), KindNotFound))
}
