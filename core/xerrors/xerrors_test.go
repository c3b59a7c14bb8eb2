package xerrors_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xunhq/xun/core/xerrors"
)

func TestErrorMessage(t *testing.T) {
	err := xerrors.New(xerrors.NotDAG, "cycle at %s", "a")
	assert.Equal(t, "NotDAG: cycle at a", err.Error())
}

func TestWrapUnwrap(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := xerrors.Wrap(xerrors.ExecutionError, cause, "call failed")
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "boom")
}

func TestIsWalksChain(t *testing.T) {
	inner := xerrors.New(xerrors.NotFound, "missing key")
	outer := xerrors.Wrap(xerrors.ExecutionError, inner, "load failed")
	assert.True(t, xerrors.Is(outer, xerrors.ExecutionError))
	assert.True(t, xerrors.Is(outer, xerrors.NotFound))
	assert.False(t, xerrors.Is(outer, xerrors.NotDAG))
}

func TestWithContext(t *testing.T) {
	err := xerrors.New(xerrors.ResourceExhausted, "pool empty").With("resource", "GPU")
	assert.Equal(t, "GPU", err.Context["resource"])
}
