package serialization_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xunhq/xun/core/serialization"
)

func TestDeepCopyIsIndependent(t *testing.T) {
	original := map[string]any{"items": []any{1, 2, 3}}
	clone, err := serialization.DeepCopy(original)
	assert.NoError(t, err)

	items := clone["items"].([]any)
	items[0] = 999

	assert.Equal(t, 1, original["items"].([]any)[0], "mutating the clone must not affect the original")
}

func TestDeepCopyRoundTripsScalars(t *testing.T) {
	got, err := serialization.DeepCopy(42)
	assert.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestCanonicalEncodeDeterministic(t *testing.T) {
	a := map[string]any{"b": 1, "a": 2}
	b := map[string]any{"a": 2, "b": 1}
	encA, err := serialization.CanonicalEncode(a)
	assert.NoError(t, err)
	encB, err := serialization.CanonicalEncode(b)
	assert.NoError(t, err)
	assert.Equal(t, encA, encB)
}

func TestEqual(t *testing.T) {
	assert.True(t, serialization.Equal([]any{1, 2}, []any{1, 2}))
	assert.False(t, serialization.Equal([]any{1, 2}, []any{1, 3}))
}
