package fingerprint_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xunhq/xun/core/fingerprint"
)

func TestSourceDeterministic(t *testing.T) {
	h1 := fingerprint.Source("func f() {}", []string{"a", "b"})
	h2 := fingerprint.Source("func f() {}", []string{"a", "b"})
	assert.Equal(t, h1, h2)
	assert.Len(t, h1.String(), 16) // 12 bytes base64url -> 16 chars, no padding
}

func TestSourceSensitiveToDependencyOrder(t *testing.T) {
	h1 := fingerprint.Source("func f() {}", []string{"a", "b"})
	h2 := fingerprint.Source("func f() {}", []string{"b", "a"})
	assert.NotEqual(t, h1, h2, "callers are expected to sort dependency hashes before calling Source")
}

func TestSourceSensitiveToText(t *testing.T) {
	h1 := fingerprint.Source("func f() {}", nil)
	h2 := fingerprint.Source("func g() {}", nil)
	assert.NotEqual(t, h1, h2)
}

func TestCallDeterministic(t *testing.T) {
	h1 := fingerprint.Call("f", "abc", []byte{1}, []byte{2, 3}, []byte{4})
	h2 := fingerprint.Call("f", "abc", []byte{1}, []byte{2, 3}, []byte{4})
	assert.Equal(t, h1, h2)
}

func TestCallDistinguishesSubscript(t *testing.T) {
	base := fingerprint.Call("f", "abc", nil, []byte{1}, nil)
	indexed := fingerprint.Call("f", "abc", []byte{0}, []byte{1}, nil)
	assert.NotEqual(t, base, indexed)
}

func TestValueDeterministic(t *testing.T) {
	assert.Equal(t, fingerprint.Value([]byte("x")), fingerprint.Value([]byte("x")))
	assert.NotEqual(t, fingerprint.Value([]byte("x")), fingerprint.Value([]byte("y")))
}
