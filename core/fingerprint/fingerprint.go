// Package fingerprint computes the three stable content hashes the kernel
// relies on for identity: source_hash (function images), call_hash (store
// keys) and value_hash (test-only content identifier), per spec §4.7.
package fingerprint

import (
	"crypto/sha256"
	"encoding/base64"

	"golang.org/x/crypto/blake2b"

	"github.com/xunhq/xun/core/invariant"
)

// Hash is a fingerprint: 12 raw bytes, rendered base64url without padding.
type Hash [12]byte

// String renders h as 12 raw bytes, base64url-encoded without padding.
func (h Hash) String() string {
	return base64.RawURLEncoding.EncodeToString(h[:])
}

func (h Hash) IsZero() bool {
	return h == Hash{}
}

// truncate takes the first 12 bytes of a SHA-256 digest.
func truncate(sum [32]byte) Hash {
	var h Hash
	copy(h[:], sum[:12])
	return h
}

// Source computes source_hash = SHA-256(source text), truncated to 12 bytes.
// Implementations of function-hash derivation (§3 "has a fingerprint equal to
// SHA-256 over (original source text, sorted dependency fingerprints)") feed
// the concatenation of source bytes and sorted dependency hash strings here.
func Source(sourceText string, sortedDependencyHashes []string) Hash {
	invariant.Precondition(sourceText != "", "source text must not be empty")
	h := sha256.New()
	h.Write([]byte(sourceText))
	for _, dep := range sortedDependencyHashes {
		h.Write([]byte{0}) // separator: prevents "ab","c" colliding with "a","bc"
		h.Write([]byte(dep))
	}
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return truncate(sum)
}

// Call computes call_hash over the identity fields of a store key: function
// name, function hash, subscript, and canonical-encoded args/kwargs bytes.
func Call(functionName, functionHash string, subscriptCanonical, argsCanonical, kwargsCanonical []byte) Hash {
	h := sha256.New()
	h.Write([]byte(functionName))
	h.Write([]byte{0})
	h.Write([]byte(functionHash))
	h.Write([]byte{0})
	h.Write(subscriptCanonical)
	h.Write([]byte{0})
	h.Write(argsCanonical)
	h.Write([]byte{0})
	h.Write(kwargsCanonical)
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return truncate(sum)
}

// Value is a test-only deterministic content identifier for a canonical byte
// encoding of a value. §4.7 marks value_hash as test-only; it is the one
// fingerprint this package computes with blake2b rather than SHA-256, purely
// to exercise the pack's golang.org/x/crypto dependency on a code path that
// is explicitly allowed to pick its own encoding.
func Value(canonicalBytes []byte) Hash {
	sum := blake2b.Sum256(canonicalBytes)
	return truncate(sum)
}
