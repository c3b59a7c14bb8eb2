// Package serialization implements C9: the typed encoders/decoders for the
// value domain shared with Store (§4.5, §4.7, §9). It provides a single
// canonical CBOR encoding used both to compute fingerprint input bytes and
// to realize copy-on-pass (§4.1) as an eager deep-copy round trip, per §9's
// explicit license to implement the copy at any point rather than only via
// source rewriting.
//
// CBOR (github.com/fxamacker/cbor/v2) canonicalizes a value the same way
// a plan gets canonicalized before SHA-256 hashing it: deterministic map
// key ordering and a single encoding for each semantic value, so the same
// logical value always hashes the same way.
package serialization

import (
	"bytes"

	"github.com/fxamacker/cbor/v2"

	"github.com/xunhq/xun/core/xerrors"
)

// encMode produces deterministic output: map keys sorted, shortest-form
// integers, no indefinite-length items. Two encodings of equal values are
// byte-identical, which is what fingerprinting and round-trip equality need.
var encMode = func() cbor.EncMode {
	opts := cbor.CanonicalEncOptions()
	m, err := opts.EncMode()
	if err != nil {
		panic("serialization: building canonical encoder: " + err.Error())
	}
	return m
}()

// decMode decodes all CBOR integers (signed or unsigned on the wire) into Go
// int64 when read back into an any, so a round trip never silently flips a
// value's concrete type between uint64 and int64.
var decMode = func() cbor.DecMode {
	m, err := cbor.DecOptions{IntDec: cbor.IntDecConvertSigned}.DecMode()
	if err != nil {
		panic("serialization: building decoder: " + err.Error())
	}
	return m
}()

// CanonicalEncode produces the deterministic byte encoding of v used as
// fingerprint input. Values that refuse encoding (CallNode, per its
// MarshalCBOR) surface that refusal unchanged.
func CanonicalEncode(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Decode reverses CanonicalEncode into a value of the same shape as out.
func Decode(data []byte, out any) error {
	return decMode.Unmarshal(data, out)
}

// DeepCopy clones v by round-tripping it through the canonical codec. This
// realizes the constant block's pass-by-value discipline (§4.1, §4.5): the
// clone shares no backing array/map with v, so a later mutation inside a
// constant statement's body cannot leak into an earlier-bound value.
// CallRuntime calls this on a call's arguments, on every resolved
// dependency value and on a function's result before any of them crosses
// into or back out of caller-visible state (core/callruntime's copyTuple,
// storeResolver.Resolve and Execute).
//
// A value that cannot be copied (a bare CallNode, or a container holding
// one) surfaces CopyError. This does not by itself intercept a plain
// (non-xun) function receiving a CallNode argument inside a constant
// block — see DESIGN.md's note on the copy-guard scenario for why that
// particular case needs no runtime check in this design.
func DeepCopy[T any](v T) (T, error) {
	var zero T
	data, err := encMode.Marshal(v)
	if err != nil {
		if xe, ok := asEngineError(err); ok {
			return zero, xe
		}
		return zero, xerrors.Wrap(xerrors.CopyError, err, "deep copy: value of type %T is not copyable", v)
	}
	var out T
	if err := decMode.Unmarshal(data, &out); err != nil {
		return zero, xerrors.Wrap(xerrors.CopyError, err, "deep copy: round trip failed")
	}
	return out, nil
}

// Equal reports whether a and b have identical canonical encodings.
func Equal(a, b any) bool {
	ab, err1 := CanonicalEncode(a)
	bb, err2 := CanonicalEncode(b)
	if err1 != nil || err2 != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

func asEngineError(err error) (*xerrors.Error, bool) {
	for err != nil {
		if xe, ok := err.(*xerrors.Error); ok {
			return xe, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}
