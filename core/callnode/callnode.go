// Package callnode implements the CallNode (C2): the immutable symbolic
// handle that is both a DAG vertex and a Store key, per spec §3.
package callnode

import (
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"

	"github.com/xunhq/xun/core/fingerprint"
	"github.com/xunhq/xun/core/invariant"
	"github.com/xunhq/xun/core/serialization"
	"github.com/xunhq/xun/core/xerrors"
)

// CallNode is an immutable (function_name, function_hash, args, kwargs,
// subscript) tuple. The zero value is not a valid CallNode; construct with
// New. All fields are unexported so the only way to build or extend one is
// through New/Index, matching the "never mutated" lifecycle invariant.
type CallNode struct {
	functionName string
	functionHash string
	args         Tuple
	kwargs       OrderedMap
	subscript    Tuple
}

// New constructs a root CallNode (empty subscript) with normalized args/kwargs.
func New(functionName, functionHash string, args []any, kwargs map[string]any) CallNode {
	invariant.Precondition(functionName != "", "function name must not be empty")
	invariant.Precondition(functionHash != "", "function hash must not be empty")
	return CallNode{
		functionName: functionName,
		functionHash: functionHash,
		args:         normalizeSlice(args),
		kwargs:       NewOrderedMap(kwargs),
		subscript:    Tuple{},
	}
}

func (c CallNode) FunctionName() string  { return c.functionName }
func (c CallNode) FunctionHash() string  { return c.functionHash }
func (c CallNode) Args() Tuple           { return c.args }
func (c CallNode) Kwargs() OrderedMap    { return c.kwargs }
func (c CallNode) Subscript() Tuple      { return c.subscript }
func (c CallNode) IsIndexed() bool       { return len(c.subscript) > 0 }

// Index returns a new CallNode whose subscript is extended by k (an int or
// string index). The receiver is never mutated — subscript is a fresh slice.
func (c CallNode) Index(k any) CallNode {
	switch k.(type) {
	case int, string:
	default:
		invariant.Precondition(false, "subscript index must be int or string, got %T", k)
	}
	next := make(Tuple, len(c.subscript)+1)
	copy(next, c.subscript)
	next[len(c.subscript)] = k
	c.subscript = next
	return c
}

// String renders a debug form, e.g. fibonacci_number([3])[0].
func (c CallNode) String() string {
	s := fmt.Sprintf("%s(%v", c.functionName, []any(c.args))
	if len(c.kwargs.keys) > 0 {
		s += fmt.Sprintf("; %v", c.kwargs)
	}
	s += ")"
	for _, idx := range c.subscript {
		s += fmt.Sprintf("[%v]", idx)
	}
	return s
}

// Equal is structural equality over all five identity fields, matching §3's
// "Equality and hashing are structural over these fields."
func (c CallNode) Equal(other CallNode) bool {
	return c.Hash() == other.Hash()
}

// Hash computes call_hash (§4.7): the store-key identity of this node.
func (c CallNode) Hash() fingerprint.Hash {
	argsBytes, err := serialization.CanonicalEncode(c.args)
	invariant.ExpectNoError(err, "encoding normalized args")
	kwargsBytes, err := serialization.CanonicalEncode(c.kwargs)
	invariant.ExpectNoError(err, "encoding normalized kwargs")
	subBytes, err := serialization.CanonicalEncode(c.subscript)
	invariant.ExpectNoError(err, "encoding subscript")
	return fingerprint.Call(c.functionName, c.functionHash, subBytes, argsBytes, kwargsBytes)
}

// MarshalCBOR implements cbor.Marshaler by unconditionally refusing to
// encode, which is how serialization.DeepCopy (and any other codec.Marshal
// round trip) realizes "copying a CallNode fails with CopyError" (§3, §8):
// a CallNode embedded inside a constant-block argument to a plain function
// can never be silently cloned into a value whose identity has diverged
// from the graph vertex it names.
func (c CallNode) MarshalCBOR() ([]byte, error) {
	return nil, xerrors.New(xerrors.CopyError,
		"cannot copy CallNode %s: it is a symbolic handle, not a value", c)
}

// DeepCopy always fails; exposed directly so tests and callers can assert
// the CopyError property (spec §8) without going through the general
// serialization package.
func (c CallNode) DeepCopy() (CallNode, error) {
	if _, err := cbor.Marshal(c); err != nil {
		return CallNode{}, err
	}
	// unreachable: MarshalCBOR always errors.
	return c, nil
}

// Tuple is the normalized immutable form of an ordered sequence (spec §3:
// "every ordered sequence collapses to a tuple"). Treated as read-only after
// construction by convention — Go has no way to enforce slice immutability.
type Tuple []any

// OrderedMap is the normalized immutable form of a mapping (spec §3: "every
// mapping to an immutable ordered map"): keys are sorted for determinism so
// two maps built from the same key/value pairs always normalize identically
// regardless of Go's randomized map iteration order.
type OrderedMap struct {
	keys []string
	vals map[string]any
}

func NewOrderedMap(m map[string]any) OrderedMap {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	vals := make(map[string]any, len(m))
	for k, v := range m {
		vals[k] = Normalize(v)
	}
	return OrderedMap{keys: keys, vals: vals}
}

func (o OrderedMap) Keys() []string { return append([]string(nil), o.keys...) }
func (o OrderedMap) Get(k string) (any, bool) {
	v, ok := o.vals[k]
	return v, ok
}
func (o OrderedMap) Len() int { return len(o.keys) }

func (o OrderedMap) String() string {
	s := "{"
	for i, k := range o.keys {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s: %v", k, o.vals[k])
	}
	return s + "}"
}

// orderedMapEntry is the wire form of one OrderedMap entry: a struct (not a
// map) so cbor preserves insertion order instead of re-sorting by its own
// canonical key rules, which would break round-tripping non-string-sortable
// intent and would hide OrderedMap's already-sorted keys behind CBOR's map
// key ordering rules.
type orderedMapEntry struct {
	Key string
	Val any
}

// MarshalCBOR encodes OrderedMap as an ordered list of (key, value) pairs,
// since its keys/vals fields are unexported and would otherwise encode as
// an empty struct under reflection-based marshaling.
func (o OrderedMap) MarshalCBOR() ([]byte, error) {
	entries := make([]orderedMapEntry, len(o.keys))
	for i, k := range o.keys {
		entries[i] = orderedMapEntry{Key: k, Val: o.vals[k]}
	}
	return serialization.CanonicalEncode(entries)
}

// UnmarshalCBOR reverses MarshalCBOR.
func (o *OrderedMap) UnmarshalCBOR(data []byte) error {
	var entries []orderedMapEntry
	if err := serialization.Decode(data, &entries); err != nil {
		return err
	}
	o.keys = make([]string, len(entries))
	o.vals = make(map[string]any, len(entries))
	for i, e := range entries {
		o.keys[i] = e.Key
		o.vals[e.Key] = e.Val
	}
	return nil
}

func normalizeSlice(in []any) Tuple {
	out := make(Tuple, len(in))
	for i, v := range in {
		out[i] = Normalize(v)
	}
	return out
}
