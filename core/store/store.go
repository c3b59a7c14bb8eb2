// Package store implements Store (C3): content-addressed key/value
// persistence with tags and layering (§4.6/§6). A key is always a full
// callnode.CallNode, not a bare hash; backends index internally by the
// node's call_hash.
package store

import (
	"context"
	"sort"
	"strconv"

	"github.com/xunhq/xun/core/callnode"
	"github.com/xunhq/xun/core/fingerprint"
	"github.com/xunhq/xun/core/xerrors"
)

// Store is the C3 interface: contains/store/load/remove/tags/query, with
// the invariants (I1) every present key has a tag record, (I2) removing a
// key removes its tag record, (I3) concurrent stores to the same key
// linearize with last-write-wins visible atomically including tags.
type Store interface {
	Contains(ctx context.Context, key callnode.CallNode) (bool, error)
	Store(ctx context.Context, key callnode.CallNode, value any, tags map[string]string) error
	Load(ctx context.Context, key callnode.CallNode) (any, error)
	Remove(ctx context.Context, key callnode.CallNode) error
	Tags(ctx context.Context, key callnode.CallNode) (map[string]string, error)
	Query(ctx context.Context, conditions []Condition) ([]callnode.CallNode, error)
}

// Op is a tag-query comparison operator (§6 grammar: '=' '>' '>=' '<' '<=').
type Op string

const (
	OpEq  Op = "="
	OpGt  Op = ">"
	OpGte Op = ">="
	OpLt  Op = "<"
	OpLte Op = "<="
)

// Condition is one tag predicate in a query; all conditions in a Query call
// must hold (logical AND) for a key to match.
type Condition struct {
	Tag   string
	Op    Op
	Value string
}

func (c Condition) matches(tagValue string, present bool) bool {
	if !present {
		return false
	}
	if c.Op == OpEq {
		return tagValue == c.Value
	}
	lf, lerr := strconv.ParseFloat(tagValue, 64)
	rf, rerr := strconv.ParseFloat(c.Value, 64)
	var cmp int
	if lerr == nil && rerr == nil {
		switch {
		case lf < rf:
			cmp = -1
		case lf > rf:
			cmp = 1
		}
	} else {
		switch {
		case tagValue < c.Value:
			cmp = -1
		case tagValue > c.Value:
			cmp = 1
		}
	}
	switch c.Op {
	case OpGt:
		return cmp > 0
	case OpGte:
		return cmp >= 0
	case OpLt:
		return cmp < 0
	case OpLte:
		return cmp <= 0
	default:
		return false
	}
}

// entry is the record kept per key: value and tags are written atomically
// together, realizing I1/I3.
type entry struct {
	node  callnode.CallNode
	value any
	tags  map[string]string
}

// CallRuntimeAdapter narrows a Store to the Load(ctx, node) (any, bool,
// error) shape core/callruntime.Store expects, translating the
// NotFound-on-absence contract into a plain boolean so CallRuntime can
// tell "not computed yet" apart from a real backend failure.
type CallRuntimeAdapter struct {
	Store
}

func (a CallRuntimeAdapter) Load(ctx context.Context, node callnode.CallNode) (any, bool, error) {
	v, err := a.Store.Load(ctx, node)
	if err != nil {
		if xerrors.Is(err, xerrors.NotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return v, true, nil
}

// Copy migrates the entries named by keys from src to dst, e.g. seeding a
// disk store from a network store (§12). Keys absent from src are skipped
// rather than failing the whole migration.
func Copy(ctx context.Context, dst, src Store, keys []callnode.CallNode) error {
	for _, k := range keys {
		ok, err := src.Contains(ctx, k)
		if err != nil {
			return xerrors.Wrap(xerrors.ExecutionError, err, "checking source store for %s", k)
		}
		if !ok {
			continue
		}
		v, err := src.Load(ctx, k)
		if err != nil {
			return xerrors.Wrap(xerrors.ExecutionError, err, "loading %s from source store", k)
		}
		tags, err := src.Tags(ctx, k)
		if err != nil {
			return xerrors.Wrap(xerrors.ExecutionError, err, "loading tags for %s from source store", k)
		}
		if err := dst.Store(ctx, k, v, tags); err != nil {
			return xerrors.Wrap(xerrors.ExecutionError, err, "writing %s to destination store", k)
		}
	}
	return nil
}

// sortedKeys is a small helper shared by backends that must return Query
// results in a deterministic order.
func sortedKeys(nodes map[fingerprint.Hash]entry) []fingerprint.Hash {
	out := make([]fingerprint.Hash, 0, len(nodes))
	for h := range nodes {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
