// Package callruntime implements CallRuntime (C8): given a CallNode whose
// direct dependencies have already been computed and stored by a Driver
// (core/executor), it invokes the node's registered xun function in task
// mode (§9 "task mode"), resolving the function's own Call/CallKw
// dependency calls against Store rather than re-running them, applies
// subscript indexing for indexed CallNodes, and normalizes and copies the
// result per the pass-by-value discipline (§4.1, §4.5).
package callruntime

import (
	"context"

	"github.com/xunhq/xun/core/callnode"
	"github.com/xunhq/xun/core/invariant"
	"github.com/xunhq/xun/core/serialization"
	"github.com/xunhq/xun/core/xerrors"
	"github.com/xunhq/xun/xun"
)

// Store is the subset of core/store's Store interface CallRuntime needs: a
// way to read an already-computed dependency's value by its CallNode. The
// bool result distinguishes "not computed yet" (the common case while a
// Driver is still working through the DAG) from a hard backend error.
type Store interface {
	Load(ctx context.Context, node callnode.CallNode) (any, bool, error)
}

// FunctionHash resolves a registered xun function's name to its current
// function_hash, the same lookup core/graphbuilder uses to build CallNodes
// for the calls a function's body makes.
type FunctionHash func(name string) (string, error)

// Runtime executes CallNodes' task-mode pass.
type Runtime struct {
	store Store
	hash  FunctionHash
}

// New constructs a Runtime backed by store, resolving dependency function
// hashes via hash.
func New(store Store, hash FunctionHash) *Runtime {
	invariant.NotNil(store, "store")
	invariant.NotNil(hash, "hash")
	return &Runtime{store: store, hash: hash}
}

// Execute runs node's registered function to completion and returns its
// normalized, deep-copied result. If node is indexed (node.IsIndexed()),
// the base (unindexed) call is executed and the result is subscripted
// in-process — a subscript never changes which function runs, only which
// part of its result is returned, so there is nothing to re-invoke.
func (r *Runtime) Execute(ctx context.Context, node callnode.CallNode) (any, error) {
	base := node
	if node.IsIndexed() {
		base = callnode.New(node.FunctionName(), node.FunctionHash(), []any(node.Args()), kwargsToMap(node.Kwargs()))
	}

	entry, ok := xun.Lookup(base.FunctionName())
	if !ok {
		return nil, xerrors.New(xerrors.NotFound, "no registered xun function %q", base.FunctionName())
	}

	args, err := copyTuple(base.Args())
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CopyError, err, "copying arguments for %s", base)
	}

	resolver := &storeResolver{ctx: ctx, store: r.store, hash: r.hash, caller: base}
	tctx := xun.NewTaskContext(ctx, resolver)

	result, err := xun.Invoke(tctx, entry.Fn, args...)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.ExecutionError, err, "executing %s", base)
	}

	normalized := callnode.Normalize(result)
	copied, err := serialization.DeepCopy(normalized)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CopyError, err, "copying result of %s", base)
	}
	// DeepCopy round-trips through a generic any decode, which loses the
	// Tuple/OrderedMap concrete types (they decode back as []any/map[string]any
	// since interface-typed decoding isn't type-aware). Re-normalizing
	// restores them so indexInto and downstream Store round trips see the
	// same hashable domain the value started in.
	copied = callnode.Normalize(copied)

	if !node.IsIndexed() {
		return copied, nil
	}
	return indexInto(copied, node.Subscript())
}

// storeResolver implements xun.Resolver by translating a task-mode Call
// back into the CallNode hash a Driver already computed and stored for
// that dependency — the same (function_hash, args, kwargs) identity
// GraphBuilder used to discover it in the first place.
type storeResolver struct {
	ctx    context.Context
	store  Store
	hash   FunctionHash
	caller callnode.CallNode
}

func (s *storeResolver) Resolve(functionName string, args []any, kwargs map[string]any) (any, error) {
	fh, err := s.hash(functionName)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.NotFound, err, "resolving function_hash for %s", functionName)
	}
	dep := callnode.New(functionName, fh, args, kwargs)
	v, ok, err := s.store.Load(s.ctx, dep)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.ExecutionError, err, "loading dependency %s of %s", dep, s.caller)
	}
	if !ok {
		return nil, xerrors.New(xerrors.NotFound,
			"dependency %s of %s has not been computed yet — the driver must resolve it before executing the caller", dep, s.caller)
	}
	cp, err := serialization.DeepCopy(v)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CopyError, err, "copying dependency %s of %s", dep, s.caller)
	}
	return callnode.Normalize(cp), nil
}

func kwargsToMap(om callnode.OrderedMap) map[string]any {
	out := make(map[string]any, om.Len())
	for _, k := range om.Keys() {
		v, _ := om.Get(k)
		out[k] = v
	}
	return out
}

func copyTuple(t callnode.Tuple) ([]any, error) {
	out := make([]any, len(t))
	for i, v := range t {
		cp, err := serialization.DeepCopy(v)
		if err != nil {
			return nil, err
		}
		out[i] = callnode.Normalize(cp)
	}
	return out, nil
}

// indexInto walks subscript over v, indexing into a Tuple by int position
// or an OrderedMap by string key at each step (§3's shape-tuple indexing).
func indexInto(v any, subscript callnode.Tuple) (any, error) {
	cur := v
	for _, raw := range subscript {
		switch idx := raw.(type) {
		case int:
			seq, ok := cur.(callnode.Tuple)
			if !ok {
				return nil, xerrors.New(xerrors.ExecutionError, "cannot index non-sequence value (type %T) with position %d", cur, idx)
			}
			if idx < 0 || idx >= len(seq) {
				return nil, xerrors.New(xerrors.ExecutionError, "index %d out of range for sequence of length %d", idx, len(seq))
			}
			cur = seq[idx]
		case string:
			m, ok := cur.(callnode.OrderedMap)
			if !ok {
				return nil, xerrors.New(xerrors.ExecutionError, "cannot index non-mapping value (type %T) with key %q", cur, idx)
			}
			val, found := m.Get(idx)
			if !found {
				return nil, xerrors.New(xerrors.NotFound, "key %q not found in mapping", idx)
			}
			cur = val
		default:
			return nil, xerrors.New(xerrors.ExecutionError, "unsupported subscript element type %T", raw)
		}
	}
	return cur, nil
}
