// Package executor implements Driver (C7): given a Blueprint (core/blueprint)
// and a Store (core/store), it runs every CallNode the Blueprint names in an
// order that respects the Edges dependency relation, committing each node's
// result to Store before any of its dependents are attempted, and finally
// returns the root node's value (§4.4).
//
// Two drivers are provided. Sequential runs nodes one at a time in a fixed,
// deterministic order — useful for debugging and for the CLI's default
// mode. Parallel runs independent nodes concurrently across a worker pool,
// honoring per-function resource quotas declared with xun.DeclareResources
// (§12's supplemented worker-width feature).
package executor

import (
	"context"
	"sort"

	"github.com/xunhq/xun/core/blueprint"
	"github.com/xunhq/xun/core/callnode"
	"github.com/xunhq/xun/core/callruntime"
	"github.com/xunhq/xun/core/fingerprint"
	"github.com/xunhq/xun/core/store"
	"github.com/xunhq/xun/core/xerrors"
)

// Driver runs a fully-composed Blueprint to completion against a Store and
// returns the root call's value.
type Driver interface {
	Run(ctx context.Context, bp *blueprint.Blueprint, st store.Store) (any, error)
}

// adjacency returns, for a Blueprint, each node's remaining dependency
// count (inDegree, counting children it still needs computed) and the
// reverse edge (parentsOf: who becomes more-ready once this node is done).
// Blueprint.Edges maps a node to its dependencies (children), so execution
// must proceed in the opposite direction: a node is ready only once every
// child it depends on already has a Store entry.
func adjacency(bp *blueprint.Blueprint) (inDegree map[fingerprint.Hash]int, parentsOf map[fingerprint.Hash][]fingerprint.Hash) {
	inDegree = make(map[fingerprint.Hash]int, len(bp.Nodes))
	parentsOf = make(map[fingerprint.Hash][]fingerprint.Hash, len(bp.Nodes))
	for h := range bp.Nodes {
		inDegree[h] = len(bp.Edges[h])
	}
	for parent, children := range bp.Edges {
		for _, child := range children {
			parentsOf[child] = append(parentsOf[child], parent)
		}
	}
	return inDegree, parentsOf
}

// insertSorted inserts h into a slice kept sorted by its call-fingerprint
// string, the "lexicographic on call fingerprint" tie-break both drivers
// use whenever more than one node is ready at once (§8 determinism).
func insertSorted(sorted []fingerprint.Hash, h fingerprint.Hash) []fingerprint.Hash {
	i := sort.Search(len(sorted), func(i int) bool { return sorted[i].String() >= h.String() })
	sorted = append(sorted, fingerprint.Hash{})
	copy(sorted[i+1:], sorted[i:])
	sorted[i] = h
	return sorted
}

// initialReady returns every zero-inDegree node, sorted by fingerprint.
func initialReady(inDegree map[fingerprint.Hash]int) []fingerprint.Hash {
	var ready []fingerprint.Hash
	for h, d := range inDegree {
		if d == 0 {
			ready = insertSorted(ready, h)
		}
	}
	return ready
}

// hashLookup adapts a Blueprint's discovered function images to the
// FunctionHash shape core/callruntime needs to build dependency CallNodes.
func hashLookup(bp *blueprint.Blueprint) callruntime.FunctionHash {
	return func(name string) (string, error) {
		fi, ok := bp.Functions[name]
		if !ok {
			return "", xerrors.New(xerrors.NotFound, "function %q is not part of this blueprint", name)
		}
		return fi.FunctionHash, nil
	}
}

// commitIfNeeded executes node through rt and stores its result, unless st
// already holds a value for node (a cache hit from a prior run, §8 scenario
// 5) in which case it does nothing.
func commitIfNeeded(ctx context.Context, rt *callruntime.Runtime, st store.Store, node callnode.CallNode) error {
	ok, err := st.Contains(ctx, node)
	if err != nil {
		return xerrors.Wrap(xerrors.ExecutionError, err, "checking store for %s", node)
	}
	if ok {
		return nil
	}
	v, err := rt.Execute(ctx, node)
	if err != nil {
		return err
	}
	return st.Store(ctx, node, v, nil)
}
