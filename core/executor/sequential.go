package executor

import (
	"context"

	"github.com/xunhq/xun/core/blueprint"
	"github.com/xunhq/xun/core/callruntime"
	"github.com/xunhq/xun/core/fingerprint"
	"github.com/xunhq/xun/core/invariant"
	"github.com/xunhq/xun/core/store"
	"github.com/xunhq/xun/core/xerrors"
)

// Sequential runs a Blueprint's nodes one at a time in topological order,
// breaking ties between simultaneously-ready nodes lexicographically on
// their call fingerprint so two runs over the same Blueprint always visit
// nodes in the same order (§8).
type Sequential struct{}

// NewSequential constructs a Sequential driver.
func NewSequential() *Sequential {
	return &Sequential{}
}

// Run implements Driver.
func (s *Sequential) Run(ctx context.Context, bp *blueprint.Blueprint, st store.Store) (any, error) {
	order, err := topoOrder(bp)
	if err != nil {
		return nil, err
	}

	rt := callruntime.New(store.CallRuntimeAdapter{Store: st}, hashLookup(bp))

	for _, h := range order {
		if err := ctx.Err(); err != nil {
			return nil, xerrors.Wrap(xerrors.ContextError, err, "run cancelled before %s", bp.Nodes[h])
		}
		if err := commitIfNeeded(ctx, rt, st, bp.Nodes[h]); err != nil {
			return nil, err
		}
	}

	return st.Load(ctx, bp.Root)
}

// topoOrder produces a full, deterministic topological ordering of bp's
// nodes via Kahn's algorithm, picking the lexicographically smallest
// fingerprint among equally-ready nodes at each step.
func topoOrder(bp *blueprint.Blueprint) ([]fingerprint.Hash, error) {
	inDegree, parentsOf := adjacency(bp)
	ready := initialReady(inDegree)

	order := make([]fingerprint.Hash, 0, len(bp.Nodes))
	for len(ready) > 0 {
		h := ready[0]
		ready = ready[1:]
		order = append(order, h)

		for _, p := range parentsOf[h] {
			inDegree[p]--
			invariant.Invariant(inDegree[p] >= 0, "topoOrder: indegree of %s went negative", p)
			if inDegree[p] == 0 {
				ready = insertSorted(ready, p)
			}
		}
	}

	if len(order) != len(bp.Nodes) {
		return nil, xerrors.New(xerrors.NotDAG, "call graph is not a DAG: %d of %d nodes are reachable via topological order", len(order), len(bp.Nodes))
	}
	return order, nil
}
