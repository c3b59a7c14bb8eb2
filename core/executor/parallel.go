package executor

import (
	"context"
	"sync"
	"time"

	"github.com/xunhq/xun/core/blueprint"
	"github.com/xunhq/xun/core/callnode"
	"github.com/xunhq/xun/core/callruntime"
	"github.com/xunhq/xun/core/fingerprint"
	"github.com/xunhq/xun/core/invariant"
	"github.com/xunhq/xun/core/store"
	"github.com/xunhq/xun/core/xerrors"
	"github.com/xunhq/xun/xun"
)

// Parallel runs a Blueprint's independent nodes concurrently across a fixed
// worker pool, honoring per-function resource quotas declared with
// xun.DeclareResources (§12's supplemented worker-width feature, §5
// concurrency model).
//
// On the first node failure, Parallel stops dispatching any further ready
// node but lets already-dispatched nodes finish (§4.4's "drain in-flight,
// don't cancel in-flight" rule) before returning the first error observed.
// A non-zero Timeout behaves the same way once it expires.
type Parallel struct {
	Width     int
	Resources map[string]int // pool capacity per declared resource name
	Timeout   time.Duration
}

// NewParallel constructs a Parallel driver with width concurrent workers
// and the given resource pool capacities (e.g. {"GPU": 2}). A zero or
// negative timeout means no run deadline.
func NewParallel(width int, resources map[string]int, timeout time.Duration) *Parallel {
	if width < 1 {
		width = 1
	}
	return &Parallel{Width: width, Resources: resources, Timeout: timeout}
}

type nodeResult struct {
	hash fingerprint.Hash
	err  error
}

// Run implements Driver.
func (p *Parallel) Run(ctx context.Context, bp *blueprint.Blueprint, st store.Store) (any, error) {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	if err := p.validateResourcePools(bp); err != nil {
		return nil, err
	}

	sems := buildSemaphores(p.Resources)
	inDegree, parentsOf := adjacency(bp)
	ready := initialReady(inDegree)

	rt := callruntime.New(store.CallRuntimeAdapter{Store: st}, hashLookup(bp))
	results := make(chan nodeResult)

	var firstErr error
	inFlight := 0
	pending := len(bp.Nodes)

	for pending > 0 {
		for firstErr == nil && len(ready) > 0 && inFlight < p.Width {
			h := ready[0]
			ready = ready[1:]
			inFlight++
			node := bp.Nodes[h]
			go func(h fingerprint.Hash, node callnode.CallNode) {
				results <- nodeResult{hash: h, err: dispatch(ctx, rt, st, node, sems)}
			}(h, node)
		}

		if inFlight == 0 {
			// Nothing running and nothing left to dispatch: either the
			// graph is exhausted (pending should already be 0) or a prior
			// error halted further dispatch while some ready nodes were
			// never started. Either way there is nothing left to wait on.
			break
		}

		res := <-results
		inFlight--
		pending--

		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		if firstErr != nil {
			// A node that was already in flight when the failure happened
			// finished cleanly, but its successors must not be promoted:
			// no further work starts once an error has been observed.
			continue
		}
		for _, parent := range parentsOf[res.hash] {
			inDegree[parent]--
			invariant.Invariant(inDegree[parent] >= 0, "dispatch loop: indegree of %s went negative", parent)
			if inDegree[parent] == 0 {
				ready = insertSorted(ready, parent)
			}
		}
	}

	if firstErr != nil {
		return nil, firstErr
	}
	return st.Load(ctx, bp.Root)
}

// dispatch acquires node's declared resource tokens, executes it, and
// commits its result, releasing the tokens regardless of outcome.
func dispatch(ctx context.Context, rt *callruntime.Runtime, st store.Store, node callnode.CallNode, sems map[string]chan struct{}) error {
	if err := ctx.Err(); err != nil {
		return xerrors.Wrap(xerrors.ContextError, err, "run cancelled before %s", node)
	}

	acquired, err := acquireResources(ctx, node, sems)
	if err != nil {
		return err
	}
	defer releaseResources(sems, acquired)

	return commitIfNeeded(ctx, rt, st, node)
}

// acquireResources blocks until every unit of every resource node's
// registered function declares is available, or ctx is done first.
// acquired records one entry per unit successfully taken, in acquisition
// order, so releaseResources can give them all back on any exit path.
// Acquisitions are taken one call at a time (acquireMu), so two calls that
// each need every unit of a pool never hold part of it while waiting on
// each other.
func acquireResources(ctx context.Context, node callnode.CallNode, sems map[string]chan struct{}) ([]string, error) {
	entry, ok := xun.Lookup(node.FunctionName())
	if !ok || len(entry.Resources) == 0 {
		return nil, nil
	}
	acquireMu.Lock()
	defer acquireMu.Unlock()
	var acquired []string
	for name, units := range entry.Resources {
		ch := sems[name]
		for i := 0; i < units; i++ {
			select {
			case ch <- struct{}{}:
				acquired = append(acquired, name)
			case <-ctx.Done():
				releaseResources(sems, acquired)
				return nil, xerrors.Wrap(xerrors.ContextError, ctx.Err(), "acquiring resource %q for %s", name, node)
			}
		}
	}
	return acquired, nil
}

var acquireMu sync.Mutex

func releaseResources(sems map[string]chan struct{}, acquired []string) {
	for _, name := range acquired {
		<-sems[name]
	}
}

// buildSemaphores allocates one buffered channel per declared resource
// pool; channel capacity is the pool's quota, and each unit of use is one
// send/receive pair, so a function declaring 2 units of a 2-unit pool
// forces full serialization between calls that both need it (§8 scenario
// 4: resource adherence).
func buildSemaphores(resources map[string]int) map[string]chan struct{} {
	sems := make(map[string]chan struct{}, len(resources))
	for name, capacity := range resources {
		sems[name] = make(chan struct{}, capacity)
	}
	return sems
}

// validateResourcePools fails fast, before any node runs, if a function
// reachable from the Blueprint's root declares a resource name with no
// configured pool — dispatching it would otherwise block forever waiting
// on a semaphore that never receives capacity.
func (p *Parallel) validateResourcePools(bp *blueprint.Blueprint) error {
	for name := range bp.Functions {
		entry, ok := xun.Lookup(name)
		if !ok {
			continue
		}
		for resource := range entry.Resources {
			if _, ok := p.Resources[resource]; !ok {
				return xerrors.New(xerrors.ResourceExhausted,
					"function %q declares resource %q but no pool of that name was configured for this driver", name, resource)
			}
		}
	}
	return nil
}
