package distexec

import (
	"context"
	"sync"

	"github.com/xunhq/xun/core/fingerprint"
	"github.com/xunhq/xun/core/xerrors"
)

// Local is an in-process Transport: a reference implementation for tests
// and single-binary deployments, and the model every real network
// transport's server-side state machine should match.
//
// An assignment record is kept forever once created, matching the
// "idempotence of re-run" property (§8): a call_id that already completed
// in a prior run still answers Assign with false and Await with its
// original terminal status, so a second run never re-executes it.
type Local struct {
	mu    sync.Mutex
	calls map[fingerprint.Hash]*assignment
}

type assignment struct {
	winner WorkerID
	done   chan struct{}
	status Status
	closed bool
}

// NewLocal constructs an empty Local transport.
func NewLocal() *Local {
	return &Local{calls: map[fingerprint.Hash]*assignment{}}
}

// Assign implements Transport.
func (l *Local) Assign(ctx context.Context, callID fingerprint.Hash, worker WorkerID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.calls[callID]; exists {
		return false, nil
	}
	l.calls[callID] = &assignment{winner: worker, done: make(chan struct{})}
	return true, nil
}

// Await implements Transport.
func (l *Local) Await(ctx context.Context, callID fingerprint.Hash) (Status, error) {
	l.mu.Lock()
	a, ok := l.calls[callID]
	l.mu.Unlock()
	if !ok {
		return StatusUnknown, xerrors.New(xerrors.NotFound, "no assignment for call %s — Assign must be called before Await", callID)
	}

	select {
	case <-a.done:
		l.mu.Lock()
		status := a.status
		l.mu.Unlock()
		return status, nil
	case <-ctx.Done():
		return StatusUnknown, xerrors.Wrap(xerrors.ContextError, ctx.Err(), "awaiting call %s", callID)
	}
}

// Done implements Transport. Only the worker that won Assign for callID
// may call it, and only once.
func (l *Local) Done(ctx context.Context, callID fingerprint.Hash, worker WorkerID, status Status) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.calls[callID]
	if !ok {
		return xerrors.New(xerrors.NotFound, "no assignment for call %s — Assign must be called before Done", callID)
	}
	if a.winner != worker {
		return xerrors.New(xerrors.InvalidProcedure, "call %s was assigned to a different worker", callID)
	}
	if a.closed {
		return xerrors.New(xerrors.InvalidProcedure, "call %s was already reported Done", callID)
	}
	a.status = status
	a.closed = true
	close(a.done)
	return nil
}
