// Package distexec implements the §6 wire protocol a distributed Parallel
// driver uses to coordinate at-most-once execution of a CallNode across
// multiple worker processes: Assign (claim the right to compute a call),
// Await (block until whoever won Assign reports a terminal status), and
// Done (report that status and wake every waiter).
//
// Transport is an interface so the same coordination logic works both
// in-process (Local, for tests and single-binary deployments) and across a
// real bidirectional streaming RPC transport — this package only defines
// the contract and a reference in-process implementation; wiring a real
// network transport (gRPC, or anything else) means implementing Transport
// against it.
package distexec

import (
	"context"

	"github.com/google/uuid"

	"github.com/xunhq/xun/core/fingerprint"
	"github.com/xunhq/xun/core/xerrors"
)

// Status is a call's terminal outcome, reported by the assignment's winner
// via Done and observed by every other caller's Await.
type Status int

const (
	StatusUnknown Status = iota
	StatusDone
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDone:
		return "DONE"
	case StatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// WorkerID identifies the process/goroutine making a request, for tracing
// and RPC correlation — not part of the coordination logic itself, which
// keys everything off the CallNode's fingerprint.
type WorkerID = uuid.UUID

// NewWorkerID mints a random worker identifier.
func NewWorkerID() WorkerID {
	return uuid.New()
}

// Transport is the §6 wire protocol, call_id-keyed:
//
//	Assign(call_id)       -> assigned: bool
//	Await(call_id)        -> status: DONE | FAILED
//	Done(call_id, status) -> (nothing)
//
// Assign's first caller for a given call_id sees assigned=true and must
// eventually call Done exactly once; every subsequent caller for the same
// call_id sees assigned=false and must call Await instead.
type Transport interface {
	Assign(ctx context.Context, callID fingerprint.Hash, worker WorkerID) (assigned bool, err error)
	Await(ctx context.Context, callID fingerprint.Hash) (Status, error)
	Done(ctx context.Context, callID fingerprint.Hash, worker WorkerID, status Status) error
}

// Claim runs the Assign/compute-or-wait/Done dance around fn, which
// computes the call's value exactly once across every caller racing on
// callID: the Assign winner actually calls fn, every other caller Awaits
// the winner's Done and returns without invoking fn at all.
//
// fn's error becomes StatusFailed when reported via Done, and is returned
// to the winner directly; a loser observing StatusFailed gets an
// ExecutionError describing that another worker's attempt failed.
func Claim(ctx context.Context, t Transport, callID fingerprint.Hash, fn func(context.Context) error) error {
	worker := NewWorkerID()

	assigned, err := t.Assign(ctx, callID, worker)
	if err != nil {
		return xerrors.Wrap(xerrors.ExecutionError, err, "assigning call %s", callID)
	}

	if !assigned {
		status, err := t.Await(ctx, callID)
		if err != nil {
			return xerrors.Wrap(xerrors.ExecutionError, err, "awaiting call %s", callID)
		}
		if status == StatusFailed {
			return xerrors.New(xerrors.ExecutionError, "call %s was assigned to another worker and failed there", callID)
		}
		return nil
	}

	runErr := fn(ctx)
	status := StatusDone
	if runErr != nil {
		status = StatusFailed
	}
	if err := t.Done(ctx, callID, worker, status); err != nil {
		return xerrors.Wrap(xerrors.ExecutionError, err, "reporting completion of call %s", callID)
	}
	return runErr
}
