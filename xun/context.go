package xun

import (
	"context"

	"github.com/xunhq/xun/core/invariant"
	"github.com/xunhq/xun/core/xerrors"
)

// GraphRecorder is implemented by core/graphbuilder (C5). In graph-building
// mode, every Call/CallKw inside a constant block is recorded rather than
// resolved to a value, so the function's local dependency graph can be
// built without running any real work.
type GraphRecorder interface {
	Record(functionName string, args []any, kwargs map[string]any)
}

// Resolver is implemented by core/callruntime (C8). In task-execution mode,
// Call/CallKw looks up the already-computed result of a dependency call
// (placed in the Store by an earlier step of the driver's run) instead of
// invoking anything.
type Resolver interface {
	Resolve(functionName string, args []any, kwargs map[string]any) (any, error)
}

type mode int

const (
	modeGraph mode = iota
	modeTask
)

// Context is the single argument threaded through a xun function's body
// (§9). The same compiled closure runs twice — once per pass — and Context
// is what tells Call/CallKw which pass this is: modeGraph never executes
// real work and only records shape; modeTask resolves already-computed
// values out of the store via Resolver.
type Context struct {
	base     context.Context
	mode     mode
	recorder GraphRecorder
	resolver Resolver
}

// NewGraphContext builds a Context for the graph-building pass.
func NewGraphContext(base context.Context, recorder GraphRecorder) *Context {
	invariant.NotNil(recorder, "recorder")
	return &Context{base: base, mode: modeGraph, recorder: recorder}
}

// NewTaskContext builds a Context for the task-execution pass.
func NewTaskContext(base context.Context, resolver Resolver) *Context {
	invariant.NotNil(resolver, "resolver")
	return &Context{base: base, mode: modeTask, resolver: resolver}
}

// Context returns the underlying standard context, for cancellation checks
// a user's non-xun code may want to honor.
func (c *Context) Context() context.Context {
	if c == nil || c.base == nil {
		return context.Background()
	}
	return c.base
}

// IsGraphMode reports whether c is running the graph-building pass.
func (c *Context) IsGraphMode() bool {
	return c != nil && c.mode == modeGraph
}

// callFailure is the panic payload Call/CallKw raise on a dependency
// failure. There is no other channel to abort an arbitrary Go expression
// mid-evaluation (`a + Call[int](...)` can't return an error), so failure
// propagates the same way encoding/json's Encoder propagates an internal
// error: panic with a private sentinel type, recovered at the boundary
// where the function's own (any, error) return can carry it out cleanly.
type callFailure struct{ err error }

// Call records or resolves a call to the xun function registered as name,
// with positional args only. name must be a string literal at the call
// site — core/procparser locates dependency calls by reading it directly
// out of the AST, not by evaluating arbitrary Go expressions.
func Call[T any](ctx *Context, name string, args ...any) T {
	return CallKw[T](ctx, name, nil, args...)
}

// CallKw is Call with keyword arguments. In graph mode it returns T's zero
// value — the graph-building pass never needs a real result, only the
// CallNode the recorder builds as a side effect. In task mode it resolves
// the dependency's already-computed value and asserts/coerces it to T.
func CallKw[T any](ctx *Context, name string, kwargs map[string]any, args ...any) T {
	invariant.NotNil(ctx, "ctx")

	var zero T
	if ctx.mode == modeGraph {
		ctx.recorder.Record(name, args, kwargs)
		return zero
	}

	v, err := ctx.resolver.Resolve(name, args, kwargs)
	if err != nil {
		panic(callFailure{err})
	}
	out, ok := v.(T)
	if ok {
		return out
	}
	coerced, ok := coerce[T](v)
	if !ok {
		panic(callFailure{xerrors.New(xerrors.ExecutionError, "result of %s is %T, want %T", name, v, zero)})
	}
	return coerced
}

// coerce handles the narrowing conversions CBOR round trips need: every
// decoded integer is int64 (decMode's IntDec setting, core/serialization)
// and every decoded float is float64, so a user expecting `int`, `int32`
// or `float32` from a call result needs that narrowed back.
func coerce[T any](v any) (T, bool) {
	var zero T
	switch any(zero).(type) {
	case int:
		if n, ok := v.(int64); ok {
			return any(int(n)).(T), true
		}
	case int32:
		if n, ok := v.(int64); ok {
			return any(int32(n)).(T), true
		}
	case float32:
		if f, ok := v.(float64); ok {
			return any(float32(f)).(T), true
		}
	}
	return zero, false
}

// Invoke runs fn under ctx, converting a Call/CallKw failure panic into a
// plain error instead of letting it escape as a runtime panic. Both
// core/graphbuilder and core/callruntime invoke registered functions
// through this, never by calling Entry.Fn directly.
func Invoke(ctx *Context, fn Func, args ...any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			if cf, ok := r.(callFailure); ok {
				err = cf.err
				return
			}
			panic(r)
		}
	}()
	return fn(ctx, args...)
}
