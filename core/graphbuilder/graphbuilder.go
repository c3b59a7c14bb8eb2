// Package graphbuilder implements GraphBuilder (C5): given a CallNode c
// naming function f, it runs f's graph-building pass (§9's "graph mode")
// and turns the calls f makes into other xun functions into f's direct
// dependency CallNodes.
//
// Running the same compiled closure twice (§9's Go realization) means a
// xun function's constant block must already be written in an order its
// own Go statements can execute correctly in — the statement reordering
// the distilled spec's source language performs dynamically has no
// analogue here, since Go has no facility to re-run a closure's
// statements out of lexical order. ProcedureParser's topological sort
// (core/procparser) therefore serves NotDAG detection and deterministic
// Dependencies enumeration only; it is not used to reorder execution.
// Authors are expected to write Const blocks in dependency-respecting
// lexical order, exactly as ordinary Go requires for reading a variable
// after it's assigned. This adaptation is recorded in DESIGN.md.
package graphbuilder

import (
	"context"
	"sync"

	"github.com/xunhq/xun/core/callnode"
	"github.com/xunhq/xun/core/invariant"
	"github.com/xunhq/xun/core/procparser"
	"github.com/xunhq/xun/core/xerrors"
	"github.com/xunhq/xun/xun"
)

// FunctionHash resolves a registered xun function's name to its current
// function_hash (owned by core/blueprint, which computes it from
// source_hash plus the hashes of statically discovered dependencies).
type FunctionHash func(name string) (string, error)

// Graph is one function call's direct dependency graph: Root is the
// CallNode that was expanded, Children are its direct dependency
// CallNodes in the order their Const statements bind.
type Graph struct {
	Root     callnode.CallNode
	Children []callnode.CallNode
}

// Builder runs the graph-building pass for CallNodes, caching each
// function's parsed source so a function invoked many times across a
// Blueprint is only parsed once.
type Builder struct {
	hash FunctionHash

	mu     sync.Mutex
	parsed map[string]*procparser.Parsed
}

// New constructs a Builder that resolves function hashes via hash.
func New(hash FunctionHash) *Builder {
	invariant.NotNil(hash, "hash")
	return &Builder{hash: hash, parsed: map[string]*procparser.Parsed{}}
}

// Build expands node into its direct dependency graph.
func (b *Builder) Build(ctx context.Context, node callnode.CallNode) (*Graph, error) {
	entry, ok := xun.Lookup(node.FunctionName())
	if !ok {
		return nil, xerrors.New(xerrors.NotFound, "no registered xun function %q", node.FunctionName())
	}

	parsed, err := b.parseOf(entry)
	if err != nil {
		return nil, err
	}

	if len(parsed.Constants) == 0 {
		return &Graph{Root: node}, nil
	}

	rec := &recorder{}
	gctx := xun.NewGraphContext(ctx, rec)
	args := append([]any(nil), []any(node.Args())...)
	if _, err := xun.Invoke(gctx, entry.Fn, args...); err != nil {
		return nil, xerrors.Wrap(xerrors.ExecutionError, err, "graph-building pass for %s", node.FunctionName())
	}

	// A function may return before ever reaching its Const block (the base
	// case of a recursive function guarded by an early return, e.g.
	// fibonacci_number(0)). That run traces zero calls legitimately — it
	// is not a dependency-order violation, just a root with no children —
	// so the parse-time-vs-runtime count check only applies once the block
	// is known to have actually run.
	if len(rec.calls) == 0 {
		return &Graph{Root: node}, nil
	}

	var callStmts []procparser.ConstStatement
	for _, c := range parsed.Constants {
		if c.IsXunCall {
			callStmts = append(callStmts, c)
		}
	}
	if len(callStmts) != len(rec.calls) {
		return nil, xerrors.New(xerrors.InvalidProcedure,
			"%s: constant block traced %d calls at parse time but %d at runtime — Const statements must be written in dependency order",
			node.FunctionName(), len(callStmts), len(rec.calls))
	}

	children := make([]callnode.CallNode, len(rec.calls))
	for i, rc := range rec.calls {
		fh, err := b.hash(rc.name)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.NotFound, err, "resolving function_hash for %s", rc.name)
		}
		children[i] = callnode.New(rc.name, fh, rc.args, rc.kwargs)
	}

	return &Graph{Root: node, Children: children}, nil
}

func (b *Builder) parseOf(entry xun.Entry) (*procparser.Parsed, error) {
	b.mu.Lock()
	if p, ok := b.parsed[entry.Name]; ok {
		b.mu.Unlock()
		return p, nil
	}
	b.mu.Unlock()

	parsed, err := ParseEntry(entry)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.parsed[entry.Name] = parsed
	b.mu.Unlock()
	return parsed, nil
}

// ParseEntry reads and statically analyzes a registered function's source.
// Exported so core/blueprint's function-discovery BFS can parse every
// reachable function once, ahead of any graph-building pass, to compute
// function hashes before a single CallNode is built.
func ParseEntry(entry xun.Entry) (*procparser.Parsed, error) {
	source, err := xun.SourceText(entry)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.InvalidProcedure, err, "reading source for %s", entry.Name)
	}
	return procparser.ParseSource(source, entry.Name, entry.GoName, entry.File, xun.RegistryView)
}

type recordedCall struct {
	name   string
	args   []any
	kwargs map[string]any
}

type recorder struct {
	calls []recordedCall
}

func (r *recorder) Record(functionName string, args []any, kwargs map[string]any) {
	r.calls = append(r.calls, recordedCall{name: functionName, args: args, kwargs: kwargs})
}
