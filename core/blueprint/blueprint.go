// Package blueprint implements BlueprintPlanner (C6): it discovers every
// xun function reachable from an entry point, computes each one's
// function_hash, and then composes a single root CallNode into the full
// Blueprint — the DAG of CallNodes a Driver (core/executor) runs (§4.3).
package blueprint

import (
	"context"
	"sort"
	"sync"

	"github.com/xunhq/xun/core/callnode"
	"github.com/xunhq/xun/core/fingerprint"
	"github.com/xunhq/xun/core/graphbuilder"
	"github.com/xunhq/xun/core/invariant"
	"github.com/xunhq/xun/core/procparser"
	"github.com/xunhq/xun/core/xerrors"
	"github.com/xunhq/xun/xun"
)

// FunctionImage is one discovered function's identity and hash.
type FunctionImage struct {
	Name          string
	GoName        string
	ModulePath    string
	SourceHash    string
	FunctionHash  string
	Dependencies  []string
	SelfRecursive bool
	InCycle       bool // member of a non-trivial strongly connected component
}

// Blueprint is the fully composed call graph for one entry-point
// invocation: every CallNode reachable from Root, and the dependency
// edges among them.
type Blueprint struct {
	Root      callnode.CallNode
	Nodes     map[fingerprint.Hash]callnode.CallNode
	Edges     map[fingerprint.Hash][]fingerprint.Hash
	Functions map[string]FunctionImage
}

// Planner discovers functions, hashes them, and composes blueprints.
// A Planner is safe for concurrent Plan calls; its function-hash cache is
// shared because a function's hash never changes once computed for a
// given registered source.
type Planner struct {
	mu        sync.Mutex
	functions map[string]FunctionImage
}

// New constructs a Planner with an empty function-hash cache.
func New() *Planner {
	return &Planner{functions: map[string]FunctionImage{}}
}

// Plan discovers every function reachable from rootName, hashes them all,
// builds the root CallNode, and composes the full Blueprint.
func (p *Planner) Plan(ctx context.Context, rootName string, args []any, kwargs map[string]any) (*Blueprint, error) {
	if _, ok := xun.Lookup(rootName); !ok {
		return nil, xerrors.New(xerrors.NotFound, "no registered xun function %q", rootName)
	}

	parsedByName, order, err := discoverAndOrder(rootName)
	if err != nil {
		return nil, err
	}

	if err := p.hashFunctions(parsedByName, order); err != nil {
		return nil, err
	}

	root := callnode.New(rootName, p.functions[rootName].FunctionHash, args, kwargs)

	builder := graphbuilder.New(func(name string) (string, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		fi, ok := p.functions[name]
		if !ok {
			return "", xerrors.New(xerrors.NotFound, "function %q was not discovered during planning", name)
		}
		return fi.FunctionHash, nil
	})

	nodes := map[fingerprint.Hash]callnode.CallNode{root.Hash(): root}
	edges := map[fingerprint.Hash][]fingerprint.Hash{}
	frontier := []callnode.CallNode{root}

	for len(frontier) > 0 {
		c := frontier[0]
		frontier = frontier[1:]

		g, err := builder.Build(ctx, c)
		if err != nil {
			return nil, err
		}
		h := c.Hash()
		children := make([]fingerprint.Hash, 0, len(g.Children))
		for _, child := range g.Children {
			ch := child.Hash()
			children = append(children, ch)
			if _, seen := nodes[ch]; !seen {
				nodes[ch] = child
				frontier = append(frontier, child)
			}
		}
		edges[h] = children
	}

	funcs := make(map[string]FunctionImage, len(p.functions))
	p.mu.Lock()
	for k, v := range p.functions {
		funcs[k] = v
	}
	p.mu.Unlock()

	return &Blueprint{Root: root, Nodes: nodes, Edges: edges, Functions: funcs}, nil
}

// discoverAndOrder runs the function-discovery BFS (§4.3) from rootName
// over procparser.Parsed.Dependencies, then returns the discovered
// functions' parse results together with a hashing order: a topological
// order of the condensation of the function-call graph (cycles collapsed
// to a single unit), so every function's dependencies are hashed before
// the function itself, except within a cycle where nothing can be
// ordered meaningfully.
func discoverAndOrder(rootName string) (map[string]*procparser.Parsed, []string, error) {
	parsedByName := map[string]*procparser.Parsed{}
	queue := []string{rootName}
	seen := map[string]bool{rootName: true}

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]

		entry, ok := xun.Lookup(name)
		if !ok {
			return nil, nil, xerrors.New(xerrors.NotFound, "no registered xun function %q (referenced as a dependency)", name)
		}
		parsed, err := graphbuilder.ParseEntry(entry)
		if err != nil {
			return nil, nil, err
		}
		parsedByName[name] = parsed

		for _, dep := range parsed.Dependencies {
			if !seen[dep] {
				seen[dep] = true
				queue = append(queue, dep)
			}
		}
	}

	order := tarjanCondensationOrder(parsedByName)
	return parsedByName, order, nil
}

// hashFunctions computes function_hash for every discovered function in
// order. A function in a non-trivial strongly connected component (mutual
// recursion) or marked SelfRecursive gets a source-only hash — no
// dependency hashes folded in, since there is no acyclic order in which
// to compute them. This is the realization of the Open Question "how to
// hash functions in a call-graph cycle" (recorded in DESIGN.md): folding
// in a not-yet-known hash would make function_hash depend on itself.
func (p *Planner) hashFunctions(parsedByName map[string]*procparser.Parsed, order []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	inCycle := sccMembership(parsedByName)

	for _, name := range order {
		if _, done := p.functions[name]; done {
			continue
		}
		parsed := parsedByName[name]
		var depHashes []string
		if !parsed.SelfRecursive && !inCycle[name] {
			depHashes = make([]string, 0, len(parsed.Dependencies))
			for _, dep := range parsed.Dependencies {
				fi, ok := p.functions[dep]
				if !ok {
					return xerrors.New(xerrors.ExecutionError, "function %q hashed before its dependency %q", name, dep)
				}
				depHashes = append(depHashes, fi.FunctionHash)
			}
			sort.Strings(depHashes)
		}

		h := fingerprint.Source(parsed.FullSource, depHashes)
		invariant.Postcondition(h.String() != "", "function_hash for %q must not be empty", name)
		p.functions[name] = FunctionImage{
			Name:          name,
			GoName:        parsed.GoFuncName,
			ModulePath:    parsed.ModulePath,
			SourceHash:    h.String(),
			FunctionHash:  h.String(),
			Dependencies:  parsed.Dependencies,
			SelfRecursive: parsed.SelfRecursive,
			InCycle:       inCycle[name],
		}
	}
	return nil
}

// sccMembership reports, for every function name, whether it belongs to a
// strongly connected component of size > 1 in the function-call graph
// (mutual recursion distinct from simple self-recursion, which
// procparser already flags per-function via SelfRecursive).
func sccMembership(parsedByName map[string]*procparser.Parsed) map[string]bool {
	g := &tarjanGraph{adj: map[string][]string{}}
	for name, parsed := range parsedByName {
		g.adj[name] = parsed.Dependencies
	}
	sccs := g.run()

	inCycle := map[string]bool{}
	for _, scc := range sccs {
		if len(scc) > 1 {
			for _, n := range scc {
				inCycle[n] = true
			}
		}
	}
	return inCycle
}

// tarjanCondensationOrder returns function names ordered so that every
// function appears after all the functions outside its own SCC that it
// depends on (a reverse topological order over Tarjan's SCCs, which are
// produced in reverse-topological order already).
func tarjanCondensationOrder(parsedByName map[string]*procparser.Parsed) []string {
	g := &tarjanGraph{adj: map[string][]string{}}
	for name, parsed := range parsedByName {
		g.adj[name] = parsed.Dependencies
	}
	sccs := g.run()

	order := make([]string, 0, len(parsedByName))
	for _, scc := range sccs {
		sort.Strings(scc)
		order = append(order, scc...)
	}
	return order
}

// tarjanGraph is a minimal Tarjan's strongly-connected-components runner
// over a name-keyed adjacency list. Input iteration order is randomized
// by Go maps, so every root is visited in sorted order and neighbor lists
// are walked in sorted order, keeping the output deterministic.
type tarjanGraph struct {
	adj map[string][]string

	index   int
	stack   []string
	onStack map[string]bool
	low     map[string]int
	idx     map[string]int
	sccs    [][]string
}

func (g *tarjanGraph) run() [][]string {
	g.onStack = map[string]bool{}
	g.low = map[string]int{}
	g.idx = map[string]int{}

	names := make([]string, 0, len(g.adj))
	for n := range g.adj {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, n := range names {
		if _, visited := g.idx[n]; !visited {
			g.strongConnect(n)
		}
	}
	return g.sccs
}

func (g *tarjanGraph) strongConnect(v string) {
	g.idx[v] = g.index
	g.low[v] = g.index
	g.index++
	g.stack = append(g.stack, v)
	g.onStack[v] = true

	neighbors := append([]string(nil), g.adj[v]...)
	sort.Strings(neighbors)
	for _, w := range neighbors {
		if _, ok := g.adj[w]; !ok {
			continue // dependency outside the discovered set; reported elsewhere
		}
		if _, visited := g.idx[w]; !visited {
			g.strongConnect(w)
			if g.low[w] < g.low[v] {
				g.low[v] = g.low[w]
			}
		} else if g.onStack[w] {
			if g.idx[w] < g.low[v] {
				g.low[v] = g.idx[w]
			}
		}
	}

	if g.low[v] == g.idx[v] {
		var scc []string
		for {
			n := len(g.stack) - 1
			w := g.stack[n]
			g.stack = g.stack[:n]
			g.onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		g.sccs = append(g.sccs, scc)
	}
}
