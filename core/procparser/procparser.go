// Package procparser implements ProcedureParser (C4): it locates the
// constant-binding block inside a user procedure, validates the restricted
// sub-language (§4.1), and derives the statement-level dependency order and
// the set of other xun functions the procedure statically calls.
//
// A xun function's source has no decorator syntax to strip (Go has no
// decorators); the engine's analogue of stripping decorator metadata is
// simply that registration (package xun) records where a function was
// declared, and this package receives that file's source text and isolates
// the *ast.FuncDecl for exactly one function by its Go name, parsed with
// go/parser since Go source itself is what's being parsed, not a custom
// DSL. Both whole-body sweeps this package runs — dependency discovery
// here and referencedNames' read-set collection below — walk that tree
// with plain go/ast.Inspect.
//
// The constant-binding block is marked by a labeled block statement whose
// label is "Const" — Go's closest native analogue to the source language's
// ellipsis-marked context block (§9).
package procparser

import (
	"go/ast"
	"go/parser"
	"go/token"
	"sort"
	"strconv"
	"strings"

	"github.com/xunhq/xun/core/xerrors"
)

const constLabel = "Const"

// Registry answers whether a name is a currently-registered xun function.
type Registry interface {
	Has(name string) bool
}

// ConstStatement is one statement of the topologically sorted constant
// block: either a binding to a call on another xun function (IsXunCall) or
// a plain expression/assignment evaluated with ordinary Go semantics.
type ConstStatement struct {
	Targets   []string // assigned names, in source order ("_" omitted)
	IsXunCall bool
	Callee    string // set when IsXunCall
	Source    string // original statement source text
}

// Parsed is the frozen analysis of one user procedure.
type Parsed struct {
	FuncName      string // registered xun function name
	GoFuncName    string // Go identifier of the declaration
	ModulePath    string
	FullSource    string // the whole function declaration's source text
	BodySource    string // source text of the statements outside the block
	Constants     []ConstStatement
	Dependencies  []string // sorted, unique, excludes FuncName itself
	SelfRecursive bool
}

// ParseSource parses sourceText (one Go source file, or just enough of one
// to contain the function declaration) looking for the Go function named
// goFuncName, validates its constant block against §4.1, and returns the
// frozen analysis. registeredName is the name this function was
// registered under (xun.Register) — the name dependency calls elsewhere
// reference via xun.Call/CallKw's string-literal argument — which may
// differ from the Go identifier goFuncName.
func ParseSource(sourceText, registeredName, goFuncName, modulePath string, registry Registry) (*Parsed, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, goFuncName+".go", sourceText, parser.AllErrors)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.InvalidProcedure, err, "parsing source for %s", goFuncName)
	}

	var decl *ast.FuncDecl
	for _, d := range file.Decls {
		if fd, ok := d.(*ast.FuncDecl); ok && fd.Name.Name == goFuncName {
			decl = fd
			break
		}
	}
	if decl == nil {
		return nil, xerrors.New(xerrors.InvalidProcedure, "no function named %q in source", goFuncName)
	}
	if decl.Body == nil {
		return nil, xerrors.New(xerrors.InvalidProcedure, "function %q has no body", goFuncName)
	}

	src := []byte(sourceText)
	text := func(n ast.Node) string {
		return strings.TrimSpace(string(src[fset.Position(n.Pos()).Offset:fset.Position(n.End()).Offset]))
	}

	block, bodyStmts, err := splitBody(decl.Body.List)
	if err != nil {
		return nil, err
	}

	var constants []ConstStatement
	if block != nil {
		constants, err = parseConstBlock(block, registry, text)
		if err != nil {
			return nil, err
		}
	}

	deps := map[string]bool{}
	selfRecursive := false
	ast.Inspect(decl, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		name, ok := calleeFromCallExpr(call, registry)
		if !ok {
			return true
		}
		if name == registeredName {
			selfRecursive = true
		} else {
			deps[name] = true
		}
		return true
	})

	depNames := make([]string, 0, len(deps))
	for d := range deps {
		depNames = append(depNames, d)
	}
	sort.Strings(depNames)

	bodySource := ""
	if len(bodyStmts) > 0 {
		var parts []string
		for _, s := range bodyStmts {
			parts = append(parts, text(s))
		}
		bodySource = strings.Join(parts, "\n")
	}

	return &Parsed{
		FuncName:      registeredName,
		GoFuncName:    goFuncName,
		ModulePath:    modulePath,
		FullSource:    text(decl),
		BodySource:    bodySource,
		Constants:     constants,
		Dependencies:  depNames,
		SelfRecursive: selfRecursive,
	}, nil
}

// splitBody locates at most one "Const: { ... }" labeled block among the
// function's top-level statements (§4.1 step 2) and returns it along with
// the remaining statements ("the body").
func splitBody(stmts []ast.Stmt) (*ast.BlockStmt, []ast.Stmt, error) {
	var block *ast.BlockStmt
	var rest []ast.Stmt
	found := 0
	for _, s := range stmts {
		if lbl, ok := s.(*ast.LabeledStmt); ok && lbl.Label.Name == constLabel {
			inner, ok := lbl.Stmt.(*ast.BlockStmt)
			if !ok {
				return nil, nil, xerrors.New(xerrors.InvalidProcedure, "Const label must mark a block statement")
			}
			found++
			if found > 1 {
				return nil, nil, xerrors.New(xerrors.InvalidProcedure, "more than one constant-binding block")
			}
			block = inner
			continue
		}
		rest = append(rest, s)
	}
	return block, rest, nil
}

// parseConstBlock validates and topologically sorts the statements inside
// the constant-binding block (§4.1 steps 3–6).
func parseConstBlock(block *ast.BlockStmt, registry Registry, text func(ast.Node) string) ([]ConstStatement, error) {
	type raw struct {
		targets []string
		callee  string
		isCall  bool
		node    ast.Stmt
	}

	assigned := map[string]bool{}
	var raws []raw

	for _, stmt := range block.List {
		switch s := stmt.(type) {
		case *ast.AssignStmt:
			var targets []string
			for _, lhs := range s.Lhs {
				id, ok := lhs.(*ast.Ident)
				if !ok {
					return nil, xerrors.New(xerrors.InvalidProcedure, "constant block assignment target must be a simple name")
				}
				if id.Name == "_" {
					continue
				}
				if assigned[id.Name] {
					return nil, xerrors.New(xerrors.InvalidProcedure, "name %q assigned more than once in constant block", id.Name)
				}
				assigned[id.Name] = true
				targets = append(targets, id.Name)
			}
			callee, isCall := calleeOf(s.Rhs, registry)
			raws = append(raws, raw{targets: targets, callee: callee, isCall: isCall, node: s})
		case *ast.ExprStmt:
			callee, isCall := calleeOf([]ast.Expr{s.X}, registry)
			raws = append(raws, raw{isCall: isCall, callee: callee, node: s})
		default:
			return nil, xerrors.New(xerrors.InvalidProcedure, "constant block may contain only assignment and expression statements, got %T", stmt)
		}
	}

	// Statement dependency graph: edge raws[i] -> raws[j] when j's
	// expression references a name i assigns (§4.1 step 5).
	n := len(raws)
	edges := make([][]int, n) // edges[i] = successors of i
	indegree := make([]int, n)
	nameOwner := map[string]int{}
	for i, r := range raws {
		for _, t := range r.targets {
			nameOwner[t] = i
		}
	}
	for j, r := range raws {
		refs := referencedNames(r.node)
		seen := map[int]bool{}
		for name := range refs {
			if owner, ok := nameOwner[name]; ok && owner != j && !seen[owner] {
				seen[owner] = true
				edges[owner] = append(edges[owner], j)
				indegree[j]++
			}
		}
	}

	order, err := topoSort(edges, indegree)
	if err != nil {
		return nil, err
	}

	out := make([]ConstStatement, n)
	for pos, i := range order {
		out[pos] = ConstStatement{
			Targets:   raws[i].targets,
			IsXunCall: raws[i].isCall,
			Callee:    raws[i].callee,
			Source:    text(raws[i].node),
		}
	}
	return out, nil
}

// topoSort runs Kahn's algorithm with a lowest-original-index tie-break so
// the result is deterministic across runs (spec doesn't mandate a specific
// order here — the driver's own tie-break, §4.4, is on call fingerprint;
// this is a parse-time implementation choice recorded in DESIGN.md).
func topoSort(edges [][]int, indegree []int) ([]int, error) {
	n := len(edges)
	remaining := append([]int(nil), indegree...)
	var ready []int
	for i := 0; i < n; i++ {
		if remaining[i] == 0 {
			ready = append(ready, i)
		}
	}
	var order []int
	for len(ready) > 0 {
		sort.Ints(ready)
		i := ready[0]
		ready = ready[1:]
		order = append(order, i)
		for _, j := range edges[i] {
			remaining[j]--
			if remaining[j] == 0 {
				ready = append(ready, j)
			}
		}
	}
	if len(order) != n {
		return nil, xerrors.New(xerrors.NotDAG, "constant block has a cyclic dependency among its statements")
	}
	return order, nil
}

// calleeOf reports whether exprs is a single call to a registered xun
// function (xun.Call[T](ctx, "name", ...) or xun.CallKw[T](ctx, "name",
// kwargs, ...)), returning its name.
func calleeOf(exprs []ast.Expr, registry Registry) (string, bool) {
	if len(exprs) != 1 {
		return "", false
	}
	call, ok := exprs[0].(*ast.CallExpr)
	if !ok {
		return "", false
	}
	return calleeFromCallExpr(call, registry)
}

// calleeFromCallExpr extracts the statically-known callee name from a
// xun.Call/CallKw call expression. The callee is always the function's
// second positional argument (after ctx) and must be a string literal —
// this is what lets static analysis read it without evaluating Go
// expressions.
func calleeFromCallExpr(call *ast.CallExpr, registry Registry) (string, bool) {
	sel := selectorOf(call.Fun)
	if sel == nil {
		return "", false
	}
	pkgIdent, ok := sel.X.(*ast.Ident)
	if !ok || pkgIdent.Name != "xun" {
		return "", false
	}
	if sel.Sel.Name != "Call" && sel.Sel.Name != "CallKw" {
		return "", false
	}
	if len(call.Args) < 2 {
		return "", false
	}
	lit, ok := call.Args[1].(*ast.BasicLit)
	if !ok || lit.Kind != token.STRING {
		return "", false
	}
	name, err := strconv.Unquote(lit.Value)
	if err != nil || !registry.Has(name) {
		return "", false
	}
	return name, true
}

// selectorOf unwraps an optional generic instantiation (xun.Call[int] is
// an *ast.IndexExpr wrapping the selector xun.Call) down to the bare
// package-qualified selector.
func selectorOf(fun ast.Expr) *ast.SelectorExpr {
	switch f := fun.(type) {
	case *ast.SelectorExpr:
		return f
	case *ast.IndexExpr:
		return selectorOf(f.X)
	case *ast.IndexListExpr:
		return selectorOf(f.X)
	default:
		return nil
	}
}

// referencedNames collects every identifier name read by stmt.
func referencedNames(stmt ast.Stmt) map[string]bool {
	names := map[string]bool{}
	ast.Inspect(stmt, func(n ast.Node) bool {
		if id, ok := n.(*ast.Ident); ok {
			names[id.Name] = true
		}
		return true
	})
	return names
}
