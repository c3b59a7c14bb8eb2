// Package xun is the public SDK a user writes against: decorate a Go
// function as a xun function with Register, declare its sub-results by
// calling Call/CallKw on other registered functions (by name) inside a
// "Const:" labeled block, and hand the result to core/blueprint's planner
// and core/executor's driver to run it.
//
// There is no decorator syntax in Go, so "decoration" here is registration:
// Register records the source file and line of a named Go function via
// reflection (runtime.FuncForPC), much as test frameworks recover a
// caller's file/line, and defers all source analysis to first use — by the time
// BlueprintPlanner (core/blueprint) asks for a function's image, every
// sibling xun function in the program has already registered, so
// procparser's static dependency discovery (§4.1) sees the complete
// registry regardless of package-init order.
//
// A dependency call is written xun.Call[T](ctx, "other_function", args...)
// rather than as a bare Go call to the callee's identifier: the callee
// name must be a string literal procparser can read directly out of the
// AST, since resolving an arbitrary Go expression to "which registered
// function does this identify" would require interpreting Go, which this
// engine deliberately does not do.
package xun

import (
	"os"
	"reflect"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/xunhq/xun/core/invariant"
	"github.com/xunhq/xun/core/procparser"
)

// Func is the shape every xun function must have: it receives a *Context
// bound to either graph-building or task-execution mode (§9) and returns a
// result or an error.
type Func func(ctx *Context, args ...any) (any, error)

// Entry is one registered xun function: its callable body plus enough
// provenance (source file/line) for procparser to locate and analyze its
// declaration on demand.
type Entry struct {
	Name      string
	GoName    string // bare Go identifier, e.g. "fibonacciNumber"
	Fn        Func
	File      string
	Line      int
	Resources map[string]int // named quotas this call consumes, e.g. {"GPU": 2}
}

var (
	mu        sync.RWMutex
	registry  = map[string]Entry{}
	resources = map[string]map[string]int{}
)

// Register records fn under name. Call/CallKw (context.go) reference
// functions by this name as a string literal, not by the raw Go
// identifier, so that core/procparser can statically discover a call's
// callee without resolving arbitrary Go expressions — it only needs to
// read a string literal argument.
//
// Registering the same name twice is a programming error (caught by
// invariant.Precondition, matching the "at most one" spirit of other
// single-binding checks in the kernel).
func Register(name string, fn Func) {
	invariant.Precondition(name != "", "xun function name must not be empty")
	invariant.NotNil(fn, "fn")

	file, line, goName := callerLocation(fn)

	mu.Lock()
	defer mu.Unlock()
	_, exists := registry[name]
	invariant.Precondition(!exists, "xun function %q already registered", name)
	registry[name] = Entry{Name: name, GoName: goName, Fn: fn, File: file, Line: line}
}

// DeclareResources records the named quotas (e.g. {"GPU": 2}) a registered
// function's calls consume. The parallel driver (core/executor) sizes its
// resource-token semaphore pools from the capacities it was constructed
// with, not from these declarations; it checks every name declared across
// a Blueprint's functions against those pools (§12's supplemented
// worker-width feature), and refuses to run a Blueprint whose declared
// resource has no matching pool rather than blocking on it forever.
func DeclareResources(name string, quota map[string]int) {
	mu.Lock()
	defer mu.Unlock()
	_, exists := registry[name]
	invariant.Precondition(exists, "cannot declare resources for unregistered function %q", name)
	resources[name] = quota
}

func callerLocation(fn Func) (file string, line int, goName string) {
	pc := reflect.ValueOf(fn).Pointer()
	rf := runtime.FuncForPC(pc)
	if rf == nil {
		return "", 0, ""
	}
	file, line = rf.FileLine(pc)
	full := rf.Name()
	if i := strings.LastIndexByte(full, '.'); i >= 0 {
		goName = full[i+1:]
	} else {
		goName = full
	}
	return file, line, goName
}

// Has reports whether name is a registered xun function.
func Has(name string) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := registry[name]
	return ok
}

// Lookup returns the Entry registered under name.
func Lookup(name string) (Entry, bool) {
	mu.RLock()
	defer mu.RUnlock()
	e, ok := registry[name]
	if !ok {
		return Entry{}, false
	}
	e.Resources = resources[name]
	return e, true
}

// Registered returns every registered name in sorted order, so core/runner's
// unknown-function-name suggestion sees a deterministic candidate list.
func Registered() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Reset clears the registry. Exists for tests that register fixture
// functions under names that might collide across test files.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	registry = map[string]Entry{}
	resources = map[string]map[string]int{}
}

// SourceText reads the Go source file an Entry was registered from.
func SourceText(e Entry) (string, error) {
	data, err := os.ReadFile(e.File)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// registryView adapts the package registry to procparser.Registry.
type registryView struct{}

func (registryView) Has(name string) bool { return Has(name) }

// RegistryView is the procparser.Registry backed by this package's registry.
var RegistryView procparser.Registry = registryView{}
