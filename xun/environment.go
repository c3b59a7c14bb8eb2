package xun

import (
	"sync"

	"github.com/xunhq/xun/core/executor"
	"github.com/xunhq/xun/core/invariant"
	"github.com/xunhq/xun/core/store"
)

// Environment binds a Driver and a Store together: the pairing a module
// declares once so the CLI (`exec`/`graph`/`mount`, §6) knows how and
// where to run the calls it's asked to evaluate.
type Environment struct {
	Driver executor.Driver
	Store  store.Store
}

var (
	envMu    sync.Mutex
	boundEnv *Environment
)

// BindEnvironment records env as the module's single context. A module
// defining zero or more than one is a ContextError (§6); the "more than
// one" half of that is enforced here the same way Register enforces
// at-most-one binding per function name.
func BindEnvironment(env *Environment) {
	invariant.NotNil(env, "env")
	invariant.NotNil(env.Driver, "env.Driver")
	invariant.NotNil(env.Store, "env.Store")

	envMu.Lock()
	defer envMu.Unlock()
	invariant.Precondition(boundEnv == nil, "a xun.Environment is already bound for this module")
	boundEnv = env
}

// BoundEnvironment returns the module's bound Environment, or ok=false if
// none was ever bound (the "zero contexts" half of ContextError, left for
// the caller to report since only it knows whether that's fatal).
func BoundEnvironment() (*Environment, bool) {
	envMu.Lock()
	defer envMu.Unlock()
	if boundEnv == nil {
		return nil, false
	}
	return boundEnv, true
}

// ResetEnvironment clears the bound Environment. Exists for tests that
// bind fixture environments across test files/cases.
func ResetEnvironment() {
	envMu.Lock()
	defer envMu.Unlock()
	boundEnv = nil
}
