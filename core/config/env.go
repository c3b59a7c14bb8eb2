package config

import (
	"os"

	"github.com/xunhq/xun/core/store"
)

// EnvStoreVar is the environment variable the CLI consults for a default
// store spec when a module's context doesn't define its own (§6).
const EnvStoreVar = "XUN_STORE"

// ResolveDefaultStore determines the CLI's fallback store, in priority
// order: XUN_STORE (explicit, per-invocation override) first, then the
// `store:` block of the .xun.yaml at yamlPath. Returns ok=false if neither
// is set, meaning the caller must fall back to the module's own context.
func ResolveDefaultStore(yamlPath string) (st store.Store, ok bool, err error) {
	if raw, present := os.LookupEnv(EnvStoreVar); present && raw != "" {
		spec, err := ParseStoreSpec([]byte(raw))
		if err != nil {
			return nil, false, err
		}
		st, err = BuildStore(spec)
		return st, true, err
	}

	cfg, err := LoadCLIConfig(yamlPath)
	if err != nil {
		return nil, false, err
	}
	if cfg.Store == nil {
		return nil, false, nil
	}
	st, err = BuildStore(*cfg.Store)
	return st, true, err
}
