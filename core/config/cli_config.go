package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/xunhq/xun/core/xerrors"
)

// CLIConfig is the shape of an optional .xun.yaml file: ambient defaults
// the CLI falls back to when a module's context doesn't pin its own
// choice, or when a command (like `mount`) has no context to consult at
// all.
type CLIConfig struct {
	Store    *StoreSpec `yaml:"store,omitempty"`
	Workers  int        `yaml:"workers,omitempty"`
	LogLevel string     `yaml:"log_level,omitempty"`
}

// DefaultCLIConfig returns the configuration used when no .xun.yaml exists.
func DefaultCLIConfig() CLIConfig {
	return CLIConfig{Workers: 4, LogLevel: "info"}
}

// LoadCLIConfig reads and decodes path. A missing file is not an error —
// it returns DefaultCLIConfig() — since .xun.yaml is always optional.
func LoadCLIConfig(path string) (CLIConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultCLIConfig(), nil
	}
	if err != nil {
		return CLIConfig{}, xerrors.Wrap(xerrors.ExecutionError, err, "reading %s", path)
	}

	cfg := DefaultCLIConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return CLIConfig{}, xerrors.Wrap(xerrors.InvalidProcedure, err, "parsing %s", path)
	}
	if cfg.Store != nil {
		if err := validateDecodedStoreSpec(*cfg.Store); err != nil {
			return CLIConfig{}, xerrors.Wrap(xerrors.InvalidProcedure, err, "%s: store block failed schema validation", path)
		}
	}
	return cfg, nil
}

// validateDecodedStoreSpec re-validates a StoreSpec that came from YAML
// (not JSON) against the same JSON Schema ParseStoreSpec uses, by
// round-tripping it through JSON first — the schema is defined over JSON
// shapes, and YAML's superset syntax (e.g. unquoted keys) has already been
// resolved into the same Go struct by the time this runs.
func validateDecodedStoreSpec(spec StoreSpec) error {
	raw, err := yamlSpecToJSON(spec)
	if err != nil {
		return err
	}
	_, err = ParseStoreSpec(raw)
	return err
}
