// Package config implements ambient CLI configuration (§6/§12): loading an
// optional .xun.yaml file, resolving the XUN_STORE environment variable,
// and validating+building the store specs either one describes.
//
// A context (the module-level driver+store binding the CLI's `exec`/`graph`
// commands run against) remains a Go object per spec — this package only
// supplies the fallback a module author never had to write explicitly.
package config

import (
	"encoding/json"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/xunhq/xun/core/store"
	"github.com/xunhq/xun/core/xerrors"
)

// StoreSpec is the JSON shape a store backend is described by, over the
// wire (XUN_STORE) or in .xun.yaml. "layered" composes nested specs, top
// layer first, matching core/store.Layered's NewLayered(top, ...bottom)
// ordering.
type StoreSpec struct {
	Kind   string      `json:"kind" yaml:"kind"`
	Root   string      `json:"root,omitempty" yaml:"root,omitempty"`
	Size   int         `json:"size,omitempty" yaml:"size,omitempty"`
	Layers []StoreSpec `json:"layers,omitempty" yaml:"layers,omitempty"`
}

var storeSpecSchema = mustCompileSchema(storeSpecSchemaJSON)

func mustCompileSchema(raw string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	url := "schema://xun/store-spec.json"
	if err := compiler.AddResource(url, strings.NewReader(raw)); err != nil {
		panic(err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		panic(err)
	}
	return schema
}

// ParseStoreSpec validates raw against the store-spec JSON Schema and
// decodes it into a StoreSpec. raw may be the XUN_STORE environment
// variable's value or a `store:` block re-marshaled from .xun.yaml.
func ParseStoreSpec(raw []byte) (StoreSpec, error) {
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return StoreSpec{}, xerrors.Wrap(xerrors.InvalidProcedure, err, "store spec is not valid JSON")
	}
	if err := storeSpecSchema.Validate(generic); err != nil {
		return StoreSpec{}, xerrors.Wrap(xerrors.InvalidProcedure, err, "store spec failed schema validation")
	}
	var spec StoreSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return StoreSpec{}, xerrors.Wrap(xerrors.InvalidProcedure, err, "decoding store spec")
	}
	return spec, nil
}

// yamlSpecToJSON re-encodes a StoreSpec decoded from YAML as JSON, so it
// can be re-validated against the JSON Schema ParseStoreSpec uses.
func yamlSpecToJSON(spec StoreSpec) ([]byte, error) {
	raw, err := json.Marshal(spec)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.ExecutionError, err, "re-encoding store spec for validation")
	}
	return raw, nil
}

// BuildStore constructs the Store a StoreSpec describes.
func BuildStore(spec StoreSpec) (store.Store, error) {
	switch spec.Kind {
	case "memory":
		return store.NewMemory(), nil
	case "disk":
		return store.NewDisk(spec.Root)
	case "lru":
		return store.NewLRULayer(spec.Size)
	case "layered":
		layers := make([]store.Store, 0, len(spec.Layers))
		for _, layerSpec := range spec.Layers {
			layer, err := BuildStore(layerSpec)
			if err != nil {
				return nil, err
			}
			layers = append(layers, layer)
		}
		return store.NewLayered(layers...), nil
	default:
		return nil, xerrors.New(xerrors.InvalidProcedure, "unknown store kind %q", spec.Kind)
	}
}
