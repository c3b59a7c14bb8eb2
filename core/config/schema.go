package config

// storeSpecSchemaJSON is the JSON Schema (2020-12) a StoreSpec document
// must satisfy before it is decoded. Validating first means a malformed
// XUN_STORE value or .xun.yaml store block fails with a readable schema
// error instead of a confusing panic deep inside a backend constructor.
const storeSpecSchemaJSON = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"$id": "schema://xun/store-spec.json",
	"type": "object",
	"required": ["kind"],
	"properties": {
		"kind": {
			"type": "string",
			"enum": ["memory", "disk", "lru", "layered"]
		},
		"root": { "type": "string" },
		"size": { "type": "integer", "minimum": 1 },
		"layers": {
			"type": "array",
			"items": { "$ref": "schema://xun/store-spec.json" },
			"minItems": 1
		}
	},
	"allOf": [
		{
			"if": { "properties": { "kind": { "const": "disk" } } },
			"then": { "required": ["kind", "root"] }
		},
		{
			"if": { "properties": { "kind": { "const": "lru" } } },
			"then": { "required": ["kind", "size"] }
		},
		{
			"if": { "properties": { "kind": { "const": "layered" } } },
			"then": { "required": ["kind", "layers"] }
		}
	]
}`
