package loader

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// Schema names accepted by SchemaJSON.
const (
	SchemaModel  = "model"
	SchemaConfig = "config"
)

// modelSchemaJSON is the JSON Schema of a resolved model file.
var modelSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://ferment.dev/schemas/model/v1",
  "title": "ferment resolved model",
  "description": "Schema for the resolved model YAML handed to ferment by the source resolver.",
  "type": "object",
  "required": ["crate", "items"],
  "additionalProperties": false,
  "properties": {
    "crate": { "type": "string", "pattern": "^[A-Za-z_][A-Za-z0-9_-]*$" },
    "items": {
      "type": "array",
      "items": { "$ref": "#/$defs/item" }
    },
    "reexports": {
      "type": "array",
      "items": { "$ref": "#/$defs/reexport" }
    }
  },
  "$defs": {
    "path": {
      "type": "string",
      "pattern": "^crate(::[A-Za-z_][A-Za-z0-9_]*)*$"
    },
    "type_expr": { "type": "string", "minLength": 1 },
    "generics": {
      "type": "array",
      "items": { "type": "string", "pattern": "^('[a-z_][a-z0-9_]*|[A-Za-z_][A-Za-z0-9_]*)$" },
      "uniqueItems": true
    },
    "item": {
      "type": "object",
      "required": ["path", "kind"],
      "additionalProperties": false,
      "properties": {
        "path": { "$ref": "#/$defs/path" },
        "kind": {
          "type": "string",
          "enum": ["struct", "tuple_struct", "unit_struct", "enum", "type_alias", "fn", "trait", "impl"]
        },
        "generics": { "$ref": "#/$defs/generics" },
        "attrs": { "$ref": "#/$defs/attrs" },
        "source": { "type": "string" },
        "fields": {
          "type": "array",
          "items": { "$ref": "#/$defs/field" }
        },
        "variants": {
          "type": "array",
          "items": { "$ref": "#/$defs/variant" }
        },
        "aliased": { "$ref": "#/$defs/type_expr" },
        "signature": { "$ref": "#/$defs/signature" },
        "methods": {
          "type": "array",
          "items": { "$ref": "#/$defs/method" }
        },
        "trait": { "type": "string" },
        "self_type": { "$ref": "#/$defs/type_expr" }
      }
    },
    "attrs": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "cfg": { "type": "array", "items": { "type": "string", "minLength": 1 } },
        "doc": { "type": "string" },
        "repr": { "type": "string" },
        "non_exhaustive": { "type": "boolean" },
        "opaque": { "type": "boolean" }
      }
    },
    "field": {
      "type": "object",
      "required": ["name", "type"],
      "additionalProperties": false,
      "properties": {
        "name": {
          "oneOf": [
            { "type": "string", "pattern": "^([A-Za-z_][A-Za-z0-9_]*|[0-9]+)$" },
            { "type": "integer", "minimum": 0 }
          ]
        },
        "type": { "$ref": "#/$defs/type_expr" },
        "doc": { "type": "string" }
      }
    },
    "variant": {
      "type": "object",
      "required": ["name"],
      "additionalProperties": false,
      "properties": {
        "name": { "type": "string", "pattern": "^[A-Za-z_][A-Za-z0-9_]*$" },
        "shape": { "type": "string", "enum": ["unit", "tuple", "named"] },
        "fields": {
          "type": "array",
          "items": { "$ref": "#/$defs/field" }
        },
        "discriminant": { "type": "integer" },
        "doc": { "type": "string" }
      }
    },
    "param": {
      "type": "object",
      "required": ["name", "type"],
      "additionalProperties": false,
      "properties": {
        "name": { "type": "string", "pattern": "^[A-Za-z_][A-Za-z0-9_]*$" },
        "type": { "$ref": "#/$defs/type_expr" }
      }
    },
    "signature": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "params": {
          "type": "array",
          "items": { "$ref": "#/$defs/param" }
        },
        "returns": { "type": "string" },
        "async": { "type": "boolean" },
        "receiver": { "type": "string", "enum": ["", "&self", "&mut self", "self"] },
        "generics": { "$ref": "#/$defs/generics" }
      }
    },
    "method": {
      "type": "object",
      "required": ["name", "signature"],
      "additionalProperties": false,
      "properties": {
        "name": { "type": "string", "pattern": "^[A-Za-z_][A-Za-z0-9_]*$" },
        "doc": { "type": "string" },
        "signature": { "$ref": "#/$defs/signature" }
      }
    },
    "reexport": {
      "type": "object",
      "required": ["module", "path"],
      "additionalProperties": false,
      "properties": {
        "module": { "$ref": "#/$defs/path" },
        "path": { "$ref": "#/$defs/path" }
      }
    }
  }
}`

// configSchemaJSON is the JSON Schema of ferment.yaml.
var configSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://ferment.dev/schemas/config/v1",
  "title": "ferment configuration",
  "description": "Schema for ferment.yaml generator configuration files.",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "crate_root": { "type": "string", "pattern": "^([A-Za-z_][A-Za-z0-9_]*(::[A-Za-z_][A-Za-z0-9_]*)*)?$" },
    "root_module": { "type": "string", "pattern": "^[a-z_][a-z0-9_]*$" },
    "features": {
      "type": "array",
      "items": { "type": "string", "minLength": 1 },
      "uniqueItems": true
    },
    "option_primitives": { "type": "string", "enum": ["sentinel", "pointer"] },
    "custom_conversions": {
      "type": "object",
      "propertyNames": { "pattern": "^[A-Za-z_][A-Za-z0-9_]*(::[A-Za-z_][A-Za-z0-9_]*)*$" },
      "additionalProperties": { "$ref": "#/$defs/custom_conversion" }
    },
    "max_generic_iterations": { "type": "integer", "minimum": 1 },
    "output": { "type": "string", "minLength": 1 },
    "manifest": { "type": "boolean" },
    "makefile": { "type": "boolean" }
  },
  "$defs": {
    "custom_conversion": {
      "type": "object",
      "required": ["ffi_type", "from", "to", "ownership"],
      "additionalProperties": false,
      "properties": {
        "ffi_type": { "type": "string", "minLength": 1 },
        "from": { "type": "string", "pattern": "\\{\\}" },
        "to": { "type": "string", "pattern": "\\{\\}" },
        "drop": { "type": "string", "pattern": "\\{\\}" },
        "ownership": { "type": "string", "enum": ["owned", "borrowed"] }
      }
    }
  }
}`

var (
	modelSchema  *jsonschema.Schema
	configSchema *jsonschema.Schema
)

func init() {
	modelSchema = mustCompile("model.json", modelSchemaJSON)
	configSchema = mustCompile("config.json", configSchemaJSON)
}

func mustCompile(name, src string) *jsonschema.Schema {
	// Decode the schema JSON into a generic value first
	var schemaDoc interface{}
	if err := json.Unmarshal([]byte(src), &schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to decode %s: %v", name, err))
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to add schema resource %s: %v", name, err))
	}
	s, err := c.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return s
}

// SchemaJSON returns the source of the named built-in schema.
func SchemaJSON(name string) (string, error) {
	switch name {
	case SchemaModel:
		return modelSchemaJSON, nil
	case SchemaConfig:
		return configSchemaJSON, nil
	}
	return "", fmt.Errorf("unknown schema %q (want %q or %q)", name, SchemaModel, SchemaConfig)
}

// ValidateModelSchema validates raw YAML bytes against the model JSON Schema.
func ValidateModelSchema(yamlData []byte) error {
	return validateYAML(modelSchema, yamlData)
}

// ValidateConfigSchema validates raw YAML bytes against the config JSON Schema.
func ValidateConfigSchema(yamlData []byte) error {
	return validateYAML(configSchema, yamlData)
}

func validateYAML(schema *jsonschema.Schema, yamlData []byte) error {
	// Parse YAML into a generic structure
	var raw interface{}
	if err := yaml.Unmarshal(yamlData, &raw); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}
	if raw == nil {
		// An empty document is an empty object.
		raw = map[string]interface{}{}
	}

	converted := convertYAMLToJSON(raw)

	err := schema.Validate(converted)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// convertYAMLToJSON converts YAML-parsed values to JSON-compatible types.
// yaml.v3 parses maps as map[string]interface{} which is already JSON-compatible,
// but we need to handle nested maps recursively.
func convertYAMLToJSON(v interface{}) interface{} {
	switch v := v.(type) {
	case map[string]interface{}:
		result := make(map[string]interface{}, len(v))
		for k, val := range v {
			result[k] = convertYAMLToJSON(val)
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, val := range v {
			result[i] = convertYAMLToJSON(val)
		}
		return result
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case uint64:
		return float64(v)
	default:
		return v
	}
}

// ValidateSchemaJSON validates a JSON document against the named schema (for testing).
func ValidateSchemaJSON(name string, jsonData []byte) error {
	schema := modelSchema
	if name == SchemaConfig {
		schema = configSchema
	}
	var raw interface{}
	if err := json.Unmarshal(jsonData, &raw); err != nil {
		return fmt.Errorf("parsing JSON: %w", err)
	}
	err := schema.Validate(raw)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}
