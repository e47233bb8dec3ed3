package config

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ruleSetSchema is the structural contract for the rule-set document.
// Validation happens on the decoded document before it reaches the engines,
// so a typo fails the invocation loudly instead of silently matching
// nothing.
const ruleSetSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "policy": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "default": {"enum": ["", "allow", "ask", "deny"]},
        "rules": {"type": "array", "items": {"$ref": "#/$defs/policyRule"}}
      }
    },
    "inject": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "prompts_dir": {"type": "string"},
        "rules": {"type": "array", "items": {"$ref": "#/$defs/injectRule"}}
      }
    },
    "compact": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "block_auto": {"type": "boolean"},
        "instructions_file": {"type": "string"}
      }
    },
    "session": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "tail_prompts": {"type": "integer", "minimum": 0},
        "tail_when": {"$ref": "#/$defs/stringOrList"},
        "todo_when": {"$ref": "#/$defs/stringOrList"}
      }
    },
    "log": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "enabled": {"type": "boolean"},
        "format": {"enum": ["jsonl", "pretty"]},
        "max_size_mb": {"type": "integer", "minimum": 0},
        "max_age_days": {"type": "integer", "minimum": 0},
        "max_backups": {"type": "integer", "minimum": 0},
        "compress": {"type": "boolean"}
      }
    }
  },
  "$defs": {
    "clause": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "tool": {"type": "string"},
        "input": {"type": "object"},
        "output": {"type": "object"},
        "prompt": {"type": "string"},
        "when": {"type": "array", "items": {"type": "string"}},
        "all_of": {"type": "array", "items": {"$ref": "#/$defs/clause"}},
        "any_of": {"type": "array", "items": {"$ref": "#/$defs/clause"}}
      }
    },
    "stringOrList": {
      "oneOf": [
        {"type": "string"},
        {"type": "array", "items": {"type": "string"}}
      ]
    },
    "policyRule": {
      "type": "object",
      "additionalProperties": false,
      "required": ["action"],
      "properties": {
        "name": {"type": "string"},
        "match": {"$ref": "#/$defs/clause"},
        "action": {"enum": ["allow", "ask", "deny"]},
        "reason": {"type": "string"},
        "updated_input": {"type": "object"},
        "skip": {"type": "string"},
        "only": {"type": "string"}
      }
    },
    "injectRule": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "name": {"type": "string"},
        "events": {"type": "array", "items": {"type": "string"}},
        "when": {"type": "array", "items": {"type": "string"}},
        "match": {"$ref": "#/$defs/clause"},
        "include": {"$ref": "#/$defs/stringOrList"},
        "text": {"$ref": "#/$defs/stringOrList"},
        "skip": {"type": "string"},
        "only": {"type": "string"}
      }
    }
  }
}`

var compiledSchema = jsonschema.MustCompileString("rules.schema.json", ruleSetSchema)

// validateDocument checks a decoded rule-set document against the schema.
// The document is round-tripped through encoding/json so YAML and TOML
// decoders produce identical instance types.
func validateDocument(doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("normalize document: %w", err)
	}
	var instance any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&instance); err != nil {
		return fmt.Errorf("normalize document: %w", err)
	}
	return compiledSchema.Validate(instance)
}
