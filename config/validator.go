package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/Zeppelin-and-Pails/Victualiser/errors"
)

// configSchema is the JSON Schema every configuration file must satisfy
// before field-level validation runs.
const configSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "limit": {
      "type": "object",
      "additionalProperties": false,
      "required": ["type"],
      "properties": {
        "type": {"type": "string", "enum": ["count", "time"]},
        "count": {"type": "integer", "minimum": 1},
        "duration": {"type": "string", "minLength": 1}
      }
    },
    "filter": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "track": {"type": "array", "items": {"type": "string"}},
        "locations": {
          "type": "array",
          "items": {"type": "number"},
          "minItems": 4
        }
      }
    },
    "paths": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "base_dir": {"type": "string"},
        "raw_template": {"type": "string"},
        "enriched_template": {"type": "string"},
        "table_template": {"type": "string"},
        "timestamp_format": {"type": "string"}
      }
    },
    "source": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "provider": {"type": "string", "enum": ["replay", "websocket", "nats"]},
        "url": {"type": "string"},
        "subject": {"type": "string"},
        "replay_file": {"type": "string"}
      }
    },
    "enrich": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "strict_client": {"type": "boolean"}
      }
    },
    "serve": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "missing_key": {"type": "string", "enum": ["fail", "skip"]}
      }
    },
    "metrics": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "addr": {"type": "string"}
      }
    },
    "logging": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "level": {"type": "string", "enum": ["debug", "info", "warn", "error"]},
        "format": {"type": "string", "enum": ["json", "text"]}
      }
    }
  }
}`

// ValidateSchema checks one raw YAML document against the configuration
// schema. It returns a single error listing every violation.
func ValidateSchema(data []byte) error {
	var document map[string]any
	if err := yaml.Unmarshal(data, &document); err != nil {
		return errors.WrapInvalid(err, "Config", "ValidateSchema", "yaml parse")
	}
	if document == nil {
		document = map[string]any{}
	}

	documentJSON, err := json.Marshal(document)
	if err != nil {
		return errors.WrapInvalid(err, "Config", "ValidateSchema", "document conversion")
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(configSchema),
		gojsonschema.NewBytesLoader(documentJSON),
	)
	if err != nil {
		return errors.WrapFatal(err, "Config", "ValidateSchema", "schema evaluation")
	}

	if !result.Valid() {
		violations := make([]string, 0, len(result.Errors()))
		for _, violation := range result.Errors() {
			violations = append(violations, violation.String())
		}
		return errors.WrapInvalid(
			fmt.Errorf("%s", strings.Join(violations, "; ")),
			"Config", "ValidateSchema", "schema check")
	}

	return nil
}
