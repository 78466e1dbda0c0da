// Package events implements the typed command/event bus: schema-checked
// command intake, validated event fan-out, and correlation-ID tracking with
// TTL sweep. Schema validation is grounded directly on
// AltairaLabs-PromptKit's runtime/prompt/schema.ValidateJSONAgainstLoader /
// ConvertResult pattern over github.com/xeipuuv/gojsonschema.
package events

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// ValidationError is a single schema violation with field-level detail.
type ValidationError struct {
	Field       string
	Description string
	Value       interface{}
}

func (e ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("%s: %s (value: %v)", e.Field, e.Description, e.Value)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Description)
}

// ValidationResult is the outcome of validating a document against a schema.
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

// validateJSONAgainstLoader validates raw JSON bytes against a schema.
func validateJSONAgainstLoader(jsonData []byte, schemaLoader gojsonschema.JSONLoader) (*ValidationResult, error) {
	documentLoader := gojsonschema.NewBytesLoader(jsonData)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}
	return convertResult(result), nil
}

func convertResult(result *gojsonschema.Result) *ValidationResult {
	vr := &ValidationResult{Valid: result.Valid(), Errors: make([]ValidationError, 0)}
	if !result.Valid() {
		for _, e := range result.Errors() {
			vr.Errors = append(vr.Errors, ValidationError{
				Field:       e.Field(),
				Description: e.Description(),
				Value:       e.Value(),
			})
		}
	}
	return vr
}

const commandSchemaJSON = `{
  "type": "object",
  "required": ["command"],
  "properties": {
    "command": {"type": "string", "enum": ["startListening", "stopListening", "getHistory", "clearHistory"]},
    "correlationId": {"type": "string"},
    "sourceLanguage": {"type": "string"},
    "targetLanguage": {"type": "string"},
    "limit": {"type": "integer"},
    "offset": {"type": "integer"}
  },
  "allOf": [
    {
      "if": {"properties": {"command": {"const": "startListening"}}},
      "then": {"required": ["sourceLanguage", "targetLanguage"]}
    }
  ]
}`

const eventSchemaJSON = `{
  "type": "object",
  "required": ["type", "timestamp", "correlationId"],
  "properties": {
    "type": {
      "type": "string",
      "enum": ["asr", "translation", "segment", "combinedSentence", "paragraphComplete",
               "progressiveSummary", "periodicSummary", "vocabulary", "finalReport", "status", "error"]
    },
    "timestamp": {"type": "string"},
    "correlationId": {"type": "string"}
  }
}`

var (
	commandSchemaLoader = gojsonschema.NewStringLoader(commandSchemaJSON)
	eventSchemaLoader   = gojsonschema.NewStringLoader(eventSchemaJSON)
)

// ValidateCommandJSON validates a raw command payload.
func ValidateCommandJSON(raw []byte) (*ValidationResult, error) {
	return validateJSONAgainstLoader(raw, commandSchemaLoader)
}

// ValidateEventJSON validates a raw event payload (its envelope only; Data
// is intentionally left loosely typed since its shape varies by Type).
func ValidateEventJSON(raw []byte) (*ValidationResult, error) {
	return validateJSONAgainstLoader(raw, eventSchemaLoader)
}
