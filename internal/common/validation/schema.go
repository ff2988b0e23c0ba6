// internal/common/validation/schema.go
package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// GetErrorMessages returns "field: message" lines.
func (r *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		messages = append(messages, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return messages
}

func (r *ValidationResult) String() string {
	return strings.Join(r.GetErrorMessages(), "; ")
}

// Schema is a compiled JSON Schema.
type Schema struct {
	name   string
	schema *gojsonschema.Schema
}

// MustCompile compiles a schema literal and panics on a malformed one.
func MustCompile(name, source string) *Schema {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(source))
	if err != nil {
		panic(fmt.Sprintf("schema %s: %v", name, err))
	}
	return &Schema{name: name, schema: compiled}
}

// ValidateJSON validates a raw JSON document.
func (s *Schema) ValidateJSON(document []byte) *ValidationResult {
	return s.validate(gojsonschema.NewBytesLoader(document))
}

// ValidateGo validates a Go value (map, struct) through its JSON encoding.
func (s *Schema) ValidateGo(document interface{}) *ValidationResult {
	return s.validate(gojsonschema.NewGoLoader(document))
}

func (s *Schema) validate(loader gojsonschema.JSONLoader) *ValidationResult {
	result, err := s.schema.Validate(loader)
	if err != nil {
		return &ValidationResult{Errors: []ValidationError{{
			Field:   s.name,
			Message: fmt.Sprintf("document is not valid JSON: %v", err),
			Code:    "MALFORMED_DOCUMENT",
		}}}
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out
}
