// Package schemas validates application request and result documents against
// their embedded JSON Schemas.
package schemas

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed application_request.schema.json
var requestSchema string

//go:embed application_result.schema.json
var resultSchema string

// FieldError is one violation at a document path
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists every violation of a document, ordered by field
type ValidationError struct {
	Errors []FieldError
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:\n")
	for i, err := range ve.Errors {
		fmt.Fprintf(&sb, "  %d. %s: %s\n", i+1, err.Field, err.Message)
	}
	return sb.String()
}

// First returns the first field error formatted as "field: message"
func (ve *ValidationError) First() string {
	if len(ve.Errors) == 0 {
		return ""
	}
	return ve.Errors[0].Field + ": " + ve.Errors[0].Message
}

// SchemaLoadError means a schema itself could not be compiled
type SchemaLoadError struct {
	Name  string
	Cause error
}

func (e *SchemaLoadError) Error() string {
	return fmt.Sprintf("failed to load schema %s: %v", e.Name, e.Cause)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

// Schema is a compiled JSON Schema
type Schema struct {
	name   string
	schema *gojsonschema.Schema
}

// Compile parses a schema document
func Compile(name, content string) (*Schema, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(content))
	if err != nil {
		return nil, &SchemaLoadError{Name: name, Cause: err}
	}
	return &Schema{name: name, schema: compiled}, nil
}

// Validate checks data against the schema. Violations come back as a
// *ValidationError; data that is not JSON at all is reported as is.
func (s *Schema) Validate(data []byte) error {
	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%s: %w", s.name, err)
	}
	if result.Valid() {
		return nil
	}

	violations := make([]FieldError, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		violations = append(violations, FieldError{Field: field, Message: desc.Description()})
	}
	sort.SliceStable(violations, func(i, j int) bool { return violations[i].Field < violations[j].Field })
	return &ValidationError{Errors: violations}
}

// The embedded schemas compile once, on first use.
var (
	requestValidator = sync.OnceValues(func() (*Schema, error) { return Compile("application_request", requestSchema) })
	resultValidator  = sync.OnceValues(func() (*Schema, error) { return Compile("application_result", resultSchema) })
)

// ValidateRequest validates a raw application request document
func ValidateRequest(data []byte) error {
	schema, err := requestValidator()
	if err != nil {
		return err
	}
	return schema.Validate(data)
}

// ValidateResult validates a raw application result document
func ValidateResult(data []byte) error {
	schema, err := resultValidator()
	if err != nil {
		return err
	}
	return schema.Validate(data)
}
