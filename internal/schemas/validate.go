// Package schemas provides JSON Schema validation of participant assessment data.
package schemas

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/allstarteams/sectional-reports/internal/types"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed assessment.schema.json
var assessmentSchema []byte

var (
	compileOnce sync.Once
	compiled    *gojsonschema.Schema
	compileErr  error
)

// ValidationError represents a schema validation error with field paths
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation error at a specific field
type FieldError struct {
	Field   string
	Message string
}

// SchemaLoadError represents errors loading or parsing the schema itself
type SchemaLoadError struct {
	Path    string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema %s: %s", e.Path, e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:\n")
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

func assessment() (*gojsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiled, compileErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(assessmentSchema))
		if compileErr != nil {
			compileErr = &SchemaLoadError{Path: "assessment.schema.json", Message: "invalid schema", Cause: compileErr}
		}
	})
	return compiled, compileErr
}

// ValidateAssessment checks raw assessment JSON against the embedded schema.
func ValidateAssessment(raw []byte) error {
	schema, err := assessment()
	if err != nil {
		return err
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("failed to read assessment: %w", err)
	}
	return fromResult(result)
}

// ParseAssessment validates raw and decodes it.
func ParseAssessment(raw []byte) (*types.Assessment, error) {
	if err := ValidateAssessment(raw); err != nil {
		return nil, err
	}
	var a types.Assessment
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("failed to decode assessment: %w", err)
	}
	return &a, nil
}

// ValidateJSONString validates JSON string content against schema string content
func ValidateJSONString(schemaContent, jsonContent string) error {
	schemaLoader := gojsonschema.NewStringLoader(schemaContent)
	documentLoader := gojsonschema.NewStringLoader(jsonContent)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return &SchemaLoadError{
			Path:    "(string schema)",
			Message: "schema validation failed during load",
			Cause:   err,
		}
	}
	return fromResult(result)
}

func fromResult(result *gojsonschema.Result) error {
	if result.Valid() {
		return nil
	}

	validationErr := &ValidationError{
		Errors: make([]FieldError, 0, len(result.Errors())),
	}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Message: desc.Description(),
		})
	}
	return validationErr
}
