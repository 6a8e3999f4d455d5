package event

import (
	"errors"
	"fmt"
)

var (
	ErrParse            = errors.New("event: malformed JSON")
	ErrUnknownVariant   = errors.New("event: unknown variant")
	ErrSchemaValidation = errors.New("event: schema validation failed")
)

// ParseError wraps the decoder failure for a body that is not a JSON object.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("event: malformed JSON: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// UnknownVariantError reports a data.type with no registered variant.
type UnknownVariantError struct {
	Type string
}

func (e *UnknownVariantError) Error() string {
	return fmt.Sprintf("event: unknown variant %q", e.Type)
}

func (e *UnknownVariantError) Is(target error) bool { return target == ErrUnknownVariant }

// SchemaValidationError names the first field that is missing, has the wrong
// type, or is not allowed.
type SchemaValidationError struct {
	Field  string
	Reason string
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("event: field %q %s", e.Field, e.Reason)
}

func (e *SchemaValidationError) Is(target error) bool { return target == ErrSchemaValidation }

func missingField(field string) error {
	return &SchemaValidationError{Field: field, Reason: "is required"}
}

func wrongType(field, want string) error {
	return &SchemaValidationError{Field: field, Reason: "must be " + want}
}

func unexpectedField(field string) error {
	return &SchemaValidationError{Field: field, Reason: "is not allowed"}
}
