package query

import (
	"errors"
	"fmt"

	"github.com/hashicorp-forge/dwclient/pkg/schema"
)

var (
	// ErrUnknownField means the expression names a field the dialog does
	// not have.
	ErrUnknownField = errors.New("unknown field")

	// ErrValueType means a value cannot be coerced to its field's type.
	ErrValueType = errors.New("invalid value for field type")

	// ErrSyntax means the expression is malformed.
	ErrSyntax = errors.New("invalid query syntax")
)

// UnknownFieldError names a field missing from the schema.
type UnknownFieldError struct {
	Field    string
	DialogID string
}

func (e *UnknownFieldError) Error() string {
	if e.DialogID != "" {
		return fmt.Sprintf("%s %q in dialog %s", ErrUnknownField, e.Field, e.DialogID)
	}
	return fmt.Sprintf("%s %q", ErrUnknownField, e.Field)
}

func (e *UnknownFieldError) Unwrap() error {
	return ErrUnknownField
}

// ValueTypeError reports a value that failed coercion.
type ValueTypeError struct {
	Field string
	Type  schema.FieldType
	Value string
	Msg   string
	Err   error
}

func (e *ValueTypeError) Error() string {
	msg := fmt.Sprintf("%s: field %q (%s) value %q", ErrValueType, e.Field, e.Type, e.Value)
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ValueTypeError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrValueType}
	}
	return []error{ErrValueType, e.Err}
}

// SyntaxError reports a malformed condition.
type SyntaxError struct {
	Condition string
	Msg       string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: %s in %q", ErrSyntax, e.Msg, e.Condition)
}

func (e *SyntaxError) Unwrap() error {
	return ErrSyntax
}
