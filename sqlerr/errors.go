// Package sqlerr defines the error kinds returned by every public entry point
// of the generator: file access, template validation, schema and configuration
// errors. Callers test for a kind with errors.Is against one of the sentinels
// and recover the details with errors.As.
package sqlerr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFile is the kind of errors raised when a file is missing, unreadable
	// or cannot be decoded.
	ErrFile = errors.New("file error")

	// ErrSQLValidation is the kind of errors raised for malformed templates:
	// missing class comment, invalid or reserved identifiers.
	ErrSQLValidation = errors.New("SQL validation error")

	// ErrSchema is the kind of errors raised for CREATE TABLE statements that
	// match but define no usable column.
	ErrSchema = errors.New("schema error")

	// ErrConfiguration is the kind of errors raised for invalid configuration.
	ErrConfiguration = errors.New("configuration error")
)

// Error carries the kind of a failure along with the file it concerns.
type Error struct {
	Kind    error
	Path    string
	Message string
	Details string
	Err     error
}

func (e *Error) Error() string {
	var sb strings.Builder

	sb.WriteString(e.Kind.Error())

	if e.Path != "" {
		sb.WriteString(" in ")
		sb.WriteString(e.Path)
	}

	sb.WriteString(": ")
	sb.WriteString(e.Message)

	if e.Details != "" {
		sb.WriteString(" (")
		sb.WriteString(e.Details)
		sb.WriteString(")")
	}

	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}

	return sb.String()
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.Err}
}

// File returns an ErrFile for path.
func File(path string, err error, format string, args ...any) *Error {
	return &Error{Kind: ErrFile, Path: path, Message: fmt.Sprintf(format, args...), Err: err}
}

// Validation returns an ErrSQLValidation for path.
func Validation(path, format string, args ...any) *Error {
	return &Error{Kind: ErrSQLValidation, Path: path, Message: fmt.Sprintf(format, args...)}
}

// Schema returns an ErrSchema for path.
func Schema(path, format string, args ...any) *Error {
	return &Error{Kind: ErrSchema, Path: path, Message: fmt.Sprintf(format, args...)}
}

// Configuration returns an ErrConfiguration wrapping err.
func Configuration(path string, err error, format string, args ...any) *Error {
	return &Error{Kind: ErrConfiguration, Path: path, Message: fmt.Sprintf(format, args...), Err: err}
}

// WithPath returns a copy of err with Path set when err is an *Error without
// a path. Any other error is returned unchanged.
func WithPath(err error, path string) error {
	var e *Error
	if !errors.As(err, &e) || e.Path != "" {
		return err
	}

	c := *e
	c.Path = path

	return &c
}
