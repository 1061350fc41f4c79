// Package errors provides standardized error types and helpers for the bdoc codebase.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
	// ErrAlreadyExists indicates a resource already exists
	ErrAlreadyExists = errors.New("already exists")
	// ErrInternal indicates an internal system error
	ErrInternal = errors.New("internal error")
	// ErrUnsupported indicates an unsupported operation or format
	ErrUnsupported = errors.New("unsupported")
	// ErrOutOfRange indicates an offset outside the addressable range of a text
	ErrOutOfRange = errors.New("offset out of range")
	// ErrIntegrity indicates two representations of the same annotation disagree
	ErrIntegrity = errors.New("integrity violation")
	// ErrMissingTarget indicates a command addressed an annotation or set that does not exist
	ErrMissingTarget = errors.New("missing target")
	// ErrPrecondition indicates an operation was invoked on a document that cannot support it
	ErrPrecondition = errors.New("precondition failed")
	// ErrFormatVersion indicates a binary stream carries an unexpected version tag
	ErrFormatVersion = errors.New("unsupported format version")
)

// NotFoundError represents a resource not found error with context
type NotFoundError struct {
	Resource string // Type of resource (e.g., "document", "annotation set", "feature")
	ID       string // Identifier of the resource
	Err      error  // Underlying error, if any
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string // Field name that failed validation
	Value   string // Value that failed validation (may be redacted)
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// IOError represents an I/O operation error with context
type IOError struct {
	Operation string // Operation being performed (e.g., "read", "write", "open")
	Path      string // File/resource path involved
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ParseError represents a parsing or deserialization error
type ParseError struct {
	Format  string // Format being parsed (e.g., "JSON", "YAML", "MsgPack")
	Path    string // File path, if applicable
	Message string // Error details
	Err     error  // Underlying error, if any
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to parse %s at %s: %s", e.Format, e.Path, e.Message)
	}
	return fmt.Sprintf("failed to parse %s: %s", e.Format, e.Message)
}

// Unwrap reports both ErrInvalidInput and the underlying cause.
func (e *ParseError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidInput, e.Err}
	}
	return []error{ErrInvalidInput}
}

// UnsupportedError represents an unsupported feature or format
type UnsupportedError struct {
	Feature string // Feature or format that is unsupported
	Reason  string // Why it's not supported
	Err     error  // Underlying error, if any
}

func (e *UnsupportedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported %s: %s", e.Feature, e.Reason)
	}
	return fmt.Sprintf("unsupported %s", e.Feature)
}

func (e *UnsupportedError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrUnsupported
}

// RangeError is returned by offset lookups outside [0, Length].
type RangeError struct {
	Convention string // Convention of the rejected offset ("code unit" or "code point")
	Offset     int64
	Length     int64 // Largest legal offset (the text length in Convention)
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s offset %d outside of range [0, %d]", e.Convention, e.Offset, e.Length)
}

func (e *RangeError) Unwrap() error {
	return ErrOutOfRange
}

// IntegrityError reports an incoming annotation whose span differs from the
// stored annotation carrying the same id.
type IntegrityError struct {
	Set           string
	ID            int64
	StoredStart   int64
	StoredEnd     int64
	IncomingStart int64
	IncomingEnd   int64
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("annotation %d in set %q: span [%d,%d) does not match stored span [%d,%d)",
		e.ID, e.Set, e.IncomingStart, e.IncomingEnd, e.StoredStart, e.StoredEnd)
}

func (e *IntegrityError) Unwrap() error {
	return ErrIntegrity
}

// MissingTargetError reports a command whose annotation or set is absent
// where the command requires it to exist.
type MissingTargetError struct {
	Command string
	Set     string
	ID      int64
}

func (e *MissingTargetError) Error() string {
	return fmt.Sprintf("%s: annotation %d does not exist in set %q", e.Command, e.ID, e.Set)
}

func (e *MissingTargetError) Unwrap() error {
	return ErrMissingTarget
}

// PreconditionError reports an operation that the document state cannot support.
type PreconditionError struct {
	Operation string
	Reason    string
}

func (e *PreconditionError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("cannot %s: %s", e.Operation, e.Reason)
	}
	return fmt.Sprintf("precondition failed: %s", e.Reason)
}

func (e *PreconditionError) Unwrap() error {
	return ErrPrecondition
}

// FormatVersionError reports a binary stream whose leading tag is not the expected literal.
type FormatVersionError struct {
	Got  string
	Want string
}

func (e *FormatVersionError) Error() string {
	return fmt.Sprintf("format version %q is not supported, expected %q", e.Got, e.Want)
}

func (e *FormatVersionError) Unwrap() error {
	return ErrFormatVersion
}

// Helper functions for creating common errors

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewIO creates an IOError
func NewIO(operation, path string, err error) *IOError {
	return &IOError{
		Operation: operation,
		Path:      path,
		Err:       err,
	}
}

// NewParse creates a ParseError
func NewParse(format, path, message string) *ParseError {
	return &ParseError{
		Format:  format,
		Path:    path,
		Message: message,
	}
}

// NewUnsupported creates an UnsupportedError
func NewUnsupported(feature, reason string) *UnsupportedError {
	return &UnsupportedError{
		Feature: feature,
		Reason:  reason,
	}
}

// NewPrecondition creates a PreconditionError
func NewPrecondition(operation, reason string) *PreconditionError {
	return &PreconditionError{
		Operation: operation,
		Reason:    reason,
	}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
