// Package errors provides standardized error types and helpers for the Bookshelf codebase.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnsupported indicates an unsupported operation or format
	ErrUnsupported = errors.New("unsupported")
	// ErrEncodingDegraded indicates the source encoding could not be determined
	// reliably and text was decoded lossily
	ErrEncodingDegraded = errors.New("encoding detection degraded")
	// ErrMissingAsset indicates a cover or stylesheet file is absent
	ErrMissingAsset = errors.New("missing asset")
	// ErrEmptyDocument indicates no chapters were detected
	ErrEmptyDocument = errors.New("empty document")
	// ErrMalformedRange indicates an inverted or out-of-bounds ordinal range
	ErrMalformedRange = errors.New("malformed range")
	// ErrConverterFailed indicates the external document converter failed
	ErrConverterFailed = errors.New("external converter failed")
)

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
	Format  string // Format being parsed (e.g., "edit script", "config")
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

func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
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

// EncodingDegradedError reports a lossy or guessed decode. It is never fatal.
type EncodingDegradedError struct {
	Path       string // Source path, if known
	Charset    string // Charset reported by the detector ("" if none)
	Confidence int    // Detector confidence, 0-100
	Dropped    int    // Undecodable sequences dropped
}

func (e *EncodingDegradedError) Error() string {
	charset := e.Charset
	if charset == "" {
		charset = "unknown"
	}
	msg := fmt.Sprintf("encoding detection degraded: charset %s (confidence %d), %d sequences dropped", charset, e.Confidence, e.Dropped)
	if e.Path != "" {
		return e.Path + ": " + msg
	}
	return msg
}

func (e *EncodingDegradedError) Unwrap() error {
	return ErrEncodingDegraded
}

// MissingAssetError represents an absent cover or stylesheet
type MissingAssetError struct {
	Asset string // "cover" or "stylesheet"
	Path  string // Path that was looked up
	Err   error  // Underlying error, if any
}

func (e *MissingAssetError) Error() string {
	return fmt.Sprintf("missing %s asset: %s", e.Asset, e.Path)
}

func (e *MissingAssetError) Unwrap() error {
	if e.Err != nil {
		return errors.Join(ErrMissingAsset, e.Err)
	}
	return ErrMissingAsset
}

// EmptyDocumentError is returned when segmentation produced zero chapters
type EmptyDocumentError struct {
	Source string
}

func (e *EmptyDocumentError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("no chapters detected in %s", e.Source)
	}
	return "no chapters detected"
}

func (e *EmptyDocumentError) Unwrap() error {
	return ErrEmptyDocument
}

// MalformedRangeError represents a rejected merge or rename range
type MalformedRangeError struct {
	Start  int
	End    int
	Len    int    // Number of records in the book
	Reason string // Why the range was rejected
}

func (e *MalformedRangeError) Error() string {
	return fmt.Sprintf("malformed range [%d,%d] over %d chapters: %s", e.Start, e.End, e.Len, e.Reason)
}

func (e *MalformedRangeError) Unwrap() error {
	return ErrMalformedRange
}

// ConverterError represents a failed external conversion. WorkDir holds the
// intermediate manuscript, left on disk for inspection.
type ConverterError struct {
	Command string
	Output  string
	WorkDir string
	Err     error
}

func (e *ConverterError) Error() string {
	msg := fmt.Sprintf("%s failed: %v", e.Command, e.Err)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	if e.WorkDir != "" {
		msg += " (manuscript kept in " + e.WorkDir + ")"
	}
	return msg
}

func (e *ConverterError) Unwrap() error {
	if e.Err != nil {
		return errors.Join(ErrConverterFailed, e.Err)
	}
	return ErrConverterFailed
}

// Helper functions for creating common errors

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

// NewMalformedRange creates a MalformedRangeError
func NewMalformedRange(start, end, n int, reason string) *MalformedRangeError {
	return &MalformedRangeError{
		Start:  start,
		End:    end,
		Len:    n,
		Reason: reason,
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
