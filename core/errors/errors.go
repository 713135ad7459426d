// Package errors provides standardized error types and helpers for the mmdb codebase.
//
// Every kernel failure belongs to exactly one class: structural, reference,
// encoding or capacity. Typed errors unwrap to the specific sentinel and match
// their class sentinel through errors.Is.
package errors

import (
	"errors"
	"fmt"
)

// Class sentinels.
var (
	// ErrStructural covers duplicate symbols/labels, scope misuse and empty proofs.
	ErrStructural = errors.New("structural error")
	// ErrReference covers undefined, forward or out-of-scope references.
	ErrReference = errors.New("reference error")
	// ErrEncoding covers compressed-proof alphabet violations.
	ErrEncoding = errors.New("encoding error")
	// ErrCapacity indicates the sequence-number space is exhausted.
	ErrCapacity = errors.New("capacity error")
)

// Structural conditions.
var (
	ErrDuplicateSymbol = errors.New("duplicate symbol")
	ErrDuplicateLabel  = errors.New("duplicate label")
	ErrScope           = errors.New("scope error")
	ErrEmptyProof      = errors.New("empty proof")
	ErrBadFormula      = errors.New("malformed formula")
	ErrMalformedProof  = errors.New("malformed proof")
)

// Reference conditions.
var (
	ErrUndefinedSymbol    = errors.New("undefined symbol")
	ErrUndefinedStatement = errors.New("undefined statement")
	ErrForwardReference   = errors.New("forward reference")
	ErrInactiveHypothesis = errors.New("inactive hypothesis")
)

// Encoding conditions.
var (
	ErrPrematureEnd     = errors.New("premature end of compressed proof")
	ErrInvalidCharacter = errors.New("invalid character in compressed proof")
	ErrMalformedRepeat  = errors.New("misplaced repeat marker")
	ErrMalformedUnknown = errors.New("misplaced unknown-step marker")
	ErrIndexRange       = errors.New("compressed proof index out of range")
)

// Capacity and checkpoint conditions.
var (
	ErrSequenceOverflow = errors.New("sequence number overflow")
	// ErrCheckpointOpen is returned when a checkpoint is opened while another is open.
	ErrCheckpointOpen = errors.New("checkpoint already open")
	// ErrNoCheckpoint is returned by commit/rollback when no checkpoint is open.
	ErrNoCheckpoint = errors.New("no checkpoint open")
)

// Generic sentinels used outside the kernel.
var (
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
)

var classOf = map[error]error{
	ErrDuplicateSymbol:    ErrStructural,
	ErrDuplicateLabel:     ErrStructural,
	ErrScope:              ErrStructural,
	ErrEmptyProof:         ErrStructural,
	ErrBadFormula:         ErrStructural,
	ErrMalformedProof:     ErrStructural,
	ErrUndefinedSymbol:    ErrReference,
	ErrUndefinedStatement: ErrReference,
	ErrForwardReference:   ErrReference,
	ErrInactiveHypothesis: ErrReference,
	ErrPrematureEnd:       ErrEncoding,
	ErrInvalidCharacter:   ErrEncoding,
	ErrMalformedRepeat:    ErrEncoding,
	ErrMalformedUnknown:   ErrEncoding,
	ErrIndexRange:         ErrEncoding,
	ErrSequenceOverflow:   ErrCapacity,
}

// ClassOf returns the class sentinel err belongs to, or nil when err is not a
// kernel error.
func ClassOf(err error) error {
	if err == nil {
		return nil
	}
	for _, class := range []error{ErrStructural, ErrReference, ErrEncoding, ErrCapacity} {
		if errors.Is(err, class) {
			return class
		}
	}
	return nil
}

// IsFatal reports whether err must stop a whole load rather than just the
// current statement.
func IsFatal(err error) bool {
	return errors.Is(err, ErrCapacity)
}

// Position locates a statement in its source.
type Position struct {
	File   string
	Line   int
	Column int
}

// IsZero reports whether no position information is present.
func (p Position) IsZero() bool {
	return p.File == "" && p.Line == 0
}

func (p Position) String() string {
	switch {
	case p.IsZero():
		return ""
	case p.File == "":
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	default:
		return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
	}
}

// KernelError is a failure of one kernel operation, tagged with the offending
// label or symbol id and its source position.
type KernelError struct {
	Kind    error    // Specific sentinel (e.g. ErrDuplicateLabel)
	Label   string   // Offending label or symbol id
	Pos     Position // Source position, if known
	Message string   // Human-readable detail
	Err     error    // Underlying error, if any
}

func (e *KernelError) Error() string {
	msg := e.Kind.Error()
	if e.Label != "" {
		msg = fmt.Sprintf("%s %q", msg, e.Label)
	}
	if e.Message != "" {
		msg = msg + ": " + e.Message
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if pos := e.Pos.String(); pos != "" {
		msg = pos + ": " + msg
	}
	return msg
}

func (e *KernelError) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Is matches the class sentinel of the error's kind.
func (e *KernelError) Is(target error) bool {
	return classOf[e.Kind] == target
}

// EncodingError is a compressed-proof decoding failure at an absolute character
// offset across all concatenated blocks.
type EncodingError struct {
	Offset int   // Absolute offset of the offending character
	Char   byte  // Offending character, 0 at end of input
	Err    error // Specific encoding sentinel
}

func (e *EncodingError) Error() string {
	if e.Char == 0 {
		return fmt.Sprintf("%v at offset %d", e.Err, e.Offset)
	}
	return fmt.Sprintf("%v: %q at offset %d", e.Err, e.Char, e.Offset)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// Is matches ErrEncoding.
func (e *EncodingError) Is(target error) bool {
	return target == ErrEncoding
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

// ParseError represents a source syntax error reported by the loader
type ParseError struct {
	Pos     Position // Where parsing failed
	Message string   // Error details
	Err     error    // Underlying error, if any
}

func (e *ParseError) Error() string {
	if pos := e.Pos.String(); pos != "" {
		return fmt.Sprintf("syntax error at %s: %s", pos, e.Message)
	}
	return fmt.Sprintf("syntax error: %s", e.Message)
}

func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string // Field name that failed validation
	Message string // Human-readable error message
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// Helper functions for creating common errors

// New creates a KernelError of the given kind.
func New(kind error, label, message string) *KernelError {
	return &KernelError{Kind: kind, Label: label, Message: message}
}

// Newf creates a KernelError with a formatted message.
func Newf(kind error, label, format string, args ...interface{}) *KernelError {
	return &KernelError{Kind: kind, Label: label, Message: fmt.Sprintf(format, args...)}
}

// At attaches a source position to err when it is a KernelError without one.
func At(err error, pos Position) error {
	var ke *KernelError
	if errors.As(err, &ke) && ke.Pos.IsZero() {
		ke.Pos = pos
	}
	return err
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
func NewParse(pos Position, message string) *ParseError {
	return &ParseError{
		Pos:     pos,
		Message: message,
	}
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
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
