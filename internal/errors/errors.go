// Package errors defines the IRIS error taxonomy (spec.md §7).
//
// Every fallible operation in alloc/heap/value/bytecode/vm returns a plain
// Go error; callers that need the concrete kind type-assert to *IrisError
// and switch on its Type. Wrapping preserves the underlying cause via
// github.com/pkg/errors so a position can be attached at any layer without
// losing the original failure.
package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorType names one taxonomy bucket from spec.md §7.
type ErrorType string

const (
	// Allocation
	BadRequest  ErrorType = "BadRequest"
	OutOfMemory ErrorType = "OutOfMemory"

	// Container
	BoundsError          ErrorType = "BoundsError"
	MutableBorrowError   ErrorType = "MutableBorrowError"
	BadAllocationRequest ErrorType = "BadAllocationRequest"

	// Numeric
	IntOverflow ErrorType = "IntOverflow"
	MulOrDivBy0 ErrorType = "MulOrDivBy0"

	// VM
	TypeError       ErrorType = "TypeError"
	BadContext      ErrorType = "BadContext"
	ExpectedZero    ErrorType = "ExpectedZero"
	FracUnification ErrorType = "FracUnification"
	LessThanElim    ErrorType = "LessThanElim"
	NullPointer     ErrorType = "NullPointer"

	// Host-facing
	IOError    ErrorType = "IOError"
	LexerError ErrorType = "LexerError"
	ParseError ErrorType = "ParseError"
	EvalError  ErrorType = "EvalError"
)

// SourcePosition is the optional position attached to an error, supplied
// by the compiler collaborator that produced the bytecode.
type SourcePosition struct {
	File   string
	Line   int
	Column int
}

func (p SourcePosition) isSet() bool { return p.File != "" || p.Line != 0 }

// IrisError is the concrete error type returned across the core.
type IrisError struct {
	Type     ErrorType
	Message  string
	Position SourcePosition
	Source   string // source line text, if available
	cause    error
}

func (e *IrisError) Error() string {
	if e.Position.isSet() {
		if e.Source != "" {
			return fmt.Sprintf("%s: %s (at %s:%d:%d)\n  %d | %s",
				e.Type, e.Message, e.Position.File, e.Position.Line, e.Position.Column,
				e.Position.Line, e.Source)
		}
		return fmt.Sprintf("%s: %s (at %s:%d:%d)",
			e.Type, e.Message, e.Position.File, e.Position.Line, e.Position.Column)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *IrisError) Unwrap() error { return e.cause }

// Cause returns the innermost error pkg/errors can find, or e itself.
func (e *IrisError) Cause() error {
	if e.cause == nil {
		return e
	}
	return errors.Cause(e.cause)
}

// New builds an IrisError with no position and no wrapped cause.
func New(t ErrorType, format string, args ...interface{}) *IrisError {
	return &IrisError{Type: t, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches t and a message to an existing error, preserving it as
// the cause chain.
func Wrap(cause error, t ErrorType, format string, args ...interface{}) *IrisError {
	return &IrisError{
		Type:    t,
		Message: fmt.Sprintf(format, args...),
		cause:   errors.WithStack(cause),
	}
}

// WithPosition attaches a source position, returning e for chaining.
func (e *IrisError) WithPosition(pos SourcePosition) *IrisError {
	e.Position = pos
	return e
}

// WithSource attaches the literal source line, returning e for chaining.
func (e *IrisError) WithSource(line string) *IrisError {
	e.Source = line
	return e
}

// Is reports whether err is an *IrisError of type t.
func Is(err error, t ErrorType) bool {
	ie, ok := err.(*IrisError)
	return ok && ie.Type == t
}
