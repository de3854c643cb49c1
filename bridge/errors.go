package bridge

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by every Bridge operation after Close.
	ErrClosed = errors.New("bridge closed")

	// ErrInterpClosed is returned when a command or a conversion needs an
	// interpreter instance that has already been released. Results of
	// asynchronous commands hit this for List and Strings, because their
	// isolated instance is discarded once the command completes.
	ErrInterpClosed = errors.New("interpreter instance closed")
)

// EvalError is an execution failure: the interpreter rejected or failed
// the command, or the interpreter capability itself misbehaved.
type EvalError struct {
	Script  string
	Message string
	Code    string
	Info    string
	Err     error
}

func (e *EvalError) Error() string {
	return e.Message
}

func (e *EvalError) Unwrap() error {
	return e.Err
}

// newEvalError turns whatever the capability returned into an *EvalError
// carrying a non-empty diagnostic.
func newEvalError(script string, err error) *EvalError {
	var ee *EvalError
	if errors.As(err, &ee) {
		out := *ee
		if out.Script == "" {
			out.Script = script
		}
		if out.Message == "" {
			out.Message = "command failed"
		}
		return &out
	}

	msg := "command failed"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return &EvalError{Script: script, Message: msg, Err: err}
}

func panicError(script string, v any) *EvalError {
	return &EvalError{
		Script:  script,
		Message: fmt.Sprintf("interpreter panic: %v", v),
		Err:     fmt.Errorf("panic: %v", v),
	}
}

// ConversionError reports that a value cannot be represented in the
// requested shape.
type ConversionError struct {
	Value string
	Kind  string
	Err   error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("expected %s but got %q", e.Kind, e.Value)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}
