package cause

import (
	"errors"
	"fmt"
	"runtime/debug"

	"go.uber.org/multierr"
)

var (
	// ErrInterrupted is wrapped by every error produced from an interruption.
	ErrInterrupted = errors.New("fiber interrupted")
	// ErrNilDefect replaces a nil defect passed to Die.
	ErrNilDefect = errors.New("nil defect")
)

// FailureError wraps a typed failure that is not itself an error.
type FailureError struct {
	Value any
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("failure: %v", e.Value)
}

// InterruptedError reports an interruption requested by a fiber.
type InterruptedError struct {
	By FiberID
}

func (e *InterruptedError) Error() string {
	return fmt.Sprintf("interrupted by fiber %v", e.By)
}

func (e *InterruptedError) Unwrap() error { return ErrInterrupted }

// PanicError is the defect recorded when user code panics with a value.
type PanicError struct {
	Value any
	Stack []byte
}

// NewPanicError captures the current goroutine's stack along with v.
func NewPanicError(v any) *PanicError {
	return &PanicError{Value: v, Stack: debug.Stack()}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// FailureAsError converts a typed failure into an error.
func FailureAsError(v any) error {
	if err, ok := v.(error); ok && err != nil {
		return err
	}
	return &FailureError{Value: v}
}

func (EmptyCause[E]) Err() error       { return nil }
func (c FailCause[E]) Err() error      { return FailureAsError(c.Value) }
func (c DieCause[E]) Err() error       { return c.Defect }
func (c InterruptCause[E]) Err() error { return &InterruptedError{By: c.By} }
func (c ThenCause[E]) Err() error      { return multierr.Combine(c.Left.Err(), c.Right.Err()) }
func (c BothCause[E]) Err() error      { return multierr.Combine(c.Left.Err(), c.Right.Err()) }
