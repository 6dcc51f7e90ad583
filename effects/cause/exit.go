package cause

import "fmt"

// Exit is the terminal outcome of a computation: a success value or a Cause.
type Exit[E, A any] struct {
	value   A
	cause   Cause[E]
	success bool
}

// Success returns a successful exit.
func Success[E, A any](a A) Exit[E, A] {
	return Exit[E, A]{value: a, success: true}
}

// Failure returns a failed exit.
func Failure[E, A any](c Cause[E]) Exit[E, A] {
	return Exit[E, A]{cause: orEmpty(c)}
}

// FailureOf returns an exit failed with the typed failure e.
func FailureOf[E, A any](e E) Exit[E, A] {
	return Failure[E, A](Fail(e))
}

// IsSuccess reports whether the exit holds a value.
func (x Exit[E, A]) IsSuccess() bool { return x.success }

// IsFailure reports whether the exit holds a cause.
func (x Exit[E, A]) IsFailure() bool { return !x.success }

// Value returns the success value.
func (x Exit[E, A]) Value() (A, bool) { return x.value, x.success }

// Cause returns the failure cause, or Empty for a success.
func (x Exit[E, A]) Cause() Cause[E] {
	if x.success || x.cause == nil {
		return EmptyCause[E]{}
	}
	return x.cause
}

// Result converts the exit into the usual Go pair.
func (x Exit[E, A]) Result() (A, error) {
	if x.success {
		return x.value, nil
	}
	return x.value, x.Cause().Err()
}

// Interrupted reports whether the exit failed with an interruption.
func (x Exit[E, A]) Interrupted() bool {
	return !x.success && Interrupted(x.Cause())
}

func (x Exit[E, A]) String() string {
	if x.success {
		return fmt.Sprintf("Success(%v)", x.value)
	}
	return fmt.Sprintf("Failure(%v)", x.Cause())
}

// MapExit transforms the success value of x.
func MapExit[E, A, B any](x Exit[E, A], f func(A) B) Exit[E, B] {
	if x.success {
		return Success[E](f(x.value))
	}
	return Failure[E, B](x.cause)
}

// MapExitError transforms the typed failures of x.
func MapExitError[E, E2, A any](x Exit[E, A], f func(E) E2) Exit[E2, A] {
	if x.success {
		return Success[E2](x.value)
	}
	return Failure[E2, A](Map(x.Cause(), f))
}

// ZipExitWith combines two exits. Values are merged with f; causes are
// composed with combine when both sides failed.
func ZipExitWith[E, A, B, C any](
	l Exit[E, A],
	r Exit[E, B],
	f func(A, B) C,
	combine func(Cause[E], Cause[E]) Cause[E],
) Exit[E, C] {
	switch {
	case l.success && r.success:
		return Success[E](f(l.value, r.value))
	case !l.success && !r.success:
		return Failure[E, C](combine(l.Cause(), r.Cause()))
	case !l.success:
		return Failure[E, C](l.Cause())
	default:
		return Failure[E, C](r.Cause())
	}
}

// Kind classifies an exit for reporting.
type Kind uint8

const (
	KindSuccess Kind = iota
	KindFailure
	KindDefect
	KindInterrupted
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindFailure:
		return "failure"
	case KindDefect:
		return "defect"
	case KindInterrupted:
		return "interrupted"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// KindOf classifies x. Defects take precedence over interruptions, which
// take precedence over typed failures.
func KindOf[E, A any](x Exit[E, A]) Kind {
	c := x.Cause()
	switch {
	case x.success:
		return KindSuccess
	case Died(c):
		return KindDefect
	case Interrupted(c):
		return KindInterrupted
	default:
		return KindFailure
	}
}
