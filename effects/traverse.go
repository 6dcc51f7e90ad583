package effects

import (
	"slices"

	"go.uber.org/multierr"
)

// Both is what Traverse needs from a target type: FA holds one A and FS
// holds an ordered run of them. It is the succeed/map/both contract with
// map fixed to the only function Traverse maps with, a => []A{a}; Go
// methods cannot take type parameters, so a general map has no place here.
type Both[FA, FS, A any] interface {
	// Succeed lifts an already known run.
	Succeed(as []A) FS
	// Lift maps a single FA into a run of one.
	Lift(fa FA) FS
	// Both joins two runs, left first.
	Both(l, r FS) FS
}

// Traverse maps every element of as with f and joins the results with c,
// splitting the input in halves so joins nest logarithmically.
func Traverse[FA, FS, A, B any](c Both[FA, FS, B], as []A, f func(A) FA) FS {
	switch len(as) {
	case 0:
		return c.Succeed([]B{})
	case 1:
		return c.Lift(f(as[0]))
	default:
		mid := len(as) / 2
		return c.Both(Traverse(c, as[:mid], f), Traverse(c, as[mid:], f))
	}
}

type sequentialBoth[R, E, A any] struct{}

func (sequentialBoth[R, E, A]) Succeed(as []A) Effect[R, E, []A] { return Succeed[R, E](as) }

func (sequentialBoth[R, E, A]) Lift(fa Effect[R, E, A]) Effect[R, E, []A] {
	return Map(fa, func(a A) []A { return []A{a} })
}

func (sequentialBoth[R, E, A]) Both(l, r Effect[R, E, []A]) Effect[R, E, []A] {
	return ZipWith(l, r, concat[A])
}

// SequentialBoth joins effects one after the other.
func SequentialBoth[R, E, A any]() Both[Effect[R, E, A], Effect[R, E, []A], A] {
	return sequentialBoth[R, E, A]{}
}

type parallelBoth[R, E, A any] struct{ sequentialBoth[R, E, A] }

func (parallelBoth[R, E, A]) Both(l, r Effect[R, E, []A]) Effect[R, E, []A] {
	return ZipWithPar(l, r, concat[A])
}

// ParallelBoth joins effects on concurrent fibers with ZipWithPar.
func ParallelBoth[R, E, A any]() Both[Effect[R, E, A], Effect[R, E, []A], A] {
	return parallelBoth[R, E, A]{}
}

// Result is a synchronous computation's outcome, the Go way.
type Result[A any] struct {
	Value A
	Err   error
}

type resultBoth[A any] struct{}

func (resultBoth[A]) Succeed(as []A) Result[[]A] { return Result[[]A]{Value: as} }

func (resultBoth[A]) Lift(fa Result[A]) Result[[]A] {
	if fa.Err != nil {
		return Result[[]A]{Err: fa.Err}
	}
	return Result[[]A]{Value: []A{fa.Value}}
}

func (resultBoth[A]) Both(l, r Result[[]A]) Result[[]A] {
	if err := multierr.Combine(l.Err, r.Err); err != nil {
		return Result[[]A]{Err: err}
	}
	return Result[[]A]{Value: concat(l.Value, r.Value)}
}

// ResultBoth joins synchronous results, keeping every error.
func ResultBoth[A any]() Both[Result[A], Result[[]A], A] {
	return resultBoth[A]{}
}

func concat[A any](l, r []A) []A {
	return slices.Concat(l, r)
}
