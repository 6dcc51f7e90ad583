package effects

import (
	"errors"

	"github.com/on-the-ground/fiber_ive_go/effects/cause"
	"github.com/on-the-ground/fiber_ive_go/shared/helper"
)

var (
	// ErrNilEffect is the defect raised when a zero Effect is run.
	ErrNilEffect = errors.New("nil effect")
	// ErrNoSuchElement is the failure of Head on an empty slice.
	ErrNoSuchElement = errors.New("no such element")
)

// Effect is an immutable description of a computation that needs an
// environment R, may fail with E and succeeds with A.
// Nothing happens until the description is run by a Runtime.
type Effect[R, E, A any] struct {
	instr instruction
}

var nilEffect = dieInstr(ErrNilEffect)

func (e Effect[R, E, A]) node() instruction {
	if e.instr == nil {
		return nilEffect
	}
	return e.instr
}

func wrap[R, E, A any](i instruction) Effect[R, E, A] {
	return Effect[R, E, A]{instr: i}
}

// Succeed describes a computation that succeeds with a.
func Succeed[R, E, A any](a A) Effect[R, E, A] {
	return wrap[R, E, A](&succeedInstr{value: a})
}

// Unit succeeds with the empty struct.
func Unit[R, E any]() Effect[R, E, struct{}] {
	return wrap[R, E, struct{}](theUnit)
}

// Fail describes a computation that fails with the typed failure e.
func Fail[R, E, A any](e E) Effect[R, E, A] {
	return Halt[R, E, A](cause.Fail(e))
}

// Halt describes a computation that fails with c.
func Halt[R, E, A any](c cause.Cause[E]) Effect[R, E, A] {
	return wrap[R, E, A](&failInstr{cause: func() cause.Cause[any] { return eraseCause(c) }})
}

// Die describes a computation that fails with the defect err.
func Die[R, E, A any](err error) Effect[R, E, A] {
	return wrap[R, E, A](dieInstr(err))
}

// Done describes a computation that ends with exit.
func Done[R, E, A any](exit cause.Exit[E, A]) Effect[R, E, A] {
	if a, ok := exit.Value(); ok {
		return Succeed[R, E](a)
	}
	return Halt[R, E, A](exit.Cause())
}

// Sync describes a side effect that cannot fail. A panic in thunk becomes a
// defect.
func Sync[R, E, A any](thunk func() A) Effect[R, E, A] {
	return wrap[R, E, A](&syncInstr{thunk: func() any { return thunk() }})
}

// Attempt describes a side effect reported the Go way. A non-nil error
// becomes the typed failure.
func Attempt[R, A any](thunk func() (A, error)) Effect[R, error, A] {
	return Suspend(func() Effect[R, error, A] {
		a, err := thunk()
		if err != nil {
			return Fail[R, error, A](err)
		}
		return Succeed[R, error](a)
	})
}

// Suspend defers the construction of an effect until it is run.
func Suspend[R, E, A any](thunk func() Effect[R, E, A]) Effect[R, E, A] {
	return wrap[R, E, A](&suspendInstr{thunk: func() instruction { return thunk().node() }})
}

// FlatMap sequences eff with the effect k builds from its result.
func FlatMap[R, E, A, B any](eff Effect[R, E, A], k func(A) Effect[R, E, B]) Effect[R, E, B] {
	return wrap[R, E, B](&flatMapInstr{
		first: eff.node(),
		k:     func(a any) instruction { return k(helper.Cast[A](a)).node() },
	})
}

// FoldCauseM recovers from any failure of eff with onFailure, which sees the
// full cause, or continues with onSuccess.
func FoldCauseM[R, E, E2, A, B any](
	eff Effect[R, E, A],
	onFailure func(cause.Cause[E]) Effect[R, E2, B],
	onSuccess func(A) Effect[R, E2, B],
) Effect[R, E2, B] {
	return wrap[R, E2, B](&foldInstr{
		first:     eff.node(),
		onFailure: func(c cause.Cause[any]) instruction { return onFailure(castCause[E](c)).node() },
		onSuccess: func(a any) instruction { return onSuccess(helper.Cast[A](a)).node() },
	})
}

// Async suspends the running fiber until complete is called. complete is
// single-use: every call after the first is ignored.
func Async[R, E, A any](register func(complete func(cause.Exit[E, A]))) Effect[R, E, A] {
	return AsyncInterrupt[R, E, A](func(complete func(cause.Exit[E, A])) func() {
		register(complete)
		return nil
	})
}

// AsyncInterrupt is Async with a canceler. When the fiber is interrupted
// while suspended, the returned cancel func is called and the fiber resumes
// with the interruption.
func AsyncInterrupt[R, E, A any](register func(complete func(cause.Exit[E, A])) (cancel func())) Effect[R, E, A] {
	return wrap[R, E, A](&asyncInstr{
		register: func(resume func(instruction)) func() {
			return register(func(exit cause.Exit[E, A]) {
				resume(Done[R](exit).node())
			})
		},
	})
}

// Never suspends forever. Only interruption ends it.
func Never[R, E, A any]() Effect[R, E, A] {
	return Async[R, E, A](func(func(cause.Exit[E, A])) {})
}

// Yield gives the worker back to other runnable fibers.
func Yield[R, E any]() Effect[R, E, struct{}] {
	return wrap[R, E, struct{}](&yieldInstr{})
}

// Fork starts eff on a new child fiber owned by the current fiber and
// returns immediately. A child still running when its parent completes is
// interrupted and awaited before the parent's exit is published.
func Fork[R, E, A any](eff Effect[R, E, A]) Effect[R, E, Fiber[E, A]] {
	return wrap[R, E, Fiber[E, A]](&flatMapInstr{
		first: &forkInstr{effect: eff.node()},
		k: func(v any) instruction {
			return &succeedInstr{value: Fiber[E, A]{ctx: v.(*fiberContext)}}
		},
	})
}

// ForkDaemon starts eff on a fiber supervised by the runtime instead of the
// current fiber, so it may outlive its creator.
func ForkDaemon[R, E, A any](eff Effect[R, E, A]) Effect[R, E, Fiber[E, A]] {
	return wrap[R, E, Fiber[E, A]](&flatMapInstr{
		first: &forkInstr{effect: eff.node(), daemon: true},
		k: func(v any) instruction {
			return &succeedInstr{value: Fiber[E, A]{ctx: v.(*fiberContext)}}
		},
	})
}

// Provide runs eff with env as its environment. The environment of the
// surrounding description is restored afterwards.
func Provide[R0, R, E, A any](env R, eff Effect[R, E, A]) Effect[R0, E, A] {
	return wrap[R0, E, A](&provideInstr{env: env, effect: eff.node()})
}

// ProvideSome derives the environment of eff from the surrounding one.
func ProvideSome[R0, R, E, A any](f func(R0) R, eff Effect[R, E, A]) Effect[R0, E, A] {
	return AccessM(func(r0 R0) Effect[R0, E, A] {
		return Provide[R0](f(r0), eff)
	})
}

// Access reads a value from the environment.
func Access[R, E, A any](f func(R) A) Effect[R, E, A] {
	return wrap[R, E, A](&accessInstr{
		k: func(env any) instruction { return &succeedInstr{value: f(helper.Cast[R](env))} },
	})
}

// AccessM builds an effect from the environment.
func AccessM[R, E, A any](f func(R) Effect[R, E, A]) Effect[R, E, A] {
	return wrap[R, E, A](&accessInstr{
		k: func(env any) instruction { return f(helper.Cast[R](env)).node() },
	})
}

// Environment succeeds with the whole environment.
func Environment[R, E any]() Effect[R, E, R] {
	return Access[R, E](func(r R) R { return r })
}

func eraseCause[E any](c cause.Cause[E]) cause.Cause[any] {
	if ec, ok := any(c).(cause.Cause[any]); ok {
		return ec
	}
	return cause.Map(c, func(e E) any { return e })
}

func castCause[E any](c cause.Cause[any]) cause.Cause[E] {
	if tc, ok := any(c).(cause.Cause[E]); ok {
		return tc
	}
	return cause.Map(c, helper.Cast[E])
}

func castExit[E, A any](x cause.Exit[any, any]) cause.Exit[E, A] {
	if v, ok := x.Value(); ok {
		return cause.Success[E](helper.Cast[A](v))
	}
	return cause.Failure[E, A](castCause[E](x.Cause()))
}
