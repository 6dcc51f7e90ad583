// Package managed composes resource acquisition and release.
//
// A Managed value describes how to acquire a resource into a Scope. Use is
// the only way to consume it: the scope is closed when the body is done,
// whether it succeeded, failed, died or was interrupted, and every
// finalizer runs exactly once, in reverse order of acquisition.
package managed

import (
	"github.com/on-the-ground/fiber_ive_go/effects"
	"github.com/on-the-ground/fiber_ive_go/effects/cause"
)

// Managed describes a resource of type A whose release is registered in
// the scope it is acquired into.
type Managed[R, E, A any] struct {
	acquire func(*Scope[R, E]) effects.Effect[R, E, A]
}

// AcquireIn acquires the resource into scope.
func (m Managed[R, E, A]) AcquireIn(scope *Scope[R, E]) effects.Effect[R, E, A] {
	if m.acquire == nil {
		return effects.Die[R, E, A](effects.ErrNilEffect)
	}
	return m.acquire(scope)
}

// AcquireRelease runs acquire uninterruptibly and registers release in the
// same step, so an acquired resource is always released.
func AcquireRelease[R, E, A any](
	acquire effects.Effect[R, E, A],
	release func(A, cause.Exit[E, any]) effects.Effect[R, E, struct{}],
) Managed[R, E, A] {
	return Managed[R, E, A]{acquire: func(scope *Scope[R, E]) effects.Effect[R, E, A] {
		return effects.Uninterruptible(effects.FlatMap(acquire, func(a A) effects.Effect[R, E, A] {
			return effects.As(scope.Add(func(exit cause.Exit[E, any]) effects.Effect[R, E, struct{}] {
				return release(a, exit)
			}), a)
		}))
	}}
}

// AcquireReleaseInterruptible is AcquireRelease for an acquire that may
// wait, such as taking a lease. acquire runs with the interruptibility of
// the caller, and release is registered before an interruption can land
// once it succeeded. An interrupted acquire must give back whatever it
// got on its own.
func AcquireReleaseInterruptible[R, E, A any](
	acquire effects.Effect[R, E, A],
	release func(A, cause.Exit[E, any]) effects.Effect[R, E, struct{}],
) Managed[R, E, A] {
	return Managed[R, E, A]{acquire: func(scope *Scope[R, E]) effects.Effect[R, E, A] {
		return effects.UninterruptibleMask(func(restore effects.InterruptStatus) effects.Effect[R, E, A] {
			return effects.FlatMap(effects.Restore(restore, acquire), func(a A) effects.Effect[R, E, A] {
				return effects.As(scope.Add(func(exit cause.Exit[E, any]) effects.Effect[R, E, struct{}] {
					return release(a, exit)
				}), a)
			})
		})
	}}
}

// Make is AcquireRelease with a release that ignores the exit.
func Make[R, E, A any](acquire effects.Effect[R, E, A], release func(A) effects.Effect[R, E, struct{}]) Managed[R, E, A] {
	return AcquireRelease(acquire, func(a A, _ cause.Exit[E, any]) effects.Effect[R, E, struct{}] {
		return release(a)
	})
}

// FromEffect lifts eff into a Managed with nothing to release.
func FromEffect[R, E, A any](eff effects.Effect[R, E, A]) Managed[R, E, A] {
	return Managed[R, E, A]{acquire: func(*Scope[R, E]) effects.Effect[R, E, A] { return eff }}
}

// Scoped exposes the scope resources are acquired into.
func Scoped[R, E any]() Managed[R, E, *Scope[R, E]] {
	return Managed[R, E, *Scope[R, E]]{acquire: func(scope *Scope[R, E]) effects.Effect[R, E, *Scope[R, E]] {
		return effects.Succeed[R, E](scope)
	}}
}

// Finalize registers fin in the scope without acquiring anything.
func Finalize[R, E any](fin Finalizer[R, E]) Managed[R, E, struct{}] {
	return Managed[R, E, struct{}]{acquire: func(scope *Scope[R, E]) effects.Effect[R, E, struct{}] {
		return effects.AsUnit(scope.Add(fin))
	}}
}

// Map transforms the acquired resource.
func Map[R, E, A, B any](m Managed[R, E, A], f func(A) B) Managed[R, E, B] {
	return Managed[R, E, B]{acquire: func(scope *Scope[R, E]) effects.Effect[R, E, B] {
		return effects.Map(m.AcquireIn(scope), f)
	}}
}

// FlatMap acquires the resource k builds from the one m acquires, in the
// same scope, so they are released in reverse order.
func FlatMap[R, E, A, B any](m Managed[R, E, A], k func(A) Managed[R, E, B]) Managed[R, E, B] {
	return Managed[R, E, B]{acquire: func(scope *Scope[R, E]) effects.Effect[R, E, B] {
		return effects.FlatMap(m.AcquireIn(scope), func(a A) effects.Effect[R, E, B] {
			return k(a).AcquireIn(scope)
		})
	}}
}

// Zip acquires l then r in the same scope.
func Zip[R, E, A, B any](l Managed[R, E, A], r Managed[R, E, B]) Managed[R, E, effects.Pair[A, B]] {
	return FlatMap(l, func(a A) Managed[R, E, effects.Pair[A, B]] {
		return Map(r, func(b B) effects.Pair[A, B] { return effects.Pair[A, B]{First: a, Second: b} })
	})
}

// ForkManaged forks eff for the lifetime of the scope. Releasing it
// interrupts the fiber and waits for it.
func ForkManaged[R, E, A any](eff effects.Effect[R, E, A]) Managed[R, E, effects.Fiber[E, A]] {
	return AcquireRelease(effects.Fork(eff), func(f effects.Fiber[E, A], _ cause.Exit[E, any]) effects.Effect[R, E, struct{}] {
		return effects.AsUnit(effects.Interrupt[R](f))
	})
}

// Use acquires m, runs f with the resource and closes the scope. When both
// f and a finalizer fail, the finalizer's cause is reported after f's.
func Use[R, E, A, B any](m Managed[R, E, A], f func(A) effects.Effect[R, E, B]) effects.Effect[R, E, B] {
	return effects.UninterruptibleMask(func(restore effects.InterruptStatus) effects.Effect[R, E, B] {
		return effects.FlatMap(MakeScope[R, E](), func(scope *Scope[R, E]) effects.Effect[R, E, B] {
			body := effects.Restore(restore, effects.FlatMap(m.AcquireIn(scope), f))
			return effects.FoldCauseM(body,
				func(c cause.Cause[E]) effects.Effect[R, E, B] {
					return effects.FoldCauseM(scope.Close(cause.Failure[E, any](c)),
						func(c2 cause.Cause[E]) effects.Effect[R, E, B] {
							return effects.Halt[R, E, B](cause.Then(c, c2))
						},
						func(struct{}) effects.Effect[R, E, B] { return effects.Halt[R, E, B](c) },
					)
				},
				func(b B) effects.Effect[R, E, B] {
					return effects.As(scope.Close(eraseExit(cause.Success[E](b))), b)
				},
			)
		})
	})
}

// UseNow acquires m and releases it right away, returning the resource.
func UseNow[R, E, A any](m Managed[R, E, A]) effects.Effect[R, E, A] {
	return Use(m, effects.Succeed[R, E, A])
}

// UseDiscard runs eff while m is acquired.
func UseDiscard[R, E, A, B any](m Managed[R, E, A], eff effects.Effect[R, E, B]) effects.Effect[R, E, B] {
	return Use(m, func(A) effects.Effect[R, E, B] { return eff })
}
