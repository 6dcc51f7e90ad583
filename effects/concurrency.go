package effects

import (
	"sync/atomic"

	"github.com/on-the-ground/fiber_ive_go/effects/cause"
)

type raceOutcome struct {
	left  *cause.Exit[any, any]
	right *cause.Exit[any, any]
}

// RaceWith runs left and right on child fibers. The first one to be done
// decides the result: its exit and the other fiber are handed to leftDone
// or rightDone. If the racing fiber is interrupted, both children are
// interrupted and awaited.
func RaceWith[R, E, A, B, C any](
	left Effect[R, E, A],
	right Effect[R, E, B],
	leftDone func(cause.Exit[E, A], Fiber[E, B]) Effect[R, E, C],
	rightDone func(cause.Exit[E, B], Fiber[E, A]) Effect[R, E, C],
) Effect[R, E, C] {
	return UninterruptibleMask(func(restore InterruptStatus) Effect[R, E, C] {
		return FlatMap(Fork(left), func(lf Fiber[E, A]) Effect[R, E, C] {
			return FlatMap(Fork(right), func(rf Fiber[E, B]) Effect[R, E, C] {
				winner := AsyncInterrupt[R, E, raceOutcome](func(complete func(cause.Exit[E, raceOutcome])) func() {
					var decided atomic.Bool
					decide := func(o raceOutcome) {
						if decided.CompareAndSwap(false, true) {
							complete(cause.Success[E](o))
						}
					}
					lk, lexit, ldone := lf.ctx.observe(func(x cause.Exit[any, any]) {
						decide(raceOutcome{left: &x})
					})
					if ldone {
						decide(raceOutcome{left: &lexit})
					}
					rk, rexit, rdone := rf.ctx.observe(func(x cause.Exit[any, any]) {
						decide(raceOutcome{right: &x})
					})
					if rdone {
						decide(raceOutcome{right: &rexit})
					}
					return func() {
						lf.ctx.unobserve(lk)
						rf.ctx.unobserve(rk)
					}
				})
				return OnInterrupt(
					Restore(restore, FlatMap(winner, func(o raceOutcome) Effect[R, E, C] {
						if o.left != nil {
							return leftDone(castExit[E, A](*o.left), rf)
						}
						return rightDone(castExit[E, B](*o.right), lf)
					})),
					AsUnit(ZipRight(Interrupt[R](lf), Interrupt[R](rf))),
				)
			})
		})
	})
}

// Race returns the exit of whichever of l and r is done first, success or
// failure. The loser is interrupted and awaited, so its finalizers have run
// when Race returns; its exit is discarded.
func Race[R, E, A any](l, r Effect[R, E, A]) Effect[R, E, A] {
	return RaceWith(l, r,
		func(x cause.Exit[E, A], loser Fiber[E, A]) Effect[R, E, A] {
			return ZipRight(Interrupt[R](loser), Done[R](x))
		},
		func(x cause.Exit[E, A], loser Fiber[E, A]) Effect[R, E, A] {
			return ZipRight(Interrupt[R](loser), Done[R](x))
		},
	)
}

// RaceFirst is Race: the first exit of either kind wins.
func RaceFirst[R, E, A any](l, r Effect[R, E, A]) Effect[R, E, A] {
	return Race(l, r)
}

// ZipWithPar runs l and r concurrently and combines their values with f.
// When one fails, the other is interrupted and awaited; its cause is only
// kept when it failed for a reason other than that interruption. The
// combined cause is Both(l's cause, r's cause).
func ZipWithPar[R, E, A, B, C any](l Effect[R, E, A], r Effect[R, E, B], f func(A, B) C) Effect[R, E, C] {
	return RaceWith(l, r,
		func(x cause.Exit[E, A], other Fiber[E, B]) Effect[R, E, C] {
			if a, ok := x.Value(); ok {
				return Map(Join[R](other), func(b B) C { return f(a, b) })
			}
			return FlatMap(Interrupt[R](other), func(ox cause.Exit[E, B]) Effect[R, E, C] {
				return Halt[R, E, C](cause.Both(x.Cause(), otherCause(ox)))
			})
		},
		func(x cause.Exit[E, B], other Fiber[E, A]) Effect[R, E, C] {
			if b, ok := x.Value(); ok {
				return Map(Join[R](other), func(a A) C { return f(a, b) })
			}
			return FlatMap(Interrupt[R](other), func(ox cause.Exit[E, A]) Effect[R, E, C] {
				return Halt[R, E, C](cause.Both(otherCause(ox), x.Cause()))
			})
		},
	)
}

// otherCause is the cause of the branch interrupted by the first failure,
// or nothing when it ended because of that interruption.
func otherCause[E, A any](x cause.Exit[E, A]) cause.Cause[E] {
	if x.IsSuccess() || cause.InterruptedOnly(x.Cause()) {
		return cause.Empty[E]()
	}
	return x.Cause()
}


// ZipPar is ZipWithPar pairing the two values.
func ZipPar[R, E, A, B any](l Effect[R, E, A], r Effect[R, E, B]) Effect[R, E, Pair[A, B]] {
	return ZipWithPar(l, r, func(a A, b B) Pair[A, B] { return Pair[A, B]{First: a, Second: b} })
}

// ForEachPar runs f for every element on concurrent fibers and collects the
// results in input order.
func ForEachPar[R, E, A, B any](as []A, f func(A) Effect[R, E, B]) Effect[R, E, []B] {
	return Traverse(ParallelBoth[R, E, B](), as, f)
}

// CollectAllPar is ForEachPar over effects.
func CollectAllPar[R, E, A any](effs []Effect[R, E, A]) Effect[R, E, []A] {
	return ForEachPar(effs, func(eff Effect[R, E, A]) Effect[R, E, A] { return eff })
}
