package effects

import (
	"github.com/on-the-ground/fiber_ive_go/effects/cause"
)

// Pair is the result of Zip.
type Pair[A, B any] struct {
	First  A
	Second B
}

// Map transforms the success value of eff.
func Map[R, E, A, B any](eff Effect[R, E, A], f func(A) B) Effect[R, E, B] {
	return FlatMap(eff, func(a A) Effect[R, E, B] { return Succeed[R, E](f(a)) })
}

// As replaces the success value of eff with b.
func As[R, E, A, B any](eff Effect[R, E, A], b B) Effect[R, E, B] {
	return Map(eff, func(A) B { return b })
}

// AsUnit discards the success value of eff.
func AsUnit[R, E, A any](eff Effect[R, E, A]) Effect[R, E, struct{}] {
	return As(eff, struct{}{})
}

// MapErrorCause transforms the whole failure cause of eff.
func MapErrorCause[R, E, E2, A any](eff Effect[R, E, A], f func(cause.Cause[E]) cause.Cause[E2]) Effect[R, E2, A] {
	return FoldCauseM(eff,
		func(c cause.Cause[E]) Effect[R, E2, A] { return Halt[R, E2, A](f(c)) },
		Succeed[R, E2, A],
	)
}

// MapError transforms the typed failures of eff. Defects and interruptions
// are kept as they are.
func MapError[R, E, E2, A any](eff Effect[R, E, A], f func(E) E2) Effect[R, E2, A] {
	return MapErrorCause(eff, func(c cause.Cause[E]) cause.Cause[E2] { return cause.Map(c, f) })
}

// Bimap maps the typed failure with fe and the success value with fa.
func Bimap[R, E, E2, A, B any](eff Effect[R, E, A], fe func(E) E2, fa func(A) B) Effect[R, E2, B] {
	return Map(MapError(eff, fe), fa)
}

// Tap runs f on the success value of eff and keeps that value.
func Tap[R, E, A, B any](eff Effect[R, E, A], f func(A) Effect[R, E, B]) Effect[R, E, A] {
	return FlatMap(eff, func(a A) Effect[R, E, A] { return As(f(a), a) })
}

// TapCause runs f on the failure cause of eff and fails with that cause
// again. A failure of f is reported after it.
func TapCause[R, E, A, B any](eff Effect[R, E, A], f func(cause.Cause[E]) Effect[R, E, B]) Effect[R, E, A] {
	return FoldCauseM(eff,
		func(c cause.Cause[E]) Effect[R, E, A] {
			return FoldCauseM(f(c),
				func(c2 cause.Cause[E]) Effect[R, E, A] { return Halt[R, E, A](cause.Then(c, c2)) },
				func(B) Effect[R, E, A] { return Halt[R, E, A](c) },
			)
		},
		Succeed[R, E, A],
	)
}

// TapError is TapCause restricted to the first typed failure.
func TapError[R, E, A, B any](eff Effect[R, E, A], f func(E) Effect[R, E, B]) Effect[R, E, A] {
	return TapCause(eff, func(c cause.Cause[E]) Effect[R, E, struct{}] {
		if e, ok := cause.FirstFailure(c); ok {
			return AsUnit(f(e))
		}
		return Unit[R, E]()
	})
}

// AndThen feeds the result of eff to next as its environment.
func AndThen[R, E, A, B any](eff Effect[R, E, A], next Effect[A, E, B]) Effect[R, E, B] {
	return FlatMap(eff, func(a A) Effect[R, E, B] { return Provide[R](a, next) })
}

// ZipWith runs l then r and combines their values with f.
func ZipWith[R, E, A, B, C any](l Effect[R, E, A], r Effect[R, E, B], f func(A, B) C) Effect[R, E, C] {
	return FlatMap(l, func(a A) Effect[R, E, C] {
		return Map(r, func(b B) C { return f(a, b) })
	})
}

// Zip runs l then r and pairs their values.
func Zip[R, E, A, B any](l Effect[R, E, A], r Effect[R, E, B]) Effect[R, E, Pair[A, B]] {
	return ZipWith(l, r, func(a A, b B) Pair[A, B] { return Pair[A, B]{First: a, Second: b} })
}

// ZipLeft runs l then r and keeps the value of l.
func ZipLeft[R, E, A, B any](l Effect[R, E, A], r Effect[R, E, B]) Effect[R, E, A] {
	return ZipWith(l, r, func(a A, _ B) A { return a })
}

// ZipRight runs l then r and keeps the value of r.
func ZipRight[R, E, A, B any](l Effect[R, E, A], r Effect[R, E, B]) Effect[R, E, B] {
	return FlatMap(l, func(A) Effect[R, E, B] { return r })
}

// Flatten runs the effect that eff succeeds with.
func Flatten[R, E, A any](eff Effect[R, E, Effect[R, E, A]]) Effect[R, E, A] {
	return FlatMap(eff, func(inner Effect[R, E, A]) Effect[R, E, A] { return inner })
}

// failureOrCause splits c into its first typed failure or, when it has
// none, the same cause at the new failure type.
func failureOrCause[E, E2 any](c cause.Cause[E]) (E, cause.Cause[E2], bool) {
	if e, ok := cause.FirstFailure(c); ok {
		return e, nil, true
	}
	var zero E
	return zero, cause.Map(c, func(E) E2 {
		var none E2
		return none
	}), false
}

// FoldM recovers from the first typed failure of eff with onFailure.
// Defects and interruptions are propagated.
func FoldM[R, E, E2, A, B any](
	eff Effect[R, E, A],
	onFailure func(E) Effect[R, E2, B],
	onSuccess func(A) Effect[R, E2, B],
) Effect[R, E2, B] {
	return FoldCauseM(eff,
		func(c cause.Cause[E]) Effect[R, E2, B] {
			e, rest, ok := failureOrCause[E, E2](c)
			if !ok {
				return Halt[R, E2, B](rest)
			}
			return onFailure(e)
		},
		onSuccess,
	)
}

// Fold turns a typed failure or a success of eff into a value.
func Fold[R, E, A, B any](eff Effect[R, E, A], onFailure func(E) B, onSuccess func(A) B) Effect[R, E, B] {
	return FoldM(eff,
		func(e E) Effect[R, E, B] { return Succeed[R, E](onFailure(e)) },
		func(a A) Effect[R, E, B] { return Succeed[R, E](onSuccess(a)) },
	)
}

// FoldCause turns the cause or the success of eff into a value.
func FoldCause[R, E, A, B any](eff Effect[R, E, A], onFailure func(cause.Cause[E]) B, onSuccess func(A) B) Effect[R, E, B] {
	return FoldCauseM(eff,
		func(c cause.Cause[E]) Effect[R, E, B] { return Succeed[R, E](onFailure(c)) },
		func(a A) Effect[R, E, B] { return Succeed[R, E](onSuccess(a)) },
	)
}

// CatchAll recovers from a typed failure of eff with h.
func CatchAll[R, E, E2, A any](eff Effect[R, E, A], h func(E) Effect[R, E2, A]) Effect[R, E2, A] {
	return FoldM(eff, h, Succeed[R, E2, A])
}

// CatchAllCause recovers from the failure cause of eff with h.
func CatchAllCause[R, E, E2, A any](eff Effect[R, E, A], h func(cause.Cause[E]) Effect[R, E2, A]) Effect[R, E2, A] {
	return FoldCauseM(eff, h, Succeed[R, E2, A])
}

// CatchSomeCause recovers from the causes pf accepts.
func CatchSomeCause[R, E, A any](eff Effect[R, E, A], pf func(cause.Cause[E]) (Effect[R, E, A], bool)) Effect[R, E, A] {
	return FoldCauseM(eff,
		func(c cause.Cause[E]) Effect[R, E, A] {
			if recovered, ok := pf(c); ok {
				return recovered
			}
			return Halt[R, E, A](c)
		},
		Succeed[R, E, A],
	)
}

// OrDie turns the typed failures of eff into defects.
func OrDie[R, E, A any](eff Effect[R, E, A]) Effect[R, E, A] {
	return MapErrorCause(eff, func(c cause.Cause[E]) cause.Cause[E] {
		return cause.FlatMap(c, func(e E) cause.Cause[E] { return cause.Die[E](cause.FailureAsError(e)) })
	})
}

// When runs eff only if cond holds.
func When[R, E, A any](cond bool, eff Effect[R, E, A]) Effect[R, E, struct{}] {
	if !cond {
		return Unit[R, E]()
	}
	return AsUnit(eff)
}

// RepeatWhileM reruns eff as long as pred holds for its result.
func RepeatWhileM[R, E, A any](eff Effect[R, E, A], pred func(A) Effect[R, E, bool]) Effect[R, E, A] {
	return FlatMap(eff, func(a A) Effect[R, E, A] {
		return FlatMap(pred(a), func(again bool) Effect[R, E, A] {
			if again {
				return RepeatWhileM(eff, pred)
			}
			return Succeed[R, E](a)
		})
	})
}

// Retry reruns eff after a typed failure, at most maxAttempts times in
// total. Defects and interruptions are not retried.
func Retry[R, E, A any](eff Effect[R, E, A], maxAttempts int) Effect[R, E, A] {
	if maxAttempts <= 1 {
		return eff
	}
	return CatchAll(eff, func(E) Effect[R, E, A] { return Retry(eff, maxAttempts-1) })
}

// Ensuring runs finalizer after eff, whatever its exit. The finalizer runs
// uninterruptibly and its failure is reported after eff's.
func Ensuring[R, E, A any](eff Effect[R, E, A], finalizer Effect[R, E, struct{}]) Effect[R, E, A] {
	return OnExit(eff, func(cause.Exit[E, A]) Effect[R, E, struct{}] { return finalizer })
}

// OnExit runs cleanup with the exit of eff. eff keeps the interruptibility
// of the caller; cleanup is uninterruptible.
func OnExit[R, E, A any](eff Effect[R, E, A], cleanup func(cause.Exit[E, A]) Effect[R, E, struct{}]) Effect[R, E, A] {
	return UninterruptibleMask(func(restore InterruptStatus) Effect[R, E, A] {
		return FoldCauseM(Restore(restore, eff),
			func(c cause.Cause[E]) Effect[R, E, A] {
				return FoldCauseM(Suspend(func() Effect[R, E, struct{}] { return cleanup(cause.Failure[E, A](c)) }),
					func(c2 cause.Cause[E]) Effect[R, E, A] { return Halt[R, E, A](cause.Then(c, c2)) },
					func(struct{}) Effect[R, E, A] { return Halt[R, E, A](c) },
				)
			},
			func(a A) Effect[R, E, A] {
				return As(Suspend(func() Effect[R, E, struct{}] { return cleanup(cause.Success[E](a)) }), a)
			},
		)
	})
}

// OnError runs cleanup only when eff fails.
func OnError[R, E, A any](eff Effect[R, E, A], cleanup func(cause.Cause[E]) Effect[R, E, struct{}]) Effect[R, E, A] {
	return OnExit(eff, func(exit cause.Exit[E, A]) Effect[R, E, struct{}] {
		if exit.IsSuccess() {
			return Unit[R, E]()
		}
		return cleanup(exit.Cause())
	})
}

// OnInterrupt runs cleanup only when eff is interrupted.
func OnInterrupt[R, E, A any](eff Effect[R, E, A], cleanup Effect[R, E, struct{}]) Effect[R, E, A] {
	return OnError(eff, func(c cause.Cause[E]) Effect[R, E, struct{}] {
		if cause.Interrupted(c) {
			return cleanup
		}
		return Unit[R, E]()
	})
}

// Filter keeps the elements for which p succeeds with true, in order.
func Filter[R, E, A any](as []A, p func(A) Effect[R, E, bool]) Effect[R, E, []A] {
	return Reduce(as, make([]A, 0, len(as)), func(kept []A, a A) Effect[R, E, []A] {
		return Map(p(a), func(ok bool) []A {
			if ok {
				return append(kept, a)
			}
			return kept
		})
	})
}

// DropWhile drops the leading elements for which p succeeds with true.
func DropWhile[R, E, A any](as []A, p func(A) Effect[R, E, bool]) Effect[R, E, []A] {
	var loop func(i int) Effect[R, E, []A]
	loop = func(i int) Effect[R, E, []A] {
		if i == len(as) {
			return Succeed[R, E]([]A{})
		}
		return FlatMap(p(as[i]), func(drop bool) Effect[R, E, []A] {
			if drop {
				return loop(i + 1)
			}
			return Succeed[R, E](as[i:])
		})
	}
	return Suspend(func() Effect[R, E, []A] { return loop(0) })
}

// Reduce folds as from the left with an effectful f.
func Reduce[R, E, A, Z any](as []A, zero Z, f func(Z, A) Effect[R, E, Z]) Effect[R, E, Z] {
	var loop func(i int, z Z) Effect[R, E, Z]
	loop = func(i int, z Z) Effect[R, E, Z] {
		if i == len(as) {
			return Succeed[R, E](z)
		}
		return FlatMap(f(z, as[i]), func(next Z) Effect[R, E, Z] { return loop(i+1, next) })
	}
	return Suspend(func() Effect[R, E, Z] { return loop(0, zero) })
}

// ForEach runs f for every element, in order, and collects the results.
func ForEach[R, E, A, B any](as []A, f func(A) Effect[R, E, B]) Effect[R, E, []B] {
	return Traverse(SequentialBoth[R, E, B](), as, f)
}

// ForEachDiscard is ForEach without the results.
func ForEachDiscard[R, E, A, B any](as []A, f func(A) Effect[R, E, B]) Effect[R, E, struct{}] {
	return Reduce(as, struct{}{}, func(_ struct{}, a A) Effect[R, E, struct{}] { return AsUnit(f(a)) })
}

// CollectAll runs effs in order and collects their values.
func CollectAll[R, E, A any](effs []Effect[R, E, A]) Effect[R, E, []A] {
	return ForEach(effs, func(eff Effect[R, E, A]) Effect[R, E, A] { return eff })
}

// Head succeeds with the first element, or fails with ErrNoSuchElement.
func Head[R, A any](as []A) Effect[R, error, A] {
	if len(as) == 0 {
		return Fail[R, error, A](ErrNoSuchElement)
	}
	return Succeed[R, error](as[0])
}
