package stream

import (
	"github.com/on-the-ground/fiber_ive_go/effects"
	"github.com/on-the-ground/fiber_ive_go/effects/managed"
)

// RunFoldWhile folds the elements of s into z while cont holds. It stops
// pulling as soon as cont fails, and releases the stream.
func RunFoldWhile[R, E, A, Z any](s Stream[R, E, A], z Z, cont func(Z) bool, f func(Z, A) Z) effects.Effect[R, E, Z] {
	return managed.Use(s.process, func(pull Pull[R, E, A]) effects.Effect[R, E, Z] {
		var loop func(Z) effects.Effect[R, E, Z]
		loop = func(acc Z) effects.Effect[R, E, Z] {
			if !cont(acc) {
				return effects.Succeed[R, E](acc)
			}
			return effects.FlatMap(pull, func(step Step[A]) effects.Effect[R, E, Z] {
				if step.Done {
					return effects.Succeed[R, E](acc)
				}
				for _, a := range step.Chunk {
					acc = f(acc, a)
					if !cont(acc) {
						break
					}
				}
				return loop(acc)
			})
		}
		return loop(z)
	})
}

func RunFold[R, E, A, Z any](s Stream[R, E, A], z Z, f func(Z, A) Z) effects.Effect[R, E, Z] {
	return RunFoldWhile(s, z, func(Z) bool { return true }, f)
}

func RunCollect[R, E, A any](s Stream[R, E, A]) effects.Effect[R, E, []A] {
	return RunFold(s, []A{}, func(as []A, a A) []A { return append(as, a) })
}

// RunHead returns the first element of s, and false if s is empty.
func RunHead[R, E, A any](s Stream[R, E, A]) effects.Effect[R, E, effects.Pair[A, bool]] {
	return RunFoldWhile(s, effects.Pair[A, bool]{},
		func(p effects.Pair[A, bool]) bool { return !p.Second },
		func(_ effects.Pair[A, bool], a A) effects.Pair[A, bool] { return effects.Pair[A, bool]{First: a, Second: true} },
	)
}

// RunForEachChunk runs f for every chunk s emits, in order.
func RunForEachChunk[R, E, A, B any](s Stream[R, E, A], f func([]A) effects.Effect[R, E, B]) effects.Effect[R, E, struct{}] {
	return managed.Use(s.process, func(pull Pull[R, E, A]) effects.Effect[R, E, struct{}] {
		var loop effects.Effect[R, E, struct{}]
		loop = effects.FlatMap(pull, func(step Step[A]) effects.Effect[R, E, struct{}] {
			if step.Done {
				return effects.Unit[R, E]()
			}
			return effects.ZipRight(f(step.Chunk), loop)
		})
		return loop
	})
}

// RunForEach runs f for every element s emits, in order.
func RunForEach[R, E, A, B any](s Stream[R, E, A], f func(A) effects.Effect[R, E, B]) effects.Effect[R, E, struct{}] {
	return RunForEachChunk(s, func(chunk []A) effects.Effect[R, E, struct{}] {
		return effects.ForEachDiscard(chunk, f)
	})
}

// RunDrain pulls s to the end for its effects.
func RunDrain[R, E, A any](s Stream[R, E, A]) effects.Effect[R, E, struct{}] {
	return RunForEachChunk(s, func([]A) effects.Effect[R, E, struct{}] { return effects.Unit[R, E]() })
}
