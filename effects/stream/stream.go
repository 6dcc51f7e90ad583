// Package stream provides lazy, pull-based streams.
//
// A Stream is acquired into a scope as a pull effect. Every run of the pull
// yields the next chunk, or the end of the stream. Nothing is pulled until a
// sink runs the stream, and the resources the stream acquired are released
// when the sink is done, whether the stream was exhausted, failed, was
// interrupted or was cut short by the sink.
package stream

import (
	"github.com/on-the-ground/fiber_ive_go/effects"
	"github.com/on-the-ground/fiber_ive_go/effects/cause"
	"github.com/on-the-ground/fiber_ive_go/effects/managed"
	"github.com/on-the-ground/fiber_ive_go/effects/ref"
)

// Step is the result of one pull. Once a pull returned a Step with Done set,
// every later pull does too.
type Step[A any] struct {
	Chunk []A
	Done  bool
}

// Pull yields the next Step of a stream.
type Pull[R, E, A any] = effects.Effect[R, E, Step[A]]

// Stream is a lazy sequence of A pulled chunk by chunk. Each run acquires
// its own pull and releases it when the run ends.
type Stream[R, E, A any] struct {
	process managed.Managed[R, E, Pull[R, E, A]]
}

func emit[R, E, A any](chunk []A) Pull[R, E, A] {
	return effects.Succeed[R, E](Step[A]{Chunk: chunk})
}

func end[R, E, A any]() Pull[R, E, A] {
	return effects.Succeed[R, E](Step[A]{Done: true})
}

// FromPull builds a stream from a managed pull.
func FromPull[R, E, A any](process managed.Managed[R, E, Pull[R, E, A]]) Stream[R, E, A] {
	return Stream[R, E, A]{process: process}
}

// Process returns the managed pull of s, for sinks written outside of this
// package.
func (s Stream[R, E, A]) Process() managed.Managed[R, E, Pull[R, E, A]] {
	return s.process
}

// stateful gives every acquisition of a stream its own state.
func stateful[R, E, S, A any](initial func() S, pull func(ref.Ref[S]) Pull[R, E, A]) managed.Managed[R, E, Pull[R, E, A]] {
	return managed.FromEffect(effects.Map(
		effects.FlatMap(effects.Sync[R, E](initial), ref.Make[R, E, S]),
		pull,
	))
}

// pipe derives a stream from the pull of s.
func pipe[R, E, A, B any](s Stream[R, E, A], f func(Pull[R, E, A]) managed.Managed[R, E, Pull[R, E, B]]) Stream[R, E, B] {
	return Stream[R, E, B]{process: managed.FlatMap(s.process, f)}
}

// Empty ends at once.
func Empty[R, E, A any]() Stream[R, E, A] {
	return Stream[R, E, A]{process: managed.FromEffect(effects.Succeed[R, E](end[R, E, A]()))}
}

// FromChunks emits each chunk in turn. Empty chunks are skipped.
func FromChunks[R, E, A any](chunks ...[]A) Stream[R, E, A] {
	return Stream[R, E, A]{process: stateful(func() int { return 0 }, func(next ref.Ref[int]) Pull[R, E, A] {
		var pull Pull[R, E, A]
		pull = effects.FlatMap(ref.GetAndUpdate[R, E](next, func(i int) int { return min(i+1, len(chunks)) }), func(i int) Pull[R, E, A] {
			switch {
			case i >= len(chunks):
				return end[R, E, A]()
			case len(chunks[i]) == 0:
				return pull
			default:
				return emit[R, E](chunks[i])
			}
		})
		return pull
	})}
}

// FromSlice emits as in a single chunk.
func FromSlice[R, E, A any](as []A) Stream[R, E, A] {
	return FromChunks[R, E](as)
}

// FromEffect emits the value eff succeeds with, or fails with it.
func FromEffect[R, E, A any](eff effects.Effect[R, E, A]) Stream[R, E, A] {
	return Stream[R, E, A]{process: stateful(func() bool { return false }, func(pulled ref.Ref[bool]) Pull[R, E, A] {
		return effects.FlatMap(ref.GetAndSet[R, E](pulled, true), func(done bool) Pull[R, E, A] {
			if done {
				return end[R, E, A]()
			}
			return effects.Map(eff, func(a A) Step[A] { return Step[A]{Chunk: []A{a}} })
		})
	})}
}

// Iterate emits seed, f(seed), f(f(seed)) and so on, without end.
func Iterate[R, E, A any](seed A, f func(A) A) Stream[R, E, A] {
	return Stream[R, E, A]{process: stateful(func() A { return seed }, func(state ref.Ref[A]) Pull[R, E, A] {
		return effects.Map(ref.GetAndUpdate[R, E](state, f), func(a A) Step[A] { return Step[A]{Chunk: []A{a}} })
	})}
}

type unfoldState[S any] struct {
	s    S
	done bool
}

// Unfold emits the values f produces from the state until f reports false.
func Unfold[R, E, S, A any](seed S, f func(S) (A, S, bool)) Stream[R, E, A] {
	initial := func() unfoldState[S] { return unfoldState[S]{s: seed} }
	return Stream[R, E, A]{process: stateful(initial, func(state ref.Ref[unfoldState[S]]) Pull[R, E, A] {
		return ref.Modify[R, E](state, func(st unfoldState[S]) (Step[A], unfoldState[S]) {
			if st.done {
				return Step[A]{Done: true}, st
			}
			a, next, ok := f(st.s)
			if !ok {
				return Step[A]{Done: true}, unfoldState[S]{done: true}
			}
			return Step[A]{Chunk: []A{a}}, unfoldState[S]{s: next}
		})
	})}
}

// Managed emits the resource m acquires. The resource is released when the
// stream is.
func Managed[R, E, A any](m managed.Managed[R, E, A]) Stream[R, E, A] {
	return Stream[R, E, A]{process: managed.FlatMap(m, func(a A) managed.Managed[R, E, Pull[R, E, A]] {
		return FromSlice[R, E]([]A{a}).process
	})}
}

// Bracket acquires a resource, streams what use builds from it and
// releases the resource with the stream.
func Bracket[R, E, A, B any](
	acquire effects.Effect[R, E, A],
	release func(A) effects.Effect[R, E, struct{}],
	use func(A) Stream[R, E, B],
) Stream[R, E, B] {
	return Stream[R, E, B]{process: managed.FlatMap(managed.Make(acquire, release), func(a A) managed.Managed[R, E, Pull[R, E, B]] {
		return use(a).process
	})}
}

// Map transforms every element.
func Map[R, E, A, B any](s Stream[R, E, A], f func(A) B) Stream[R, E, B] {
	return pipe(s, func(pull Pull[R, E, A]) managed.Managed[R, E, Pull[R, E, B]] {
		return managed.FromEffect(effects.Succeed[R, E](effects.Map(pull, func(step Step[A]) Step[B] {
			out := make([]B, len(step.Chunk))
			for i, a := range step.Chunk {
				out[i] = f(a)
			}
			return Step[B]{Chunk: out, Done: step.Done}
		})))
	})
}

// MapEffect runs f for every element, in order.
func MapEffect[R, E, A, B any](s Stream[R, E, A], f func(A) effects.Effect[R, E, B]) Stream[R, E, B] {
	return pipe(s, func(pull Pull[R, E, A]) managed.Managed[R, E, Pull[R, E, B]] {
		return managed.FromEffect(effects.Succeed[R, E](effects.FlatMap(pull, func(step Step[A]) Pull[R, E, B] {
			if step.Done {
				return end[R, E, B]()
			}
			return effects.Map(effects.ForEach(step.Chunk, f), func(out []B) Step[B] { return Step[B]{Chunk: out} })
		})))
	})
}

// Filter keeps the elements p accepts.
func Filter[R, E, A any](s Stream[R, E, A], p func(A) bool) Stream[R, E, A] {
	return pipe(s, func(upstream Pull[R, E, A]) managed.Managed[R, E, Pull[R, E, A]] {
		var pull Pull[R, E, A]
		pull = effects.FlatMap(upstream, func(step Step[A]) Pull[R, E, A] {
			if step.Done {
				return end[R, E, A]()
			}
			var out []A
			for _, a := range step.Chunk {
				if p(a) {
					out = append(out, a)
				}
			}
			if len(out) == 0 {
				return pull
			}
			return emit[R, E](out)
		})
		return managed.FromEffect(effects.Succeed[R, E](pull))
	})
}

// Take emits the first n elements and stops pulling.
func Take[R, E, A any](s Stream[R, E, A], n int) Stream[R, E, A] {
	if n <= 0 {
		return Empty[R, E, A]()
	}
	return pipe(s, func(upstream Pull[R, E, A]) managed.Managed[R, E, Pull[R, E, A]] {
		return stateful(func() int { return n }, func(left ref.Ref[int]) Pull[R, E, A] {
			return effects.FlatMap(ref.Get[R, E](left), func(remaining int) Pull[R, E, A] {
				if remaining <= 0 {
					return end[R, E, A]()
				}
				return effects.FlatMap(upstream, func(step Step[A]) Pull[R, E, A] {
					if step.Done {
						return end[R, E, A]()
					}
					chunk := step.Chunk[:min(len(step.Chunk), remaining)]
					return effects.As(ref.Set[R, E](left, remaining-len(chunk)), Step[A]{Chunk: chunk})
				})
			})
		})
	})
}

// TakeWhile emits elements until the first one p rejects.
func TakeWhile[R, E, A any](s Stream[R, E, A], p func(A) bool) Stream[R, E, A] {
	return pipe(s, func(upstream Pull[R, E, A]) managed.Managed[R, E, Pull[R, E, A]] {
		return stateful(func() bool { return false }, func(stopped ref.Ref[bool]) Pull[R, E, A] {
			return effects.FlatMap(ref.Get[R, E](stopped), func(done bool) Pull[R, E, A] {
				if done {
					return end[R, E, A]()
				}
				return effects.FlatMap(upstream, func(step Step[A]) Pull[R, E, A] {
					if step.Done {
						return end[R, E, A]()
					}
					for i, a := range step.Chunk {
						if !p(a) {
							return effects.As(ref.Set[R, E](stopped, true), Step[A]{Chunk: step.Chunk[:i]})
						}
					}
					return emit[R, E](step.Chunk)
				})
			})
		})
	})
}

// DropWhile drops elements until the first one p rejects.
func DropWhile[R, E, A any](s Stream[R, E, A], p func(A) bool) Stream[R, E, A] {
	return pipe(s, func(upstream Pull[R, E, A]) managed.Managed[R, E, Pull[R, E, A]] {
		return stateful(func() bool { return true }, func(dropping ref.Ref[bool]) Pull[R, E, A] {
			var pull Pull[R, E, A]
			pull = effects.FlatMap(upstream, func(step Step[A]) Pull[R, E, A] {
				if step.Done {
					return end[R, E, A]()
				}
				return effects.FlatMap(ref.Get[R, E](dropping), func(drop bool) Pull[R, E, A] {
					if !drop {
						return emit[R, E](step.Chunk)
					}
					for i, a := range step.Chunk {
						if !p(a) {
							return effects.As(ref.Set[R, E](dropping, false), Step[A]{Chunk: step.Chunk[i:]})
						}
					}
					return pull
				})
			})
			return pull
		})
	})
}

type flatState[R, E, A, B any] struct {
	pending []A
	inner   Pull[R, E, B]
	scope   *managed.Scope[R, E]
}

// FlatMap emits the elements of f(a) for every a of s, one inner stream at
// a time. Each inner stream is released as soon as it is exhausted.
func FlatMap[R, E, A, B any](s Stream[R, E, A], f func(A) Stream[R, E, B]) Stream[R, E, B] {
	return Stream[R, E, B]{process: managed.FlatMap(managed.Scoped[R, E](), func(scope *managed.Scope[R, E]) managed.Managed[R, E, Pull[R, E, B]] {
		return pipe(s, func(outer Pull[R, E, A]) managed.Managed[R, E, Pull[R, E, B]] {
			initial := func() flatState[R, E, A, B] { return flatState[R, E, A, B]{} }
			return stateful(initial, func(state ref.Ref[flatState[R, E, A, B]]) Pull[R, E, B] {
				var pull Pull[R, E, B]
				pull = effects.FlatMap(ref.Get[R, E](state), func(st flatState[R, E, A, B]) Pull[R, E, B] {
					switch {
					case st.scope != nil:
						return effects.FlatMap(st.inner, func(step Step[B]) Pull[R, E, B] {
							if !step.Done {
								return effects.Succeed[R, E](step)
							}
							exhausted := effects.ZipRight(
								st.scope.Close(cause.Success[E, any](nil)),
								ref.Set[R, E](state, flatState[R, E, A, B]{pending: st.pending}),
							)
							return effects.ZipRight(exhausted, pull)
						})
					case len(st.pending) > 0:
						return effects.FlatMap(scope.Fork(), func(child *managed.Scope[R, E]) Pull[R, E, B] {
							return effects.FlatMap(f(st.pending[0]).process.AcquireIn(child), func(inner Pull[R, E, B]) Pull[R, E, B] {
								next := flatState[R, E, A, B]{pending: st.pending[1:], inner: inner, scope: child}
								return effects.ZipRight(ref.Set[R, E](state, next), pull)
							})
						})
					default:
						return effects.FlatMap(outer, func(step Step[A]) Pull[R, E, B] {
							if step.Done {
								return end[R, E, B]()
							}
							return effects.ZipRight(ref.Set[R, E](state, flatState[R, E, A, B]{pending: step.Chunk}), pull)
						})
					}
				})
				return pull
			})
		}).process
	})}
}

// Concat emits the elements of every stream in turn.
func Concat[R, E, A any](streams ...Stream[R, E, A]) Stream[R, E, A] {
	return FlatMap(FromSlice[R, E](streams), func(s Stream[R, E, A]) Stream[R, E, A] { return s })
}

type zipState[A, B any] struct {
	left  []A
	right []B
	done  bool
}

// Zip pairs the elements of l and r. It ends as soon as either ends.
func Zip[R, E, A, B any](l Stream[R, E, A], r Stream[R, E, B]) Stream[R, E, effects.Pair[A, B]] {
	return pipe(l, func(left Pull[R, E, A]) managed.Managed[R, E, Pull[R, E, effects.Pair[A, B]]] {
		return pipe(r, func(right Pull[R, E, B]) managed.Managed[R, E, Pull[R, E, effects.Pair[A, B]]] {
			initial := func() zipState[A, B] { return zipState[A, B]{} }
			return stateful(initial, func(state ref.Ref[zipState[A, B]]) Pull[R, E, effects.Pair[A, B]] {
				var pull Pull[R, E, effects.Pair[A, B]]
				finish := effects.ZipRight(ref.Set[R, E](state, zipState[A, B]{done: true}), end[R, E, effects.Pair[A, B]]())
				pull = effects.FlatMap(ref.Get[R, E](state), func(st zipState[A, B]) Pull[R, E, effects.Pair[A, B]] {
					switch {
					case st.done:
						return end[R, E, effects.Pair[A, B]]()
					case len(st.left) == 0:
						return effects.FlatMap(left, func(step Step[A]) Pull[R, E, effects.Pair[A, B]] {
							if step.Done {
								return finish
							}
							return effects.ZipRight(ref.Set[R, E](state, zipState[A, B]{left: step.Chunk, right: st.right}), pull)
						})
					case len(st.right) == 0:
						return effects.FlatMap(right, func(step Step[B]) Pull[R, E, effects.Pair[A, B]] {
							if step.Done {
								return finish
							}
							return effects.ZipRight(ref.Set[R, E](state, zipState[A, B]{left: st.left, right: step.Chunk}), pull)
						})
					default:
						n := min(len(st.left), len(st.right))
						out := make([]effects.Pair[A, B], n)
						for i := range out {
							out[i] = effects.Pair[A, B]{First: st.left[i], Second: st.right[i]}
						}
						rest := zipState[A, B]{left: st.left[n:], right: st.right[n:]}
						return effects.As(ref.Set[R, E](state, rest), Step[effects.Pair[A, B]]{Chunk: out})
					}
				})
				return pull
			})
		}).process
	})
}
