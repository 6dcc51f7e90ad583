package stream

import (
	"github.com/on-the-ground/fiber_ive_go/effects"
	"github.com/on-the-ground/fiber_ive_go/effects/managed"
	"github.com/on-the-ground/fiber_ive_go/effects/ref"
	"github.com/on-the-ground/fiber_ive_go/shared/orderedbuffer"
)

// OrderBy sorts s within a sliding window of windowSize elements. Once the
// window is full, every new element pushes out the smallest one. The rest is
// emitted in order when s ends, so a window at least as large as s sorts it
// completely.
func OrderBy[R, E, A any](s Stream[R, E, A], windowSize int, cmp orderedbuffer.CompareFunc[A]) Stream[R, E, A] {
	return pipe(s, func(upstream Pull[R, E, A]) managed.Managed[R, E, Pull[R, E, A]] {
		window := func() *orderedbuffer.OrderedBoundedBuffer[A] {
			return orderedbuffer.NewOrderedBoundedBuffer(windowSize, cmp)
		}
		return stateful(window, func(state ref.Ref[*orderedbuffer.OrderedBoundedBuffer[A]]) Pull[R, E, A] {
			var pull Pull[R, E, A]
			pull = effects.FlatMap(ref.Get[R, E](state), func(buf *orderedbuffer.OrderedBoundedBuffer[A]) Pull[R, E, A] {
				return effects.FlatMap(upstream, func(step Step[A]) Pull[R, E, A] {
					if step.Done {
						return effects.Suspend(func() Pull[R, E, A] {
							rest := buf.Close()
							if len(rest) == 0 {
								return end[R, E, A]()
							}
							return emit[R, E](rest)
						})
					}
					return effects.Suspend(func() Pull[R, E, A] {
						var out []A
						for _, a := range step.Chunk {
							evicted, ok, err := buf.Insert(a)
							if err != nil {
								return effects.Die[R, E, Step[A]](err)
							}
							if ok {
								out = append(out, evicted)
							}
						}
						if len(out) == 0 {
							return pull
						}
						return emit[R, E](out)
					})
				})
			})
			return pull
		})
	})
}
