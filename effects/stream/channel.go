package stream

import (
	"github.com/on-the-ground/fiber_ive_go/effects"
	"github.com/on-the-ground/fiber_ive_go/effects/cause"
	"github.com/on-the-ground/fiber_ive_go/effects/managed"
	"github.com/on-the-ground/fiber_ive_go/effects/ref"
)

// recv suspends until ch yields a value or is closed. A value received
// after the receiving fiber was interrupted is dropped.
func recv[R, E, A any](ch <-chan A) effects.Effect[R, E, effects.Pair[A, bool]] {
	return effects.AsyncInterrupt[R, E](func(complete func(cause.Exit[E, effects.Pair[A, bool]])) func() {
		select {
		case a, ok := <-ch:
			complete(cause.Success[E](effects.Pair[A, bool]{First: a, Second: ok}))
			return nil
		default:
		}
		stop := make(chan struct{})
		go func() {
			select {
			case a, ok := <-ch:
				complete(cause.Success[E](effects.Pair[A, bool]{First: a, Second: ok}))
			case <-stop:
			}
		}()
		return func() { close(stop) }
	})
}

func send[R, E, A any](ch chan<- A, a A) effects.Effect[R, E, struct{}] {
	return effects.AsyncInterrupt[R, E](func(complete func(cause.Exit[E, struct{}])) func() {
		select {
		case ch <- a:
			complete(cause.Success[E](struct{}{}))
			return nil
		default:
		}
		stop := make(chan struct{})
		go func() {
			select {
			case ch <- a:
				complete(cause.Success[E](struct{}{}))
			case <-stop:
			}
		}()
		return func() { close(stop) }
	})
}

// FromChannel emits the values received from ch until it is closed.
func FromChannel[R, E, A any](ch <-chan A) Stream[R, E, A] {
	return Stream[R, E, A]{process: managed.FromEffect(effects.Succeed[R, E](
		effects.Map(recv[R, E](ch), func(p effects.Pair[A, bool]) Step[A] {
			if !p.Second {
				return Step[A]{Done: true}
			}
			return Step[A]{Chunk: []A{p.First}}
		}),
	))}
}

type mergeMsg[E, A any] struct {
	chunk  []A
	failed cause.Cause[E]
	done   bool
}

// Merge runs every stream on its own fiber and emits their chunks as they
// arrive. It fails as soon as one of them fails and ends when all of them
// have ended. Releasing the merged stream interrupts the sources.
func Merge[R, E, A any](streams ...Stream[R, E, A]) Stream[R, E, A] {
	if len(streams) == 0 {
		return Empty[R, E, A]()
	}
	mailbox := managed.FromEffect(effects.Sync[R, E](func() chan mergeMsg[E, A] {
		return make(chan mergeMsg[E, A], len(streams))
	}))
	return Stream[R, E, A]{process: managed.FlatMap(mailbox, func(ch chan mergeMsg[E, A]) managed.Managed[R, E, Pull[R, E, A]] {
		sources := managed.FromEffect(effects.Unit[R, E]())
		for _, s := range streams {
			drain := effects.FoldCauseM(
				RunForEachChunk(s, func(chunk []A) effects.Effect[R, E, struct{}] {
					return send[R, E](ch, mergeMsg[E, A]{chunk: chunk})
				}),
				func(c cause.Cause[E]) effects.Effect[R, E, struct{}] {
					return send[R, E](ch, mergeMsg[E, A]{failed: c})
				},
				func(struct{}) effects.Effect[R, E, struct{}] {
					return send[R, E](ch, mergeMsg[E, A]{done: true})
				},
			)
			sources = managed.FlatMap(sources, func(struct{}) managed.Managed[R, E, struct{}] {
				return managed.Map(managed.ForkManaged(drain), func(effects.Fiber[E, struct{}]) struct{} { return struct{}{} })
			})
		}
		return managed.FlatMap(sources, func(struct{}) managed.Managed[R, E, Pull[R, E, A]] {
			return stateful(func() int { return len(streams) }, func(live ref.Ref[int]) Pull[R, E, A] {
				var pull Pull[R, E, A]
				pull = effects.FlatMap(ref.Get[R, E](live), func(n int) Pull[R, E, A] {
					if n == 0 {
						return end[R, E, A]()
					}
					return effects.FlatMap(recv[R, E, mergeMsg[E, A]](ch), func(p effects.Pair[mergeMsg[E, A], bool]) Pull[R, E, A] {
						msg := p.First
						switch {
						case msg.failed != nil:
							return effects.Halt[R, E, Step[A]](msg.failed)
						case msg.done:
							return effects.ZipRight(ref.Update[R, E](live, func(n int) int { return n - 1 }), pull)
						default:
							return emit[R, E](msg.chunk)
						}
					})
				})
				return pull
			})
		})
	})}
}
