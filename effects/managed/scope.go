package managed

import (
	"slices"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/on-the-ground/fiber_ive_go/effects"
	"github.com/on-the-ground/fiber_ive_go/effects/cause"
)

// Finalizer releases a resource. It receives the exit the scope is closed
// with.
type Finalizer[R, E any] func(cause.Exit[E, any]) effects.Effect[R, E, struct{}]

// Key identifies a finalizer registered in a Scope.
type Key uint64

type entry[R, E any] struct {
	key Key
	fin Finalizer[R, E]
}

// scopeState is replaced as a whole on every change.
type scopeState[R, E any] struct {
	closed     bool
	exit       cause.Exit[E, any]
	nextKey    Key
	finalizers []entry[R, E]
}

// Scope owns the finalizers of the resources acquired in it and runs them
// exactly once, most recent first, when it is closed.
type Scope[R, E any] struct {
	id    uuid.UUID
	state atomic.Pointer[scopeState[R, E]]
}

// NewScope returns an open, empty scope.
func NewScope[R, E any]() *Scope[R, E] {
	s := &Scope[R, E]{id: uuid.New()}
	s.state.Store(&scopeState[R, E]{})
	return s
}

// MakeScope creates an open scope.
func MakeScope[R, E any]() effects.Effect[R, E, *Scope[R, E]] {
	return effects.Sync[R, E](NewScope[R, E])
}

func (s *Scope[R, E]) ID() uuid.UUID { return s.id }

// Closed reports whether Close has been called.
func (s *Scope[R, E]) Closed() bool { return s.state.Load().closed }

// Size returns the number of finalizers still registered.
func (s *Scope[R, E]) Size() int { return len(s.state.Load().finalizers) }

// Add registers fin. On a closed scope, fin runs at once with the exit the
// scope was closed with.
func (s *Scope[R, E]) Add(fin Finalizer[R, E]) effects.Effect[R, E, Key] {
	return effects.Suspend(func() effects.Effect[R, E, Key] {
		for {
			old := s.state.Load()
			if old.closed {
				return effects.As(effects.Uninterruptible(fin(old.exit)), Key(0))
			}
			next := *old
			next.nextKey++
			next.finalizers = append(slices.Clip(old.finalizers), entry[R, E]{key: next.nextKey, fin: fin})
			if s.state.CompareAndSwap(old, &next) {
				return effects.Succeed[R, E](next.nextKey)
			}
		}
	})
}

func (s *Scope[R, E]) remove(key Key) (Finalizer[R, E], bool) {
	for {
		old := s.state.Load()
		i := slices.IndexFunc(old.finalizers, func(e entry[R, E]) bool { return e.key == key })
		if i < 0 {
			return nil, false
		}
		next := *old
		next.finalizers = slices.Delete(slices.Clone(old.finalizers), i, i+1)
		if s.state.CompareAndSwap(old, &next) {
			return old.finalizers[i].fin, true
		}
	}
}

// Release runs the finalizer registered under key before the scope closes.
// It does nothing when the finalizer already ran.
func (s *Scope[R, E]) Release(key Key, exit cause.Exit[E, any]) effects.Effect[R, E, struct{}] {
	return effects.Uninterruptible(effects.Suspend(func() effects.Effect[R, E, struct{}] {
		fin, ok := s.remove(key)
		if !ok {
			return effects.Unit[R, E]()
		}
		return fin(exit)
	}))
}

// Close runs every registered finalizer, most recent first, and fails with
// their failures in the order they happened. Only the first call runs
// anything. Close is uninterruptible.
func (s *Scope[R, E]) Close(exit cause.Exit[E, any]) effects.Effect[R, E, struct{}] {
	return effects.Uninterruptible(effects.Suspend(func() effects.Effect[R, E, struct{}] {
		for {
			old := s.state.Load()
			if old.closed {
				return effects.Unit[R, E]()
			}
			next := &scopeState[R, E]{closed: true, exit: exit, nextKey: old.nextKey}
			if s.state.CompareAndSwap(old, next) {
				return runFinalizers(old.finalizers, exit)
			}
		}
	}))
}

func runFinalizers[R, E any](entries []entry[R, E], exit cause.Exit[E, any]) effects.Effect[R, E, struct{}] {
	lifo := slices.Clone(entries)
	slices.Reverse(lifo)

	collected := effects.Reduce(lifo, cause.Empty[E](), func(acc cause.Cause[E], e entry[R, E]) effects.Effect[R, E, cause.Cause[E]] {
		return effects.FoldCauseM(
			effects.Suspend(func() effects.Effect[R, E, struct{}] { return e.fin(exit) }),
			func(c cause.Cause[E]) effects.Effect[R, E, cause.Cause[E]] {
				return effects.Succeed[R, E](cause.Then(acc, c))
			},
			func(struct{}) effects.Effect[R, E, cause.Cause[E]] { return effects.Succeed[R, E](acc) },
		)
	})
	return effects.FlatMap(collected, func(c cause.Cause[E]) effects.Effect[R, E, struct{}] {
		if c.IsEmpty() {
			return effects.Unit[R, E]()
		}
		return effects.Halt[R, E, struct{}](c)
	})
}

// Fork creates a child scope that is closed with the parent, unless it was
// closed on its own before.
func (s *Scope[R, E]) Fork() effects.Effect[R, E, *Scope[R, E]] {
	return effects.Uninterruptible(effects.FlatMap(MakeScope[R, E](), func(child *Scope[R, E]) effects.Effect[R, E, *Scope[R, E]] {
		return effects.As(s.Add(child.Close), child)
	}))
}

func eraseExit[E, A any](x cause.Exit[E, A]) cause.Exit[E, any] {
	return cause.MapExit(x, func(a A) any { return a })
}
