// Package ref provides a mutable cell shared between fibers.
//
// Every operation is an effect. When it runs, it updates the cell with a
// single compare-and-swap, retrying until the swap succeeds, so concurrent
// updates are never lost. Update functions may therefore be called more
// than once and must not have side effects.
package ref

import (
	"sync/atomic"

	"github.com/on-the-ground/fiber_ive_go/effects"
	"github.com/on-the-ground/fiber_ive_go/effects/managed"
)

// XRef is a reference that is read as B and written as C.
type XRef[C, B any] struct {
	load   func() B
	update func(func(B) C) (before, after B)
}

// Ref is a reference read and written with the same type.
type Ref[A any] = XRef[A, A]

type cell[A any] struct {
	value atomic.Pointer[A]
}

func (c *cell[A]) load() A { return *c.value.Load() }

func (c *cell[A]) update(f func(A) A) (A, A) {
	for {
		old := c.value.Load()
		next := f(*old)
		if c.value.CompareAndSwap(old, &next) {
			return *old, next
		}
	}
}

// New allocates a Ref outside of any effect.
func New[A any](initial A) Ref[A] {
	c := &cell[A]{}
	c.value.Store(&initial)
	return Ref[A]{load: c.load, update: c.update}
}

// Make allocates a Ref when the effect runs.
func Make[R, E, A any](initial A) effects.Effect[R, E, Ref[A]] {
	return effects.Sync[R, E](func() Ref[A] { return New(initial) })
}

// MakeManaged allocates a Ref as a resource with nothing to release.
func MakeManaged[R, E, A any](initial A) managed.Managed[R, E, Ref[A]] {
	return managed.FromEffect(Make[R, E](initial))
}

// Load reads the current value outside of any effect.
func (r XRef[C, B]) Load() B { return r.load() }

// Get reads the current value.
func Get[R, E, C, B any](r XRef[C, B]) effects.Effect[R, E, B] {
	return effects.Sync[R, E](r.load)
}

// Set replaces the value.
func Set[R, E, C, B any](r XRef[C, B], c C) effects.Effect[R, E, struct{}] {
	return effects.Sync[R, E](func() struct{} {
		r.update(func(B) C { return c })
		return struct{}{}
	})
}

// Update applies f atomically.
func Update[R, E, C, B any](r XRef[C, B], f func(B) C) effects.Effect[R, E, struct{}] {
	return effects.Sync[R, E](func() struct{} {
		r.update(f)
		return struct{}{}
	})
}

// Modify writes the C computed by f and returns the X computed alongside it.
func Modify[R, E, C, B, X any](r XRef[C, B], f func(B) (X, C)) effects.Effect[R, E, X] {
	return effects.Sync[R, E](func() X {
		var x X
		r.update(func(b B) C {
			var c C
			x, c = f(b)
			return c
		})
		return x
	})
}

func GetAndSet[R, E, C, B any](r XRef[C, B], c C) effects.Effect[R, E, B] {
	return effects.Sync[R, E](func() B {
		before, _ := r.update(func(B) C { return c })
		return before
	})
}

func GetAndUpdate[R, E, C, B any](r XRef[C, B], f func(B) C) effects.Effect[R, E, B] {
	return effects.Sync[R, E](func() B {
		before, _ := r.update(f)
		return before
	})
}

func UpdateAndGet[R, E, C, B any](r XRef[C, B], f func(B) C) effects.Effect[R, E, B] {
	return effects.Sync[R, E](func() B {
		_, after := r.update(f)
		return after
	})
}

// Dimap returns a view of r that is written through in and read through
// out. The view shares r's cell, so its updates are just as atomic.
func Dimap[C, B, D, O any](r XRef[C, B], in func(D) C, out func(B) O) XRef[D, O] {
	return XRef[D, O]{
		load: func() O { return out(r.load()) },
		update: func(f func(O) D) (O, O) {
			before, after := r.update(func(b B) C { return in(f(out(b))) })
			return out(before), out(after)
		},
	}
}

// Contramap changes only the written type.
func Contramap[C, B, D any](r XRef[C, B], in func(D) C) XRef[D, B] {
	return Dimap(r, in, func(b B) B { return b })
}

// MapRead changes only the read type.
func MapRead[C, B, O any](r XRef[C, B], out func(B) O) XRef[C, O] {
	return Dimap(r, func(c C) C { return c }, out)
}

// UpdateNow applies f outside of any effect and returns the values read
// before and after. f may be called more than once.
func (r XRef[C, B]) UpdateNow(f func(B) C) (before, after B) { return r.update(f) }
