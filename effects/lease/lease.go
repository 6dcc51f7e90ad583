// Package lease hands out a bounded number of leases per registered key.
//
// A fiber acquiring a lease on a key whose leases are all taken suspends
// until one is released. Waiters are served in arrival order.
package lease

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync/atomic"

	"github.com/on-the-ground/fiber_ive_go/effects"
	"github.com/on-the-ground/fiber_ive_go/effects/cause"
	"github.com/on-the-ground/fiber_ive_go/effects/managed"
	"github.com/on-the-ground/fiber_ive_go/effects/ref"
)

var ErrUnregisteredResource = errors.New("unregistered resource")
var ErrResourceInUse = errors.New("unable to deregister resource in use")

type waiter struct {
	id    uint64
	grant func()
}

type resource struct {
	numOwners int
	inUse     int
	waiters   []waiter
}

// Leases holds the registered keys. Its state is replaced as a whole on
// every change.
type Leases struct {
	resources ref.Ref[map[string]resource]
	nextID    atomic.Uint64
}

// New returns an empty set of leases.
func New() *Leases {
	return &Leases{resources: ref.New(map[string]resource{})}
}

// Register makes numOwners leases available on key. It reports false when
// key is already registered.
func Register[R any](l *Leases, key string, numOwners int) effects.Effect[R, error, bool] {
	if numOwners < 1 {
		return effects.Fail[R, error, bool](fmt.Errorf("numOwners must be positive, got %d", numOwners))
	}
	return ref.Modify[R, error](l.resources, func(m map[string]resource) (bool, map[string]resource) {
		if _, ok := m[key]; ok {
			return false, m
		}
		next := maps.Clone(m)
		next[key] = resource{numOwners: numOwners}
		return true, next
	})
}

// Deregister removes key. It fails while a lease on key is held or awaited.
func Deregister[R any](l *Leases, key string) effects.Effect[R, error, bool] {
	return effects.Suspend(func() effects.Effect[R, error, bool] {
		var err error
		l.resources.UpdateNow(func(m map[string]resource) map[string]resource {
			res, ok := m[key]
			switch {
			case !ok:
				err = fmt.Errorf("%w: key %s", ErrUnregisteredResource, key)
				return m
			case res.inUse > 0 || len(res.waiters) > 0:
				err = fmt.Errorf("%w key %s", ErrResourceInUse, key)
				return m
			}
			err = nil
			next := maps.Clone(m)
			delete(next, key)
			return next
		})
		if err != nil {
			return effects.Fail[R, error, bool](err)
		}
		return effects.Succeed[R, error](true)
	})
}

// Acquire takes a lease on key, suspending until one is free.
func Acquire[R any](l *Leases, key string) effects.Effect[R, error, struct{}] {
	return effects.AsyncInterrupt[R, error](func(complete func(cause.Exit[error, struct{}])) func() {
		id := l.nextID.Add(1)
		var granted, missing bool
		l.resources.UpdateNow(func(m map[string]resource) map[string]resource {
			granted, missing = false, false
			res, ok := m[key]
			if !ok {
				missing = true
				return m
			}
			if res.inUse < res.numOwners {
				res.inUse++
				granted = true
			} else {
				res.waiters = append(slices.Clip(res.waiters), waiter{id: id, grant: func() {
					complete(cause.Success[error](struct{}{}))
				}})
			}
			next := maps.Clone(m)
			next[key] = res
			return next
		})

		switch {
		case missing:
			complete(cause.FailureOf[error, struct{}](fmt.Errorf("%w: key %s", ErrUnregisteredResource, key)))
			return nil
		case granted:
			complete(cause.Success[error](struct{}{}))
			return nil
		}
		return func() {
			// a waiter that is gone was handed a lease it will never use
			if !l.dropWaiter(key, id) {
				_ = l.release(key)
			}
		}
	})
}

// Release gives a lease on key back, handing it to the oldest waiter if
// there is one.
func Release[R any](l *Leases, key string) effects.Effect[R, error, struct{}] {
	return effects.Suspend(func() effects.Effect[R, error, struct{}] {
		if err := l.release(key); err != nil {
			return effects.Fail[R, error, struct{}](err)
		}
		return effects.Unit[R, error]()
	})
}

// Lease holds a lease on key for the lifetime of the scope. Waiting for
// the lease can be interrupted.
func Lease[R any](l *Leases, key string) managed.Managed[R, error, struct{}] {
	return managed.AcquireReleaseInterruptible(Acquire[R](l, key), func(struct{}, cause.Exit[error, any]) effects.Effect[R, error, struct{}] {
		return Release[R](l, key)
	})
}

// InUse returns the number of leases held on key.
func (l *Leases) InUse(key string) int {
	return l.resources.Load()[key].inUse
}

func (l *Leases) release(key string) error {
	var handoff func()
	var err error
	l.resources.UpdateNow(func(m map[string]resource) map[string]resource {
		handoff, err = nil, nil
		res, ok := m[key]
		if !ok {
			err = fmt.Errorf("%w: key %s", ErrUnregisteredResource, key)
			return m
		}
		if len(res.waiters) > 0 {
			handoff = res.waiters[0].grant
			res.waiters = slices.Clone(res.waiters[1:])
		} else if res.inUse > 0 {
			res.inUse--
		}
		next := maps.Clone(m)
		next[key] = res
		return next
	})
	if handoff != nil {
		handoff()
	}
	return err
}

func (l *Leases) dropWaiter(key string, id uint64) bool {
	var found bool
	l.resources.UpdateNow(func(m map[string]resource) map[string]resource {
		res, ok := m[key]
		i := -1
		if ok {
			i = slices.IndexFunc(res.waiters, func(w waiter) bool { return w.id == id })
		}
		found = i >= 0
		if !found {
			return m
		}
		res.waiters = slices.Delete(slices.Clone(res.waiters), i, i+1)
		next := maps.Clone(m)
		next[key] = res
		return next
	})
	return found
}
