package effects

import (
	"context"
	"time"

	"github.com/on-the-ground/fiber_ive_go/effects/cause"
	"go.uber.org/zap"
)

// Fiber is a handle to a running computation that fails with E or
// succeeds with A.
type Fiber[E, A any] struct {
	ctx *fiberContext
}

// ID returns the fiber's identity.
func (f Fiber[E, A]) ID() cause.FiberID { return f.ctx.id }

// Poll returns the fiber's exit if it is done.
func (f Fiber[E, A]) Poll() (cause.Exit[E, A], bool) {
	exit, ok := f.ctx.poll()
	if !ok {
		return cause.Exit[E, A]{}, false
	}
	return castExit[E, A](exit), true
}

// Children returns the IDs of the fiber's live children.
func (f Fiber[E, A]) Children() []cause.FiberID { return f.ctx.childIDs() }

// Wait blocks the calling goroutine until the fiber is done or ctx is
// cancelled. It is meant for code outside the runtime; effects use Await.
func (f Fiber[E, A]) Wait(ctx context.Context) (cause.Exit[E, A], error) {
	select {
	case <-f.ctx.done:
		exit, _ := f.Poll()
		return exit, nil
	case <-ctx.Done():
		return cause.Exit[E, A]{}, ctx.Err()
	}
}

// Await suspends until fiber is done and succeeds with its exit.
func Await[R, E, A any](fiber Fiber[E, A]) Effect[R, E, cause.Exit[E, A]] {
	return wrap[R, E, cause.Exit[E, A]](&flatMapInstr{
		first: awaitInstr(fiber.ctx),
		k: func(v any) instruction {
			return &succeedInstr{value: castExit[E, A](v.(cause.Exit[any, any]))}
		},
	})
}

// Join suspends until fiber is done and ends with its exit.
func Join[R, E, A any](fiber Fiber[E, A]) Effect[R, E, A] {
	return FlatMap(Await[R](fiber), Done[R, E, A])
}

// Interrupt interrupts fiber on behalf of the current fiber and waits until
// it is done.
func Interrupt[R, E, A any](fiber Fiber[E, A]) Effect[R, E, cause.Exit[E, A]] {
	return DescriptorWith(func(d FiberDescriptor) Effect[R, E, cause.Exit[E, A]] {
		return InterruptAs[R](fiber, d.ID)
	})
}

// InterruptAs interrupts fiber on behalf of by and waits until it is done.
func InterruptAs[R, E, A any](fiber Fiber[E, A], by cause.FiberID) Effect[R, E, cause.Exit[E, A]] {
	return ZipRight(
		Sync[R, E](func() struct{} {
			fiber.ctx.interruptAs(by)
			return struct{}{}
		}),
		Await[R](fiber),
	)
}

// InterruptFork requests the interruption of fiber without waiting for it.
func InterruptFork[R, E, A any](fiber Fiber[E, A]) Effect[R, E, struct{}] {
	return DescriptorWith(func(d FiberDescriptor) Effect[R, E, struct{}] {
		return Sync[R, E](func() struct{} {
			fiber.ctx.interruptAs(d.ID)
			return struct{}{}
		})
	})
}

// FiberDescriptor is a snapshot of the running fiber.
type FiberDescriptor struct {
	ID            cause.FiberID
	Parent        cause.FiberID
	Interruptible bool
	Interrupted   bool
	Children      []cause.FiberID
	StartedAt     time.Time
	Logger        *zap.Logger
}

func (f *fiberContext) descriptor() FiberDescriptor {
	return FiberDescriptor{
		ID:            f.id,
		Parent:        f.parentID,
		Interruptible: f.isInterruptible(),
		Interrupted:   f.interrupted.Load(),
		Children:      f.childIDs(),
		StartedAt:     f.startedAt,
		Logger:        f.logger,
	}
}

// Descriptor succeeds with a snapshot of the running fiber.
func Descriptor[R, E any]() Effect[R, E, FiberDescriptor] {
	return wrap[R, E, FiberDescriptor](&descriptorInstr{
		k: func(f *fiberContext) instruction { return &succeedInstr{value: f.descriptor()} },
	})
}

// DescriptorWith builds an effect from a snapshot of the running fiber.
func DescriptorWith[R, E, A any](f func(FiberDescriptor) Effect[R, E, A]) Effect[R, E, A] {
	return wrap[R, E, A](&descriptorInstr{
		k: func(fc *fiberContext) instruction { return f(fc.descriptor()).node() },
	})
}
