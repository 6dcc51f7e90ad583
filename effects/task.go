package effects

import (
	"context"

	"github.com/on-the-ground/fiber_ive_go/effects/cause"
)

// Task is a blocking Go function that honours context cancellation.
type Task[A any] func(context.Context) (A, error)

// FromTask runs task on its own goroutine while the fiber is suspended.
// Interrupting the fiber cancels the task's context; a result delivered
// after that is dropped. A panic in task becomes a defect.
func FromTask[R, A any](task Task[A]) Effect[R, error, A] {
	return AsyncInterrupt[R, error, A](func(complete func(cause.Exit[error, A])) func() {
		ctx, cancel := context.WithCancel(context.Background())
		ready := make(chan struct{})
		go func() {
			close(ready)
			defer cancel()
			defer func() {
				if r := recover(); r != nil {
					complete(cause.Failure[error, A](cause.Die[error](cause.NewPanicError(r))))
				}
			}()

			a, err := task(ctx)
			if err != nil {
				complete(cause.FailureOf[error, A](err))
				return
			}
			complete(cause.Success[error](a))
		}()
		<-ready
		return cancel
	})
}
