package effects

import (
	"fmt"

	"github.com/on-the-ground/fiber_ive_go/effects/cause"
)

// evaluate runs the fiber from cur until it suspends, yields or completes.
// A panic raised by user code becomes a defect of the fiber and evaluation
// continues with it.
func (f *fiberContext) evaluate(cur instruction) {
	for cur != nil {
		cur = f.runSafely(cur)
	}
}

func (f *fiberContext) runSafely(cur instruction) (next instruction) {
	defer func() {
		if r := recover(); r != nil {
			next = haltInstr(panicCause(r))
		}
	}()
	f.runLoop(cur)
	return nil
}

func panicCause(r any) cause.Cause[any] {
	return cause.Die[any](cause.NewPanicError(r))
}

func (f *fiberContext) runLoop(cur instruction) {
	// A fiber interrupted before it started still installs the frames and
	// regions its effect opens with and runs its first leaf instruction, so
	// finalizers wrapped around the effect are always in place.
	// An async result that won against an interruption is delivered too.
	skipCheck := !f.started || f.resumed
	f.started = true
	f.resumed = false

	ops := 0
	for cur != nil {
		if !skipCheck && f.shouldInterrupt() {
			f.interrupting = true
			cur = haltInstr(f.interruptCause())
		}
		skipCheck = skipCheck && opensScope(cur)

		ops++
		if ops > f.rt.config.MaxOpsBeforeYield {
			f.started = !skipCheck
			f.schedule(cur)
			return
		}

		switch n := cur.(type) {
		case *succeedInstr:
			cur = f.continueWith(n.value)

		case *syncInstr:
			cur = f.continueWith(n.thunk())

		case *suspendInstr:
			cur = n.thunk()

		case *failInstr:
			cur = f.unwind(n.cause())

		case *flatMapInstr:
			f.push(&applyFrame{k: n.k})
			cur = n.first

		case *foldInstr:
			f.push(&foldFrame{onFailure: n.onFailure, onSuccess: n.onSuccess})
			cur = n.first

		case *asyncInstr:
			next, suspended := f.suspend(n)
			if suspended {
				return
			}
			cur = next
			skipCheck = true

		case *forkInstr:
			cur = f.continueWith(f.fork(n))

		case *interruptStatusInstr:
			f.regions = append(f.regions, n.interruptible)
			f.push(theInterruptExit)
			cur = n.effect

		case *checkInterruptInstr:
			cur = n.k(f.isInterruptible())

		case *provideInstr:
			f.envs = append(f.envs, n.env)
			f.push(theEnvExit)
			cur = n.effect

		case *accessInstr:
			cur = n.k(f.env())

		case *descriptorInstr:
			cur = n.k(f)

		case *yieldInstr:
			f.schedule(theUnit)
			return

		default:
			panic(fmt.Errorf("exhaustive match: unknown instruction %T", n))
		}
	}
}

// opensScope reports whether n only pushes a frame, a region or an
// environment before running a nested instruction.
func opensScope(n instruction) bool {
	switch n.(type) {
	case *flatMapInstr, *foldInstr, *interruptStatusInstr, *checkInterruptInstr, *provideInstr:
		return true
	}
	return false
}

// continueWith feeds v to the innermost pending continuation. It returns nil
// once the fiber is done.
func (f *fiberContext) continueWith(v any) instruction {
	for len(f.stack) > 0 {
		switch fr := f.pop().(type) {
		case *applyFrame:
			return fr.k(v)
		case *foldFrame:
			return fr.onSuccess(v)
		case *interruptExitFrame:
			f.popRegion()
			// Leaving a region may make a pending interruption deliverable,
			// which the loop checks before the next instruction.
			return &succeedInstr{value: v}
		case *envExitFrame:
			f.popEnv()
		default:
			panic(fmt.Errorf("exhaustive match: unknown frame %T", fr))
		}
	}
	return f.complete(cause.Success[any](v))
}

// unwind pops frames until a failure handler accepts c. Handlers are
// skipped while an interruption is deliverable, so user code cannot catch
// it; handlers inside uninterruptible regions still run.
func (f *fiberContext) unwind(c cause.Cause[any]) instruction {
	for len(f.stack) > 0 {
		switch fr := f.pop().(type) {
		case *applyFrame:
		case *foldFrame:
			if f.interrupted.Load() && f.isInterruptible() {
				continue
			}
			f.interrupting = false
			return callFailureHandler(fr.onFailure, c)
		case *interruptExitFrame:
			f.popRegion()
		case *envExitFrame:
			f.popEnv()
		default:
			panic(fmt.Errorf("exhaustive match: unknown frame %T", fr))
		}
	}
	return f.complete(cause.Failure[any, any](c))
}

// callFailureHandler keeps the cause being handled when the handler itself
// panics.
func callFailureHandler(h func(cause.Cause[any]) instruction, c cause.Cause[any]) (next instruction) {
	defer func() {
		if r := recover(); r != nil {
			next = haltInstr(cause.Then(c, panicCause(r)))
		}
	}()
	return h(c)
}

func (f *fiberContext) suspend(n *asyncInstr) (instruction, bool) {
	s := &suspension{interruptible: f.isInterruptible()}
	f.suspension.Store(s)

	s.cancel = n.register(func(next instruction) { f.resume(s, next) })
	if !s.state.CompareAndSwap(asyncRegistering, asyncSuspended) {
		// resumed synchronously during registration
		return s.result.Load().next, false
	}

	if s.interruptible && f.interrupted.Load() && s.state.CompareAndSwap(asyncSuspended, asyncResumed) {
		f.cancelAsync(s.cancel)
		return haltInstr(f.interruptCause()), false
	}
	return nil, true
}

func (f *fiberContext) fork(n *forkInstr) *fiberContext {
	child := f.rt.newFiber(f, n.daemon, f.env())
	if !n.daemon {
		f.addChild(child)
	}
	child.schedule(n.effect)
	return child
}

// complete publishes exit, or first interrupts and awaits the fiber's live
// children when there are any. It returns the instruction to run next, or
// nil once the fiber is done.
func (f *fiberContext) complete(exit cause.Exit[any, any]) instruction {
	children := f.liveChildren()
	if len(children) == 0 {
		f.finish(exit)
		return nil
	}

	var reap instruction = &syncInstr{thunk: func() any {
		for _, c := range children {
			c.interruptAs(f.id)
		}
		return struct{}{}
	}}
	for _, c := range children {
		reap = &flatMapInstr{first: reap, k: func(any) instruction { return awaitInstr(c) }}
	}
	return &interruptStatusInstr{
		interruptible: false,
		effect: &flatMapInstr{
			first: reap,
			k:     func(any) instruction { return exitInstr(exit) },
		},
	}
}
