package effects

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
	"weak"

	"github.com/google/uuid"
	"github.com/on-the-ground/fiber_ive_go/effects/cause"
	"github.com/on-the-ground/fiber_ive_go/effects/internal/dispatcher"
	"go.uber.org/zap"
)

// ErrRuntimeClosed is the defect of fibers run or resumed after their
// Runtime was closed.
var ErrRuntimeClosed = errors.New("runtime closed")

// Runtime runs effects on a bounded pool of workers.
type Runtime struct {
	id         uuid.UUID
	config     RuntimeConfig
	dispatcher *dispatcher.WorkerDispatcher[*fiberContext]
	logger     *zap.Logger
	seq        atomic.Uint64
	closed     atomic.Bool

	mu    sync.Mutex
	roots map[*fiberContext]struct{}
}

// NewRuntime starts a runtime with config's worker pool.
func NewRuntime(config RuntimeConfig) *Runtime {
	config = config.normalize()
	rt := &Runtime{
		id:     uuid.New(),
		config: config,
		roots:  make(map[*fiberContext]struct{}),
	}
	rt.logger = config.Logger.With(zap.Stringer("runtime", rt.id))
	rt.dispatcher = dispatcher.NewPartitionedDispatcher(
		context.Background(),
		config.NumWorkers,
		func(f *fiberContext, r any) {
			rt.logger.Error("worker recovered from a panic outside the run loop",
				zap.Stringer("fiber", f.id), zap.Any("panic", r))
			f.finish(cause.Failure[any, any](panicCause(r)))
		},
	)
	rt.logger.Debug("runtime started",
		zap.Int("workers", config.NumWorkers),
		zap.Int("max_ops_before_yield", config.MaxOpsBeforeYield))
	return rt
}

// ID returns the runtime's identity.
func (rt *Runtime) ID() uuid.UUID { return rt.id }

// Config returns the normalized configuration.
func (rt *Runtime) Config() RuntimeConfig { return rt.config }

func (rt *Runtime) newFiber(parent *fiberContext, daemon bool, env any) *fiberContext {
	id := cause.NewFiberID(rt.seq.Add(1))
	f := &fiberContext{
		rt:        rt,
		id:        id,
		daemon:    daemon,
		startedAt: time.Now(),
		key:       id.UUID.String(),
		regions:   []bool{true},
		envs:      []any{env},
		done:      make(chan struct{}),
	}
	if parent != nil {
		f.parentID = parent.id
		if !daemon {
			f.parent = weak.Make(parent)
		}
	}
	f.logger = rt.logger.With(zap.Stringer("fiber", id))
	if daemon || parent == nil {
		rt.mu.Lock()
		rt.roots[f] = struct{}{}
		rt.mu.Unlock()
	}
	rt.config.Supervisor.OnStart(f.info())
	f.logger.Debug("fiber started", zap.Stringer("parent", f.parentID), zap.Bool("daemon", daemon))
	return f
}

func (rt *Runtime) release(f *fiberContext) {
	rt.mu.Lock()
	delete(rt.roots, f)
	rt.mu.Unlock()
}

func (rt *Runtime) start(env any, eff instruction) *fiberContext {
	f := rt.newFiber(nil, false, env)
	if rt.closed.Load() {
		f.finish(cause.Failure[any, any](cause.Die[any](ErrRuntimeClosed)))
		return f
	}
	f.schedule(eff)
	return f
}

// Shutdown interrupts every root and daemon fiber, waits until they are
// done or ctx is cancelled, then stops the workers.
func (rt *Runtime) Shutdown(ctx context.Context) error {
	if !rt.closed.CompareAndSwap(false, true) {
		return nil
	}
	rt.mu.Lock()
	roots := make([]*fiberContext, 0, len(rt.roots))
	for f := range rt.roots {
		roots = append(roots, f)
	}
	rt.mu.Unlock()

	var err error
	for _, f := range roots {
		f.interruptAs(cause.NoFiber)
	}
	for _, f := range roots {
		select {
		case <-f.done:
		case <-ctx.Done():
			err = ctx.Err()
		}
		if err != nil {
			break
		}
	}
	rt.dispatcher.Close()
	rt.logger.Debug("runtime closed", zap.Int("interrupted", len(roots)))
	return err
}

// Close is Shutdown without a deadline.
func (rt *Runtime) Close() {
	_ = rt.Shutdown(context.Background())
}

// Run runs eff with the zero environment and blocks until it is done.
func Run[R, E, A any](ctx context.Context, rt *Runtime, eff Effect[R, E, A]) cause.Exit[E, A] {
	var env R
	return RunEnv(ctx, rt, env, eff)
}

// RunEnv runs eff with env and blocks until it is done. Cancelling ctx
// interrupts the fiber; RunEnv still waits for its finalizers.
func RunEnv[R, E, A any](ctx context.Context, rt *Runtime, env R, eff Effect[R, E, A]) cause.Exit[E, A] {
	f := rt.start(env, eff.node())
	select {
	case <-f.done:
	case <-ctx.Done():
		f.interruptAs(cause.NoFiber)
		<-f.done
	}
	exit, _ := f.poll()
	return castExit[E, A](exit)
}

// RunAsync starts eff with env and returns immediately. cb, if not nil, is
// called with the exit on a worker goroutine.
func RunAsync[R, E, A any](rt *Runtime, env R, eff Effect[R, E, A], cb func(cause.Exit[E, A])) Fiber[E, A] {
	f := rt.newFiber(nil, false, env)
	if cb != nil {
		f.observe(func(exit cause.Exit[any, any]) { cb(castExit[E, A](exit)) })
	}
	if rt.closed.Load() {
		f.finish(cause.Failure[any, any](cause.Die[any](ErrRuntimeClosed)))
	} else {
		f.schedule(eff.node())
	}
	return Fiber[E, A]{ctx: f}
}
