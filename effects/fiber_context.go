package effects

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
	"weak"

	"github.com/on-the-ground/fiber_ive_go/effects/cause"
	"go.uber.org/zap"
)

const (
	asyncRegistering int32 = iota
	asyncSuspended
	asyncResumed
)

// suspension is the state of one asyncInstr. A callback from an earlier
// suspension holds its own suspension, so it can never resume a later one.
type suspension struct {
	state         atomic.Int32
	result        atomic.Pointer[resumption]
	interruptible bool
	cancel        func()
}

type resumption struct {
	next instruction
}

// fiberContext is the run-time state of a fiber.
//
// The fields in the first group belong to whichever worker currently runs
// the fiber; a fiber is never run by two workers at once.
type fiberContext struct {
	rt        *Runtime
	id        cause.FiberID
	parentID  cause.FiberID
	parent    weak.Pointer[fiberContext]
	daemon    bool
	startedAt time.Time
	logger    *zap.Logger
	key       string

	next         instruction
	stack        []frame
	regions      []bool
	envs         []any
	interrupting bool
	started      bool
	resumed      bool

	interrupted  atomic.Bool
	interruptors atomic.Pointer[[]cause.FiberID]
	suspension   atomic.Pointer[suspension]

	mu           sync.Mutex
	children     map[*fiberContext]struct{}
	observers    map[uint64]func(cause.Exit[any, any])
	nextObserver uint64
	exit         *cause.Exit[any, any]
	done         chan struct{}
}

func (f *fiberContext) PartitionKey() string { return f.key }

func (f *fiberContext) Run() {
	next := f.next
	f.next = nil
	f.evaluate(next)
}

func (f *fiberContext) info() FiberInfo {
	return FiberInfo{ID: f.id, Parent: f.parentID, Daemon: f.daemon, StartedAt: f.startedAt}
}

func (f *fiberContext) schedule(next instruction) {
	f.next = next
	if !f.rt.dispatcher.Dispatch(f) {
		f.finish(cause.Failure[any, any](cause.Die[any](ErrRuntimeClosed)))
	}
}

func (f *fiberContext) push(fr frame) { f.stack = append(f.stack, fr) }

func (f *fiberContext) pop() frame {
	last := len(f.stack) - 1
	fr := f.stack[last]
	f.stack[last] = nil
	f.stack = f.stack[:last]
	return fr
}

func (f *fiberContext) isInterruptible() bool {
	return f.regions[len(f.regions)-1]
}

func (f *fiberContext) popRegion() {
	f.regions = f.regions[:len(f.regions)-1]
}

func (f *fiberContext) env() any {
	return f.envs[len(f.envs)-1]
}

func (f *fiberContext) popEnv() {
	f.envs[len(f.envs)-1] = nil
	f.envs = f.envs[:len(f.envs)-1]
}

func (f *fiberContext) shouldInterrupt() bool {
	return !f.interrupting && f.interrupted.Load() && f.isInterruptible()
}

// interruptCause combines every interruption request received so far.
func (f *fiberContext) interruptCause() cause.Cause[any] {
	ids := f.interruptors.Load()
	if ids == nil {
		return cause.Interrupt[any](cause.NoFiber)
	}
	c := cause.Empty[any]()
	for _, id := range *ids {
		c = cause.Both(c, cause.Interrupt[any](id))
	}
	return c
}

// interruptAs records an interruption request. A fiber suspended in an
// interruptible region is woken up with the interruption; otherwise the
// request is observed by the run loop.
func (f *fiberContext) interruptAs(by cause.FiberID) {
	for {
		old := f.interruptors.Load()
		var ids []cause.FiberID
		if old != nil {
			ids = *old
		}
		if slices.Contains(ids, by) {
			break
		}
		next := append(slices.Clone(ids), by)
		if f.interruptors.CompareAndSwap(old, &next) {
			break
		}
	}
	f.interrupted.Store(true)

	s := f.suspension.Load()
	if s != nil && s.interruptible && s.state.CompareAndSwap(asyncSuspended, asyncResumed) {
		f.cancelAsync(s.cancel)
		f.schedule(haltInstr(f.interruptCause()))
	}
}

func (f *fiberContext) cancelAsync(cancel func()) {
	if cancel == nil {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				f.logger.Error("async canceler panicked", zap.Any("panic", r))
			}
		}()
		cancel()
	}()
}

// resume is the single-use callback handed to an async registration.
func (f *fiberContext) resume(s *suspension, next instruction) {
	if !s.result.CompareAndSwap(nil, &resumption{next: next}) {
		return
	}
	if s.state.CompareAndSwap(asyncRegistering, asyncResumed) {
		return
	}
	if s.state.CompareAndSwap(asyncSuspended, asyncResumed) {
		f.resumed = true
		f.schedule(next)
	}
}

func (f *fiberContext) addChild(child *fiberContext) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.children == nil {
		f.children = make(map[*fiberContext]struct{})
	}
	f.children[child] = struct{}{}
}

func (f *fiberContext) removeChild(child *fiberContext) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.children, child)
}

func (f *fiberContext) liveChildren() []*fiberContext {
	f.mu.Lock()
	defer f.mu.Unlock()
	children := make([]*fiberContext, 0, len(f.children))
	for c := range f.children {
		children = append(children, c)
	}
	slices.SortFunc(children, func(a, b *fiberContext) int { return a.id.Compare(b.id) })
	return children
}

func (f *fiberContext) childIDs() []cause.FiberID {
	children := f.liveChildren()
	ids := make([]cause.FiberID, len(children))
	for i, c := range children {
		ids[i] = c.id
	}
	return ids
}

// observe registers cb for the fiber's exit. If the fiber is already done,
// cb is not registered and the exit is returned instead.
func (f *fiberContext) observe(cb func(cause.Exit[any, any])) (key uint64, exit cause.Exit[any, any], done bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.exit != nil {
		return 0, *f.exit, true
	}
	if f.observers == nil {
		f.observers = make(map[uint64]func(cause.Exit[any, any]))
	}
	f.nextObserver++
	f.observers[f.nextObserver] = cb
	return f.nextObserver, exit, false
}

func (f *fiberContext) unobserve(key uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.observers, key)
}

func (f *fiberContext) poll() (cause.Exit[any, any], bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.exit == nil {
		return cause.Exit[any, any]{}, false
	}
	return *f.exit, true
}

// finish publishes the exit exactly once.
func (f *fiberContext) finish(exit cause.Exit[any, any]) {
	f.mu.Lock()
	if f.exit != nil {
		f.mu.Unlock()
		return
	}
	f.exit = &exit
	observers := f.observers
	f.observers = nil
	f.mu.Unlock()

	if p := f.parent.Value(); p != nil {
		p.removeChild(f)
	}
	if f.daemon || f.parentID.IsNone() {
		f.rt.release(f)
	}

	kind := cause.KindOf(exit)
	f.rt.config.Supervisor.OnEnd(f.info(), kind)
	if kind == cause.KindDefect {
		f.logger.Error("fiber died", zap.Error(exit.Cause().Err()))
	} else {
		f.logger.Debug("fiber done", zap.Stringer("exit", kind))
	}
	close(f.done)

	keys := make([]uint64, 0, len(observers))
	for k := range observers {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		observers[k](exit)
	}
}

// awaitInstr suspends until target is done and succeeds with its erased
// exit. Interrupting the waiter unregisters it from target.
func awaitInstr(target *fiberContext) instruction {
	return &asyncInstr{
		register: func(resume func(instruction)) func() {
			key, exit, done := target.observe(func(exit cause.Exit[any, any]) {
				resume(&succeedInstr{value: exit})
			})
			if done {
				resume(&succeedInstr{value: exit})
				return nil
			}
			return func() { target.unobserve(key) }
		},
	}
}
