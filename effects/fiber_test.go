package effects_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/on-the-ground/fiber_ive_go/effects"
	"github.com/on-the-ground/fiber_ive_go/effects/cause"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFiber_ForkJoin(t *testing.T) {
	rt, _ := newTestRuntime(t, 2)

	eff := effects.FlatMap(effects.Fork(effects.Succeed[Env, string](21)), func(f effects.Fiber[string, int]) effects.Effect[Env, string, int] {
		return effects.Map(effects.Join[Env](f), func(n int) int { return n * 2 })
	})
	v, err := runTest(t, rt, eff).Result()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestFiber_JoinReraisesTheCause(t *testing.T) {
	rt, _ := newTestRuntime(t, 2)

	eff := effects.FlatMap(effects.Fork(effects.Fail[Env, string, int]("child")), effects.Join[Env, string, int])
	exit := runTest(t, rt, eff)
	assert.True(t, cause.Equal(cause.Fail("child"), exit.Cause()))
}

func TestFiber_InterruptSuspendedFiber(t *testing.T) {
	rt, _ := newTestRuntime(t, 2)
	rec := newRecorder()
	started := make(chan struct{})

	child := effects.OnInterrupt(effects.ZipRight(signal(started), effects.Never[Env, string, int]()), rec.record("cleanup"))
	eff := effects.FlatMap(effects.Fork(child),
		func(f effects.Fiber[string, int]) effects.Effect[Env, string, cause.Exit[string, int]] {
			return effects.ZipRight(waitFor(started), effects.Interrupt[Env](f))
		})
	v, err := runTest(t, rt, eff).Result()
	require.NoError(t, err)
	assert.True(t, v.Interrupted())
	assert.True(t, cause.InterruptedOnly(v.Cause()))
	assert.Equal(t, []string{"cleanup"}, rec.events())
}

func TestFiber_InterruptedBeforeStartingStillRunsItsFinalizers(t *testing.T) {
	rt, _ := newTestRuntime(t, 1)

	for i := 0; i < 50; i++ {
		rec := newRecorder()
		child := effects.OnInterrupt(effects.Never[Env, string, int](), rec.record("finalized"))
		eff := effects.FlatMap(effects.Fork(child), func(f effects.Fiber[string, int]) effects.Effect[Env, string, cause.Exit[string, int]] {
			return effects.Interrupt[Env](f)
		})
		x, err := runTest(t, rt, eff).Result()
		require.NoError(t, err)
		assert.True(t, x.Interrupted())
		assert.Equal(t, []string{"finalized"}, rec.events(), "run %d", i)
	}
}

func TestFiber_InterruptRecordsTheInterruptor(t *testing.T) {
	rt, _ := newTestRuntime(t, 2)

	eff := effects.FlatMap(effects.Fork(effects.Never[Env, string, int]()), func(f effects.Fiber[string, int]) effects.Effect[Env, string, []cause.FiberID] {
		return effects.DescriptorWith(func(d effects.FiberDescriptor) effects.Effect[Env, string, []cause.FiberID] {
			return effects.Map(effects.Interrupt[Env](f), func(x cause.Exit[string, int]) []cause.FiberID {
				return append([]cause.FiberID{d.ID}, cause.Interruptors(x.Cause())...)
			})
		})
	})
	ids, err := runTest(t, rt, eff).Result()
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, ids[0], ids[1])
}

func TestFiber_ChildrenAreInterruptedWhenTheParentCompletes(t *testing.T) {
	rt, _ := newTestRuntime(t, 2)
	rec := newRecorder()
	started := make(chan struct{})

	child := effects.OnInterrupt(effects.ZipRight(signal(started), effects.Never[Env, string, int]()), rec.record("child released"))
	eff := effects.ZipRight(effects.Fork(child), effects.As(waitFor(started), "parent done"))

	v, err := runTest(t, rt, eff).Result()
	require.NoError(t, err)
	assert.Equal(t, "parent done", v)
	assert.Equal(t, []string{"child released"}, rec.events())
}

func TestFiber_DaemonOutlivesItsParent(t *testing.T) {
	rt, _ := newTestRuntime(t, 2)
	release := make(chan struct{})

	daemon := effects.FromTask[Env](func(ctx context.Context) (int, error) {
		select {
		case <-release:
			return 1, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	})
	f, err := runTest(t, rt, effects.ForkDaemon(daemon)).Result()
	require.NoError(t, err)

	_, done := f.Poll()
	assert.False(t, done, "daemon must not be reaped with its parent")

	close(release)
	exit, err := f.Wait(t.Context())
	require.NoError(t, err)
	v, err := exit.Result()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestFiber_InterruptibilityRegionsNest(t *testing.T) {
	rt, _ := newTestRuntime(t, 1)
	status := effects.CheckInterruptible(func(s effects.InterruptStatus) effects.Effect[Env, string, bool] {
		return effects.Succeed[Env, string](s.Interruptible())
	})
	collect := func(effs ...effects.Effect[Env, string, bool]) effects.Effect[Env, string, []bool] {
		return effects.CollectAll(effs)
	}

	eff := collect(
		status,
		effects.Uninterruptible(status),
		effects.UninterruptibleMask(func(restore effects.InterruptStatus) effects.Effect[Env, string, bool] {
			return effects.UninterruptibleMask(func(inner effects.InterruptStatus) effects.Effect[Env, string, bool] {
				return effects.Restore(inner, effects.Restore(restore, status))
			})
		}),
		effects.Uninterruptible(effects.UninterruptibleMask(func(restore effects.InterruptStatus) effects.Effect[Env, string, bool] {
			return effects.Restore(restore, status)
		})),
		effects.Uninterruptible(effects.Interruptible(status)),
		status,
	)
	v, err := runTest(t, rt, eff).Result()
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true, false, true, true}, v)
}

func TestFiber_UninterruptibleDefersInterruption(t *testing.T) {
	rt, _ := newTestRuntime(t, 2)
	rec := newRecorder()
	started := make(chan struct{})

	critical := effects.Uninterruptible(effects.ZipRight(
		effects.ZipRight(signal(started), effects.Sleep[Env, string](20*time.Millisecond)),
		rec.record("critical section finished"),
	))
	eff := effects.FlatMap(effects.Fork(effects.ZipRight(critical, rec.record("after"))),
		func(f effects.Fiber[string, struct{}]) effects.Effect[Env, string, cause.Exit[string, struct{}]] {
			return effects.ZipRight(waitFor(started), effects.Interrupt[Env](f))
		})
	v, err := runTest(t, rt, eff).Result()
	require.NoError(t, err)
	assert.True(t, v.Interrupted())
	assert.Equal(t, []string{"critical section finished"}, rec.events())
}

func TestFiber_InterruptionCannotBeCaught(t *testing.T) {
	rt, _ := newTestRuntime(t, 2)
	rec := newRecorder()

	body := effects.CatchAllCause(effects.Never[Env, string, int](), func(cause.Cause[string]) effects.Effect[Env, string, int] {
		return effects.As(rec.record("caught"), 0)
	})
	eff := effects.FlatMap(effects.Fork(body), func(f effects.Fiber[string, int]) effects.Effect[Env, string, cause.Exit[string, int]] {
		return effects.ZipRight(effects.Sleep[Env, string](5*time.Millisecond), effects.Interrupt[Env](f))
	})
	v, err := runTest(t, rt, eff).Result()
	require.NoError(t, err)
	assert.True(t, v.Interrupted())
	assert.Empty(t, rec.events())
}

func TestFiber_YieldKeepsTheWorkerFair(t *testing.T) {
	rt := effects.NewRuntime(effects.RuntimeConfig{NumWorkers: 1, MaxOpsBeforeYield: 64})
	t.Cleanup(rt.Close)

	busy := effects.RepeatWhileM(effects.Unit[Env, string](), func(struct{}) effects.Effect[Env, string, bool] {
		return effects.Succeed[Env, string](true)
	})
	eff := effects.ZipRight(effects.Fork(busy), effects.FlatMap(
		effects.Fork(effects.Succeed[Env, string]("other fiber ran")),
		effects.Join[Env, string, string],
	))
	v, err := runTest(t, rt, eff).Result()
	require.NoError(t, err)
	assert.Equal(t, "other fiber ran", v)
}

func TestFiber_DescriptorListsChildren(t *testing.T) {
	rt, _ := newTestRuntime(t, 2)

	eff := effects.FlatMap(effects.Fork(effects.Never[Env, string, int]()), func(f effects.Fiber[string, int]) effects.Effect[Env, string, bool] {
		return effects.Map(effects.Descriptor[Env, string](), func(d effects.FiberDescriptor) bool {
			return len(d.Children) == 1 && d.Children[0] == f.ID() && d.Interruptible && !d.Interrupted
		})
	})
	v, err := runTest(t, rt, eff).Result()
	require.NoError(t, err)
	assert.True(t, v)
}

func TestRuntime_CancelledContextInterruptsTheRootFiber(t *testing.T) {
	rt, _ := newTestRuntime(t, 1)
	rec := newRecorder()
	started := make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-started
		cancel()
	}()
	exit := effects.Run(ctx, rt, effects.OnInterrupt(
		effects.ZipRight(signal(started), effects.Never[Env, string, int]()),
		rec.record("interrupted"),
	))
	assert.True(t, exit.Interrupted())
	assert.Equal(t, []cause.FiberID{cause.NoFiber}, cause.Interruptors(exit.Cause()))
	assert.Equal(t, []string{"interrupted"}, rec.events())
}

func TestRuntime_ClosedRuntimeRejectsWork(t *testing.T) {
	rt := effects.NewRuntime(effects.NewRuntimeConfig(1, 0))
	rt.Close()

	exit := effects.Run(t.Context(), rt, effects.Succeed[Env, string](1))
	assert.Equal(t, []error{effects.ErrRuntimeClosed}, cause.Defects(exit.Cause()))
}

func TestRuntime_ShutdownInterruptsDaemons(t *testing.T) {
	rt := effects.NewRuntime(effects.NewRuntimeConfig(2, 0))
	rec := newRecorder()
	started := make(chan struct{})

	body := effects.OnInterrupt(effects.ZipRight(signal(started), effects.Never[Env, string, int]()), rec.record("stopped"))
	f := effects.RunAsync(rt, Env(nil), body, nil)
	<-started
	require.NoError(t, rt.Shutdown(t.Context()))

	exit, ok := f.Poll()
	require.True(t, ok)
	assert.True(t, exit.Interrupted())
	assert.Equal(t, []string{"stopped"}, rec.events())
}

func TestRuntime_RunAsyncCallback(t *testing.T) {
	rt, _ := newTestRuntime(t, 1)

	got := make(chan cause.Exit[string, int], 1)
	effects.RunAsync(rt, Env(nil), effects.Succeed[Env, string](5), func(x cause.Exit[string, int]) { got <- x })
	select {
	case x := <-got:
		v, ok := x.Value()
		assert.True(t, ok)
		assert.Equal(t, 5, v)
	case <-time.After(time.Second):
		t.Fatal("callback was not called")
	}
}

func TestRuntime_LogsUnhandledDefects(t *testing.T) {
	rt, logs := newTestRuntime(t, 1)

	runTest(t, rt, effects.Die[Env, string, int](errBoom))
	entries := logs.FilterMessage("fiber died").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.ErrorLevel, entries[0].Level)
}

type recordingSupervisor struct {
	mu     sync.Mutex
	starts int
	ends   map[cause.Kind]int
}

func (s *recordingSupervisor) OnStart(effects.FiberInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts++
}

func (s *recordingSupervisor) OnEnd(_ effects.FiberInfo, kind cause.Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ends[kind]++
}

func TestRuntime_SupervisorSeesEveryFiber(t *testing.T) {
	sv := &recordingSupervisor{ends: map[cause.Kind]int{}}
	rt := effects.NewRuntime(effects.RuntimeConfig{NumWorkers: 2, Supervisor: effects.Supervisors(sv, nil)})
	t.Cleanup(rt.Close)

	eff := effects.ZipPar(effects.Succeed[Env, string](1), effects.Fail[Env, string, int]("e"))
	runTest(t, rt, eff)

	sv.mu.Lock()
	defer sv.mu.Unlock()
	assert.Equal(t, 3, sv.starts)
	assert.Equal(t, 1, sv.ends[cause.KindSuccess])
	assert.Equal(t, 2, sv.ends[cause.KindFailure])
}
