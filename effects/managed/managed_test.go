package managed_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/on-the-ground/fiber_ive_go/effects"
	"github.com/on-the-ground/fiber_ive_go/effects/cause"
	"github.com/on-the-ground/fiber_ive_go/effects/managed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Env = any

var errBoom = errors.New("boom")

func newRuntime(t *testing.T) *effects.Runtime {
	t.Helper()
	rt := effects.NewRuntime(effects.NewRuntimeConfig(2, 0))
	t.Cleanup(rt.Close)
	return rt
}

func run[A any](t *testing.T, rt *effects.Runtime, eff effects.Effect[Env, string, A]) cause.Exit[string, A] {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return effects.Run(ctx, rt, eff)
}

type journal struct {
	ch chan string
}

func newJournal() *journal { return &journal{ch: make(chan string, 64)} }

func (j *journal) write(s string) effects.Effect[Env, string, struct{}] {
	return effects.Sync[Env, string](func() struct{} {
		j.ch <- s
		return struct{}{}
	})
}

func (j *journal) entries() []string {
	var out []string
	for {
		select {
		case s := <-j.ch:
			out = append(out, s)
		default:
			return out
		}
	}
}

func resource(j *journal, name string) managed.Managed[Env, string, string] {
	return managed.AcquireRelease(
		effects.As(j.write("acquire "+name), name),
		func(n string, _ cause.Exit[string, any]) effects.Effect[Env, string, struct{}] {
			return j.write("release " + n)
		},
	)
}

func nested(j *journal, k int) managed.Managed[Env, string, []string] {
	m := managed.Map(resource(j, "r0"), func(n string) []string { return []string{n} })
	for i := 1; i < k; i++ {
		name := fmt.Sprintf("r%d", i)
		m = managed.FlatMap(m, func(acc []string) managed.Managed[Env, string, []string] {
			return managed.Map(resource(j, name), func(n string) []string { return append(acc, n) })
		})
	}
	return m
}

var lifo = []string{
	"acquire r0", "acquire r1", "acquire r2",
	"release r2", "release r1", "release r0",
}

func TestUse_ReleasesInReverseOrderOnEveryExit(t *testing.T) {
	rt := newRuntime(t)

	bodies := map[string]func([]string) effects.Effect[Env, string, int]{
		"success": func([]string) effects.Effect[Env, string, int] { return effects.Succeed[Env, string](1) },
		"failure": func([]string) effects.Effect[Env, string, int] { return effects.Fail[Env, string, int]("e") },
		"defect":  func([]string) effects.Effect[Env, string, int] { return effects.Die[Env, string, int](errBoom) },
		"panic": func([]string) effects.Effect[Env, string, int] {
			return effects.Sync[Env, string](func() int { panic("body") })
		},
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			j := newJournal()
			run(t, rt, managed.Use(nested(j, 3), body))
			assert.Equal(t, lifo, j.entries())
		})
	}
}

func TestUse_ReleasesInReverseOrderWhenInterrupted(t *testing.T) {
	rt := newRuntime(t)
	j := newJournal()
	started := make(chan struct{})

	body := func([]string) effects.Effect[Env, string, int] {
		return effects.ZipRight(effects.Sync[Env, string](func() struct{} {
			close(started)
			return struct{}{}
		}), effects.Never[Env, string, int]())
	}
	eff := effects.FlatMap(effects.Fork(managed.Use(nested(j, 3), body)), func(f effects.Fiber[string, int]) effects.Effect[Env, string, cause.Exit[string, int]] {
		return effects.ZipRight(
			effects.Async[Env, string, struct{}](func(complete func(cause.Exit[string, struct{}])) {
				go func() {
					<-started
					complete(cause.Success[string](struct{}{}))
				}()
			}),
			effects.Interrupt[Env](f),
		)
	})
	v, err := run(t, rt, eff).Result()
	require.NoError(t, err)
	assert.True(t, v.Interrupted())
	assert.Equal(t, lifo, j.entries())
}

func signal(ch chan struct{}) effects.Effect[Env, string, struct{}] {
	return effects.Sync[Env, string](func() struct{} {
		close(ch)
		return struct{}{}
	})
}

func waitFor(ch <-chan struct{}) effects.Effect[Env, string, struct{}] {
	return effects.Async[Env, string, struct{}](func(complete func(cause.Exit[string, struct{}])) {
		go func() {
			<-ch
			complete(cause.Success[string](struct{}{}))
		}()
	})
}

func TestUse_InterruptedWhileAcquiring(t *testing.T) {
	rt := newRuntime(t)

	type acquireRelease func(
		effects.Effect[Env, string, string],
		func(string, cause.Exit[string, any]) effects.Effect[Env, string, struct{}],
	) managed.Managed[Env, string, string]

	cases := map[string]struct {
		make  acquireRelease
		sleep time.Duration
		want  []string
	}{
		"uninterruptible acquire finishes and is released": {
			make:  managed.AcquireRelease[Env, string, string],
			sleep: 20 * time.Millisecond,
			want:  []string{"acquire r0", "acquire r1", "release r1", "release r0"},
		},
		"interruptible acquire is abandoned": {
			make:  managed.AcquireReleaseInterruptible[Env, string, string],
			sleep: 10 * time.Second,
			want:  []string{"acquire r0", "release r0"},
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			j := newJournal()
			acquiring := make(chan struct{})

			r1 := tc.make(
				effects.ZipRight(signal(acquiring), effects.ZipRight(effects.Sleep[Env, string](tc.sleep), effects.As(j.write("acquire r1"), "r1"))),
				func(n string, _ cause.Exit[string, any]) effects.Effect[Env, string, struct{}] { return j.write("release " + n) },
			)
			m := managed.FlatMap(resource(j, "r0"), func(string) managed.Managed[Env, string, string] { return r1 })
			use := managed.Use(m, func(string) effects.Effect[Env, string, int] { return effects.Never[Env, string, int]() })

			eff := effects.FlatMap(effects.Fork(use), func(f effects.Fiber[string, int]) effects.Effect[Env, string, cause.Exit[string, int]] {
				return effects.ZipRight(waitFor(acquiring), effects.Interrupt[Env](f))
			})
			v, err := run(t, rt, eff).Result()
			require.NoError(t, err)
			assert.True(t, v.Interrupted())
			assert.Equal(t, tc.want, j.entries())
		})
	}
}

func TestUse_BodyFailureIsObservedBeforeRelease(t *testing.T) {
	rt := newRuntime(t)
	j := newJournal()

	m := managed.AcquireRelease(effects.Succeed[Env, string](1), func(int, cause.Exit[string, any]) effects.Effect[Env, string, struct{}] {
		return j.write("released")
	})
	body := func(n int) effects.Effect[Env, string, int] {
		return effects.ZipRight(j.write(fmt.Sprintf("body %d", n)), effects.Fail[Env, string, int]("boom"))
	}
	exit := run(t, rt, managed.Use(m, body))
	assert.True(t, cause.Equal(cause.Fail("boom"), exit.Cause()))
	assert.Equal(t, []string{"body 1", "released"}, j.entries())
}

func TestUse_ReleaseSeesTheExit(t *testing.T) {
	rt := newRuntime(t)
	exits := make(chan cause.Exit[string, any], 1)

	m := managed.AcquireRelease(effects.Succeed[Env, string](1), func(_ int, x cause.Exit[string, any]) effects.Effect[Env, string, struct{}] {
		return effects.Sync[Env, string](func() struct{} {
			exits <- x
			return struct{}{}
		})
	})
	run(t, rt, managed.Use(m, func(n int) effects.Effect[Env, string, int] { return effects.Succeed[Env, string](n + 1) }))
	x := <-exits
	v, ok := x.Value()
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestUse_FinalizerFailuresAreSequenced(t *testing.T) {
	rt := newRuntime(t)

	failing := func(name string) managed.Managed[Env, string, struct{}] {
		return managed.Finalize(func(cause.Exit[string, any]) effects.Effect[Env, string, struct{}] {
			return effects.Fail[Env, string, struct{}](name)
		})
	}
	m := managed.Zip(failing("first registered"), failing("second registered"))
	exit := run(t, rt, managed.Use(m, func(effects.Pair[struct{}, struct{}]) effects.Effect[Env, string, int] {
		return effects.Fail[Env, string, int]("body")
	}))
	assert.Equal(t, []string{"body", "second registered", "first registered"}, cause.Failures(exit.Cause()))
	assert.True(t, cause.Equal(
		cause.Then(cause.Fail("body"), cause.Then(cause.Fail("second registered"), cause.Fail("first registered"))),
		exit.Cause(),
	))
}

func TestUse_AcquireFailureReleasesWhatWasAcquired(t *testing.T) {
	rt := newRuntime(t)
	j := newJournal()

	m := managed.FlatMap(resource(j, "r0"), func(string) managed.Managed[Env, string, string] {
		return managed.FromEffect(effects.Fail[Env, string, string]("second acquire"))
	})
	exit := run(t, rt, managed.UseNow(m))
	assert.True(t, cause.Equal(cause.Fail("second acquire"), exit.Cause()))
	assert.Equal(t, []string{"acquire r0", "release r0"}, j.entries())
}

func TestScope_AddAfterCloseRunsAtOnce(t *testing.T) {
	rt := newRuntime(t)
	j := newJournal()
	scope := managed.NewScope[Env, string]()

	eff := effects.ZipRight(
		scope.Close(cause.Success[string, any](nil)),
		scope.Add(func(cause.Exit[string, any]) effects.Effect[Env, string, struct{}] { return j.write("late") }),
	)
	_, err := run(t, rt, eff).Result()
	require.NoError(t, err)
	assert.True(t, scope.Closed())
	assert.Equal(t, []string{"late"}, j.entries())
}

func TestScope_CloseIsIdempotentAndReleaseIsOnce(t *testing.T) {
	rt := newRuntime(t)
	j := newJournal()
	scope := managed.NewScope[Env, string]()

	add := func(name string) effects.Effect[Env, string, managed.Key] {
		return scope.Add(func(cause.Exit[string, any]) effects.Effect[Env, string, struct{}] { return j.write(name) })
	}
	done := cause.Success[string, any](nil)
	eff := effects.FlatMap(add("a"), func(managed.Key) effects.Effect[Env, string, struct{}] {
		return effects.FlatMap(add("b"), func(b managed.Key) effects.Effect[Env, string, struct{}] {
			return effects.ZipRight(
				effects.ZipRight(scope.Release(b, done), scope.Release(b, done)),
				effects.ZipRight(scope.Close(done), scope.Close(done)),
			)
		})
	})
	_, err := run(t, rt, eff).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, j.entries())
	assert.Zero(t, scope.Size())
}

func TestScope_ForkedChildClosesWithParent(t *testing.T) {
	rt := newRuntime(t)
	j := newJournal()
	parent := managed.NewScope[Env, string]()

	eff := effects.FlatMap(parent.Fork(), func(child *managed.Scope[Env, string]) effects.Effect[Env, string, bool] {
		return effects.ZipRight(
			effects.ZipRight(
				child.Add(func(cause.Exit[string, any]) effects.Effect[Env, string, struct{}] { return j.write("child") }),
				parent.Close(cause.Success[string, any](nil)),
			),
			effects.Sync[Env, string](child.Closed),
		)
	})
	closed, err := run(t, rt, eff).Result()
	require.NoError(t, err)
	assert.True(t, closed)
	assert.Equal(t, []string{"child"}, j.entries())
}

func TestForkManaged_InterruptsOnRelease(t *testing.T) {
	rt := newRuntime(t)
	j := newJournal()

	background := effects.OnInterrupt(effects.Never[Env, string, int](), j.write("background interrupted"))
	eff := effects.FlatMap(
		managed.UseNow(managed.ForkManaged(background)),
		func(f effects.Fiber[string, int]) effects.Effect[Env, string, bool] {
			return effects.Sync[Env, string](func() bool {
				x, done := f.Poll()
				return done && x.Interrupted()
			})
		},
	)
	ok, err := run(t, rt, eff).Result()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"background interrupted"}, j.entries())
}
