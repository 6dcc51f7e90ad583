package stream_test

import (
	"context"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/on-the-ground/fiber_ive_go/effects"
	"github.com/on-the-ground/fiber_ive_go/effects/cause"
	"github.com/on-the-ground/fiber_ive_go/effects/managed"
	"github.com/on-the-ground/fiber_ive_go/effects/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Env = any

func newRuntime(t *testing.T) *effects.Runtime {
	t.Helper()
	rt := effects.NewRuntime(effects.NewRuntimeConfig(4, 0))
	t.Cleanup(rt.Close)
	return rt
}

func run[A any](t *testing.T, rt *effects.Runtime, eff effects.Effect[Env, string, A]) cause.Exit[string, A] {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exit := effects.Run(ctx, rt, eff)
	require.NoError(t, ctx.Err(), "stream did not complete in time")
	return exit
}

func collect[A any](t *testing.T, rt *effects.Runtime, s stream.Stream[Env, string, A]) []A {
	t.Helper()
	v, err := run(t, rt, stream.RunCollect(s)).Result()
	require.NoError(t, err)
	return v
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

func resource(j *journal, name string) stream.Stream[Env, string, string] {
	return stream.Bracket(
		effects.As(j.write("open "+name), name),
		func(n string) effects.Effect[Env, string, struct{}] { return j.write("close " + n) },
		func(n string) stream.Stream[Env, string, string] {
			return stream.FromSlice[Env, string]([]string{n + ".1", n + ".2"})
		},
	)
}

func TestStream_MapFilter(t *testing.T) {
	rt := newRuntime(t)

	s := stream.Filter(
		stream.Map(stream.FromChunks[Env, string]([]int{1, 2}, nil, []int{3, 4, 5}), func(v int) string {
			return "v=" + strconv.Itoa(v)
		}),
		func(v string) bool { return v == "v=2" || v == "v=4" },
	)
	assert.Equal(t, []string{"v=2", "v=4"}, collect(t, rt, s))
}

func TestStream_IsLazy(t *testing.T) {
	rt := newRuntime(t)
	var pulled atomic.Int32

	s := stream.MapEffect(stream.Iterate[Env, string](0, func(n int) int { return n + 1 }), func(n int) effects.Effect[Env, string, int] {
		return effects.Sync[Env, string](func() int {
			pulled.Add(1)
			return n
		})
	})
	taken := stream.Take(s, 3)
	assert.Zero(t, pulled.Load())

	assert.Equal(t, []int{0, 1, 2}, collect(t, rt, taken))
	assert.EqualValues(t, 3, pulled.Load())
	assert.Equal(t, []int{0, 1, 2}, collect(t, rt, taken), "every run starts over")
}

func TestStream_TakeWhileDropWhile(t *testing.T) {
	rt := newRuntime(t)
	small := func(n int) bool { return n < 3 }
	s := stream.FromChunks[Env, string]([]int{1, 2}, []int{3, 1}, []int{4})

	assert.Equal(t, []int{1, 2}, collect(t, rt, stream.TakeWhile(s, small)))
	assert.Equal(t, []int{3, 1, 4}, collect(t, rt, stream.DropWhile(s, small)))
	assert.Empty(t, collect(t, rt, stream.Take(s, 0)))
}

func TestStream_Unfold(t *testing.T) {
	rt := newRuntime(t)

	s := stream.Unfold[Env, string](1, func(n int) (string, int, bool) {
		return strconv.Itoa(n), n * 2, n <= 8
	})
	assert.Equal(t, []string{"1", "2", "4", "8"}, collect(t, rt, s))
}

func TestStream_FlatMapReleasesEachInnerStreamWhenExhausted(t *testing.T) {
	rt := newRuntime(t)
	j := newJournal()

	s := stream.FlatMap(stream.FromSlice[Env, string]([]string{"a", "b"}), func(name string) stream.Stream[Env, string, string] {
		return resource(j, name)
	})
	tapped := stream.MapEffect(s, func(v string) effects.Effect[Env, string, string] {
		return effects.As(j.write("got "+v), v)
	})
	assert.Equal(t, []string{"a.1", "a.2", "b.1", "b.2"}, collect(t, rt, tapped))
	assert.Equal(t, []string{
		"open a", "got a.1", "got a.2", "close a",
		"open b", "got b.1", "got b.2", "close b",
	}, j.entries())
}

func TestStream_ShortCircuitReleasesResources(t *testing.T) {
	rt := newRuntime(t)
	j := newJournal()

	infinite := stream.Bracket(
		j.write("open"),
		func(struct{}) effects.Effect[Env, string, struct{}] { return j.write("close") },
		func(struct{}) stream.Stream[Env, string, int] {
			return stream.Iterate[Env, string](1, func(n int) int { return n + 1 })
		},
	)
	v, err := run(t, rt, stream.RunHead(infinite)).Result()
	require.NoError(t, err)
	assert.Equal(t, effects.Pair[int, bool]{First: 1, Second: true}, v)
	assert.Equal(t, []string{"open", "close"}, j.entries())

	v, err = run(t, rt, stream.RunHead(stream.Empty[Env, string, int]())).Result()
	require.NoError(t, err)
	assert.False(t, v.Second)
}

func TestStream_FailureReleasesResources(t *testing.T) {
	rt := newRuntime(t)
	j := newJournal()

	s := stream.MapEffect(resource(j, "r"), func(v string) effects.Effect[Env, string, string] {
		return effects.Fail[Env, string, string]("bad " + v)
	})
	exit := run(t, rt, stream.RunDrain(s))
	assert.True(t, cause.Equal(cause.Fail("bad r.1"), exit.Cause()))
	assert.Equal(t, []string{"open r", "close r"}, j.entries())
}

func TestStream_InterruptionReleasesResources(t *testing.T) {
	rt := newRuntime(t)
	j := newJournal()
	opened := make(chan struct{})

	s := stream.Bracket(
		effects.Sync[Env, string](func() struct{} {
			close(opened)
			return struct{}{}
		}),
		func(struct{}) effects.Effect[Env, string, struct{}] { return j.write("close") },
		func(struct{}) stream.Stream[Env, string, int] {
			return stream.FromChannel[Env, string](make(chan int))
		},
	)
	eff := effects.FlatMap(effects.Fork(stream.RunDrain(s)), func(f effects.Fiber[string, struct{}]) effects.Effect[Env, string, cause.Exit[string, struct{}]] {
		return effects.ZipRight(
			effects.Async[Env, string, struct{}](func(complete func(cause.Exit[string, struct{}])) {
				go func() {
					<-opened
					complete(cause.Success[string](struct{}{}))
				}()
			}),
			effects.Interrupt[Env](f),
		)
	})
	x, err := run(t, rt, eff).Result()
	require.NoError(t, err)
	assert.True(t, x.Interrupted())
	assert.Equal(t, []string{"close"}, j.entries())
}

func TestStream_Zip(t *testing.T) {
	rt := newRuntime(t)

	l := stream.FromChunks[Env, string]([]int{1}, []int{2, 3, 4})
	r := stream.FromChunks[Env, string]([]string{"a", "b"}, []string{"c"})
	assert.Equal(t, []effects.Pair[int, string]{
		{First: 1, Second: "a"},
		{First: 2, Second: "b"},
		{First: 3, Second: "c"},
	}, collect(t, rt, stream.Zip(l, r)))
}

func TestStream_Concat(t *testing.T) {
	rt := newRuntime(t)
	j := newJournal()

	s := stream.Concat(resource(j, "x"), stream.FromEffect(effects.Succeed[Env, string]("mid")), resource(j, "y"))
	assert.Equal(t, []string{"x.1", "x.2", "mid", "y.1", "y.2"}, collect(t, rt, s))
	assert.Equal(t, []string{"open x", "close x", "open y", "close y"}, j.entries())
}

func TestStream_Managed(t *testing.T) {
	rt := newRuntime(t)
	j := newJournal()

	m := managed.Make(effects.As(j.write("acquire"), 7), func(int) effects.Effect[Env, string, struct{}] {
		return j.write("release")
	})
	var seen []int
	eff := stream.RunForEach(stream.Managed(m), func(n int) effects.Effect[Env, string, struct{}] {
		return effects.ZipRight(j.write("use"), effects.Sync[Env, string](func() struct{} {
			seen = append(seen, n)
			return struct{}{}
		}))
	})
	_, err := run(t, rt, eff).Result()
	require.NoError(t, err)
	assert.Equal(t, []int{7}, seen)
	assert.Equal(t, []string{"acquire", "use", "release"}, j.entries())
}

func TestStream_OrderBy(t *testing.T) {
	rt := newRuntime(t)
	cmp := func(a, b int) int { return a - b }
	s := stream.FromChunks[Env, string]([]int{10, 5}, []int{7, 3, 8})

	assert.Equal(t, []int{3, 5, 7, 8, 10}, collect(t, rt, stream.OrderBy(s, 3, cmp)))
	assert.Equal(t, []int{3, 5, 7, 8, 10}, collect(t, rt, stream.OrderBy(s, 10, cmp)))
	assert.Equal(t, []int{5, 7, 3, 8, 10}, collect(t, rt, stream.OrderBy(s, 1, cmp)))
}

func TestStream_FromChannel(t *testing.T) {
	rt := newRuntime(t)
	ch := make(chan int)
	go func() {
		defer close(ch)
		for i := 1; i <= 5; i++ {
			ch <- i
		}
	}()

	sum, err := run(t, rt, stream.RunFold(stream.FromChannel[Env, string](ch), 0, func(acc, n int) int { return acc + n })).Result()
	require.NoError(t, err)
	assert.Equal(t, 15, sum)
}

func TestStream_Merge(t *testing.T) {
	rt := newRuntime(t)

	evens := stream.FromChunks[Env, string]([]int{0, 2}, []int{4})
	odds := stream.FromSlice[Env, string]([]int{1, 3, 5})
	got := collect(t, rt, stream.Merge(evens, odds))
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4, 5}, got)
}

func TestStream_MergeFailsWithTheFirstFailure(t *testing.T) {
	rt := newRuntime(t)
	j := newJournal()

	blocked := stream.Bracket(
		effects.Unit[Env, string](),
		func(struct{}) effects.Effect[Env, string, struct{}] { return j.write("blocked source released") },
		func(struct{}) stream.Stream[Env, string, int] { return stream.FromChannel[Env, string](make(chan int)) },
	)
	failing := stream.FromEffect(effects.Fail[Env, string, int]("source failed"))
	exit := run(t, rt, stream.RunDrain(stream.Merge(blocked, failing)))
	assert.True(t, cause.Equal(cause.Fail("source failed"), exit.Cause()), exit.String())
	assert.Equal(t, []string{"blocked source released"}, j.entries())
}
