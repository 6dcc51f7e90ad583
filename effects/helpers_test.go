package effects_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/on-the-ground/fiber_ive_go/effects"
	"github.com/on-the-ground/fiber_ive_go/effects/cause"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var errBoom = errors.New("boom")

type Env = any

func newTestRuntime(t *testing.T, workers int) (*effects.Runtime, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	rt := effects.NewRuntime(effects.RuntimeConfig{
		NumWorkers: workers,
		Logger:     zap.New(core),
	})
	t.Cleanup(rt.Close)
	return rt, logs
}

func runTest[E, A any](t *testing.T, rt *effects.Runtime, eff effects.Effect[Env, E, A]) cause.Exit[E, A] {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exit := effects.Run(ctx, rt, eff)
	if ctx.Err() != nil {
		t.Fatalf("effect did not complete in time: %v", exit)
	}
	return exit
}

// recorder collects events from concurrent fibers.
type recorder struct {
	ch chan string
}

func newRecorder() *recorder { return &recorder{ch: make(chan string, 128)} }

func (r *recorder) record(s string) effects.Effect[Env, string, struct{}] {
	return effects.Sync[Env, string](func() struct{} {
		r.ch <- s
		return struct{}{}
	})
}

func (r *recorder) events() []string {
	var out []string
	for {
		select {
		case s := <-r.ch:
			out = append(out, s)
		default:
			return out
		}
	}
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
