// Package effects provides an effect runtime for Go: computations described
// as values and run by lightweight fibers on a bounded worker pool.
//
// # What is an Effect?
//
// An Effect[R, E, A] is an immutable description of a computation that
//   - reads an environment R,
//   - may fail with a typed error E, die with a defect, or be interrupted,
//   - or succeeds with a value A.
//
// Building an Effect does nothing. A Runtime runs it on a fiber and reports
// the outcome as a cause.Exit.
//
// # How does it work?
//
// The interpreter is a loop over an explicit stack of continuations, so long
// FlatMap chains never grow the goroutine stack. Fibers are multiplexed onto
// the runtime's workers and give their worker back whenever they suspend in
// Async, Yield or after a fixed number of instructions.
//
// Fibers are structured: a fiber forked with Fork is owned by its parent and
// is interrupted and awaited before the parent's exit is published.
// Interruption is cooperative and respects Uninterruptible regions, which
// is how finalizers registered with Ensuring, OnExit or managed.AcquireRelease
// are guaranteed to run.
//
// This package exports:
//   - Effect constructors and combinators
//   - Fibers, races and parallel zips
//   - The Runtime and its configuration
//
// Subpackages add resource scopes (managed), atomic references (ref), pull
// streams (stream), logging, metrics, tracing and configuration loading.
//
// Example:
//
//	rt := effects.NewRuntime(effects.NewRuntimeConfig(0, 0))
//	defer rt.Close()
//
//	exit := effects.Run(ctx, rt, effects.Map(
//	    effects.Succeed[any, error](20),
//	    func(n int) int { return n + 1 },
//	))
//	n, err := exit.Result()
package effects
