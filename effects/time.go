package effects

import (
	"time"

	"github.com/on-the-ground/fiber_ive_go/effects/cause"
	"github.com/rickb777/date/v2/timespan"
)

// TimeSpan is a wall-clock interval.
type TimeSpan = timespan.TimeSpan

// NewTimeSpan returns the span from from to to.
func NewTimeSpan(from, to time.Time) TimeSpan {
	return timespan.BetweenTimes(from, to)
}

// TimedValue is a result together with the wall-clock span that produced it.
type TimedValue[A any] struct {
	Value A
	Span  TimeSpan
}

// Sleep suspends the fiber for d without holding a worker.
// Interruption stops the timer.
func Sleep[R, E any](d time.Duration) Effect[R, E, struct{}] {
	return AsyncInterrupt[R, E, struct{}](func(complete func(cause.Exit[E, struct{}])) func() {
		t := time.AfterFunc(d, func() { complete(cause.Success[E](struct{}{})) })
		return func() { t.Stop() }
	})
}

// Timed measures the wall-clock span of eff.
func Timed[R, E, A any](eff Effect[R, E, A]) Effect[R, E, TimedValue[A]] {
	return FlatMap(Sync[R, E](time.Now), func(start time.Time) Effect[R, E, TimedValue[A]] {
		return Map(eff, func(a A) TimedValue[A] {
			return TimedValue[A]{Value: a, Span: NewTimeSpan(start, time.Now())}
		})
	})
}

// Timeout succeeds with (value, true) when eff is done within d, and with
// the zero value and false after interrupting it otherwise.
func Timeout[R, E, A any](eff Effect[R, E, A], d time.Duration) Effect[R, E, Pair[A, bool]] {
	return Race(
		Map(eff, func(a A) Pair[A, bool] { return Pair[A, bool]{First: a, Second: true} }),
		As(Sleep[R, E](d), Pair[A, bool]{}),
	)
}
