// Package tracing opens an OpenTelemetry span for every fiber of a runtime.
package tracing

import (
	"context"
	"sync"

	"github.com/on-the-ground/fiber_ive_go/effects"
	"github.com/on-the-ground/fiber_ive_go/effects/cause"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/on-the-ground/fiber_ive_go/effects"

// Supervisor starts a span when a fiber starts and ends it with the fiber.
// A forked fiber's span is a child of its parent's span while the parent
// is running.
type Supervisor struct {
	tracer trace.Tracer
	spans  sync.Map // cause.FiberID -> trace.Span
}

var _ effects.Supervisor = (*Supervisor)(nil)

func NewSupervisor(tp trace.TracerProvider) *Supervisor {
	return &Supervisor{tracer: tp.Tracer(instrumentationName)}
}

func (s *Supervisor) OnStart(info effects.FiberInfo) {
	ctx := context.Background()
	if parent, ok := s.spans.Load(info.Parent); ok && !info.Parent.IsNone() {
		ctx = trace.ContextWithSpan(ctx, parent.(trace.Span))
	}
	_, span := s.tracer.Start(ctx, "fiber",
		trace.WithTimestamp(info.StartedAt),
		trace.WithAttributes(
			attribute.String("fiber.id", info.ID.String()),
			attribute.Int64("fiber.seq", int64(info.ID.Seq)),
			attribute.String("fiber.parent", info.Parent.String()),
			attribute.Bool("fiber.daemon", info.Daemon),
		),
	)
	s.spans.Store(info.ID, span)
}

func (s *Supervisor) OnEnd(info effects.FiberInfo, kind cause.Kind) {
	raw, ok := s.spans.LoadAndDelete(info.ID)
	if !ok {
		return
	}
	span := raw.(trace.Span)
	span.SetAttributes(attribute.String("fiber.exit", kind.String()))
	if kind == cause.KindSuccess {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, kind.String())
	}
	span.End()
}
