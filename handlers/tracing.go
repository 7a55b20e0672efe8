package handlers

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lubkli/IoCBuilder-sub000/call"
	"github.com/lubkli/IoCBuilder-sub000/pipeline"
)

// TracerName is the instrumentation name of the tracing handler
const TracerName = "github.com/lubkli/IoCBuilder-sub000/handlers"

// Tracing runs every invocation inside a span. When the method takes a
// context, the argument is replaced with the span context so the real
// method and the handlers after this one see it.
type Tracing struct {
	tracer trace.Tracer
}

// NewTracing creates a tracing handler. A nil provider means the global one.
func NewTracing(provider trace.TracerProvider) *Tracing {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &Tracing{tracer: provider.Tracer(TracerName)}
}

// Invoke implements pipeline.Handler
func (h *Tracing) Invoke(inv *call.Invocation, getNext pipeline.GetNextFunc) *call.Return {
	tracer := h.tracer
	if tracer == nil {
		tracer = otel.GetTracerProvider().Tracer(TracerName)
	}

	ctx, span := tracer.Start(inv.Context(), inv.Method.String(),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("code.namespace", inv.Method.Key().Owner),
			attribute.String("code.function", inv.Method.Name),
			attribute.String("invocation.id", inv.ID),
		),
	)
	defer span.End()
	inv.SetContext(ctx)

	ret := getNext()(inv, getNext)
	if err := ret.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return ret
}

// Name implements pipeline.Handler
func (h *Tracing) Name() string {
	return "TracingHandler"
}
