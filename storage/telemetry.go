package storage

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/giantswarm/oauth2-engine/instrumentation"
)

// Telemetry traces and counts the operations of one storage backend.
type Telemetry struct {
	backend string
	tracer  trace.Tracer
	metrics *instrumentation.Metrics
}

// NewTelemetry creates telemetry for backend. A nil inst records nothing.
func NewTelemetry(inst *instrumentation.Instrumentation, backend string) *Telemetry {
	if inst == nil {
		inst = instrumentation.Noop()
	}
	return &Telemetry{
		backend: backend,
		tracer:  inst.Tracer("storage"),
		metrics: inst.Metrics(),
	}
}

// Start opens a span for operation. The returned function ends it and
// records the outcome; call it with the operation's final error.
func (t *Telemetry) Start(ctx context.Context, operation string) (context.Context, func(error)) {
	ctx, span := t.tracer.Start(ctx, fmt.Sprintf("storage.%s", operation))
	instrumentation.AddStorageAttributes(span, operation, t.backend)
	start := time.Now()

	return ctx, func(err error) {
		result := "success"
		if err != nil {
			result = "error"
			instrumentation.RecordError(span, err)
		} else {
			instrumentation.SetSpanSuccess(span)
		}
		t.metrics.RecordStorageOperation(ctx, operation, result, float64(time.Since(start).Milliseconds()))
		span.End()
	}
}
