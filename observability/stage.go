package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// StartStage opens a span for a pipeline stage. The returned func ends the
// span and records the stage duration; call it exactly once.
func StartStage(ctx context.Context, m *Metrics, stage string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	attrs = append(attrs, attribute.String(AttrStage, stage))
	ctx, span := StartSpan(ctx, "pipeline."+stage, attrs...)
	return ctx, func(err error) {
		m.StageDone(ctx, stage, time.Since(start), err)
		EndSpan(span, err)
	}
}
