// Package observability wires OpenTelemetry tracing and metrics.
//
// The Component initializes OTLP/HTTP exporters when enabled; otherwise the
// global no-op providers stay in place and every instrument is free to call.
//
//	ctx, end := observability.StartStage(ctx, metrics, "transcription")
//	err := transcribe(ctx)
//	end(err)
package observability
