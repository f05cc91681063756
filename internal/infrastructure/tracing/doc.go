/*
Package tracing provides lightweight request and session tracing.

Spans are plain structs logged through zap when they finish; there is no
exporter. HTTP requests get a span from HTTPMiddleware, and every terminal
session gets a long-lived "terminal.session" span that records its close
reason and byte counts.

# Usage

	tracer := tracing.New("webide", logger.Logger)
	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "terminal.session")
	span.SetTag("session_id", id)
	defer tracer.End(span)

# Propagation

	X-Trace-ID: identifier for the whole request flow
	X-Span-ID:  identifier of the caller's span
*/
package tracing
