// Package context threads request-scoped identifiers through
// context.Context. Everything else a request needs travels as explicit
// arguments; only tracing is ambient.
package context

import (
	"context"

	"github.com/google/uuid"
)

// spanIDLength truncates a uuid to a short span id. Spans only need to be
// unique within one trace, not globally.
const spanIDLength = 16

// Trace identifies one request across log lines and services. TraceID is
// shared with upstream callers, SpanID names this hop, RequestID is echoed
// back to the client.
type Trace struct {
	TraceID   string
	SpanID    string
	RequestID string
}

type traceKey struct{}

// NewTrace builds a trace for an incoming request. Ids received from
// upstream are kept; blanks are filled with fresh uuids. The span id is
// always fresh since a new hop starts here.
func NewTrace(traceID, requestID string) *Trace {
	if traceID == "" {
		traceID = uuid.NewString()
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return &Trace{
		TraceID:   traceID,
		SpanID:    uuid.NewString()[:spanIDLength],
		RequestID: requestID,
	}
}

// WithTrace returns a context carrying the trace.
func WithTrace(ctx context.Context, t *Trace) context.Context {
	return context.WithValue(ctx, traceKey{}, t)
}

// TraceFrom returns the trace carried by ctx, or nil when the request was
// never traced (direct service calls, tests).
func TraceFrom(ctx context.Context) *Trace {
	t, _ := ctx.Value(traceKey{}).(*Trace)
	return t
}
