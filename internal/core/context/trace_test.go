package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTrace_GeneratesMissingIDs(t *testing.T) {
	tr := NewTrace("", "")
	require.NotNil(t, tr)
	assert.NotEmpty(t, tr.TraceID)
	assert.NotEmpty(t, tr.RequestID)
	assert.Len(t, tr.SpanID, spanIDLength)
}

func TestNewTrace_KeepsUpstreamIDs(t *testing.T) {
	tr := NewTrace("trace-from-upstream", "req-42")
	assert.Equal(t, "trace-from-upstream", tr.TraceID)
	assert.Equal(t, "req-42", tr.RequestID)
	assert.NotEmpty(t, tr.SpanID)
}

func TestTraceFrom_RoundTrip(t *testing.T) {
	tr := NewTrace("", "")
	ctx := WithTrace(context.Background(), tr)
	assert.Equal(t, tr, TraceFrom(ctx))
}

func TestTraceFrom_Untraced(t *testing.T) {
	assert.Nil(t, TraceFrom(context.Background()))
}
