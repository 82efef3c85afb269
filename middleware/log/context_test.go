package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTraceIDContext(t *testing.T) {
	t.Run("adds provided trace ID to context", func(t *testing.T) {
		ctx := WithTraceID(context.Background(), "test-trace-123")
		assert.Equal(t, "test-trace-123", GetTraceID(ctx))
	})

	t.Run("generates new trace ID when empty string provided", func(t *testing.T) {
		ctx := WithTraceID(context.Background(), "")
		require.NotNil(t, ctx)

		traceID := GetTraceID(ctx)
		assert.Len(t, traceID, 36)
	})

	t.Run("missing trace ID yields empty string", func(t *testing.T) {
		assert.Empty(t, GetTraceID(context.Background()))
	})
}
