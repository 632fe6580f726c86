package logx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestEnrich_AddsCorrelationFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	ctx := ContextWithTraceID(ContextWithRequestID(context.Background(), "rid-1"), "tid-1")
	Enrich(base, ctx).Info("event.stored")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "rid-1", fields["request_id"])
	require.Equal(t, "tid-1", fields["trace_id"])
}

func TestEnrich_NoIDs(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	Enrich(base, context.Background()).Info("x")
	require.Empty(t, logs.All()[0].ContextMap())
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	l, err := New("loud")
	require.NoError(t, err)
	require.True(t, l.Core().Enabled(zap.InfoLevel))
	require.False(t, l.Core().Enabled(zap.DebugLevel))
}

func TestSetLevel_AppliesToPackageLogger(t *testing.T) {
	prev := level.Level()
	t.Cleanup(func() { level.SetLevel(prev) })

	require.NoError(t, SetLevel("DEBUG"))
	require.True(t, L().Core().Enabled(zap.DebugLevel))

	require.NoError(t, SetLevel("warn"))
	require.False(t, L().With(zap.String("k", "v")).Core().Enabled(zap.InfoLevel))

	require.Error(t, SetLevel("loud"))
	require.Equal(t, zap.WarnLevel, level.Level())

	require.NoError(t, SetLevel(""))
	require.Equal(t, zap.WarnLevel, level.Level())
}
