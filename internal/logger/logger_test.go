package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"panic":   zapcore.PanicLevel,
		"fatal":   zapcore.FatalLevel,
		"":        zapcore.InfoLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok, s)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("unknown")
	require.False(t, ok)
}

// TestContextLogger checks that named loggers travel through the context.
func TestContextLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	base := NewWithSink(zapcore.AddSync(&buf), zapcore.DebugLevel)

	ctx := ToContext(context.Background(), base)
	ctx = WithName(ctx, "homesec-controller")
	ctx = WithKV(ctx, "source", "mqtt")

	InfoKV(ctx, "Command received", "command", "get_status")

	out := buf.String()
	require.Contains(t, out, "homesec-controller")
	require.Contains(t, out, "Command received")
	require.Contains(t, out, "source")
	require.Contains(t, out, "get_status")

	require.Same(t, Logger(), FromContext(context.Background()))
}
