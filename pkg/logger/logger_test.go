package logger

import (
	"bytes"
	"context"
	"testing"

	charmlog "github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext(t *testing.T) {
	t.Run("Should return logger from context when present", func(t *testing.T) {
		expected := NewForTests()
		ctx := ContextWithLogger(t.Context(), expected)
		assert.Equal(t, expected, FromContext(ctx))
	})

	t.Run("Should return default logger when no logger in context", func(t *testing.T) {
		l := FromContext(t.Context())
		require.NotNil(t, l)
	})

	t.Run("Should return default logger when wrong type in context", func(t *testing.T) {
		ctx := context.WithValue(t.Context(), LoggerCtxKey, "not a logger")
		require.NotNil(t, FromContext(ctx))
	})
}

func TestLogLevel_ToCharmlogLevel(t *testing.T) {
	t.Run("Should map known levels and default unknown ones to info", func(t *testing.T) {
		assert.Equal(t, charmlog.DebugLevel, DebugLevel.ToCharmlogLevel())
		assert.Equal(t, charmlog.WarnLevel, WarnLevel.ToCharmlogLevel())
		assert.Equal(t, charmlog.ErrorLevel, ErrorLevel.ToCharmlogLevel())
		assert.Equal(t, charmlog.InfoLevel, LogLevel("verbose").ToCharmlogLevel())
	})
}

func TestNewLogger(t *testing.T) {
	t.Run("Should write JSON entries with bound fields", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLogger(&Config{Level: DebugLevel, Output: &buf, JSON: true})
		l.With("component", "cache").Info("stored", "task_id", "t1")
		out := buf.String()
		assert.Contains(t, out, `"component":"cache"`)
		assert.Contains(t, out, `"task_id":"t1"`)
		assert.Contains(t, out, `"msg":"stored"`)
	})

	t.Run("Should drop entries below the configured level", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLogger(&Config{Level: WarnLevel, Output: &buf})
		l.Info("hidden")
		assert.Empty(t, buf.String())
	})
}
