package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeKVs_RedactsSecrets(t *testing.T) {
	out := sanitizeKVs([]interface{}{"provider", "groq", "api_key", "gsk-123", "SENTRY_DSN", "https://x"})

	assert.Equal(t, []interface{}{"provider", "groq", "api_key", "[REDACTED]", "SENTRY_DSN", "[REDACTED]"}, out)
}

func TestSanitizeKVs_OddLength(t *testing.T) {
	out := sanitizeKVs([]interface{}{"document_id", "d1", "dangling"})

	assert.Equal(t, []interface{}{"document_id", "d1", "dangling"}, out)
}

func TestLogger_WithAddsFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.With("document_id", "d1").Info("indexed", "segments", 3)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "indexed", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "d1", fields["document_id"])
	assert.EqualValues(t, 3, fields["segments"])
}

func TestNew_Modes(t *testing.T) {
	for _, mode := range []string{"dev", "prod"} {
		l, err := New(mode)
		require.NoError(t, err)
		assert.NotNil(t, l.SugaredLogger)
	}
}
