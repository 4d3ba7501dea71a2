package debug

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger(t *testing.T) {
	t.Run("DefaultIsNop", func(t *testing.T) {
		SetLogger(nil)
		require.NotNil(t, Logger())
		Logger().Info("dropped")
	})

	t.Run("SetLogger", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		SetLogger(zap.New(core))
		defer SetLogger(nil)

		Named("hook").Warn("decode failed", zap.String("kind", "float"))

		require.Equal(t, 1, logs.Len())
		entry := logs.All()[0]
		assert.Equal(t, "hook", entry.LoggerName)
		assert.Equal(t, "decode failed", entry.Message)
		assert.Equal(t, "float", entry.ContextMap()["kind"])
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		level   zapcore.Level
		enabled bool
		wantErr bool
	}{
		{"", zapcore.InfoLevel, true, false},
		{"DEBUG", zapcore.DebugLevel, true, false},
		{"warn", zapcore.WarnLevel, true, false},
		{"error", zapcore.ErrorLevel, true, false},
		{"off", zapcore.InfoLevel, false, false},
		{"loud", zapcore.InfoLevel, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			level, enabled, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.level, level)
			assert.Equal(t, tt.enabled, enabled)
		})
	}
}

func TestNewLogger(t *testing.T) {
	l, err := NewLogger("off")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.ErrorLevel))

	l, err = NewLogger("warn")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))

	_, err = NewLogger("bogus")
	assert.Error(t, err)
}
