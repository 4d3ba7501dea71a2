// Package debug holds the logger and profiler shared by the gopd packages.
package debug

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
	loggerMu   sync.RWMutex
)

// Logger returns the package-wide logger. It is a no-op logger until
// SetLogger is called.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		loggerMu.Lock()
		if logger == nil {
			logger = zap.NewNop()
		}
		loggerMu.Unlock()
	})
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// SetLogger replaces the package-wide logger. A nil logger restores the no-op logger.
func SetLogger(l *zap.Logger) {
	loggerOnce.Do(func() {})
	if l == nil {
		l = zap.NewNop()
	}
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
}

// Named returns a child of the package-wide logger.
func Named(name string) *zap.Logger {
	return Logger().Named(name)
}

// ParseLevel converts a level name ("debug", "info", "warn", "error", "off")
// into a zap level. "off" reports ok=false.
func ParseLevel(name string) (zapcore.Level, bool, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return zapcore.InfoLevel, true, nil
	case "debug":
		return zapcore.DebugLevel, true, nil
	case "warn", "warning":
		return zapcore.WarnLevel, true, nil
	case "error":
		return zapcore.ErrorLevel, true, nil
	case "off", "none":
		return zapcore.InfoLevel, false, nil
	default:
		return zapcore.InfoLevel, false, fmt.Errorf("unknown log level %q", name)
	}
}

// NewLogger builds a console logger writing to stderr at the named level.
func NewLogger(level string) (*zap.Logger, error) {
	lvl, enabled, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return zap.NewNop(), nil
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = lvl > zapcore.DebugLevel
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg.Build()
}
