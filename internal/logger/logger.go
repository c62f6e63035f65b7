// Package logger builds the zap loggers the binaries share and sanitizes
// user-controlled values before they reach a log line.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures New.
type Options struct {
	// Service is attached to every entry as the "service" field.
	Service string
	// Debug lowers the level to debug.
	Debug bool
}

// New creates a logger writing JSON to stderr. stdout stays free for
// binaries that speak a protocol over it.
func New(opts Options) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig = encoderConfig()
	cfg.Level = zap.NewAtomicLevelAt(level(opts.Debug))
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	// Stack traces for error level and above.
	cfg.DisableStacktrace = false
	if opts.Service != "" {
		cfg.InitialFields = map[string]any{"service": opts.Service}
	}
	return cfg.Build()
}

func level(debug bool) zapcore.Level {
	if debug {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// Sync flushes buffered entries. A nil logger is a no-op.
func Sync(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}
	return logger.Sync()
}
