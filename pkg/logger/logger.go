package logger

import (
	"fmt"
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls how the process logger is built.
type Options struct {
	// Level is a zap level name: debug, info, warn, error.
	Level string
	// Format is "console" for human-readable lines or "json".
	Format string
	// File, when set, additionally writes JSON logs to a rotated file.
	File string
}

// New builds the process logger writing to w.
// An unknown level falls back to info instead of failing startup.
func New(w io.Writer, opts Options) *zap.Logger {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
		level.SetLevel(zap.InfoLevel)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder(opts.Format), zapcore.Lock(zapcore.AddSync(w)), level),
	}

	if opts.File != "" {
		rotated := zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     14, // days
		})
		cores = append(cores, zapcore.NewCore(encoder("json"), rotated, level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddStacktrace(zap.DPanicLevel))
}

func encoder(format string) zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.MessageKey = "message"
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00")

	if format == "json" {
		cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		return zapcore.NewJSONEncoder(cfg)
	}
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncodeName = func(name string, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(name + ":")
	}
	return zapcore.NewConsoleEncoder(cfg)
}

// Printf adapts a logger to the printf-style hooks used by browser drivers.
func Printf(l *zap.Logger) func(string, ...interface{}) {
	sugar := l.Sugar()
	return func(format string, args ...interface{}) {
		sugar.Debug(fmt.Sprintf(format, args...))
	}
}
