// Package logger is a small structured-logging facade over zap.
//
// Call sites pass a message followed by alternating key/value pairs:
//
//	log := logger.Default().With("component", "offheap")
//	log.Info("collection opened", "id", id, "dir", dir)
package logger

import (
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)

	// With returns a child logger that adds kv to every entry.
	With(kv ...any) Logger

	// Sync flushes buffered entries.
	Sync() error
}

type zapLogger struct {
	s *zap.SugaredLogger
}

// New wraps an existing zap logger.
func New(z *zap.Logger) Logger {
	return &zapLogger{s: z.Sugar()}
}

func (l *zapLogger) Debug(msg string, kv ...any) { l.s.Debugw(msg, kv...) }
func (l *zapLogger) Info(msg string, kv ...any)  { l.s.Infow(msg, kv...) }
func (l *zapLogger) Warn(msg string, kv ...any)  { l.s.Warnw(msg, kv...) }
func (l *zapLogger) Error(msg string, kv ...any) { l.s.Errorw(msg, kv...) }

func (l *zapLogger) With(kv ...any) Logger {
	return &zapLogger{s: l.s.With(kv...)}
}

func (l *zapLogger) Sync() error {
	return l.s.Sync()
}

// MustProduction builds a JSON logger at the given level ("debug", "info",
// "warn", "error"; empty means info). Panics on an invalid level.
func MustProduction(level ...string) Logger {
	cfg := zap.NewProductionConfig()
	if len(level) > 0 && level[0] != "" {
		lvl, err := zapcore.ParseLevel(level[0])
		if err != nil {
			panic(err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	z, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return New(z)
}

// MustDevelopment builds a human-readable console logger at debug level.
func MustDevelopment() Logger {
	z, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	return New(z)
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return New(zap.NewNop())
}

var defaultLogger atomic.Pointer[Logger]

// Default returns the process-wide logger. Until SetDefault is called it is a
// production logger at warn level, so a library user sees failures but not
// per-collection chatter.
func Default() Logger {
	if l := defaultLogger.Load(); l != nil {
		return *l
	}
	l := MustProduction("warn")
	if defaultLogger.CompareAndSwap(nil, &l) {
		return l
	}
	return *defaultLogger.Load()
}

func SetDefault(l Logger) {
	defaultLogger.Store(&l)
}

// SyncDefault flushes the default logger, ignoring the error zap returns for
// unsyncable outputs such as a terminal.
func SyncDefault() {
	_ = Default().Sync()
}

// Fatal logs on the default logger, flushes, and exits with status 1.
func Fatal(msg string, kv ...any) {
	l := Default()
	if zl, ok := l.(*zapLogger); ok {
		zl.s.Fatalw(msg, kv...)
		return
	}
	l.Error(msg, kv...)
	_ = l.Sync()
	panic(msg)
}
