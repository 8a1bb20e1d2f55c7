package logging

import (
	"errors"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger owns the root *zap.Logger, its adjustable level and the files behind it.
type Logger struct {
	zl      *zap.Logger
	level   zap.AtomicLevel
	writers []*levelWriter
}

// NewLogger creates a new Logger from the given Config.
func NewLogger(config Config) *Logger {
	config.applyDefaults()

	level := zap.NewAtomicLevelAt(config.TransportLevel())
	cores, writers := buildCores(config, level)

	zl := zap.New(zapcore.NewTee(cores...))
	if config.ShowLineNumber {
		zl = zl.WithOptions(zap.AddCaller())
	}

	return &Logger{
		zl:      zl,
		level:   level,
		writers: writers,
	}
}

// Zap returns the underlying *zap.Logger.
func (l *Logger) Zap() *zap.Logger {
	return l.zl
}

// Named returns a child *zap.Logger with the given name.
func (l *Logger) Named(name string) *zap.Logger {
	return l.zl.Named(name)
}

// Level returns the current minimum level.
func (l *Logger) Level() zapcore.Level {
	return l.level.Level()
}

// SetLevel changes the minimum level of this logger and every logger derived from it.
func (l *Logger) SetLevel(level string) {
	next := ParseLevel(level)
	if l.level.Level() == next {
		return
	}
	l.level.SetLevel(next)
	l.zl.Info("log level changed", zap.Stringer("level", next))
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	return l.zl.Sync()
}

// Close flushes and closes the log files.
func (l *Logger) Close() error {
	_ = l.zl.Sync()

	var errs []error
	for _, w := range l.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
