package logging

import (
	"sync"

	"go.uber.org/zap"
)

// Factory creates and manages named loggers.
type Factory struct {
	config  Config
	root    *Logger
	loggers sync.Map // map[string]*zap.Logger
}

// NewFactory creates a new Factory with the given config.
func NewFactory(config Config) *Factory {
	config.applyDefaults()
	return &Factory{
		config: config,
		root:   NewLogger(config),
	}
}

// GetLogger returns a named logger, creating it if necessary.
// Named loggers share the root's level and outputs.
func (f *Factory) GetLogger(name string) *zap.Logger {
	if v, ok := f.loggers.Load(name); ok {
		return v.(*zap.Logger)
	}

	actual, _ := f.loggers.LoadOrStore(name, f.root.Named(name))
	return actual.(*zap.Logger)
}

// Root returns the root logger.
func (f *Factory) Root() *Logger {
	return f.root
}

// SetLevel changes the level of every logger handed out by f.
func (f *Factory) SetLevel(level string) {
	f.root.SetLevel(level)
}

// Config returns a copy of the factory's configuration.
func (f *Factory) Config() Config {
	return f.config
}

// Close flushes and closes the underlying files.
func (f *Factory) Close() error {
	return f.root.Close()
}
