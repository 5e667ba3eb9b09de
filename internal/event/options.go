package event

import "log/slog"

// BusOption configures an event Bus.
type BusOption func(*busConfig)

type busConfig struct {
	asyncQueueSize int
	panicHandler   PanicHandler
	logger         *slog.Logger
}

func defaultBusConfig() busConfig {
	return busConfig{
		asyncQueueSize: 1024,
		logger:         slog.New(slog.DiscardHandler),
	}
}

// WithAsyncQueueSize sets the async event queue size.
func WithAsyncQueueSize(size int) BusOption {
	return func(c *busConfig) {
		if size > 0 {
			c.asyncQueueSize = size
		}
	}
}

// WithBusPanicHandler sets the panic handler for the bus.
func WithBusPanicHandler(h PanicHandler) BusOption {
	return func(c *busConfig) {
		c.panicHandler = h
	}
}

// WithLogger sets the logger used for handler errors and panics.
func WithLogger(l *slog.Logger) BusOption {
	return func(c *busConfig) {
		if l != nil {
			c.logger = l
		}
	}
}
