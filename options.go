package opc

import (
	"io"
	"log/slog"
)

type openConfig struct {
	limits Limits
	logger *slog.Logger
}

// OpenOption configures Open, OpenFile and Decode.
type OpenOption func(*openConfig)

// WithLimits sets resource ceilings. Zero fields keep their defaults.
func WithLimits(l Limits) OpenOption {
	return func(c *openConfig) { c.limits = l }
}

// WithLogger routes construction diagnostics and warnings to logger.
// The default discards them; warnings are always available from
// Document.Warnings regardless of logging.
func WithLogger(logger *slog.Logger) OpenOption {
	return func(c *openConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func newOpenConfig(opts []OpenOption) openConfig {
	cfg := openConfig{limits: DefaultLimits(), logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.limits = cfg.limits.withDefaults()
	return cfg
}
