package proxy

import (
	"log/slog"

	"github.com/glimte/proxymachine-go/interceptors"
	"github.com/glimte/proxymachine-go/invoker"
)

// Config describes how calls through a proxy are intercepted
type Config struct {
	// AllowDynamic attempts calls to members the target does not expose,
	// relying on the target's own fallback, instead of rejecting them
	AllowDynamic bool

	// SuppressDelegation skips the real call on the target. Only handlers run
	// and their combined result becomes the call's result.
	SuppressDelegation bool

	BeforeAll interceptors.Slot // Every call, before delegation
	Before    interceptors.Slot // Per method, before delegation
	After     interceptors.Slot // Per method, after delegation
	AfterAll  interceptors.Slot // Every call, after delegation
}

// clone detaches the config from the caller's maps and slices
func (c Config) clone() Config {
	return Config{
		AllowDynamic:       c.AllowDynamic,
		SuppressDelegation: c.SuppressDelegation,
		BeforeAll:          interceptors.CloneSlot(c.BeforeAll),
		Before:             interceptors.CloneSlot(c.Before),
		After:              interceptors.CloneSlot(c.After),
		AfterAll:           interceptors.CloneSlot(c.AfterAll),
	}
}

// HasHandlers reports whether any slot is configured
func (c Config) HasHandlers() bool {
	return c.BeforeAll != nil || c.Before != nil || c.After != nil || c.AfterAll != nil
}

type proxyConfig struct {
	config  Config
	invoker invoker.Invoker
	logger  *slog.Logger
	metrics interceptors.MetricsCollector
}

// Option configures a Proxy
type Option func(*proxyConfig)

// WithConfig replaces the whole interception config. Options applied after it
// still adjust individual fields.
func WithConfig(config Config) Option {
	return func(c *proxyConfig) {
		c.config = config
	}
}

// WithAllowDynamic lets calls to members the target does not expose through
func WithAllowDynamic(allow bool) Option {
	return func(c *proxyConfig) {
		c.config.AllowDynamic = allow
	}
}

// WithSuppressDelegation skips the real call on the target
func WithSuppressDelegation(suppress bool) Option {
	return func(c *proxyConfig) {
		c.config.SuppressDelegation = suppress
	}
}

// WithBeforeAll sets the handlers run before every call
func WithBeforeAll(slot interceptors.Slot) Option {
	return func(c *proxyConfig) {
		c.config.BeforeAll = slot
	}
}

// WithBefore sets the per-method handlers run before delegation
func WithBefore(slot interceptors.Slot) Option {
	return func(c *proxyConfig) {
		c.config.Before = slot
	}
}

// WithAfter sets the per-method handlers run after delegation
func WithAfter(slot interceptors.Slot) Option {
	return func(c *proxyConfig) {
		c.config.After = slot
	}
}

// WithAfterAll sets the handlers run after every call
func WithAfterAll(slot interceptors.Slot) Option {
	return func(c *proxyConfig) {
		c.config.AfterAll = slot
	}
}

// WithInvoker sets how the proxy inspects and calls its target
func WithInvoker(inv invoker.Invoker) Option {
	return func(c *proxyConfig) {
		c.invoker = inv
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *proxyConfig) {
		c.logger = logger
	}
}

// WithMetrics records call counts, durations and failures
func WithMetrics(collector interceptors.MetricsCollector) Option {
	return func(c *proxyConfig) {
		c.metrics = collector
	}
}
