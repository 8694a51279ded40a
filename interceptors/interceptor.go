package interceptors

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Built-in handlers

// LoggingHandler logs every call it is attached to
type LoggingHandler struct {
	logger *slog.Logger
	level  slog.Level
}

// LoggingOption configures a LoggingHandler
type LoggingOption func(*LoggingHandler)

// WithLogLevel sets the level calls are logged at
func WithLogLevel(level slog.Level) LoggingOption {
	return func(h *LoggingHandler) {
		h.level = level
	}
}

// NewLoggingHandler creates a new logging handler
func NewLoggingHandler(logger *slog.Logger, options ...LoggingOption) *LoggingHandler {
	if logger == nil {
		logger = slog.Default()
	}

	h := &LoggingHandler{logger: logger, level: slog.LevelInfo}
	for _, opt := range options {
		opt(h)
	}
	return h
}

// Handle implements Handler
func (h *LoggingHandler) Handle(call *Call) (any, error) {
	attrs := []any{
		"callId", call.ID,
		"method", call.Method,
		"phase", call.Phase.String(),
		"scope", call.Scope.String(),
		"argCount", len(call.Args),
	}
	if call.Phase == PhaseAfter {
		attrs = append(attrs, "delegated", !IsAbsent(call.Result))
	}

	h.logger.Log(context.Background(), h.level, "intercepted call", attrs...)
	return Absent, nil
}

// Name returns the handler name for logging and debugging
func (h *LoggingHandler) Name() string {
	return "LoggingHandler"
}

// MetricsCollector defines the interface for collecting call metrics
type MetricsCollector interface {
	IncrementCallCount(method string)
	RecordCallDuration(method string, duration time.Duration)
	IncrementErrorCount(method string, errorType string)
}

// Error types reported to a MetricsCollector
const (
	ErrorTypeUnknownOperation = "unknown_operation"
	ErrorTypeHandler          = "handler"
	ErrorTypeDelegation       = "delegation"
)

// CallValidator checks a call before it reaches the target
type CallValidator interface {
	Validate(call *Call) error
}

// CallValidatorFunc is a function adapter for CallValidator
type CallValidatorFunc func(call *Call) error

// Validate implements CallValidator
func (f CallValidatorFunc) Validate(call *Call) error {
	return f(call)
}

// ValidationHandler rejects calls its validator refuses. Attach it to a
// before slot: the returned error aborts the call before delegation.
type ValidationHandler struct {
	validator CallValidator
}

// NewValidationHandler creates a new validation handler
func NewValidationHandler(validator CallValidator) *ValidationHandler {
	return &ValidationHandler{validator: validator}
}

// Handle implements Handler
func (h *ValidationHandler) Handle(call *Call) (any, error) {
	if err := h.validator.Validate(call); err != nil {
		return Absent, fmt.Errorf("call validation failed for %s: %w", call.Method, err)
	}
	return Absent, nil
}

// Name returns the handler name for logging and debugging
func (h *ValidationHandler) Name() string {
	return "ValidationHandler"
}

// ArgCount validates the number of arguments of a call
func ArgCount(n int) CallValidator {
	return CallValidatorFunc(func(call *Call) error {
		if len(call.Args) != n {
			return fmt.Errorf("expected %d arguments, got %d", n, len(call.Args))
		}
		return nil
	})
}

const timingStartKey = "interceptors.timing.start"

// TimingAspect measures the time between its before and after handlers and
// reports it per method. Attach Before to a before slot and After to an after
// slot of the same proxy; both see the same call scratch storage.
type TimingAspect struct {
	collector MetricsCollector
	now       func() time.Time
}

// NewTimingAspect creates a timing aspect reporting to collector
func NewTimingAspect(collector MetricsCollector) *TimingAspect {
	return &TimingAspect{collector: collector, now: time.Now}
}

// Before returns the handler that starts the clock
func (a *TimingAspect) Before() Handler {
	return Observe(func(call *Call) error {
		call.Set(timingStartKey, a.now())
		return nil
	})
}

// After returns the handler that stops the clock. Calls whose before handler
// never ran are not reported.
func (a *TimingAspect) After() Handler {
	return Observe(func(call *Call) error {
		value, ok := call.Get(timingStartKey)
		if !ok {
			return nil
		}
		start, ok := value.(time.Time)
		if !ok {
			return nil
		}
		call.Delete(timingStartKey)
		a.collector.RecordCallDuration(call.Method, a.now().Sub(start))
		return nil
	})
}

// NewCallCounter returns a handler that counts every call it sees
func NewCallCounter(collector MetricsCollector) Handler {
	return Observe(func(call *Call) error {
		collector.IncrementCallCount(call.Method)
		return nil
	})
}
