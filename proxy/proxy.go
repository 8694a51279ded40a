package proxy

import (
	"fmt"
	"log/slog"
	"reflect"

	"github.com/google/uuid"

	"github.com/glimte/proxymachine-go/invoker"
)

// Names of the operations a proxy answers itself. Calls using these names are
// never forwarded to the target nor intercepted.
const (
	IsProxyMethod = "IsProxy"
	UnwrapMethod  = "Unwrap"
)

// Proxy wraps a target so that every call made through Invoke passes through
// the configured handlers.
//
// A Proxy is immutable after New. It performs no locking of its own: callers
// must serialize calls when the target is not safe for concurrent use.
type Proxy struct {
	id       string
	target   any
	pipeline *pipeline
}

// New wraps target. Without options the proxy is a pure pass-through that
// rejects calls to members the target does not expose.
func New(target any, options ...Option) *Proxy {
	cfg := &proxyConfig{
		logger: slog.Default(),
	}

	for _, opt := range options {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.invoker == nil {
		cfg.invoker = invoker.New(invoker.WithLogger(cfg.logger))
	}

	p := &Proxy{
		id:     uuid.New().String(),
		target: target,
	}
	p.pipeline = &pipeline{
		proxyID: p.id,
		target:  target,
		config:  cfg.config.clone(),
		invoker: cfg.invoker,
		logger:  cfg.logger,
		metrics: cfg.metrics,
	}

	cfg.logger.Debug("created proxy",
		"proxyId", p.id,
		"target", typeName(target),
		"allowDynamic", cfg.config.AllowDynamic,
		"suppressDelegation", cfg.config.SuppressDelegation,
	)

	return p
}

// Invoke calls method on the target through the interception pipeline.
//
// Handler and target errors are returned unchanged. A call to a member the
// target does not expose fails with *invoker.UnknownOperationError unless
// dynamic calls are allowed.
func (p *Proxy) Invoke(method string, args ...any) (any, error) {
	switch method {
	case IsProxyMethod:
		return p.IsProxy(), nil
	case UnwrapMethod:
		return p.Unwrap(), nil
	}
	return p.pipeline.run(method, args)
}

// IsProxy always reports true. It tells a wrapped value apart from a raw one.
func (p *Proxy) IsProxy() bool {
	return true
}

// Unwrap returns the target without interception
func (p *Proxy) Unwrap() any {
	return p.target
}

// ID returns the unique identifier of the proxy
func (p *Proxy) ID() string {
	return p.id
}

// Config returns a copy of the interception config
func (p *Proxy) Config() Config {
	return p.pipeline.config.clone()
}

// String implements fmt.Stringer
func (p *Proxy) String() string {
	return fmt.Sprintf("proxy(%s)[%s]", typeName(p.target), p.id)
}

// IsProxy reports whether v is an interception proxy
func IsProxy(v any) bool {
	marker, ok := v.(interface{ IsProxy() bool })
	return ok && marker.IsProxy()
}

// ResultTypeError is returned by InvokeAs when the result has another type
type ResultTypeError struct {
	Method   string
	Expected string
	Actual   string
}

func (e *ResultTypeError) Error() string {
	return fmt.Sprintf("result of %s is %s, not %s", e.Method, e.Actual, e.Expected)
}

// InvokeAs calls Invoke and asserts the type of the result. A nil result
// yields the zero value of T.
func InvokeAs[T any](p *Proxy, method string, args ...any) (T, error) {
	var zero T
	result, err := p.Invoke(method, args...)
	if err != nil {
		return zero, err
	}
	if result == nil {
		return zero, nil
	}

	typed, ok := result.(T)
	if !ok {
		return zero, &ResultTypeError{
			Method:   method,
			Expected: reflect.TypeFor[T]().String(),
			Actual:   typeName(result),
		}
	}
	return typed, nil
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
