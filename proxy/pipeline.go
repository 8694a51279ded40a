package proxy

import (
	"log/slog"
	"time"

	"github.com/glimte/proxymachine-go/interceptors"
	"github.com/glimte/proxymachine-go/invoker"
)

// State is a step of the interception pipeline
type State int

const (
	StateStart State = iota
	StateExistenceCheck
	StateBeforeAll
	StateBeforePerMethod
	StateDelegate
	StateAfterPerMethod
	StateAfterAll
	StateDone
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateExistenceCheck:
		return "existence-check"
	case StateBeforeAll:
		return "before-all"
	case StateBeforePerMethod:
		return "before-per-method"
	case StateDelegate:
		return "delegate"
	case StateAfterPerMethod:
		return "after-per-method"
	case StateAfterAll:
		return "after-all"
	case StateDone:
		return "done"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// pipeline runs one call at a time through the configured slots. It holds no
// per-call state; everything about a call lives in its interceptors.Call.
type pipeline struct {
	proxyID string
	target  any
	config  Config
	invoker invoker.Invoker
	logger  *slog.Logger
	metrics interceptors.MetricsCollector
}

func (p *pipeline) run(method string, args []any) (any, error) {
	start := time.Now()
	call := interceptors.NewCall(p.target, method, args)
	p.trace(call, StateStart)

	if p.metrics != nil {
		p.metrics.IncrementCallCount(method)
		defer func() {
			p.metrics.RecordCallDuration(method, time.Since(start))
		}()
	}

	p.trace(call, StateExistenceCheck)
	if !p.config.AllowDynamic && !p.invoker.HasMember(p.target, method) {
		p.trace(call, StateRejected)
		p.logger.Warn("rejected call to unknown operation",
			"proxyId", p.proxyID,
			"callId", call.ID,
			"method", method,
		)
		p.fail(method, interceptors.ErrorTypeUnknownOperation)
		return nil, &invoker.UnknownOperationError{Name: method, Target: typeName(p.target)}
	}

	p.trace(call, StateBeforeAll)
	if err := p.before(call, interceptors.ScopeGlobal, p.config.BeforeAll); err != nil {
		p.fail(method, interceptors.ErrorTypeHandler)
		return nil, err
	}

	p.trace(call, StateBeforePerMethod)
	if err := p.before(call, interceptors.ScopeMethod, p.config.Before); err != nil {
		p.fail(method, interceptors.ErrorTypeHandler)
		return nil, err
	}

	p.trace(call, StateDelegate)
	if !p.config.SuppressDelegation {
		result, err := p.invoker.InvokeMember(p.target, method, call.Args)
		if err != nil {
			p.fail(method, interceptors.ErrorTypeDelegation)
			return nil, err
		}
		call.Result = result
	}

	p.trace(call, StateAfterPerMethod)
	resultAfter, err := p.phase(p.config.After, call.At(interceptors.PhaseAfter, interceptors.ScopeMethod))
	if err != nil {
		p.fail(method, interceptors.ErrorTypeHandler)
		return nil, err
	}

	p.trace(call, StateAfterAll)
	resultAfterAll, err := p.phase(p.config.AfterAll, call.At(interceptors.PhaseAfter, interceptors.ScopeGlobal))
	if err != nil {
		p.fail(method, interceptors.ErrorTypeHandler)
		return nil, err
	}

	p.trace(call, StateDone)
	return precedence(resultAfterAll, resultAfter, call.Result), nil
}

// before runs a before phase. Handlers may replace the argument list; the
// replacement is what later phases and the delegated call receive.
func (p *pipeline) before(call *interceptors.Call, scope interceptors.Scope, slot interceptors.Slot) error {
	phaseCall := call.At(interceptors.PhaseBefore, scope)
	if _, err := p.phase(slot, phaseCall); err != nil {
		return err
	}
	call.Args = phaseCall.Args
	return nil
}

func (p *pipeline) phase(slot interceptors.Slot, call *interceptors.Call) (any, error) {
	handlers := interceptors.Resolve(slot, call.Method)
	if len(handlers) == 0 {
		return interceptors.Absent, nil
	}
	return interceptors.ExecuteAll(handlers, call)
}

// precedence picks the call's result: the global after result, then the
// per-method after result, then the delegated result
func precedence(resultAfterAll, resultAfter, result any) any {
	for _, candidate := range []any{resultAfterAll, resultAfter, result} {
		if !interceptors.IsAbsent(candidate) {
			return candidate
		}
	}
	return nil
}

func (p *pipeline) trace(call *interceptors.Call, state State) {
	p.logger.Debug("pipeline state",
		"proxyId", p.proxyID,
		"callId", call.ID,
		"method", call.Method,
		"state", state.String(),
	)
}

func (p *pipeline) fail(method, errorType string) {
	if p.metrics != nil {
		p.metrics.IncrementErrorCount(method, errorType)
	}
}
