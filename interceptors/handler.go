package interceptors

// absent is the type of Absent
type absent struct{}

func (absent) String() string { return "<absent>" }

// Absent is the result of a handler that has no opinion about the call's
// result. It is distinct from nil and false, which are real results.
var Absent any = absent{}

// IsAbsent reports whether v is the Absent marker
func IsAbsent(v any) bool {
	_, ok := v.(absent)
	return ok
}

// Handler is a unit of before or after behavior
type Handler interface {
	Handle(call *Call) (any, error)
}

// HandlerFunc is a function adapter for Handler
type HandlerFunc func(call *Call) (any, error)

// Handle implements Handler. A nil function yields Absent.
func (f HandlerFunc) Handle(call *Call) (any, error) {
	if f == nil {
		return Absent, nil
	}
	return f(call)
}

// Observe adapts a function that only reacts to a call. Its result is always Absent.
func Observe(fn func(call *Call) error) Handler {
	if fn == nil {
		return HandlerFunc(nil)
	}
	return HandlerFunc(func(call *Call) (any, error) {
		return Absent, fn(call)
	})
}

// BeforeAllFunc is the positional form of a global before handler
type BeforeAllFunc func(target any, method string, args []any) error

// Handle implements Handler
func (f BeforeAllFunc) Handle(call *Call) (any, error) {
	if f == nil {
		return Absent, nil
	}
	return Absent, f(call.Target, call.Method, call.Args)
}

// BeforeFunc is the positional form of a per-method before handler
type BeforeFunc func(target any, args []any) error

// Handle implements Handler
func (f BeforeFunc) Handle(call *Call) (any, error) {
	if f == nil {
		return Absent, nil
	}
	return Absent, f(call.Target, call.Args)
}

// AfterFunc is the positional form of a per-method after handler. When
// delegation is suppressed result is nil, as it is for performers; handlers
// that must tell nil from no result read Call.Result through a HandlerFunc.
type AfterFunc func(target, result any, args []any) (any, error)

// Handle implements Handler
func (f AfterFunc) Handle(call *Call) (any, error) {
	if f == nil {
		return Absent, nil
	}
	return f(call.Target, positionalResult(call), call.Args)
}

// AfterAllFunc is the positional form of a global after handler. Its result
// argument follows the same rule as AfterFunc.
type AfterAllFunc func(target, result any, method string, args []any) (any, error)

// Handle implements Handler
func (f AfterAllFunc) Handle(call *Call) (any, error) {
	if f == nil {
		return Absent, nil
	}
	return f(call.Target, positionalResult(call), call.Method, call.Args)
}

// positionalResult is the call's result with Absent mapped to nil
func positionalResult(call *Call) any {
	if IsAbsent(call.Result) {
		return nil
	}
	return call.Result
}

// Performer is a handler instantiated once per call. Building it is allowed to
// have side effects; Perform produces the handler's result.
type Performer interface {
	Perform() (any, error)
}

// PerformerFactory builds a Performer from the positional context of a phase.
// Values the phase does not define are passed as zero values: result is nil
// before delegation and method is empty in the per-method scope.
type PerformerFactory func(target, result any, method string, args []any) (Performer, error)

// Handle implements Handler
func (f PerformerFactory) Handle(call *Call) (any, error) {
	return Execute(f, call)
}

// Chain is an ordered list of handlers that all fire for the same call
type Chain []Handler

// Handle implements Handler
func (c Chain) Handle(call *Call) (any, error) {
	return ExecuteAll(c, call)
}

// Execute runs one handler against a call.
//
// Chains run every element in order and yield the last non-absent result.
// Performer factories are built then performed. A nil handler yields Absent.
func Execute(h Handler, call *Call) (any, error) {
	switch h := h.(type) {
	case nil:
		return Absent, nil
	case Chain:
		return ExecuteAll(h, call)
	case PerformerFactory:
		if h == nil {
			return Absent, nil
		}
		return perform(h, call)
	default:
		return h.Handle(call)
	}
}

// ExecuteAll runs handlers front to back and returns the last non-absent result.
// The first error aborts the remaining handlers.
func ExecuteAll(handlers []Handler, call *Call) (any, error) {
	result := Absent
	for _, h := range handlers {
		value, err := Execute(h, call)
		if err != nil {
			return Absent, err
		}
		if !IsAbsent(value) {
			result = value
		}
	}
	return result, nil
}

func perform(factory PerformerFactory, call *Call) (any, error) {
	var result any
	if call.Phase == PhaseAfter {
		result = positionalResult(call)
	}
	var method string
	if call.Scope == ScopeGlobal {
		method = call.Method
	}

	performer, err := factory(call.Target, result, method, call.Args)
	if err != nil {
		return Absent, err
	}
	if performer == nil {
		return Absent, nil
	}
	return performer.Perform()
}
