package invoker

import (
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"runtime"
)

// Invoker gives the proxy access to the members of a target
type Invoker interface {
	// HasMember reports whether target exposes a member called name
	HasMember(target any, name string) bool

	// InvokeMember calls member name on target with args
	InvokeMember(target any, name string, args []any) (any, error)
}

// MemberChecker is implemented by targets that expose members beyond their
// method set
type MemberChecker interface {
	HasMember(name string) bool
}

// MethodMissing is implemented by targets with a catch-all for members they do
// not define
type MethodMissing interface {
	MethodMissing(name string, args []any) (any, error)
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Reflect is the default Invoker. Members are the exported methods in the
// target's method set, so methods with pointer receivers are only found on
// pointer targets.
//
// Results are mapped as follows: a trailing error result is returned as the
// error, no remaining results yield nil, one yields that value and several
// yield a []any.
type Reflect struct {
	logger *slog.Logger
}

// Option configures the Reflect invoker
type Option func(*Reflect)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reflect) {
		r.logger = logger
	}
}

// New creates a new reflection based invoker
func New(options ...Option) *Reflect {
	r := &Reflect{logger: slog.Default()}

	for _, opt := range options {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}

	return r
}

// HasMember implements Invoker
func (r *Reflect) HasMember(target any, name string) bool {
	if target == nil || name == "" {
		return false
	}
	if checker, ok := target.(MemberChecker); ok && checker.HasMember(name) {
		return true
	}
	return reflect.ValueOf(target).MethodByName(name).IsValid()
}

// InvokeMember implements Invoker. Members the target does not define are
// routed to its MethodMissing catch-all when it has one.
func (r *Reflect) InvokeMember(target any, name string, args []any) (any, error) {
	if target != nil {
		if method := reflect.ValueOf(target).MethodByName(name); method.IsValid() {
			return call(name, method, args)
		}
		if fallback, ok := target.(MethodMissing); ok {
			r.logger.Debug("routing call to method missing",
				"method", name,
				"target", fmt.Sprintf("%T", target),
			)
			return fallback.MethodMissing(name, args)
		}
	}

	return nil, &UnknownOperationError{Name: name, Target: fmt.Sprintf("%T", target)}
}

// CallFunc calls fn with args using the same argument and result mapping as
// InvokeMember. It fails with ErrInvalidArguments when fn is not a function.
func CallFunc(fn any, args []any) (any, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return nil, &ArgumentError{Method: fmt.Sprintf("%T", fn), Index: -1, Reason: "not a function"}
	}
	return call(funcName(v), v, args)
}

func funcName(v reflect.Value) string {
	if f := runtime.FuncForPC(v.Pointer()); f != nil {
		return f.Name()
	}
	return v.Type().String()
}

func call(name string, method reflect.Value, args []any) (any, error) {
	in, err := buildArgs(name, method.Type(), args)
	if err != nil {
		return nil, err
	}
	return collect(method.Type(), method.Call(in))
}

func buildArgs(name string, ft reflect.Type, args []any) ([]reflect.Value, error) {
	n := ft.NumIn()
	if ft.IsVariadic() {
		if len(args) < n-1 {
			return nil, &ArgumentError{
				Method: name,
				Index:  -1,
				Reason: fmt.Sprintf("expected at least %d arguments, got %d", n-1, len(args)),
			}
		}
	} else if len(args) != n {
		return nil, &ArgumentError{
			Method: name,
			Index:  -1,
			Reason: fmt.Sprintf("expected %d arguments, got %d", n, len(args)),
		}
	}

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		var pt reflect.Type
		if ft.IsVariadic() && i >= n-1 {
			pt = ft.In(n - 1).Elem()
		} else {
			pt = ft.In(i)
		}

		v, err := convert(arg, pt)
		if err != nil {
			return nil, &ArgumentError{Method: name, Index: i, Reason: err.Error()}
		}
		in[i] = v
	}
	return in, nil
}

func convert(arg any, pt reflect.Type) (reflect.Value, error) {
	if arg == nil {
		switch pt.Kind() {
		case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
			return reflect.Zero(pt), nil
		}
		return reflect.Value{}, fmt.Errorf("nil is not assignable to %s", pt)
	}

	v := reflect.ValueOf(arg)
	switch {
	case v.Type().AssignableTo(pt):
		return v, nil
	case isNumber(v.Kind()) && isNumber(pt.Kind()):
		return convertNumber(v, pt)
	case v.Kind() == reflect.String && pt.Kind() == reflect.String:
		return v.Convert(pt), nil
	}
	return reflect.Value{}, fmt.Errorf("%s is not assignable to %s", v.Type(), pt)
}

// convertNumber converts v to pt only when the value survives unchanged.
// Integers must fit the target range and floats must be whole numbers to
// become integers.
func convertNumber(v reflect.Value, pt reflect.Type) (reflect.Value, error) {
	dst := reflect.New(pt).Elem()

	switch {
	case isInt(v.Kind()):
		n := v.Int()
		switch {
		case isInt(pt.Kind()) && dst.OverflowInt(n),
			isUint(pt.Kind()) && (n < 0 || dst.OverflowUint(uint64(n))):
			return reflect.Value{}, fmt.Errorf("%d overflows %s", n, pt)
		}

	case isUint(v.Kind()):
		n := v.Uint()
		switch {
		case isInt(pt.Kind()) && (n > math.MaxInt64 || dst.OverflowInt(int64(n))),
			isUint(pt.Kind()) && dst.OverflowUint(n):
			return reflect.Value{}, fmt.Errorf("%d overflows %s", n, pt)
		}

	default:
		f := v.Float()
		if isFloat(pt.Kind()) {
			if dst.OverflowFloat(f) {
				return reflect.Value{}, fmt.Errorf("%g overflows %s", f, pt)
			}
			break
		}
		if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
			return reflect.Value{}, fmt.Errorf("%g is not a whole number for %s", f, pt)
		}
		switch {
		case isInt(pt.Kind()) && (f < math.MinInt64 || f >= math.MaxInt64 || dst.OverflowInt(int64(f))),
			isUint(pt.Kind()) && (f < 0 || f >= math.MaxUint64 || dst.OverflowUint(uint64(f))):
			return reflect.Value{}, fmt.Errorf("%g overflows %s", f, pt)
		}
	}

	return v.Convert(pt), nil
}

func isInt(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isUint(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func collect(ft reflect.Type, out []reflect.Value) (any, error) {
	var err error
	if n := len(out); n > 0 && ft.Out(n-1) == errorType {
		if errValue := out[n-1]; !errValue.IsNil() {
			err = errValue.Interface().(error)
		}
		out = out[:n-1]
	}
	if err != nil {
		return nil, err
	}

	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return out[0].Interface(), nil
	default:
		results := make([]any, len(out))
		for i, v := range out {
			results[i] = v.Interface()
		}
		return results, nil
	}
}
