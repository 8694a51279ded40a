// Package interceptors provides the handler model of the interception proxy.
//
// A handler is a unit of before or after behavior attached to a proxied object
// without changing the object itself. This package provides:
//   - Handler interface, function adapters and positional phase adapters
//   - Performers: handlers instantiated once per call
//   - Slot shapes describing how handlers are attached to method names
//   - Resolution of a slot into the ordered handlers of one call
//   - Built-in handlers for common concerns
//
// Slot shapes:
//   - Single: one handler for every call
//   - ByName: handlers keyed by exact method name
//   - PatternList: handlers keyed by method pattern, in declared order
//   - PatternByKey: handlers keyed by method pattern, in ascending key order
//   - Chain: an ordered list of handlers that all fire
//
// Example usage:
//
//	before := interceptors.PatternList{
//		interceptors.When("^Get", interceptors.BeforeAllFunc(func(target any, method string, args []any) error {
//			logger.Info("reading", "method", method)
//			return nil
//		})),
//	}
//
//	after := interceptors.ByName{
//		"Size": interceptors.AfterFunc(func(target, result any, args []any) (any, error) {
//			return result.(int) * 10, nil
//		}),
//	}
//
// Handlers return Absent when they have no opinion about the call's result.
// When several handlers of one phase produce a result, the last one wins.
package interceptors
