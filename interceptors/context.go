package interceptors

import (
	"sync"

	"github.com/google/uuid"
)

// Phase identifies when a handler runs relative to the delegated call
type Phase int

const (
	// PhaseBefore handlers run before delegation
	PhaseBefore Phase = iota
	// PhaseAfter handlers run after delegation
	PhaseAfter
)

func (p Phase) String() string {
	switch p {
	case PhaseBefore:
		return "before"
	case PhaseAfter:
		return "after"
	default:
		return "unknown"
	}
}

// Scope identifies which configured slot a handler was resolved from
type Scope int

const (
	// ScopeGlobal covers the before-all and after-all slots
	ScopeGlobal Scope = iota
	// ScopeMethod covers the per-method before and after slots
	ScopeMethod
)

func (s Scope) String() string {
	switch s {
	case ScopeGlobal:
		return "global"
	case ScopeMethod:
		return "method"
	default:
		return "unknown"
	}
}

// Call is the context of a single intercepted invocation. It is created by the
// proxy for every call, handed to each phase and dropped when the call returns.
//
// Args is shared by every phase of the call: a before handler that replaces an
// element of Args changes what the target receives.
type Call struct {
	ID     string
	Target any
	Method string
	Args   []any
	// Result holds the delegated result during the after phases and Absent
	// before delegation or when delegation is suppressed.
	Result any
	Phase  Phase
	Scope  Scope

	values *callValues
}

// callValues is scratch storage shared between the phases of one call
type callValues struct {
	values map[string]any
	mu     sync.RWMutex
}

// NewCall creates the context for one invocation
func NewCall(target any, method string, args []any) *Call {
	return &Call{
		ID:     uuid.New().String(),
		Target: target,
		Method: method,
		Args:   args,
		Result: Absent,
		values: &callValues{values: make(map[string]any)},
	}
}

// At returns a copy of the call positioned at the given phase and scope.
// The copy shares the argument slice and scratch values with the original.
// Assigning a new slice to the copy's Args does not change the original.
func (c *Call) At(phase Phase, scope Scope) *Call {
	cp := *c
	cp.Phase = phase
	cp.Scope = scope
	return &cp
}

// Set stores a value in the call's scratch storage
func (c *Call) Set(key string, value any) {
	if c.values == nil {
		c.values = &callValues{values: make(map[string]any)}
	}
	c.values.mu.Lock()
	defer c.values.mu.Unlock()
	c.values.values[key] = value
}

// Get retrieves a value from the call's scratch storage
func (c *Call) Get(key string) (any, bool) {
	if c.values == nil {
		return nil, false
	}
	c.values.mu.RLock()
	defer c.values.mu.RUnlock()
	value, exists := c.values.values[key]
	return value, exists
}

// GetString retrieves a string value from the call's scratch storage
func (c *Call) GetString(key string) (string, bool) {
	value, exists := c.Get(key)
	if !exists {
		return "", false
	}
	str, ok := value.(string)
	return str, ok
}

// Delete removes a value from the call's scratch storage
func (c *Call) Delete(key string) {
	if c.values == nil {
		return
	}
	c.values.mu.Lock()
	defer c.values.mu.Unlock()
	delete(c.values.values, key)
}
