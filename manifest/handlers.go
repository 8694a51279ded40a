package manifest

import (
	"fmt"
	"sort"
	"sync"

	"github.com/glimte/proxymachine-go/interceptors"
)

// Handlers is the set of named handlers a manifest may refer to
type Handlers struct {
	handlers map[string]interceptors.Handler
	mu       sync.RWMutex
}

// NewHandlers creates an empty handler set
func NewHandlers() *Handlers {
	return &Handlers{
		handlers: make(map[string]interceptors.Handler),
	}
}

// Register adds a handler under name
func (h *Handlers) Register(name string, handler interceptors.Handler) error {
	if name == "" {
		return fmt.Errorf("handler name cannot be empty")
	}
	if handler == nil {
		return fmt.Errorf("handler %s cannot be nil", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.handlers[name]; exists {
		return fmt.Errorf("handler %s already registered", name)
	}
	h.handlers[name] = handler
	return nil
}

// MustRegister is like Register but panics on error
func (h *Handlers) MustRegister(name string, handler interceptors.Handler) *Handlers {
	if err := h.Register(name, handler); err != nil {
		panic(err)
	}
	return h
}

// Lookup returns the handler registered under name
func (h *Handlers) Lookup(name string) (interceptors.Handler, error) {
	if h == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandler, name)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	handler, exists := h.handlers[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandler, name)
	}
	return handler, nil
}

// Names returns every registered name in ascending order
func (h *Handlers) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.handlers))
	for name := range h.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (h *Handlers) chain(names []string) (interceptors.Chain, error) {
	chain := make(interceptors.Chain, 0, len(names))
	for _, name := range names {
		handler, err := h.Lookup(name)
		if err != nil {
			return nil, err
		}
		chain = append(chain, handler)
	}
	return chain, nil
}

// resolve returns the handler itself for one name and a chain for several
func (h *Handlers) resolve(names []string) (interceptors.Handler, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no handlers named", ErrInvalidSlot)
	}
	if len(names) == 1 {
		return h.Lookup(names[0])
	}
	return h.chain(names)
}
