// Package manifest builds proxy configs from TOML documents.
//
// A manifest names handlers registered in a Handlers set; it cannot define
// behavior itself. Every slot takes exactly one shape:
//
//	allow_dynamic = true
//
//	[before_all]
//	handler = "log"
//
//	[before]
//	methods = { Reverse = ["validate", "log"] }
//
//	[after_all]
//	patterns = [
//	  { pattern = "^Get", handlers = ["cache"] },
//	  { pattern = "Value$", handlers = ["audit"] },
//	]
//
// The remaining shapes are chain = ["a", "b"] for an ordered stack run on
// every call, and keyed = { a = { pattern = "...", handlers = [...] } } for
// patterns fired in ascending key order.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/glimte/proxymachine-go/interceptors"
	"github.com/glimte/proxymachine-go/proxy"
)

var (
	// ErrUnknownHandler is returned when a manifest names an unregistered handler
	ErrUnknownHandler = errors.New("manifest: unknown handler")
	// ErrInvalidSlot is returned when a slot has no shape or more than one
	ErrInvalidSlot = errors.New("manifest: invalid slot")
)

// Manifest is the decoded form of a TOML manifest
type Manifest struct {
	AllowDynamic       bool      `toml:"allow_dynamic"`
	SuppressDelegation bool      `toml:"suppress_delegation"`
	BeforeAll          *SlotSpec `toml:"before_all"`
	Before             *SlotSpec `toml:"before"`
	After              *SlotSpec `toml:"after"`
	AfterAll           *SlotSpec `toml:"after_all"`
}

// SlotSpec describes one slot. Exactly one field may be set.
type SlotSpec struct {
	Handler  string                 `toml:"handler"`
	Chain    []string               `toml:"chain"`
	Methods  map[string][]string    `toml:"methods"`
	Patterns []PatternSpec          `toml:"patterns"`
	Keyed    map[string]PatternSpec `toml:"keyed"`
}

// PatternSpec pairs a regular expression with the handlers it selects
type PatternSpec struct {
	Pattern  string   `toml:"pattern"`
	Handlers []string `toml:"handlers"`
}

// SlotError reports which slot of a manifest is wrong
type SlotError struct {
	Slot string
	Err  error
}

func (e *SlotError) Error() string {
	return fmt.Sprintf("manifest slot %s: %v", e.Slot, e.Err)
}

func (e *SlotError) Unwrap() error {
	return e.Err
}

// Decode parses a manifest. Unknown keys are rejected.
func Decode(r io.Reader) (*Manifest, error) {
	var m Manifest
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("manifest has unknown keys: %s", strict.String())
		}
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &m, nil
}

// Load decodes a manifest and builds it against handlers
func Load(r io.Reader, handlers *Handlers) (proxy.Config, error) {
	m, err := Decode(r)
	if err != nil {
		return proxy.Config{}, err
	}
	return m.Build(handlers)
}

// LoadFile loads the manifest at path
func LoadFile(path string, handlers *Handlers) (proxy.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return proxy.Config{}, fmt.Errorf("cannot read %s: %w", path, err)
	}
	cfg, err := Load(bytes.NewReader(data), handlers)
	if err != nil {
		return proxy.Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Build resolves every handler name and returns the proxy config
func (m *Manifest) Build(handlers *Handlers) (proxy.Config, error) {
	cfg := proxy.Config{
		AllowDynamic:       m.AllowDynamic,
		SuppressDelegation: m.SuppressDelegation,
	}

	slots := []struct {
		name string
		spec *SlotSpec
		dst  *interceptors.Slot
	}{
		{"before_all", m.BeforeAll, &cfg.BeforeAll},
		{"before", m.Before, &cfg.Before},
		{"after", m.After, &cfg.After},
		{"after_all", m.AfterAll, &cfg.AfterAll},
	}

	for _, s := range slots {
		if s.spec == nil {
			continue
		}
		slot, err := s.spec.build(handlers)
		if err != nil {
			return proxy.Config{}, &SlotError{Slot: s.name, Err: err}
		}
		*s.dst = slot
	}
	return cfg, nil
}

// Options returns the manifest as proxy options
func (m *Manifest) Options(handlers *Handlers) ([]proxy.Option, error) {
	cfg, err := m.Build(handlers)
	if err != nil {
		return nil, err
	}
	return []proxy.Option{proxy.WithConfig(cfg)}, nil
}

func (s *SlotSpec) build(handlers *Handlers) (interceptors.Slot, error) {
	shapes := 0
	for _, set := range []bool{s.Handler != "", s.Chain != nil, s.Methods != nil, s.Patterns != nil, s.Keyed != nil} {
		if set {
			shapes++
		}
	}
	if shapes != 1 {
		return nil, fmt.Errorf("%w: expected exactly one of handler, chain, methods, patterns or keyed, got %d", ErrInvalidSlot, shapes)
	}

	switch {
	case s.Handler != "":
		h, err := handlers.Lookup(s.Handler)
		if err != nil {
			return nil, err
		}
		return interceptors.Single{Handler: h}, nil

	case s.Chain != nil:
		chain, err := handlers.chain(s.Chain)
		if err != nil {
			return nil, err
		}
		return chain, nil

	case s.Methods != nil:
		byName := make(interceptors.ByName, len(s.Methods))
		for method, names := range s.Methods {
			h, err := handlers.resolve(names)
			if err != nil {
				return nil, fmt.Errorf("method %s: %w", method, err)
			}
			byName[method] = h
		}
		return byName, nil

	case s.Patterns != nil:
		list := make(interceptors.PatternList, 0, len(s.Patterns))
		for i, p := range s.Patterns {
			entry, err := p.build(handlers)
			if err != nil {
				return nil, fmt.Errorf("pattern %d: %w", i, err)
			}
			list = append(list, entry)
		}
		return list, nil

	default:
		byKey := make(interceptors.PatternByKey, len(s.Keyed))
		for key, p := range s.Keyed {
			entry, err := p.build(handlers)
			if err != nil {
				return nil, fmt.Errorf("key %s: %w", key, err)
			}
			byKey[key] = entry
		}
		return byKey, nil
	}
}

func (p PatternSpec) build(handlers *Handlers) (interceptors.PatternEntry, error) {
	if p.Pattern == "" {
		return interceptors.PatternEntry{}, fmt.Errorf("%w: pattern is required", ErrInvalidSlot)
	}
	pattern, err := interceptors.CompilePattern(p.Pattern)
	if err != nil {
		return interceptors.PatternEntry{}, err
	}
	h, err := handlers.resolve(p.Handlers)
	if err != nil {
		return interceptors.PatternEntry{}, err
	}
	return interceptors.PatternEntry{Pattern: pattern, Handler: h}, nil
}

// References returns every handler name the manifest uses, sorted and
// without duplicates
func (m *Manifest) References() []string {
	seen := make(map[string]struct{})
	add := func(names ...string) {
		for _, name := range names {
			if name != "" {
				seen[name] = struct{}{}
			}
		}
	}

	for _, s := range []*SlotSpec{m.BeforeAll, m.Before, m.After, m.AfterAll} {
		if s == nil {
			continue
		}
		add(s.Handler)
		add(s.Chain...)
		for _, names := range s.Methods {
			add(names...)
		}
		for _, p := range s.Patterns {
			add(p.Handlers...)
		}
		for _, p := range s.Keyed {
			add(p.Handlers...)
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks slot shapes and patterns without resolving handler names
func (m *Manifest) Validate() error {
	placeholders := NewHandlers()
	for _, name := range m.References() {
		placeholders.MustRegister(name, interceptors.Chain{})
	}
	_, err := m.Build(placeholders)
	return err
}
