package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glimte/proxymachine-go/interceptors"
	"github.com/glimte/proxymachine-go/proxy"
)

type values struct {
	Value string
}

func (v *values) GetValue() string      { return v.Value }
func (v *values) AnotherMethod() string { return "another" }
func (v *values) CrazyOne() string      { return "crazy" }

func appender(suffix string) interceptors.Handler {
	return interceptors.BeforeAllFunc(func(target any, method string, args []any) error {
		target.(*values).Value += suffix
		return nil
	})
}

func constant(v any) interceptors.Handler {
	return interceptors.HandlerFunc(func(call *interceptors.Call) (any, error) {
		return v, nil
	})
}

func testHandlers() *Handlers {
	return NewHandlers().
		MustRegister("a", appender("a")).
		MustRegister("b", appender("b")).
		MustRegister("c", appender("c")).
		MustRegister("one", constant(1)).
		MustRegister("two", constant(2))
}

func load(t *testing.T, doc string) proxy.Config {
	t.Helper()
	cfg, err := Load(strings.NewReader(doc), testHandlers())
	require.NoError(t, err)
	return cfg
}

func TestLoad(t *testing.T) {
	t.Run("Load reads flags", func(t *testing.T) {
		cfg := load(t, `
allow_dynamic = true
suppress_delegation = true
`)

		assert.True(t, cfg.AllowDynamic)
		assert.True(t, cfg.SuppressDelegation)
		assert.False(t, cfg.HasHandlers())
	})

	t.Run("Load builds single handler slot", func(t *testing.T) {
		cfg := load(t, `
[after_all]
handler = "one"
`)

		p := proxy.New(&values{}, proxy.WithConfig(cfg))
		result, err := p.Invoke("CrazyOne")

		require.NoError(t, err)
		assert.Equal(t, 1, result)
	})

	t.Run("Load builds chain slot in declared order", func(t *testing.T) {
		cfg := load(t, `
[before_all]
chain = ["c", "a", "b"]
`)

		p := proxy.New(&values{}, proxy.WithConfig(cfg))
		result, err := p.Invoke("GetValue")

		require.NoError(t, err)
		assert.Equal(t, "cab", result)
	})

	t.Run("Load builds per-method slot", func(t *testing.T) {
		cfg := load(t, `
[before]
methods = { GetValue = ["a", "b"], AnotherMethod = ["c"] }
`)

		require.IsType(t, interceptors.ByName{}, cfg.Before)
		byName := cfg.Before.(interceptors.ByName)
		assert.IsType(t, interceptors.Chain{}, byName["GetValue"])
		assert.NotNil(t, byName["AnotherMethod"])

		p := proxy.New(&values{}, proxy.WithConfig(cfg))
		result, err := p.Invoke("GetValue")
		require.NoError(t, err)
		assert.Equal(t, "ab", result)
	})

	t.Run("Load builds pattern list and last match wins", func(t *testing.T) {
		cfg := load(t, `
[after_all]
patterns = [
  { pattern = "Get", handlers = ["one"] },
  { pattern = "Value", handlers = ["two"] },
]
`)

		p := proxy.New(&values{}, proxy.WithConfig(cfg))

		result, err := p.Invoke("GetValue")
		require.NoError(t, err)
		assert.Equal(t, 2, result)

		result, err = p.Invoke("CrazyOne")
		require.NoError(t, err)
		assert.Equal(t, "crazy", result)
	})

	t.Run("Load builds keyed patterns fired in key order", func(t *testing.T) {
		cfg := load(t, `
[before_all.keyed]
z = { pattern = "Value$", handlers = ["b"] }
m = { pattern = "^Get", handlers = ["a"] }
`)

		p := proxy.New(&values{}, proxy.WithConfig(cfg))
		result, err := p.Invoke("GetValue")

		require.NoError(t, err)
		assert.Equal(t, "ab", result)
	})
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		is   error
	}{
		{"Unknown handler", "[before_all]\nhandler = \"missing\"\n", ErrUnknownHandler},
		{"Unknown handler in chain", "[before_all]\nchain = [\"a\", \"missing\"]\n", ErrUnknownHandler},
		{"Unknown handler by method", "[before]\nmethods = { GetValue = [\"missing\"] }\n", ErrUnknownHandler},
		{"Slot with two shapes", "[before_all]\nhandler = \"a\"\nchain = [\"b\"]\n", ErrInvalidSlot},
		{"Slot without shape", "[before_all]\n", ErrInvalidSlot},
		{"Method without handlers", "[before]\nmethods = { GetValue = [] }\n", ErrInvalidSlot},
		{"Pattern without expression", "[after_all]\npatterns = [{ handlers = [\"one\"] }]\n", ErrInvalidSlot},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tc.doc), testHandlers())

			assert.ErrorIs(t, err, tc.is)
			var slotErr *SlotError
			assert.ErrorAs(t, err, &slotErr)
		})
	}

	t.Run("Invalid pattern is reported", func(t *testing.T) {
		_, err := Load(strings.NewReader("[after_all]\npatterns = [{ pattern = \"(\", handlers = [\"one\"] }]\n"), testHandlers())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "after_all")
	})

	t.Run("Unknown keys are rejected", func(t *testing.T) {
		_, err := Load(strings.NewReader("allow_dynamic = true\nretries = 3\n"), testHandlers())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown keys")
	})

	t.Run("Malformed documents are rejected", func(t *testing.T) {
		_, err := Load(strings.NewReader("allow_dynamic = "), testHandlers())

		assert.Error(t, err)
	})

	t.Run("Nil handler set knows no handlers", func(t *testing.T) {
		_, err := Load(strings.NewReader("[after]\nhandler = \"one\"\n"), nil)

		assert.ErrorIs(t, err, ErrUnknownHandler)
	})
}

func TestLoadFile(t *testing.T) {
	t.Run("LoadFile reads manifest from disk", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "proxy.toml")
		require.NoError(t, os.WriteFile(path, []byte("[after_all]\nhandler = \"two\"\n"), 0o600))

		cfg, err := LoadFile(path, testHandlers())

		require.NoError(t, err)
		assert.IsType(t, interceptors.Single{}, cfg.AfterAll)
	})

	t.Run("LoadFile reports missing files", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml"), testHandlers())

		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("LoadFile names the file in errors", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "proxy.toml")
		require.NoError(t, os.WriteFile(path, []byte("[after_all]\nhandler = \"missing\"\n"), 0o600))

		_, err := LoadFile(path, testHandlers())

		assert.ErrorIs(t, err, ErrUnknownHandler)
		assert.Contains(t, err.Error(), path)
	})
}

func TestManifestOptions(t *testing.T) {
	t.Run("Options configure a proxy", func(t *testing.T) {
		m, err := Decode(strings.NewReader("[after_all]\nhandler = \"one\"\n"))
		require.NoError(t, err)

		options, err := m.Options(testHandlers())
		require.NoError(t, err)

		p := proxy.New(&values{}, options...)
		result, err := p.Invoke("GetValue")
		require.NoError(t, err)
		assert.Equal(t, 1, result)
	})
}

func TestHandlers(t *testing.T) {
	t.Run("Register rejects duplicates, empty names and nil handlers", func(t *testing.T) {
		h := NewHandlers()

		require.NoError(t, h.Register("a", constant(1)))
		assert.Error(t, h.Register("a", constant(2)))
		assert.Error(t, h.Register("", constant(1)))
		assert.Error(t, h.Register("b", nil))
	})

	t.Run("MustRegister panics on error", func(t *testing.T) {
		h := NewHandlers().MustRegister("a", constant(1))

		assert.Panics(t, func() { h.MustRegister("a", constant(1)) })
	})

	t.Run("Names lists handlers sorted", func(t *testing.T) {
		assert.Equal(t, []string{"a", "b", "c", "one", "two"}, testHandlers().Names())
	})
}

func TestManifestReferences(t *testing.T) {
	doc := `
[before_all]
chain = ["log", "auth"]

[before]
methods = { GetValue = ["auth"], CrazyOne = ["trace"] }

[after_all]
keyed = { b = { pattern = "^Get", handlers = ["cache"] } }
`

	t.Run("References lists every handler name once", func(t *testing.T) {
		m, err := Decode(strings.NewReader(doc))
		require.NoError(t, err)

		assert.Equal(t, []string{"auth", "cache", "log", "trace"}, m.References())
	})

	t.Run("Validate accepts manifest without registered handlers", func(t *testing.T) {
		m, err := Decode(strings.NewReader(doc))
		require.NoError(t, err)

		assert.NoError(t, m.Validate())
	})

	t.Run("Validate reports bad shapes and patterns", func(t *testing.T) {
		for _, bad := range []string{
			"[before_all]\nhandler = \"a\"\nchain = [\"b\"]\n",
			"[after_all]\npatterns = [{ pattern = \"(\", handlers = [\"one\"] }]\n",
			"[before]\nmethods = { GetValue = [] }\n",
		} {
			m, err := Decode(strings.NewReader(bad))
			require.NoError(t, err)

			var slotErr *SlotError
			assert.ErrorAs(t, m.Validate(), &slotErr, bad)
		}
	})

	t.Run("Empty manifest references nothing", func(t *testing.T) {
		m, err := Decode(strings.NewReader(""))
		require.NoError(t, err)

		assert.Empty(t, m.References())
		assert.NoError(t, m.Validate())
	})
}
