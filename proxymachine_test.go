package proxymachine

import (
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glimte/proxymachine-go/interceptors"
	"github.com/glimte/proxymachine-go/invoker"
	"github.com/glimte/proxymachine-go/proxy"
)

type pair struct {
	var1 any
	var2 any
}

func newPair(v1, v2 any) *pair {
	return &pair{var1: v1, var2: v2}
}

func (p *pair) Var1() any { return p.var1 }
func (p *pair) Var2() any { return p.var2 }

type constructed struct {
	name  string
	count int
}

func newConstructed() *constructed {
	return &constructed{}
}

func (c *constructed) Name() string        { return c.name }
func (c *constructed) SetName(name string) { c.name = name }
func (c *constructed) Count() int          { return c.count }
func (c *constructed) String() string      { return "constructed" }

type registered struct {
	count *int
}

func (r *registered) String() string { return "registered" }

type counterPerformer struct {
	target *registered
}

func newCounterPerformer(target, result any, method string, args []any) (interceptors.Performer, error) {
	return &counterPerformer{target: target.(*registered)}, nil
}

func (p *counterPerformer) Perform() (any, error) {
	if p.target.count == nil {
		zero := 0
		p.target.count = &zero
	} else {
		*p.target.count++
	}
	return *p.target.count, nil
}

func mustConstructor(t *testing.T, fn any) Constructor {
	t.Helper()
	constructor, err := ConstructorFunc(fn)
	require.NoError(t, err)
	return constructor
}

func invoke(t *testing.T, p *proxy.Proxy, method string, args ...any) any {
	t.Helper()
	result, err := p.Invoke(method, args...)
	require.NoError(t, err)
	return result
}

func TestFor(t *testing.T) {
	t.Run("For wraps target", func(t *testing.T) {
		target := newConstructed()

		p := For(target)

		assert.True(t, proxy.IsProxy(p))
		assert.Same(t, target, p.Unwrap())
		assert.Equal(t, "constructed", invoke(t, p, "String"))
	})

	t.Run("For applies options", func(t *testing.T) {
		p := For(newConstructed(), proxy.WithSuppressDelegation(true))

		assert.True(t, p.Config().SuppressDelegation)
	})
}

func TestAutoProxy(t *testing.T) {
	t.Run("AutoProxy works with parametrized constructors", func(t *testing.T) {
		factory := AutoProxy(mustConstructor(t, newPair), proxy.WithBefore(interceptors.ByName{
			"Var1": interceptors.BeforeFunc(func(target any, args []any) error {
				p := target.(*pair)
				if p.var1 == 1 {
					p.var1 = "proxied"
				}
				return nil
			}),
		}))

		p, err := factory.New(1, 2)
		require.NoError(t, err)
		assert.True(t, p.IsProxy())
		assert.Equal(t, 1, p.Unwrap().(*pair).var1)
		assert.Equal(t, "proxied", invoke(t, p, "Var1"))
		assert.Equal(t, 2, invoke(t, p, "Var2"))

		p, err = factory.New("a", "b")
		require.NoError(t, err)
		assert.Equal(t, "a", invoke(t, p, "Var1"))
		assert.Equal(t, "b", invoke(t, p, "Var2"))
	})

	t.Run("AutoProxy adds before handler for a certain method", func(t *testing.T) {
		factory := AutoProxy(mustConstructor(t, newConstructed), proxy.WithBefore(interceptors.ByName{
			"Name": interceptors.BeforeFunc(func(target any, args []any) error {
				c := target.(*constructed)
				c.name += "-2"
				return nil
			}),
		}))

		p, err := factory.New()
		require.NoError(t, err)

		assert.Equal(t, "-2", invoke(t, p, "Name"))
		invoke(t, p, "SetName", "house")
		assert.Equal(t, "house-2", invoke(t, p, "Name"))
	})

	t.Run("AutoProxy adds after handler for a certain method", func(t *testing.T) {
		factory := AutoProxy(mustConstructor(t, newConstructed), proxy.WithAfter(interceptors.ByName{
			"Name": interceptors.AfterFunc(func(target, result any, args []any) (any, error) {
				chars := strings.Split(result.(string), "")
				sort.Strings(chars)
				return strings.Join(chars, ""), nil
			}),
		}))

		p, err := factory.New()
		require.NoError(t, err)

		invoke(t, p, "SetName", "tulio")
		assert.Equal(t, "ilotu", invoke(t, p, "Name"))
		invoke(t, p, "SetName", "proxy")
		assert.Equal(t, "oprxy", invoke(t, p, "Name"))
	})

	t.Run("AutoProxy adds before-all handler", func(t *testing.T) {
		factory := AutoProxy(mustConstructor(t, newConstructed), proxy.WithBeforeAll(interceptors.Single{
			Handler: interceptors.BeforeAllFunc(func(target any, method string, args []any) error {
				target.(*constructed).count++
				return nil
			}),
		}))

		p, err := factory.New()
		require.NoError(t, err)

		assert.Equal(t, 1, invoke(t, p, "Count"))
		invoke(t, p, "String")
		assert.Equal(t, 3, invoke(t, p, "Count"))
	})

	t.Run("AutoProxy adds after-all handler", func(t *testing.T) {
		factory := AutoProxy(mustConstructor(t, newConstructed), proxy.WithAfterAll(interceptors.Single{
			Handler: interceptors.AfterAllFunc(func(target, result any, method string, args []any) (any, error) {
				c := target.(*constructed)
				c.count--
				return c.count, nil
			}),
		}))

		p, err := factory.New()
		require.NoError(t, err)

		assert.Equal(t, -1, invoke(t, p, "Count"))
		assert.Equal(t, -2, invoke(t, p, "String"))
		assert.Equal(t, -3, invoke(t, p, "Count"))
	})

	t.Run("AutoProxy gives every target its own proxy", func(t *testing.T) {
		factory := AutoProxy(mustConstructor(t, newConstructed))

		first, err := factory.New()
		require.NoError(t, err)
		second, err := factory.New()
		require.NoError(t, err)

		assert.NotEqual(t, first.ID(), second.ID())
		assert.NotSame(t, first.Unwrap(), second.Unwrap())
	})
}

func TestAutoProxyPerformers(t *testing.T) {
	construct := func(args ...any) (any, error) {
		return &registered{}, nil
	}
	counter := interceptors.PerformerFactory(newCounterPerformer)

	cases := []struct {
		name   string
		option proxy.Option
	}{
		{"Performer runs as before handler", proxy.WithBefore(interceptors.ByName{"String": counter})},
		{"Performer runs as after handler", proxy.WithAfter(interceptors.ByName{"String": counter})},
		{"Performer runs as before-all handler", proxy.WithBeforeAll(interceptors.Single{Handler: counter})},
		{"Performer runs as after-all handler", proxy.WithAfterAll(interceptors.Single{Handler: counter})},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := AutoProxy(construct, tc.option).New()
			require.NoError(t, err)
			target := p.Unwrap().(*registered)

			assert.Nil(t, target.count)
			invoke(t, p, "String")
			require.NotNil(t, target.count)
			assert.Equal(t, 0, *target.count)
			invoke(t, p, "String")
			assert.Equal(t, 1, *target.count)
		})
	}
}

func TestFactory(t *testing.T) {
	t.Run("New reports constructor failures", func(t *testing.T) {
		failure := errors.New("out of stock")
		factory := NewFactory(func(args ...any) (any, error) { return nil, failure })

		_, err := factory.New()

		assert.ErrorIs(t, err, ErrConstruction)
		assert.ErrorIs(t, err, failure)
	})

	t.Run("New reports missing constructor", func(t *testing.T) {
		_, err := NewFactory(nil).New()

		assert.ErrorIs(t, err, ErrConstruction)
	})

	t.Run("New reports constructor argument mismatch", func(t *testing.T) {
		factory := AutoProxy(mustConstructor(t, newPair))

		_, err := factory.New(1)

		assert.ErrorIs(t, err, invoker.ErrInvalidArguments)
	})

	t.Run("ConstructorFunc rejects non functions", func(t *testing.T) {
		_, err := ConstructorFunc("newPair")
		assert.ErrorIs(t, err, invoker.ErrInvalidArguments)

		var nilFunc func() *pair
		_, err = ConstructorFunc(nilFunc)
		assert.ErrorIs(t, err, invoker.ErrInvalidArguments)
	})

	t.Run("NewFactory falls back to default logger", func(t *testing.T) {
		factory := NewFactory(nil, WithFactoryLogger(nil))

		assert.NotNil(t, factory.logger)
	})
}

func TestRegistry(t *testing.T) {
	t.Run("Register and build by name", func(t *testing.T) {
		registry := NewRegistry()
		factory := AutoProxy(mustConstructor(t, newPair))

		require.NoError(t, registry.Register("pair", factory))

		assert.True(t, registry.IsRegistered("pair"))
		p, err := registry.New("pair", "x", "y")
		require.NoError(t, err)
		assert.Equal(t, "x", invoke(t, p, "Var1"))
	})

	t.Run("Register is idempotent for the same factory", func(t *testing.T) {
		registry := NewRegistry()
		factory := AutoProxy(mustConstructor(t, newPair))

		require.NoError(t, registry.Register("pair", factory))
		assert.NoError(t, registry.Register("pair", factory))
	})

	t.Run("Register rejects conflicting names", func(t *testing.T) {
		registry := NewRegistry()

		require.NoError(t, registry.Register("pair", AutoProxy(mustConstructor(t, newPair))))
		err := registry.Register("pair", AutoProxy(mustConstructor(t, newConstructed)))

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "already registered")
	})

	t.Run("Register rejects empty name and nil factory", func(t *testing.T) {
		registry := NewRegistry()

		assert.Error(t, registry.Register("", AutoProxy(nil)))
		assert.Error(t, registry.Register("pair", nil))
	})

	t.Run("New fails for unknown names", func(t *testing.T) {
		registry := NewRegistry()

		_, err := registry.New("missing")

		assert.ErrorIs(t, err, ErrFactoryNotFound)
		assert.False(t, registry.IsRegistered("missing"))
	})

	t.Run("Names lists registered names sorted", func(t *testing.T) {
		registry := NewRegistry()
		factory := AutoProxy(mustConstructor(t, newConstructed))

		require.NoError(t, registry.Register("zeta", factory))
		require.NoError(t, registry.Register("alpha", factory))

		assert.Equal(t, []string{"alpha", "zeta"}, registry.Names())
	})
}
