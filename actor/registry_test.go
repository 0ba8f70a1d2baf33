// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package actor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tochemey/orbit/address"
	gerrors "github.com/tochemey/orbit/errors"
	"github.com/tochemey/orbit/future"
)

type counter struct {
	value int
}

const (
	counterInterface int32 = 1
	incrementMethod  int32 = 1
	getMethod        int32 = 2
	addMethod        int32 = 3
	resetMethod      int32 = 4
)

func counterInterfaceDef() *Interface {
	return NewInterface(counterInterface, "counter", func() Actor { return &counter{} }).
		Method(incrementMethod, "increment", Func1(func(_ context.Context, _ *Context, c *counter, delta int) (int, error) {
			c.value += delta
			return c.value, nil
		})).
		Method(getMethod, "get", Func0(func(_ context.Context, _ *Context, c *counter) (int, error) {
			return c.value, nil
		}), AsReentrant()).
		Method(addMethod, "add", Func2(func(_ context.Context, _ *Context, c *counter, a, b int) (int, error) {
			c.value += a + b
			return c.value, nil
		})).
		Method(resetMethod, "reset", Action1(func(_ context.Context, _ *Context, c *counter, to int) error {
			if to < 0 {
				return errors.New("negative")
			}
			c.value = to
			return nil
		}), AsOneWay())
}

type noopRuntime struct{}

func (noopRuntime) Invoke(context.Context, address.Reference, int32, bool, ...any) *future.Future[any] {
	return future.Completed[any](nil)
}
func (noopRuntime) Deactivate(address.Reference) {}
func (noopRuntime) WriteState(context.Context, address.Reference, Actor) error {
	return nil
}
func (noopRuntime) ClearState(context.Context, address.Reference, Actor) error {
	return nil
}

func TestRegistry(t *testing.T) {
	t.Run("Register and dispatch typed methods", func(t *testing.T) {
		registry := NewRegistry()
		require.NoError(t, registry.Register(counterInterfaceDef()))

		iface, err := registry.Interface(counterInterface)
		require.NoError(t, err)
		assert.Equal(t, "counter", iface.Name())

		instance := iface.New()
		actx := NewContext(address.NewReference(counterInterface, "c1"), instance, noopRuntime{}, nil, nil)

		method, err := registry.Method(counterInterface, incrementMethod)
		require.NoError(t, err)
		result, err := method.Invoke(t.Context(), actx, instance, []any{5})
		require.NoError(t, err)
		assert.Equal(t, 5, result)

		method, err = registry.Method(counterInterface, addMethod)
		require.NoError(t, err)
		result, err = method.Invoke(t.Context(), actx, instance, []any{1, 2})
		require.NoError(t, err)
		assert.Equal(t, 8, result)

		method, err = registry.Method(counterInterface, resetMethod)
		require.NoError(t, err)
		assert.True(t, method.OneWay)
		_, err = method.Invoke(t.Context(), actx, instance, []any{0})
		require.NoError(t, err)
		_, err = method.Invoke(t.Context(), actx, instance, []any{-1})
		require.EqualError(t, err, "negative")

		method, err = registry.Method(counterInterface, getMethod)
		require.NoError(t, err)
		result, err = method.Invoke(t.Context(), actx, instance, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, result)
	})
	t.Run("Reentrancy flags", func(t *testing.T) {
		iface := counterInterfaceDef()
		assert.True(t, iface.IsReentrant(getMethod))
		assert.False(t, iface.IsReentrant(incrementMethod))

		reentrant := NewInterface(2, "reentrant", func() Actor { return &counter{} }, WithReentrancy())
		assert.True(t, reentrant.IsReentrant(42))
	})
	t.Run("Invalid parameters", func(t *testing.T) {
		iface := counterInterfaceDef()
		method, err := iface.Lookup(incrementMethod)
		require.NoError(t, err)

		_, err = method.Invoke(t.Context(), nil, &counter{}, []any{"five"})
		require.ErrorIs(t, err, gerrors.ErrInvalidParams)

		_, err = method.Invoke(t.Context(), nil, &counter{}, nil)
		require.ErrorIs(t, err, gerrors.ErrInvalidParams)

		_, err = method.Invoke(t.Context(), nil, "not a counter", []any{1})
		require.ErrorIs(t, err, gerrors.ErrInvalidParams)

		// nil parameters decode to the zero value
		result, err := method.Invoke(t.Context(), nil, &counter{}, []any{nil})
		require.NoError(t, err)
		assert.Equal(t, 0, result)
	})
	t.Run("Lookups fail for unknown ids", func(t *testing.T) {
		registry := NewRegistry()
		require.NoError(t, registry.Register(counterInterfaceDef()))

		_, err := registry.Interface(99)
		require.ErrorIs(t, err, gerrors.ErrInterfaceNotRegistered)

		_, err = registry.Method(counterInterface, 99)
		require.ErrorIs(t, err, gerrors.ErrMethodNotFound)
	})
	t.Run("Registration validation", func(t *testing.T) {
		registry := NewRegistry()
		require.NoError(t, registry.Register(counterInterfaceDef()))
		require.ErrorIs(t, registry.Register(counterInterfaceDef()), gerrors.ErrInterfaceExists)

		require.Error(t, registry.Register(NewInterface(0, "zero", func() Actor { return nil })))
		require.Error(t, registry.Register(NewInterface(5, "nofactory", nil)))
		require.Error(t, registry.Register(NewInterface(6, "nilmethod", func() Actor { return nil }).Method(1, "m", nil)))

		duplicate := NewInterface(7, "duplicate", func() Actor { return nil }).
			Method(1, "a", Func0(func(context.Context, *Context, *counter) (int, error) { return 0, nil })).
			Method(1, "b", Func0(func(context.Context, *Context, *counter) (int, error) { return 0, nil }))
		require.Error(t, registry.Register(duplicate))

		second := NewInterface(8, "second", func() Actor { return &counter{} })
		require.NoError(t, registry.Register(second))
		interfaces := registry.Interfaces()
		require.Len(t, interfaces, 2)
		assert.Equal(t, counterInterface, interfaces[0].ID())
	})
}

func TestContext(t *testing.T) {
	self := address.NewReference(counterInterface, "c1")
	actx := NewContext(self, &counter{}, noopRuntime{}, map[string]string{"k": "v"}, nil)
	assert.True(t, actx.Self().Equals(self))
	assert.Equal(t, "v", actx.Headers()["k"])
	assert.NotNil(t, actx.Logger())
	actx.Deactivate()
	require.NoError(t, actx.WriteState(t.Context()))
	require.NoError(t, actx.ClearState(t.Context()))

	value, err := actx.Invoke(t.Context(), self, getMethod).Await(t.Context())
	require.NoError(t, err)
	assert.Nil(t, value)
	_, err = actx.Tell(t.Context(), self, resetMethod, 1).Await(t.Context())
	require.NoError(t, err)
}
