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

package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tochemey/orbit/address"
	gerrors "github.com/tochemey/orbit/errors"
)

type cart struct {
	Items map[string]int
	Total float64
}

func TestProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "states.db")
	ref := address.NewReference(2, "cart-1")

	t.Run("Round trip", func(t *testing.T) {
		provider, err := Open(path)
		require.NoError(t, err)

		var state cart
		found, err := provider.ReadState(t.Context(), ref, &state)
		require.NoError(t, err)
		require.False(t, found)

		require.NoError(t, provider.WriteState(t.Context(), ref, &cart{Items: map[string]int{"sku-1": 2}, Total: 19.5}))
		require.NoError(t, provider.Close())
		require.NoError(t, provider.Close())
	})
	t.Run("State survives reopening", func(t *testing.T) {
		provider, err := Open(path)
		require.NoError(t, err)
		defer provider.Close()

		var state cart
		found, err := provider.ReadState(t.Context(), ref, &state)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, 2, state.Items["sku-1"])
		assert.InDelta(t, 19.5, state.Total, 0.001)

		require.NoError(t, provider.ClearState(t.Context(), ref))
		found, err = provider.ReadState(t.Context(), ref, &state)
		require.NoError(t, err)
		require.False(t, found)
	})
	t.Run("Closed provider", func(t *testing.T) {
		provider, err := Open(filepath.Join(t.TempDir(), "closed.db"))
		require.NoError(t, err)
		require.NoError(t, provider.Close())

		_, err = provider.ReadState(t.Context(), ref, &cart{})
		require.ErrorIs(t, err, gerrors.ErrStorageClosed)
		require.ErrorIs(t, provider.WriteState(t.Context(), ref, &cart{}), gerrors.ErrStorageClosed)
		require.ErrorIs(t, provider.ClearState(t.Context(), ref), gerrors.ErrStorageClosed)
	})
	t.Run("Canceled context", func(t *testing.T) {
		provider, err := Open(filepath.Join(t.TempDir(), "canceled.db"))
		require.NoError(t, err)
		defer provider.Close()

		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		require.ErrorIs(t, provider.WriteState(ctx, ref, &cart{}), context.Canceled)
	})
	t.Run("Invalid path", func(t *testing.T) {
		_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "states.db"))
		require.Error(t, err)
	})
}
