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

package placement

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tochemey/orbit/address"
	"github.com/tochemey/orbit/cluster"
	gerrors "github.com/tochemey/orbit/errors"
)

type constantHasher struct{}

func (constantHasher) HashCode([]byte) uint64 { return 1 }

func TestPlacement(t *testing.T) {
	t.Run("Empty view has no route", func(t *testing.T) {
		placement := New("node-1")
		_, err := placement.Owner(address.NewReference(1, "a"))
		require.ErrorIs(t, err, gerrors.ErrNoRoute)
		assert.False(t, placement.IsLocal(address.NewReference(1, "a")))
	})
	t.Run("Every node agrees on the owner", func(t *testing.T) {
		first, second := New("node-1"), New("node-2")
		first.Update(cluster.NewView("node-1", "node-2", "node-3"))
		second.Update(cluster.NewView("node-3", "node-2", "node-1"))

		for i := range 100 {
			ref := address.NewReference(1, fmt.Sprintf("actor-%d", i))
			a, err := first.Owner(ref)
			require.NoError(t, err)
			b, err := second.Owner(ref)
			require.NoError(t, err)
			assert.Equal(t, a, b)
		}
	})
	t.Run("Actors spread across nodes", func(t *testing.T) {
		placement := New("node-1")
		placement.Update(cluster.NewView("node-1", "node-2", "node-3"))

		owners := make(map[address.NodeAddress]int)
		for i := range 300 {
			owner, err := placement.Owner(address.NewReference(1, fmt.Sprintf("actor-%d", i)))
			require.NoError(t, err)
			owners[owner]++
		}
		assert.Len(t, owners, 3)
	})
	t.Run("Only actors of a departed node move", func(t *testing.T) {
		placement := New("node-1")
		placement.Update(cluster.NewView("node-1", "node-2", "node-3"))

		before := make(map[string]address.NodeAddress)
		for i := range 200 {
			ref := address.NewReference(1, fmt.Sprintf("actor-%d", i))
			before[ref.Identity()], _ = placement.Owner(ref)
		}

		placement.Update(cluster.NewView("node-1", "node-2"))
		for identity, owner := range before {
			now, err := placement.Owner(address.NewReference(1, identity))
			require.NoError(t, err)
			if owner != "node-3" {
				assert.Equal(t, owner, now)
			}
			assert.NotEqual(t, address.NodeAddress("node-3"), now)
		}
	})
	t.Run("Ties resolve to the lowest address", func(t *testing.T) {
		placement := New("node-a", WithHasher(constantHasher{}))
		placement.Update(cluster.NewView("node-c", "node-a", "node-b"))
		assert.True(t, placement.IsLocal(address.NewReference(1, "x")))
		assert.Equal(t, []address.NodeAddress{"node-a", "node-b", "node-c"}, placement.Members())
	})
	t.Run("Local address can be set after creation", func(t *testing.T) {
		placement := New("", WithHasher(constantHasher{}))
		placement.Update(cluster.NewView("node-a", "node-b"))
		assert.False(t, placement.IsLocal(address.NewReference(1, "x")))

		placement.SetLocal("node-a")
		assert.Equal(t, address.NodeAddress("node-a"), placement.Local())
		assert.True(t, placement.IsLocal(address.NewReference(1, "x")))
	})
}

func TestDefaultHasher(t *testing.T) {
	hasher := DefaultHasher()
	assert.Equal(t, hasher.HashCode([]byte("7/alice@node-a")), hasher.HashCode([]byte("7/alice@node-a")))
	assert.NotEqual(t, hasher.HashCode([]byte("7/alice@node-a")), hasher.HashCode([]byte("7/alice@node-b")))
	assert.EqualValues(t, 1, HasherFunc(func([]byte) uint64 { return 1 }).HashCode(nil))
}
