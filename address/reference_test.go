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

package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gerrors "github.com/tochemey/orbit/errors"
)

func TestReference(t *testing.T) {
	t.Run("Equality ignores the node", func(t *testing.T) {
		ref := NewReference(1, "account-1")
		pinned := ref.WithNode("127.0.0.1:3000")

		assert.True(t, ref.Equals(pinned))
		assert.Equal(t, ref.Key(), pinned.Key())
		assert.Equal(t, NodeAddress("127.0.0.1:3000"), pinned.Node())
		assert.True(t, ref.Node().IsZero())
		assert.Equal(t, "1/account-1@127.0.0.1:3000", pinned.String())
		assert.Equal(t, "1/account-1", ref.String())
	})
	t.Run("Different identities are different actors", func(t *testing.T) {
		assert.False(t, NewReference(1, "a").Equals(NewReference(1, "b")))
		assert.False(t, NewReference(1, "a").Equals(NewReference(2, "a")))
	})
	t.Run("Validate", func(t *testing.T) {
		require.NoError(t, NewReference(3, "").Validate())
		require.ErrorIs(t, NewReference(0, "x").Validate(), gerrors.ErrInvalidReference)
		assert.True(t, Reference{}.IsZero())
		assert.False(t, NewReference(3, "").IsZero())
	})
}
