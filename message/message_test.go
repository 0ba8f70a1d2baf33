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

package message

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tochemey/orbit/address"
)

func TestType(t *testing.T) {
	assert.True(t, TypeResponseOK.IsResponse())
	assert.True(t, TypeResponseProtocolError.IsResponse())
	assert.False(t, TypeRequest.IsResponse())
	assert.True(t, TypeOneWay.Valid())
	assert.False(t, Type(0).Valid())
	assert.Equal(t, "request", TypeRequest.String())
	assert.Equal(t, "unknown(42)", Type(42).String())
}

func TestMessage(t *testing.T) {
	msg := &Message{
		Type:        TypeRequest,
		InterfaceID: 3,
		ObjectID:    "cart-1",
		Payload:     []any{"sku", 2},
	}
	assert.True(t, msg.Reference().Equals(address.NewReference(3, "cart-1")))
	assert.Equal(t, []any{"sku", 2}, msg.Params())
	assert.Nil(t, msg.ErrorDetail())

	failure := &Message{Type: TypeResponseError, Payload: &ErrorDetail{Message: "boom"}}
	require.NotNil(t, failure.ErrorDetail())
	assert.Equal(t, "boom", failure.ErrorDetail().Message)
	assert.Nil(t, failure.Params())
}

func TestHeaders(t *testing.T) {
	headers := Headers{"trace": "abc"}
	clone := headers.Clone()
	clone["trace"] = "xyz"
	assert.Equal(t, "abc", headers["trace"])
	assert.Nil(t, Headers(nil).Clone())
}

func TestInvocation(t *testing.T) {
	t.Run("Request carries a completion", func(t *testing.T) {
		inv := NewInvocation(address.NewReference(1, "a"), 2, false, 10)
		require.NotNil(t, inv.Completion)
		inv.Complete(20, nil)
		value, err := inv.Completion.Future().Await(t.Context())
		require.NoError(t, err)
		assert.Equal(t, 20, value)
	})
	t.Run("OneWay has no completion", func(t *testing.T) {
		inv := NewInvocation(address.NewReference(1, "a"), 2, true)
		assert.Nil(t, inv.Completion)
		inv.Complete(nil, errors.New("ignored"))
	})
}
