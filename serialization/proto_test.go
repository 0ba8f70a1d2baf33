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

package serialization

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	gerrors "github.com/tochemey/orbit/errors"
	"github.com/tochemey/orbit/message"
)

func TestProtoSerializer(t *testing.T) {
	serializer := NewProtoSerializer()

	t.Run("Request keeps parameter types", func(t *testing.T) {
		request := &message.Message{
			Type:        message.TypeRequest,
			ID:          1 << 40,
			InterfaceID: -3,
			ObjectID:    "alice",
			MethodID:    -1,
			Headers:     message.Headers{"trace": "abc", "tenant": "acme"},
			Payload:     []any{wrapperspb.String("memo"), nil, durationpb.New(time.Second)},
		}

		data, err := serializer.Serialize(request)
		require.NoError(t, err)

		actual, err := serializer.Deserialize(data)
		require.NoError(t, err)
		assert.Equal(t, message.TypeRequest, actual.Type)
		assert.Equal(t, request.ID, actual.ID)
		assert.EqualValues(t, -3, actual.InterfaceID)
		assert.EqualValues(t, -1, actual.MethodID)
		assert.Equal(t, "alice", actual.ObjectID)
		assert.Equal(t, request.Headers, actual.Headers)

		params := actual.Params()
		require.Len(t, params, 3)
		assert.True(t, proto.Equal(wrapperspb.String("memo"), params[0].(proto.Message)))
		assert.Nil(t, params[1])
		assert.Equal(t, time.Second, params[2].(*durationpb.Duration).AsDuration())
	})
	t.Run("One-way without parameters", func(t *testing.T) {
		data, err := serializer.Serialize(&message.Message{Type: message.TypeOneWay, ObjectID: "x"})
		require.NoError(t, err)
		actual, err := serializer.Deserialize(data)
		require.NoError(t, err)
		assert.Equal(t, message.TypeOneWay, actual.Type)
		assert.NotNil(t, actual.Params())
		assert.Empty(t, actual.Params())
		assert.Nil(t, actual.Headers)
	})
	t.Run("Responses", func(t *testing.T) {
		data, err := serializer.Serialize(&message.Message{Type: message.TypeResponseOK, ID: 9, Payload: wrapperspb.Int64(-5)})
		require.NoError(t, err)
		actual, err := serializer.Deserialize(data)
		require.NoError(t, err)
		assert.EqualValues(t, -5, actual.Payload.(*wrapperspb.Int64Value).GetValue())

		data, err = serializer.Serialize(&message.Message{Type: message.TypeResponseOK, ID: 10})
		require.NoError(t, err)
		actual, err = serializer.Deserialize(data)
		require.NoError(t, err)
		assert.Nil(t, actual.Payload)

		detail := &message.ErrorDetail{Kind: "no_route", Message: "no members"}
		data, err = serializer.Serialize(&message.Message{Type: message.TypeResponseProtocolError, ID: 11, Payload: detail})
		require.NoError(t, err)
		actual, err = serializer.Deserialize(data)
		require.NoError(t, err)
		assert.Equal(t, detail, actual.ErrorDetail())
	})
	t.Run("Values must be proto messages", func(t *testing.T) {
		_, err := serializer.Serialize(&message.Message{Type: message.TypeRequest, Payload: []any{"plain"}})
		assert.ErrorIs(t, err, gerrors.ErrTypeNotRegistered)
	})
	t.Run("Invalid frames", func(t *testing.T) {
		_, err := serializer.Deserialize(frame([]byte{0x0a}))
		assert.ErrorIs(t, err, gerrors.ErrInvalidFrame)

		_, err = serializer.Deserialize(frame(nil))
		assert.ErrorIs(t, err, gerrors.ErrUnknownMessageType)
	})
}
