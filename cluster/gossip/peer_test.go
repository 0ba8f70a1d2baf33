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

package gossip

import (
	"context"
	"net"
	"slices"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travisjeffery/go-dynaport"

	"github.com/tochemey/orbit/address"
	"github.com/tochemey/orbit/cluster"
	gerrors "github.com/tochemey/orbit/errors"
	"github.com/tochemey/orbit/log"
)

type delivery struct {
	from address.NodeAddress
	data string
}

func newTestPeer(t *testing.T, seeds ...string) (*Peer, chan delivery, chan *cluster.ViewChange) {
	t.Helper()
	port := dynaport.Get(1)[0]
	peer := New("127.0.0.1", port,
		WithSeeds(seeds...),
		WithJoinRetries(3, 100*time.Millisecond),
		WithLeaveTimeout(time.Second),
		WithLogger(log.DiscardLogger))

	deliveries := make(chan delivery, 16)
	changes := make(chan *cluster.ViewChange, 16)
	peer.RegisterMessageReceiver(func(from address.NodeAddress, data []byte) {
		deliveries <- delivery{from: from, data: string(data)}
	})
	peer.RegisterViewListener(func(change *cluster.ViewChange) {
		changes <- change
	})

	require.NoError(t, peer.Start(t.Context()))
	t.Cleanup(func() { _ = peer.Stop(context.Background()) })
	return peer, deliveries, changes
}

func TestPeer(t *testing.T) {
	t.Run("Nodes see each other and exchange messages", func(t *testing.T) {
		first, firstInbox, _ := newTestPeer(t)
		assert.Equal(t, address.NodeAddress(net.JoinHostPort("127.0.0.1", strconv.Itoa(first.port))), first.LocalAddress())

		second, secondInbox, _ := newTestPeer(t, first.LocalAddress().String())

		require.Eventually(t, func() bool {
			return first.View().Len() == 2 && second.View().Len() == 2
		}, 5*time.Second, 50*time.Millisecond)

		require.NoError(t, first.SendMessage(t.Context(), second.LocalAddress(), []byte("hello")))
		select {
		case got := <-secondInbox:
			assert.Equal(t, first.LocalAddress(), got.from)
			assert.Equal(t, "hello", got.data)
		case <-time.After(5 * time.Second):
			t.Fatal("message not delivered")
		}

		require.NoError(t, second.SendMessage(t.Context(), first.LocalAddress(), []byte("world")))
		got := <-firstInbox
		assert.Equal(t, second.LocalAddress(), got.from)
		assert.Equal(t, "world", got.data)
	})
	t.Run("Observers are reachable but not members", func(t *testing.T) {
		server, _, _ := newTestPeer(t)
		port := dynaport.Get(1)[0]
		client := New("127.0.0.1", port, WithSeeds(server.LocalAddress().String()), WithObserver(), WithLogger(log.DiscardLogger))
		clientInbox := make(chan delivery, 1)
		client.RegisterMessageReceiver(func(from address.NodeAddress, data []byte) {
			clientInbox <- delivery{from: from, data: string(data)}
		})
		require.NoError(t, client.Start(t.Context()))
		t.Cleanup(func() { _ = client.Stop(context.Background()) })

		require.Eventually(t, func() bool { return client.View().Len() == 1 }, 5*time.Second, 50*time.Millisecond)
		assert.True(t, client.View().Contains(server.LocalAddress()))
		assert.Equal(t, 1, server.View().Len())

		require.Eventually(t, func() bool {
			return server.SendMessage(t.Context(), client.LocalAddress(), []byte("reply")) == nil
		}, 5*time.Second, 50*time.Millisecond)
		got := <-clientInbox
		assert.Equal(t, "reply", got.data)
	})
	t.Run("Messages to self are delivered locally", func(t *testing.T) {
		peer, inbox, _ := newTestPeer(t)
		require.NoError(t, peer.SendMessage(t.Context(), peer.LocalAddress(), []byte("loop")))
		got := <-inbox
		assert.Equal(t, peer.LocalAddress(), got.from)
		assert.Equal(t, "loop", got.data)
	})
	t.Run("Leaving node is removed from the view", func(t *testing.T) {
		first, _, changes := newTestPeer(t)
		second, _, _ := newTestPeer(t, first.LocalAddress().String())
		require.Eventually(t, func() bool { return first.View().Len() == 2 }, 5*time.Second, 50*time.Millisecond)

		departed := second.LocalAddress()
		require.NoError(t, second.Stop(t.Context()))

		timeout := time.After(5 * time.Second)
	wait:
		for {
			select {
			case change := <-changes:
				if slices.Contains(change.Left, departed) {
					break wait
				}
			case <-timeout:
				t.Fatal("departure not published")
			}
		}
		assert.Equal(t, 1, first.View().Len())

		err := first.SendMessage(t.Context(), departed, []byte("gone"))
		assert.ErrorIs(t, err, gerrors.ErrPeerUnreachable)
	})
	t.Run("Stopped peer rejects messages", func(t *testing.T) {
		peer, _, _ := newTestPeer(t)
		require.NoError(t, peer.Stop(t.Context()))
		require.NoError(t, peer.Stop(t.Context()))
		assert.ErrorIs(t, peer.SendMessage(t.Context(), "127.0.0.1:1", nil), gerrors.ErrTransportStopped)
	})
	t.Run("Malformed seeds are rejected", func(t *testing.T) {
		peer := New("127.0.0.1", dynaport.Get(1)[0], WithSeeds("not-an-address"), WithLogger(log.DiscardLogger))
		assert.ErrorIs(t, peer.Start(t.Context()), gerrors.ErrInvalidConfig)
	})
	t.Run("Unreachable seeds fail the start", func(t *testing.T) {
		port := dynaport.Get(1)[0]
		peer := New("127.0.0.1", port,
			WithSeeds(net.JoinHostPort("127.0.0.1", strconv.Itoa(dynaport.Get(1)[0]))),
			WithJoinRetries(2, 10*time.Millisecond),
			WithLogger(log.DiscardLogger))
		assert.Error(t, peer.Start(t.Context()))
	})
}

func TestEnvelope(t *testing.T) {
	from, data, err := decode(encode("10.0.0.1:7946", []byte("payload")))
	require.NoError(t, err)
	assert.Equal(t, address.NodeAddress("10.0.0.1:7946"), from)
	assert.Equal(t, "payload", string(data))

	_, _, err = decode([]byte{0, 9, 'a'})
	assert.ErrorIs(t, err, gerrors.ErrInvalidFrame)
}
