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

package peer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/atomic"
	"go.uber.org/goleak"

	"github.com/tochemey/orbit/actor"
	"github.com/tochemey/orbit/address"
	"github.com/tochemey/orbit/cluster"
	"github.com/tochemey/orbit/compression"
	gerrors "github.com/tochemey/orbit/errors"
	"github.com/tochemey/orbit/log"
	"github.com/tochemey/orbit/message"
	"github.com/tochemey/orbit/pipeline"
	"github.com/tochemey/orbit/storage"
	"github.com/tochemey/orbit/telemetry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const counterInterface int32 = 1

const (
	methodAdd int32 = iota + 1
	methodNode
	methodFail
	methodBlock
	methodRelay
)

type counter struct {
	node  address.NodeAddress
	gate  <-chan struct{}
	total int
}

func newRegistry(t *testing.T, node address.NodeAddress, gate <-chan struct{}) *actor.Registry {
	t.Helper()
	iface := actor.NewInterface(counterInterface, "Counter", func() actor.Actor {
		return &counter{node: node, gate: gate}
	}).
		Method(methodAdd, "Add", actor.Func1(func(_ context.Context, _ *actor.Context, c *counter, delta int) (int, error) {
			c.total += delta
			return c.total, nil
		})).
		Method(methodNode, "Node", actor.Func0(func(_ context.Context, _ *actor.Context, c *counter) (string, error) {
			return c.node.String(), nil
		})).
		Method(methodFail, "Fail", actor.Func0(func(context.Context, *actor.Context, *counter) (int, error) {
			return 0, errors.New("insufficient funds")
		})).
		Method(methodBlock, "Block", actor.Func0(func(ctx context.Context, _ *actor.Context, c *counter) (bool, error) {
			select {
			case <-c.gate:
				return true, nil
			case <-ctx.Done():
				return false, ctx.Err()
			}
		})).
		Method(methodRelay, "Relay", actor.Func2(func(ctx context.Context, actx *actor.Context, _ *counter, target string, delta int) (int, error) {
			result, err := actx.Invoke(ctx, address.NewReference(counterInterface, target), methodAdd, delta).Await(ctx)
			if err != nil {
				return 0, err
			}
			return result.(int), nil
		}))

	registry := actor.NewRegistry()
	require.NoError(t, registry.Register(iface))
	return registry
}

// testCluster starts peers on an in-process hub
type testCluster struct {
	hub  *cluster.Hub
	gate chan struct{}
	once sync.Once
}

func newTestCluster() *testCluster {
	return &testCluster{hub: cluster.NewHub(), gate: make(chan struct{})}
}

// release unblocks every blocked turn so that peers can stop
func (c *testCluster) release() {
	c.once.Do(func() { close(c.gate) })
}

func (c *testCluster) server(t *testing.T, node address.NodeAddress, opts ...Option) *Peer {
	t.Helper()
	opts = append([]Option{
		WithRegistry(newRegistry(t, node, c.gate)),
		WithLogger(log.DiscardLogger),
		WithRequestTimeout(time.Second),
	}, opts...)
	return c.start(t, c.hub.Peer(node), opts...)
}

func (c *testCluster) client(t *testing.T, node, server address.NodeAddress) *Peer {
	t.Helper()
	return c.start(t, c.hub.Observer(node),
		WithRole(ClientRole),
		WithServer(server),
		WithLogger(log.DiscardLogger),
		WithRequestTimeout(time.Second))
}

func (c *testCluster) start(t *testing.T, transport cluster.Peer, opts ...Option) *Peer {
	t.Helper()
	peer, err := New(transport, opts...)
	require.NoError(t, err)
	require.NoError(t, peer.Start(t.Context()))
	t.Cleanup(func() {
		c.release()
		assert.NoError(t, peer.Stop(context.Background()))
	})
	return peer
}

// ownedBy returns a reference placed on node according to p
func ownedBy(t *testing.T, p *Peer, node address.NodeAddress) address.Reference {
	t.Helper()
	for i := range 1000 {
		ref := address.NewReference(counterInterface, fmt.Sprintf("counter-%d", i))
		if owner, err := p.placement.Owner(ref); err == nil && owner == node {
			return ref
		}
	}
	require.FailNow(t, "no reference is owned by "+node.String())
	return address.Reference{}
}

func TestPeer(t *testing.T) {
	t.Run("Single server hosts its actors", func(t *testing.T) {
		server := newTestCluster().server(t, "server-1")
		ref := address.NewReference(counterInterface, "alice")

		total, err := Call[int](t.Context(), server, ref, methodAdd, 2)
		require.NoError(t, err)
		assert.Equal(t, 2, total)

		total, err = Call[int](t.Context(), server, ref, methodAdd, 3)
		require.NoError(t, err)
		assert.Equal(t, 5, total)
		assert.Equal(t, 1, server.Directory().Len())
	})
	t.Run("Back-to-back calls observe each other", func(t *testing.T) {
		server := newTestCluster().server(t, "server-1")
		ref := address.NewReference(counterInterface, "bob")

		deposit := server.Invoke(t.Context(), ref, methodAdd, false, 1000)
		balance := server.Invoke(t.Context(), ref, methodAdd, false, 0)

		result, err := balance.Await(t.Context())
		require.NoError(t, err)
		assert.Equal(t, 1000, result)
		assert.True(t, deposit.IsDone())
	})
	t.Run("Actors are spread over the servers and reachable from any of them", func(t *testing.T) {
		tc := newTestCluster()
		peers := []*Peer{tc.server(t, "server-1"), tc.server(t, "server-2"), tc.server(t, "server-3")}
		for _, p := range peers {
			require.Equal(t, 3, p.transport.View().Len())
		}

		hosts := make(map[string]int)
		for i := range 30 {
			ref := address.NewReference(counterInterface, fmt.Sprintf("counter-%d", i))
			owner, err := peers[0].placement.Owner(ref)
			require.NoError(t, err)

			for _, p := range peers {
				node, err := Call[string](t.Context(), p, ref, methodNode)
				require.NoError(t, err)
				assert.Equal(t, owner.String(), node)
			}
			hosts[owner.String()]++
		}

		assert.Greater(t, len(hosts), 1)
		activations := 0
		for _, p := range peers {
			activations += p.Directory().Len()
		}
		assert.Equal(t, 30, activations)
	})
	t.Run("Remote application errors keep their message", func(t *testing.T) {
		tc := newTestCluster()
		local := tc.server(t, "server-1")
		tc.server(t, "server-2")

		_, err := Call[int](t.Context(), local, ownedBy(t, local, "server-2"), methodFail)
		remote, ok := gerrors.IsRemote(err)
		require.True(t, ok)
		assert.Equal(t, "insufficient funds", remote.Message)
	})
	t.Run("Unknown interfaces are protocol errors", func(t *testing.T) {
		server := newTestCluster().server(t, "server-1")

		_, err := Call[int](t.Context(), server, address.NewReference(99, "ghost"), methodAdd, 1)
		assert.True(t, gerrors.IsProtocol(err))
		assert.ErrorIs(t, err, gerrors.ErrInterfaceNotRegistered)

		_, err = Call[int](t.Context(), server, address.Reference{}, methodAdd, 1)
		assert.ErrorIs(t, err, gerrors.ErrInvalidReference)
	})
	t.Run("Actors call actors hosted elsewhere", func(t *testing.T) {
		tc := newTestCluster()
		first := tc.server(t, "server-1")
		tc.server(t, "server-2")

		relay := ownedBy(t, first, "server-1")
		target := ownedBy(t, first, "server-2")

		total, err := Call[int](t.Context(), first, relay, methodRelay, target.Identity(), 5)
		require.NoError(t, err)
		assert.Equal(t, 5, total)

		total, err = Call[int](t.Context(), first, target, methodAdd, 0)
		require.NoError(t, err)
		assert.Equal(t, 5, total)
	})
	t.Run("One-way invocations are delivered", func(t *testing.T) {
		tc := newTestCluster()
		first := tc.server(t, "server-1")
		tc.server(t, "server-2")

		ref := ownedBy(t, first, "server-2")
		require.NoError(t, first.Tell(t.Context(), ref, methodAdd, 4))

		assert.Eventually(t, func() bool {
			total, err := Call[int](t.Context(), first, ref, methodAdd, 0)
			return err == nil && total == 4
		}, time.Second, 10*time.Millisecond)
	})
	t.Run("Clients go through their server", func(t *testing.T) {
		tc := newTestCluster()
		first := tc.server(t, "server-1")
		second := tc.server(t, "server-2")
		client := tc.client(t, "client-1", "server-1")

		assert.Equal(t, ClientRole, client.Role())
		assert.Nil(t, client.Directory())
		assert.False(t, first.transport.View().Contains("client-1"))

		ref := ownedBy(t, first, "server-2")
		node, err := Call[string](t.Context(), client, ref, methodNode)
		require.NoError(t, err)
		assert.Equal(t, "server-2", node)
		assert.Zero(t, first.Directory().Len())
		assert.Equal(t, 1, second.Directory().Len())

		_, err = Call[int](t.Context(), client, ref, methodFail)
		_, ok := gerrors.IsRemote(err)
		assert.True(t, ok)
	})
	t.Run("Requests time out", func(t *testing.T) {
		tc := newTestCluster()
		first := tc.server(t, "server-1")
		tc.server(t, "server-2")

		ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
		defer cancel()

		result := first.Invoke(ctx, ownedBy(t, first, "server-2"), methodBlock, false)
		_, err := result.Await(t.Context())
		assert.ErrorIs(t, err, gerrors.ErrRequestTimeout)
	})
	t.Run("Locally hosted requests time out", func(t *testing.T) {
		server := newTestCluster().server(t, "server-1", WithRequestTimeout(100*time.Millisecond))

		ctx, cancel := context.WithTimeout(t.Context(), time.Second)
		defer cancel()

		result := server.Invoke(context.Background(), address.NewReference(counterInterface, "stuck"), methodBlock, false)
		_, err := result.Await(ctx)
		assert.ErrorIs(t, err, gerrors.ErrRequestTimeout)
	})
	t.Run("Forwarded requests keep the caller's budget", func(t *testing.T) {
		tc := newTestCluster()
		first := tc.server(t, "server-1")
		tc.server(t, "server-2")
		client := tc.client(t, "client-1", "server-1")

		ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
		defer cancel()

		_, err := client.Invoke(ctx, ownedBy(t, first, "server-2"), methodBlock, false).Await(t.Context())
		require.ErrorIs(t, err, gerrors.ErrRequestTimeout)

		// server-1 gives up on the relayed call with the client, well before its own one second
		assert.Eventually(t, func() bool { return first.correlator.Len() == 0 }, 500*time.Millisecond, 10*time.Millisecond)
	})
	t.Run("Losing a node fails its pending requests and moves its actors", func(t *testing.T) {
		tc := newTestCluster()
		first := tc.server(t, "server-1")
		tc.server(t, "server-2")

		ref := ownedBy(t, first, "server-2")
		blocked := first.Invoke(t.Context(), ref, methodBlock, false)

		tc.hub.Crash("server-2")
		_, err := blocked.Await(t.Context())
		assert.ErrorIs(t, err, gerrors.ErrPeerUnreachable)

		node, err := Call[string](t.Context(), first, ref, methodNode)
		require.NoError(t, err)
		assert.Equal(t, "server-1", node)
	})
	t.Run("A joining node takes over its actors", func(t *testing.T) {
		tc := newTestCluster()
		first := tc.server(t, "server-1")

		refs := make([]address.Reference, 0, 20)
		for i := range 20 {
			ref := address.NewReference(counterInterface, fmt.Sprintf("counter-%d", i))
			_, err := Call[int](t.Context(), first, ref, methodAdd, 1)
			require.NoError(t, err)
			refs = append(refs, ref)
		}
		require.Equal(t, 20, first.Directory().Len())

		tc.server(t, "server-2")
		moved := 0
		for _, ref := range refs {
			if owner, _ := first.placement.Owner(ref); owner == "server-2" {
				moved++
			}
		}
		require.Positive(t, moved)

		assert.Eventually(t, func() bool {
			return first.Directory().Len() == 20-moved
		}, time.Second, 10*time.Millisecond)
	})
}

func TestPeerLifecycle(t *testing.T) {
	hub := cluster.NewHub()
	peer, err := New(hub.Peer("server-1"),
		WithRegistry(newRegistry(t, "server-1", nil)),
		WithLogger(log.DiscardLogger),
		WithStorage(storage.NewMemory()))
	require.NoError(t, err)

	ref := address.NewReference(counterInterface, "alice")
	_, err = peer.Invoke(t.Context(), ref, methodAdd, false, 1).Result()
	assert.ErrorIs(t, err, gerrors.ErrPeerNotStarted)
	assert.ErrorIs(t, peer.Stop(t.Context()), gerrors.ErrPeerNotStarted)

	require.NoError(t, peer.Start(t.Context()))
	assert.True(t, peer.IsStarted())
	assert.Equal(t, address.NodeAddress("server-1"), peer.Address())
	assert.ErrorIs(t, peer.Start(t.Context()), gerrors.ErrPeerAlreadyStarted)

	_, err = Call[int](t.Context(), peer, ref, methodAdd, 1)
	require.NoError(t, err)
	_, err = Call[string](t.Context(), peer, ref, methodAdd, 1)
	assert.ErrorIs(t, err, gerrors.ErrUnexpectedResult)

	directory := peer.Directory()
	require.NoError(t, peer.Stop(t.Context()))
	assert.False(t, peer.IsStarted())
	assert.Zero(t, directory.Len())
	assert.ErrorIs(t, peer.Start(t.Context()), gerrors.ErrPeerStopped)

	_, err = Call[int](t.Context(), peer, ref, methodAdd, 1)
	assert.ErrorIs(t, err, gerrors.ErrPeerNotStarted)
}

// packetCounter counts the packets leaving a peer
type packetCounter struct {
	pipeline.Adapter
	packets atomic.Int64
}

func (c *packetCounter) Name() string { return "packet-counter" }

func (c *packetCounter) Write(ctx context.Context, hc *pipeline.HandlerContext, msg any) error {
	if _, ok := msg.(*message.Packet); ok {
		c.packets.Inc()
	}
	return hc.Write(ctx, msg)
}

func TestPeerPipeline(t *testing.T) {
	t.Run("Default pipeline", func(t *testing.T) {
		server := newTestCluster().server(t, "server-1")
		assert.Equal(t, []string{
			pipeline.ExecutionHandler,
			pipeline.MessagingHandler,
			pipeline.SerializationHandler,
			pipeline.NetworkHandler,
		}, server.Pipeline().Names())
	})
	t.Run("Compression, telemetry and custom handlers", func(t *testing.T) {
		tc := newTestCluster()
		counter := new(packetCounter)
		opts := []Option{
			WithCompression(compression.Brotli),
			WithMeterProvider(noop.NewMeterProvider()),
		}
		first := tc.server(t, "server-1", append(opts, WithPipelineHandler(pipeline.Before(pipeline.NetworkHandler), counter))...)
		tc.server(t, "server-2", opts...)

		assert.Equal(t, []string{
			pipeline.ExecutionHandler,
			pipeline.MessagingHandler,
			telemetry.MessagesHandler,
			pipeline.SerializationHandler,
			compression.HandlerName,
			telemetry.PacketsHandler,
			"packet-counter",
			pipeline.NetworkHandler,
		}, first.Pipeline().Names())

		node, err := Call[string](t.Context(), first, ownedBy(t, first, "server-2"), methodNode)
		require.NoError(t, err)
		assert.Equal(t, "server-2", node)
		assert.EqualValues(t, 1, counter.packets.Load())
	})
	t.Run("Invalid custom handler position", func(t *testing.T) {
		hub := cluster.NewHub()
		peer, err := New(hub.Peer("server-1"),
			WithRegistry(newRegistry(t, "server-1", nil)),
			WithLogger(log.DiscardLogger),
			WithPipelineHandler(pipeline.After("missing"), new(packetCounter)))
		require.NoError(t, err)

		err = peer.Start(t.Context())
		assert.ErrorIs(t, err, gerrors.ErrHandlerNotFound)
		assert.False(t, peer.IsStarted())
	})
}

type namedExtension string

func (e namedExtension) ID() string { return string(e) }

func TestNew(t *testing.T) {
	hub := cluster.NewHub()
	registry := newRegistry(t, "server-1", nil)

	testCases := []struct {
		name      string
		transport cluster.Peer
		opts      []Option
	}{
		{name: "missing transport", opts: []Option{WithRegistry(registry)}},
		{name: "server without registry", transport: hub.Peer("server-1")},
		{name: "client without server", transport: hub.Observer("client-1"), opts: []Option{WithRole(ClientRole)}},
		{name: "unknown role", transport: hub.Peer("server-1"), opts: []Option{WithRegistry(registry), WithRole(Role(7))}},
		{name: "negative request timeout", transport: hub.Peer("server-1"), opts: []Option{WithRegistry(registry), WithRequestTimeout(-time.Second)}},
		{name: "no activation attempt", transport: hub.Peer("server-1"), opts: []Option{WithRegistry(registry), WithActivationRetries(0)}},
		{name: "unknown codec", transport: hub.Peer("server-1"), opts: []Option{WithRegistry(registry), WithCompression(compression.Codec(9))}},
		{name: "invalid extension", transport: hub.Peer("server-1"), opts: []Option{WithRegistry(registry), WithExtensions(namedExtension("-bad"))}},
		{name: "duplicate extension", transport: hub.Peer("server-1"), opts: []Option{WithRegistry(registry), WithExtensions(namedExtension("audit"), namedExtension("audit"))}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.transport, tc.opts...)
			assert.ErrorIs(t, err, gerrors.ErrInvalidConfig)
		})
	}

	t.Run("valid configurations", func(t *testing.T) {
		server, err := New(hub.Peer("server-1"), WithRegistry(registry), WithIdleTimeout(0))
		require.NoError(t, err)
		assert.Equal(t, ServerRole, server.Role())

		client, err := New(hub.Observer("client-1"), WithRole(ClientRole), WithServer("server-1"))
		require.NoError(t, err)
		assert.Equal(t, "client", client.Role().String())
	})
}
