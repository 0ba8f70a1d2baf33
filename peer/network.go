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
	"fmt"

	"github.com/tochemey/orbit/address"
	"github.com/tochemey/orbit/cluster"
	gerrors "github.com/tochemey/orbit/errors"
	"github.com/tochemey/orbit/message"
	"github.com/tochemey/orbit/pipeline"
)

// networkHandler sits on the network side of the pipeline and is the only
// component talking to the cluster transport.
type networkHandler struct {
	pipeline.Adapter
	peer *Peer
}

var _ pipeline.Handler = (*networkHandler)(nil)

// Name implements pipeline.Handler
func (h *networkHandler) Name() string {
	return pipeline.NetworkHandler
}

// Connect subscribes to the transport and starts it
func (h *networkHandler) Connect(ctx context.Context) error {
	transport := h.peer.transport
	transport.RegisterMessageReceiver(h.receive)
	transport.RegisterViewListener(h.viewChanged)
	return transport.Start(ctx)
}

// Disconnect stops the transport
func (h *networkHandler) Disconnect(ctx context.Context) error {
	return h.peer.transport.Stop(ctx)
}

// Write sends a packet to its node. Packets addressed to the local node are
// read back on the worker pool without touching the transport.
func (h *networkHandler) Write(ctx context.Context, _ *pipeline.HandlerContext, msg any) error {
	packet, ok := msg.(*message.Packet)
	if !ok {
		return fmt.Errorf("%w: %T cannot be sent", gerrors.ErrUnhandledMessage, msg)
	}

	transport := h.peer.transport
	if local := transport.LocalAddress(); packet.Node == local {
		loopback := &message.Packet{Node: local, Data: packet.Data}
		ctx := context.WithoutCancel(ctx)
		return h.peer.pool.Submit(func() {
			h.peer.pipeline.FireRead(ctx, loopback)
		})
	}
	return transport.SendMessage(ctx, packet.Node, packet.Data)
}

func (h *networkHandler) receive(from address.NodeAddress, data []byte) {
	h.peer.pipeline.FireRead(context.Background(), &message.Packet{Node: from, Data: data})
}

func (h *networkHandler) viewChanged(change *cluster.ViewChange) {
	h.peer.pipeline.FireRead(context.Background(), change)
}
