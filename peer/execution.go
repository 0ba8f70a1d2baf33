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
	"github.com/tochemey/orbit/directory"
	gerrors "github.com/tochemey/orbit/errors"
	"github.com/tochemey/orbit/future"
	"github.com/tochemey/orbit/message"
	"github.com/tochemey/orbit/messaging"
	"github.com/tochemey/orbit/pipeline"
)

// executionHandler sits on the application side of the pipeline and decides
// where every invocation runs.
type executionHandler struct {
	pipeline.Adapter
	peer *Peer
}

var _ pipeline.Handler = (*executionHandler)(nil)

// Name implements pipeline.Handler
func (h *executionHandler) Name() string {
	return pipeline.ExecutionHandler
}

// Active records the local address, known once the transport has started, and the first view
func (h *executionHandler) Active(context.Context) {
	p := h.peer
	p.placement.SetLocal(p.transport.LocalAddress())
	if p.role == ServerRole {
		p.placement.Update(p.transport.View())
	}
}

// Write routes an invocation made by the application
func (h *executionHandler) Write(ctx context.Context, hc *pipeline.HandlerContext, msg any) error {
	inv, ok := msg.(*message.Invocation)
	if !ok {
		return hc.Write(ctx, msg)
	}

	if err := inv.To.Validate(); err != nil {
		return gerrors.NewProtocolError(err)
	}

	if h.peer.role == ClientRole {
		inv.TargetNode = h.peer.server
		return hc.Write(ctx, inv)
	}

	owner, local, err := h.route(inv.To)
	if err != nil {
		return err
	}
	if local {
		h.invokeLocal(ctx, inv)
		return nil
	}

	inv.TargetNode = owner
	return hc.Write(ctx, inv)
}

// Read serves invocations received from other peers and tracks the view
func (h *executionHandler) Read(ctx context.Context, hc *pipeline.HandlerContext, msg any) {
	switch value := msg.(type) {
	case *message.Invocation:
		h.serve(ctx, hc, value)
	case *cluster.ViewChange:
		h.viewChanged(value)
	default:
		h.peer.logger.Debugf("dropping inbound %T: nothing handles it", msg)
	}
}

// ExceptionCaught is the last stop of inbound errors
func (h *executionHandler) ExceptionCaught(_ context.Context, _ *pipeline.HandlerContext, err error) {
	h.peer.logger.Warnf("inbound traffic failed: %v", err)
}

func (h *executionHandler) serve(ctx context.Context, hc *pipeline.HandlerContext, inv *message.Invocation) {
	p := h.peer
	if p.role == ClientRole {
		h.reject(inv, gerrors.NewProtocolError(fmt.Errorf("%w: client %s hosts no actors", gerrors.ErrNoRoute, p.placement.Local())))
		return
	}

	if err := inv.To.Validate(); err != nil {
		h.reject(inv, gerrors.NewProtocolError(err))
		return
	}

	owner, local, err := h.route(inv.To)
	if err != nil {
		h.reject(inv, err)
		return
	}
	if local {
		h.invokeLocal(ctx, inv)
		return
	}

	hops := forwardHops(inv.Headers)
	if hops >= maxForwardHops {
		h.reject(inv, gerrors.NewProtocolError(fmt.Errorf("%w: %s was relayed %d times", gerrors.ErrNoRoute, inv.To, hops)))
		return
	}

	// the forward gets whatever the original caller had left
	timeout := messaging.RequestTimeout(inv.Headers)
	if timeout <= 0 {
		timeout = p.requestTimeout
	}

	p.logger.Debugf("forwarding invocation of %s to %s", inv.To, owner)
	forward := &message.Invocation{
		From:       inv.From,
		To:         inv.To,
		MethodID:   inv.MethodID,
		OneWay:     inv.OneWay,
		Params:     inv.Params,
		Headers:    withForwardHops(inv.Headers, hops+1),
		Timeout:    timeout,
		TargetNode: owner,
	}
	if !inv.OneWay {
		forward.Completion = future.NewPromise[any]()
		future.Pipe(forward.Completion.Future(), inv.Completion)
	}

	if err := hc.Write(ctx, forward); err != nil {
		h.reject(inv, err)
	}
}

// route returns the node hosting ref and whether it is the local one.
// An actor already running here stays here until it is deactivated.
func (h *executionHandler) route(ref address.Reference) (address.NodeAddress, bool, error) {
	p := h.peer
	if _, err := p.registry.Interface(ref.InterfaceID()); err != nil {
		return "", false, gerrors.NewProtocolError(err)
	}

	local := p.placement.Local()
	if entry, ok := p.directory.Get(ref); ok {
		if state := entry.State(); state == directory.Activating || state == directory.Active {
			return local, true, nil
		}
	}

	owner, err := p.placement.Owner(ref)
	if err != nil {
		return "", false, gerrors.NewProtocolError(fmt.Errorf("%w: %s", err, ref))
	}
	return owner, owner == local, nil
}

func (h *executionHandler) invokeLocal(ctx context.Context, inv *message.Invocation) {
	result := h.peer.directory.Invoke(ctx, inv)
	if inv.Completion != nil {
		future.Pipe(result, inv.Completion)
		return
	}

	result.OnComplete(func(_ any, err error) {
		if err != nil {
			h.peer.logger.Warnf("one-way invocation of method %d on %s failed: %v", inv.MethodID, inv.To, err)
		}
	})
}

func (h *executionHandler) reject(inv *message.Invocation, err error) {
	if inv.OneWay {
		h.peer.logger.Warnf("dropping one-way invocation of method %d on %s: %v", inv.MethodID, inv.To, err)
		return
	}
	inv.Complete(nil, err)
}

// viewChanged moves placement to the new view and lets go of the local actors
// now owned by another node. They are activated there on their next call.
func (h *executionHandler) viewChanged(change *cluster.ViewChange) {
	p := h.peer
	for _, node := range change.Joined {
		p.logger.Infof("node %s joined the cluster", node)
	}
	for _, node := range change.Left {
		p.logger.Infof("node %s left the cluster", node)
	}

	if p.role != ServerRole {
		return
	}

	p.placement.Update(change.Current)

	local := p.placement.Local()
	if !change.Current.Contains(local) {
		return
	}

	for _, ref := range p.directory.References() {
		if owner, err := p.placement.Owner(ref); err == nil && owner != local {
			p.logger.Debugf("actor %s now belongs to %s", ref, owner)
			p.directory.DeactivateReference(ref)
		}
	}
}
