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

package cluster

import (
	"context"
	"sync"

	"github.com/tochemey/orbit/address"
	gerrors "github.com/tochemey/orbit/errors"
)

// Hub connects peers living in the same process.
// Every started HubPeer is a member of the hub view, except observers which
// are reachable but never listed.
type Hub struct {
	mu    sync.RWMutex
	nodes map[address.NodeAddress]*HubPeer
	// serializes broadcasts so that peers observe views in order
	broadcastMu sync.Mutex
}

// NewHub creates an empty Hub
func NewHub() *Hub {
	return &Hub{nodes: make(map[address.NodeAddress]*HubPeer)}
}

// Peer creates a transport bound to the given address
func (h *Hub) Peer(node address.NodeAddress) *HubPeer {
	return &HubPeer{
		hub:     h,
		address: node,
		inbox:   make(chan envelope, 1024),
		view:    NewView(),
	}
}

// Observer creates a transport bound to the given address that receives the
// views and can exchange messages without being part of the views itself.
// Client peers use it.
func (h *Hub) Observer(node address.NodeAddress) *HubPeer {
	peer := h.Peer(node)
	peer.observer = true
	return peer
}

// Crash removes the node from the view without stopping it, as if its process died
func (h *Hub) Crash(node address.NodeAddress) {
	h.mu.Lock()
	_, ok := h.nodes[node]
	delete(h.nodes, node)
	h.mu.Unlock()
	if ok {
		h.broadcast()
	}
}

func (h *Hub) join(peer *HubPeer) {
	h.mu.Lock()
	h.nodes[peer.address] = peer
	h.mu.Unlock()
	h.broadcast()
}

func (h *Hub) leave(peer *HubPeer) {
	h.mu.Lock()
	if current, ok := h.nodes[peer.address]; ok && current == peer {
		delete(h.nodes, peer.address)
	}
	h.mu.Unlock()
	h.broadcast()
}

func (h *Hub) lookup(node address.NodeAddress) (*HubPeer, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	peer, ok := h.nodes[node]
	return peer, ok
}

// broadcast pushes the current view to every member
func (h *Hub) broadcast() {
	h.broadcastMu.Lock()
	defer h.broadcastMu.Unlock()

	h.mu.RLock()
	members := make([]address.NodeAddress, 0, len(h.nodes))
	peers := make([]*HubPeer, 0, len(h.nodes))
	for node, peer := range h.nodes {
		if !peer.observer {
			members = append(members, node)
		}
		peers = append(peers, peer)
	}
	h.mu.RUnlock()

	view := NewView(members...)
	for _, peer := range peers {
		peer.updateView(view)
	}
}

type envelope struct {
	from address.NodeAddress
	data []byte
}

// HubPeer is a Peer connected to a Hub.
// Messages are delivered in order by a single goroutine per peer.
type HubPeer struct {
	Subscribers

	hub      *Hub
	address  address.NodeAddress
	inbox    chan envelope
	observer bool

	mu      sync.Mutex
	view    View
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

var _ Peer = (*HubPeer)(nil)

// Start implements Peer
func (p *HubPeer) Start(context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.mu.Unlock()

	p.wg.Add(1)
	go p.dispatch()
	p.hub.join(p)
	return nil
}

// Stop implements Peer
func (p *HubPeer) Stop(context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	close(p.stopCh)
	p.mu.Unlock()

	p.hub.leave(p)
	p.wg.Wait()
	return nil
}

// LocalAddress implements Peer
func (p *HubPeer) LocalAddress() address.NodeAddress {
	return p.address
}

// SendMessage implements Peer
func (p *HubPeer) SendMessage(ctx context.Context, to address.NodeAddress, data []byte) error {
	if !p.isRunning() {
		return gerrors.ErrTransportStopped
	}

	target, ok := p.hub.lookup(to)
	if !ok {
		return gerrors.NewErrPeerUnreachable(to.String())
	}

	// the receiver must not observe later mutations of the caller's buffer
	payload := append([]byte(nil), data...)
	select {
	case target.inbox <- envelope{from: p.address, data: payload}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RegisterMessageReceiver implements Peer
func (p *HubPeer) RegisterMessageReceiver(receiver Receiver) {
	p.AddReceiver(receiver)
}

// RegisterViewListener implements Peer
func (p *HubPeer) RegisterViewListener(listener ViewListener) {
	p.AddViewListener(listener)
}

// View implements Peer
func (p *HubPeer) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view
}

func (p *HubPeer) isRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *HubPeer) updateView(view View) {
	p.mu.Lock()
	previous := p.view
	if previous.Equal(view) {
		p.mu.Unlock()
		return
	}
	p.view = view
	p.mu.Unlock()

	p.Publish(Diff(previous, view))
}

func (p *HubPeer) dispatch() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		case env := <-p.inbox:
			p.Deliver(env.from, env.data)
		}
	}
}
