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

// Package cluster defines the transport a peer uses to reach other peers and
// learn about cluster membership.
//
// Membership itself is owned by the implementation (memberlist gossip, NATS
// heartbeats or the in-process Hub); the runtime only consumes views.
package cluster

import (
	"context"
	"slices"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/tochemey/orbit/address"
)

// Receiver is called for every message delivered to the local node
type Receiver func(from address.NodeAddress, data []byte)

// ViewListener is called every time the membership view changes
type ViewListener func(change *ViewChange)

// Peer is the cluster transport consumed by the network layer.
type Peer interface {
	// Start joins the cluster
	Start(ctx context.Context) error
	// Stop leaves the cluster
	Stop(ctx context.Context) error
	// LocalAddress returns the address other peers use to reach this node
	LocalAddress() address.NodeAddress
	// SendMessage delivers data to the given node
	SendMessage(ctx context.Context, to address.NodeAddress, data []byte) error
	// RegisterMessageReceiver registers a callback for inbound messages. Call it before Start.
	RegisterMessageReceiver(receiver Receiver)
	// RegisterViewListener registers a callback for view changes. Call it before Start.
	RegisterViewListener(listener ViewListener)
	// View returns the current membership view
	View() View
}

// View is an immutable set of cluster members
type View struct {
	members mapset.Set[address.NodeAddress]
}

// NewView creates a view from the given members
func NewView(members ...address.NodeAddress) View {
	return View{members: mapset.NewThreadUnsafeSet(members...)}
}

// Members returns the members sorted by address
func (v View) Members() []address.NodeAddress {
	if v.members == nil {
		return nil
	}
	members := v.members.ToSlice()
	slices.Sort(members)
	return members
}

// Contains reports whether node is a member
func (v View) Contains(node address.NodeAddress) bool {
	return v.members != nil && v.members.Contains(node)
}

// Len returns the number of members
func (v View) Len() int {
	if v.members == nil {
		return 0
	}
	return v.members.Cardinality()
}

// Equal reports whether both views hold the same members
func (v View) Equal(other View) bool {
	if v.Len() != other.Len() {
		return false
	}
	return v.Len() == 0 || v.members.Equal(other.members)
}

// ViewChange describes the transition between two views
type ViewChange struct {
	Current View
	Joined  []address.NodeAddress
	Left    []address.NodeAddress
}

// Diff computes the change leading from previous to current
func Diff(previous, current View) *ViewChange {
	change := &ViewChange{Current: current}
	for _, member := range current.Members() {
		if !previous.Contains(member) {
			change.Joined = append(change.Joined, member)
		}
	}
	for _, member := range previous.Members() {
		if !current.Contains(member) {
			change.Left = append(change.Left, member)
		}
	}
	return change
}

// Subscribers keeps the receivers and view listeners of a Peer implementation
type Subscribers struct {
	mu        sync.RWMutex
	receivers []Receiver
	listeners []ViewListener
}

// AddReceiver registers a message receiver
func (s *Subscribers) AddReceiver(receiver Receiver) {
	s.mu.Lock()
	s.receivers = append(s.receivers, receiver)
	s.mu.Unlock()
}

// AddViewListener registers a view listener
func (s *Subscribers) AddViewListener(listener ViewListener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, listener)
	s.mu.Unlock()
}

// Deliver hands a message to every receiver
func (s *Subscribers) Deliver(from address.NodeAddress, data []byte) {
	s.mu.RLock()
	receivers := s.receivers
	s.mu.RUnlock()
	for _, receiver := range receivers {
		receiver(from, data)
	}
}

// Publish hands a view change to every listener
func (s *Subscribers) Publish(change *ViewChange) {
	s.mu.RLock()
	listeners := s.listeners
	s.mu.RUnlock()
	for _, listener := range listeners {
		listener(change)
	}
}
