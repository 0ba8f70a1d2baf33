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

// Package placement decides which node hosts an actor.
package placement

import (
	"sync"

	"github.com/tochemey/orbit/address"
	"github.com/tochemey/orbit/cluster"
	gerrors "github.com/tochemey/orbit/errors"
)

// Option configures a Placement
type Option func(*Placement)

// WithHasher sets the hash function used to rank nodes
func WithHasher(hasher Hasher) Option {
	return func(p *Placement) {
		p.hasher = hasher
	}
}

// Placement maps actor references to the server nodes of the current view
// using rendezvous hashing: every node is scored against the reference key and
// the highest score wins. A view change only moves the actors owned by the
// nodes that joined or left.
type Placement struct {
	hasher Hasher

	mu      sync.RWMutex
	local   address.NodeAddress
	members []address.NodeAddress
}

// New creates a Placement for the local node. The view starts empty.
func New(local address.NodeAddress, opts ...Option) *Placement {
	p := &Placement{
		hasher: DefaultHasher(),
		local:  local,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Update replaces the view
func (p *Placement) Update(view cluster.View) {
	members := view.Members()
	p.mu.Lock()
	p.members = members
	p.mu.Unlock()
}

// SetLocal sets the address of the local node, known once the transport has started
func (p *Placement) SetLocal(local address.NodeAddress) {
	p.mu.Lock()
	p.local = local
	p.mu.Unlock()
}

// Local returns the address of the local node
func (p *Placement) Local() address.NodeAddress {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.local
}

// Members returns the nodes eligible to host actors
func (p *Placement) Members() []address.NodeAddress {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]address.NodeAddress(nil), p.members...)
}

// Owner returns the node hosting ref
func (p *Placement) Owner(ref address.Reference) (address.NodeAddress, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.members) == 0 {
		return "", gerrors.ErrNoRoute
	}

	key := []byte(ref.Key() + "@")
	prefix := len(key)

	var (
		owner address.NodeAddress
		best  uint64
	)
	for i, member := range p.members {
		key = append(key[:prefix], member...)
		score := p.hasher.HashCode(key)
		// members are sorted so ties resolve the same way on every node
		if i == 0 || score > best {
			owner, best = member, score
		}
	}
	return owner, nil
}

// IsLocal reports whether ref is hosted by the local node
func (p *Placement) IsLocal(ref address.Reference) bool {
	owner, err := p.Owner(ref)
	return err == nil && owner == p.Local()
}
