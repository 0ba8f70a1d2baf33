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

// Package nats implements cluster.Peer on top of a NATS server.
//
// Every node subscribes to its own subject and announces itself on a shared
// heartbeat subject. A node missing its heartbeats for longer than the expiry
// is removed from the view; a stopping node announces its departure.
package nats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flowchartsman/retry"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/tochemey/orbit/address"
	"github.com/tochemey/orbit/cluster"
	gerrors "github.com/tochemey/orbit/errors"
	"github.com/tochemey/orbit/log"
)

const (
	headerFrom  = "Orbit-From"
	headerNode  = "Orbit-Node"
	headerEvent = "Orbit-Event"

	eventAlive   = "alive"
	eventObserve = "observe"
	eventLeave   = "leave"
)

// Peer is a cluster.Peer backed by NATS
type Peer struct {
	cluster.Subscribers

	config *Config
	logger log.Logger
	name   address.NodeAddress

	mu            sync.RWMutex
	connection    *nats.Conn
	subscriptions []*nats.Subscription
	lastSeen      map[address.NodeAddress]time.Time
	observers     map[address.NodeAddress]time.Time
	view          cluster.View

	stopCh  chan struct{}
	wg      sync.WaitGroup
	started *atomic.Bool
}

var _ cluster.Peer = (*Peer)(nil)

// New creates a Peer
func New(config *Config, opts ...Option) *Peer {
	peer := &Peer{
		config:  config,
		logger:  log.DefaultLogger,
		started: atomic.NewBool(false),
	}

	for _, opt := range opts {
		opt.Apply(peer)
	}
	return peer
}

// Start implements cluster.Peer
func (p *Peer) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started.Load() {
		p.mu.Unlock()
		return nil
	}

	err := p.start(ctx)
	view := p.view
	p.mu.Unlock()

	if err != nil {
		return err
	}
	p.Publish(cluster.Diff(cluster.NewView(), view))
	return nil
}

// start connects and subscribes. The caller holds the lock.
func (p *Peer) start(ctx context.Context) error {
	if err := p.config.Validate(); err != nil {
		return fmt.Errorf("%w: %w", gerrors.ErrInvalidConfig, err)
	}
	p.config.sanitize()

	if p.config.NodeName == "" {
		p.config.NodeName = uuid.NewString()
	}
	p.name = address.NodeAddress(p.config.NodeName)

	opts := nats.GetDefaultOptions()
	opts.Url = p.config.Server
	opts.Name = p.config.NodeName
	opts.ReconnectWait = 2 * time.Second
	opts.MaxReconnect = -1

	var connection *nats.Conn
	retrier := retry.NewRetrier(DefaultConnectAttempts, 100*time.Millisecond, opts.ReconnectWait)
	if err := retrier.RunContext(ctx, func(context.Context) error {
		var err error
		connection, err = opts.Connect()
		return err
	}); err != nil {
		return fmt.Errorf("failed to connect to nats server %s: %w", p.config.Server, err)
	}

	messages, err := connection.Subscribe(p.nodeSubject(p.name), p.onMessage)
	if err != nil {
		connection.Close()
		return err
	}

	heartbeats, err := connection.Subscribe(p.heartbeatSubject(), p.onHeartbeat)
	if err != nil {
		connection.Close()
		return err
	}

	p.connection = connection
	p.subscriptions = []*nats.Subscription{messages, heartbeats}
	p.lastSeen = make(map[address.NodeAddress]time.Time)
	p.observers = make(map[address.NodeAddress]time.Time)
	p.view = cluster.NewView(p.members()...)
	p.stopCh = make(chan struct{})

	if err := p.announce(p.presence()); err != nil {
		connection.Close()
		return err
	}

	p.wg.Add(1)
	go p.heartbeat()

	p.started.Store(true)
	p.logger.Infof("nats peer %s started", p.name)
	return nil
}

// Stop implements cluster.Peer
func (p *Peer) Stop(context.Context) error {
	if !p.started.CompareAndSwap(true, false) {
		return nil
	}

	close(p.stopCh)
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.announce(eventLeave)
	for _, subscription := range p.subscriptions {
		if subscription.IsValid() {
			err = multierr.Append(err, subscription.Unsubscribe())
		}
	}
	err = multierr.Append(err, p.connection.Flush())
	p.connection.Close()
	p.subscriptions = nil

	if err != nil {
		p.logger.Errorf("nats peer %s failed to stop cleanly: %v", p.name, err)
		return err
	}
	p.logger.Infof("nats peer %s stopped", p.name)
	return nil
}

// LocalAddress implements cluster.Peer. It is known once the peer has started.
func (p *Peer) LocalAddress() address.NodeAddress {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.name
}

// SendMessage implements cluster.Peer
func (p *Peer) SendMessage(ctx context.Context, to address.NodeAddress, data []byte) error {
	if !p.started.Load() {
		return gerrors.ErrTransportStopped
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.RLock()
	connection := p.connection
	_, observer := p.observers[to]
	known := p.view.Contains(to) || observer || to == p.name
	p.mu.RUnlock()

	if !known {
		return gerrors.NewErrPeerUnreachable(to.String())
	}

	header := nats.Header{}
	header.Set(headerFrom, p.name.String())
	return connection.PublishMsg(&nats.Msg{Subject: p.nodeSubject(to), Data: data, Header: header})
}

// RegisterMessageReceiver implements cluster.Peer
func (p *Peer) RegisterMessageReceiver(receiver cluster.Receiver) {
	p.AddReceiver(receiver)
}

// RegisterViewListener implements cluster.Peer
func (p *Peer) RegisterViewListener(listener cluster.ViewListener) {
	p.AddViewListener(listener)
}

// View implements cluster.Peer
func (p *Peer) View() cluster.View {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.view
}

func (p *Peer) nodeSubject(node address.NodeAddress) string {
	return fmt.Sprintf("%s.node.%s", p.config.Subject, node)
}

func (p *Peer) heartbeatSubject() string {
	return p.config.Subject + ".heartbeat"
}

// announce publishes the presence of this node. The caller holds the lock.
func (p *Peer) announce(event string) error {
	header := nats.Header{}
	header.Set(headerNode, p.name.String())
	header.Set(headerEvent, event)
	return p.connection.PublishMsg(&nats.Msg{Subject: p.heartbeatSubject(), Header: header})
}

func (p *Peer) heartbeat() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case now := <-ticker.C:
			p.mu.RLock()
			err := p.announce(p.presence())
			p.mu.RUnlock()
			if err != nil {
				p.logger.Warnf("nats peer %s failed to send heartbeat: %v", p.name, err)
			}
			p.expire(now)
		}
	}
}

// expire removes the nodes whose last heartbeat is older than the expiry
func (p *Peer) expire(now time.Time) {
	p.mu.Lock()
	changed := false
	for node, seen := range p.lastSeen {
		if now.Sub(seen) > p.config.Expiry {
			delete(p.lastSeen, node)
			changed = true
		}
	}
	for node, seen := range p.observers {
		if now.Sub(seen) > p.config.Expiry {
			delete(p.observers, node)
		}
	}
	p.updateView(changed)
}

func (p *Peer) onMessage(msg *nats.Msg) {
	from := address.NodeAddress(msg.Header.Get(headerFrom))
	if from == "" {
		p.logger.Warnf("nats peer %s dropped a message without sender", p.name)
		return
	}
	p.Deliver(from, msg.Data)
}

func (p *Peer) onHeartbeat(msg *nats.Msg) {
	node := address.NodeAddress(msg.Header.Get(headerNode))
	if node == "" || node == p.name {
		return
	}

	p.mu.Lock()
	_, known := p.lastSeen[node]
	_, observed := p.observers[node]
	switch msg.Header.Get(headerEvent) {
	case eventLeave:
		delete(p.lastSeen, node)
		delete(p.observers, node)
		p.updateView(known)
	case eventObserve:
		p.observers[node] = time.Now()
		if !observed {
			p.greet(node)
		}
		p.updateView(false)
	default:
		p.lastSeen[node] = time.Now()
		if !known {
			p.greet(node)
		}
		p.updateView(!known)
	}
}

// greet answers a newcomer so that it learns about this node without waiting
// a full interval. The caller holds the lock.
func (p *Peer) greet(node address.NodeAddress) {
	if err := p.announce(p.presence()); err != nil {
		p.logger.Warnf("nats peer %s failed to greet %s: %v", p.name, node, err)
	}
}

// presence returns the heartbeat event of this node
func (p *Peer) presence() string {
	if p.config.Observer {
		return eventObserve
	}
	return eventAlive
}

// members returns the view members. The caller holds the lock.
func (p *Peer) members() []address.NodeAddress {
	members := make([]address.NodeAddress, 0, len(p.lastSeen)+1)
	if !p.config.Observer {
		members = append(members, p.name)
	}
	for node := range p.lastSeen {
		members = append(members, node)
	}
	return members
}

// updateView rebuilds the view when changed and releases the lock taken by the caller
func (p *Peer) updateView(changed bool) {
	if !changed {
		p.mu.Unlock()
		return
	}

	previous := p.view
	p.view = cluster.NewView(p.members()...)
	current := p.view
	p.mu.Unlock()

	p.logger.Debugf("nats peer %s view changed: %v", p.name, current.Members())
	p.Publish(cluster.Diff(previous, current))
}
