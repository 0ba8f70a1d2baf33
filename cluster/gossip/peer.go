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

// Package gossip implements cluster.Peer on top of hashicorp/memberlist.
//
// Membership is learned through the SWIM gossip of memberlist and messages are
// sent with its reliable (TCP) channel. Inbound messages are buffered in a ring
// buffer and delivered in arrival order by a single goroutine.
package gossip

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/Workiva/go-datastructures/queue"
	"github.com/flowchartsman/retry"
	"github.com/hashicorp/memberlist"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/tochemey/orbit/address"
	"github.com/tochemey/orbit/cluster"
	gerrors "github.com/tochemey/orbit/errors"
	"github.com/tochemey/orbit/internal/validation"
	"github.com/tochemey/orbit/log"
)

const (
	// DefaultInboxSize is the capacity of the inbound buffer
	DefaultInboxSize = 4096
	// DefaultJoinAttempts is the number of attempts made to join the seeds
	DefaultJoinAttempts = 5
	// DefaultJoinRetryInterval is the delay between join attempts
	DefaultJoinRetryInterval = 500 * time.Millisecond
	// DefaultLeaveTimeout bounds the propagation of the leave message on Stop
	DefaultLeaveTimeout = 5 * time.Second

	// observerMeta marks the nodes left out of the views
	observerMeta = "observer"
)

// envelope is an inbound message waiting for delivery
type envelope struct {
	from address.NodeAddress
	data []byte
}

// Peer is a cluster.Peer backed by memberlist
type Peer struct {
	cluster.Subscribers

	host string
	port int
	name string

	seeds             []string
	joinAttempts      int
	joinRetryInterval time.Duration
	leaveTimeout      time.Duration
	inboxSize         uint64
	observer          bool
	logger            log.Logger

	mu         sync.RWMutex
	memberlist *memberlist.Memberlist
	members    map[address.NodeAddress]struct{}
	view       cluster.View

	inbox   *queue.RingBuffer
	notify  chan struct{}
	events  chan memberlist.NodeEvent
	stopCh  chan struct{}
	wg      sync.WaitGroup
	started *atomic.Bool
}

var _ cluster.Peer = (*Peer)(nil)

// New creates a Peer listening on host:port.
// An empty or unspecified host binds every interface and advertises a private address.
func New(host string, port int, opts ...Option) *Peer {
	peer := &Peer{
		host:              host,
		port:              port,
		joinAttempts:      DefaultJoinAttempts,
		joinRetryInterval: DefaultJoinRetryInterval,
		leaveTimeout:      DefaultLeaveTimeout,
		inboxSize:         DefaultInboxSize,
		logger:            log.DefaultLogger,
		started:           atomic.NewBool(false),
	}

	for _, opt := range opts {
		opt.Apply(peer)
	}
	return peer
}

// Start implements cluster.Peer
func (p *Peer) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started.Load() {
		return nil
	}

	chain := validation.New(validation.AllErrors())
	for _, seed := range p.seeds {
		chain.AddValidator(validation.NewTCPAddressValidator(seed))
	}
	if err := chain.Validate(); err != nil {
		return fmt.Errorf("%w: %w", gerrors.ErrInvalidConfig, err)
	}

	advertise, err := resolveBindIP(p.host)
	if err != nil {
		return err
	}
	p.name = net.JoinHostPort(advertise, strconv.Itoa(p.port))

	p.inbox = queue.NewRingBuffer(p.inboxSize)
	p.notify = make(chan struct{}, 1)
	p.events = make(chan memberlist.NodeEvent, 256)
	p.stopCh = make(chan struct{})
	p.members = make(map[address.NodeAddress]struct{})
	p.view = cluster.NewView()

	mconfig := memberlist.DefaultLANConfig()
	mconfig.BindAddr = p.host
	if mconfig.BindAddr == "" {
		mconfig.BindAddr = "0.0.0.0"
	}
	mconfig.BindPort = p.port
	mconfig.AdvertiseAddr = advertise
	mconfig.AdvertisePort = p.port
	mconfig.Name = p.name
	mconfig.LogOutput = io.Discard
	mconfig.Delegate = &delegate{peer: p}
	mconfig.Events = &memberlist.ChannelEventDelegate{Ch: p.events}

	p.wg.Add(2)
	go p.dispatch()
	go p.watch()

	mlist, err := memberlist.Create(mconfig)
	if err != nil {
		close(p.stopCh)
		p.wg.Wait()
		return fmt.Errorf("failed to create memberlist: %w", err)
	}
	p.memberlist = mlist

	if err := p.join(ctx); err != nil {
		close(p.stopCh)
		p.wg.Wait()
		return multierr.Combine(err, mlist.Shutdown())
	}

	p.started.Store(true)
	p.logger.Infof("gossip peer %s started", p.name)
	return nil
}

// Stop implements cluster.Peer
func (p *Peer) Stop(context.Context) error {
	p.mu.Lock()
	if !p.started.Load() {
		p.mu.Unlock()
		return nil
	}
	p.started.Store(false)
	mlist := p.memberlist
	p.mu.Unlock()

	err := multierr.Combine(
		mlist.Leave(p.leaveTimeout),
		mlist.Shutdown(),
	)

	close(p.stopCh)
	p.wg.Wait()
	p.inbox.Dispose()

	if err != nil {
		p.logger.Errorf("gossip peer %s failed to stop cleanly: %v", p.name, err)
		return err
	}
	p.logger.Infof("gossip peer %s stopped", p.name)
	return nil
}

// LocalAddress implements cluster.Peer. It is known once the peer has started.
func (p *Peer) LocalAddress() address.NodeAddress {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return address.NodeAddress(p.name)
}

// SendMessage implements cluster.Peer
func (p *Peer) SendMessage(ctx context.Context, to address.NodeAddress, data []byte) error {
	if !p.started.Load() {
		return gerrors.ErrTransportStopped
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	local := p.LocalAddress()
	if to == local {
		return p.enqueue(local, append([]byte(nil), data...))
	}

	p.mu.RLock()
	mlist := p.memberlist
	p.mu.RUnlock()

	var target *memberlist.Node
	for _, member := range mlist.Members() {
		if member.Name == to.String() {
			target = member
			break
		}
	}

	if target == nil {
		return gerrors.NewErrPeerUnreachable(to.String())
	}
	return mlist.SendReliable(target, encode(local, data))
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

func (p *Peer) join(ctx context.Context) error {
	if len(p.seeds) == 0 {
		return nil
	}

	retrier := retry.NewRetrier(p.joinAttempts, p.joinRetryInterval, p.joinRetryInterval)
	if err := retrier.RunContext(ctx, func(context.Context) error {
		_, err := p.memberlist.Join(p.seeds)
		return err
	}); err != nil {
		return fmt.Errorf("%s failed to join cluster: %w", p.name, err)
	}

	p.logger.Infof("%s successfully joined cluster: %v", p.name, p.seeds)
	return nil
}

func (p *Peer) enqueue(from address.NodeAddress, data []byte) error {
	ok, err := p.inbox.Offer(envelope{from: from, data: data})
	if err != nil {
		return gerrors.ErrTransportStopped
	}
	if !ok {
		return fmt.Errorf("gossip: inbox of %s is full", p.name)
	}

	select {
	case p.notify <- struct{}{}:
	default:
	}
	return nil
}

// dispatch delivers buffered messages in arrival order
func (p *Peer) dispatch() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		case <-p.notify:
			for p.inbox.Len() > 0 {
				item, err := p.inbox.Get()
				if err != nil {
					return
				}
				env := item.(envelope)
				p.Deliver(env.from, env.data)
			}
		}
	}
}

// watch turns memberlist events into view changes
func (p *Peer) watch() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		case event := <-p.events:
			if event.Node == nil {
				continue
			}

			if string(event.Node.Meta) == observerMeta {
				continue
			}

			node := address.NodeAddress(event.Node.Name)
			p.mu.Lock()
			switch event.Event {
			case memberlist.NodeJoin:
				p.members[node] = struct{}{}
			case memberlist.NodeLeave:
				delete(p.members, node)
			default:
				p.mu.Unlock()
				continue
			}

			previous := p.view
			members := make([]address.NodeAddress, 0, len(p.members))
			for member := range p.members {
				members = append(members, member)
			}
			p.view = cluster.NewView(members...)
			current := p.view
			p.mu.Unlock()

			p.logger.Debugf("%s view changed: %v", p.name, current.Members())
			p.Publish(cluster.Diff(previous, current))
		}
	}
}

// encode prefixes data with the sender address
//
// ┌──────────┬──────────┬──────────┐
// │ fromLen  │ from     │ data     │
// │ 2 bytes  │ N bytes  │ M bytes  │
// └──────────┴──────────┴──────────┘
func encode(from address.NodeAddress, data []byte) []byte {
	out := make([]byte, 2, 2+len(from)+len(data))
	binary.BigEndian.PutUint16(out, uint16(len(from)))
	out = append(out, from...)
	return append(out, data...)
}

func decode(buf []byte) (address.NodeAddress, []byte, error) {
	if len(buf) < 2 {
		return "", nil, gerrors.ErrInvalidFrame
	}
	size := int(binary.BigEndian.Uint16(buf))
	if len(buf) < 2+size {
		return "", nil, gerrors.ErrInvalidFrame
	}
	return address.NodeAddress(buf[2 : 2+size]), buf[2+size:], nil
}

// delegate receives the user messages of memberlist
type delegate struct {
	peer *Peer
}

var _ memberlist.Delegate = (*delegate)(nil)

func (d *delegate) NodeMeta(int) []byte {
	if d.peer.observer {
		return []byte(observerMeta)
	}
	return nil
}

// NotifyMsg must not block and must copy buf
func (d *delegate) NotifyMsg(buf []byte) {
	from, data, err := decode(buf)
	if err != nil {
		d.peer.logger.Warnf("%s dropped malformed message: %v", d.peer.name, err)
		return
	}

	if err := d.peer.enqueue(from, append([]byte(nil), data...)); err != nil && !errors.Is(err, gerrors.ErrTransportStopped) {
		d.peer.logger.Warnf("%s dropped message from %s: %v", d.peer.name, from, err)
	}
}

func (d *delegate) GetBroadcasts(int, int) [][]byte { return nil }

func (d *delegate) LocalState(bool) []byte { return nil }

func (d *delegate) MergeRemoteState([]byte, bool) {}
