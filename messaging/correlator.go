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

// Package messaging correlates responses with the requests that caused them
// and enforces request timeouts.
package messaging

import (
	cheaps "container/heap"
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/tochemey/orbit/address"
	gerrors "github.com/tochemey/orbit/errors"
	"github.com/tochemey/orbit/future"
	"github.com/tochemey/orbit/log"
	"github.com/tochemey/orbit/message"
)

// DefaultTimeout is used when neither the invocation nor the correlator set a timeout
const DefaultTimeout = 5 * time.Second

// TimeoutHeader carries the time a request has left when it is sent
const TimeoutHeader = "orbit-timeout"

// RequestTimeout returns the budget a received request was sent with, or zero
func RequestTimeout(headers message.Headers) time.Duration {
	timeout, err := time.ParseDuration(headers[TimeoutHeader])
	if err != nil || timeout < 0 {
		return 0
	}
	return timeout
}

// Option configures a Correlator
type Option func(*Correlator)

// WithTimeout sets the default request timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Correlator) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return func(c *Correlator) {
		c.logger = logger
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(c *Correlator) {
		c.now = now
	}
}

// Correlator assigns message ids to outbound requests and completes their
// futures when the matching response arrives.
//
// A pending response lives both in an id-indexed map and in a deadline-ordered
// heap; both are guarded by one mutex so that an entry is removed exactly once,
// whichever of response, timeout or node failure comes first.
type Correlator struct {
	nextID  *atomic.Int64
	timeout time.Duration
	logger  log.Logger
	now     func() time.Time

	mu      sync.Mutex
	pending map[int64]*PendingResponse
	queue   pendingHeap
	stopped bool

	wake     chan struct{}
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	started  *atomic.Bool
}

// NewCorrelator creates a Correlator. Call Start to enforce timeouts.
func NewCorrelator(opts ...Option) *Correlator {
	c := &Correlator{
		nextID:  atomic.NewInt64(0),
		timeout: DefaultTimeout,
		logger:  log.DiscardLogger,
		now:     time.Now,
		pending: make(map[int64]*PendingResponse),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		started: atomic.NewBool(false),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start starts the timeout sweeper
func (c *Correlator) Start(context.Context) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	go c.run()
}

// Stop stops the sweeper and fails every outstanding request with ErrPeerStopped
func (c *Correlator) Stop(context.Context) {
	if c.started.Load() {
		c.stopOnce.Do(func() {
			close(c.stop)
		})
		<-c.done
	}

	c.mu.Lock()
	c.stopped = true
	outstanding := make([]*PendingResponse, 0, len(c.pending))
	for id, pending := range c.pending {
		delete(c.pending, id)
		outstanding = append(outstanding, pending)
	}
	c.queue = c.queue[:0]
	c.mu.Unlock()

	for _, pending := range outstanding {
		pending.completion.Failure(gerrors.ErrPeerStopped)
	}
}

// Timeout returns the default request timeout
func (c *Correlator) Timeout() time.Duration {
	return c.timeout
}

// Register records an outbound request to node and returns its message id.
// A non-positive timeout falls back to the default one. Once the correlator is
// stopped the request is not recorded and completion fails with ErrPeerStopped.
func (c *Correlator) Register(node address.NodeAddress, timeout time.Duration, completion *future.Promise[any]) int64 {
	if timeout <= 0 {
		timeout = c.timeout
	}

	pending := &PendingResponse{
		MessageID:  c.nextID.Inc(),
		TimeoutAt:  c.now().Add(timeout).UnixNano(),
		Node:       node,
		completion: completion,
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		completion.Failure(gerrors.ErrPeerStopped)
		return pending.MessageID
	}
	c.pending[pending.MessageID] = pending
	cheaps.Push(&c.queue, pending)
	earliest := c.queue[0] == pending
	c.mu.Unlock()

	if earliest {
		c.notify()
	}
	return pending.MessageID
}

// SendRequest sends an invocation through write.
//
// One-way invocations are not tracked and resolve to nil once written. Other
// invocations are registered first and their future completes with the response,
// a timeout or a send failure.
func (c *Correlator) SendRequest(ctx context.Context, inv *message.Invocation, write func(context.Context, *message.Message) error) *future.Future[any] {
	msg := &message.Message{
		InterfaceID: inv.To.InterfaceID(),
		ObjectID:    inv.To.Identity(),
		MethodID:    inv.MethodID,
		Headers:     inv.Headers,
		Payload:     inv.Params,
		To:          inv.TargetNode,
	}

	if inv.OneWay {
		msg.Type = message.TypeOneWay
		if err := write(ctx, msg); err != nil {
			return future.Failed[any](err)
		}
		return future.Completed[any](nil)
	}

	completion := inv.Completion
	if completion == nil {
		completion = future.NewPromise[any]()
	}

	timeout := inv.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	msg.Headers = inv.Headers.Clone()
	if msg.Headers == nil {
		msg.Headers = make(message.Headers, 1)
	}
	msg.Headers[TimeoutHeader] = timeout.String()

	msg.Type = message.TypeRequest
	msg.ID = c.Register(inv.TargetNode, timeout, completion)
	if completion.Future().IsDone() {
		return completion.Future()
	}
	if err := write(ctx, msg); err != nil {
		c.Fail(msg.ID, err)
	}
	return completion.Future()
}

// OnResponse completes the request matching msg.ID.
// It returns false for unknown ids, typically responses arriving after a timeout.
func (c *Correlator) OnResponse(msg *message.Message) bool {
	pending, ok := c.remove(msg.ID)
	if !ok {
		c.logger.Debugf("dropping response %d from %s: no pending request", msg.ID, msg.From)
		return false
	}

	switch msg.Type {
	case message.TypeResponseOK:
		pending.completion.Success(msg.Payload)
	case message.TypeResponseError:
		pending.completion.Failure(remoteError(msg.ErrorDetail()))
	case message.TypeResponseProtocolError:
		code, reason := "", "unknown"
		if detail := msg.ErrorDetail(); detail != nil {
			code, reason = detail.Kind, detail.Message
		}
		pending.completion.Failure(gerrors.ProtocolErrorFromCode(code, reason))
	default:
		pending.completion.Failure(gerrors.ErrUnknownMessageType)
	}
	return true
}

// Fail completes the request with err, if still pending
func (c *Correlator) Fail(id int64, err error) bool {
	pending, ok := c.remove(id)
	if ok {
		pending.completion.Failure(err)
	}
	return ok
}

// FailNode fails every request sent to node and returns how many were failed
func (c *Correlator) FailNode(node address.NodeAddress, err error) int {
	c.mu.Lock()
	var failed []*PendingResponse
	for id, pending := range c.pending {
		if pending.Node == node {
			delete(c.pending, id)
			cheaps.Remove(&c.queue, pending.index)
			failed = append(failed, pending)
		}
	}
	c.mu.Unlock()

	for _, pending := range failed {
		pending.completion.Failure(err)
	}
	return len(failed)
}

// Sweep fails every request whose deadline is at or before now and returns how many expired
func (c *Correlator) Sweep(now time.Time) int {
	deadline := now.UnixNano()

	c.mu.Lock()
	var expired []*PendingResponse
	for len(c.queue) > 0 && c.queue[0].TimeoutAt <= deadline {
		pending := cheaps.Pop(&c.queue).(*PendingResponse)
		delete(c.pending, pending.MessageID)
		expired = append(expired, pending)
	}
	c.mu.Unlock()

	for _, pending := range expired {
		pending.completion.Failure(gerrors.ErrRequestTimeout)
	}
	return len(expired)
}

// Len returns the number of outstanding requests
func (c *Correlator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Correlator) remove(id int64) (*PendingResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending, ok := c.pending[id]
	if !ok {
		return nil, false
	}
	delete(c.pending, id)
	if pending.index >= 0 {
		cheaps.Remove(&c.queue, pending.index)
	}
	return pending, true
}

func (c *Correlator) notify() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// next returns how long to wait for the earliest deadline; ok is false when nothing is pending
func (c *Correlator) next() (wait time.Duration, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return 0, false
	}
	return time.Duration(c.queue[0].TimeoutAt - c.now().UnixNano()), true
}

// run sleeps until the earliest deadline and sweeps. A single goroutine serves every request.
func (c *Correlator) run() {
	defer close(c.done)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		wait, ok := c.next()
		if ok && wait <= 0 {
			c.Sweep(c.now())
			continue
		}

		var fire <-chan time.Time
		if ok {
			timer.Reset(wait)
			fire = timer.C
		}

		select {
		case <-fire:
		case <-c.wake:
			timer.Stop()
		case <-c.stop:
			return
		}
	}
}

func remoteError(detail *message.ErrorDetail) error {
	if detail == nil {
		return &gerrors.RemoteError{Message: "unknown remote error"}
	}
	return &gerrors.RemoteError{Kind: detail.Kind, Message: detail.Message, Stack: detail.Stack}
}
