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
	"time"

	"github.com/tochemey/orbit/log"
)

// Option is the interface that applies a configuration option.
type Option interface {
	// Apply sets the Option value of a config.
	Apply(peer *Peer)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(peer *Peer)

// Apply applies the option to the peer
func (f OptionFunc) Apply(peer *Peer) {
	f(peer)
}

// WithSeeds sets the addresses of the nodes to join on start
func WithSeeds(seeds ...string) Option {
	return OptionFunc(func(peer *Peer) {
		peer.seeds = seeds
	})
}

// WithJoinRetries sets how many times joining the seeds is attempted and the delay between attempts
func WithJoinRetries(attempts int, interval time.Duration) Option {
	return OptionFunc(func(peer *Peer) {
		peer.joinAttempts = attempts
		peer.joinRetryInterval = interval
	})
}

// WithInboxSize sets the capacity of the inbound message buffer
func WithInboxSize(size uint64) Option {
	return OptionFunc(func(peer *Peer) {
		peer.inboxSize = size
	})
}

// WithLeaveTimeout sets how long Stop waits for the leave message to propagate
func WithLeaveTimeout(timeout time.Duration) Option {
	return OptionFunc(func(peer *Peer) {
		peer.leaveTimeout = timeout
	})
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(peer *Peer) {
		peer.logger = logger
	})
}

// WithObserver makes the node reachable without listing it in the views of
// the other nodes. Client peers use it.
func WithObserver() Option {
	return OptionFunc(func(peer *Peer) {
		peer.observer = true
	})
}
