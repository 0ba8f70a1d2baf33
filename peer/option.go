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
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/tochemey/orbit/actor"
	"github.com/tochemey/orbit/address"
	"github.com/tochemey/orbit/compression"
	"github.com/tochemey/orbit/extension"
	"github.com/tochemey/orbit/log"
	"github.com/tochemey/orbit/pipeline"
	"github.com/tochemey/orbit/serialization"
	"github.com/tochemey/orbit/storage"
)

// Option is the interface that applies a configuration option.
type Option interface {
	// Apply sets the Option value of a Peer.
	Apply(peer *Peer)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(*Peer)

// Apply applies the option
func (f OptionFunc) Apply(peer *Peer) {
	f(peer)
}

// WithRole sets the role of the peer. Peers are servers by default.
func WithRole(role Role) Option {
	return OptionFunc(func(peer *Peer) {
		peer.role = role
	})
}

// WithServer sets the server node a client peer forwards its invocations to
func WithServer(node address.NodeAddress) Option {
	return OptionFunc(func(peer *Peer) {
		peer.server = node
	})
}

// WithRegistry sets the actor interfaces hosted by a server peer
func WithRegistry(registry *actor.Registry) Option {
	return OptionFunc(func(peer *Peer) {
		peer.registry = registry
	})
}

// WithSerializer sets the wire serializer. Every peer of a cluster must use the same one.
func WithSerializer(serializer serialization.MessageSerializer) Option {
	return OptionFunc(func(peer *Peer) {
		peer.serializer = serializer
	})
}

// WithStorage sets the provider persisting the state of stateful actors
func WithStorage(provider storage.Provider) Option {
	return OptionFunc(func(peer *Peer) {
		peer.storage = provider
	})
}

// WithExtensions registers extensions.
//
// Extensions implementing extension.Lifetime observe activations. Extensions
// implementing pipeline.Handler are inserted right after the messaging handler.
func WithExtensions(extensions ...extension.Extension) Option {
	return OptionFunc(func(peer *Peer) {
		peer.extensions = append(peer.extensions, extensions...)
	})
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(peer *Peer) {
		peer.logger = logger
	})
}

// WithRequestTimeout sets how long a request waits for its response when the
// calling context carries no deadline
func WithRequestTimeout(timeout time.Duration) Option {
	return OptionFunc(func(peer *Peer) {
		peer.requestTimeout = timeout
	})
}

// WithIdleTimeout sets how long an actor stays active without being called.
// Zero keeps actors active until the peer stops.
func WithIdleTimeout(timeout time.Duration) Option {
	return OptionFunc(func(peer *Peer) {
		peer.idleTimeout = timeout
	})
}

// WithSweepInterval sets how often idle actors are looked for
func WithSweepInterval(interval time.Duration) Option {
	return OptionFunc(func(peer *Peer) {
		peer.sweepInterval = interval
	})
}

// WithActivationTimeout bounds every activation attempt
func WithActivationTimeout(timeout time.Duration) Option {
	return OptionFunc(func(peer *Peer) {
		peer.activationTimeout = timeout
	})
}

// WithActivationRetries sets how many times an activation is attempted
func WithActivationRetries(retries int) Option {
	return OptionFunc(func(peer *Peer) {
		peer.activationRetries = retries
	})
}

// WithCompression compresses the packets sent by the peer with codec.
// Inbound packets are decoded whatever codec the sender picked, so every peer
// of a cluster must either enable compression or not.
func WithCompression(codec compression.Codec) Option {
	return OptionFunc(func(peer *Peer) {
		peer.codec = codec
		peer.compressed = true
	})
}

// WithMeterProvider records pipeline and actor metrics with provider
func WithMeterProvider(provider metric.MeterProvider) Option {
	return OptionFunc(func(peer *Peer) {
		peer.meterProvider = provider
	})
}

// WithPipelineHandler adds a custom handler to the pipeline at position
func WithPipelineHandler(position pipeline.Position, handler pipeline.Handler) Option {
	return OptionFunc(func(peer *Peer) {
		peer.handlers = append(peer.handlers, customHandler{position: position, handler: handler})
	})
}

// WithPoolShards sets the number of shards of the worker pool running actor turns
func WithPoolShards(shards int) Option {
	return OptionFunc(func(peer *Peer) {
		peer.poolShards = shards
	})
}
