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

// Package peer ties the runtime together.
//
// A Peer owns the worker pool, the correlator, the local directory of actors
// and the pipeline connecting them to the cluster transport. Server peers host
// actors and route every invocation to the node owning its target. Client
// peers host nothing and hand every invocation to the server they are bound to.
package peer

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/tochemey/orbit/actor"
	"github.com/tochemey/orbit/address"
	"github.com/tochemey/orbit/cluster"
	"github.com/tochemey/orbit/compression"
	"github.com/tochemey/orbit/directory"
	gerrors "github.com/tochemey/orbit/errors"
	"github.com/tochemey/orbit/extension"
	"github.com/tochemey/orbit/future"
	"github.com/tochemey/orbit/internal/placement"
	"github.com/tochemey/orbit/internal/workerpool"
	"github.com/tochemey/orbit/log"
	"github.com/tochemey/orbit/message"
	"github.com/tochemey/orbit/messaging"
	"github.com/tochemey/orbit/pipeline"
	"github.com/tochemey/orbit/serialization"
	"github.com/tochemey/orbit/storage"
	"github.com/tochemey/orbit/telemetry"
)

// Peer is a node of the actor cluster.
type Peer struct {
	transport     cluster.Peer
	role          Role
	server        address.NodeAddress
	registry      *actor.Registry
	serializer    serialization.MessageSerializer
	storage       storage.Provider
	extensions    []extension.Extension
	handlers      []customHandler
	logger        log.Logger
	meterProvider metric.MeterProvider
	codec         compression.Codec
	compressed    bool
	poolShards    int

	requestTimeout    time.Duration
	idleTimeout       time.Duration
	sweepInterval     time.Duration
	activationTimeout time.Duration
	activationRetries int

	mu           sync.Mutex
	started      *atomic.Bool
	stopped      *atomic.Bool
	pool         *workerpool.Pool
	correlator   *messaging.Correlator
	directory    *directory.Directory
	placement    *placement.Placement
	pipeline     *pipeline.Pipeline
	registration metric.Registration
}

var _ actor.Runtime = (*Peer)(nil)

// New creates a Peer reaching the cluster through transport.
// The configuration is validated here so that Start only fails on runtime errors.
func New(transport cluster.Peer, opts ...Option) (*Peer, error) {
	peer := &Peer{
		transport:         transport,
		role:              ServerRole,
		serializer:        serialization.NewCBORSerializer(),
		logger:            log.DefaultLogger,
		poolShards:        runtime.GOMAXPROCS(0),
		requestTimeout:    DefaultRequestTimeout,
		idleTimeout:       directory.DefaultIdleTimeout,
		sweepInterval:     directory.DefaultSweepInterval,
		activationTimeout: directory.DefaultActivationTimeout,
		activationRetries: directory.DefaultActivationRetries,
		started:           atomic.NewBool(false),
		stopped:           atomic.NewBool(false),
	}

	for _, opt := range opts {
		opt.Apply(peer)
	}

	if err := peer.validate(); err != nil {
		return nil, err
	}
	return peer, nil
}

// Start joins the cluster and starts serving invocations.
// A stopped peer cannot be started again.
func (p *Peer) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped.Load() {
		return gerrors.ErrPeerStopped
	}
	if p.started.Load() {
		return gerrors.ErrPeerAlreadyStarted
	}

	p.pool = workerpool.New(workerpool.WithNumShards(p.poolShards), workerpool.WithLogger(p.logger))
	p.pool.Start()

	p.correlator = messaging.NewCorrelator(messaging.WithTimeout(p.requestTimeout), messaging.WithLogger(p.logger))
	p.placement = placement.New(p.transport.LocalAddress())

	if p.role == ServerRole {
		p.directory = directory.New(p.registry, p.pool, p.directoryOptions()...)
		// the idle sweep outlives the start context
		if err := p.directory.Start(context.WithoutCancel(ctx)); err != nil {
			p.pool.Stop()
			return fmt.Errorf("failed to start the actor directory: %w", err)
		}
	}

	pl, err := p.buildPipeline()
	if err != nil {
		return multierr.Append(fmt.Errorf("failed to build the pipeline: %w", err), p.teardown(ctx))
	}
	p.pipeline = pl

	if err := p.pipeline.Connect(ctx); err != nil {
		return multierr.Combine(fmt.Errorf("failed to connect the peer: %w", err), p.pipeline.Disconnect(ctx), p.teardown(ctx))
	}
	p.pipeline.Active(context.WithoutCancel(ctx))

	if p.meterProvider != nil && p.directory != nil {
		p.registration, err = telemetry.ObserveActors(telemetry.Meter(p.meterProvider), func() int64 {
			return int64(p.directory.Len())
		})
		if err != nil {
			p.logger.Warnf("failed to observe active actors: %v", err)
		}
	}

	p.started.Store(true)
	p.logger.Infof("%s peer %s started", p.role, p.transport.LocalAddress())
	return nil
}

// Stop leaves the cluster, deactivates every local actor and fails the
// requests still awaiting a response.
func (p *Peer) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started.CompareAndSwap(true, false) {
		return gerrors.ErrPeerNotStarted
	}
	p.stopped.Store(true)

	var err error
	if p.registration != nil {
		err = multierr.Append(err, p.registration.Unregister())
	}

	p.pipeline.Inactive(ctx)
	err = multierr.Append(err, p.pipeline.Disconnect(ctx))
	err = multierr.Append(err, p.teardown(ctx))

	p.logger.Infof("%s peer %s stopped", p.role, p.transport.LocalAddress())
	return err
}

// teardown releases what Start acquired, in reverse order
func (p *Peer) teardown(ctx context.Context) error {
	var err error
	if p.directory != nil {
		err = multierr.Append(err, p.directory.Stop(ctx))
	}
	if p.pipeline != nil {
		err = multierr.Append(err, p.pipeline.Close(ctx))
	} else {
		p.correlator.Stop(ctx)
	}
	p.pool.Stop()
	return err
}

// Invoke calls methodID on the actor to, wherever it is hosted.
//
// The request waits for its response until the deadline of ctx or, without
// one, the configured request timeout. One-way invocations resolve to nil as
// soon as they are handed over.
func (p *Peer) Invoke(ctx context.Context, to address.Reference, methodID int32, oneWay bool, params ...any) *future.Future[any] {
	if !p.started.Load() {
		return future.Failed[any](gerrors.ErrPeerNotStarted)
	}
	if err := ctx.Err(); err != nil {
		return future.Failed[any](err)
	}

	inv := message.NewInvocation(to, methodID, oneWay, params...)
	inv.Timeout = p.requestTimeout
	if deadline, ok := ctx.Deadline(); ok {
		inv.Timeout = time.Until(deadline)
	}

	if err := p.pipeline.Write(ctx, inv); err != nil {
		if oneWay {
			return future.Failed[any](err)
		}
		inv.Complete(nil, err)
	}

	if oneWay {
		return future.Completed[any](nil)
	}
	return inv.Completion.Future()
}

// Tell sends a one-way invocation
func (p *Peer) Tell(ctx context.Context, to address.Reference, methodID int32, params ...any) error {
	_, err := p.Invoke(ctx, to, methodID, true, params...).Result()
	return err
}

// Deactivate schedules the deactivation of ref when it is hosted here
func (p *Peer) Deactivate(ref address.Reference) {
	if p.directory != nil {
		p.directory.DeactivateReference(ref)
	}
}

// WriteState persists the state of a local stateful actor
func (p *Peer) WriteState(ctx context.Context, ref address.Reference, instance actor.Actor) error {
	if p.directory == nil {
		return nil
	}
	return p.directory.WriteState(ctx, ref, instance)
}

// ClearState removes the persisted state of a local actor
func (p *Peer) ClearState(ctx context.Context, ref address.Reference, instance actor.Actor) error {
	if p.directory == nil {
		return nil
	}
	return p.directory.ClearState(ctx, ref, instance)
}

// Role returns the role of the peer
func (p *Peer) Role() Role {
	return p.role
}

// Address returns the address other peers reach this one with
func (p *Peer) Address() address.NodeAddress {
	return p.transport.LocalAddress()
}

// Directory returns the local actors. It is nil for clients and before Start.
func (p *Peer) Directory() *directory.Directory {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.directory
}

// Pipeline returns the pipeline, nil before Start
func (p *Peer) Pipeline() *pipeline.Pipeline {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pipeline
}

// IsStarted reports whether the peer serves invocations
func (p *Peer) IsStarted() bool {
	return p.started.Load()
}

// Call invokes methodID on to and waits for a result of type T
func Call[T any](ctx context.Context, p *Peer, to address.Reference, methodID int32, params ...any) (T, error) {
	var zero T
	result, err := p.Invoke(ctx, to, methodID, false, params...).Await(ctx)
	if err != nil || result == nil {
		return zero, err
	}

	value, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("%w: expected %T, got %T", gerrors.ErrUnexpectedResult, zero, result)
	}
	return value, nil
}

func (p *Peer) directoryOptions() []directory.Option {
	opts := []directory.Option{
		directory.WithRuntime(p),
		directory.WithLogger(p.logger),
		directory.WithLifetimes(extension.Lifetimes(p.extensions...)...),
		directory.WithIdleTimeout(p.idleTimeout),
		directory.WithSweepInterval(p.sweepInterval),
		directory.WithActivationTimeout(p.activationTimeout),
		directory.WithActivationRetries(p.activationRetries),
	}
	if p.storage != nil {
		opts = append(opts, directory.WithStorage(p.storage))
	}
	return opts
}

// buildPipeline assembles, from the application side to the network side:
// execution, messaging, extension handlers, message metrics, serialization,
// compression, packet metrics and network. Custom handlers go where they asked.
func (p *Peer) buildPipeline() (*pipeline.Pipeline, error) {
	builder := pipeline.NewBuilder(p.logger).
		AddLast(&executionHandler{peer: p}).
		AddLast(messaging.NewHandler(p.correlator, p.logger))

	for _, ext := range p.extensions {
		if handler, ok := ext.(pipeline.Handler); ok {
			builder.AddLast(handler)
		}
	}

	var meter metric.Meter
	if p.meterProvider != nil {
		meter = telemetry.Meter(p.meterProvider)
		messages, err := telemetry.NewHandler(telemetry.MessagesHandler, meter)
		if err != nil {
			return nil, err
		}
		builder.AddLast(messages)
	}

	builder.AddLast(serialization.NewHandler(p.serializer, p.logger))

	if p.compressed {
		builder.AddLast(compression.NewHandler(compression.WithCodec(p.codec), compression.WithLogger(p.logger)))
	}

	if meter != nil {
		packets, err := telemetry.NewHandler(telemetry.PacketsHandler, meter)
		if err != nil {
			return nil, err
		}
		builder.AddLast(packets)
	}

	builder.AddLast(&networkHandler{peer: p})

	for _, custom := range p.handlers {
		builder.Add(custom.position, custom.handler)
	}
	return builder.Build()
}
