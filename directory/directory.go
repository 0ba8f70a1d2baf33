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

// Package directory keeps track of the actors activated on the local node.
//
// The directory activates an actor on first use, hands every invocation to the
// actor's serializer so that turns never overlap, and deactivates actors on
// request or once they have been idle for too long.
package directory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/flowchartsman/retry"
	"github.com/google/uuid"
	"github.com/reugn/go-quartz/job"
	quartzlogger "github.com/reugn/go-quartz/logger"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/tochemey/orbit/actor"
	"github.com/tochemey/orbit/address"
	gerrors "github.com/tochemey/orbit/errors"
	"github.com/tochemey/orbit/extension"
	"github.com/tochemey/orbit/future"
	"github.com/tochemey/orbit/internal/workerpool"
	"github.com/tochemey/orbit/internal/xsync"
	"github.com/tochemey/orbit/log"
	"github.com/tochemey/orbit/message"
	"github.com/tochemey/orbit/storage"
)

const (
	DefaultIdleTimeout       = 10 * time.Minute
	DefaultSweepInterval     = 30 * time.Second
	DefaultActivationTimeout = 5 * time.Second
	DefaultActivationRetries = 1

	sweepJobKey = "directory-idle-sweep"
)

// Directory holds the local activations.
type Directory struct {
	registry  *actor.Registry
	pool      *workerpool.Pool
	storage   storage.Provider
	lifetimes []extension.Lifetime
	runtime   actor.Runtime
	logger    log.Logger
	now       func() time.Time

	idleTimeout       time.Duration
	sweepInterval     time.Duration
	activationTimeout time.Duration
	activationRetries int

	entries *xsync.Map[*Entry]

	mu        sync.Mutex
	scheduler quartz.Scheduler
	started   *atomic.Bool
}

// New creates a Directory dispatching turns to pool
func New(registry *actor.Registry, pool *workerpool.Pool, opts ...Option) *Directory {
	d := &Directory{
		registry:          registry,
		pool:              pool,
		logger:            log.DiscardLogger,
		now:               time.Now,
		idleTimeout:       DefaultIdleTimeout,
		sweepInterval:     DefaultSweepInterval,
		activationTimeout: DefaultActivationTimeout,
		activationRetries: DefaultActivationRetries,
		entries:           xsync.NewMap[*Entry](),
		started:           atomic.NewBool(false),
	}

	for _, opt := range opts {
		opt.Apply(d)
	}

	if d.runtime == nil {
		d.runtime = localRuntime{directory: d}
	}
	return d
}

// Start schedules the idle sweep
func (d *Directory) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started.CompareAndSwap(false, true) {
		return nil
	}

	if d.idleTimeout <= 0 {
		return nil
	}

	scheduler, err := quartz.NewStdScheduler(quartz.WithLogger(quartzlogger.NewSimpleLogger(nil, quartzlogger.LevelOff)))
	if err != nil {
		d.started.Store(false)
		return fmt.Errorf("directory: creating scheduler: %w", err)
	}

	scheduler.Start(ctx)
	sweep := job.NewFunctionJob[int](func(context.Context) (int, error) {
		return d.SweepIdle(d.now()), nil
	})

	detail := quartz.NewJobDetail(sweep, quartz.NewJobKey(sweepJobKey))
	if err := scheduler.ScheduleJob(detail, quartz.NewSimpleTrigger(d.sweepInterval)); err != nil {
		scheduler.Stop()
		scheduler.Wait(ctx)
		d.started.Store(false)
		return fmt.Errorf("directory: scheduling idle sweep: %w", err)
	}

	d.scheduler = scheduler
	d.logger.Infof("idle actors are deactivated after %s, checked every %s", d.idleTimeout, d.sweepInterval)
	return nil
}

// Stop unschedules the idle sweep and deactivates every actor
func (d *Directory) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.started.CompareAndSwap(true, false) && d.scheduler != nil {
		_ = d.scheduler.Clear()
		d.scheduler.Stop()
		d.scheduler.Wait(ctx)
		d.scheduler = nil
	}
	d.mu.Unlock()

	entries := d.entries.Values()
	if len(entries) > 0 {
		d.logger.Infof("deactivating %d actor(s)...", len(entries))
	}

	var eg errgroup.Group
	for _, entry := range entries {
		eg.Go(func() error {
			_, err := d.Deactivate(ctx, entry).Await(ctx)
			return err
		})
	}
	return eg.Wait()
}

// FindOrActivate returns the entry of ref, creating it and scheduling its
// activation when the actor is not active locally.
//
// When the current entry is being deactivated the returned future completes
// once that entry is gone, with a fresh entry. The caller is never blocked.
func (d *Directory) FindOrActivate(ctx context.Context, ref address.Reference) *future.Future[*Entry] {
	if err := ref.Validate(); err != nil {
		return future.Failed[*Entry](gerrors.NewProtocolError(err))
	}

	iface, err := d.registry.Interface(ref.InterfaceID())
	if err != nil {
		return future.Failed[*Entry](gerrors.NewProtocolError(err))
	}

	candidate := newEntry(ref, iface, d.logger, d.now())
	entry, loaded := d.entries.LoadOrStore(ref.Key(), candidate)
	if !loaded {
		d.scheduleActivation(ctx, entry)
		return future.Completed(entry)
	}

	switch entry.State() {
	case Activating, Active:
		return future.Completed(entry)
	}

	promise := future.NewPromise[*Entry]()
	stop := context.AfterFunc(ctx, func() {
		promise.Failure(ctx.Err())
	})
	entry.Gone().OnComplete(func(struct{}, error) {
		if !stop() {
			return
		}
		future.Pipe(d.FindOrActivate(ctx, ref), promise)
	})
	return promise.Future()
}

// Dispatch runs inv as a turn of entry.
//
// Non-reentrant calls queue behind every earlier turn. Reentrant calls only
// wait for the activation and then run alongside other turns.
func (d *Directory) Dispatch(ctx context.Context, entry *Entry, inv *message.Invocation) *future.Future[any] {
	method, err := entry.iface.Lookup(inv.MethodID)
	if err != nil {
		return future.Failed[any](gerrors.NewProtocolError(err))
	}

	var timeout time.Duration
	if !inv.OneWay {
		timeout = inv.Timeout
	}

	if entry.iface.IsReentrant(inv.MethodID) {
		return future.Compose(entry.Ready(), func(struct{}) *future.Future[any] {
			return entry.serializer.OfferJob(uuid.NewString(), d.turn(ctx, entry, method, inv), timeout)
		})
	}
	return entry.serializer.ExecuteSerialized(d.turn(ctx, entry, method, inv), timeout)
}

// Invoke activates the target of inv if needed and dispatches the invocation.
// A request with a positive timeout fails with ErrRequestTimeout once it
// expires, even when its turn is still running.
func (d *Directory) Invoke(ctx context.Context, inv *message.Invocation) *future.Future[any] {
	result := future.Compose(d.FindOrActivate(ctx, inv.To), func(entry *Entry) *future.Future[any] {
		return d.Dispatch(ctx, entry, inv)
	})
	if inv.OneWay || inv.Timeout <= 0 || result.IsDone() {
		return result
	}

	promise := future.NewPromise[any]()
	timer := time.AfterFunc(inv.Timeout, func() {
		promise.Failure(gerrors.ErrRequestTimeout)
	})
	result.OnComplete(func(value any, err error) {
		timer.Stop()
		promise.Complete(value, err)
	})
	return promise.Future()
}

// Deactivate queues the deactivation of entry behind its pending turns.
// The returned future completes once the entry is gone and carries any hook failure.
func (d *Directory) Deactivate(ctx context.Context, entry *Entry) *future.Future[struct{}] {
	entry.deactivateOnce.Do(func() {
		ctx := context.WithoutCancel(ctx)
		entry.serializer.ExecuteSerialized(func() *future.Future[any] {
			return future.Any(workerpool.Run(d.pool, func() (struct{}, error) {
				return struct{}{}, d.deactivate(ctx, entry)
			}))
		}, 0)
	})
	return entry.Gone()
}

// SweepIdle deactivates the active entries unused since the idle timeout and returns how many were found
func (d *Directory) SweepIdle(now time.Time) int {
	if d.idleTimeout <= 0 {
		return 0
	}

	swept := 0
	for _, entry := range d.entries.Values() {
		if entry.State() == Active && entry.idleSince(now, d.idleTimeout) {
			d.logger.Debugf("deactivating idle actor %s", entry.Reference())
			d.Deactivate(context.Background(), entry)
			swept++
		}
	}
	return swept
}

// Get returns the entry of ref
func (d *Directory) Get(ref address.Reference) (*Entry, bool) {
	return d.entries.Get(ref.Key())
}

// Len returns the number of entries
func (d *Directory) Len() int {
	return d.entries.Len()
}

// References returns the references of the local entries
func (d *Directory) References() []address.Reference {
	entries := d.entries.Values()
	refs := make([]address.Reference, 0, len(entries))
	for _, entry := range entries {
		refs = append(refs, entry.Reference())
	}
	return refs
}

// IsLocal reports whether ref currently has a local entry
func (d *Directory) IsLocal(ref address.Reference) bool {
	_, ok := d.entries.Get(ref.Key())
	return ok
}

// Runtime returns the runtime handed to actors
func (d *Directory) Runtime() actor.Runtime {
	return d.runtime
}

// DeactivateReference schedules the deactivation of ref, if it is hosted here
func (d *Directory) DeactivateReference(ref address.Reference) {
	if entry, ok := d.Get(ref); ok {
		d.Deactivate(context.Background(), entry)
	}
}

// WriteState persists the state of a stateful actor
func (d *Directory) WriteState(ctx context.Context, ref address.Reference, instance actor.Actor) error {
	stateful, ok := instance.(actor.Stateful)
	if !ok || d.storage == nil {
		return nil
	}
	return d.storage.WriteState(ctx, ref, stateful.State())
}

// ClearState removes the persisted state of an actor
func (d *Directory) ClearState(ctx context.Context, ref address.Reference, _ actor.Actor) error {
	if d.storage == nil {
		return nil
	}
	return d.storage.ClearState(ctx, ref)
}

func (d *Directory) scheduleActivation(ctx context.Context, entry *Entry) {
	ctx = context.WithoutCancel(ctx)
	entry.serializer.ExecuteSerialized(func() *future.Future[any] {
		return future.Any(workerpool.Run(d.pool, func() (struct{}, error) {
			err := d.activate(ctx, entry)
			d.completeActivation(entry, err)
			return struct{}{}, err
		}))
	}, 0)
}

// activate instantiates the actor, loads its state and runs the activation hooks.
// The whole sequence is retried on failure.
func (d *Directory) activate(ctx context.Context, entry *Entry) (err error) {
	ctx, cancel := context.WithTimeout(ctx, d.activationTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = gerrors.NewPanicError(r)
		}
	}()

	retrier := retry.NewRetrier(d.activationRetries, 10*time.Millisecond, d.activationTimeout)
	return retrier.RunContext(ctx, func(ctx context.Context) error {
		instance := entry.iface.New()

		if stateful, ok := instance.(actor.Stateful); ok && d.storage != nil {
			if _, err := d.storage.ReadState(ctx, entry.reference, stateful.State()); err != nil {
				return fmt.Errorf("reading state: %w", err)
			}
		}

		for _, lifetime := range d.lifetimes {
			if err := lifetime.PreActivation(ctx, entry.reference, instance); err != nil {
				return fmt.Errorf("%s pre-activation: %w", lifetime.ID(), err)
			}
		}

		if activator, ok := instance.(actor.Activator); ok {
			actx := actor.NewContext(entry.reference, instance, d.runtime, nil, d.logger)
			if err := activator.OnActivate(ctx, actx); err != nil {
				return err
			}
		}

		for _, lifetime := range d.lifetimes {
			if err := lifetime.PostActivation(ctx, entry.reference, instance); err != nil {
				return fmt.Errorf("%s post-activation: %w", lifetime.ID(), err)
			}
		}

		entry.instance = instance
		return nil
	})
}

func (d *Directory) completeActivation(entry *Entry, err error) {
	if err == nil {
		entry.lastAccess.Store(d.now().UnixNano())
		entry.setState(Active)
		entry.ready.Success(struct{}{})
		d.logger.Debugf("actor %s activated", entry.reference)
		return
	}

	err = gerrors.NewErrActivationFailure(err)
	d.logger.Warnf("failed to activate actor %s: %v", entry.reference, err)

	entry.setState(Deactivated)
	d.entries.CompareAndDelete(entry.reference.Key(), entry)
	entry.ready.Failure(err)
	entry.gone.Success(struct{}{})
}

// turn builds the job running one invocation on the actor
func (d *Directory) turn(ctx context.Context, entry *Entry, method *actor.Method, inv *message.Invocation) func() *future.Future[any] {
	return func() *future.Future[any] {
		if _, err := entry.Ready().Result(); err != nil {
			return future.Failed[any](err)
		}

		if !entry.enter(d.now()) {
			// the entry is on its way out: run on the next activation
			promise := future.NewPromise[any]()
			entry.Gone().OnComplete(func(struct{}, error) {
				future.Pipe(d.Invoke(ctx, inv), promise)
			})
			return promise.Future()
		}

		actx := actor.NewContext(entry.reference, entry.instance, d.runtime, inv.Headers, d.logger)
		return workerpool.Run(d.pool, func() (any, error) {
			defer entry.leave()
			result, err := method.Invoke(ctx, actx, entry.instance, inv.Params)
			if errors.Is(err, gerrors.ErrInvalidParams) {
				err = gerrors.NewProtocolError(err)
			}
			return result, err
		})
	}
}

func (d *Directory) deactivate(ctx context.Context, entry *Entry) error {
	if !entry.beginDeactivation() {
		return nil
	}

	var err error
	instance := entry.instance

	for _, lifetime := range d.lifetimes {
		err = multierr.Append(err, lifetime.PreDeactivation(ctx, entry.reference, instance))
	}

	if deactivator, ok := instance.(actor.Deactivator); ok {
		actx := actor.NewContext(entry.reference, instance, d.runtime, nil, d.logger)
		err = multierr.Append(err, deactivator.OnDeactivate(ctx, actx))
	}

	if stateful, ok := instance.(actor.Stateful); ok && d.storage != nil {
		err = multierr.Append(err, d.storage.WriteState(ctx, entry.reference, stateful.State()))
	}

	for _, lifetime := range d.lifetimes {
		err = multierr.Append(err, lifetime.PostDeactivation(ctx, entry.reference, instance))
	}

	entry.setState(Deactivated)
	d.entries.CompareAndDelete(entry.reference.Key(), entry)

	if err != nil {
		err = gerrors.NewErrDeactivationFailure(err)
		d.logger.Warnf("actor %s deactivated with errors: %v", entry.reference, err)
	} else {
		d.logger.Debugf("actor %s deactivated", entry.reference)
	}

	entry.gone.Complete(struct{}{}, err)
	return err
}

// localRuntime lets actors reach the other actors of the same directory
type localRuntime struct {
	directory *Directory
}

var _ actor.Runtime = localRuntime{}

func (r localRuntime) Invoke(ctx context.Context, to address.Reference, methodID int32, oneWay bool, params ...any) *future.Future[any] {
	return r.directory.Invoke(ctx, message.NewInvocation(to, methodID, oneWay, params...))
}

func (r localRuntime) Deactivate(ref address.Reference) {
	r.directory.DeactivateReference(ref)
}

func (r localRuntime) WriteState(ctx context.Context, ref address.Reference, instance actor.Actor) error {
	return r.directory.WriteState(ctx, ref, instance)
}

func (r localRuntime) ClearState(ctx context.Context, ref address.Reference, instance actor.Actor) error {
	return r.directory.ClearState(ctx, ref, instance)
}
