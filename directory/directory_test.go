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

package directory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/goleak"

	"github.com/tochemey/orbit/actor"
	"github.com/tochemey/orbit/address"
	gerrors "github.com/tochemey/orbit/errors"
	"github.com/tochemey/orbit/future"
	"github.com/tochemey/orbit/internal/workerpool"
	"github.com/tochemey/orbit/message"
	"github.com/tochemey/orbit/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	counterInterface int32 = iota + 1
	reentrantInterface
	flakyInterface
	accountInterface
)

const (
	methodAdd int32 = iota + 1
	methodGet
	methodSlow
	methodFail
	methodPanic
	methodRetire
)

// tracker records how many turns of an actor run at the same time
type tracker struct {
	running     atomic.Int32
	maxParallel atomic.Int32
	activations atomic.Int32
}

func (t *tracker) enter() {
	current := t.running.Inc()
	for {
		highest := t.maxParallel.Load()
		if current <= highest || t.maxParallel.CompareAndSwap(highest, current) {
			return
		}
	}
}

func (t *tracker) leave() {
	t.running.Dec()
}

type counter struct {
	total   int
	tracker *tracker
}

func (c *counter) OnActivate(context.Context, *actor.Context) error {
	c.tracker.activations.Inc()
	return nil
}

func counterMethods(iface *actor.Interface) *actor.Interface {
	return iface.
		Method(methodAdd, "Add", actor.Func1(func(_ context.Context, _ *actor.Context, c *counter, delta int) (int, error) {
			c.total += delta
			return c.total, nil
		})).
		Method(methodGet, "Get", actor.Func0(func(_ context.Context, _ *actor.Context, c *counter) (int, error) {
			return c.total, nil
		})).
		Method(methodSlow, "Slow", actor.Func0(func(_ context.Context, _ *actor.Context, c *counter) (int, error) {
			c.tracker.enter()
			defer c.tracker.leave()
			time.Sleep(20 * time.Millisecond)
			return 0, nil
		})).
		Method(methodFail, "Fail", actor.Func0(func(context.Context, *actor.Context, *counter) (int, error) {
			return 0, errors.New("insufficient funds")
		})).
		Method(methodPanic, "Panic", actor.Func0(func(context.Context, *actor.Context, *counter) (int, error) {
			panic("boom")
		})).
		Method(methodRetire, "Retire", actor.Func0(func(_ context.Context, actx *actor.Context, _ *counter) (bool, error) {
			actx.Deactivate()
			return true, nil
		}))
}

// flaky fails its first activations
type flaky struct {
	failures *atomic.Int32
}

func (f *flaky) OnActivate(context.Context, *actor.Context) error {
	if f.failures.Dec() >= 0 {
		return errors.New("database unavailable")
	}
	return nil
}

type balance struct {
	Amount int `cbor:"amount"`
}

// account is a stateful actor
type account struct {
	state balance
}

func (a *account) State() any { return &a.state }

// lifecycle records the hooks of a Lifetime extension
type lifecycle struct {
	mu     sync.Mutex
	events []string
}

func (l *lifecycle) ID() string { return "lifecycle" }

func (l *lifecycle) record(event string) error {
	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()
	return nil
}

func (l *lifecycle) PreActivation(context.Context, address.Reference, actor.Actor) error {
	return l.record("pre-activation")
}

func (l *lifecycle) PostActivation(context.Context, address.Reference, actor.Actor) error {
	return l.record("post-activation")
}

func (l *lifecycle) PreDeactivation(context.Context, address.Reference, actor.Actor) error {
	return l.record("pre-deactivation")
}

func (l *lifecycle) PostDeactivation(context.Context, address.Reference, actor.Actor) error {
	_ = l.record("post-deactivation")
	return errors.New("flush failed")
}

func (l *lifecycle) recorded() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// gated holds every deactivation until its gate is closed
type gated struct {
	entered chan struct{}
	gate    chan struct{}
}

func newGated() *gated {
	return &gated{entered: make(chan struct{}, 1), gate: make(chan struct{})}
}

func (g *gated) ID() string { return "gated" }

func (g *gated) PreActivation(context.Context, address.Reference, actor.Actor) error {
	return nil
}

func (g *gated) PostActivation(context.Context, address.Reference, actor.Actor) error {
	return nil
}

func (g *gated) PreDeactivation(context.Context, address.Reference, actor.Actor) error {
	select {
	case g.entered <- struct{}{}:
	default:
	}
	<-g.gate
	return nil
}

func (g *gated) PostDeactivation(context.Context, address.Reference, actor.Actor) error {
	return nil
}

type fixture struct {
	directory *Directory
	tracker   *tracker
	failures  *atomic.Int32
	storage   *storage.Memory
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	f := &fixture{
		tracker:  &tracker{},
		failures: atomic.NewInt32(0),
		storage:  storage.NewMemory(),
	}

	registry := actor.NewRegistry()
	require.NoError(t, registry.Register(
		counterMethods(actor.NewInterface(counterInterface, "Counter", func() actor.Actor { return &counter{tracker: f.tracker} })),
		counterMethods(actor.NewInterface(reentrantInterface, "Reentrant", func() actor.Actor { return &counter{tracker: f.tracker} }, actor.WithReentrancy())),
		actor.NewInterface(flakyInterface, "Flaky", func() actor.Actor { return &flaky{failures: f.failures} }).
			Method(methodGet, "Get", actor.Func0(func(context.Context, *actor.Context, *flaky) (string, error) { return "ok", nil })),
		actor.NewInterface(accountInterface, "Account", func() actor.Actor { return &account{} }).
			Method(methodAdd, "Deposit", actor.Func1(func(_ context.Context, _ *actor.Context, a *account, amount int) (int, error) {
				a.state.Amount += amount
				return a.state.Amount, nil
			})),
	))

	pool := workerpool.New()
	pool.Start()

	opts = append([]Option{WithStorage(f.storage), WithIdleTimeout(0)}, opts...)
	f.directory = New(registry, pool, opts...)
	require.NoError(t, f.directory.Start(t.Context()))

	t.Cleanup(func() {
		_ = f.directory.Stop(context.Background())
		pool.Stop()
	})
	return f
}

func (f *fixture) call(t *testing.T, ref address.Reference, methodID int32, params ...any) (any, error) {
	t.Helper()
	return f.directory.Invoke(t.Context(), message.NewInvocation(ref, methodID, false, params...)).Await(t.Context())
}

func TestDirectory(t *testing.T) {
	t.Run("First call activates the actor", func(t *testing.T) {
		f := newFixture(t)
		ref := address.NewReference(counterInterface, "alice")

		result, err := f.call(t, ref, methodAdd, 2)
		require.NoError(t, err)
		assert.Equal(t, 2, result)

		result, err = f.call(t, ref, methodAdd, 3)
		require.NoError(t, err)
		assert.Equal(t, 5, result)

		entry, ok := f.directory.Get(ref)
		require.True(t, ok)
		assert.Equal(t, Active, entry.State())
		assert.NotNil(t, entry.Instance())
		assert.EqualValues(t, 1, f.tracker.activations.Load())
		assert.Equal(t, 1, f.directory.Len())
		assert.Equal(t, []address.Reference{ref}, f.directory.References())
	})
	t.Run("Concurrent callers share a single activation", func(t *testing.T) {
		f := newFixture(t)
		ref := address.NewReference(counterInterface, "bob")

		var wg sync.WaitGroup
		for range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.call(t, ref, methodAdd, 1)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		result, err := f.call(t, ref, methodGet)
		require.NoError(t, err)
		assert.Equal(t, 50, result)
		assert.EqualValues(t, 1, f.tracker.activations.Load())
	})
	t.Run("Turns of a non-reentrant actor never overlap", func(t *testing.T) {
		f := newFixture(t)
		ref := address.NewReference(counterInterface, "carol")

		var wg sync.WaitGroup
		for range 5 {
			wg.Add(1)
			f.directory.Invoke(t.Context(), message.NewInvocation(ref, methodSlow, false)).OnComplete(func(any, error) { wg.Done() })
		}
		wg.Wait()
		assert.EqualValues(t, 1, f.tracker.maxParallel.Load())
	})
	t.Run("Turns of a reentrant actor interleave", func(t *testing.T) {
		f := newFixture(t)
		ref := address.NewReference(reentrantInterface, "dave")

		var wg sync.WaitGroup
		for range 5 {
			wg.Add(1)
			f.directory.Invoke(t.Context(), message.NewInvocation(ref, methodSlow, false)).OnComplete(func(any, error) { wg.Done() })
		}
		wg.Wait()
		assert.Greater(t, f.tracker.maxParallel.Load(), int32(1))
		assert.EqualValues(t, 1, f.tracker.activations.Load())
	})
	t.Run("Method errors and panics fail only their call", func(t *testing.T) {
		f := newFixture(t)
		ref := address.NewReference(counterInterface, "erin")

		_, err := f.call(t, ref, methodFail)
		assert.EqualError(t, err, "insufficient funds")

		_, err = f.call(t, ref, methodPanic)
		var panicErr *gerrors.PanicError
		assert.ErrorAs(t, err, &panicErr)

		result, err := f.call(t, ref, methodAdd, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, result)
	})
	t.Run("Protocol errors", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.call(t, address.NewReference(99, "x"), methodGet)
		assert.True(t, gerrors.IsProtocol(err))
		assert.ErrorIs(t, err, gerrors.ErrInterfaceNotRegistered)

		_, err = f.call(t, address.NewReference(counterInterface, "x"), 42)
		assert.ErrorIs(t, err, gerrors.ErrMethodNotFound)

		_, err = f.call(t, address.NewReference(counterInterface, "x"), methodAdd, "not a number")
		assert.True(t, gerrors.IsProtocol(err))
		assert.ErrorIs(t, err, gerrors.ErrInvalidParams)

		_, err = f.call(t, address.NewReference(0, "x"), methodGet)
		assert.ErrorIs(t, err, gerrors.ErrInvalidReference)
	})
	t.Run("Failed activation fails queued calls and is retried on the next call", func(t *testing.T) {
		f := newFixture(t)
		f.failures.Store(1)
		ref := address.NewReference(flakyInterface, "frank")

		entry, err := f.directory.FindOrActivate(t.Context(), ref).Await(t.Context())
		require.NoError(t, err)
		first := f.directory.Dispatch(t.Context(), entry, message.NewInvocation(ref, methodGet, false))
		second := f.directory.Dispatch(t.Context(), entry, message.NewInvocation(ref, methodGet, false))

		_, err = first.Await(t.Context())
		assert.ErrorIs(t, err, gerrors.ErrActivationFailure)
		_, err = second.Await(t.Context())
		assert.ErrorIs(t, err, gerrors.ErrActivationFailure)

		require.Eventually(t, func() bool { return f.directory.Len() == 0 }, time.Second, 5*time.Millisecond)

		result, err := f.call(t, ref, methodGet)
		require.NoError(t, err)
		assert.Equal(t, "ok", result)
	})
	t.Run("Activation is retried", func(t *testing.T) {
		f := newFixture(t, WithActivationRetries(3))
		f.failures.Store(2)

		result, err := f.call(t, address.NewReference(flakyInterface, "gina"), methodGet)
		require.NoError(t, err)
		assert.Equal(t, "ok", result)
	})
	t.Run("Deactivation runs the hooks and a later call reactivates", func(t *testing.T) {
		hooks := &lifecycle{}
		f := newFixture(t, WithLifetimes(hooks))
		ref := address.NewReference(counterInterface, "hank")

		_, err := f.call(t, ref, methodAdd, 10)
		require.NoError(t, err)

		entry, ok := f.directory.Get(ref)
		require.True(t, ok)

		_, err = f.directory.Deactivate(t.Context(), entry).Await(t.Context())
		require.ErrorIs(t, err, gerrors.ErrDeactivationFailure)
		assert.Equal(t, Deactivated, entry.State())
		assert.Zero(t, f.directory.Len())
		assert.Equal(t, []string{"pre-activation", "post-activation", "pre-deactivation", "post-deactivation"}, hooks.recorded())

		// state is not persisted for plain actors, so the counter starts over
		result, err := f.call(t, ref, methodGet)
		require.NoError(t, err)
		assert.Equal(t, 0, result)
		assert.EqualValues(t, 2, f.tracker.activations.Load())
	})
	t.Run("Calls queued behind a deactivation go to the next activation", func(t *testing.T) {
		f := newFixture(t)
		ref := address.NewReference(counterInterface, "iris")

		_, err := f.call(t, ref, methodAdd, 1)
		require.NoError(t, err)
		entry, _ := f.directory.Get(ref)

		slow := f.directory.Dispatch(t.Context(), entry, message.NewInvocation(ref, methodSlow, false))
		gone := f.directory.Deactivate(t.Context(), entry)
		late := f.directory.Dispatch(t.Context(), entry, message.NewInvocation(ref, methodAdd, false, 5))

		_, err = slow.Await(t.Context())
		require.NoError(t, err)
		_, err = gone.Await(t.Context())
		require.NoError(t, err)

		result, err := late.Await(t.Context())
		require.NoError(t, err)
		assert.Equal(t, 5, result)
		assert.EqualValues(t, 2, f.tracker.activations.Load())
	})
	t.Run("Calls arriving during a deactivation do not block the caller", func(t *testing.T) {
		hold := newGated()
		f := newFixture(t, WithLifetimes(hold))
		ref := address.NewReference(counterInterface, "ivan")

		_, err := f.call(t, ref, methodAdd, 1)
		require.NoError(t, err)
		entry, _ := f.directory.Get(ref)

		gone := f.directory.Deactivate(t.Context(), entry)
		<-hold.entered
		require.Equal(t, Deactivating, entry.State())

		returned := make(chan *future.Future[any], 1)
		go func() {
			returned <- f.directory.Invoke(t.Context(), message.NewInvocation(ref, methodAdd, false, 7))
		}()

		var result *future.Future[any]
		select {
		case result = <-returned:
		case <-time.After(time.Second):
			close(hold.gate)
			require.FailNow(t, "Invoke blocked while the actor was deactivating")
		}
		assert.False(t, result.IsDone())

		close(hold.gate)
		_, err = gone.Await(t.Context())
		require.NoError(t, err)

		value, err := result.Await(t.Context())
		require.NoError(t, err)
		assert.Equal(t, 7, value)
		assert.EqualValues(t, 2, f.tracker.activations.Load())
	})
	t.Run("Back-to-back calls from one caller run in order", func(t *testing.T) {
		f := newFixture(t)
		ref := address.NewReference(accountInterface, "lena")

		deposit := f.directory.Invoke(t.Context(), message.NewInvocation(ref, methodAdd, false, 1000))
		balance := f.directory.Invoke(t.Context(), message.NewInvocation(ref, methodAdd, false, 0))

		result, err := balance.Await(t.Context())
		require.NoError(t, err)
		assert.Equal(t, 1000, result)
		assert.True(t, deposit.IsDone())
	})
	t.Run("Requests fail once their timeout expires", func(t *testing.T) {
		f := newFixture(t)
		ref := address.NewReference(counterInterface, "mona")

		inv := message.NewInvocation(ref, methodSlow, false)
		inv.Timeout = time.Millisecond
		_, err := f.directory.Invoke(t.Context(), inv).Await(t.Context())
		require.ErrorIs(t, err, gerrors.ErrRequestTimeout)

		// the actor keeps serving once the turn ends
		result, err := f.call(t, ref, methodAdd, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, result)
	})
	t.Run("Actor can deactivate itself", func(t *testing.T) {
		f := newFixture(t)
		ref := address.NewReference(counterInterface, "jack")

		result, err := f.call(t, ref, methodRetire)
		require.NoError(t, err)
		assert.Equal(t, true, result)
		require.Eventually(t, func() bool { return f.directory.Len() == 0 }, time.Second, 5*time.Millisecond)
	})
	t.Run("Stateful actors keep their state across activations", func(t *testing.T) {
		f := newFixture(t)
		ref := address.NewReference(accountInterface, "kim")

		_, err := f.call(t, ref, methodAdd, 40)
		require.NoError(t, err)

		entry, _ := f.directory.Get(ref)
		_, err = f.directory.Deactivate(t.Context(), entry).Await(t.Context())
		require.NoError(t, err)
		assert.Equal(t, 1, f.storage.Len())

		result, err := f.call(t, ref, methodAdd, 2)
		require.NoError(t, err)
		assert.Equal(t, 42, result)
	})
	t.Run("Stop deactivates every actor", func(t *testing.T) {
		f := newFixture(t)
		for _, identity := range []string{"a", "b", "c"} {
			_, err := f.call(t, address.NewReference(accountInterface, identity), methodAdd, 1)
			require.NoError(t, err)
		}

		require.NoError(t, f.directory.Stop(t.Context()))
		assert.Zero(t, f.directory.Len())
		assert.Equal(t, 3, f.storage.Len())
	})
}

func TestIdleDeactivation(t *testing.T) {
	t.Run("SweepIdle deactivates actors unused for the idle timeout", func(t *testing.T) {
		var (
			mu  sync.Mutex
			now = time.Unix(1_700_000_000, 0)
		)
		clock := func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return now
		}

		f := newFixture(t, WithIdleTimeout(time.Minute), WithSweepInterval(time.Hour), WithClock(clock))
		idle := address.NewReference(counterInterface, "idle")
		busy := address.NewReference(counterInterface, "busy")

		_, err := f.call(t, idle, methodGet)
		require.NoError(t, err)

		mu.Lock()
		now = now.Add(45 * time.Second)
		mu.Unlock()
		_, err = f.call(t, busy, methodGet)
		require.NoError(t, err)

		mu.Lock()
		now = now.Add(30 * time.Second)
		mu.Unlock()

		assert.Equal(t, 1, f.directory.SweepIdle(clock()))
		require.Eventually(t, func() bool { return f.directory.Len() == 1 }, time.Second, 5*time.Millisecond)
		_, ok := f.directory.Get(busy)
		assert.True(t, ok)
	})
	t.Run("Scheduled sweep removes idle actors", func(t *testing.T) {
		f := newFixture(t, WithIdleTimeout(50*time.Millisecond), WithSweepInterval(20*time.Millisecond))

		_, err := f.call(t, address.NewReference(counterInterface, "sleepy"), methodGet)
		require.NoError(t, err)
		require.Eventually(t, func() bool { return f.directory.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
	})
}
