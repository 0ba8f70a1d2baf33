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
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/tochemey/orbit/actor"
	"github.com/tochemey/orbit/address"
	"github.com/tochemey/orbit/future"
	"github.com/tochemey/orbit/internal/execution"
	"github.com/tochemey/orbit/log"
)

// State is the lifecycle state of an Entry
type State int32

const (
	Deactivated State = iota
	Activating
	Active
	Deactivating
)

// String returns the state name
func (s State) String() string {
	switch s {
	case Activating:
		return "Activating"
	case Active:
		return "Active"
	case Deactivating:
		return "Deactivating"
	default:
		return "Deactivated"
	}
}

// Entry is the local activation of an actor.
//
// All turns of the activation, including activation and deactivation, go
// through its serializer. ready completes once activation ends and gone once
// the entry has left the directory.
type Entry struct {
	reference  address.Reference
	iface      *actor.Interface
	instance   actor.Actor
	serializer *execution.Serializer
	lastAccess *atomic.Int64

	// mu orders state changes against turns entering the actor
	mu       sync.Mutex
	state    State
	inflight sync.WaitGroup

	ready          *future.Promise[struct{}]
	gone           *future.Promise[struct{}]
	deactivateOnce sync.Once
}

func newEntry(ref address.Reference, iface *actor.Interface, logger log.Logger, now time.Time) *Entry {
	return &Entry{
		reference:  ref,
		iface:      iface,
		serializer: execution.NewSerializer(logger),
		lastAccess: atomic.NewInt64(now.UnixNano()),
		state:      Activating,
		ready:      future.NewPromise[struct{}](),
		gone:       future.NewPromise[struct{}](),
	}
}

// Reference returns the actor reference
func (e *Entry) Reference() address.Reference {
	return e.reference
}

// State returns the current state
func (e *Entry) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Instance returns the actor instance, nil until activation succeeded
func (e *Entry) Instance() actor.Actor {
	if !e.ready.Future().IsDone() {
		return nil
	}
	return e.instance
}

// LastAccess returns when the actor last started a turn
func (e *Entry) LastAccess() time.Time {
	return time.Unix(0, e.lastAccess.Load())
}

// Ready completes when the activation ends, failed when it did not succeed
func (e *Entry) Ready() *future.Future[struct{}] {
	return e.ready.Future()
}

// Gone completes once the entry has been removed from the directory
func (e *Entry) Gone() *future.Future[struct{}] {
	return e.gone.Future()
}

func (e *Entry) setState(state State) {
	e.mu.Lock()
	e.state = state
	e.mu.Unlock()
}

// enter admits a turn while the actor is Active
func (e *Entry) enter(now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Active {
		return false
	}
	e.inflight.Add(1)
	e.lastAccess.Store(now.UnixNano())
	return true
}

func (e *Entry) leave() {
	e.inflight.Done()
}

// beginDeactivation moves an Active entry to Deactivating and returns once no turn is running
func (e *Entry) beginDeactivation() bool {
	e.mu.Lock()
	if e.state != Active {
		e.mu.Unlock()
		return false
	}
	e.state = Deactivating
	e.mu.Unlock()

	e.inflight.Wait()
	return true
}

func (e *Entry) idleSince(now time.Time, timeout time.Duration) bool {
	return now.Sub(e.LastAccess()) >= timeout
}
