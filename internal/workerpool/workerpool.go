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

// Package workerpool provides the shared elastic pool of goroutines that
// executes actor turns and lifecycle hooks.
//
// Work is spread over shards of parked workers to reduce contention. A task
// submitted while no worker is parked spawns a new one; parked workers exit
// after the idle timeout.
package workerpool

import (
	"errors"
	"runtime"
	"sync"
	"time"

	"go.uber.org/atomic"

	gerrors "github.com/tochemey/orbit/errors"
	"github.com/tochemey/orbit/future"
	"github.com/tochemey/orbit/log"
)

const maxShards = 128

// ErrPoolNotRunning is returned when submitting to a pool that is not started or already stopped
var ErrPoolNotRunning = errors.New("worker pool is not running")

// Pool is a sharded pool of reusable worker goroutines.
type Pool struct {
	idleTimeout time.Duration
	numShards   int
	shards      []*shard
	logger      log.Logger

	started *atomic.Bool
	stopped *atomic.Bool
	spawned *atomic.Int64
	next    *atomic.Uint64

	stopCh chan struct{}
	wg     sync.WaitGroup
}

type worker struct {
	tasks    chan func()
	lastUsed *atomic.Int64
}

type shard struct {
	mu      sync.Mutex
	idle    []*worker
	stopped bool
}

// New creates a Pool. Call Start before submitting work.
func New(opts ...Option) *Pool {
	pool := &Pool{
		idleTimeout: 10 * time.Second,
		numShards:   runtime.GOMAXPROCS(0),
		logger:      log.DiscardLogger,
		started:     atomic.NewBool(false),
		stopped:     atomic.NewBool(false),
		spawned:     atomic.NewInt64(0),
		next:        atomic.NewUint64(0),
		stopCh:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt.Apply(pool)
	}
	return pool
}

// Start starts the pool. It is safe to call it more than once.
func (p *Pool) Start() {
	if !p.started.CompareAndSwap(false, true) {
		return
	}

	p.shards = make([]*shard, p.numShards)
	for i := range p.shards {
		p.shards[i] = &shard{idle: make([]*worker, 0, 64)}
	}

	p.wg.Add(1)
	go p.reap()
}

// Stop stops the pool and waits for every worker to return.
// Tasks already running are allowed to finish.
func (p *Pool) Stop() {
	if !p.started.Load() || !p.stopped.CompareAndSwap(false, true) {
		return
	}

	close(p.stopCh)
	for _, s := range p.shards {
		s.mu.Lock()
		s.stopped = true
		for _, w := range s.idle {
			close(w.tasks)
		}
		s.idle = nil
		s.mu.Unlock()
	}
	p.wg.Wait()
}

// Submit hands the task to a parked worker or spawns a new one.
func (p *Pool) Submit(task func()) error {
	if !p.started.Load() || p.stopped.Load() {
		return ErrPoolNotRunning
	}

	s := p.shards[p.next.Inc()%uint64(len(p.shards))]
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrPoolNotRunning
	}

	if n := len(s.idle); n > 0 {
		w := s.idle[n-1]
		s.idle[n-1] = nil
		s.idle = s.idle[:n-1]
		s.mu.Unlock()
		w.tasks <- task
		return nil
	}

	// registered under the shard lock so that Stop never waits on a worker it cannot see
	p.wg.Add(1)
	s.mu.Unlock()

	w := &worker{tasks: make(chan func(), 1), lastUsed: atomic.NewInt64(0)}
	w.tasks <- task
	go p.work(s, w)
	return nil
}

// SpawnedWorkers returns the number of live worker goroutines
func (p *Pool) SpawnedWorkers() int {
	return int(p.spawned.Load())
}

func (p *Pool) work(s *shard, w *worker) {
	p.spawned.Inc()
	defer func() {
		p.spawned.Dec()
		p.wg.Done()
	}()

	for task := range w.tasks {
		p.execute(task)
		if !p.park(s, w) {
			return
		}
	}
}

func (p *Pool) execute(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Errorf("worker pool task panicked: %v", r)
		}
	}()
	task()
}

func (p *Pool) park(s *shard, w *worker) bool {
	w.lastUsed.Store(time.Now().UnixNano())
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.idle = append(s.idle, w)
	return true
}

// reap closes workers that have been parked longer than the idle timeout
func (p *Pool) reap() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.idleTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case now := <-ticker.C:
			deadline := now.Add(-p.idleTimeout).UnixNano()
			for _, s := range p.shards {
				s.mu.Lock()
				kept := s.idle[:0]
				for _, w := range s.idle {
					if w.lastUsed.Load() < deadline {
						close(w.tasks)
						continue
					}
					kept = append(kept, w)
				}
				for i := len(kept); i < len(s.idle); i++ {
					s.idle[i] = nil
				}
				s.idle = kept
				s.mu.Unlock()
			}
		}
	}
}

// Run executes fn on the pool and returns its outcome as a future.
// A panic inside fn fails the future with a PanicError.
func Run[T any](p *Pool, fn func() (T, error)) *future.Future[T] {
	promise := future.NewPromise[T]()
	task := func() {
		defer func() {
			if r := recover(); r != nil {
				promise.Failure(gerrors.NewPanicError(r))
			}
		}()
		promise.Complete(fn())
	}

	if err := p.Submit(task); err != nil {
		promise.Failure(err)
	}
	return promise.Future()
}
