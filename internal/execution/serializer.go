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

// Package execution runs jobs one at a time per key.
//
// There is no dedicated goroutine per key: the first caller that finds a key idle
// wins a compare-and-swap on the key's busy flag and drains the key's queue inline.
// When a job returns an incomplete future, draining stops and resumes on the
// goroutine that completes that future, so the next job of the key never starts
// before the previous one has finished.
package execution

import (
	"sync"
	"time"

	"github.com/zeebo/xxh3"
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/orbit/errors"
	"github.com/tochemey/orbit/future"
	"github.com/tochemey/orbit/log"
)

const (
	numShards = 64
	// defaultKey is the key used by ExecuteSerialized
	defaultKey = ""
)

// job lifecycle
const (
	jobQueued int32 = iota
	jobStarted
	jobAbandoned
)

// Job is a unit of serialized work. The key stays busy until the returned future completes.
type Job func() *future.Future[any]

type pendingJob struct {
	run     Job
	promise *future.Promise[any]
	state   *atomic.Int32
	timer   *time.Timer
}

// start claims the job for execution. It fails when the job was abandoned on timeout.
func (j *pendingJob) start() bool {
	if !j.state.CompareAndSwap(jobQueued, jobStarted) {
		return false
	}
	if j.timer != nil {
		j.timer.Stop()
	}
	return true
}

type keyQueue struct {
	key   string
	jobs  []*pendingJob
	busy  *atomic.Bool
	shard *shard
}

type shard struct {
	mu     sync.Mutex
	queues map[string]*keyQueue
}

// Serializer guarantees that jobs offered under the same key run one after the other in FIFO order.
type Serializer struct {
	shards [numShards]*shard
	logger log.Logger
}

// NewSerializer creates a Serializer
func NewSerializer(logger log.Logger) *Serializer {
	if logger == nil {
		logger = log.DiscardLogger
	}

	s := &Serializer{logger: logger}
	for i := range s.shards {
		s.shards[i] = &shard{queues: make(map[string]*keyQueue)}
	}
	return s
}

// ExecuteSerialized offers the job under the serializer's single default key
func (s *Serializer) ExecuteSerialized(job Job, timeout time.Duration) *future.Future[any] {
	return s.OfferJob(defaultKey, job, timeout)
}

// OfferJob enqueues the job under key and returns the future of its result.
//
// When the key is idle the calling goroutine runs the job, and any job queued
// behind it, before returning. A positive timeout abandons the job with
// ErrJobTimeout when it has not started within that duration.
func (s *Serializer) OfferJob(key string, job Job, timeout time.Duration) *future.Future[any] {
	pending := &pendingJob{
		run:     job,
		promise: future.NewPromise[any](),
		state:   atomic.NewInt32(jobQueued),
	}

	if timeout > 0 {
		pending.timer = time.AfterFunc(timeout, func() {
			if pending.state.CompareAndSwap(jobQueued, jobAbandoned) {
				pending.promise.Failure(gerrors.ErrJobTimeout)
			}
		})
	}

	sh := s.shards[xxh3.HashString(key)%numShards]
	sh.mu.Lock()
	queue, ok := sh.queues[key]
	if !ok {
		queue = &keyQueue{key: key, busy: atomic.NewBool(false), shard: sh}
		sh.queues[key] = queue
	}
	queue.jobs = append(queue.jobs, pending)
	sh.mu.Unlock()

	if queue.busy.CompareAndSwap(false, true) {
		s.drain(queue)
	}
	return pending.promise.Future()
}

// Len returns the number of keys with queued or running jobs
func (s *Serializer) Len() int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		total += len(sh.queues)
		sh.mu.Unlock()
	}
	return total
}

// drain runs queued jobs until the queue is empty or a job completes asynchronously.
// The caller must own the queue's busy flag.
func (s *Serializer) drain(queue *keyQueue) {
	for {
		pending := s.dequeue(queue)
		if pending == nil {
			return
		}

		if !pending.start() {
			continue
		}

		result := s.execute(pending.run)
		if result.IsDone() {
			future.Pipe(result, pending.promise)
			continue
		}

		// the completing goroutine takes over the key
		result.OnComplete(func(value any, err error) {
			pending.promise.Complete(value, err)
			s.drain(queue)
		})
		return
	}
}

// dequeue pops the next job. On an empty queue it releases the key and returns nil.
func (s *Serializer) dequeue(queue *keyQueue) *pendingJob {
	sh := queue.shard
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if len(queue.jobs) == 0 {
		if current, ok := sh.queues[queue.key]; ok && current == queue {
			delete(sh.queues, queue.key)
		}
		queue.busy.Store(false)
		return nil
	}

	pending := queue.jobs[0]
	queue.jobs[0] = nil
	queue.jobs = queue.jobs[1:]
	return pending
}

// execute runs the job, turning panics and nil futures into failed futures
func (s *Serializer) execute(job Job) (result *future.Future[any]) {
	defer func() {
		if r := recover(); r != nil {
			err := gerrors.NewPanicError(r)
			s.logger.Errorf("serialized job panicked: %v", err)
			result = future.Failed[any](err)
		}
	}()

	result = job()
	if result == nil {
		result = future.Completed[any](nil)
	}
	return result
}
