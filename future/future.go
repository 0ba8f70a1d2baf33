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

// Package future provides single-assignment asynchronous results.
//
// A Promise is the write side and a Future the read side of the same value.
// Completion happens at most once; callbacks registered with OnComplete run in
// registration order on the goroutine that completes the promise, or inline
// when the future is already done.
package future

import (
	"context"
	"sync"
)

// Future is the read side of an asynchronous result.
type Future[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	completed bool
	value     T
	err       error
	callbacks []func(T, error)
}

// Promise is the write side of a Future.
type Promise[T any] struct {
	future *Future[T]
}

// NewPromise creates an uncompleted promise.
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{future: &Future[T]{done: make(chan struct{})}}
}

// Future returns the read side of the promise.
func (p *Promise[T]) Future() *Future[T] {
	return p.future
}

// Success completes the promise with a value.
// It returns false when the promise was already completed.
func (p *Promise[T]) Success(value T) bool {
	return p.future.complete(value, nil)
}

// Failure completes the promise with an error.
// It returns false when the promise was already completed.
func (p *Promise[T]) Failure(err error) bool {
	var zero T
	return p.future.complete(zero, err)
}

// Complete completes the promise with the given outcome.
func (p *Promise[T]) Complete(value T, err error) bool {
	return p.future.complete(value, err)
}

// Completed returns a future already holding value.
func Completed[T any](value T) *Future[T] {
	p := NewPromise[T]()
	p.Success(value)
	return p.Future()
}

// Failed returns a future already holding err.
func Failed[T any](err error) *Future[T] {
	p := NewPromise[T]()
	p.Failure(err)
	return p.Future()
}

// Await blocks until the future completes or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done is closed once the future completes.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// IsDone reports whether the future has completed.
func (f *Future[T]) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Result returns the outcome without blocking. It is only meaningful once IsDone is true.
func (f *Future[T]) Result() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err
}

// OnComplete registers a callback invoked once with the outcome.
func (f *Future[T]) OnComplete(callback func(T, error)) {
	f.mu.Lock()
	if !f.completed {
		f.callbacks = append(f.callbacks, callback)
		f.mu.Unlock()
		return
	}
	value, err := f.value, f.err
	f.mu.Unlock()
	callback(value, err)
}

func (f *Future[T]) complete(value T, err error) bool {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		return false
	}

	f.completed = true
	f.value = value
	f.err = err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, callback := range callbacks {
		callback(value, err)
	}
	return true
}

// Then chains a synchronous transformation on the successful outcome of f.
func Then[T, R any](f *Future[T], fn func(T) (R, error)) *Future[R] {
	p := NewPromise[R]()
	f.OnComplete(func(value T, err error) {
		if err != nil {
			p.Failure(err)
			return
		}
		p.Complete(fn(value))
	})
	return p.Future()
}

// Compose chains an asynchronous continuation on the successful outcome of f.
func Compose[T, R any](f *Future[T], fn func(T) *Future[R]) *Future[R] {
	p := NewPromise[R]()
	f.OnComplete(func(value T, err error) {
		if err != nil {
			p.Failure(err)
			return
		}
		fn(value).OnComplete(func(result R, err error) {
			p.Complete(result, err)
		})
	})
	return p.Future()
}

// Pipe completes p with the outcome of f.
func Pipe[T any](f *Future[T], p *Promise[T]) {
	f.OnComplete(func(value T, err error) {
		p.Complete(value, err)
	})
}

// Any converts f into a future of any.
func Any[T any](f *Future[T]) *Future[any] {
	p := NewPromise[any]()
	f.OnComplete(func(value T, err error) {
		if err != nil {
			p.Failure(err)
			return
		}
		p.Success(value)
	})
	return p.Future()
}
