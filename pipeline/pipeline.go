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

// Package pipeline chains the handlers an invocation goes through between the
// application and the network.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/multierr"

	gerrors "github.com/tochemey/orbit/errors"
	"github.com/tochemey/orbit/log"
)

// Pipeline is an immutable ordered list of handlers.
//
// Index 0 is the handler closest to the application. Outbound values enter at
// index 0 and move up; inbound values enter at the last index and move down.
type Pipeline struct {
	handlers  []Handler
	contexts  []*HandlerContext
	logger    log.Logger
	connected *atomic.Bool
	active    *atomic.Bool
	inactive  *atomic.Bool
	closed    *atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func newPipeline(handlers []Handler, logger log.Logger) *Pipeline {
	p := &Pipeline{
		handlers:  handlers,
		contexts:  make([]*HandlerContext, len(handlers)),
		logger:    logger,
		connected: atomic.NewBool(false),
		active:    atomic.NewBool(false),
		inactive:  atomic.NewBool(false),
		closed:    atomic.NewBool(false),
	}
	for i, handler := range handlers {
		p.contexts[i] = &HandlerContext{pipeline: p, index: i, name: handler.Name()}
	}
	return p
}

// Names returns the handler names in outbound order
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.handlers))
	for i, handler := range p.handlers {
		names[i] = handler.Name()
	}
	return names
}

// Get returns the handler with the given name
func (p *Pipeline) Get(name string) (Handler, bool) {
	for _, handler := range p.handlers {
		if handler.Name() == name {
			return handler, true
		}
	}
	return nil, false
}

// Write sends msg outbound from the first handler
func (p *Pipeline) Write(ctx context.Context, msg any) error {
	if p.closed.Load() {
		return gerrors.ErrPipelineClosed
	}
	return p.writeAt(ctx, 0, msg)
}

// FireRead sends msg inbound from the last handler
func (p *Pipeline) FireRead(ctx context.Context, msg any) {
	if p.closed.Load() {
		p.logger.Debugf("pipeline closed, dropping inbound %T", msg)
		return
	}
	p.readAt(ctx, len(p.handlers)-1, msg)
}

// FireExceptionCaught sends err inbound from the last handler
func (p *Pipeline) FireExceptionCaught(ctx context.Context, err error) {
	p.exceptionAt(ctx, len(p.handlers)-1, err)
}

// Connect connects every handler in outbound order and stops at the first failure
func (p *Pipeline) Connect(ctx context.Context) error {
	if p.closed.Load() {
		return gerrors.ErrPipelineClosed
	}
	if !p.connected.CompareAndSwap(false, true) {
		return gerrors.ErrPipelineConnected
	}

	for _, handler := range p.handlers {
		if err := handler.Connect(ctx); err != nil {
			return fmt.Errorf("pipeline: connecting %s: %w", handler.Name(), err)
		}
	}
	return nil
}

// Disconnect disconnects every handler in outbound order
func (p *Pipeline) Disconnect(ctx context.Context) error {
	if !p.connected.CompareAndSwap(true, false) {
		return nil
	}

	var err error
	for _, handler := range p.handlers {
		err = multierr.Append(err, handler.Disconnect(ctx))
	}
	return err
}

// Close closes every handler in outbound order. Subsequent calls return the first outcome.
func (p *Pipeline) Close(ctx context.Context) error {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		for _, handler := range p.handlers {
			p.closeErr = multierr.Append(p.closeErr, handler.Close(ctx))
		}
	})
	return p.closeErr
}

// Active notifies every handler, in inbound order, that the pipeline is ready.
// Only the first call is delivered.
func (p *Pipeline) Active(ctx context.Context) {
	if !p.active.CompareAndSwap(false, true) {
		return
	}
	for i := len(p.handlers) - 1; i >= 0; i-- {
		p.handlers[i].Active(ctx)
	}
}

// Inactive notifies every handler, in inbound order, that the pipeline stops serving.
// Only the first call after Active is delivered.
func (p *Pipeline) Inactive(ctx context.Context) {
	if !p.active.Load() || !p.inactive.CompareAndSwap(false, true) {
		return
	}
	for i := len(p.handlers) - 1; i >= 0; i-- {
		p.handlers[i].Inactive(ctx)
	}
}

func (p *Pipeline) writeAt(ctx context.Context, index int, msg any) (err error) {
	if index >= len(p.handlers) {
		return fmt.Errorf("%w: %T reached the end of the pipeline", gerrors.ErrUnhandledMessage, msg)
	}

	defer func() {
		if r := recover(); r != nil {
			err = gerrors.NewPanicError(r)
		}
	}()
	return p.handlers[index].Write(ctx, p.contexts[index], msg)
}

func (p *Pipeline) readAt(ctx context.Context, index int, msg any) {
	if index < 0 {
		p.logger.Debugf("pipeline: dropping unhandled inbound %T", msg)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			p.exceptionAt(ctx, index-1, gerrors.NewPanicError(r))
		}
	}()
	p.handlers[index].Read(ctx, p.contexts[index], msg)
}

func (p *Pipeline) exceptionAt(ctx context.Context, index int, err error) {
	if index < 0 {
		p.logger.Errorf("pipeline: unhandled exception: %v", err)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Errorf("pipeline: %s panicked handling exception %v: %v", p.handlers[index].Name(), err, r)
		}
	}()
	p.handlers[index].ExceptionCaught(ctx, p.contexts[index], err)
}
