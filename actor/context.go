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

package actor

import (
	"context"

	"github.com/tochemey/orbit/address"
	"github.com/tochemey/orbit/future"
	"github.com/tochemey/orbit/log"
	"github.com/tochemey/orbit/message"
)

// Runtime is the part of the hosting runtime reachable from an actor turn.
type Runtime interface {
	// Invoke calls a method on another actor, wherever it lives
	Invoke(ctx context.Context, to address.Reference, methodID int32, oneWay bool, params ...any) *future.Future[any]
	// Deactivate schedules the deactivation of the actor once its current turn ends
	Deactivate(ref address.Reference)
	// WriteState persists the actor state
	WriteState(ctx context.Context, ref address.Reference, instance Actor) error
	// ClearState removes the persisted actor state
	ClearState(ctx context.Context, ref address.Reference, instance Actor) error
}

// Context is handed to every turn and lifecycle hook of an actor.
type Context struct {
	self     address.Reference
	instance Actor
	runtime  Runtime
	headers  message.Headers
	logger   log.Logger
}

// NewContext creates a turn context
func NewContext(self address.Reference, instance Actor, runtime Runtime, headers message.Headers, logger log.Logger) *Context {
	if logger == nil {
		logger = log.DiscardLogger
	}
	return &Context{
		self:     self,
		instance: instance,
		runtime:  runtime,
		headers:  headers,
		logger:   logger,
	}
}

// Self returns the reference of the running actor
func (c *Context) Self() address.Reference {
	return c.self
}

// Headers returns the headers of the invocation being processed, if any
func (c *Context) Headers() message.Headers {
	return c.headers
}

// Logger returns the logger
func (c *Context) Logger() log.Logger {
	return c.logger
}

// Invoke calls a method on another actor
func (c *Context) Invoke(ctx context.Context, to address.Reference, methodID int32, params ...any) *future.Future[any] {
	return c.runtime.Invoke(ctx, to, methodID, false, params...)
}

// Tell calls a one-way method on another actor
func (c *Context) Tell(ctx context.Context, to address.Reference, methodID int32, params ...any) *future.Future[any] {
	return c.runtime.Invoke(ctx, to, methodID, true, params...)
}

// Deactivate asks the runtime to deactivate this actor after the current turn.
// It does not block.
func (c *Context) Deactivate() {
	c.runtime.Deactivate(c.self)
}

// WriteState persists the actor state immediately
func (c *Context) WriteState(ctx context.Context) error {
	return c.runtime.WriteState(ctx, c.self, c.instance)
}

// ClearState removes the persisted actor state
func (c *Context) ClearState(ctx context.Context) error {
	return c.runtime.ClearState(ctx, c.self, c.instance)
}
