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

package pipeline

import "context"

// Names of the standard handlers, in outbound order
const (
	ExecutionHandler     = "execution"
	MessagingHandler     = "messaging"
	SerializationHandler = "serialization"
	NetworkHandler       = "network"
)

// Handler is a named stage of the pipeline.
//
// Read handles inbound values travelling from the network towards execution and
// Write handles outbound values travelling the other way. A handler forwards a
// value to its neighbour through the HandlerContext, or consumes it by not doing so.
// Lifecycle methods are delivered by the pipeline to every handler exactly once.
type Handler interface {
	Name() string
	Read(ctx context.Context, hc *HandlerContext, msg any)
	Write(ctx context.Context, hc *HandlerContext, msg any) error
	ExceptionCaught(ctx context.Context, hc *HandlerContext, err error)
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Close(ctx context.Context) error
	Active(ctx context.Context)
	Inactive(ctx context.Context)
}

// Adapter implements every Handler method except Name by passing values through.
// Embed it and override what the handler cares about.
type Adapter struct{}

// Read forwards msg inbound
func (Adapter) Read(ctx context.Context, hc *HandlerContext, msg any) {
	hc.FireRead(ctx, msg)
}

// Write forwards msg outbound
func (Adapter) Write(ctx context.Context, hc *HandlerContext, msg any) error {
	return hc.Write(ctx, msg)
}

// ExceptionCaught forwards err inbound
func (Adapter) ExceptionCaught(ctx context.Context, hc *HandlerContext, err error) {
	hc.FireExceptionCaught(ctx, err)
}

// Connect does nothing
func (Adapter) Connect(context.Context) error { return nil }

// Disconnect does nothing
func (Adapter) Disconnect(context.Context) error { return nil }

// Close does nothing
func (Adapter) Close(context.Context) error { return nil }

// Active does nothing
func (Adapter) Active(context.Context) {}

// Inactive does nothing
func (Adapter) Inactive(context.Context) {}

// HandlerContext binds a handler to its position in a pipeline.
type HandlerContext struct {
	pipeline *Pipeline
	index    int
	name     string
}

// Name returns the name of the handler bound to the context
func (hc *HandlerContext) Name() string {
	return hc.name
}

// Pipeline returns the pipeline the handler belongs to
func (hc *HandlerContext) Pipeline() *Pipeline {
	return hc.pipeline
}

// Write passes msg to the next handler towards the network
func (hc *HandlerContext) Write(ctx context.Context, msg any) error {
	return hc.pipeline.writeAt(ctx, hc.index+1, msg)
}

// FireRead passes msg to the next handler towards execution
func (hc *HandlerContext) FireRead(ctx context.Context, msg any) {
	hc.pipeline.readAt(ctx, hc.index-1, msg)
}

// FireExceptionCaught passes err to the next handler towards execution
func (hc *HandlerContext) FireExceptionCaught(ctx context.Context, err error) {
	hc.pipeline.exceptionAt(ctx, hc.index-1, err)
}
