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

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/tochemey/orbit/message"
	"github.com/tochemey/orbit/pipeline"
)

// Names of the telemetry handlers installed by a peer
const (
	MessagesHandler = "telemetry.messages"
	PacketsHandler  = "telemetry.packets"
)

var (
	outbound = attribute.String("direction", "outbound")
	inbound  = attribute.String("direction", "inbound")
)

// Handler counts the messages and packets flowing through its position in
// the pipeline. It never alters or consumes what it sees.
type Handler struct {
	pipeline.Adapter
	name   string
	metric *PipelineMetric
}

var _ pipeline.Handler = (*Handler)(nil)

// NewHandler creates a telemetry handler registered under name
func NewHandler(name string, meter metric.Meter) (*Handler, error) {
	pipelineMetric, err := NewPipelineMetric(meter)
	if err != nil {
		return nil, err
	}
	return &Handler{name: name, metric: pipelineMetric}, nil
}

// Name implements pipeline.Handler
func (h *Handler) Name() string {
	return h.name
}

// Write implements pipeline.Handler
func (h *Handler) Write(ctx context.Context, hc *pipeline.HandlerContext, msg any) error {
	h.record(ctx, outbound, msg)
	return hc.Write(ctx, msg)
}

// Read implements pipeline.Handler
func (h *Handler) Read(ctx context.Context, hc *pipeline.HandlerContext, msg any) {
	h.record(ctx, inbound, msg)
	hc.FireRead(ctx, msg)
}

// ExceptionCaught implements pipeline.Handler
func (h *Handler) ExceptionCaught(ctx context.Context, hc *pipeline.HandlerContext, err error) {
	h.metric.ErrorCount().Add(ctx, 1, metric.WithAttributes(attribute.String("handler", h.name)))
	hc.FireExceptionCaught(ctx, err)
}

func (h *Handler) record(ctx context.Context, direction attribute.KeyValue, msg any) {
	switch value := msg.(type) {
	case *message.Message:
		h.metric.MessageCount().Add(ctx, 1, metric.WithAttributes(direction, attribute.String("type", value.Type.String())))
	case *message.Packet:
		attrs := metric.WithAttributes(direction)
		h.metric.PacketCount().Add(ctx, 1, attrs)
		h.metric.PacketSize().Record(ctx, int64(len(value.Data)), attrs)
	}
}
