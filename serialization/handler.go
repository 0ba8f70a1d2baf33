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

package serialization

import (
	"context"
	"fmt"

	"github.com/tochemey/orbit/log"
	"github.com/tochemey/orbit/message"
	"github.com/tochemey/orbit/pipeline"
)

// Handler is the serialization stage of the pipeline.
// It encodes outbound messages into packets and decodes inbound packets into
// messages. Other values pass through untouched.
type Handler struct {
	pipeline.Adapter
	serializer MessageSerializer
	logger     log.Logger
}

var _ pipeline.Handler = (*Handler)(nil)

// NewHandler creates the serialization handler
func NewHandler(serializer MessageSerializer, logger log.Logger) *Handler {
	return &Handler{serializer: serializer, logger: logger}
}

// Name implements pipeline.Handler
func (h *Handler) Name() string {
	return pipeline.SerializationHandler
}

// Serializer returns the serializer in use
func (h *Handler) Serializer() MessageSerializer {
	return h.serializer
}

// Write implements pipeline.Handler.
// A successful response whose result cannot be encoded is replaced by an error
// response so that the caller is not left waiting for its timeout.
func (h *Handler) Write(ctx context.Context, hc *pipeline.HandlerContext, msg any) error {
	outbound, ok := msg.(*message.Message)
	if !ok {
		return hc.Write(ctx, msg)
	}

	data, err := h.serializer.Serialize(outbound)
	if err != nil && outbound.Type == message.TypeResponseOK {
		h.logger.Warnf("failed to serialize result of request %d: %v", outbound.ID, err)
		fallback := *outbound
		fallback.Type = message.TypeResponseError
		fallback.Payload = &message.ErrorDetail{Kind: fmt.Sprintf("%T", err), Message: err.Error()}
		data, err = h.serializer.Serialize(&fallback)
	}

	if err != nil {
		return err
	}
	return hc.Write(ctx, &message.Packet{Node: outbound.To, Data: data})
}

// Read implements pipeline.Handler
func (h *Handler) Read(ctx context.Context, hc *pipeline.HandlerContext, msg any) {
	packet, ok := msg.(*message.Packet)
	if !ok {
		hc.FireRead(ctx, msg)
		return
	}

	inbound, err := h.serializer.Deserialize(packet.Data)
	if err != nil {
		hc.FireExceptionCaught(ctx, fmt.Errorf("failed to deserialize packet from %s: %w", packet.Node, err))
		return
	}

	inbound.From = packet.Node
	hc.FireRead(ctx, inbound)
}
