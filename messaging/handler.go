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

package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/tochemey/orbit/cluster"
	gerrors "github.com/tochemey/orbit/errors"
	"github.com/tochemey/orbit/future"
	"github.com/tochemey/orbit/log"
	"github.com/tochemey/orbit/message"
	"github.com/tochemey/orbit/pipeline"
)

// Handler is the messaging stage of the pipeline.
//
// Outbound it turns invocations into request or one-way messages and tracks
// the pending responses. Inbound it completes pending requests with their
// responses and turns requests into invocations whose outcome is written back
// to the caller as a response message.
type Handler struct {
	pipeline.Adapter
	correlator *Correlator
	logger     log.Logger
}

var _ pipeline.Handler = (*Handler)(nil)

// NewHandler creates the messaging handler around a correlator
func NewHandler(correlator *Correlator, logger log.Logger) *Handler {
	return &Handler{correlator: correlator, logger: logger}
}

// Name implements pipeline.Handler
func (h *Handler) Name() string {
	return pipeline.MessagingHandler
}

// Correlator returns the underlying correlator
func (h *Handler) Correlator() *Correlator {
	return h.correlator
}

// Write implements pipeline.Handler.
// Failures of request invocations complete their future; failures of one-way
// invocations are returned.
func (h *Handler) Write(ctx context.Context, hc *pipeline.HandlerContext, msg any) error {
	switch value := msg.(type) {
	case *message.Invocation:
		result := h.correlator.SendRequest(ctx, value, func(ctx context.Context, msg *message.Message) error {
			return hc.Write(ctx, msg)
		})
		if value.OneWay {
			_, err := result.Result()
			return err
		}
		return nil
	default:
		return hc.Write(ctx, msg)
	}
}

// Read implements pipeline.Handler
func (h *Handler) Read(ctx context.Context, hc *pipeline.HandlerContext, msg any) {
	switch value := msg.(type) {
	case *message.Message:
		h.readMessage(ctx, hc, value)
	case *cluster.ViewChange:
		for _, node := range value.Left {
			if failed := h.correlator.FailNode(node, gerrors.NewErrPeerUnreachable(node.String())); failed > 0 {
				h.logger.Warnf("failed %d pending request(s) to departed node %s", failed, node)
			}
		}
		hc.FireRead(ctx, msg)
	default:
		hc.FireRead(ctx, msg)
	}
}

// Active starts the timeout sweeper
func (h *Handler) Active(ctx context.Context) {
	h.correlator.Start(ctx)
}

// Close fails every outstanding request
func (h *Handler) Close(ctx context.Context) error {
	h.correlator.Stop(ctx)
	return nil
}

func (h *Handler) readMessage(ctx context.Context, hc *pipeline.HandlerContext, msg *message.Message) {
	if msg.Type.IsResponse() {
		h.correlator.OnResponse(msg)
		return
	}

	if msg.Type != message.TypeRequest && msg.Type != message.TypeOneWay {
		hc.FireExceptionCaught(ctx, fmt.Errorf("%w: %d", gerrors.ErrUnknownMessageType, msg.Type))
		return
	}

	inv := &message.Invocation{
		To:       msg.Reference(),
		MethodID: msg.MethodID,
		OneWay:   msg.Type == message.TypeOneWay,
		Params:   msg.Params(),
		Headers:  msg.Headers,
		Inbound:  &message.InboundRequest{MessageID: msg.ID, From: msg.From},
	}

	if !inv.OneWay {
		inv.Completion = future.NewPromise[any]()
		// the reply outlives the inbound read
		replyCtx := context.WithoutCancel(ctx)
		inv.Completion.Future().OnComplete(func(result any, err error) {
			response := NewResponse(msg, result, err)
			if werr := hc.Write(replyCtx, response); werr != nil {
				h.logger.Warnf("failed to reply to request %d from %s: %v", msg.ID, msg.From, werr)
			}
		})
	}

	hc.FireRead(ctx, inv)
}

// NewResponse builds the response to request carrying either result or err.
// Protocol failures keep their wire code so the caller can match the cause.
func NewResponse(request *message.Message, result any, err error) *message.Message {
	response := &message.Message{
		Type:        message.TypeResponseOK,
		ID:          request.ID,
		InterfaceID: request.InterfaceID,
		ObjectID:    request.ObjectID,
		MethodID:    request.MethodID,
		Payload:     result,
		To:          request.From,
	}

	if err == nil {
		return response
	}

	var protocolErr *gerrors.ProtocolError
	if errors.As(err, &protocolErr) {
		response.Type = message.TypeResponseProtocolError
		response.Payload = &message.ErrorDetail{Kind: gerrors.ProtocolCode(err), Message: protocolErr.Reason}
		return response
	}

	response.Type = message.TypeResponseError
	if remote, ok := gerrors.IsRemote(err); ok {
		response.Payload = &message.ErrorDetail{Kind: remote.Kind, Message: remote.Message, Stack: remote.Stack}
		return response
	}
	response.Payload = &message.ErrorDetail{Kind: fmt.Sprintf("%T", err), Message: err.Error()}
	return response
}
