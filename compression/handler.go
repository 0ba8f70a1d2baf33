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

package compression

import (
	"context"
	"fmt"

	"github.com/andybalholm/brotli"

	gerrors "github.com/tochemey/orbit/errors"
	"github.com/tochemey/orbit/log"
	"github.com/tochemey/orbit/message"
	"github.com/tochemey/orbit/pipeline"
)

// HandlerName is the pipeline name of the compression handler
const HandlerName = "compression"

// DefaultThreshold is the body size below which packets are sent uncompressed
const DefaultThreshold = 1024

// Option configures a Handler
type Option func(*Handler)

// WithCodec sets the codec used for outbound packets
func WithCodec(codec Codec) Option {
	return func(h *Handler) {
		h.codec = codec
	}
}

// WithThreshold sets the smallest body size worth compressing
func WithThreshold(threshold int) Option {
	return func(h *Handler) {
		h.threshold = threshold
	}
}

// WithBrotliLevel sets the brotli quality, from 0 to 11
func WithBrotliLevel(level int) Option {
	return func(h *Handler) {
		h.brotliLevel = min(max(level, brotli.BestSpeed), brotli.BestCompression)
	}
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// Handler compresses outbound packets and decompresses inbound ones.
//
// Every packet leaving the handler starts with the Codec byte, so the
// receiving side decodes whatever codec the sender chose. It sits between the
// serialization and network handlers.
type Handler struct {
	pipeline.Adapter
	codec       Codec
	threshold   int
	brotliLevel int
	logger      log.Logger
}

var _ pipeline.Handler = (*Handler)(nil)

// NewHandler creates a compression handler. Zstd is the default codec.
func NewHandler(opts ...Option) *Handler {
	h := &Handler{
		codec:       Zstd,
		threshold:   DefaultThreshold,
		brotliLevel: brotli.DefaultCompression,
		logger:      log.DiscardLogger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name implements pipeline.Handler
func (h *Handler) Name() string {
	return HandlerName
}

// Codec returns the codec used for outbound packets
func (h *Handler) Codec() Codec {
	return h.codec
}

// Write implements pipeline.Handler
func (h *Handler) Write(ctx context.Context, hc *pipeline.HandlerContext, msg any) error {
	packet, ok := msg.(*message.Packet)
	if !ok {
		return hc.Write(ctx, msg)
	}

	codec := h.codec
	if len(packet.Data) < h.threshold {
		codec = None
	}

	data, err := compress(codec, h.brotliLevel, []byte{byte(codec)}, packet.Data)
	if err != nil {
		return err
	}
	return hc.Write(ctx, &message.Packet{Node: packet.Node, Data: data})
}

// Read implements pipeline.Handler
func (h *Handler) Read(ctx context.Context, hc *pipeline.HandlerContext, msg any) {
	packet, ok := msg.(*message.Packet)
	if !ok {
		hc.FireRead(ctx, msg)
		return
	}

	data, err := Unwrap(packet.Data)
	if err != nil {
		hc.FireExceptionCaught(ctx, fmt.Errorf("failed to decompress packet from %s: %w", packet.Node, err))
		return
	}
	hc.FireRead(ctx, &message.Packet{Node: packet.Node, Data: data})
}

// Unwrap decodes a body written by a Handler
func Unwrap(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, gerrors.ErrInvalidFrame
	}

	codec := Codec(data[0])
	if !codec.Valid() {
		return nil, fmt.Errorf("%w: %s", gerrors.ErrUnknownCodec, codec)
	}
	return decompress(codec, data[1:])
}
