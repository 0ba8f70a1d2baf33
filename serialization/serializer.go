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

// Package serialization turns messages into bytes and back.
package serialization

import (
	"encoding/binary"

	gerrors "github.com/tochemey/orbit/errors"
	"github.com/tochemey/orbit/message"
)

// MessageSerializer encodes messages for the network.
//
// The encoding must be self-describing: Deserialize restores parameters and
// results with the dynamic types they had before Serialize, so the actor
// method receiving them can assert their types.
//
// A single MessageSerializer may be called from multiple goroutines
// concurrently. Implementations must be safe for concurrent use without
// external synchronization.
type MessageSerializer interface {
	// Serialize encodes msg. From and To are routing data and are not encoded.
	Serialize(msg *message.Message) ([]byte, error)
	// Deserialize decodes data produced by Serialize.
	Deserialize(data []byte) (*message.Message, error)
}

// frameHeaderLen is the size of the length prefix
//
// ┌──────────┬──────────────┐
// │ totalLen │ body         │
// │ 4 bytes  │ N bytes      │
// │ uint32BE │              │
// └──────────┴──────────────┘
//
// totalLen = 4 + N
const frameHeaderLen = 4

func frame(body []byte) []byte {
	out := make([]byte, frameHeaderLen, frameHeaderLen+len(body))
	binary.BigEndian.PutUint32(out, uint32(frameHeaderLen+len(body)))
	return append(out, body...)
}

func unframe(data []byte) ([]byte, error) {
	if len(data) < frameHeaderLen {
		return nil, gerrors.ErrInvalidFrame
	}

	totalLen := int(binary.BigEndian.Uint32(data))
	if totalLen < frameHeaderLen || len(data) < totalLen {
		return nil, gerrors.ErrInvalidFrame
	}
	return data[frameHeaderLen:totalLen], nil
}
