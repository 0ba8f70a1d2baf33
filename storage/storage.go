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

// Package storage defines how actor state is persisted.
//
// Providers store an opaque byte representation of the state returned by
// actor.Stateful. The Codec shared by the bundled providers encodes state with CBOR.
package storage

import (
	"context"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/tochemey/orbit/address"
)

// Provider persists actor state.
// ReadState decodes the stored state into state, a pointer, and reports whether any state was found.
type Provider interface {
	ReadState(ctx context.Context, ref address.Reference, state any) (bool, error)
	WriteState(ctx context.Context, ref address.Reference, state any) error
	ClearState(ctx context.Context, ref address.Reference) error
}

// Codec encodes and decodes actor state
type Codec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// NewCodec creates a CBOR Codec
func NewCodec() *Codec {
	enc, err := cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		IndefLength: cbor.IndefLengthForbidden,
		Time:        cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(err)
	}

	dec, err := cbor.DecOptions{
		MaxNestedLevels: 64,
		IndefLength:     cbor.IndefLengthForbidden,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return &Codec{enc: enc, dec: dec}
}

// Encode encodes the state
func (c *Codec) Encode(state any) ([]byte, error) {
	data, err := c.enc.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("storage: encoding state: %w", err)
	}
	return data, nil
}

// Decode decodes data into state, which must be a pointer
func (c *Codec) Decode(data []byte, state any) error {
	if err := c.dec.Unmarshal(data, state); err != nil {
		return fmt.Errorf("storage: decoding state: %w", err)
	}
	return nil
}

// Key returns the storage key of an actor
func Key(ref address.Reference) string {
	return ref.Key()
}
