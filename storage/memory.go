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

package storage

import (
	"context"
	"sync"

	"github.com/tochemey/orbit/address"
)

// Memory is an in-process Provider. State does not survive the process.
type Memory struct {
	mu     sync.RWMutex
	states map[string][]byte
	codec  *Codec
}

var _ Provider = (*Memory)(nil)

// NewMemory creates a Memory provider
func NewMemory() *Memory {
	return &Memory{
		states: make(map[string][]byte),
		codec:  NewCodec(),
	}
}

// ReadState implements Provider
func (m *Memory) ReadState(_ context.Context, ref address.Reference, state any) (bool, error) {
	m.mu.RLock()
	data, ok := m.states[Key(ref)]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return true, m.codec.Decode(data, state)
}

// WriteState implements Provider
func (m *Memory) WriteState(_ context.Context, ref address.Reference, state any) error {
	data, err := m.codec.Encode(state)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.states[Key(ref)] = data
	m.mu.Unlock()
	return nil
}

// ClearState implements Provider
func (m *Memory) ClearState(_ context.Context, ref address.Reference) error {
	m.mu.Lock()
	delete(m.states, Key(ref))
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored states
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.states)
}
