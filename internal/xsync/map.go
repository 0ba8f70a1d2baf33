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

package xsync

import (
	"sync"

	"github.com/zeebo/xxh3"
)

const numShards = 32

// noCopy makes go vet flag copies of the embedding struct
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

type shard[V comparable] struct {
	mu   sync.RWMutex
	data map[string]V
}

// Map is a concurrency-safe map of string keys split into shards selected
// with xxh3, so that operations on different keys rarely contend.
//
// V must be comparable for CompareAndDelete; pointers are the typical choice.
type Map[V comparable] struct {
	_      noCopy
	shards [numShards]*shard[V]
}

// NewMap creates and returns a new instance of Map.
func NewMap[V comparable]() *Map[V] {
	m := &Map[V]{}
	for i := range m.shards {
		m.shards[i] = &shard[V]{data: make(map[string]V)}
	}
	return m
}

func (m *Map[V]) shard(k string) *shard[V] {
	return m.shards[xxh3.HashString(k)%numShards]
}

// Set stores a key-value pair in the Map.
// If the key already exists, its value is updated.
func (m *Map[V]) Set(k string, v V) {
	s := m.shard(k)
	s.mu.Lock()
	s.data[k] = v
	s.mu.Unlock()
}

// Get retrieves the value associated with the given key from the Map.
// The second return value indicates whether the key was found.
func (m *Map[V]) Get(k string) (V, bool) {
	s := m.shard(k)
	s.mu.RLock()
	val, ok := s.data[k]
	s.mu.RUnlock()
	return val, ok
}

// LoadOrStore returns the existing value for the key if present.
// Otherwise, it stores and returns the given value.
// The loaded result is true if the value was loaded, false if stored.
func (m *Map[V]) LoadOrStore(k string, v V) (actual V, loaded bool) {
	s := m.shard(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.data[k]; ok {
		return existing, true
	}
	s.data[k] = v
	return v, false
}

// CompareAndDelete deletes the entry for key if its value is old.
// It reports whether the entry was deleted.
func (m *Map[V]) CompareAndDelete(k string, old V) bool {
	s := m.shard(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.data[k]; ok && current == old {
		delete(s.data, k)
		return true
	}
	return false
}

// Delete removes the key-value pair associated with the given key from the Map.
// If the key does not exist, this operation has no effect.
func (m *Map[V]) Delete(k string) {
	s := m.shard(k)
	s.mu.Lock()
	delete(s.data, k)
	s.mu.Unlock()
}

// Len returns the number of key-value pairs currently stored in the Map.
func (m *Map[V]) Len() int {
	total := 0
	for _, s := range m.shards {
		s.mu.RLock()
		total += len(s.data)
		s.mu.RUnlock()
	}
	return total
}

// Range iterates over all key-value pairs in the Map and executes the given function `f`
// for each pair. The iteration order is not guaranteed.
//
// f runs while the pair's shard is read-locked and must not modify the Map.
func (m *Map[V]) Range(f func(string, V)) {
	for _, s := range m.shards {
		s.mu.RLock()
		for k, v := range s.data {
			f(k, v)
		}
		s.mu.RUnlock()
	}
}

// Values returns the values in the Map
func (m *Map[V]) Values() []V {
	var values []V
	m.Range(func(_ string, v V) {
		values = append(values, v)
	})
	return values
}

// Keys returns the keys in the Map
func (m *Map[V]) Keys() []string {
	var keys []string
	m.Range(func(k string, _ V) {
		keys = append(keys, k)
	})
	return keys
}

// Reset clears all key-value pairs from the Map.
func (m *Map[V]) Reset() {
	for _, s := range m.shards {
		s.mu.Lock()
		clear(s.data)
		s.mu.Unlock()
	}
}
