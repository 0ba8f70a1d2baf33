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
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	gerrors "github.com/tochemey/orbit/errors"
)

// Registry maps wire names to Go types.
//
// Values are registered with their exact dynamic type: registering a
// *Order and an Order are two different entries.
type Registry struct {
	mu       sync.RWMutex
	typesMap map[string]reflect.Type
}

// NewRegistry creates a registry holding the primitive types
func NewRegistry() *Registry {
	r := &Registry{typesMap: make(map[string]reflect.Type)}
	r.Register(
		"", false,
		int(0), int8(0), int16(0), int32(0), int64(0),
		uint(0), uint8(0), uint16(0), uint32(0), uint64(0),
		float32(0), float64(0),
		[]byte(nil), []string(nil), []int(nil), []int64(nil),
		map[string]string(nil), map[string]int(nil),
		time.Time{}, time.Duration(0),
	)
	return r
}

// Register adds the types of the given values
func (r *Registry) Register(values ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range values {
		rtype := reflect.TypeOf(v)
		if rtype == nil {
			continue
		}
		r.typesMap[TypeName(rtype)] = rtype
	}
}

// Deregister removes the types of the given values
func (r *Registry) Deregister(values ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range values {
		if rtype := reflect.TypeOf(v); rtype != nil {
			delete(r.typesMap, TypeName(rtype))
		}
	}
}

// Name returns the wire name of the dynamic type of v
func (r *Registry) Name(v any) (string, error) {
	rtype := reflect.TypeOf(v)
	if rtype == nil {
		return "", nil
	}

	name := TypeName(rtype)
	r.mu.RLock()
	_, ok := r.typesMap[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", gerrors.ErrTypeNotRegistered, name)
	}
	return name, nil
}

// TypeOf returns the type registered under name
func (r *Registry) TypeOf(name string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out, ok := r.typesMap[lowTrim(name)]
	return out, ok
}

// TypeName returns the wire name of a type
func TypeName(rtype reflect.Type) string {
	return lowTrim(rtype.String())
}

// lowTrim trim any space and lower the string value
func lowTrim(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
