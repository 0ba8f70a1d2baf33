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

package actor

import (
	"context"
	"fmt"
	"sort"
	"sync"

	gerrors "github.com/tochemey/orbit/errors"
)

// MethodFunc invokes a method on an actor instance
type MethodFunc func(ctx context.Context, actx *Context, instance Actor, params []any) (any, error)

// Method describes an invocable method of an actor interface
type Method struct {
	ID        int32
	Name      string
	OneWay    bool
	Reentrant bool
	Invoke    MethodFunc
}

// MethodOption configures a Method
type MethodOption func(*Method)

// AsOneWay marks the method as fire-and-forget
func AsOneWay() MethodOption {
	return func(m *Method) {
		m.OneWay = true
	}
}

// AsReentrant lets invocations of the method interleave with other turns
func AsReentrant() MethodOption {
	return func(m *Method) {
		m.Reentrant = true
	}
}

// Interface describes an actor type: how to create it and which methods it exposes.
type Interface struct {
	id        int32
	name      string
	factory   func() Actor
	reentrant bool
	methods   map[int32]*Method
	err       error
}

// InterfaceOption configures an Interface
type InterfaceOption func(*Interface)

// WithReentrancy makes every method of the interface reentrant
func WithReentrancy() InterfaceOption {
	return func(i *Interface) {
		i.reentrant = true
	}
}

// NewInterface creates an Interface. id must be positive and unique within a Registry.
func NewInterface(id int32, name string, factory func() Actor, opts ...InterfaceOption) *Interface {
	iface := &Interface{
		id:      id,
		name:    name,
		factory: factory,
		methods: make(map[int32]*Method),
	}
	for _, opt := range opts {
		opt(iface)
	}
	return iface
}

// Method registers a method on the interface. It returns the interface for chaining.
func (i *Interface) Method(id int32, name string, invoke MethodFunc, opts ...MethodOption) *Interface {
	if _, ok := i.methods[id]; ok {
		i.err = fmt.Errorf("interface %s: duplicate method id %d", i.name, id)
		return i
	}

	method := &Method{ID: id, Name: name, Invoke: invoke}
	for _, opt := range opts {
		opt(method)
	}
	i.methods[id] = method
	return i
}

// ID returns the interface id
func (i *Interface) ID() int32 {
	return i.id
}

// Name returns the interface name
func (i *Interface) Name() string {
	return i.name
}

// New creates a new actor instance
func (i *Interface) New() Actor {
	return i.factory()
}

// Lookup returns the method with the given id
func (i *Interface) Lookup(methodID int32) (*Method, error) {
	method, ok := i.methods[methodID]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%d", gerrors.ErrMethodNotFound, i.name, methodID)
	}
	return method, nil
}

// IsReentrant reports whether invocations of methodID may interleave
func (i *Interface) IsReentrant(methodID int32) bool {
	if i.reentrant {
		return true
	}
	method, ok := i.methods[methodID]
	return ok && method.Reentrant
}

func (i *Interface) validate() error {
	switch {
	case i.err != nil:
		return i.err
	case i.id <= 0:
		return fmt.Errorf("interface %s: id must be positive", i.name)
	case i.factory == nil:
		return fmt.Errorf("interface %s: missing factory", i.name)
	}
	for id, method := range i.methods {
		if method.Invoke == nil {
			return fmt.Errorf("interface %s: method %d has no invoker", i.name, id)
		}
	}
	return nil
}

// Registry maps interface ids to their descriptions.
// It is built before the peer starts and only read afterwards.
type Registry struct {
	mu         sync.RWMutex
	interfaces map[int32]*Interface
}

// NewRegistry creates an empty Registry
func NewRegistry() *Registry {
	return &Registry{interfaces: make(map[int32]*Interface)}
}

// Register adds interfaces to the registry
func (r *Registry) Register(interfaces ...*Interface) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, iface := range interfaces {
		if err := iface.validate(); err != nil {
			return err
		}
		if _, ok := r.interfaces[iface.id]; ok {
			return fmt.Errorf("%w: %d (%s)", gerrors.ErrInterfaceExists, iface.id, iface.name)
		}
		r.interfaces[iface.id] = iface
	}
	return nil
}

// Interface returns the interface with the given id
func (r *Registry) Interface(id int32) (*Interface, error) {
	r.mu.RLock()
	iface, ok := r.interfaces[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %d", gerrors.ErrInterfaceNotRegistered, id)
	}
	return iface, nil
}

// Method returns the method identified by the interface and method ids
func (r *Registry) Method(interfaceID, methodID int32) (*Method, error) {
	iface, err := r.Interface(interfaceID)
	if err != nil {
		return nil, err
	}
	return iface.Lookup(methodID)
}

// Interfaces returns the registered interfaces ordered by id
func (r *Registry) Interfaces() []*Interface {
	r.mu.RLock()
	out := make([]*Interface, 0, len(r.interfaces))
	for _, iface := range r.interfaces {
		out = append(out, iface)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}
