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

// Package message defines the values that travel through the invocation pipeline.
package message

import (
	"fmt"
	"time"

	"github.com/tochemey/orbit/address"
	"github.com/tochemey/orbit/future"
)

// Type is the kind of a wire message
type Type int32

const (
	// TypeOneWay is a fire-and-forget invocation
	TypeOneWay Type = iota + 1
	// TypeRequest is an invocation awaiting a response
	TypeRequest
	// TypeResponseOK carries a successful result
	TypeResponseOK
	// TypeResponseError carries an application error
	TypeResponseError
	// TypeResponseProtocolError carries a routing or dispatch failure
	TypeResponseProtocolError
)

// String returns the message type name
func (t Type) String() string {
	switch t {
	case TypeOneWay:
		return "one_way"
	case TypeRequest:
		return "request"
	case TypeResponseOK:
		return "response_ok"
	case TypeResponseError:
		return "response_error"
	case TypeResponseProtocolError:
		return "response_protocol_error"
	default:
		return fmt.Sprintf("unknown(%d)", int32(t))
	}
}

// IsResponse reports whether the type is one of the response types
func (t Type) IsResponse() bool {
	return t == TypeResponseOK || t == TypeResponseError || t == TypeResponseProtocolError
}

// Valid reports whether t is a known message type
func (t Type) Valid() bool {
	return t >= TypeOneWay && t <= TypeResponseProtocolError
}

// Headers are string metadata propagated with a message
type Headers map[string]string

// Clone returns a copy of the headers
func (h Headers) Clone() Headers {
	if h == nil {
		return nil
	}
	out := make(Headers, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// ErrorDetail describes a failure carried by an error response
type ErrorDetail struct {
	Kind    string
	Message string
	Stack   string
}

// Message is the wire-level unit exchanged between peers.
//
// The payload depends on the type: a []any of parameters for requests and one-way
// messages, the result for TypeResponseOK and an *ErrorDetail for error responses.
type Message struct {
	Type        Type
	ID          int64
	InterfaceID int32
	ObjectID    string
	MethodID    int32
	Headers     Headers
	Payload     any
	From        address.NodeAddress
	To          address.NodeAddress
}

// Reference returns the target actor reference of a request
func (m *Message) Reference() address.Reference {
	return address.NewReference(m.InterfaceID, m.ObjectID)
}

// Params returns the request parameters
func (m *Message) Params() []any {
	params, _ := m.Payload.([]any)
	return params
}

// ErrorDetail returns the error payload of an error response
func (m *Message) ErrorDetail() *ErrorDetail {
	detail, _ := m.Payload.(*ErrorDetail)
	return detail
}

// Packet carries serialized bytes between the serialization and network layers.
// Node is the destination when written and the sender when read.
type Packet struct {
	Node address.NodeAddress
	Data []byte
}

// InboundRequest records where a network invocation came from so the reply can be routed back
type InboundRequest struct {
	MessageID int64
	From      address.NodeAddress
}

// Invocation is an application-level method call on an actor.
type Invocation struct {
	From     address.Reference
	To       address.Reference
	MethodID int32
	OneWay   bool
	Params   []any
	Headers  Headers
	// Completion is nil for one-way invocations
	Completion *future.Promise[any]
	// Timeout overrides the default request timeout when positive
	Timeout time.Duration
	// TargetNode is the node the invocation is sent to, set by the execution layer
	TargetNode address.NodeAddress
	// Inbound is set when the invocation arrived from the network
	Inbound *InboundRequest
}

// NewInvocation creates an invocation. Request invocations get a completion promise.
func NewInvocation(to address.Reference, methodID int32, oneWay bool, params ...any) *Invocation {
	inv := &Invocation{
		To:       to,
		MethodID: methodID,
		OneWay:   oneWay,
		Params:   params,
	}
	if !oneWay {
		inv.Completion = future.NewPromise[any]()
	}
	return inv
}

// Complete completes the invocation, if it awaits a result
func (i *Invocation) Complete(result any, err error) {
	if i.Completion != nil {
		i.Completion.Complete(result, err)
	}
}
