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

package errors

import (
	"errors"
	"fmt"
	"runtime"
)

var (
	// ErrPeerNotStarted is returned when an operation requires a started peer
	ErrPeerNotStarted = errors.New("peer has not started")
	// ErrPeerAlreadyStarted is returned when a peer is started twice
	ErrPeerAlreadyStarted = errors.New("peer already started")
	// ErrPeerStopped fails requests still outstanding when a peer stops
	ErrPeerStopped = errors.New("peer stopped")
	// ErrPeerUnreachable is returned when the node hosting the target left the cluster view
	ErrPeerUnreachable = errors.New("peer is unreachable")
	// ErrRequestTimeout is returned when a response was not received in time
	ErrRequestTimeout = errors.New("request timed out")
	// ErrJobTimeout is returned when a serialized job did not start in time
	ErrJobTimeout = errors.New("job was not started in time")
	// ErrActivationFailure is returned when an actor could not be activated
	ErrActivationFailure = errors.New("actor activation failed")
	// ErrDeactivationFailure is returned when deactivation hooks failed
	ErrDeactivationFailure = errors.New("actor deactivation failed")
	// ErrInterfaceNotRegistered is returned when no interface matches an interface id
	ErrInterfaceNotRegistered = errors.New("actor interface is not registered")
	// ErrInterfaceExists is returned when registering an interface id twice
	ErrInterfaceExists = errors.New("actor interface already registered")
	// ErrMethodNotFound is returned when an interface has no method with the requested id
	ErrMethodNotFound = errors.New("method not found")
	// ErrInvalidParams is returned when invocation parameters do not match the method signature
	ErrInvalidParams = errors.New("invalid invocation parameters")
	// ErrInvalidReference is returned when a reference is missing its interface id
	ErrInvalidReference = errors.New("invalid actor reference")
	// ErrNoRoute is returned when no node can host the target reference
	ErrNoRoute = errors.New("no route to actor")
	// ErrProtocol is the root of every protocol-level failure
	ErrProtocol = errors.New("protocol error")
	// ErrPipelineClosed is returned when writing through a closed pipeline
	ErrPipelineClosed = errors.New("pipeline is closed")
	// ErrPipelineConnected is returned when a pipeline is connected twice
	ErrPipelineConnected = errors.New("pipeline already connected")
	// ErrHandlerExists is returned when two handlers share a name
	ErrHandlerExists = errors.New("pipeline handler already exists")
	// ErrHandlerNotFound is returned when inserting relative to an unknown handler
	ErrHandlerNotFound = errors.New("pipeline handler not found")
	// ErrUnhandledMessage is returned when a message travels past the last handler
	ErrUnhandledMessage = errors.New("message not handled")
	// ErrUnknownMessageType is returned when decoding an unsupported message type
	ErrUnknownMessageType = errors.New("unknown message type")
	// ErrInvalidFrame is returned when decoding a malformed frame
	ErrInvalidFrame = errors.New("invalid frame")
	// ErrTypeNotRegistered is returned when a value type is unknown to a serializer
	ErrTypeNotRegistered = errors.New("type not registered")
	// ErrTransportStopped is returned when sending through a stopped transport
	ErrTransportStopped = errors.New("transport is stopped")
	// ErrNodeNotFound is returned when sending to a node that is not part of the view
	ErrNodeNotFound = errors.New("node not found")
	// ErrStorageClosed is returned when using a closed storage provider
	ErrStorageClosed = errors.New("storage is closed")
	// ErrUnknownCodec is returned when a packet names a compression codec this node does not know
	ErrUnknownCodec = errors.New("unknown compression codec")
	// ErrInvalidConfig is returned when a peer configuration does not validate
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrUnexpectedResult is returned when a typed call receives a result of another type
	ErrUnexpectedResult = errors.New("unexpected result type")
)

// NewErrActivationFailure wraps the activation cause
func NewErrActivationFailure(err error) error {
	return fmt.Errorf("%w: %w", ErrActivationFailure, err)
}

// NewErrDeactivationFailure wraps the deactivation cause
func NewErrDeactivationFailure(err error) error {
	return fmt.Errorf("%w: %w", ErrDeactivationFailure, err)
}

// NewErrPeerUnreachable names the unreachable node
func NewErrPeerUnreachable(node string) error {
	return fmt.Errorf("%w: %s", ErrPeerUnreachable, node)
}

// RemoteError is an application error raised by an actor hosted on another node.
type RemoteError struct {
	Kind    string
	Message string
	Stack   string
}

var _ error = (*RemoteError)(nil)

// Error implements the error interface
func (e *RemoteError) Error() string {
	if e.Kind == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// ProtocolError reports a routing or dispatch failure that happened before
// any application code ran.
type ProtocolError struct {
	Reason string
	cause  error
}

var _ error = (*ProtocolError)(nil)

// NewProtocolError creates a ProtocolError from a cause
func NewProtocolError(cause error) *ProtocolError {
	return &ProtocolError{Reason: cause.Error(), cause: cause}
}

// Error implements the error interface
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s", ErrProtocol, e.Reason)
}

// Unwrap exposes ErrProtocol and, when known, the original cause
func (e *ProtocolError) Unwrap() []error {
	if e.cause == nil {
		return []error{ErrProtocol}
	}
	return []error{ErrProtocol, e.cause}
}

// PanicError is returned when an actor method panics.
type PanicError struct {
	err error
}

var _ error = (*PanicError)(nil)

// NewPanicError records the recovered value along with the panicking call site
func NewPanicError(recovered any) *PanicError {
	err, ok := recovered.(error)
	if !ok {
		err = fmt.Errorf("%v", recovered)
	}

	if pc, fn, line, ok := runtime.Caller(2); ok {
		err = fmt.Errorf("panic: %w at %s[%s:%d]", err, runtime.FuncForPC(pc).Name(), fn, line)
	}
	return &PanicError{err: err}
}

// Error implements the error interface
func (e *PanicError) Error() string {
	return e.err.Error()
}

// Unwrap returns the recovered error
func (e *PanicError) Unwrap() error {
	return e.err
}

// IsProtocol reports whether err is a protocol-level failure
func IsProtocol(err error) bool {
	return errors.Is(err, ErrProtocol)
}

// IsRemote reports whether err was raised by a remote actor and, if so, returns it
func IsRemote(err error) (*RemoteError, bool) {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote, true
	}
	return nil, false
}

// protocol failures that keep their identity across the wire
var protocolCodes = []struct {
	code string
	err  error
}{
	{"interface_not_registered", ErrInterfaceNotRegistered},
	{"method_not_found", ErrMethodNotFound},
	{"invalid_params", ErrInvalidParams},
	{"invalid_reference", ErrInvalidReference},
	{"no_route", ErrNoRoute},
	{"peer_unreachable", ErrPeerUnreachable},
}

// ProtocolCode returns the wire code of a protocol failure, or an empty string
func ProtocolCode(err error) string {
	for _, entry := range protocolCodes {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return ""
}

// ProtocolErrorFromCode rebuilds a ProtocolError received from another node
func ProtocolErrorFromCode(code, reason string) *ProtocolError {
	protocolErr := &ProtocolError{Reason: reason}
	for _, entry := range protocolCodes {
		if entry.code == code {
			protocolErr.cause = entry.err
			break
		}
	}
	return protocolErr
}
