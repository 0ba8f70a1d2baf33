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

package address

import (
	"fmt"
	"strconv"

	gerrors "github.com/tochemey/orbit/errors"
)

// NodeAddress identifies a peer in the cluster, typically host:port.
type NodeAddress string

// String returns the address as a string
func (n NodeAddress) String() string {
	return string(n)
}

// IsZero reports whether the address is unset
func (n NodeAddress) IsZero() bool {
	return n == ""
}

// Reference is the logical address of an actor.
//
// Two references designate the same actor when their interface id and identity
// match; the node is only a routing hint and never part of equality.
type Reference struct {
	interfaceID int32
	identity    string
	node        NodeAddress
}

// NewReference creates a Reference. identity may be empty for singleton actors.
func NewReference(interfaceID int32, identity string) Reference {
	return Reference{interfaceID: interfaceID, identity: identity}
}

// InterfaceID returns the actor interface id
func (r Reference) InterfaceID() int32 {
	return r.interfaceID
}

// Identity returns the actor key
func (r Reference) Identity() string {
	return r.identity
}

// Node returns the routing hint, if any
func (r Reference) Node() NodeAddress {
	return r.node
}

// WithNode returns a copy of the reference pinned to the given node
func (r Reference) WithNode(node NodeAddress) Reference {
	r.node = node
	return r
}

// Equals reports whether both references designate the same actor
func (r Reference) Equals(other Reference) bool {
	return r.interfaceID == other.interfaceID && r.identity == other.identity
}

// Key returns the identity used for hashing and directory lookups
func (r Reference) Key() string {
	return strconv.FormatInt(int64(r.interfaceID), 10) + "/" + r.identity
}

// IsZero reports whether the reference is unset
func (r Reference) IsZero() bool {
	return r.interfaceID == 0 && r.identity == ""
}

// Validate checks the reference can be routed
func (r Reference) Validate() error {
	if r.interfaceID <= 0 {
		return fmt.Errorf("%w: interface id %d", gerrors.ErrInvalidReference, r.interfaceID)
	}
	return nil
}

// String returns a printable form of the reference
func (r Reference) String() string {
	if r.node.IsZero() {
		return r.Key()
	}
	return r.Key() + "@" + r.node.String()
}
