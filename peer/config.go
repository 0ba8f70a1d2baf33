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

package peer

import (
	"fmt"
	"strconv"
	"time"

	gerrors "github.com/tochemey/orbit/errors"
	"github.com/tochemey/orbit/extension"
	"github.com/tochemey/orbit/internal/validation"
	"github.com/tochemey/orbit/message"
	"github.com/tochemey/orbit/pipeline"
)

// Role tells whether a peer hosts actors
type Role int

const (
	// ServerRole peers host actors and take part in placement
	ServerRole Role = iota
	// ClientRole peers host nothing and send every invocation to their server
	ClientRole
)

// String returns the role name
func (r Role) String() string {
	switch r {
	case ServerRole:
		return "server"
	case ClientRole:
		return "client"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// DefaultRequestTimeout bounds requests whose context has no deadline
const DefaultRequestTimeout = 5 * time.Second

const (
	// forwardHopsHeader counts how many servers relayed an inbound invocation
	forwardHopsHeader = "orbit-forward-hops"
	// two hops let a call survive a single disagreement between views
	maxForwardHops = 2
)

type customHandler struct {
	position pipeline.Position
	handler  pipeline.Handler
}

type validatorFunc func() error

func (f validatorFunc) Validate() error {
	return f()
}

func (p *Peer) validate() error {
	chain := validation.New(validation.AllErrors()).
		AddAssertion(p.transport != nil, "the [transport] is required").
		AddAssertion(p.serializer != nil, "the [serializer] is required").
		AddAssertion(p.logger != nil, "the [logger] is required").
		AddAssertion(p.role == ServerRole || p.role == ClientRole, fmt.Sprintf("unknown peer %s", p.role)).
		AddAssertion(p.activationRetries >= 1, "the [activation retries] must be at least 1").
		AddAssertion(p.poolShards >= 1, "the [pool shards] must be at least 1").
		AddValidator(validation.NewPositiveDurationValidator("request timeout", p.requestTimeout)).
		AddValidator(validation.NewNonNegativeDurationValidator("idle timeout", p.idleTimeout)).
		AddValidator(validation.NewPositiveDurationValidator("sweep interval", p.sweepInterval)).
		AddValidator(validation.NewPositiveDurationValidator("activation timeout", p.activationTimeout)).
		AddValidator(validatorFunc(func() error { return extension.Validate(p.extensions...) }))

	switch p.role {
	case ServerRole:
		chain.AddAssertion(p.registry != nil, "a server peer requires an actor registry")
	case ClientRole:
		chain.AddAssertion(!p.server.IsZero(), "a client peer requires a server address")
	}

	if p.compressed {
		chain.AddAssertion(p.codec.Valid(), fmt.Sprintf("unknown compression codec %d", p.codec))
	}

	if err := chain.Validate(); err != nil {
		return fmt.Errorf("%w: %w", gerrors.ErrInvalidConfig, err)
	}
	return nil
}

// forwardHops returns how many servers already relayed an invocation
func forwardHops(headers message.Headers) int {
	hops, err := strconv.Atoi(headers[forwardHopsHeader])
	if err != nil {
		return 0
	}
	return hops
}

func withForwardHops(headers message.Headers, hops int) message.Headers {
	out := headers.Clone()
	if out == nil {
		out = make(message.Headers, 1)
	}
	out[forwardHopsHeader] = strconv.Itoa(hops)
	return out
}
