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

// Package extension defines the hooks through which applications plug
// cross-cutting behavior into the actor lifecycle.
package extension

import (
	"context"
	"fmt"
	"regexp"

	"github.com/tochemey/orbit/actor"
	"github.com/tochemey/orbit/address"
	"github.com/tochemey/orbit/internal/validation"
)

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{0,254}$`)

// Extension is a pluggable component registered on a peer.
type Extension interface {
	// ID returns the unique identifier for the extension.
	// It must start with an alphanumeric character, contain only alphanumeric
	// characters, hyphens or underscores, and be at most 255 characters long.
	ID() string
}

// Lifetime is an Extension observing actor activations and deactivations.
//
// Hooks run on the worker pool inside the actor's activation or deactivation
// turn. A pre-activation or post-activation error fails the activation;
// deactivation errors are reported but never prevent removal.
type Lifetime interface {
	Extension
	PreActivation(ctx context.Context, ref address.Reference, instance actor.Actor) error
	PostActivation(ctx context.Context, ref address.Reference, instance actor.Actor) error
	PreDeactivation(ctx context.Context, ref address.Reference, instance actor.Actor) error
	PostDeactivation(ctx context.Context, ref address.Reference, instance actor.Actor) error
}

// Validate checks extension identifiers are well formed and unique
func Validate(extensions ...Extension) error {
	seen := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		id := ext.ID()
		if err := validation.NewPatternValidator(idPattern, id, fmt.Errorf("extension: invalid id %q", id)).Validate(); err != nil {
			return err
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("extension: duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// Lifetimes returns the extensions implementing Lifetime, in order
func Lifetimes(extensions ...Extension) []Lifetime {
	var out []Lifetime
	for _, ext := range extensions {
		if lifetime, ok := ext.(Lifetime); ok {
			out = append(out, lifetime)
		}
	}
	return out
}
