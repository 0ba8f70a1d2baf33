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

// Package actor defines what application code implements to be hosted as a
// virtual actor, and the registry used to dispatch invocations to it.
package actor

import (
	"context"
)

// Actor is any value hosted by the runtime. Behavior is exposed through
// the methods registered on its Interface, not through the type itself.
type Actor any

// Activator is implemented by actors that need to run code when activated.
// Returning an error fails the activation.
type Activator interface {
	OnActivate(ctx context.Context, actx *Context) error
}

// Deactivator is implemented by actors that need to run code before being removed.
type Deactivator interface {
	OnDeactivate(ctx context.Context, actx *Context) error
}

// Stateful is implemented by actors whose state is loaded from storage on
// activation and written back on deactivation.
// State must return a pointer the storage provider can decode into.
type Stateful interface {
	State() any
}
