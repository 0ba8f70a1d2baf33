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

package directory

import (
	"time"

	"github.com/tochemey/orbit/actor"
	"github.com/tochemey/orbit/extension"
	"github.com/tochemey/orbit/log"
	"github.com/tochemey/orbit/storage"
)

// Option is the interface that applies a configuration option.
type Option interface {
	// Apply sets the Option value of a config.
	Apply(directory *Directory)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(directory *Directory)

// Apply applies the Directory's option
func (f OptionFunc) Apply(directory *Directory) {
	f(directory)
}

// WithStorage sets the provider used to load and save the state of stateful actors
func WithStorage(provider storage.Provider) Option {
	return OptionFunc(func(directory *Directory) {
		directory.storage = provider
	})
}

// WithLifetimes sets the extensions notified of activations and deactivations
func WithLifetimes(lifetimes ...extension.Lifetime) Option {
	return OptionFunc(func(directory *Directory) {
		directory.lifetimes = append(directory.lifetimes, lifetimes...)
	})
}

// WithRuntime sets the runtime handed to actors through their Context.
// By default actors can only reach actors hosted by the same directory.
func WithRuntime(runtime actor.Runtime) Option {
	return OptionFunc(func(directory *Directory) {
		directory.runtime = runtime
	})
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(directory *Directory) {
		directory.logger = logger
	})
}

// WithIdleTimeout sets how long an actor may stay unused before it is deactivated.
// Zero disables idle deactivation.
func WithIdleTimeout(timeout time.Duration) Option {
	return OptionFunc(func(directory *Directory) {
		directory.idleTimeout = timeout
	})
}

// WithSweepInterval sets how often idle actors are looked for
func WithSweepInterval(interval time.Duration) Option {
	return OptionFunc(func(directory *Directory) {
		if interval > 0 {
			directory.sweepInterval = interval
		}
	})
}

// WithActivationTimeout bounds the whole activation, retries included
func WithActivationTimeout(timeout time.Duration) Option {
	return OptionFunc(func(directory *Directory) {
		if timeout > 0 {
			directory.activationTimeout = timeout
		}
	})
}

// WithActivationRetries sets how many times activation is attempted
func WithActivationRetries(retries int) Option {
	return OptionFunc(func(directory *Directory) {
		if retries > 0 {
			directory.activationRetries = retries
		}
	})
}

// WithClock overrides the time source used for idle tracking
func WithClock(now func() time.Time) Option {
	return OptionFunc(func(directory *Directory) {
		directory.now = now
	})
}
