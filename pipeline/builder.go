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

package pipeline

import (
	"fmt"
	"slices"

	gerrors "github.com/tochemey/orbit/errors"
	"github.com/tochemey/orbit/log"
)

type placement int

const (
	placeLast placement = iota
	placeFirst
	placeBefore
	placeAfter
)

// Position tells the Builder where to insert a handler
type Position struct {
	placement placement
	anchor    string
}

// Last inserts a handler closest to the network
func Last() Position {
	return Position{placement: placeLast}
}

// First inserts a handler closest to the application
func First() Position {
	return Position{placement: placeFirst}
}

// Before inserts a handler on the application side of the named handler
func Before(name string) Position {
	return Position{placement: placeBefore, anchor: name}
}

// After inserts a handler on the network side of the named handler
func After(name string) Position {
	return Position{placement: placeAfter, anchor: name}
}

// String returns a readable form of the position
func (p Position) String() string {
	switch p.placement {
	case placeFirst:
		return "first"
	case placeBefore:
		return "before " + p.anchor
	case placeAfter:
		return "after " + p.anchor
	default:
		return "last"
	}
}

// Builder assembles a Pipeline. The first error encountered is reported by Build.
type Builder struct {
	handlers []Handler
	logger   log.Logger
	err      error
}

// NewBuilder creates a Builder
func NewBuilder(logger log.Logger) *Builder {
	if logger == nil {
		logger = log.DiscardLogger
	}
	return &Builder{logger: logger}
}

// AddLast appends a handler on the network side
func (b *Builder) AddLast(handler Handler) *Builder {
	return b.Add(Last(), handler)
}

// AddFirst prepends a handler on the application side
func (b *Builder) AddFirst(handler Handler) *Builder {
	return b.Add(First(), handler)
}

// AddBefore inserts a handler on the application side of the named handler
func (b *Builder) AddBefore(name string, handler Handler) *Builder {
	return b.Add(Before(name), handler)
}

// AddAfter inserts a handler on the network side of the named handler
func (b *Builder) AddAfter(name string, handler Handler) *Builder {
	return b.Add(After(name), handler)
}

// Add inserts a handler at the given position
func (b *Builder) Add(position Position, handler Handler) *Builder {
	if b.err != nil {
		return b
	}

	if b.index(handler.Name()) >= 0 {
		b.err = fmt.Errorf("%w: %s", gerrors.ErrHandlerExists, handler.Name())
		return b
	}

	switch position.placement {
	case placeFirst:
		b.handlers = slices.Insert(b.handlers, 0, handler)
	case placeBefore, placeAfter:
		anchor := b.index(position.anchor)
		if anchor < 0 {
			b.err = fmt.Errorf("%w: %s", gerrors.ErrHandlerNotFound, position.anchor)
			return b
		}
		if position.placement == placeAfter {
			anchor++
		}
		b.handlers = slices.Insert(b.handlers, anchor, handler)
	default:
		b.handlers = append(b.handlers, handler)
	}
	return b
}

// Build returns the immutable pipeline
func (b *Builder) Build() (*Pipeline, error) {
	if b.err != nil {
		return nil, b.err
	}
	return newPipeline(slices.Clone(b.handlers), b.logger), nil
}

func (b *Builder) index(name string) int {
	return slices.IndexFunc(b.handlers, func(h Handler) bool { return h.Name() == name })
}
