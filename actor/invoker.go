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

	gerrors "github.com/tochemey/orbit/errors"
)

// Func0 adapts a typed method without parameters
func Func0[A Actor, R any](fn func(ctx context.Context, actx *Context, instance A) (R, error)) MethodFunc {
	return func(ctx context.Context, actx *Context, instance Actor, params []any) (any, error) {
		self, err := receiver[A](instance)
		if err != nil {
			return nil, err
		}
		if err := arity(params, 0); err != nil {
			return nil, err
		}
		return fn(ctx, actx, self)
	}
}

// Func1 adapts a typed method with one parameter
func Func1[A Actor, P1, R any](fn func(ctx context.Context, actx *Context, instance A, p1 P1) (R, error)) MethodFunc {
	return func(ctx context.Context, actx *Context, instance Actor, params []any) (any, error) {
		self, err := receiver[A](instance)
		if err != nil {
			return nil, err
		}
		if err := arity(params, 1); err != nil {
			return nil, err
		}
		p1, err := param[P1](params, 0)
		if err != nil {
			return nil, err
		}
		return fn(ctx, actx, self, p1)
	}
}

// Func2 adapts a typed method with two parameters
func Func2[A Actor, P1, P2, R any](fn func(ctx context.Context, actx *Context, instance A, p1 P1, p2 P2) (R, error)) MethodFunc {
	return func(ctx context.Context, actx *Context, instance Actor, params []any) (any, error) {
		self, err := receiver[A](instance)
		if err != nil {
			return nil, err
		}
		if err := arity(params, 2); err != nil {
			return nil, err
		}
		p1, err := param[P1](params, 0)
		if err != nil {
			return nil, err
		}
		p2, err := param[P2](params, 1)
		if err != nil {
			return nil, err
		}
		return fn(ctx, actx, self, p1, p2)
	}
}

// Action1 adapts a typed method with one parameter and no result, typically one-way
func Action1[A Actor, P1 any](fn func(ctx context.Context, actx *Context, instance A, p1 P1) error) MethodFunc {
	return Func1(func(ctx context.Context, actx *Context, instance A, p1 P1) (any, error) {
		return nil, fn(ctx, actx, instance, p1)
	})
}

func receiver[A Actor](instance Actor) (A, error) {
	self, ok := instance.(A)
	if !ok {
		var zero A
		return zero, fmt.Errorf("%w: unexpected receiver %T", gerrors.ErrInvalidParams, instance)
	}
	return self, nil
}

func arity(params []any, expected int) error {
	if len(params) != expected {
		return fmt.Errorf("%w: expected %d parameters, got %d", gerrors.ErrInvalidParams, expected, len(params))
	}
	return nil
}

func param[T any](params []any, index int) (T, error) {
	var zero T
	if params[index] == nil {
		return zero, nil
	}
	value, ok := params[index].(T)
	if !ok {
		return zero, fmt.Errorf("%w: parameter %d is %T, expected %T", gerrors.ErrInvalidParams, index, params[index], zero)
	}
	return value, nil
}
