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

package validation

import (
	"fmt"
	"time"
)

type durationValidator struct {
	name      string
	value     time.Duration
	allowZero bool
}

var _ Validator = (*durationValidator)(nil)

// NewPositiveDurationValidator fails when value is not strictly positive
func NewPositiveDurationValidator(name string, value time.Duration) Validator {
	return &durationValidator{name: name, value: value}
}

// NewNonNegativeDurationValidator fails when value is negative
func NewNonNegativeDurationValidator(name string, value time.Duration) Validator {
	return &durationValidator{name: name, value: value, allowZero: true}
}

// Validate implements Validator
func (v *durationValidator) Validate() error {
	if v.value < 0 || (v.value == 0 && !v.allowZero) {
		return fmt.Errorf("the [%s] must be positive, got %s", v.name, v.value)
	}
	return nil
}
