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

package messaging

import (
	"cmp"

	"github.com/tochemey/orbit/address"
	"github.com/tochemey/orbit/future"
)

// PendingResponse tracks an outbound request until it is answered, times out
// or its destination leaves the cluster.
type PendingResponse struct {
	MessageID int64
	// TimeoutAt is the deadline in unix nanoseconds
	TimeoutAt int64
	Node      address.NodeAddress

	completion *future.Promise[any]
	// position in the timeout heap, -1 when not queued
	index int
}

// ComparePending orders pending responses by deadline, then by message id
func ComparePending(a, b *PendingResponse) int {
	if c := cmp.Compare(a.TimeoutAt, b.TimeoutAt); c != 0 {
		return c
	}
	return cmp.Compare(a.MessageID, b.MessageID)
}

// pendingHeap is a container/heap min-heap of pending responses
type pendingHeap []*PendingResponse

func (h pendingHeap) Len() int { return len(h) }

func (h pendingHeap) Less(i, j int) bool {
	return ComparePending(h[i], h[j]) < 0
}

func (h pendingHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *pendingHeap) Push(x any) {
	pending := x.(*PendingResponse)
	pending.index = len(*h)
	*h = append(*h, pending)
}

func (h *pendingHeap) Pop() any {
	old := *h
	n := len(old)
	pending := old[n-1]
	old[n-1] = nil
	pending.index = -1
	*h = old[:n-1]
	return pending
}
