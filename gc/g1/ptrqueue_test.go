// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package g1

import "testing"

func newTestQueue(entries int) (*ptrQueueSet, *ptrQueue) {
	qs := new(ptrQueueSet)
	qs.init(entries)
	q := &ptrQueue{qset: qs}
	q.setActive(true)
	return qs, q
}

// drainAll flattens drained buffers into one slice, preserving order.
func drainAll(qs *ptrQueueSet) []uintptr {
	var out []uintptr
	for _, buf := range qs.drain() {
		out = append(out, buf...)
	}
	return out
}

func TestPtrQueueInactive(t *testing.T) {
	qs, q := newTestQueue(4)
	q.setActive(false)
	q.enqueue(1)
	q.enqueue(2)
	if !q.isEmpty() {
		t.Fatalf("inactive queue accepted entries")
	}
	q.flush()
	if got := drainAll(qs); got != nil {
		t.Fatalf("drained %v from an inactive queue, want nothing", got)
	}
}

func TestPtrQueueFillAndHandOff(t *testing.T) {
	qs, q := newTestQueue(4)
	for i := uintptr(0); i < 9; i++ {
		q.enqueue(i)
	}
	// 9 pushes through 4-entry buffers: two full buffers handed off,
	// one entry still in the thread's current buffer.
	if got := qs.completedCount(); got != 2 {
		t.Fatalf("completed buffers = %d, want 2", got)
	}
	if q.isEmpty() {
		t.Fatalf("current buffer should hold the ninth entry")
	}
	q.flush()
	if got := qs.completedCount(); got != 3 {
		t.Fatalf("completed buffers after flush = %d, want 3", got)
	}
	if !q.isEmpty() {
		t.Fatalf("queue not empty after flush")
	}
	got := drainAll(qs)
	if len(got) != 9 {
		t.Fatalf("drained %d entries, want 9", len(got))
	}
	for i, e := range got {
		if e != uintptr(i) {
			t.Fatalf("entry %d = %d, want %d (hand-off order lost)", i, e, i)
		}
	}
	if got := qs.completedCount(); got != 0 {
		t.Fatalf("completed buffers after drain = %d, want 0", got)
	}
}

func TestPtrQueueFlushEmpty(t *testing.T) {
	qs, q := newTestQueue(4)
	// Flushing a queue that never allocated is a no-op.
	q.flush()
	if got := qs.completedCount(); got != 0 {
		t.Fatalf("completed buffers = %d, want 0", got)
	}

	// An emptied buffer goes to the free list, not the completed list.
	q.enqueue(7)
	q.flush()
	q.flush()
	if got := qs.completedCount(); got != 1 {
		t.Fatalf("completed buffers = %d, want 1", got)
	}
	if got := drainAll(qs); len(got) != 1 || got[0] != 7 {
		t.Fatalf("drained %v, want [7]", got)
	}
	// The drained buffer is recycled for the next allocation.
	q.enqueue(8)
	if got := qs.buffersReused.Load(); got == 0 {
		t.Fatalf("expected the free list to serve the new buffer")
	}
}

func TestSharedQueue(t *testing.T) {
	qs := new(ptrQueueSet)
	qs.init(4)

	// Shared enqueue honors the shared queue's active flag.
	qs.sharedEnqueue(1)
	if got := drainAll(qs); got != nil {
		t.Fatalf("inactive shared queue produced %v", got)
	}

	qs.shared.setActive(true)
	for i := uintptr(0); i < 6; i++ {
		qs.sharedEnqueue(i)
	}
	// One full buffer handed off, two entries still pending; drain
	// hands off the partial shared buffer itself.
	if got := qs.completedCount(); got != 1 {
		t.Fatalf("completed buffers = %d, want 1", got)
	}
	got := drainAll(qs)
	if len(got) != 6 {
		t.Fatalf("drained %d entries, want 6", len(got))
	}
	for i, e := range got {
		if e != uintptr(i) {
			t.Fatalf("entry %d = %d, want %d", i, e, i)
		}
	}
}

func TestDrainTransfersOwnership(t *testing.T) {
	qs, q := newTestQueue(2)
	q.enqueue(1)
	q.enqueue(2)
	q.flush()
	first := drainAll(qs)
	// Refill through the recycled buffer; the previously drained
	// entries must be unaffected.
	q.enqueue(3)
	q.enqueue(4)
	q.flush()
	second := drainAll(qs)
	if first[0] != 1 || first[1] != 2 {
		t.Fatalf("first drain mutated by refill: %v", first)
	}
	if second[0] != 3 || second[1] != 4 {
		t.Fatalf("second drain = %v, want [3 4]", second)
	}
}
