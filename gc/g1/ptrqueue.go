// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// This implements the pointer queues that decouple the barrier fast
// paths from the global bookkeeping.
//
// A ptrQueue is owned exclusively by one thread and appends to a
// fixed-capacity ptrBuffer with no synchronization. When the buffer
// fills, it is handed off, intact, to the owning ptrQueueSet and a
// fresh buffer takes its place. The queue set keeps the completed
// buffers on a linked list under a dedicated lock until a background
// collector thread drains them, and recycles drained buffers through a
// free list so the hand-off path does not allocate in steady state.
//
// Each queue set also carries one shared queue for callers without a
// dedicated per-thread buffer (internal worker threads). The shared
// queue is only ever touched with the set's lock held.

package g1

import (
	"sync"
	"sync/atomic"
)

// defaultBufferEntries is the per-buffer capacity when the
// configuration does not choose one. Higher values amortize hand-off
// overhead but increase drain latency and cache footprint.
const defaultBufferEntries = 256

// A ptrBuffer is an append-only, fixed-capacity run of entries. Once
// handed to a queue set the originating thread never touches it again.
type ptrBuffer struct {
	next *ptrBuffer // completed list or free list link
	n    int
	data []uintptr
}

func (b *ptrBuffer) full() bool {
	return b.n == len(b.data)
}

func (b *ptrBuffer) reset() {
	b.next = nil
	b.n = 0
}

// A ptrQueue is the per-thread end of a queue set.
//
// active gates whether enqueue does anything. It is toggled only when
// no store from the owning thread can race the toggle: before the
// thread is published, or during a global pause.
type ptrQueue struct {
	qset   *ptrQueueSet
	active bool
	buf    *ptrBuffer
}

func (pq *ptrQueue) isActive() bool {
	return pq.active
}

func (pq *ptrQueue) setActive(active bool) {
	pq.active = active
}

func (pq *ptrQueue) isEmpty() bool {
	return pq.buf == nil || pq.buf.n == 0
}

// tryPush appends e to the current buffer. It reports false when there
// is no buffer or the buffer is full, in which case the caller must
// hand off and retry.
func (pq *ptrQueue) tryPush(e uintptr) bool {
	b := pq.buf
	if b == nil || b.full() {
		return false
	}
	b.data[b.n] = e
	b.n++
	return true
}

// enqueue appends e if the queue is active. Only the owning thread may
// call this.
func (pq *ptrQueue) enqueue(e uintptr) {
	if !pq.active {
		return
	}
	pq.enqueueKnownActive(e)
}

func (pq *ptrQueue) enqueueKnownActive(e uintptr) {
	if pq.tryPush(e) {
		return
	}
	if b := pq.buf; b != nil {
		pq.qset.enqueueCompleted(b)
	}
	pq.buf = pq.qset.allocBuffer()
	if !pq.tryPush(e) {
		throw("ptrQueue: push failed on a fresh buffer")
	}
}

// flush hands the current buffer to the queue set even when it is not
// full, and drops the queue's reference to it so the backing storage
// is released. An empty buffer goes back to the free list rather than
// the completed list. Used on thread detach and at marking-cycle
// boundaries so no entries are stranded on an about-to-vanish thread.
func (pq *ptrQueue) flush() {
	b := pq.buf
	if b == nil {
		return
	}
	pq.buf = nil
	if b.n == 0 {
		pq.qset.releaseBuffer(b)
		return
	}
	pq.qset.enqueueCompleted(b)
}

// A ptrQueueSet is the shared side of a class of queues: the list of
// completed buffers awaiting drain, the free list they are recycled
// through, and the shared queue for non-owning callers. All mutable
// state is guarded by lock, which is held only for O(1) operations
// (the drain copy happens after the list has been unlinked).
type ptrQueueSet struct {
	lock          sync.Mutex
	completedHead *ptrBuffer
	completedTail *ptrBuffer
	ncompleted    int
	freeList      *ptrBuffer
	nfree         int

	// shared is the queue used by callers without a dedicated buffer.
	// Touched only with lock held.
	shared ptrQueue

	bufEntries int

	buffersHandedOff atomic.Uint64
	buffersReused    atomic.Uint64
}

func (qs *ptrQueueSet) init(bufEntries int) {
	if bufEntries <= 0 {
		bufEntries = defaultBufferEntries
	}
	qs.bufEntries = bufEntries
	qs.shared.qset = qs
}

func (qs *ptrQueueSet) allocBuffer() *ptrBuffer {
	qs.lock.Lock()
	b := qs.allocBufferLocked()
	qs.lock.Unlock()
	return b
}

func (qs *ptrQueueSet) allocBufferLocked() *ptrBuffer {
	if b := qs.freeList; b != nil {
		qs.freeList = b.next
		qs.nfree--
		b.reset()
		qs.buffersReused.Add(1)
		return b
	}
	return &ptrBuffer{data: make([]uintptr, qs.bufEntries)}
}

// releaseBuffer returns b to the free list for reuse.
func (qs *ptrQueueSet) releaseBuffer(b *ptrBuffer) {
	b.reset()
	qs.lock.Lock()
	b.next = qs.freeList
	qs.freeList = b
	qs.nfree++
	qs.lock.Unlock()
}

// enqueueCompleted appends a completed buffer to the shared list.
// Ownership of b transfers to the set; the originating thread must not
// touch it afterwards.
func (qs *ptrQueueSet) enqueueCompleted(b *ptrBuffer) {
	qs.lock.Lock()
	qs.enqueueCompletedLocked(b)
	qs.lock.Unlock()
}

func (qs *ptrQueueSet) enqueueCompletedLocked(b *ptrBuffer) {
	if debugQueue && b.n == 0 {
		throw("enqueueCompleted: empty buffer")
	}
	b.next = nil
	if qs.completedTail == nil {
		qs.completedHead = b
	} else {
		qs.completedTail.next = b
	}
	qs.completedTail = b
	qs.ncompleted++
	qs.buffersHandedOff.Add(1)
}

func (qs *ptrQueueSet) completedCount() int {
	qs.lock.Lock()
	n := qs.ncompleted
	qs.lock.Unlock()
	return n
}

// sharedEnqueue appends e through the shared queue, for callers
// without a dedicated buffer. The shared queue's active flag is
// honored under the same lock.
func (qs *ptrQueueSet) sharedEnqueue(e uintptr) {
	qs.lock.Lock()
	if qs.shared.active {
		qs.sharedEnqueueLocked(e)
	}
	qs.lock.Unlock()
}

// flushSharedLocked hands off the shared queue's current buffer, if
// any, routing an empty one straight to the free list.
func (qs *ptrQueueSet) flushSharedLocked() {
	b := qs.shared.buf
	if b == nil {
		return
	}
	qs.shared.buf = nil
	if b.n == 0 {
		b.next = qs.freeList
		qs.freeList = b
		qs.nfree++
		return
	}
	qs.enqueueCompletedLocked(b)
}

func (qs *ptrQueueSet) sharedEnqueueLocked(e uintptr) {
	if qs.shared.tryPush(e) {
		return
	}
	if b := qs.shared.buf; b != nil {
		qs.enqueueCompletedLocked(b)
	}
	qs.shared.buf = qs.allocBufferLocked()
	if !qs.shared.tryPush(e) {
		throw("ptrQueueSet: shared push failed on a fresh buffer")
	}
}

// drain removes all completed buffers and returns their entries, one
// slice per buffer, in hand-off order. A partially filled shared
// buffer is handed off first so internal-thread entries are not
// stranded. The backing buffers are recycled to the free list;
// ownership of the returned entries is the caller's.
func (qs *ptrQueueSet) drain() [][]uintptr {
	qs.lock.Lock()
	qs.flushSharedLocked()
	head := qs.completedHead
	qs.completedHead = nil
	qs.completedTail = nil
	qs.ncompleted = 0
	qs.lock.Unlock()

	var out [][]uintptr
	for b := head; b != nil; {
		next := b.next
		entries := make([]uintptr, b.n)
		copy(entries, b.data[:b.n])
		out = append(out, entries)
		qs.releaseBuffer(b)
		b = next
	}
	return out
}
