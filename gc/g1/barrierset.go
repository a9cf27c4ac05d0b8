// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package g1

import (
	"sync/atomic"
	"unsafe"
)

const ptrSize = unsafe.Sizeof(uintptr(0))

// Config fixes the barrier layer's parameters at initialization.
// Neither value is runtime-mutable.
type Config struct {
	// HeapBase and HeapSize bound the address range the card table
	// covers. HeapBase must be card-aligned and HeapSize a non-zero
	// multiple of the card size.
	HeapBase uintptr
	HeapSize uintptr

	// CardShift is log2 of the bytes covered per card byte.
	// 0 means defaultCardShift.
	CardShift uint

	// BufferEntries is the capacity of each per-thread queue buffer.
	// 0 means defaultBufferEntries.
	BufferEntries int
}

// A BarrierSet is the dispatch object every reference store calls
// through. It owns the card table and the two queue sets and decides
// what bookkeeping a store requires.
type BarrierSet struct {
	ct        *cardTable
	satb      satbQueueSet
	dirtyCard dirtyCardQueueSet
	stats     barrierStats

	// fence is the target of the store-load fence RMW. Nothing reads
	// its value.
	fence uint32
}

func NewBarrierSet(cfg Config) *BarrierSet {
	shift := cfg.CardShift
	if shift == 0 {
		shift = defaultCardShift
	}
	bs := &BarrierSet{
		ct: newCardTable(cfg.HeapBase, cfg.HeapSize, shift),
	}
	bs.satb.init(cfg.BufferEntries)
	bs.dirtyCard.init(cfg.BufferEntries)
	return bs
}

// storeLoadFence orders the calling thread's prior stores before its
// subsequent loads. sync/atomic exposes no standalone fence, so this
// issues a sequentially consistent read-modify-write on a private
// word, which has the same effect on every supported platform. The
// post-write slow path needs this exactly once per clean-to-dirty
// transition: a scanner that observes the dirty byte is then
// guaranteed to also observe the pointer store that preceded it.
func (bs *BarrierSet) storeLoadFence() {
	atomic.AddUint32(&bs.fence, 0)
}

// PreWrite is the SATB barrier, called before a reference-field store
// overwrites old. t is the calling mutator thread, or nil for callers
// without one, which share a locked queue. Nil old values and stores
// outside a marking cycle produce nothing.
//
// old must be a valid reference to a live or about-to-die object;
// duplicates are fine, the marking consumer is idempotent.
func (bs *BarrierSet) PreWrite(t *Thread, old uintptr) {
	if old == 0 {
		bs.stats.satbFilteredNil.Add(1)
		return
	}
	if !bs.satb.isActive() {
		bs.stats.satbFilteredInactive.Add(1)
		return
	}
	if t != nil {
		t.satb.enqueue(old)
	} else {
		bs.satb.sharedEnqueue(old)
	}
	bs.stats.satbEnqueued.Add(1)
}

// PreWriteArray is the batched SATB barrier for array and object
// copies covering count reference slots starting at dst. When the
// destination is freshly allocated and uninitialized there is no prior
// value to snapshot and the destination is never dereferenced.
//
// Each slot is loaded with an ordered load; a concurrent mutation of
// the array during the walk means the barrier captures whichever value
// each slot held at its load, which satisfies the at-least-once
// snapshot requirement.
func (bs *BarrierSet) PreWriteArray(t *Thread, dst unsafe.Pointer, count int, uninitialized bool) {
	if uninitialized || count <= 0 {
		return
	}
	if !bs.satb.isActive() {
		return
	}
	for i := 0; i < count; i++ {
		slot := (*unsafe.Pointer)(unsafe.Add(dst, uintptr(i)*ptrSize))
		if old := uintptr(atomic.LoadPointer(slot)); old != 0 {
			bs.PreWrite(t, old)
		}
	}
}

// PostWrite is the card barrier, called after a reference-field store
// to addr completes. The already-dirty and young checks are the fast
// path: no fence, no enqueue. In a full runtime this check is what the
// compiler inlines at every store site.
func (bs *BarrierSet) PostWrite(t *Thread, addr uintptr) {
	card := bs.ct.byteFor(addr)
	switch *card {
	case cardDirty:
		bs.stats.cardsAlreadyDirty.Add(1)
		return
	case cardYoung:
		bs.stats.cardsYoungSkipped.Add(1)
		return
	}
	bs.postWriteSlow(t, card, bs.ct.indexFor(addr))
}

// postWriteSlow transitions a card to dirty and logs it. The fence
// must precede the re-check: a scanner that reads the dirty value
// written below must already be able to observe the pointer store this
// barrier follows. The re-check after the fence keeps a card from
// being enqueued twice when two threads race the same transition.
func (bs *BarrierSet) postWriteSlow(t *Thread, card *byte, idx uintptr) {
	if *card == cardYoung {
		throw("postWriteSlow: young card reached the slow path")
	}
	bs.storeLoadFence()
	if *card == cardDirty {
		bs.stats.fenceLostRaces.Add(1)
		return
	}
	*card = cardDirty
	bs.stats.cardsDirtied.Add(1)
	if t != nil {
		t.dirtyCard.enqueue(idx)
	} else {
		bs.dirtyCard.sharedEnqueue(idx)
	}
}

// Invalidate dirties and logs every card covering r, for whole-region
// operations such as block copies. Leading young cards are skipped
// with no synchronization; one fence covers all remaining transitions.
// An empty region is a no-op with no fence.
func (bs *BarrierSet) Invalidate(t *Thread, r MemRegion) {
	if r.isEmpty() {
		return
	}
	first, last := bs.ct.cardRange(r)
	i := first
	for ; i <= last && bs.ct.bytes[i] == cardYoung; i++ {
	}
	if i > last {
		return
	}
	bs.storeLoadFence()
	if t != nil {
		for ; i <= last; i++ {
			v := bs.ct.bytes[i]
			if v == cardYoung || v == cardDirty {
				continue
			}
			bs.ct.bytes[i] = cardDirty
			bs.stats.cardsDirtied.Add(1)
			t.dirtyCard.enqueue(i)
		}
		return
	}
	// Hold the shared-queue lock across the whole region rather than
	// once per card.
	bs.dirtyCard.lock.Lock()
	for ; i <= last; i++ {
		v := bs.ct.bytes[i]
		if v == cardYoung || v == cardDirty {
			continue
		}
		bs.ct.bytes[i] = cardDirty
		bs.stats.cardsDirtied.Add(1)
		bs.dirtyCard.sharedEnqueueLocked(i)
	}
	bs.dirtyCard.lock.Unlock()
}

// SetMarkingActive flips SATB capture at a marking-cycle boundary.
// The caller must hold every thread in threads (the complete set of
// attached mutator threads) at a global pause. Deactivation hands off
// all outstanding SATB buffers so the cycle's consumer sees every
// capture.
func (bs *BarrierSet) SetMarkingActive(active bool, threads []*Thread) {
	bs.satb.setActive(active, threads)
	if !active {
		bs.satb.flushAllThreads(threads)
	}
}

// MarkingActive reports whether SATB capture is on. The read is
// unsynchronized; see satbQueueSet.
func (bs *BarrierSet) MarkingActive() bool {
	return bs.satb.isActive()
}

// SATBDrain removes and returns all completed SATB buffers, one entry
// slice per buffer in hand-off order. Called by background collector
// threads; ownership of the entries transfers to the caller.
func (bs *BarrierSet) SATBDrain() [][]uintptr {
	return bs.satb.drain()
}

// DirtyCardDrain removes and returns all completed dirty-card buffers.
// Entries are card indexes; CardRegion maps one back to its heap span.
func (bs *BarrierSet) DirtyCardDrain() [][]uintptr {
	return bs.dirtyCard.drain()
}

// FlushDirtyCards hands off every thread's partial dirty-card buffer
// ahead of a collection pause's drain.
func (bs *BarrierSet) FlushDirtyCards(threads []*Thread) {
	bs.dirtyCard.flushAllThreads(threads)
}

// CardValue returns the state byte of addr's card.
func (bs *BarrierSet) CardValue(addr uintptr) byte {
	return bs.ct.cardValue(addr)
}

// CardIndex returns the card index covering addr.
func (bs *BarrierSet) CardIndex(addr uintptr) uintptr {
	return bs.ct.indexFor(addr)
}

// CardRegion returns the heap range summarized by card index idx.
func (bs *BarrierSet) CardRegion(idx uintptr) MemRegion {
	if idx >= uintptr(len(bs.ct.bytes)) {
		throw("CardRegion: card index out of range")
	}
	start := bs.ct.base + idx<<bs.ct.shift
	return MemRegion{Start: start, End: start + 1<<bs.ct.shift}
}

// SetYoungRegion classifies r's cards as young: stores into r are not
// logged because the young region is rescanned unconditionally. Young
// classification changes only during a global pause.
func (bs *BarrierSet) SetYoungRegion(r MemRegion) {
	bs.ct.setYoung(r)
}

// ClearYoungRegion reverts r's young cards to clean at a generation
// boundary. Runs only during a global pause.
func (bs *BarrierSet) ClearYoungRegion(r MemRegion) {
	bs.ct.clearYoung(r)
}

// ClearCards resets r's cards to clean after the remembered-set
// scanner has rescanned them. A card still referenced by an undrained
// queue entry must not be cleared until that entry is reprocessed.
func (bs *BarrierSet) ClearCards(r MemRegion) {
	bs.ct.clearRange(r)
}
