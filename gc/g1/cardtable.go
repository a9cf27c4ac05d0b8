// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package g1

// Card table: a byte-indexed summary of the heap. Each byte covers one
// card of 1<<shift heap bytes and is the sole source of truth for
// "does this card need rescanning".
//
// There is no locking. Different cards are independent bytes, and
// concurrent writers to the same card only ever store the terminal
// dirty value, so plain stores suffice.

const (
	// cardClean is the zero value so a fresh table starts all clean.
	cardClean byte = 0
	cardDirty byte = 1

	// cardYoung marks a card in the region currently being allocated
	// into. Young cards are exempt from dirtying: the young region is
	// rescanned unconditionally at the next cycle regardless of card
	// state.
	cardYoung byte = 8
)

// defaultCardShift gives 512-byte cards.
const defaultCardShift = 9

// A MemRegion is a half-open address range [Start, End).
type MemRegion struct {
	Start uintptr
	End   uintptr
}

func (r MemRegion) isEmpty() bool {
	return r.Start >= r.End
}

type cardTable struct {
	base  uintptr // lowest covered heap address
	limit uintptr // one past the highest covered heap address
	shift uint
	bytes []byte
}

func newCardTable(base, size uintptr, shift uint) *cardTable {
	if shift < 3 || shift > 32 {
		throw("newCardTable: bad card shift")
	}
	cardSize := uintptr(1) << shift
	if base&(cardSize-1) != 0 {
		throw("newCardTable: base not card-aligned")
	}
	if size == 0 || size&(cardSize-1) != 0 {
		throw("newCardTable: size not a multiple of the card size")
	}
	return &cardTable{
		base:  base,
		limit: base + size,
		shift: shift,
		bytes: make([]byte, size>>shift),
	}
}

// indexFor returns the card index covering addr.
func (ct *cardTable) indexFor(addr uintptr) uintptr {
	if addr < ct.base || addr >= ct.limit {
		throw("cardTable: address out of covered range")
	}
	return (addr - ct.base) >> ct.shift
}

// byteFor returns the card byte covering addr.
func (ct *cardTable) byteFor(addr uintptr) *byte {
	return &ct.bytes[ct.indexFor(addr)]
}

func (ct *cardTable) cardValue(addr uintptr) byte {
	return ct.bytes[ct.indexFor(addr)]
}

// markDirty unconditionally transitions addr's card to dirty. Callers
// on the barrier slow path re-check the byte under the fence first;
// this is the raw store.
func (ct *cardTable) markDirty(addr uintptr) {
	ct.bytes[ct.indexFor(addr)] = cardDirty
}

// cardRange returns the inclusive card index range covering r.
// r must be non-empty and inside the covered range.
func (ct *cardTable) cardRange(r MemRegion) (first, last uintptr) {
	return ct.indexFor(r.Start), ct.indexFor(r.End - 1)
}

// setYoung classifies every card covering r as young. Called by the
// region allocator when a region becomes the active allocation region,
// during a global pause, so it cannot race barrier stores into r.
func (ct *cardTable) setYoung(r MemRegion) {
	ct.fillRange(r, cardYoung)
}

// clearYoung reverts young cards to clean at a generation boundary.
// Like setYoung, runs only during a global pause.
func (ct *cardTable) clearYoung(r MemRegion) {
	if r.isEmpty() {
		return
	}
	first, last := ct.cardRange(r)
	for i := first; i <= last; i++ {
		if ct.bytes[i] == cardYoung {
			ct.bytes[i] = cardClean
		}
	}
}

// clearRange resets every card covering r to clean. Used by the
// remembered-set scanner after it has rescanned the cards; a card must
// not be cleared while its address is still reachable from a buffered
// queue entry that has not been reprocessed.
func (ct *cardTable) clearRange(r MemRegion) {
	ct.fillRange(r, cardClean)
}

func (ct *cardTable) fillRange(r MemRegion, v byte) {
	if r.isEmpty() {
		return
	}
	first, last := ct.cardRange(r)
	for i := first; i <= last; i++ {
		ct.bytes[i] = v
	}
}
