// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package g1

// A Thread holds a mutator thread's barrier state: one SATB queue and
// one dirty-card queue, each owned exclusively by that thread. Threads
// are created by NewThread, announced with OnAttach before they become
// visible to the rest of the system, and retired with OnDetach before
// their memory is reclaimed.
type Thread struct {
	satb      ptrQueue
	dirtyCard ptrQueue
}

// NewThread returns barrier state for a new mutator thread. The
// dirty-card queue is active from birth: remembered-set logging is
// unconditional. The SATB queue starts inactive; OnAttach activates it
// if a marking cycle is underway.
func (bs *BarrierSet) NewThread() *Thread {
	t := &Thread{}
	t.satb.qset = &bs.satb.ptrQueueSet
	t.dirtyCard.qset = &bs.dirtyCard.ptrQueueSet
	t.dirtyCard.setActive(true)
	return t
}

// OnAttach initializes t's queues just before t is added to the thread
// list. It must run outside any global pause.
//
// The global marking flag only changes during a pause, but reading it
// here may still race a cycle that is just starting: a thread attached
// at that moment can miss capturing a few early pre-values. That
// window is accepted, not fixed; the marking algorithm's root re-scan
// covers it, and closing it here would put blocking on the attach
// path. We cannot simply activate the queue at thread creation
// instead, because a pause can fall between creation and attach.
func (bs *BarrierSet) OnAttach(t *Thread) {
	if t.satb.isActive() {
		throw("OnAttach: SATB queue should not be active")
	}
	if !t.satb.isEmpty() {
		throw("OnAttach: SATB queue should be empty")
	}
	if !t.dirtyCard.isActive() {
		throw("OnAttach: dirty-card queue should be active")
	}
	if bs.satb.isActive() {
		t.satb.setActive(true)
	}
}

// OnDetach retires t: both queues are flushed unconditionally, even if
// empty, so no entries are stranded and no backing storage is left
// behind on a thread that is about to disappear. t must not execute
// barriers afterwards.
func (bs *BarrierSet) OnDetach(t *Thread) {
	t.satb.flush()
	t.dirtyCard.flush()
}
