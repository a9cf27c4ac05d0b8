// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package g1

import "sync/atomic"

// satbQueueSet collects the pre-write snapshot buffers.
//
// activeFlag mirrors whether a marking cycle is in progress. It is
// flipped only inside a global pause via setActive, but read with no
// synchronization on every pre-write barrier: a thread attaching right
// at a cycle start may read the old value and miss a handful of early
// captures. The marking algorithm tolerates this by re-scanning roots;
// see BarrierSet.OnAttach.
type satbQueueSet struct {
	ptrQueueSet
	activeFlag atomic.Bool
}

func (qs *satbQueueSet) isActive() bool {
	return qs.activeFlag.Load()
}

// setActive flips SATB capture globally and on every registered
// mutator thread's queue. The caller must hold all threads at a global
// pause: this is the only place a per-thread SATB active flag changes
// while the thread is visible, and it must not race that thread's
// stores.
//
// Per-thread flags are asserted to mirror the global flag before the
// flip; a mismatch means a queue was toggled behind the set's back.
func (qs *satbQueueSet) setActive(active bool, threads []*Thread) {
	was := qs.activeFlag.Swap(active)
	if was == active {
		throw("satbQueueSet: double activation or double deactivation")
	}
	for _, t := range threads {
		if t.satb.isActive() != was {
			throw("satbQueueSet: thread SATB queue out of step with global flag")
		}
		t.satb.setActive(active)
	}
	qs.lock.Lock()
	qs.shared.setActive(active)
	qs.lock.Unlock()
}

// flushAllThreads hands off every thread's current SATB buffer plus
// the shared buffer. Called at marking-cycle boundaries, inside the
// same pause that deactivates capture, so no thread can be pushing
// concurrently.
func (qs *satbQueueSet) flushAllThreads(threads []*Thread) {
	for _, t := range threads {
		t.satb.flush()
	}
	qs.lock.Lock()
	qs.flushSharedLocked()
	qs.lock.Unlock()
}
