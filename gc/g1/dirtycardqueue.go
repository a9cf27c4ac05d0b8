// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package g1

// dirtyCardQueueSet collects the post-write card buffers. Entries are
// card indexes into the barrier set's card table.
//
// Unlike SATB queues, dirty-card queues are active from thread
// creation and are never deactivated: remembered-set maintenance is
// unconditional, not tied to a marking cycle.
type dirtyCardQueueSet struct {
	ptrQueueSet
}

func (qs *dirtyCardQueueSet) init(bufEntries int) {
	qs.ptrQueueSet.init(bufEntries)
	qs.shared.setActive(true)
}

// flushAllThreads hands off every thread's current dirty-card buffer
// plus the shared buffer, so a collection pause sees every card logged
// before it. Runs only inside a global pause.
func (qs *dirtyCardQueueSet) flushAllThreads(threads []*Thread) {
	for _, t := range threads {
		t.dirtyCard.flush()
	}
	qs.lock.Lock()
	qs.flushSharedLocked()
	qs.lock.Unlock()
}
