// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package g1

import "testing"

func TestOnAttach(t *testing.T) {
	t.Run("NoMarking", func(t *testing.T) {
		bs := newTestBarrierSet()
		th := bs.NewThread()
		bs.OnAttach(th)
		if th.satb.isActive() {
			t.Fatalf("SATB queue active with no marking cycle")
		}
		if !th.dirtyCard.isActive() {
			t.Fatalf("dirty-card queue inactive after attach")
		}
	})

	t.Run("DuringMarking", func(t *testing.T) {
		bs := newTestBarrierSet()
		bs.SetMarkingActive(true, nil)
		th := bs.NewThread()
		bs.OnAttach(th)
		if !th.satb.isActive() {
			t.Fatalf("SATB queue inactive though marking is underway")
		}
		// The late-attached thread participates in deactivation.
		bs.SetMarkingActive(false, []*Thread{th})
		if th.satb.isActive() {
			t.Fatalf("SATB queue still active after cycle end")
		}
	})

	t.Run("DoubleAttach", func(t *testing.T) {
		bs := newTestBarrierSet()
		bs.SetMarkingActive(true, nil)
		th := bs.NewThread()
		bs.OnAttach(th)
		defer func() {
			if recover() == nil {
				t.Fatalf("second OnAttach of an active thread did not throw")
			}
		}()
		bs.OnAttach(th)
	})
}

func TestOnDetachFlushes(t *testing.T) {
	bs := newTestBarrierSet()
	th := bs.NewThread()
	bs.OnAttach(th)
	bs.SetMarkingActive(true, []*Thread{th})

	bs.PreWrite(th, 0xa10)
	bs.PostWrite(th, cardAddr(3))
	if th.satb.isEmpty() || th.dirtyCard.isEmpty() {
		t.Fatalf("expected pending entries before detach")
	}

	bs.OnDetach(th)
	if !th.satb.isEmpty() || !th.dirtyCard.isEmpty() {
		t.Fatalf("queues not empty after detach")
	}
	if got := flatten(bs.SATBDrain()); len(got) != 1 || got[0] != 0xa10 {
		t.Fatalf("SATB drain after detach = %v, want [0xa10]", got)
	}
	if got := flatten(bs.DirtyCardDrain()); len(got) != 1 || got[0] != 3 {
		t.Fatalf("dirty-card drain after detach = %v, want [3]", got)
	}
}

func TestDetachReleasesStorage(t *testing.T) {
	bs := newTestBarrierSet()
	th := bs.NewThread()
	bs.OnAttach(th)

	// Detach with an empty dirty-card buffer returns it to the free
	// list instead of the completed list.
	bs.PostWrite(th, cardAddr(0))
	bs.FlushDirtyCards([]*Thread{th})
	bs.DirtyCardDrain()
	bs.PostWrite(th, cardAddr(1)) // reacquire a buffer
	bs.OnDetach(th)

	th2 := bs.NewThread()
	bs.OnAttach(th2)
	bs.PostWrite(th2, cardAddr(2))
	if got := bs.Stats().DirtyCardBuffersReused; got == 0 {
		t.Fatalf("free list never served a buffer")
	}
}

func TestSetMarkingActiveAsserts(t *testing.T) {
	bs := newTestBarrierSet()
	bs.SetMarkingActive(true, nil)
	defer func() {
		if recover() == nil {
			t.Fatalf("double activation did not throw")
		}
	}()
	bs.SetMarkingActive(true, nil)
}
