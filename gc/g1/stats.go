package g1

import "sync/atomic"

// Counts to get a better idea of what the barrier fast paths filter.
type barrierStats struct {
	satbEnqueued         atomic.Uint64
	satbFilteredNil      atomic.Uint64
	satbFilteredInactive atomic.Uint64
	cardsDirtied         atomic.Uint64
	cardsAlreadyDirty    atomic.Uint64
	cardsYoungSkipped    atomic.Uint64
	fenceLostRaces       atomic.Uint64
}

// BarrierStats is a point-in-time copy of the barrier counters.
type BarrierStats struct {
	SATBEnqueued         uint64
	SATBFilteredNil      uint64
	SATBFilteredInactive uint64
	CardsDirtied         uint64
	CardsAlreadyDirty    uint64
	CardsYoungSkipped    uint64

	// FenceLostRaces counts slow-path entries that found the card
	// already dirty after the fence: another thread won the
	// transition between the inline check and the re-check.
	FenceLostRaces uint64

	SATBBuffersHandedOff      uint64
	SATBBuffersReused         uint64
	DirtyCardBuffersHandedOff uint64
	DirtyCardBuffersReused    uint64
}

// Stats returns a snapshot of the barrier counters.
func (bs *BarrierSet) Stats() BarrierStats {
	return BarrierStats{
		SATBEnqueued:         bs.stats.satbEnqueued.Load(),
		SATBFilteredNil:      bs.stats.satbFilteredNil.Load(),
		SATBFilteredInactive: bs.stats.satbFilteredInactive.Load(),
		CardsDirtied:         bs.stats.cardsDirtied.Load(),
		CardsAlreadyDirty:    bs.stats.cardsAlreadyDirty.Load(),
		CardsYoungSkipped:    bs.stats.cardsYoungSkipped.Load(),
		FenceLostRaces:       bs.stats.fenceLostRaces.Load(),

		SATBBuffersHandedOff:      bs.satb.buffersHandedOff.Load(),
		SATBBuffersReused:         bs.satb.buffersReused.Load(),
		DirtyCardBuffersHandedOff: bs.dirtyCard.buffersHandedOff.Load(),
		DirtyCardBuffersReused:    bs.dirtyCard.buffersReused.Load(),
	}
}
