package deribit

import (
	"github.com/MNS-Vic/marketprism-sub006/exchanges/booksync"
	"github.com/MNS-Vic/marketprism-sub006/exchanges/orderbook"
)

// Policy implements booksync.Policy for Deribit's book channel. Deribit's change_id/prev_change_id pair maps directly
// onto the same exact-match-or-overlap continuity rule used for Binance
// derivatives: an update continues cleanly when its prev_change_id equals
// the previously applied change_id, or, failing that, when its own
// [prev_change_id, change_id] range starts at or before the previously
// applied change_id and ends after it.
// Deribit asserts no checksum.
type Policy struct{}

// Align reports whether u's change_id range straddles the snapshot's
// change_id.
func (Policy) Align(u *orderbook.Update, snapshotUpdateID int64) (discard, aligned bool) {
	if u.LastUpdateID <= snapshotUpdateID {
		return true, false
	}
	if u.FirstUpdateID <= snapshotUpdateID {
		return false, true
	}
	return false, false
}

// Continuity reports whether u continues from lastApplied either via an
// exact prev_change_id match or a covering overlap.
func (Policy) Continuity(u, lastApplied *orderbook.Update) (bool, booksync.ContinuityReason) {
	if u.HasPrevUpdateID() && *u.PrevUpdateID == lastApplied.LastUpdateID {
		return true, booksync.ContinuityPUMatch
	}
	if u.FirstUpdateID <= lastApplied.LastUpdateID && u.LastUpdateID > lastApplied.LastUpdateID {
		return true, booksync.ContinuityOverlapValid
	}
	return false, booksync.ContinuityGap
}

// VerifyChecksum is a no-op: Deribit asserts no checksum.
func (Policy) VerifyChecksum(*orderbook.Book, *orderbook.Update) error { return nil }

// HasChecksum reports false: Deribit never asserts checksums.
func (Policy) HasChecksum() bool { return false }
