package binance

import (
	"github.com/MNS-Vic/marketprism-sub006/exchanges/booksync"
	"github.com/MNS-Vic/marketprism-sub006/exchanges/orderbook"
)

// SpotPolicy implements booksync.Policy for Binance spot diff depth streams:
// alignment requires U <= lastUpdateId+1 <= u against the
// snapshot, and continuity requires each update's U to be exactly the
// previous update's u+1. Spot never carries a checksum.
type SpotPolicy struct{}

// Align reports whether u straddles the snapshot's lastUpdateId.
func (SpotPolicy) Align(u *orderbook.Update, snapshotUpdateID int64) (discard, aligned bool) {
	if u.LastUpdateID <= snapshotUpdateID {
		return true, false
	}
	if u.FirstUpdateID <= snapshotUpdateID+1 && u.LastUpdateID >= snapshotUpdateID+1 {
		return false, true
	}
	return false, false
}

// Continuity reports whether u.FirstUpdateID picks up exactly where
// lastApplied.LastUpdateID left off.
func (SpotPolicy) Continuity(u, lastApplied *orderbook.Update) (bool, booksync.ContinuityReason) {
	if u.FirstUpdateID == lastApplied.LastUpdateID+1 {
		return true, booksync.ContinuityExact
	}
	return false, booksync.ContinuityGap
}

// VerifyChecksum is a no-op: Binance spot streams assert no checksum.
func (SpotPolicy) VerifyChecksum(*orderbook.Book, *orderbook.Update) error { return nil }

// HasChecksum reports false: Binance never asserts checksums.
func (SpotPolicy) HasChecksum() bool { return false }

// DerivativesPolicy implements booksync.Policy for Binance USDⓈ-M/COIN-M
// futures diff depth streams: the same
// U/u alignment rule as spot, but continuity accepts either an exact
// pu-match against the previous update's final id, or an "overlap-valid"
// fallback when the update's own U..u range starts at or before
// lastApplied.LastUpdateID and ends after it (the stream occasionally repeats a few ids
// across consecutive messages under load). A gap is declared only when
// neither holds.
type DerivativesPolicy struct{}

// Align reports whether u straddles the snapshot's lastUpdateId, identical
// to the spot rule.
func (DerivativesPolicy) Align(u *orderbook.Update, snapshotUpdateID int64) (discard, aligned bool) {
	return SpotPolicy{}.Align(u, snapshotUpdateID)
}

// Continuity reports whether u continues from lastApplied either via an
// exact pu match or a covering overlap.
func (DerivativesPolicy) Continuity(u, lastApplied *orderbook.Update) (bool, booksync.ContinuityReason) {
	if u.HasPrevUpdateID() && *u.PrevUpdateID == lastApplied.LastUpdateID {
		return true, booksync.ContinuityPUMatch
	}
	if u.FirstUpdateID <= lastApplied.LastUpdateID && u.LastUpdateID > lastApplied.LastUpdateID {
		return true, booksync.ContinuityOverlapValid
	}
	return false, booksync.ContinuityGap
}

// VerifyChecksum is a no-op: Binance derivatives streams assert no checksum.
func (DerivativesPolicy) VerifyChecksum(*orderbook.Book, *orderbook.Update) error { return nil }

// HasChecksum reports false: Binance never asserts checksums.
func (DerivativesPolicy) HasChecksum() bool { return false }
