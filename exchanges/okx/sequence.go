package okx

import (
	"fmt"

	"github.com/MNS-Vic/marketprism-sub006/exchanges/booksync"
	"github.com/MNS-Vic/marketprism-sub006/exchanges/orderbook"
)

// Policy implements booksync.Policy for OKX books/books-l2-tbt streams:
// alignment and continuity both key off the single seqId
// sequence number, and every applied update's post-apply top-25 checksum
// must match the exchange-asserted value. A prevSeqId of -1 means OKX
// itself treats the update as the first of a new sequence (its own
// resync signal), which this policy accepts unconditionally.
type Policy struct{}

// Align reports whether u's seqId (carried in both FirstUpdateID and
// LastUpdateID) is at or after the snapshot's seqId. The minimal
// non-discarded update must chain directly from the snapshot: its
// prevSeqId must be at or before snapshotUpdateID (or -1, OKX's own
// resync marker), otherwise a gap exists between the snapshot and the
// buffered stream and alignment is impossible.
func (Policy) Align(u *orderbook.Update, snapshotUpdateID int64) (discard, aligned bool) {
	if u.LastUpdateID <= snapshotUpdateID {
		return true, false
	}
	if u.HasPrevUpdateID() && (*u.PrevUpdateID == -1 || *u.PrevUpdateID <= snapshotUpdateID) {
		return false, true
	}
	return false, false
}

// Continuity reports whether u's prevSeqId chains from lastApplied's seqId.
func (Policy) Continuity(u, lastApplied *orderbook.Update) (bool, booksync.ContinuityReason) {
	if !u.HasPrevUpdateID() {
		return false, booksync.ContinuityGap
	}
	if *u.PrevUpdateID == -1 || *u.PrevUpdateID == lastApplied.LastUpdateID {
		return true, booksync.ContinuityExact
	}
	return false, booksync.ContinuityGap
}

// VerifyChecksum recomputes the book's top-25 CRC32 and compares it
// against the checksum u asserts.
func (Policy) VerifyChecksum(book *orderbook.Book, u *orderbook.Update) error {
	if !u.HasChecksum() {
		return nil
	}
	got := book.Checksum()
	if got != *u.Checksum {
		return fmt.Errorf("okx checksum mismatch: want %s got %s",
			orderbook.FormatChecksum(*u.Checksum), orderbook.FormatChecksum(got))
	}
	return nil
}

// HasChecksum reports true: OKX asserts a checksum on every book push.
func (Policy) HasChecksum() bool { return true }
