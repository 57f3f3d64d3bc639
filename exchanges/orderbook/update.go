package orderbook

import "time"

// Update is the canonical incremental orderbook delta every exchange
// decoder normalizes its wire payload into. Optional exchange-specific
// fields (PrevUpdateID, Checksum) are explicit pointers rather than a
// generic bag, so the sequence validator can tell "absent" from "zero".
type Update struct {
	Exchange string
	Symbol   string

	// FirstUpdateID/LastUpdateID is the inclusive range of stream update ids
	// this message covers (U/u for Binance, seqId/seqId for OKX).
	FirstUpdateID int64
	LastUpdateID  int64

	// PrevUpdateID is Binance derivatives' pu or OKX's prevSeqId: the
	// expected prior LastUpdateID. Nil when the exchange doesn't carry it
	// (Binance spot).
	PrevUpdateID *int64

	BidDeltas Levels
	AskDeltas Levels

	// Checksum is OKX's per-update CRC32 of the post-apply top-25 book.
	Checksum *int32

	EventTime time.Time
}

// HasPrevUpdateID reports whether the exchange carried an explicit
// continuity field on this update.
func (u *Update) HasPrevUpdateID() bool {
	return u.PrevUpdateID != nil
}

// HasChecksum reports whether the exchange asserts a checksum on this update.
func (u *Update) HasChecksum() bool {
	return u.Checksum != nil
}
