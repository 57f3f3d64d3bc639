package booksync

import "github.com/MNS-Vic/marketprism-sub006/exchanges/orderbook"

// ContinuityReason classifies how (or whether) an update was judged
// continuous with the previously applied one. Binance derivatives streams
// can satisfy continuity two different ways; the reason lets the operator see which dominates in
// practice without it affecting the hot-path decision.
type ContinuityReason uint8

// Continuity reasons.
const (
	ContinuityGap ContinuityReason = iota
	ContinuityExact
	ContinuityPUMatch
	ContinuityOverlapValid
)

// Policy is the capability set an exchange-specific package
// implements: how to align a buffered update against a fresh snapshot, how
// to judge sequence continuity between consecutive applied updates, and
// (OKX only) how to verify the post-apply checksum. The symbol state
// machine selects one Policy per (exchange, market type) at construction
// time and never branches on exchange identity itself.
type Policy interface {
	// Align reports how a buffered update relates to a snapshot carrying
	// snapshotUpdateID. discard is true when the update is strictly older
	// than the snapshot and must be dropped. aligned is true when this is
	// the minimal update whose id range straddles the snapshot - the first
	// one that should be applied.
	Align(u *orderbook.Update, snapshotUpdateID int64) (discard, aligned bool)

	// Continuity reports whether u continues cleanly from lastApplied, the
	// most recently applied update (never nil when Continuity is called).
	Continuity(u, lastApplied *orderbook.Update) (ok bool, reason ContinuityReason)

	// VerifyChecksum validates the post-apply book state against whatever
	// checksum field u carries. Exchanges with no checksum concept
	// (Binance) always return nil.
	VerifyChecksum(book *orderbook.Book, u *orderbook.Update) error

	// HasChecksum reports whether this exchange asserts checksums at all,
	// purely for stats/observability labelling.
	HasChecksum() bool
}
