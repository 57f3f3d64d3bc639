package orderbook

import "fmt"

// Apply mutates book in place with update's deltas: for each delta, a zero
// quantity removes the price (a no-op if absent), otherwise the price is
// upserted. After all deltas are applied, both sides are truncated to the
// book's depth limit and the book invariants are rechecked. A crossed book
// after application is a fatal invariant failure (wraps ErrCrossedBook);
// the caller (the owning symbol state machine) must transition to RESYNC.
//
// Apply does not itself validate sequence continuity - that is the state
// machine's job - it only ever mutates a book it has already decided
// is safe to apply to.
func Apply(book *Book, update *Update) error {
	for _, lvl := range update.BidDeltas {
		book.Bids.Upsert(lvl)
	}
	for _, lvl := range update.AskDeltas {
		book.Asks.Upsert(lvl)
	}

	book.Bids.Truncate(book.DepthLimit)
	book.Asks.Truncate(book.DepthLimit)

	if update.LastUpdateID > book.LastUpdateID {
		book.LastUpdateID = update.LastUpdateID
	}
	if !update.EventTime.IsZero() {
		book.Timestamp = update.EventTime
	}

	if err := book.Verify(); err != nil {
		return fmt.Errorf("apply update %d..%d: %w", update.FirstUpdateID, update.LastUpdateID, err)
	}
	return nil
}
