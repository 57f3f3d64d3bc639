package orderbook

import (
	"errors"
	"fmt"
	"time"

	"github.com/MNS-Vic/marketprism-sub006/internal/markettype"
)

// ErrCrossedBook is returned when the best bid is not strictly below the
// best ask after an apply - an unconditional invariant failure.
var ErrCrossedBook = errors.New("orderbook: crossed book")

// ErrDepthExceeded is returned when a side retains more levels than its
// configured depth limit after truncation - should be unreachable in
// practice since Apply truncates before returning.
var ErrDepthExceeded = errors.New("orderbook: depth limit exceeded")

// Book is the per (exchange, symbol) orderbook replica.
type Book struct {
	Exchange     string
	MarketType   markettype.Item
	Symbol       string
	Bids         *Side
	Asks         *Side
	LastUpdateID int64
	Timestamp    time.Time
	DepthLimit   int
}

// New constructs an empty book ready to receive a snapshot.
func New(exchange string, marketType markettype.Item, sym string, depthLimit int) *Book {
	return &Book{
		Exchange:   exchange,
		MarketType: marketType,
		Symbol:     sym,
		Bids:       NewSide(true),
		Asks:       NewSide(false),
		DepthLimit: depthLimit,
	}
}

// LoadSnapshot installs a full snapshot, replacing any existing ladder
// contents, and truncates to the configured depth limit.
func (b *Book) LoadSnapshot(bids, asks Levels, updateID int64, ts time.Time) error {
	if err := b.Bids.Load(bids); err != nil {
		return fmt.Errorf("load bids: %w", err)
	}
	if err := b.Asks.Load(asks); err != nil {
		return fmt.Errorf("load asks: %w", err)
	}
	b.Bids.Truncate(b.DepthLimit)
	b.Asks.Truncate(b.DepthLimit)
	b.LastUpdateID = updateID
	b.Timestamp = ts
	return b.Verify()
}

// Verify checks the book invariants: no crossed book, and
// depth limits respected on both sides.
func (b *Book) Verify() error {
	bestBid, hasBid := b.Bids.Best()
	bestAsk, hasAsk := b.Asks.Best()
	if hasBid && hasAsk && !bestBid.Price.LessThan(bestAsk.Price) {
		return fmt.Errorf("%w: best_bid=%s best_ask=%s", ErrCrossedBook, bestBid.Price, bestAsk.Price)
	}
	if b.DepthLimit > 0 && (b.Bids.Len() > b.DepthLimit || b.Asks.Len() > b.DepthLimit) {
		return ErrDepthExceeded
	}
	return nil
}

// Clone returns an immutable deep copy of the book, suitable for handing to
// readers outside the owning worker.
func (b *Book) Clone() *Book {
	return &Book{
		Exchange:     b.Exchange,
		MarketType:   b.MarketType,
		Symbol:       b.Symbol,
		Bids:         b.Bids.Clone(),
		Asks:         b.Asks.Clone(),
		LastUpdateID: b.LastUpdateID,
		Timestamp:    b.Timestamp,
		DepthLimit:   b.DepthLimit,
	}
}

// Message is the outbound canonical JSON payload published for a book:
// prices/quantities as decimal strings, timestamp as ISO-8601
// UTC, bids/asks truncated to DepthLimit and sorted.
type Message struct {
	Exchange     string      `json:"exchange"`
	MarketType   string      `json:"market_type"`
	Symbol       string      `json:"symbol"`
	Timestamp    string      `json:"timestamp"`
	LastUpdateID int64       `json:"last_update_id"`
	Bids         [][2]string `json:"bids"`
	Asks         [][2]string `json:"asks"`
}

// ToMessage renders the book into its outbound wire form.
func (b *Book) ToMessage() Message {
	return Message{
		Exchange:     b.Exchange,
		MarketType:   b.MarketType.String(),
		Symbol:       b.Symbol,
		Timestamp:    b.Timestamp.UTC().Format(time.RFC3339Nano),
		LastUpdateID: b.LastUpdateID,
		Bids:         levelsToWire(b.Bids.Top(b.effectiveDepth())),
		Asks:         levelsToWire(b.Asks.Top(b.effectiveDepth())),
	}
}

func (b *Book) effectiveDepth() int {
	if b.DepthLimit <= 0 {
		return b.Bids.Len() + b.Asks.Len()
	}
	return b.DepthLimit
}

func levelsToWire(levels Levels) [][2]string {
	out := make([][2]string, len(levels))
	for i, lvl := range levels {
		out[i] = [2]string{lvl.Price.String(), lvl.Quantity.String()}
	}
	return out
}
