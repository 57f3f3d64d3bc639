// Package orderbook implements the per-symbol orderbook data model and book
// applicator: the sorted bid/ask ladders, the canonical update envelope, and
// the arithmetic that mutates a ladder from a decoded update.
package orderbook

import "github.com/shopspring/decimal"

// Level is a single (price, quantity) pair. A Quantity of zero is the
// remove sentinel when the level is carried inside an Update.
type Level struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// IsRemoval reports whether this level instructs the applicator to delete
// the price from its side rather than upsert it.
func (l Level) IsRemoval() bool {
	return l.Quantity.IsZero()
}

// Levels is an unordered batch of price levels, typically the bid or ask
// deltas carried on an Update.
type Levels []Level
