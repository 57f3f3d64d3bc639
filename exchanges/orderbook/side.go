package orderbook

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"
)

// ErrDuplicatePrice signals a loaded snapshot carried the same price twice.
var ErrDuplicatePrice = errors.New("orderbook: duplicate price in snapshot")

// ErrNonPositiveQuantity signals a loaded snapshot level had a zero or
// negative quantity, which is only ever valid as an update's remove sentinel.
var ErrNonPositiveQuantity = errors.New("orderbook: non-positive quantity in snapshot")

// Side is one half of a Book: a price-sorted ladder with no duplicate
// prices and strictly positive quantities. Bids sort descending (best bid
// first); asks sort ascending (best ask first) - either way, Best() is
// always the head of the slice, an O(1) read.
type Side struct {
	descending bool
	levels     []Level
}

// NewSide constructs an empty Side. descending is true for bids.
func NewSide(descending bool) *Side {
	return &Side{descending: descending}
}

// less reports whether price a belongs before price b in this side's order.
func (s *Side) less(a, b decimal.Decimal) bool {
	if s.descending {
		return a.GreaterThan(b)
	}
	return a.LessThan(b)
}

// Load replaces the side's contents with a full snapshot, sorting it into
// the side's native order and rejecting duplicate prices or non-positive
// quantities - snapshots never carry the remove sentinel.
func (s *Side) Load(levels Levels) error {
	cp := make([]Level, len(levels))
	copy(cp, levels)
	sort.Slice(cp, func(i, j int) bool { return s.less(cp[i].Price, cp[j].Price) })
	for i, lvl := range cp {
		if !lvl.Quantity.IsPositive() {
			return ErrNonPositiveQuantity
		}
		if i > 0 && cp[i-1].Price.Equal(lvl.Price) {
			return ErrDuplicatePrice
		}
	}
	s.levels = cp
	return nil
}

// search returns the index of price, and whether it was found. When not
// found, the index is where the price should be inserted to keep order.
func (s *Side) search(price decimal.Decimal) (int, bool) {
	idx := sort.Search(len(s.levels), func(i int) bool {
		return !s.less(s.levels[i].Price, price)
	})
	if idx < len(s.levels) && s.levels[idx].Price.Equal(price) {
		return idx, true
	}
	return idx, false
}

// Upsert inserts or amends a price level. A zero/negative quantity deletes
// the price instead (a no-op if the price is absent), matching the update
// delta semantics in the canonical wire format.
func (s *Side) Upsert(lvl Level) {
	idx, found := s.search(lvl.Price)
	if !lvl.Quantity.IsPositive() {
		if found {
			s.levels = append(s.levels[:idx], s.levels[idx+1:]...)
		}
		return
	}
	if found {
		s.levels[idx].Quantity = lvl.Quantity
		return
	}
	s.levels = append(s.levels, Level{})
	copy(s.levels[idx+1:], s.levels[idx:])
	s.levels[idx] = lvl
}

// Remove deletes a price, a no-op if the price is not present.
func (s *Side) Remove(price decimal.Decimal) {
	s.Upsert(Level{Price: price, Quantity: decimal.Zero})
}

// Best returns the top-of-book level. ok is false for an empty side.
func (s *Side) Best() (Level, bool) {
	if len(s.levels) == 0 {
		return Level{}, false
	}
	return s.levels[0], true
}

// Len returns the number of resting price levels.
func (s *Side) Len() int {
	return len(s.levels)
}

// Truncate retains only the first n levels (best-first), dropping the rest.
// A limit of zero or less is treated as "no limit".
func (s *Side) Truncate(limit int) {
	if limit > 0 && len(s.levels) > limit {
		s.levels = s.levels[:limit]
	}
}

// Levels returns an immutable copy of the ladder, best-first.
func (s *Side) Levels() Levels {
	out := make(Levels, len(s.levels))
	copy(out, s.levels)
	return out
}

// Top returns a copy of the first n levels, best-first; n may exceed Len().
func (s *Side) Top(n int) Levels {
	if n > len(s.levels) {
		n = len(s.levels)
	}
	out := make(Levels, n)
	copy(out, s.levels[:n])
	return out
}

// Clone returns a deep, independent copy of the side.
func (s *Side) Clone() *Side {
	return &Side{descending: s.descending, levels: append([]Level(nil), s.levels...)}
}
