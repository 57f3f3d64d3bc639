package orderbook

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func lvl(price, qty string) Level {
	return Level{Price: d(price), Quantity: d(qty)}
}

func TestSideLoadSortsAndValidates(t *testing.T) {
	t.Parallel()

	bids := NewSide(true)
	require.NoError(t, bids.Load(Levels{lvl("100", "1"), lvl("102", "1"), lvl("101", "1")}))
	best, ok := bids.Best()
	require.True(t, ok)
	require.True(t, best.Price.Equal(d("102")), "bids must sort descending so best is highest price")

	asks := NewSide(false)
	require.NoError(t, asks.Load(Levels{lvl("105", "1"), lvl("103", "1"), lvl("104", "1")}))
	best, ok = asks.Best()
	require.True(t, ok)
	require.True(t, best.Price.Equal(d("103")), "asks must sort ascending so best is lowest price")
}

func TestSideLoadRejectsDuplicatesAndNonPositive(t *testing.T) {
	t.Parallel()

	s := NewSide(true)
	require.ErrorIs(t, s.Load(Levels{lvl("100", "1"), lvl("100", "2")}), ErrDuplicatePrice)
	require.ErrorIs(t, s.Load(Levels{lvl("100", "0")}), ErrNonPositiveQuantity)
}

func TestSideUpsertAmendsInsertsDeletes(t *testing.T) {
	t.Parallel()

	s := NewSide(false)
	require.NoError(t, s.Load(Levels{lvl("1", "1"), lvl("3", "1"), lvl("5", "1")}))

	// amend existing price
	s.Upsert(lvl("3", "9"))
	require.Equal(t, 3, s.Len())
	levels := s.Levels()
	require.True(t, levels[1].Quantity.Equal(d("9")))

	// insert at head
	s.Upsert(lvl("0.5", "1"))
	require.Equal(t, 4, s.Len())
	best, _ := s.Best()
	require.True(t, best.Price.Equal(d("0.5")))

	// insert at tail
	s.Upsert(lvl("7", "1"))
	require.Equal(t, 5, s.Len())

	// delete by zero quantity
	s.Upsert(lvl("3", "0"))
	require.Equal(t, 4, s.Len())

	// delete absent price is a no-op
	s.Upsert(lvl("42", "0"))
	require.Equal(t, 4, s.Len())
}

func TestSideTruncate(t *testing.T) {
	t.Parallel()

	s := NewSide(true)
	require.NoError(t, s.Load(Levels{lvl("1", "1"), lvl("2", "1"), lvl("3", "1")}))
	s.Truncate(2)
	require.Equal(t, 2, s.Len())
	s.Truncate(0)
	require.Equal(t, 2, s.Len(), "zero limit means unbounded")
}

func TestSideClone(t *testing.T) {
	t.Parallel()

	s := NewSide(true)
	require.NoError(t, s.Load(Levels{lvl("1", "1")}))
	clone := s.Clone()
	clone.Upsert(lvl("2", "1"))
	require.Equal(t, 1, s.Len(), "mutating a clone must not affect the original side")
	require.Equal(t, 2, clone.Len())
}
