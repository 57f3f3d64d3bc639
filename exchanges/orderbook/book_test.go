package orderbook

import (
	"testing"
	"time"

	"github.com/MNS-Vic/marketprism-sub006/internal/markettype"
	"github.com/stretchr/testify/require"
)

func newTestBook(depth int) *Book {
	return New("binance", markettype.Spot, "BTC-USDT", depth)
}

func TestBookLoadSnapshotAndVerify(t *testing.T) {
	t.Parallel()

	b := newTestBook(400)
	require.NoError(t, b.LoadSnapshot(
		Levels{lvl("100", "1")},
		Levels{lvl("101", "1")},
		1000, time.Now(),
	))
	require.Equal(t, int64(1000), b.LastUpdateID)
	require.NoError(t, b.Verify())
}

func TestBookLoadSnapshotCrossedRejected(t *testing.T) {
	t.Parallel()

	b := newTestBook(400)
	err := b.LoadSnapshot(
		Levels{lvl("102", "1")},
		Levels{lvl("101", "1")},
		1000, time.Now(),
	)
	require.ErrorIs(t, err, ErrCrossedBook)
}

// Binance spot happy path: snapshot then two sequential updates.
func TestBookApplySpotHappyPath(t *testing.T) {
	t.Parallel()

	b := newTestBook(400)
	require.NoError(t, b.LoadSnapshot(Levels{lvl("100", "1")}, Levels{lvl("101", "1")}, 1000, time.Now()))

	require.NoError(t, Apply(b, &Update{
		FirstUpdateID: 1001, LastUpdateID: 1001,
		BidDeltas: Levels{lvl("100", "2")},
		EventTime: time.Now(),
	}))
	require.NoError(t, Apply(b, &Update{
		FirstUpdateID: 1002, LastUpdateID: 1002,
		AskDeltas: Levels{lvl("101", "0")},
		EventTime: time.Now(),
	}))

	require.Equal(t, int64(1002), b.LastUpdateID)
	require.Equal(t, 1, b.Bids.Len())
	bestBid, _ := b.Bids.Best()
	require.True(t, bestBid.Quantity.Equal(d("2")))
	require.Equal(t, 0, b.Asks.Len())
}

func TestBookApplyRemoveAbsentPriceIsNoop(t *testing.T) {
	t.Parallel()

	b := newTestBook(400)
	require.NoError(t, b.LoadSnapshot(Levels{lvl("100", "1")}, Levels{lvl("101", "1")}, 1, time.Now()))
	require.NoError(t, Apply(b, &Update{
		FirstUpdateID: 2, LastUpdateID: 2,
		BidDeltas: Levels{lvl("50", "0")},
	}))
	require.Equal(t, 1, b.Bids.Len())
}

func TestBookApplyIdempotentReapply(t *testing.T) {
	t.Parallel()

	b := newTestBook(400)
	require.NoError(t, b.LoadSnapshot(Levels{lvl("100", "1")}, Levels{lvl("101", "1")}, 1, time.Now()))
	update := &Update{FirstUpdateID: 2, LastUpdateID: 2, BidDeltas: Levels{lvl("100", "3")}}
	require.NoError(t, Apply(b, update))
	first := b.Clone()
	require.NoError(t, Apply(b, update))
	require.Equal(t, first.Bids.Levels(), b.Bids.Levels(), "re-applying the same update must produce a bit-identical book")
	require.Equal(t, first.LastUpdateID, b.LastUpdateID)
}

func TestBookApplyCrossedBookDetected(t *testing.T) {
	t.Parallel()

	b := newTestBook(400)
	require.NoError(t, b.LoadSnapshot(Levels{lvl("100", "1")}, Levels{lvl("101", "1")}, 1, time.Now()))
	err := Apply(b, &Update{
		FirstUpdateID: 2, LastUpdateID: 2,
		BidDeltas: Levels{lvl("200", "1")},
	})
	require.ErrorIs(t, err, ErrCrossedBook)
}

func TestBookDepthTruncationAfterApply(t *testing.T) {
	t.Parallel()

	b := newTestBook(2)
	require.NoError(t, b.LoadSnapshot(Levels{lvl("100", "1"), lvl("99", "1")}, Levels{lvl("101", "1")}, 1, time.Now()))
	require.NoError(t, Apply(b, &Update{
		FirstUpdateID: 2, LastUpdateID: 2,
		BidDeltas: Levels{lvl("98", "1"), lvl("97", "1")},
	}))
	require.Equal(t, 2, b.Bids.Len())
}

func TestBookToMessage(t *testing.T) {
	t.Parallel()

	b := newTestBook(400)
	require.NoError(t, b.LoadSnapshot(Levels{lvl("100", "1")}, Levels{lvl("101", "1")}, 7, time.Now()))
	msg := b.ToMessage()
	require.Equal(t, "binance", msg.Exchange)
	require.Equal(t, "spot", msg.MarketType)
	require.Equal(t, int64(7), msg.LastUpdateID)
	require.Equal(t, [2]string{"100", "1"}, msg.Bids[0])
	require.Equal(t, [2]string{"101", "1"}, msg.Asks[0])
}
