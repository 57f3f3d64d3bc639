package deribit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MNS-Vic/marketprism-sub006/exchanges/booksync"
	"github.com/MNS-Vic/marketprism-sub006/exchanges/orderbook"
)

func TestDecodeBookUpdate(t *testing.T) {
	raw := []byte(`{
		"method": "subscription",
		"params": {
			"channel": "book.BTC-PERPETUAL.100ms",
			"data": {
				"type": "change",
				"instrument_name": "BTC-PERPETUAL",
				"timestamp": 1700000000000,
				"change_id": 205,
				"prev_change_id": 204,
				"bids": [["new", "41000.5", "10"], ["delete", "41000.0", "0"]],
				"asks": [["change", "41001.0", "5"]]
			}
		}
	}`)

	u, err := DecodeBookUpdate(raw)
	require.NoError(t, err)
	require.Equal(t, "deribit", u.Exchange)
	require.Equal(t, "BTC-PERPETUAL", u.Symbol)
	require.Equal(t, int64(204), u.FirstUpdateID)
	require.Equal(t, int64(205), u.LastUpdateID)
	require.True(t, u.HasPrevUpdateID())
	require.Len(t, u.BidDeltas, 2)
	require.True(t, u.BidDeltas[1].IsRemoval())
	require.Len(t, u.AskDeltas, 1)
}

func TestPolicyContinuityPUMatchAndOverlap(t *testing.T) {
	p := Policy{}
	last := &orderbook.Update{LastUpdateID: 100}

	pu := int64(100)
	ok, reason := p.Continuity(&orderbook.Update{FirstUpdateID: 100, LastUpdateID: 105, PrevUpdateID: &pu}, last)
	require.True(t, ok)
	require.Equal(t, booksync.ContinuityPUMatch, reason)

	stale := int64(95)
	ok, reason = p.Continuity(&orderbook.Update{FirstUpdateID: 95, LastUpdateID: 105, PrevUpdateID: &stale}, last)
	require.True(t, ok)
	require.Equal(t, booksync.ContinuityOverlapValid, reason)

	gapPU := int64(50)
	ok, _ = p.Continuity(&orderbook.Update{FirstUpdateID: 200, LastUpdateID: 210, PrevUpdateID: &gapPU}, last)
	require.False(t, ok)
}

func TestPolicyAlignStraddlesSnapshot(t *testing.T) {
	p := Policy{}
	discard, aligned := p.Align(&orderbook.Update{FirstUpdateID: 95, LastUpdateID: 98}, 100)
	require.True(t, discard)
	require.False(t, aligned)

	discard, aligned = p.Align(&orderbook.Update{FirstUpdateID: 99, LastUpdateID: 105}, 100)
	require.False(t, discard)
	require.True(t, aligned)

	require.False(t, p.HasChecksum())
	require.NoError(t, p.VerifyChecksum(nil, nil))
}
