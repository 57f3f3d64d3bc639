package okx

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/MNS-Vic/marketprism-sub006/exchanges/booksync"
	"github.com/MNS-Vic/marketprism-sub006/exchanges/orderbook"
	"github.com/MNS-Vic/marketprism-sub006/internal/markettype"
)

func mustDecimal(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestDecodeBookUpdate(t *testing.T) {
	raw := []byte(`{
		"arg": {"channel": "books", "instId": "BTC-USDT-SWAP"},
		"action": "update",
		"data": [{
			"asks": [["41000.5", "2", "0", "3"]],
			"bids": [["41000.0", "1.5", "0", "2"]],
			"ts": "1700000000000",
			"checksum": -1220830295,
			"seqId": 1024,
			"prevSeqId": 1023
		}]
	}`)

	u, action, err := DecodeBookUpdate(raw)
	require.NoError(t, err)
	require.Equal(t, "update", action)
	require.Equal(t, "okx", u.Exchange)
	require.Equal(t, "BTC-USDT", u.Symbol)
	require.Equal(t, int64(1024), u.LastUpdateID)
	require.True(t, u.HasPrevUpdateID())
	require.Equal(t, int64(1023), *u.PrevUpdateID)
	require.True(t, u.HasChecksum())
	require.Equal(t, int32(-1220830295), *u.Checksum)
}

func TestDecodeBookUpdateRejectsEmptyData(t *testing.T) {
	raw := []byte(`{"arg":{"channel":"books","instId":"BTC-USDT"},"action":"snapshot","data":[]}`)
	_, _, err := DecodeBookUpdate(raw)
	require.Error(t, err)
}

func TestPolicyAlignDiscardsUpToSnapshot(t *testing.T) {
	p := Policy{}
	discard, aligned := p.Align(&orderbook.Update{LastUpdateID: 100}, 100)
	require.True(t, discard)
	require.False(t, aligned)
}

func TestPolicyAlignAcceptsChainFromSnapshot(t *testing.T) {
	p := Policy{}
	prev := int64(100)
	discard, aligned := p.Align(&orderbook.Update{LastUpdateID: 101, PrevUpdateID: &prev}, 100)
	require.False(t, discard)
	require.True(t, aligned)
}

func TestPolicyAlignRejectsGapAfterSnapshot(t *testing.T) {
	p := Policy{}
	prev := int64(150)
	discard, aligned := p.Align(&orderbook.Update{LastUpdateID: 200, PrevUpdateID: &prev}, 100)
	require.False(t, discard)
	require.False(t, aligned)
}

func TestPolicyContinuityExactAndGap(t *testing.T) {
	p := Policy{}
	prev := int64(100)
	ok, reason := p.Continuity(&orderbook.Update{LastUpdateID: 101, PrevUpdateID: &prev}, &orderbook.Update{LastUpdateID: 100})
	require.True(t, ok)
	require.Equal(t, booksync.ContinuityExact, reason)

	stale := int64(90)
	ok, reason = p.Continuity(&orderbook.Update{LastUpdateID: 101, PrevUpdateID: &stale}, &orderbook.Update{LastUpdateID: 100})
	require.False(t, ok)
	require.Equal(t, booksync.ContinuityGap, reason)
}

func TestPolicyVerifyChecksumMismatch(t *testing.T) {
	p := Policy{}
	book := orderbook.New("okx", markettype.Spot, "BTC-USDT", 25)
	require.NoError(t, book.LoadSnapshot(
		orderbook.Levels{{Price: mustDecimal("100"), Quantity: mustDecimal("1")}},
		orderbook.Levels{{Price: mustDecimal("101"), Quantity: mustDecimal("1")}},
		1, time.Now(),
	))

	bad := int32(12345)
	err := p.VerifyChecksum(book, &orderbook.Update{Checksum: &bad})
	require.Error(t, err)

	good := book.Checksum()
	require.NoError(t, p.VerifyChecksum(book, &orderbook.Update{Checksum: &good}))
}
