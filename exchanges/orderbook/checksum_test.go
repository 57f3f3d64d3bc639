package orderbook

import (
	"testing"
	"time"

	"github.com/MNS-Vic/marketprism-sub006/internal/markettype"
	"github.com/stretchr/testify/require"
)

// OKX checksum validation: applying an update that zeroes
// one level must change the recomputed checksum, and corrupting the
// asserted checksum must be detectable by the caller.
func TestBookChecksumChangesAfterApply(t *testing.T) {
	t.Parallel()

	b := New("okx", markettype.Spot, "BTC-USDT", 400)
	require.NoError(t, b.LoadSnapshot(
		Levels{lvl("100", "1"), lvl("99", "1")},
		Levels{lvl("101", "1"), lvl("102", "1")},
		1, time.Now(),
	))
	before := b.Checksum()

	require.NoError(t, Apply(b, &Update{
		FirstUpdateID: 2, LastUpdateID: 2,
		AskDeltas: Levels{lvl("101", "0")},
	}))
	after := b.Checksum()

	require.NotEqual(t, before, after, "removing a level must change the recomputed checksum")
}

func TestBookChecksumDeterministic(t *testing.T) {
	t.Parallel()

	build := func() *Book {
		b := New("okx", markettype.Spot, "BTC-USDT", 400)
		require.NoError(t, b.LoadSnapshot(
			Levels{lvl("100", "1"), lvl("99", "2")},
			Levels{lvl("101", "1"), lvl("102", "2")},
			1, time.Now(),
		))
		return b
	}

	require.Equal(t, build().Checksum(), build().Checksum())
}
