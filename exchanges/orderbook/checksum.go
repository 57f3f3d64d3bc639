package orderbook

import (
	"hash/crc32"
	"strconv"
	"strings"
)

// ChecksumDepth is the number of top-of-book levels per side folded into
// the OKX-style checksum.
const ChecksumDepth = 25

// Checksum computes the CRC32 of the documented concatenation of the top
// ChecksumDepth (price:quantity) pairs, bid then ask at each depth index,
// joined by colons, e.g. "bidPrice:bidQty:askPrice:askQty:...". A side
// shallower than ChecksumDepth simply contributes nothing past its last
// level, matching the exchange's published rule.
func (b *Book) Checksum() int32 {
	bids := b.Bids.Top(ChecksumDepth)
	asks := b.Asks.Top(ChecksumDepth)

	var sb strings.Builder
	for i := 0; i < ChecksumDepth; i++ {
		if i < len(bids) {
			sb.WriteString(bids[i].Price.String())
			sb.WriteByte(':')
			sb.WriteString(bids[i].Quantity.String())
			sb.WriteByte(':')
		}
		if i < len(asks) {
			sb.WriteString(asks[i].Price.String())
			sb.WriteByte(':')
			sb.WriteString(asks[i].Quantity.String())
			sb.WriteByte(':')
		}
	}
	s := strings.TrimSuffix(sb.String(), ":")
	return int32(crc32.ChecksumIEEE([]byte(s)))
}

// FormatChecksum renders a checksum for log output.
func FormatChecksum(c int32) string {
	return strconv.FormatInt(int64(c), 10)
}
