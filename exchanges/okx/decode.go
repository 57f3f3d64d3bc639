// Package okx normalizes OKX spot and derivatives order-book-l2-tbt
// streams into the shared orderbook.Update envelope and implements the
// OKX continuity and checksum rules.
package okx

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MNS-Vic/marketprism-sub006/exchanges/orderbook"
	"github.com/MNS-Vic/marketprism-sub006/internal/symbol"
)

// priceLevel is the wire shape of a single OKX book entry: [price,
// quantity, deprecated "0", order count]. Only the first two fields are
// used.
type priceLevel [4]string

func (p priceLevel) toLevel() (orderbook.Level, error) {
	price, err := decimal.NewFromString(p[0])
	if err != nil {
		return orderbook.Level{}, fmt.Errorf("parse price %q: %w", p[0], err)
	}
	qty, err := decimal.NewFromString(p[1])
	if err != nil {
		return orderbook.Level{}, fmt.Errorf("parse quantity %q: %w", p[1], err)
	}
	return orderbook.Level{Price: price, Quantity: qty}, nil
}

func toLevels(raw []priceLevel) (orderbook.Levels, error) {
	out := make(orderbook.Levels, len(raw))
	for i, p := range raw {
		lvl, err := p.toLevel()
		if err != nil {
			return nil, err
		}
		out[i] = lvl
	}
	return out, nil
}

// bookEntry is a single element of a books/books-l2-tbt "data" array.
type bookEntry struct {
	Asks      []priceLevel `json:"asks"`
	Bids      []priceLevel `json:"bids"`
	TS        string       `json:"ts"`
	Checksum  int32        `json:"checksum"`
	SeqID     int64        `json:"seqId"`
	PrevSeqID int64        `json:"prevSeqId"`
}

// bookMessage is the envelope OKX wraps every push message in:
// {"arg": {...}, "action": "snapshot"|"update", "data": [...]}.
type bookMessage struct {
	Arg    struct {
		Channel string `json:"channel"`
		InstID  string `json:"instId"`
	} `json:"arg"`
	Action string      `json:"action"`
	Data   []bookEntry `json:"data"`
}

// DecodeBookUpdate parses a single books-channel push message into the
// shared Update type. action reports whether the message was OKX's own
// "snapshot" (channel subscription confirmation) or an incremental
// "update"; callers use it only for logging - book installation always
// goes through the REST snapshot client.
func DecodeBookUpdate(raw []byte) (u *orderbook.Update, action string, err error) {
	var msg bookMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, "", fmt.Errorf("decode book message: %w", err)
	}
	if len(msg.Data) == 0 {
		return nil, msg.Action, fmt.Errorf("book message carries no data entries")
	}
	entry := msg.Data[0]

	bids, err := toLevels(entry.Bids)
	if err != nil {
		return nil, msg.Action, fmt.Errorf("decode bids: %w", err)
	}
	asks, err := toLevels(entry.Asks)
	if err != nil {
		return nil, msg.Action, fmt.Errorf("decode asks: %w", err)
	}

	tsMillis, err := strconv.ParseInt(entry.TS, 10, 64)
	if err != nil {
		return nil, msg.Action, fmt.Errorf("parse ts %q: %w", entry.TS, err)
	}

	checksum := entry.Checksum
	prevSeqID := entry.PrevSeqID

	return &orderbook.Update{
		Exchange:      "okx",
		Symbol:        symbol.Normalize(msg.Arg.InstID),
		FirstUpdateID: entry.SeqID,
		LastUpdateID:  entry.SeqID,
		PrevUpdateID:  &prevSeqID,
		BidDeltas:     bids,
		AskDeltas:     asks,
		Checksum:      &checksum,
		EventTime:     time.UnixMilli(tsMillis).UTC(),
	}, msg.Action, nil
}
