// Package deribit normalizes Deribit derivatives (perpetual and option)
// order book change notifications into the shared orderbook.Update
// envelope. Deribit's book.{instrument}.{group}.{depth}.{interval} channel
// delivers JSON-RPC 2.0 notifications carrying change_id/prev_change_id,
// the same continuity shape as Binance's u/pu.
package deribit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MNS-Vic/marketprism-sub006/exchanges/orderbook"
	"github.com/MNS-Vic/marketprism-sub006/internal/symbol"
)

// bookChange is a single [action, price, amount] tuple: action is "new",
// "change", or "delete".
type bookChange [3]json.RawMessage

func (c bookChange) toLevel() (orderbook.Level, error) {
	var action string
	if err := json.Unmarshal(c[0], &action); err != nil {
		return orderbook.Level{}, fmt.Errorf("parse action: %w", err)
	}

	var priceNum json.Number
	if err := json.Unmarshal(c[1], &priceNum); err != nil {
		return orderbook.Level{}, fmt.Errorf("parse price: %w", err)
	}
	price, err := decimal.NewFromString(priceNum.String())
	if err != nil {
		return orderbook.Level{}, fmt.Errorf("parse price %q: %w", priceNum, err)
	}

	if action == "delete" {
		return orderbook.Level{Price: price, Quantity: decimal.Zero}, nil
	}

	var amountNum json.Number
	if err := json.Unmarshal(c[2], &amountNum); err != nil {
		return orderbook.Level{}, fmt.Errorf("parse amount: %w", err)
	}
	amount, err := decimal.NewFromString(amountNum.String())
	if err != nil {
		return orderbook.Level{}, fmt.Errorf("parse amount %q: %w", amountNum, err)
	}
	return orderbook.Level{Price: price, Quantity: amount}, nil
}

func toLevels(raw []bookChange) (orderbook.Levels, error) {
	out := make(orderbook.Levels, len(raw))
	for i, c := range raw {
		lvl, err := c.toLevel()
		if err != nil {
			return nil, err
		}
		out[i] = lvl
	}
	return out, nil
}

// bookParams is the "params" payload of a book.* channel notification.
type bookParams struct {
	Channel string `json:"channel"`
	Data    struct {
		Type           string       `json:"type"`
		InstrumentName string       `json:"instrument_name"`
		Timestamp      int64        `json:"timestamp"`
		ChangeID       int64        `json:"change_id"`
		PrevChangeID   int64        `json:"prev_change_id"`
		Bids           []bookChange `json:"bids"`
		Asks           []bookChange `json:"asks"`
	} `json:"data"`
}

// notification is the outer JSON-RPC 2.0 subscription notification shape.
type notification struct {
	Method string     `json:"method"`
	Params bookParams `json:"params"`
}

// DecodeBookUpdate parses a single book channel notification into the
// shared Update type.
func DecodeBookUpdate(raw []byte) (*orderbook.Update, error) {
	var n notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("decode book notification: %w", err)
	}
	data := n.Params.Data

	bids, err := toLevels(data.Bids)
	if err != nil {
		return nil, fmt.Errorf("decode bids: %w", err)
	}
	asks, err := toLevels(data.Asks)
	if err != nil {
		return nil, fmt.Errorf("decode asks: %w", err)
	}

	prevChangeID := data.PrevChangeID
	return &orderbook.Update{
		Exchange:      "deribit",
		Symbol:        symbol.Normalize(data.InstrumentName),
		FirstUpdateID: data.PrevChangeID,
		LastUpdateID:  data.ChangeID,
		PrevUpdateID:  &prevChangeID,
		BidDeltas:     bids,
		AskDeltas:     asks,
		EventTime:     time.UnixMilli(data.Timestamp).UTC(),
	}, nil
}
