// Package binance normalizes Binance spot and derivatives depth streams
// into the shared orderbook.Update envelope and implements the Binance
// continuity rules. Wire shapes are grounded on the
// exchange package's depthUpdate event models and its U/u/pu field
// semantics.
package binance

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MNS-Vic/marketprism-sub006/exchanges/orderbook"
	"github.com/MNS-Vic/marketprism-sub006/internal/symbol"
)

// priceLevel is the wire shape of a single [price, quantity] pair.
type priceLevel [2]string

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

// depthUpdateEvent is the wire shape of a Binance diff depth stream event.
// Spot streams omit "pu"; derivatives (USDⓈ-M/COIN-M futures) carry it.
type depthUpdateEvent struct {
	EventType     string       `json:"e"`
	EventTime     int64        `json:"E"`
	Symbol        string       `json:"s"`
	FirstUpdateID int64        `json:"U"`
	FinalUpdateID int64        `json:"u"`
	PrevUpdateID  *int64       `json:"pu,omitempty"`
	Bids          []priceLevel `json:"b"`
	Asks          []priceLevel `json:"a"`
}

// streamEnvelope wraps a combined-stream payload: {"stream": "...", "data": {...}}.
type streamEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// DecodeDepthUpdate parses a single depth update message - either a bare
// depthUpdateEvent or a combined-stream envelope wrapping one - into the
// shared Update type.
func DecodeDepthUpdate(raw []byte) (*orderbook.Update, error) {
	payload := raw
	var env streamEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Data) > 0 {
		payload = env.Data
	}

	var ev depthUpdateEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("decode depth update: %w", err)
	}

	bids, err := toLevels(ev.Bids)
	if err != nil {
		return nil, fmt.Errorf("decode bids: %w", err)
	}
	asks, err := toLevels(ev.Asks)
	if err != nil {
		return nil, fmt.Errorf("decode asks: %w", err)
	}

	return &orderbook.Update{
		Exchange:      "binance",
		Symbol:        symbol.Normalize(ev.Symbol),
		FirstUpdateID: ev.FirstUpdateID,
		LastUpdateID:  ev.FinalUpdateID,
		PrevUpdateID:  ev.PrevUpdateID,
		BidDeltas:     bids,
		AskDeltas:     asks,
		EventTime:     time.UnixMilli(ev.EventTime).UTC(),
	}, nil
}
