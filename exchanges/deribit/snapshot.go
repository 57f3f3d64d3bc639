package deribit

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MNS-Vic/marketprism-sub006/exchanges/booksync"
	"github.com/MNS-Vic/marketprism-sub006/exchanges/orderbook"
	"github.com/MNS-Vic/marketprism-sub006/exchanges/request"
	"github.com/MNS-Vic/marketprism-sub006/internal/markettype"
)

const (
	restBaseURL = "https://www.deribit.com"
	bookPath    = "/api/v2/public/get_order_book"

	// snapshotWeight approximates Deribit's public-data credit cost for
	// get_order_book.
	snapshotWeight = 1
)

type getOrderBookResult struct {
	Bids            [][2]float64 `json:"bids"`
	Asks            [][2]float64 `json:"asks"`
	ChangeID        int64        `json:"change_id"`
	Timestamp       int64        `json:"timestamp"`
	UnderlyingIndex string       `json:"underlying_index"`
}

type getOrderBookResponse struct {
	Result getOrderBookResult `json:"result"`
}

// SnapshotClient fetches REST order book snapshots for Deribit
// derivatives instruments.
type SnapshotClient struct {
	client *request.Client
}

// NewSnapshotClient constructs a SnapshotClient backed by the shared
// process-wide rate limiter.
func NewSnapshotClient(client *request.Client) *SnapshotClient {
	return &SnapshotClient{client: client}
}

// Fetch retrieves an order book snapshot for instrumentName (e.g.
// "BTC-PERPETUAL") at the given depth.
func (c *SnapshotClient) Fetch(ctx context.Context, _ markettype.Item, instrumentName string, limit int) (booksync.SnapshotData, error) {
	url := fmt.Sprintf("%s%s?instrument_name=%s&depth=%d", restBaseURL, bookPath, instrumentName, snapshotDepth(limit))

	var resp getOrderBookResponse
	if err := c.client.GetJSON(ctx, "deribit", url, snapshotWeight, request.DefaultFetchOptions(), &resp); err != nil {
		return booksync.SnapshotData{}, err
	}

	bids := floatLevelsToLevels(resp.Result.Bids)
	asks := floatLevelsToLevels(resp.Result.Asks)

	return booksync.SnapshotData{
		Bids:         bids,
		Asks:         asks,
		LastUpdateID: resp.Result.ChangeID,
		Timestamp:    time.UnixMilli(resp.Result.Timestamp).UTC(),
	}, nil
}

// floatLevelsToLevels converts Deribit's [price, amount] float pairs into
// exact decimal levels via their string formatting, never via binary-float
// arithmetic downstream.
func floatLevelsToLevels(raw [][2]float64) orderbook.Levels {
	out := make(orderbook.Levels, len(raw))
	for i, pair := range raw {
		out[i] = orderbook.Level{
			Price:    decimal.NewFromFloat(pair[0]),
			Quantity: decimal.NewFromFloat(pair[1]),
		}
	}
	return out
}

// snapshotDepth rounds limit up to one of Deribit's allowed depth values.
func snapshotDepth(limit int) int {
	allowed := []int{1, 5, 10, 20, 50, 100, 1000, 10000}
	for _, a := range allowed {
		if limit <= a {
			return a
		}
	}
	return 10000
}
