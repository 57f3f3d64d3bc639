package okx

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/MNS-Vic/marketprism-sub006/exchanges/booksync"
	"github.com/MNS-Vic/marketprism-sub006/exchanges/request"
	"github.com/MNS-Vic/marketprism-sub006/internal/markettype"
)

const (
	restBaseURL    = "https://www.okx.com"
	booksDepthPath = "/api/v5/market/books"

	// snapshotWeight approximates OKX's 20 requests / 2s public-data weight
	// class.
	snapshotWeight = 1
)

type snapshotResponse struct {
	Code string      `json:"code"`
	Msg  string      `json:"msg"`
	Data []bookEntry `json:"data"`
}

// SnapshotClient fetches REST order book snapshots for OKX spot and
// derivatives instruments.
type SnapshotClient struct {
	client *request.Client
}

// NewSnapshotClient constructs a SnapshotClient backed by the shared
// process-wide rate limiter.
func NewSnapshotClient(client *request.Client) *SnapshotClient {
	return &SnapshotClient{client: client}
}

// Fetch retrieves an order book snapshot for instID (OKX's native
// instrument id, e.g. "BTC-USDT-SWAP") at the given depth.
func (c *SnapshotClient) Fetch(ctx context.Context, _ markettype.Item, instID string, limit int) (booksync.SnapshotData, error) {
	url := fmt.Sprintf("%s%s?instId=%s&sz=%d", restBaseURL, booksDepthPath, instID, snapshotSize(limit))

	var resp snapshotResponse
	if err := c.client.GetJSON(ctx, "okx", url, snapshotWeight, request.DefaultFetchOptions(), &resp); err != nil {
		return booksync.SnapshotData{}, err
	}
	if resp.Code != "0" {
		return booksync.SnapshotData{}, fmt.Errorf("okx snapshot error %s: %s", resp.Code, resp.Msg)
	}
	if len(resp.Data) == 0 {
		return booksync.SnapshotData{}, fmt.Errorf("okx snapshot carries no data entries")
	}
	entry := resp.Data[0]

	bids, err := toLevels(entry.Bids)
	if err != nil {
		return booksync.SnapshotData{}, fmt.Errorf("decode snapshot bids: %w", err)
	}
	asks, err := toLevels(entry.Asks)
	if err != nil {
		return booksync.SnapshotData{}, fmt.Errorf("decode snapshot asks: %w", err)
	}

	tsMillis, err := strconv.ParseInt(entry.TS, 10, 64)
	if err != nil {
		tsMillis = time.Now().UnixMilli()
	}

	return booksync.SnapshotData{
		Bids:         bids,
		Asks:         asks,
		LastUpdateID: entry.SeqID,
		Timestamp:    time.UnixMilli(tsMillis).UTC(),
	}, nil
}

// snapshotSize caps the requested depth at OKX's maximum book size of 400.
func snapshotSize(limit int) int {
	if limit <= 0 || limit > 400 {
		return 400
	}
	return limit
}
