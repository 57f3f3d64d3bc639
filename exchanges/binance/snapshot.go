package binance

import (
	"context"
	"fmt"
	"time"

	"github.com/MNS-Vic/marketprism-sub006/exchanges/booksync"
	"github.com/MNS-Vic/marketprism-sub006/exchanges/request"
	"github.com/MNS-Vic/marketprism-sub006/internal/markettype"
)

// REST hosts and snapshot endpoint weights. Spot uses
// /api/v3/depth; USDⓈ-M futures use /fapi/v1/depth. Each endpoint is
// charged one fixed weight per request; the weight does not vary with the
// requested depth limit.
const (
	spotBaseURL    = "https://api.binance.com"
	futuresBaseURL = "https://fapi.binance.com"

	spotDepthWeight    = 50
	futuresDepthWeight = 20
)

// snapshotResponse is the wire shape of both /api/v3/depth and
// /fapi/v1/depth - identical field names across spot and derivatives.
type snapshotResponse struct {
	LastUpdateID int64        `json:"lastUpdateId"`
	Bids         []priceLevel `json:"bids"`
	Asks         []priceLevel `json:"asks"`
}

// SnapshotClient fetches REST depth snapshots for Binance spot and
// derivatives markets, grounded on the shared request.Client retry/backoff
// helper.
type SnapshotClient struct {
	client *request.Client
}

// NewSnapshotClient constructs a SnapshotClient backed by the shared
// process-wide rate limiter.
func NewSnapshotClient(client *request.Client) *SnapshotClient {
	return &SnapshotClient{client: client}
}

// Fetch retrieves a depth snapshot for sym at the given market type and
// depth limit, returning it in the shape the symbol state machine expects.
func (c *SnapshotClient) Fetch(ctx context.Context, marketType markettype.Item, sym string, limit int) (booksync.SnapshotData, error) {
	base, weight := spotBaseURL, spotDepthWeight
	path := "/api/v3/depth"
	if marketType.IsDerivative() {
		base, weight = futuresBaseURL, futuresDepthWeight
		path = "/fapi/v1/depth"
	}

	url := fmt.Sprintf("%s%s?symbol=%s&limit=%d", base, path, wireSymbol(sym), snapshotLimit(limit))

	var resp snapshotResponse
	if err := c.client.GetJSON(ctx, "binance", url, weight, request.DefaultFetchOptions(), &resp); err != nil {
		return booksync.SnapshotData{}, err
	}

	bids, err := toLevels(resp.Bids)
	if err != nil {
		return booksync.SnapshotData{}, fmt.Errorf("decode snapshot bids: %w", err)
	}
	asks, err := toLevels(resp.Asks)
	if err != nil {
		return booksync.SnapshotData{}, fmt.Errorf("decode snapshot asks: %w", err)
	}

	return booksync.SnapshotData{
		Bids:         bids,
		Asks:         asks,
		LastUpdateID: resp.LastUpdateID,
		Timestamp:    time.Now().UTC(),
	}, nil
}

// wireSymbol converts the canonical BASE-QUOTE form back to Binance's
// concatenated wire form, e.g. "BTC-USDT" -> "BTCUSDT".
func wireSymbol(sym string) string {
	out := make([]byte, 0, len(sym))
	for i := 0; i < len(sym); i++ {
		if sym[i] == '-' {
			continue
		}
		out = append(out, sym[i])
	}
	return string(out)
}

// snapshotLimit rounds limit up to one of Binance's allowed depth values
// (5, 10, 20, 50, 100, 500, 1000, 5000).
func snapshotLimit(limit int) int {
	allowed := []int{5, 10, 20, 50, 100, 500, 1000, 5000}
	for _, a := range allowed {
		if limit <= a {
			return a
		}
	}
	return 5000
}
