package publisher

import (
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/MNS-Vic/marketprism-sub006/exchanges/orderbook"
	"github.com/MNS-Vic/marketprism-sub006/internal/markettype"
)

type fakeJetStream struct {
	mu       sync.Mutex
	messages map[string][][]byte
}

func newFakeJetStream() *fakeJetStream {
	return &fakeJetStream{messages: make(map[string][][]byte)}
}

func (f *fakeJetStream) Publish(subj string, data []byte, _ ...nats.PubOpt) (*nats.PubAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[subj] = append(f.messages[subj], data)
	return &nats.PubAck{}, nil
}

func (f *fakeJetStream) count(subj string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages[subj])
}

func testBook(exchange, sym string, updateID int64) *orderbook.Book {
	b := orderbook.New(exchange, markettype.Spot, sym, 20)
	_ = b.LoadSnapshot(
		orderbook.Levels{{Price: decimal.NewFromInt(100), Quantity: decimal.NewFromInt(1)}},
		orderbook.Levels{{Price: decimal.NewFromInt(101), Quantity: decimal.NewFromInt(1)}},
		updateID, time.Now(),
	)
	return b
}

func TestPublisherDeliversToSubject(t *testing.T) {
	js := newFakeJetStream()
	p := New(js, DefaultConfig())
	defer p.Close()

	p.Publish(testBook("binance", "BTC-USDT", 1))

	require.Eventually(t, func() bool {
		return js.count("orderbook.binance.spot.BTC-USDT") == 1
	}, time.Second, 5*time.Millisecond)
}

func TestPublisherSeparatesSymbolsIntoDistinctQueues(t *testing.T) {
	js := newFakeJetStream()
	p := New(js, DefaultConfig())
	defer p.Close()

	p.Publish(testBook("binance", "BTC-USDT", 1))
	p.Publish(testBook("okx", "ETH-USDT", 1))

	require.Eventually(t, func() bool {
		return js.count("orderbook.binance.spot.BTC-USDT") == 1 && js.count("orderbook.okx.spot.ETH-USDT") == 1
	}, time.Second, 5*time.Millisecond)
}

func TestPublisherCloseDrainsQueuedBooksBeforeReturning(t *testing.T) {
	js := newFakeJetStream()
	cfg := Config{SubjectPrefix: "orderbook", QueueDepth: 64}
	p := New(js, cfg)

	for i := int64(0); i < 20; i++ {
		p.Publish(testBook("binance", "BTC-USDT", i))
	}

	p.Close()

	require.Equal(t, 20, js.count("orderbook.binance.spot.BTC-USDT"), "Close must flush every queued book, not just stop accepting new ones")

	p.Publish(testBook("binance", "BTC-USDT", 99))
	require.Equal(t, 20, js.count("orderbook.binance.spot.BTC-USDT"), "no publish should happen after Close returns")
}

func TestPublisherDropsOldestWhenQueueFull(t *testing.T) {
	js := newFakeJetStream()
	cfg := Config{SubjectPrefix: "orderbook", QueueDepth: 1}
	p := New(js, cfg)
	defer p.Close()

	// Publish many in a tight loop before the drain goroutine necessarily
	// keeps up; none of this should ever block or panic.
	for i := int64(0); i < 50; i++ {
		p.Publish(testBook("binance", "BTC-USDT", i))
	}

	require.Eventually(t, func() bool {
		return js.count("orderbook.binance.spot.BTC-USDT") > 0
	}, time.Second, 5*time.Millisecond)
}
