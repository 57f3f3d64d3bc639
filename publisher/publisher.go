// Package publisher delivers normalized books to NATS JetStream. Connection
// and JetStream context setup follows the usual Publish-over-JetStreamContext
// pattern; the bounded per-symbol queue with drop-oldest/last-wins
// backpressure keeps a slow or unavailable NATS connection from backing up
// upstream producers.
package publisher

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/MNS-Vic/marketprism-sub006/exchanges/orderbook"
	"github.com/MNS-Vic/marketprism-sub006/internal/log"
)

// DefaultCloseGrace bounds how long Close waits for each symbol's queue to
// drain before force-terminating.
const DefaultCloseGrace = 5 * time.Second

// JetStream is the capability this package depends on; satisfied by
// nats.JetStreamContext, narrowed so tests can fake it without a live
// NATS server.
type JetStream interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Config controls subject naming and per-symbol queue depth.
type Config struct {
	SubjectPrefix string // e.g. "orderbook" -> "orderbook.binance.spot.BTC-USDT"
	QueueDepth    int    // bounded per-symbol queue; default 64
}

// DefaultConfig returns reasonable defaults.
func DefaultConfig() Config {
	return Config{SubjectPrefix: "orderbook", QueueDepth: 64}
}

// Publisher fans normalized books out to JetStream, one bounded,
// drop-oldest queue per (exchange, symbol) so a slow or unavailable NATS
// connection never backs up the manager's worker goroutines.
type Publisher struct {
	js  JetStream
	cfg Config

	mu     sync.Mutex
	queues map[string]*symbolQueue
	wg     sync.WaitGroup
	stopCh chan struct{}
}

type symbolQueue struct {
	ch chan *orderbook.Book
}

// New constructs a Publisher backed by an established JetStream context.
func New(js JetStream, cfg Config) *Publisher {
	return &Publisher{
		js:     js,
		cfg:    cfg,
		queues: make(map[string]*symbolQueue),
		stopCh: make(chan struct{}),
	}
}

// Publish enqueues book for delivery, dropping the oldest queued entry
// for its symbol if the queue is full so the newest book always wins.
func (p *Publisher) Publish(book *orderbook.Book) {
	subj := p.subject(book)

	p.mu.Lock()
	q, ok := p.queues[subj]
	if !ok {
		depth := p.cfg.QueueDepth
		if depth <= 0 {
			depth = 64
		}
		q = &symbolQueue{ch: make(chan *orderbook.Book, depth)}
		p.queues[subj] = q
		p.wg.Add(1)
		go p.drain(subj, q)
	}
	p.mu.Unlock()

	for {
		select {
		case q.ch <- book:
			return
		default:
		}
		select {
		case <-q.ch:
			log.Warnf(log.PublisherMgr, "%s publish queue full, dropping oldest", subj)
		default:
			// The drain goroutine emptied the queue meanwhile; retry the send.
		}
	}
}

// drain publishes queued books for subj until told to stop, at which point
// it flushes whatever remains buffered in q.ch before returning rather than
// racing the stop signal against the queue and dropping unpublished books.
func (p *Publisher) drain(subj string, q *symbolQueue) {
	defer p.wg.Done()
	for {
		select {
		case book := <-q.ch:
			p.publishOne(subj, book)
		case <-p.stopCh:
			p.flush(subj, q)
			return
		}
	}
}

func (p *Publisher) flush(subj string, q *symbolQueue) {
	for {
		select {
		case book := <-q.ch:
			p.publishOne(subj, book)
		default:
			return
		}
	}
}

func (p *Publisher) publishOne(subj string, book *orderbook.Book) {
	data, err := json.Marshal(book.ToMessage())
	if err != nil {
		log.Errorf(log.PublisherMgr, "marshal book for %s: %v", subj, err)
		return
	}
	if _, err := p.js.Publish(subj, data); err != nil {
		log.Warnf(log.PublisherMgr, "publish %s: %v", subj, err)
	}
}

func (p *Publisher) subject(book *orderbook.Book) string {
	prefix := p.cfg.SubjectPrefix
	if prefix == "" {
		prefix = "orderbook"
	}
	return fmt.Sprintf("%s.%s.%s.%s", prefix, book.Exchange, book.MarketType, book.Symbol)
}

// Close signals every drain goroutine to flush its queue and stop, waiting
// up to DefaultCloseGrace for them to finish before giving up - mirroring
// the manager's own grace-period-then-force shutdown. Publish must not be
// called after Close.
func (p *Publisher) Close() {
	close(p.stopCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(DefaultCloseGrace):
		log.Warnf(log.PublisherMgr, "close grace period of %s elapsed with queues still draining", DefaultCloseGrace)
	}
}
