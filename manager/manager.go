package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MNS-Vic/marketprism-sub006/exchanges/booksync"
	"github.com/MNS-Vic/marketprism-sub006/exchanges/orderbook"
	"github.com/MNS-Vic/marketprism-sub006/internal/log"
	"github.com/MNS-Vic/marketprism-sub006/internal/markettype"
)

// key identifies a single tracked (exchange, symbol) pair.
type key struct {
	exchange string
	symbol   string
}

// SymbolSpec describes one symbol the manager should track, supplied by
// the per-exchange configuration loader.
type SymbolSpec struct {
	Exchange     string
	MarketType   markettype.Item
	NativeSymbol string // the exchange's own wire symbol, e.g. "BTCUSDT"
	CanonSymbol  string // the normalized BASE-QUOTE form
	DepthLimit   int
	Fetcher      SnapshotFetcher
	Policy       booksync.Policy
	Heartbeat    time.Duration
}

// Manager is the fleet coordinator: it owns one worker per
// tracked symbol, routes decoded updates to the right one, and exposes
// read access to the latest book and stats for the health endpoint and
// the publisher.
type Manager struct {
	publish PublishFunc

	mu      sync.RWMutex
	workers map[key]*worker
	ctx     context.Context
	cancel  context.CancelFunc
}

// New constructs a Manager. publish is called from worker goroutines
// every time a symbol produces a new normalized book; it must not block.
func New(publish PublishFunc) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		publish: publish,
		workers: make(map[key]*worker),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Register spawns a worker for spec and starts its lifecycle goroutine.
// Registering the same (exchange, symbol) twice replaces the prior worker,
// stopping it first.
func (m *Manager) Register(spec SymbolSpec) {
	k := key{exchange: spec.Exchange, symbol: spec.CanonSymbol}

	m.mu.Lock()
	if existing, ok := m.workers[k]; ok {
		delete(m.workers, k)
		m.mu.Unlock()
		existing.stop()
		m.mu.Lock()
	}

	w := newWorker(workerConfig{
		exchange:     spec.Exchange,
		marketType:   spec.MarketType,
		nativeSymbol: spec.NativeSymbol,
		canonSymbol:  spec.CanonSymbol,
		depthLimit:   spec.DepthLimit,
		fetcher:      spec.Fetcher,
		policy:       spec.Policy,
		publish:      m.publish,
		heartbeat:    spec.Heartbeat,
	})
	m.workers[k] = w
	m.mu.Unlock()

	w.start(m.ctx)
	log.Infof(log.ManagerMgr, "registered %s %s (market=%s depth=%d)", spec.Exchange, spec.CanonSymbol, spec.MarketType, spec.DepthLimit)
}

// Route delivers a decoded update to the worker for (exchange, symbol).
// It returns an error if no worker is registered for the pair, or if the
// worker's inbound buffer is full (the decoder should log and drop rather
// than block on a slow consumer).
func (m *Manager) Route(exchange, canonSymbol string, u *orderbook.Update) error {
	m.mu.RLock()
	w, ok := m.workers[key{exchange: exchange, symbol: canonSymbol}]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("manager: no worker registered for %s %s", exchange, canonSymbol)
	}
	return w.deliver(u)
}

// Get returns the latest normalized book for (exchange, symbol), or false
// if the symbol isn't tracked or hasn't produced a book yet.
func (m *Manager) Get(exchange, canonSymbol string) (*orderbook.Book, bool) {
	m.mu.RLock()
	w, ok := m.workers[key{exchange: exchange, symbol: canonSymbol}]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	book := w.snapshot()
	return book, book != nil
}

// Stats returns the current state view for (exchange, symbol).
func (m *Manager) Stats(exchange, canonSymbol string) (booksync.StatsView, bool) {
	m.mu.RLock()
	w, ok := m.workers[key{exchange: exchange, symbol: canonSymbol}]
	m.mu.RUnlock()
	if !ok {
		return booksync.StatsView{}, false
	}
	return w.statsView(), true
}

// StatsAll returns a state view for every tracked symbol, for the health
// endpoint's fleet-wide listing.
func (m *Manager) StatsAll() []booksync.StatsView {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]booksync.StatsView, 0, len(m.workers))
	for _, w := range m.workers {
		out = append(out, w.statsView())
	}
	return out
}

// Shutdown stops every worker, waiting up to grace for them to exit
// cleanly before returning.
func (m *Manager) Shutdown(grace time.Duration) {
	m.cancel()

	m.mu.Lock()
	workers := make([]*worker, 0, len(m.workers))
	for _, w := range m.workers {
		workers = append(workers, w)
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		for _, w := range workers {
			<-w.doneCh
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		log.Warnf(log.ManagerMgr, "shutdown grace period of %s elapsed with workers still running", grace)
	}
}
