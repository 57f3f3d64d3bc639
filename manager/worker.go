// Package manager implements the orderbook fleet coordinator:
// one goroutine-isolated worker per (exchange, symbol), each owning a
// booksync.Symbol state machine, routing decoded updates to it, driving
// snapshot fetch/retry, and publishing normalized books. Worker isolation
// is grounded on the panic-recovering read/write loops in the Binance
// websocket connection package: a panic in one symbol's worker is logged
// and the worker restarted, never bringing down the fleet.
package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MNS-Vic/marketprism-sub006/exchanges/booksync"
	"github.com/MNS-Vic/marketprism-sub006/exchanges/orderbook"
	"github.com/MNS-Vic/marketprism-sub006/exchanges/request"
	"github.com/MNS-Vic/marketprism-sub006/internal/log"
	"github.com/MNS-Vic/marketprism-sub006/internal/markettype"
)

// minSnapshotInterval floors how often a worker will re-request a snapshot
// for the same symbol, independent of the weight limiter: a symbol stuck
// retrying still shouldn't hammer the REST endpoint faster than this.
const minSnapshotInterval = 30 * time.Second

// SnapshotFetcher is the capability every exchange's snapshot client
// implements; the manager depends on this rather than a concrete type so
// it can drive Binance, OKX, and Deribit identically.
type SnapshotFetcher interface {
	Fetch(ctx context.Context, marketType markettype.Item, nativeSymbol string, limit int) (booksync.SnapshotData, error)
}

// PublishFunc is how a worker hands a freshly normalized book off for
// outbound delivery. It must not block meaningfully - the
// publisher package itself owns backpressure.
type PublishFunc func(book *orderbook.Book)

// workerConfig bundles everything a worker needs that is shared across
// the whole fleet.
type workerConfig struct {
	exchange     string
	marketType   markettype.Item
	nativeSymbol string
	canonSymbol  string
	depthLimit   int
	fetcher      SnapshotFetcher
	policy       booksync.Policy
	publish      PublishFunc
	heartbeat    time.Duration
}

// worker owns a single (exchange, symbol) Symbol state machine and the
// goroutine driving its lifecycle. sym is single-writer: only the worker
// goroutine ever calls its mutating methods. Callers on other goroutines
// (the health endpoint, Manager.Get/Stats) never touch sym directly - they
// read lastSnapshot/lastStats under mu, which the worker goroutine
// refreshes after every state transition.
type worker struct {
	cfg workerConfig

	sym *booksync.Symbol

	updates  chan *orderbook.Update
	stopCh   chan struct{}
	doneCh   chan struct{}

	mu              sync.RWMutex
	lastSnapshot    *orderbook.Book
	lastStats       booksync.StatsView
	lastSeen        time.Time
	lastSnapshotReq time.Time

	jitteredOnce sync.Once
}

func newWorker(cfg workerConfig) *worker {
	return &worker{
		cfg:     cfg,
		sym:     booksync.New(cfg.exchange, cfg.marketType, cfg.canonSymbol, cfg.policy, booksync.DefaultConfig(cfg.depthLimit)),
		updates: make(chan *orderbook.Update, 256),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// start launches the worker's supervised goroutine. A panic inside run is
// recovered, logged, and the worker restarted after a short delay - the
// fleet as a whole never goes down because one symbol misbehaves.
func (w *worker) start(ctx context.Context) {
	go w.supervise(ctx)
}

func (w *worker) supervise(ctx context.Context) {
	defer close(w.doneCh)
	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		if w.runOnce(ctx) {
			return
		}
		log.Warnf(log.ManagerMgr, "%s %s worker restarting after failure", w.cfg.exchange, w.cfg.canonSymbol)
		time.Sleep(time.Second)
	}
}

// runOnce runs the worker's full lifecycle loop until it exits cleanly
// (true) or panics (false, triggering a restart by supervise).
func (w *worker) runOnce(ctx context.Context) (clean bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf(log.ManagerMgr, "%s %s worker panic: %v", w.cfg.exchange, w.cfg.canonSymbol, r)
			clean = false
		}
	}()

	w.sym.Subscribe()
	w.refreshStats()
	w.awaitStartupJitter(ctx)
	w.requestSnapshot(ctx)

	if w.cfg.heartbeat <= 0 {
		w.cfg.heartbeat = 30 * time.Second
	}
	ticker := time.NewTicker(w.cfg.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			w.drainPendingUpdates()
			return true
		case <-ctx.Done():
			w.drainPendingUpdates()
			return true
		case u := <-w.updates:
			w.onUpdate(u)
		case <-ticker.C:
			w.checkHeartbeat()
		}

		if w.sym.Phase() == booksync.PhaseResync {
			w.sym.Retry()
			w.refreshStats()
		}
		if w.sym.Phase() == booksync.PhaseAwaitSnapshot && w.needsSnapshotRetry() {
			w.requestSnapshot(ctx)
		}
	}
}

// drainPendingUpdates applies whatever updates are already queued before the
// worker exits, so a shutdown racing an in-flight update still emits that
// update's final book rather than dropping it.
func (w *worker) drainPendingUpdates() {
	for {
		select {
		case u := <-w.updates:
			w.onUpdate(u)
		default:
			return
		}
	}
}

func (w *worker) onUpdate(u *orderbook.Update) {
	w.mu.Lock()
	w.lastSeen = time.Now()
	w.mu.Unlock()

	book, err := w.sym.OnUpdate(u)
	if err != nil {
		log.Warnf(log.SyncMgr, "%s %s update rejected: %v", w.cfg.exchange, w.cfg.canonSymbol, err)
	}
	w.refreshStats()
	w.publishIfReady(book)
}

func (w *worker) publishIfReady(book *orderbook.Book) {
	if book == nil {
		return
	}
	w.mu.Lock()
	w.lastSnapshot = book
	w.mu.Unlock()
	if w.cfg.publish != nil {
		w.cfg.publish(book)
	}
}

// refreshStats copies sym's current state into the mutex-guarded cache
// other goroutines read through. Must only be called from the worker
// goroutine, immediately after any call that may have mutated sym.
func (w *worker) refreshStats() {
	view := w.sym.StatsView()
	w.mu.Lock()
	w.lastStats = view
	w.mu.Unlock()
}

func (w *worker) statsView() booksync.StatsView {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastStats
}

// needsSnapshotRetry is a best-effort non-blocking check; the worker does
// not want to busy-loop requesting snapshots, so the retry delay computed
// by the Symbol is honored via the last snapshot request's timestamp.
func (w *worker) needsSnapshotRetry() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return time.Since(w.lastSnapshotReq) > w.sym.NextRetryDelay() || w.lastSnapshotReq.IsZero()
}

// awaitStartupJitter sleeps a random 0-9s delay exactly once per worker,
// before its very first snapshot request, so a fleet of symbols coming up
// together doesn't all hit the REST endpoint in the same instant. Restarts
// after a panic skip it - only the process-wide startup needs staggering.
func (w *worker) awaitStartupJitter(ctx context.Context) {
	w.jitteredOnce.Do(func() {
		t := time.NewTimer(request.StartupJitter())
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
		case <-w.stopCh:
		}
	})
}

// requestSnapshot fetches a fresh snapshot, subject to a floor of
// minSnapshotInterval between attempts for this symbol, enforced independently
// of the shared weight limiter so a symbol stuck retrying can't hammer the
// REST endpoint faster than the exchange's documented floor.
func (w *worker) requestSnapshot(ctx context.Context) {
	w.mu.Lock()
	since := time.Since(w.lastSnapshotReq)
	if !w.lastSnapshotReq.IsZero() && since < minSnapshotInterval {
		w.mu.Unlock()
		return
	}
	w.lastSeen = time.Now()
	w.lastSnapshotReq = w.lastSeen
	w.mu.Unlock()

	fetchCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	snap, err := w.cfg.fetcher.Fetch(fetchCtx, w.cfg.marketType, w.cfg.nativeSymbol, w.cfg.depthLimit)
	if err != nil {
		log.Warnf(log.SnapshotMgr, "%s %s snapshot fetch failed: %v", w.cfg.exchange, w.cfg.canonSymbol, err)
		w.sym.SnapshotUnavailable()
		w.refreshStats()
		return
	}

	book, err := w.sym.OnSnapshotReady(snap)
	if err != nil {
		log.Warnf(log.SnapshotMgr, "%s %s snapshot alignment failed: %v", w.cfg.exchange, w.cfg.canonSymbol, err)
		w.sym.Retry()
		w.refreshStats()
		return
	}
	w.refreshStats()
	w.publishIfReady(book)
}

func (w *worker) checkHeartbeat() {
	w.mu.RLock()
	lastSeen := w.lastSeen
	w.mu.RUnlock()
	if w.sym.Phase() == booksync.PhaseReady && time.Since(lastSeen) > w.cfg.heartbeat*2 {
		log.Warnf(log.ManagerMgr, "%s %s heartbeat timeout, forcing resync", w.cfg.exchange, w.cfg.canonSymbol)
		w.sym.ForceResync()
		w.refreshStats()
	}
}

// deliver enqueues a decoded update for the worker, dropping it (rather
// than blocking the decoder goroutine) if the worker is unable to keep up
// and its channel is full.
func (w *worker) deliver(u *orderbook.Update) error {
	select {
	case w.updates <- u:
		return nil
	default:
		return fmt.Errorf("worker channel full for %s %s", w.cfg.exchange, w.cfg.canonSymbol)
	}
}

func (w *worker) stop() {
	close(w.stopCh)
	<-w.doneCh
}

func (w *worker) snapshot() *orderbook.Book {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastSnapshot
}
