// Package booksync implements the per-(exchange, symbol) synchronization
// state machine - the heart of the orderbook core. It owns the
// lifecycle from IDLE through a snapshot-aligned, continuously-validated
// READY stream, with gap detection driving it back through RESYNC.
//
// A Symbol is single-writer: every method must be called from the one
// goroutine that owns it (the manager's per-symbol worker). There
// is no internal locking here - isolation comes from ownership, not locks.
package booksync

import (
	"errors"
	"time"

	"github.com/MNS-Vic/marketprism-sub006/exchanges/orderbook"
	"github.com/MNS-Vic/marketprism-sub006/internal/log"
	"github.com/MNS-Vic/marketprism-sub006/internal/markettype"
)

// Phase is a SymbolSyncState lifecycle phase.
type Phase int

// Phases, in lifecycle order.
const (
	PhaseIdle Phase = iota
	PhaseAwaitSnapshot
	PhaseSyncing
	PhaseReady
	PhaseResync
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseAwaitSnapshot:
		return "AWAIT_SNAPSHOT"
	case PhaseSyncing:
		return "SYNCING"
	case PhaseReady:
		return "READY"
	case PhaseResync:
		return "RESYNC"
	case PhaseFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Errors a Symbol's methods can return. Callers branch on these to decide
// the next external action (fetch a snapshot, sleep a backoff, give up).
var (
	ErrAlignmentImpossible = errors.New("booksync: snapshot alignment impossible")
	ErrNotAwaitingSnapshot = errors.New("booksync: snapshot delivered outside AWAIT_SNAPSHOT")
	ErrSequenceGap         = errors.New("booksync: sequence gap")
	ErrChecksumMismatch    = errors.New("booksync: checksum mismatch")
)

// Stats are the per-symbol counters exposed on the health endpoint.
type Stats struct {
	UpdatesApplied      uint64
	GapsDetected        uint64
	Resyncs             uint64
	ChecksumFailures    uint64
	BufferOverflows     uint64
	BufferHighWatermark int
	PUMatches           uint64
	OverlapValid        uint64
}

// StatsView is the immutable snapshot returned by Symbol.StatsView.
type StatsView struct {
	Exchange      string
	Symbol        string
	Phase         Phase
	LastUpdateID  int64
	LastEventTime time.Time
	BufferSize    int
	Stats         Stats
}

// Config bounds a Symbol's buffer and resync behavior.
type Config struct {
	BufferLimit      int           // bounded FIFO capacity; drop-oldest on overflow
	MaxResyncs       int           // consecutive RESYNC failures before FAILED
	BaseRetryDelay   time.Duration // first RESYNC->AWAIT_SNAPSHOT retry delay
	MaxRetryDelay    time.Duration // cap on the exponential retry backoff
	DepthLimit       int
}

// DefaultConfig returns reasonable defaults: a 1000-entry buffer, 15
// cap before the symbol gives up.
func DefaultConfig(depthLimit int) Config {
	return Config{
		BufferLimit:    1000,
		MaxResyncs:     15,
		BaseRetryDelay: time.Second,
		MaxRetryDelay:  time.Minute,
		DepthLimit:     depthLimit,
	}
}

// Symbol is the per-(exchange, symbol) synchronization state machine.
type Symbol struct {
	Exchange   string
	MarketType markettype.Item
	SymbolName string

	cfg    Config
	policy Policy

	phase  Phase
	book   *orderbook.Book
	buffer []*orderbook.Update

	lastApplied         *orderbook.Update
	consecutiveFailures int

	stats Stats
}

// New constructs a Symbol in the IDLE phase.
func New(exchange string, marketType markettype.Item, sym string, policy Policy, cfg Config) *Symbol {
	return &Symbol{
		Exchange:   exchange,
		MarketType: marketType,
		SymbolName: sym,
		cfg:        cfg,
		policy:     policy,
		phase:      PhaseIdle,
	}
}

// Phase returns the symbol's current lifecycle phase.
func (s *Symbol) Phase() Phase { return s.phase }

// Subscribe drives IDLE -> AWAIT_SNAPSHOT, the entry point for a symbol
// the manager has just spun a worker up for.
func (s *Symbol) Subscribe() {
	s.phase = PhaseAwaitSnapshot
}

// OnUpdate delivers a decoded update to the symbol. In AWAIT_SNAPSHOT or
// SYNCING it is buffered (drop-oldest on overflow); in READY it is validated and applied,
// returning the new book snapshot to publish; in any other phase it is
// dropped (a resync or failure is already in flight).
func (s *Symbol) OnUpdate(u *orderbook.Update) (*orderbook.Book, error) {
	switch s.phase {
	case PhaseAwaitSnapshot, PhaseSyncing:
		s.bufferAppend(u)
		return nil, nil
	case PhaseReady:
		return s.applyReady(u)
	default:
		return nil, nil
	}
}

func (s *Symbol) bufferAppend(u *orderbook.Update) {
	if len(s.buffer) >= s.cfg.BufferLimit {
		s.buffer = append(s.buffer[1:], u)
		s.stats.BufferOverflows++
	} else {
		s.buffer = append(s.buffer, u)
	}
	if len(s.buffer) > s.stats.BufferHighWatermark {
		s.stats.BufferHighWatermark = len(s.buffer)
	}
}

func (s *Symbol) applyReady(u *orderbook.Update) (*orderbook.Book, error) {
	ok, reason := s.policy.Continuity(u, s.lastApplied)
	if !ok {
		s.forceResync()
		log.Warnf(log.SyncMgr, "%s %s sequence gap: prev_last_update_id=%d update=%d..%d",
			s.Exchange, s.SymbolName, s.lastApplied.LastUpdateID, u.FirstUpdateID, u.LastUpdateID)
		return nil, ErrSequenceGap
	}
	switch reason {
	case ContinuityPUMatch:
		s.stats.PUMatches++
	case ContinuityOverlapValid:
		s.stats.OverlapValid++
	}

	if err := orderbook.Apply(s.book, u); err != nil {
		s.forceResync()
		log.Warnf(log.SyncMgr, "%s %s crossed book on apply: %v", s.Exchange, s.SymbolName, err)
		return nil, err
	}

	if err := s.policy.VerifyChecksum(s.book, u); err != nil {
		s.stats.ChecksumFailures++
		s.forceResync()
		log.Warnf(log.SyncMgr, "%s %s checksum mismatch: %v", s.Exchange, s.SymbolName, err)
		return nil, errors.Join(ErrChecksumMismatch, err)
	}

	s.lastApplied = u
	s.stats.UpdatesApplied++
	return s.book.Clone(), nil
}

// SnapshotData is what a snapshot client hands back to install a book.
type SnapshotData struct {
	Bids         orderbook.Levels
	Asks         orderbook.Levels
	LastUpdateID int64
	Timestamp    time.Time
}

// OnSnapshotReady installs a fetched snapshot, transitions AWAIT_SNAPSHOT
// -> SYNCING, and attempts to align and drain the buffer accumulated while
// the snapshot was in flight. On success it transitions to READY and
// returns the first normalized orderbook to emit. On alignment failure it
// discards the snapshot, transitions to RESYNC, and returns
// ErrAlignmentImpossible.
func (s *Symbol) OnSnapshotReady(snap SnapshotData) (*orderbook.Book, error) {
	if s.phase != PhaseAwaitSnapshot {
		return nil, ErrNotAwaitingSnapshot
	}
	s.phase = PhaseSyncing

	book := orderbook.New(s.Exchange, s.MarketType, s.SymbolName, s.cfg.DepthLimit)
	if err := book.LoadSnapshot(snap.Bids, snap.Asks, snap.LastUpdateID, snap.Timestamp); err != nil {
		s.phase = PhaseAwaitSnapshot
		return nil, err
	}
	s.book = book

	aligned, applied, lastApplied, err := s.alignAndDrain(snap.LastUpdateID)
	if err != nil {
		s.book = nil
		s.buffer = nil
		s.phase = PhaseResync
		s.stats.Resyncs++
		return nil, err
	}
	_ = applied

	s.lastApplied = lastApplied
	s.consecutiveFailures = 0
	s.phase = PhaseReady
	_ = aligned
	return s.book.Clone(), nil
}

// alignAndDrain finds the minimal buffered update whose range straddles
// snapshotUpdateID, discards everything strictly earlier, and applies the
// rest in order, stopping at the first gap.
func (s *Symbol) alignAndDrain(snapshotUpdateID int64) (aligned bool, appliedCount int, lastApplied *orderbook.Update, err error) {
	buf := s.buffer
	s.buffer = nil

	i := 0
	for ; i < len(buf); i++ {
		discard, isAligned := s.policy.Align(buf[i], snapshotUpdateID)
		if discard {
			continue
		}
		if !isAligned {
			return false, 0, nil, ErrAlignmentImpossible
		}
		break
	}
	if i == len(buf) {
		// Buffer fully discarded (or empty): the book is exactly the
		// snapshot, nothing more to apply yet.
		sentinel := &orderbook.Update{LastUpdateID: snapshotUpdateID}
		return true, 0, sentinel, nil
	}

	first := buf[i]
	if err := orderbook.Apply(s.book, first); err != nil {
		return false, 0, nil, err
	}
	last := first
	applied := 1

	for i++; i < len(buf); i++ {
		ok, _ := s.policy.Continuity(buf[i], last)
		if !ok {
			return false, applied, nil, ErrAlignmentImpossible
		}
		if err := orderbook.Apply(s.book, buf[i]); err != nil {
			return false, applied, nil, err
		}
		last = buf[i]
		applied++
	}

	if err := s.policy.VerifyChecksum(s.book, last); err != nil {
		return false, applied, nil, errors.Join(ErrChecksumMismatch, err)
	}

	return true, applied, last, nil
}

// forceResync clears the book and moves to RESYNC - used for sequence gaps,
// crossed-book invariant failures, checksum mismatches, and heartbeat
// timeouts - all treated as gaps.
func (s *Symbol) forceResync() {
	s.book = nil
	s.buffer = nil
	s.lastApplied = nil
	s.phase = PhaseResync
	s.stats.GapsDetected++
	s.stats.Resyncs++
}

// ForceResync is the externally-triggered equivalent of forceResync, used
// by the worker on a heartbeat timeout.
func (s *Symbol) ForceResync() {
	if s.phase == PhaseReady || s.phase == PhaseSyncing {
		s.forceResync()
	}
}

// Retry drives RESYNC -> AWAIT_SNAPSHOT after the caller has slept
// NextRetryDelay, or marks the symbol FAILED once MaxResyncs consecutive
// failures have accumulated.
func (s *Symbol) Retry() {
	s.consecutiveFailures++
	if s.consecutiveFailures >= s.cfg.MaxResyncs {
		s.phase = PhaseFailed
		log.Errorf(log.SyncMgr, "%s %s exceeded max resyncs (%d), marking FAILED",
			s.Exchange, s.SymbolName, s.cfg.MaxResyncs)
		return
	}
	s.phase = PhaseAwaitSnapshot
}

// NextRetryDelay computes the exponential backoff (with the caller
// expected to add its own jitter) for the current failure count.
func (s *Symbol) NextRetryDelay() time.Duration {
	d := s.cfg.BaseRetryDelay << min(s.consecutiveFailures, 20)
	if d > s.cfg.MaxRetryDelay || d <= 0 {
		return s.cfg.MaxRetryDelay
	}
	return d
}

// SnapshotUnavailable records a failed snapshot fetch attempt; once
// MaxResyncs consecutive failures accumulate the symbol is marked FAILED,
// otherwise it stays in AWAIT_SNAPSHOT for the caller to retry.
func (s *Symbol) SnapshotUnavailable() {
	s.consecutiveFailures++
	if s.consecutiveFailures >= s.cfg.MaxResyncs {
		s.phase = PhaseFailed
	}
}

// Snapshot returns an immutable copy of the current book, or nil if the
// symbol has none (not yet READY, or mid-resync).
func (s *Symbol) Snapshot() *orderbook.Book {
	if s.book == nil {
		return nil
	}
	return s.book.Clone()
}

// StatsView returns a point-in-time, immutable view of the symbol's state
// for the health endpoint.
func (s *Symbol) StatsView() StatsView {
	var lastUpdateID int64
	var lastEventTime time.Time
	if s.book != nil {
		lastUpdateID = s.book.LastUpdateID
		lastEventTime = s.book.Timestamp
	}
	return StatsView{
		Exchange:      s.Exchange,
		Symbol:        s.SymbolName,
		Phase:         s.phase,
		LastUpdateID:  lastUpdateID,
		LastEventTime: lastEventTime,
		BufferSize:    len(s.buffer),
		Stats:         s.stats,
	}
}
