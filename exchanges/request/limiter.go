// Package request implements the shared, process-wide snapshot admission
// control: a per-exchange sliding weight budget plus the
// generic REST snapshot fetch helper with retry/backoff.
//
// This is the one piece of state shared across every symbol worker; all of
// it is confined to this package behind a mutex.
package request

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Default backoff multiplier ceilings.
const (
	maxBanMultiplier    = 8.0
	maxLimitMultiplier  = 4.0
	banMultiplierStep   = 2.0
	limitMultiplierStep = 1.5
)

// Limiter is a shared, per-exchange weight-budget admission controller. A
// token-bucket limiter (golang.org/x/time/rate) approximates the sliding
// window: burst equals the full per-minute ceiling so a single request
// (e.g. a 250-weight deep snapshot) is never individually rejected, and the
// refill rate enforces the long-run budget.
type Limiter struct {
	mu        sync.Mutex
	exchanges map[string]*exchangeBudget
}

type exchangeBudget struct {
	tokens      *rate.Limiter
	baseBackoff time.Duration

	backoffMu  sync.Mutex
	multiplier float64
}

// NewLimiter constructs an empty, shared limiter. Call Register once per
// exchange before any Acquire call targets it.
func NewLimiter() *Limiter {
	return &Limiter{exchanges: make(map[string]*exchangeBudget)}
}

// Register configures the weight-per-minute ceiling and base retry backoff
// for an exchange, e.g. Register("binance", 1200, 500*time.Millisecond).
func (l *Limiter) Register(exchange string, weightPerMinute int, baseBackoff time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.exchanges[exchange] = &exchangeBudget{
		tokens:      rate.NewLimiter(rate.Limit(float64(weightPerMinute)/60.0), weightPerMinute),
		baseBackoff: baseBackoff,
		multiplier:  1,
	}
}

func (l *Limiter) get(exchange string) *exchangeBudget {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.exchanges[exchange]
	if !ok {
		// Unregistered exchanges get an effectively unlimited budget rather
		// than panicking - a missing Register call is a config bug, not a
		// reason to wedge every worker for that exchange.
		b = &exchangeBudget{tokens: rate.NewLimiter(rate.Inf, 1), multiplier: 1}
		l.exchanges[exchange] = b
	}
	return b
}

// Acquire blocks until weight tokens are available for exchange, or ctx is
// done. This is one of the four suspension points a symbol worker yields
// at.
func (l *Limiter) Acquire(ctx context.Context, exchange string, weight int) error {
	r := l.get(exchange).tokens.ReserveN(time.Now(), weight)
	if !r.OK() {
		return fmt.Errorf("request: weight %d exceeds %s budget ceiling", weight, exchange)
	}
	t := time.NewTimer(r.Delay())
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}

// RecordStatus applies the exchange's failure-policy backoff multiplier for
// an observed HTTP status (418 IP ban, 429 rate limited) and returns how
// long the caller should sleep before retrying. Any other status resets
// the multiplier to 1, recovering the base backoff on the next failure.
func (l *Limiter) RecordStatus(exchange string, status int) time.Duration {
	b := l.get(exchange)
	b.backoffMu.Lock()
	defer b.backoffMu.Unlock()

	switch status {
	case 418:
		b.multiplier = min(b.multiplier*banMultiplierStep, maxBanMultiplier)
	case 429:
		b.multiplier = min(b.multiplier*limitMultiplierStep, maxLimitMultiplier)
	default:
		b.multiplier = 1
		return 0
	}
	return time.Duration(float64(b.baseBackoff) * b.multiplier)
}

// ResetBackoff clears accumulated backoff for an exchange after a
// successful request.
func (l *Limiter) ResetBackoff(exchange string) {
	b := l.get(exchange)
	b.backoffMu.Lock()
	b.multiplier = 1
	b.backoffMu.Unlock()
}

// StartupJitter returns a random 0-9s delay used to stagger per-symbol
// snapshot requests on process start, avoiding a thundering herd.
func StartupJitter() time.Duration {
	return time.Duration(rand.Int63n(int64(9 * time.Second)))
}
