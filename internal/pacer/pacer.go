package pacer

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ActionKind names a quota-gated outbound action.
type ActionKind string

const (
	ActionConnection ActionKind = "connection"
	ActionMessage    ActionKind = "message"
)

// ErrQuotaExceeded signals the daily limit for an action kind is spent. It is
// expected control flow, not a failure: callers stop sending for the day.
var ErrQuotaExceeded = errors.New("daily quota exceeded")

// windowLength is the rolling quota window. Counters reset lazily the first
// time a reservation is attempted after the window elapses.
const windowLength = 24 * time.Hour

// CounterStore persists the quota window so limits survive restarts.
type CounterStore interface {
	ActionWindow(ctx context.Context) (counts map[string]int, resetAt time.Time, err error)
	SaveActionWindow(ctx context.Context, counts map[string]int, resetAt time.Time) error
}

// Pacer enforces per-day action quotas and paces outbound actions with
// randomized delays so the bot never acts on a fixed cadence.
type Pacer struct {
	mu       sync.Mutex
	counters map[ActionKind]int
	resetAt  time.Time
	store    CounterStore
	logger   *zap.Logger

	// Injected for tests.
	now   func() time.Time
	sleep func(time.Duration)
	rng   *rand.Rand
}

func New(logger *zap.Logger) *Pacer {
	return &Pacer{
		counters: make(map[ActionKind]int),
		logger:   logger,
		now:      time.Now,
		sleep:    time.Sleep,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewWithStore restores the persisted quota window. A load failure starts a
// fresh window rather than blocking the run.
func NewWithStore(ctx context.Context, store CounterStore, logger *zap.Logger) *Pacer {
	p := New(logger)
	p.store = store

	counts, resetAt, err := store.ActionWindow(ctx)
	if err != nil {
		logger.Warn("failed to restore quota window, starting fresh", zap.Error(err))
		return p
	}
	for kind, n := range counts {
		p.counters[ActionKind(kind)] = n
	}
	p.resetAt = resetAt
	return p
}

// TryReserve atomically claims one unit of the daily quota for kind. The
// counter only moves when the reservation succeeds; after ErrQuotaExceeded
// the caller must not perform the action.
func (p *Pacer) TryReserve(ctx context.Context, kind ActionKind, dailyLimit int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if !p.resetAt.IsZero() && now.After(p.resetAt) {
		p.logger.Info("quota window elapsed, resetting counters",
			zap.Time("previous_reset_at", p.resetAt))
		p.counters = make(map[ActionKind]int)
		p.resetAt = time.Time{}
	}

	if p.counters[kind] >= dailyLimit {
		return ErrQuotaExceeded
	}

	if p.resetAt.IsZero() {
		p.resetAt = now.Add(windowLength)
	}
	p.counters[kind]++

	if p.store != nil {
		if err := p.persistLocked(ctx); err != nil {
			p.logger.Warn("failed to persist quota window", zap.Error(err))
		}
	}
	return nil
}

// Remaining reports how many reservations are left for kind in this window.
func (p *Pacer) Remaining(kind ActionKind, dailyLimit int) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.resetAt.IsZero() && p.now().After(p.resetAt) {
		return dailyLimit
	}
	left := dailyLimit - p.counters[kind]
	if left < 0 {
		return 0
	}
	return left
}

// DelayBeforeNextAction blocks for a uniformly random duration in
// [min, max]. This is the only intentionally blocking primitive in the
// pacing path; it never fails.
func (p *Pacer) DelayBeforeNextAction(min, max time.Duration) {
	if max < min {
		max = min
	}
	d := min
	if span := max - min; span > 0 {
		p.mu.Lock()
		d += time.Duration(p.rng.Int63n(int64(span) + 1))
		p.mu.Unlock()
	}
	p.sleep(d)
}

func (p *Pacer) persistLocked(ctx context.Context) error {
	counts := make(map[string]int, len(p.counters))
	for kind, n := range p.counters {
		counts[string(kind)] = n
	}
	return p.store.SaveActionWindow(ctx, counts, p.resetAt)
}
