package pacer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestPacer(t *testing.T, now time.Time) (*Pacer, *time.Time) {
	t.Helper()
	current := now
	p := New(zap.NewNop())
	p.now = func() time.Time { return current }
	p.sleep = func(time.Duration) {}
	return p, &current
}

func TestTryReserveEnforcesLimit(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPacer(t, time.Now())

	for i := 0; i < 3; i++ {
		require.NoError(t, p.TryReserve(ctx, ActionConnection, 3))
	}

	// Over the limit: the reservation fails and the counter stays put.
	assert.ErrorIs(t, p.TryReserve(ctx, ActionConnection, 3), ErrQuotaExceeded)
	assert.Equal(t, 0, p.Remaining(ActionConnection, 3))
	assert.ErrorIs(t, p.TryReserve(ctx, ActionConnection, 3), ErrQuotaExceeded)
}

func TestTryReserveKindsAreIndependent(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPacer(t, time.Now())

	require.NoError(t, p.TryReserve(ctx, ActionConnection, 1))
	assert.ErrorIs(t, p.TryReserve(ctx, ActionConnection, 1), ErrQuotaExceeded)
	assert.NoError(t, p.TryReserve(ctx, ActionMessage, 1))
}

func TestLazyWindowReset(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	p, current := newTestPacer(t, start)

	for i := 0; i < 2; i++ {
		require.NoError(t, p.TryReserve(ctx, ActionMessage, 2))
	}
	assert.ErrorIs(t, p.TryReserve(ctx, ActionMessage, 2), ErrQuotaExceeded)

	// Once the window elapses, the next reservation succeeds and opens a
	// fresh window with this reservation counted.
	*current = start.Add(24*time.Hour + time.Minute)
	require.NoError(t, p.TryReserve(ctx, ActionMessage, 2))
	assert.Equal(t, 1, p.Remaining(ActionMessage, 2))
}

func TestRemainingBeforeAnyReservation(t *testing.T) {
	p, _ := newTestPacer(t, time.Now())
	assert.Equal(t, 5, p.Remaining(ActionConnection, 5))
}

func TestDelayBeforeNextActionBounds(t *testing.T) {
	p := New(zap.NewNop())
	var slept []time.Duration
	p.sleep = func(d time.Duration) { slept = append(slept, d) }

	for i := 0; i < 50; i++ {
		p.DelayBeforeNextAction(2*time.Second, 5*time.Second)
	}
	require.Len(t, slept, 50)
	for _, d := range slept {
		assert.GreaterOrEqual(t, d, 2*time.Second)
		assert.LessOrEqual(t, d, 5*time.Second)
	}
}

func TestDelayBeforeNextActionSwappedBounds(t *testing.T) {
	p := New(zap.NewNop())
	var got time.Duration
	p.sleep = func(d time.Duration) { got = d }

	p.DelayBeforeNextAction(3*time.Second, time.Second)
	assert.Equal(t, 3*time.Second, got)
}

type fakeStore struct {
	counts  map[string]int
	resetAt time.Time
	saves   int
}

func (f *fakeStore) ActionWindow(context.Context) (map[string]int, time.Time, error) {
	return f.counts, f.resetAt, nil
}

func (f *fakeStore) SaveActionWindow(_ context.Context, counts map[string]int, resetAt time.Time) error {
	f.counts = counts
	f.resetAt = resetAt
	f.saves++
	return nil
}

func TestPacerRestoresPersistedWindow(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{
		counts:  map[string]int{string(ActionConnection): 3},
		resetAt: time.Now().Add(12 * time.Hour),
	}

	p := NewWithStore(ctx, store, zap.NewNop())
	p.sleep = func(time.Duration) {}

	assert.ErrorIs(t, p.TryReserve(ctx, ActionConnection, 3), ErrQuotaExceeded)
	require.NoError(t, p.TryReserve(ctx, ActionMessage, 1))
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, 1, store.counts[string(ActionMessage)])
}
