package billing_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shamar-morrison/show-seek-sub003/pkg/billing"
)

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func newTestReconciler(t *testing.T, store billing.Store, nowMs int64) *billing.Reconciler {
	t.Helper()
	return billing.NewReconciler(store, billing.DefaultCatalog(),
		billing.WithClock(fixedClock(nowMs)))
}

func renewalEvent(id, user string, ts, expiration int64) billing.Event {
	return billing.Event{
		ID:               id,
		AppUserID:        user,
		Type:             "RENEWAL",
		ProductID:        monthlySKU,
		EventTimestampMs: billing.NewMillis(ts),
		ExpirationAtMs:   billing.NewMillis(expiration),
	}
}

func TestReconciler_Idempotence(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := billing.NewMemoryStore()
	rec := newTestReconciler(t, store, 5000)
	ev := renewalEvent("evt-1", "user-1", 1000, 10_000)

	status, err := rec.Reconcile(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusProcessed, status)

	first, err := store.GetSnapshot(ctx, "user-1")
	require.NoError(t, err)

	status, err = rec.Reconcile(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusDuplicate, status)

	second, err := store.GetSnapshot(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, first, second, "duplicate delivery must not change the snapshot")
}

func TestReconciler_StaleSkip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := billing.NewMemoryStore()
	rec := newTestReconciler(t, store, 5000)

	status, err := rec.Reconcile(ctx, renewalEvent("evt-new", "user-1", 1000, 10_000))
	require.NoError(t, err)
	require.Equal(t, billing.StatusProcessed, status)

	applied, err := store.GetSnapshot(ctx, "user-1")
	require.NoError(t, err)

	stale := renewalEvent("evt-old", "user-1", 999, 500)
	status, err = rec.Reconcile(ctx, stale)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusStale, status)

	after, err := store.GetSnapshot(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, applied, after, "stale events must not regress state")

	// Redelivery of the judged stale event is a duplicate, not stale again.
	status, err = rec.Reconcile(ctx, stale)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusDuplicate, status)
}

func TestReconciler_TieBreakByNovelty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := billing.NewMemoryStore()
	rec := newTestReconciler(t, store, 5000)

	status, err := rec.Reconcile(ctx, renewalEvent("evt-a", "user-1", 1000, 10_000))
	require.NoError(t, err)
	require.Equal(t, billing.StatusProcessed, status)

	status, err = rec.Reconcile(ctx, renewalEvent("evt-b", "user-1", 1000, 20_000))
	require.NoError(t, err)
	assert.Equal(t, billing.StatusProcessed, status, "equal timestamp with a new id is applied")
}

func TestReconciler_OutOfOrderDelivery(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	older := renewalEvent("evt-old", "user-1", 1000, 5000)
	newer := billing.Event{
		ID:               "evt-new",
		AppUserID:        "user-1",
		Type:             "CANCELLATION",
		ProductID:        monthlySKU,
		EventTimestampMs: billing.NewMillis(2000),
		ExpirationAtMs:   billing.NewMillis(9000),
	}

	// In-order reference run.
	inOrder := billing.NewMemoryStore()
	rec := newTestReconciler(t, inOrder, 3000)
	_, err := rec.Reconcile(ctx, older)
	require.NoError(t, err)
	_, err = rec.Reconcile(ctx, newer)
	require.NoError(t, err)
	want, err := inOrder.GetSnapshot(ctx, "user-1")
	require.NoError(t, err)

	// Reversed delivery: the older event must be judged stale.
	reversed := billing.NewMemoryStore()
	rec = newTestReconciler(t, reversed, 3000)
	_, err = rec.Reconcile(ctx, newer)
	require.NoError(t, err)
	status, err := rec.Reconcile(ctx, older)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusStale, status)

	got, err := reversed.GetSnapshot(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, want, got, "out-of-order delivery must converge to the same snapshot")
}

func TestReconciler_FallbackTimestamp(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := billing.NewMemoryStore()
	rec := newTestReconciler(t, store, 7777)

	ev := billing.Event{ID: "evt-1", AppUserID: "user-1", Type: "RENEWAL", ProductID: monthlySKU}
	status, err := rec.Reconcile(ctx, ev)
	require.NoError(t, err)
	require.Equal(t, billing.StatusProcessed, status)

	snap, err := store.GetSnapshot(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(7777), snap.LastEventTimestampMs)
}

func TestReconciler_RejectsMalformedEvents(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	rec := newTestReconciler(t, billing.NewMemoryStore(), 1000)

	_, err := rec.Reconcile(ctx, billing.Event{AppUserID: "user-1"})
	assert.ErrorIs(t, err, billing.ErrMissingEventID)

	_, err = rec.Reconcile(ctx, billing.Event{ID: "evt-1"})
	assert.ErrorIs(t, err, billing.ErrMissingAppUserID)
}

func TestReconciler_ConcurrentDeliveries(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := billing.NewMemoryStore()
	rec := newTestReconciler(t, store, 5000)

	const workers = 16
	statuses := make([]billing.Status, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Every worker delivers the same event id.
			statuses[i], errs[i] = rec.Reconcile(ctx, renewalEvent("evt-dup", "user-1", 1000, 10_000))
		}()
	}
	wg.Wait()

	processed := 0
	for i, s := range statuses {
		require.NoError(t, errs[i])
		if s == billing.StatusProcessed {
			processed++
		}
	}
	assert.Equal(t, 1, processed, "exactly one delivery wins the transition")
}

func TestReconciler_DistinctUsersAreIndependent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := billing.NewMemoryStore()
	rec := newTestReconciler(t, store, 5000)

	for i := range 8 {
		user := fmt.Sprintf("user-%d", i)
		status, err := rec.Reconcile(ctx, renewalEvent("evt-"+user, user, 1000, 10_000))
		require.NoError(t, err)
		require.Equal(t, billing.StatusProcessed, status)
	}

	for i := range 8 {
		snap, err := store.GetSnapshot(ctx, fmt.Sprintf("user-%d", i))
		require.NoError(t, err)
		assert.True(t, snap.IsPremium)
	}
}

func TestMemoryStore_GetSnapshotNotFound(t *testing.T) {
	t.Parallel()

	store := billing.NewMemoryStore()
	_, err := store.GetSnapshot(context.Background(), "nobody")
	assert.ErrorIs(t, err, billing.ErrSnapshotNotFound)
}
