package billing

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Status is the outcome of reconciling one billing event.
type Status string

const (
	StatusProcessed Status = "processed"
	StatusDuplicate Status = "duplicate"
	StatusStale     Status = "stale"
)

// Reconciler orchestrates the atomic read-decide-write cycle that converts
// asynchronous, possibly out-of-order, possibly duplicated provider
// notifications into the durable per-user entitlement record.
type Reconciler struct {
	store   Store
	catalog *Catalog
	cache   SnapshotCache
	log     *slog.Logger
	now     func() time.Time
}

// ReconcilerOption configures optional Reconciler settings.
type ReconcilerOption func(*Reconciler)

// WithLogger routes reconciler diagnostics through the given logger.
func WithLogger(log *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		if log != nil {
			r.log = log
		}
	}
}

// WithSnapshotCache enables read-through caching of entitlement snapshots.
// The cache is invalidated whenever an event is processed.
func WithSnapshotCache(cache SnapshotCache) ReconcilerOption {
	return func(r *Reconciler) {
		r.cache = cache
	}
}

// WithClock overrides the wall clock. Test helper.
func WithClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// NewReconciler creates a Reconciler.
// Panics if store or catalog is nil to fail fast during initialization.
func NewReconciler(store Store, catalog *Catalog, opts ...ReconcilerOption) *Reconciler {
	if store == nil {
		panic("billing: Store is required")
	}
	if catalog == nil {
		panic("billing: Catalog is required")
	}

	r := &Reconciler{
		store:   store,
		catalog: catalog,
		log:     slog.New(slog.DiscardHandler),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Reconcile applies one provider notification. Within a single store
// transaction it resolves the event time, classifies the event against the
// event log and the user's last applied timestamp, and commits the matching
// writes: nothing for a duplicate, the event-log record alone for a stale
// event, and both the new snapshot and the event-log record for a fresh one.
func (r *Reconciler) Reconcile(ctx context.Context, ev Event) (Status, error) {
	if err := ev.Validate(); err != nil {
		return "", err
	}

	nowMs := r.now().UnixMilli()
	resolved := ResolveEventTimestamp(ev, nowMs)

	var status Status
	err := r.store.RunAtomic(ctx, ev.ID, ev.AppUserID, func(v View) (Write, error) {
		var current Snapshot
		if v.Snapshot != nil {
			current = *v.Snapshot
		}

		switch Classify(v.EventSeen, resolved, current.LastEventTimestampMs) {
		case ClassDuplicate:
			status = StatusDuplicate
			return Write{}, nil
		case ClassStale:
			// Mark it seen so a redelivery of this same stale event becomes
			// a duplicate instead of being re-judged.
			status = StatusStale
			return Write{MarkEventSeen: true}, nil
		}

		next := MapEvent(r.catalog, ev, current, nowMs)
		next.LastEventTimestampMs = resolved

		status = StatusProcessed
		return Write{MarkEventSeen: true, Snapshot: &next}, nil
	})
	if err != nil {
		return "", err
	}

	r.log.InfoContext(ctx, "billing event reconciled",
		slog.String("event_id", ev.ID),
		slog.String("app_user_id", ev.AppUserID),
		slog.String("event_type", ev.Type),
		slog.String("status", string(status)))

	if status == StatusProcessed && r.cache != nil {
		// Best effort: a failed invalidation only delays the cache TTL.
		if err := r.cache.Invalidate(ctx, ev.AppUserID); err != nil {
			r.log.WarnContext(ctx, "failed to invalidate snapshot cache",
				slog.String("app_user_id", ev.AppUserID),
				slog.Any("error", err))
		}
	}

	return status, nil
}

// Snapshot returns the user's current entitlement record, consulting the
// cache first when one is configured. Never writes to the record.
func (r *Reconciler) Snapshot(ctx context.Context, appUserID string) (*Snapshot, error) {
	if r.cache != nil {
		if s, err := r.cache.Get(ctx, appUserID); err == nil && s != nil {
			return s, nil
		}
	}

	s, err := r.store.GetSnapshot(ctx, appUserID)
	if err != nil {
		if errors.Is(err, ErrSnapshotNotFound) {
			return nil, err
		}
		return nil, errors.Join(ErrFailedToReadSnapshot, err)
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, appUserID, s); err != nil {
			r.log.WarnContext(ctx, "failed to populate snapshot cache",
				slog.String("app_user_id", appUserID),
				slog.Any("error", err))
		}
	}

	return s, nil
}
