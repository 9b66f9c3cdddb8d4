package billing

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore implements Store on PostgreSQL using serializable transactions.
// Two concurrent reconciliations for the same user cannot both commit: the
// loser fails with a serialization error and is retried from a fresh read.
type PGStore struct {
	pool     *pgxpool.Pool
	attempts int
	backoff  time.Duration
}

// PGStoreOption configures optional PGStore settings.
type PGStoreOption func(*PGStore)

// WithTxAttempts bounds the number of serialization-conflict retries.
func WithTxAttempts(n int) PGStoreOption {
	return func(s *PGStore) {
		if n > 0 {
			s.attempts = n
		}
	}
}

// NewPGStore creates a PostgreSQL-backed store.
// Panics if pool is nil to fail fast during initialization.
func NewPGStore(pool *pgxpool.Pool, opts ...PGStoreOption) *PGStore {
	if pool == nil {
		panic("billing: pgx pool is required")
	}

	s := &PGStore{
		pool:     pool,
		attempts: 5,
		backoff:  25 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *PGStore) RunAtomic(ctx context.Context, eventID, appUserID string, fn AtomicFunc) error {
	var lastErr error

	for attempt := range s.attempts {
		err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
			view, err := readView(ctx, tx, eventID, appUserID)
			if err != nil {
				return err
			}

			write, err := fn(view)
			if err != nil {
				return err
			}

			return applyWrite(ctx, tx, eventID, appUserID, write)
		})
		if err == nil {
			return nil
		}
		if !isSerializationFailure(err) {
			return err
		}

		lastErr = err
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * s.backoff):
		}
	}

	return errors.Join(ErrStoreConflict, lastErr)
}

func (s *PGStore) GetSnapshot(ctx context.Context, appUserID string) (*Snapshot, error) {
	var snap Snapshot
	err := s.pool.QueryRow(ctx, `
		SELECT is_premium, entitlement_type, subscription_type,
		       subscription_state, product_id, last_event_ts
		FROM user_entitlements
		WHERE app_user_id = $1`, appUserID).
		Scan(&snap.IsPremium, &snap.EntitlementType, &snap.SubscriptionType,
			&snap.SubscriptionState, &snap.ProductID, &snap.LastEventTimestampMs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}
	return &snap, nil
}

func readView(ctx context.Context, tx pgx.Tx, eventID, appUserID string) (View, error) {
	var view View

	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM billing_events WHERE event_id = $1)`, eventID).
		Scan(&view.EventSeen); err != nil {
		return View{}, err
	}

	var snap Snapshot
	err := tx.QueryRow(ctx, `
		SELECT is_premium, entitlement_type, subscription_type,
		       subscription_state, product_id, last_event_ts
		FROM user_entitlements
		WHERE app_user_id = $1`, appUserID).
		Scan(&snap.IsPremium, &snap.EntitlementType, &snap.SubscriptionType,
			&snap.SubscriptionState, &snap.ProductID, &snap.LastEventTimestampMs)
	switch {
	case err == nil:
		view.Snapshot = &snap
	case errors.Is(err, pgx.ErrNoRows):
		// First event for this user.
	default:
		return View{}, err
	}

	return view, nil
}

func applyWrite(ctx context.Context, tx pgx.Tx, eventID, appUserID string, write Write) error {
	if write.MarkEventSeen {
		if _, err := tx.Exec(ctx, `
			INSERT INTO billing_events (event_id, received_at)
			VALUES ($1, now())
			ON CONFLICT (event_id) DO NOTHING`, eventID); err != nil {
			return err
		}
	}

	if write.Snapshot != nil {
		snap := write.Snapshot
		if _, err := tx.Exec(ctx, `
			INSERT INTO user_entitlements
				(app_user_id, is_premium, entitlement_type, subscription_type,
				 subscription_state, product_id, last_event_ts, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now())
			ON CONFLICT (app_user_id) DO UPDATE SET
				is_premium = EXCLUDED.is_premium,
				entitlement_type = EXCLUDED.entitlement_type,
				subscription_type = EXCLUDED.subscription_type,
				subscription_state = EXCLUDED.subscription_state,
				product_id = EXCLUDED.product_id,
				last_event_ts = EXCLUDED.last_event_ts,
				updated_at = now()`,
			appUserID, snap.IsPremium, snap.EntitlementType, snap.SubscriptionType,
			snap.SubscriptionState, snap.ProductID, snap.LastEventTimestampMs); err != nil {
			return err
		}
	}

	return nil
}

// isSerializationFailure detects PostgreSQL serialization failures (40001)
// and deadlocks (40P01), both of which are safe to retry from a fresh read.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01")
}
