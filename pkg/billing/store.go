package billing

import "context"

// View is what a reconciliation transaction reads before deciding.
type View struct {
	// EventSeen reports whether the event id already has a log record.
	EventSeen bool
	// Snapshot is the user's current entitlement, nil when no record exists.
	Snapshot *Snapshot
}

// Write is what a reconciliation transaction commits. Both writes happen in
// the same atomic unit or not at all.
type Write struct {
	// MarkEventSeen records the event id as processed-or-judged.
	MarkEventSeen bool
	// Snapshot replaces the user's entitlement record when non-nil.
	Snapshot *Snapshot
}

// AtomicFunc maps a consistent read of the relevant records to the writes to
// commit. Implementations may invoke it more than once when the transaction
// is retried after a conflict, so it must be side-effect free.
type AtomicFunc func(View) (Write, error)

// Store is the durable backing for entitlement reconciliation. It requires
// only atomic multi-key read-then-conditional-write with retry on write-write
// conflict, so any serializable relational database or transactional document
// store can implement it.
type Store interface {
	// RunAtomic executes one read-decide-write cycle for the given event id
	// and user. Concurrent calls for the same user are serialized by the
	// underlying store; the losing transaction is retried from a fresh read.
	RunAtomic(ctx context.Context, eventID, appUserID string, fn AtomicFunc) error

	// GetSnapshot returns the user's entitlement record.
	// Returns ErrSnapshotNotFound when the user has no record yet.
	GetSnapshot(ctx context.Context, appUserID string) (*Snapshot, error)
}
