// Package billing reconciles asynchronous billing-provider notifications
// into a durable per-user entitlement record.
//
// The provider delivers notifications at least once, in no particular order.
// Reconcile turns each delivery into exactly one of three outcomes:
//
//   - processed: the event advanced the user's entitlement; the new snapshot
//     and the event-log record were committed in one transaction.
//   - duplicate: the event id was seen before; nothing was written.
//   - stale: the event predates the last applied change; only the event-log
//     record was written so a redelivery becomes a duplicate.
//
// The decision logic is split into three pure pieces (ResolveEventTimestamp,
// Classify, MapEvent) orchestrated by Reconciler against a Store. Store has
// three implementations: PGStore (serializable transactions with bounded
// retry), MongoStore (session transactions), and MemoryStore (tests and
// local development).
//
// Invariants:
//
//   - LastEventTimestampMs is monotonically non-decreasing per user; an
//     equal-timestamp event with a new id is still applied.
//   - A lifetime entitlement with IsPremium=true is never downgraded by
//     subscription-lifecycle events on the same account.
//   - No event produces a visible entitlement change without also being
//     durably marked processed, and vice versa.
package billing
