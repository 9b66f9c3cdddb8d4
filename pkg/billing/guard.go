package billing

// Classification is the idempotency/ordering verdict for an incoming event.
type Classification string

const (
	// ClassDuplicate means the event id has already been processed or judged.
	ClassDuplicate Classification = "duplicate"
	// ClassStale means the event predates the user's last applied change.
	ClassStale Classification = "stale"
	// ClassFresh means the event should be applied. An equal timestamp with a
	// previously unseen id is fresh: ties break by novelty, not rejection.
	ClassFresh Classification = "fresh"
)

// Classify decides whether an event is new, a duplicate, or stale relative to
// previously recorded state. The duplicate check wins over the staleness
// check so a redelivered stale event is reported as a duplicate.
func Classify(eventSeen bool, resolvedTimestampMs, storedLastTimestampMs int64) Classification {
	if eventSeen {
		return ClassDuplicate
	}
	if resolvedTimestampMs < storedLastTimestampMs {
		return ClassStale
	}
	return ClassFresh
}
