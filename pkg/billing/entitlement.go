package billing

// EntitlementType distinguishes how premium access was obtained.
type EntitlementType string

const (
	EntitlementSubscription EntitlementType = "subscription"
	EntitlementLifetime     EntitlementType = "lifetime"
)

// SubscriptionType is the billing cadence derived from the purchased product.
type SubscriptionType string

const (
	SubscriptionMonthly SubscriptionType = "monthly"
	SubscriptionYearly  SubscriptionType = "yearly"
)

// SubscriptionState is the lifecycle label of the subscription. A CANCELLED
// subscription can still be premium until its paid period ends.
type SubscriptionState string

const (
	StateActive    SubscriptionState = "ACTIVE"
	StateCancelled SubscriptionState = "CANCELLED"
	StateExpired   SubscriptionState = "EXPIRED"
)

// Snapshot is the durable per-user entitlement record. It is owned
// exclusively by the reconciler; the client feature-gating layer reads it but
// never writes it.
type Snapshot struct {
	IsPremium            bool              `json:"isPremium" bson:"isPremium"`
	EntitlementType      EntitlementType   `json:"entitlementType,omitempty" bson:"entitlementType,omitempty"`
	SubscriptionType     SubscriptionType  `json:"subscriptionType,omitempty" bson:"subscriptionType,omitempty"`
	SubscriptionState    SubscriptionState `json:"subscriptionState,omitempty" bson:"subscriptionState,omitempty"`
	ProductID            string            `json:"productId,omitempty" bson:"productId,omitempty"`
	LastEventTimestampMs int64             `json:"lastEventTimestampMs" bson:"lastEventTimestampMs"`
}

// MapEvent computes the next entitlement snapshot for an incoming event.
// Pure: no I/O, no clock reads. The caller supplies nowMs and is responsible
// for setting LastEventTimestampMs on the result.
//
// Unknown event types return the current snapshot unchanged: providers add
// event types over time and revoking access on an unrecognized notification
// would punish paying users for a vocabulary change.
func MapEvent(catalog *Catalog, ev Event, current Snapshot, nowMs int64) Snapshot {
	kind := ev.Kind()
	if kind == EventUnknown || kind == EventBillingIssue {
		// Non-transitioning events: billing issues are resolved by a later
		// EXPIRATION or RENEWAL, never by guessing here.
		return current
	}

	next := current

	if st, ok := catalog.PlanFor(ev.ProductID); ok {
		next.SubscriptionType = st
	}

	switch kind {
	case EventCancellation:
		next.SubscriptionState = StateCancelled
	case EventExpiration:
		next.SubscriptionState = StateExpired
	default:
		next.SubscriptionState = StateActive
	}

	// Access persists until the paid period ends, so premium is decided by
	// the expiration horizon, not the state label. An event carrying no
	// expiration at all keeps the prior value: incomplete payloads must not
	// spuriously revoke access.
	if ev.ExpirationAtMs.Valid {
		next.IsPremium = ev.ExpirationAtMs.Value > nowMs
	}

	next.EntitlementType = EntitlementSubscription
	if ev.ProductID != "" {
		next.ProductID = ev.ProductID
	}

	// One-time lifetime purchases never expire and never lose to
	// subscription-lifecycle noise on the same account.
	if catalog.IsLifetime(ev.ProductID) && (kind == EventInitialPurchase || kind == EventNonRenewingPurchase) {
		next.IsPremium = true
		next.EntitlementType = EntitlementLifetime
		next.SubscriptionType = ""
		next.SubscriptionState = ""
		return next
	}

	// Downgrade protection: an established lifetime entitlement keeps its
	// premium flag, type, and product id regardless of what the incoming
	// subscription event computed for them.
	if current.EntitlementType == EntitlementLifetime && current.IsPremium && catalog.IsLifetime(current.ProductID) {
		next.IsPremium = current.IsPremium
		next.EntitlementType = current.EntitlementType
		next.ProductID = current.ProductID
	}

	return next
}
