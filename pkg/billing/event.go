package billing

import (
	"bytes"
	"strconv"
)

// EventType is the normalized billing notification type. Providers extend
// their event vocabulary over time, so anything unrecognized maps to
// EventUnknown and is handled by a conservative non-revoking branch in the
// mapper instead of failing the whole delivery.
type EventType string

const (
	EventInitialPurchase     EventType = "INITIAL_PURCHASE"
	EventRenewal             EventType = "RENEWAL"
	EventCancellation        EventType = "CANCELLATION"
	EventUncancellation      EventType = "UNCANCELLATION"
	EventExpiration          EventType = "EXPIRATION"
	EventProductChange       EventType = "PRODUCT_CHANGE"
	EventNonRenewingPurchase EventType = "NON_RENEWING_PURCHASE"
	EventBillingIssue        EventType = "BILLING_ISSUE"
	EventUnknown             EventType = ""
)

// ParseEventType maps a raw provider type string to a known EventType.
func ParseEventType(raw string) EventType {
	switch EventType(raw) {
	case EventInitialPurchase, EventRenewal, EventCancellation,
		EventUncancellation, EventExpiration, EventProductChange,
		EventNonRenewingPurchase, EventBillingIssue:
		return EventType(raw)
	default:
		return EventUnknown
	}
}

// Event is a single inbound billing-provider notification. The payload is
// untrusted: timestamps may be absent or string-typed, and Type may be a
// value this service has never seen.
type Event struct {
	ID               string `json:"id"`
	AppUserID        string `json:"appUserId"`
	Type             string `json:"type"`
	ProductID        string `json:"productId"`
	PeriodType       string `json:"periodType"`
	EventTimestampMs Millis `json:"eventTimestampMs"`
	PurchasedAtMs    Millis `json:"purchasedAtMs"`
	ExpirationAtMs   Millis `json:"expirationAtMs"`
}

// Kind returns the normalized event type.
func (e Event) Kind() EventType {
	return ParseEventType(e.Type)
}

// Validate checks the fields the reconciler cannot work without.
func (e Event) Validate() error {
	if e.ID == "" {
		return ErrMissingEventID
	}
	if e.AppUserID == "" {
		return ErrMissingAppUserID
	}
	return nil
}

// Millis is a unix-millisecond timestamp that tolerates the provider's habit
// of sending numbers as JSON strings. A present but non-numeric value is
// treated as absent rather than failing the payload.
type Millis struct {
	Value int64
	Valid bool
}

// NewMillis returns a present Millis value. Test and construction helper.
func NewMillis(v int64) Millis {
	return Millis{Value: v, Valid: true}
}

func (m *Millis) UnmarshalJSON(b []byte) error {
	m.Value, m.Valid = 0, false

	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var err error
		b, err = unquote(b)
		if err != nil {
			return nil
		}
	}

	if v, err := strconv.ParseInt(string(b), 10, 64); err == nil {
		m.Value, m.Valid = v, true
		return nil
	}
	// Some providers serialize epoch millis in scientific notation.
	if f, err := strconv.ParseFloat(string(b), 64); err == nil {
		m.Value, m.Valid = int64(f), true
	}
	return nil
}

func (m Millis) MarshalJSON() ([]byte, error) {
	if !m.Valid {
		return []byte("null"), nil
	}
	return strconv.AppendInt(nil, m.Value, 10), nil
}

func unquote(b []byte) ([]byte, error) {
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

// ResolveEventTimestamp extracts the single authoritative event time from a
// heterogeneous payload. Precedence: eventTimestampMs, then purchasedAtMs,
// then expirationAtMs, then the caller-supplied fallback. Always returns a
// usable number.
func ResolveEventTimestamp(e Event, fallbackNowMs int64) int64 {
	for _, ts := range []Millis{e.EventTimestampMs, e.PurchasedAtMs, e.ExpirationAtMs} {
		if ts.Valid {
			return ts.Value
		}
	}
	return fallbackNowMs
}
