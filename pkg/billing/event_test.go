package billing_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shamar-morrison/show-seek-sub003/pkg/billing"
)

func TestResolveEventTimestamp(t *testing.T) {
	t.Parallel()

	t.Run("eventTimestampMs wins over the other candidates", func(t *testing.T) {
		t.Parallel()
		ev := billing.Event{
			EventTimestampMs: billing.NewMillis(100),
			PurchasedAtMs:    billing.NewMillis(200),
			ExpirationAtMs:   billing.NewMillis(300),
		}
		assert.Equal(t, int64(100), billing.ResolveEventTimestamp(ev, 999))
	})

	t.Run("purchasedAtMs is next in precedence", func(t *testing.T) {
		t.Parallel()
		ev := billing.Event{
			PurchasedAtMs:  billing.NewMillis(200),
			ExpirationAtMs: billing.NewMillis(300),
		}
		assert.Equal(t, int64(200), billing.ResolveEventTimestamp(ev, 999))
	})

	t.Run("expirationAtMs is the last candidate", func(t *testing.T) {
		t.Parallel()
		ev := billing.Event{ExpirationAtMs: billing.NewMillis(300)}
		assert.Equal(t, int64(300), billing.ResolveEventTimestamp(ev, 999))
	})

	t.Run("empty payload falls back to now", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, int64(999), billing.ResolveEventTimestamp(billing.Event{}, 999))
	})

	t.Run("string-typed timestamps are coerced", func(t *testing.T) {
		t.Parallel()
		var ev billing.Event
		require.NoError(t, json.Unmarshal([]byte(`{"purchasedAtMs":"200","expirationAtMs":"300"}`), &ev))
		assert.Equal(t, int64(200), billing.ResolveEventTimestamp(ev, 999))
	})
}

func TestMillisUnmarshal(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		json  string
		value int64
		valid bool
	}{
		{"number", `1700000000000`, 1700000000000, true},
		{"numeric string", `"1700000000000"`, 1700000000000, true},
		{"scientific notation", `1.7e12`, 1700000000000, true},
		{"null", `null`, 0, false},
		{"non-numeric string treated as absent", `"soon"`, 0, false},
		{"empty string treated as absent", `""`, 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var m billing.Millis
			require.NoError(t, json.Unmarshal([]byte(tc.json), &m))
			assert.Equal(t, tc.valid, m.Valid)
			assert.Equal(t, tc.value, m.Value)
		})
	}
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	t.Run("requires event id", func(t *testing.T) {
		t.Parallel()
		err := billing.Event{AppUserID: "user-1"}.Validate()
		assert.ErrorIs(t, err, billing.ErrMissingEventID)
	})

	t.Run("requires app user id", func(t *testing.T) {
		t.Parallel()
		err := billing.Event{ID: "evt-1"}.Validate()
		assert.ErrorIs(t, err, billing.ErrMissingAppUserID)
	})

	t.Run("accepts minimal event", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, billing.Event{ID: "evt-1", AppUserID: "user-1"}.Validate())
	})
}

func TestParseEventType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, billing.EventRenewal, billing.ParseEventType("RENEWAL"))
	assert.Equal(t, billing.EventCancellation, billing.ParseEventType("CANCELLATION"))
	assert.Equal(t, billing.EventUnknown, billing.ParseEventType("SUBSCRIPTION_PAUSED"))
	assert.Equal(t, billing.EventUnknown, billing.ParseEventType(""))
}
