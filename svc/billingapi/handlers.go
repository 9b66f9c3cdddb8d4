package billingapi

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/shamar-morrison/show-seek-sub003/pkg/billing"
	"github.com/shamar-morrison/show-seek-sub003/pkg/requestid"
)

// webhookEnvelope is the provider's delivery body.
type webhookEnvelope struct {
	Event *billing.Event `json:"event"`
}

type webhookResponse struct {
	OK     bool   `json:"ok"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// requireSharedSecret validates the Authorization header before anything else
// runs. Both the raw secret and the bearer-prefixed form are accepted, with a
// constant-time comparison either way. On mismatch the request is rejected
// with 401 and no transaction is attempted.
func (s *Service) requireSharedSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		credential := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(credential), []byte(s.secret)) != 1 {
			s.log.WarnContext(r.Context(), "rejected webhook with invalid credential",
				slog.String("request_id", requestid.FromContext(r.Context())))
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleWebhook ingests one provider notification. A malformed body fails the
// request: silently acknowledging it would stop the provider from retrying a
// delivery we never applied.
func (s *Service) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var envelope webhookEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil || envelope.Event == nil {
		writeJSON(w, http.StatusBadRequest, webhookResponse{Error: "malformed event payload"})
		return
	}

	status, err := s.reconciler.Reconcile(r.Context(), *envelope.Event)
	if err != nil {
		if errors.Is(err, billing.ErrMissingEventID) || errors.Is(err, billing.ErrMissingAppUserID) {
			writeJSON(w, http.StatusBadRequest, webhookResponse{Error: "malformed event payload"})
			return
		}
		// Internal detail stays out of the response; the provider retries on
		// non-200 and reconciliation is idempotent, so a retry is safe.
		s.log.ErrorContext(r.Context(), "failed to reconcile billing event",
			slog.String("request_id", requestid.FromContext(r.Context())),
			slog.String("event_id", envelope.Event.ID),
			slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, webhookResponse{Error: "reconciliation failed"})
		return
	}

	writeJSON(w, http.StatusOK, webhookResponse{OK: true, Status: string(status)})
}

// handleEntitlement serves the snapshot for the client feature-gating layer.
// A user without a record gets the zero snapshot rather than an error: before
// the first premium-granting event everyone is a free user.
func (s *Service) handleEntitlement(w http.ResponseWriter, r *http.Request) {
	appUserID := chi.URLParam(r, "appUserID")
	if appUserID == "" {
		writeJSON(w, http.StatusBadRequest, webhookResponse{Error: "missing app user id"})
		return
	}

	snap, err := s.reconciler.Snapshot(r.Context(), appUserID)
	if err != nil {
		if errors.Is(err, billing.ErrSnapshotNotFound) {
			writeJSON(w, http.StatusOK, &billing.Snapshot{})
			return
		}
		s.log.ErrorContext(r.Context(), "failed to load entitlement snapshot",
			slog.String("request_id", requestid.FromContext(r.Context())),
			slog.String("app_user_id", appUserID),
			slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, webhookResponse{Error: "entitlement lookup failed"})
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
